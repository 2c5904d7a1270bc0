package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCensoredWords_Embedded_Dictionaries(t *testing.T) {
	req := require.New(t)

	data, err := LoadCensoredWords()
	req.NoError(err)

	req.Contains(data.Languages, "en")
	req.Contains(data.Languages, "fr")
	req.NotEmpty(data.Words)

	// Words are unique even when dictionaries overlap
	seen := make(map[string]struct{}, len(data.Words))
	for _, w := range data.Words {
		_, dup := seen[w]
		req.False(dup, "duplicate word %q", w)
		seen[w] = struct{}{}
	}
}
