package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "ASufficientlyL0ng&SecurePass!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	// Wrong password never matches
	match, err = ComparePassword("WrongPassword", hash)
	req.NoError(err)
	req.False(match)
}

func TestHashPasswordWith_Custom_Params_RoundTrip(t *testing.T) {
	req := require.New(t)

	// Deliberately cheap settings; the encoded hash must carry them
	cheap := HashParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

	hash, err := HashPasswordWith("SomePassword1!", cheap)
	req.NoError(err)
	req.Contains(hash, "m=8192,t=1,p=1")

	match, err := ComparePassword("SomePassword1!", hash)
	req.NoError(err)
	req.True(match)
}

func TestComparePassword_Rejects_Malformed_Hash(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"Empty", ""},
		{"Wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"},
		{"Missing segments", "$argon2id$v=19$m=65536,t=3,p=2"},
		{"Bad salt encoding", "$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComparePassword("anything", tt.hash)
			require.ErrorIs(t, err, ErrMalformedHash)
		})
	}
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"test@example.com", "ComplexPass123!!"}, false},
		{"Invalid email", RegisterRequest{"notanemail", "ComplexPass123!!"}, true},
		{"Password too short", RegisterRequest{"test@example.com", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"test@example.com", "NoDigitPassword!"}, true},
		{"Missing special char", RegisterRequest{"test@example.com", "NoSpecialChar1234"}, true},
		{"Missing uppercase", RegisterRequest{"test@example.com", "nouppercase12345!"}, true},
		{"Password too long (edge case)", RegisterRequest{"test@example.com", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", []string{"student"}, time.Hour)
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := ValidateToken(token)
	req.NoError(err)
	req.Equal("user-42", claims.UserID)
	req.Equal([]string{"student"}, claims.Roles)
	req.Equal("course-chat", claims.Issuer)
}

func TestExpiredTokenRejected(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", nil, -time.Minute)
	req.NoError(err)

	_, err = ValidateToken(token)
	req.Error(err)
}

func TestTamperedTokenRejected(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", nil, time.Hour)
	req.NoError(err)

	// Flip a character inside the payload segment
	tampered := []byte(token)
	mid := len(tampered) / 2
	if tampered[mid] == 'a' {
		tampered[mid] = 'b'
	} else {
		tampered[mid] = 'a'
	}

	_, err = ValidateToken(string(tampered))
	req.Error(err)
}

// BenchmarkHashPassword keeps an eye on the CPU cost of the argon2 settings
func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
