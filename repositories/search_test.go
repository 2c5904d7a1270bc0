package repositories

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"course-chat/domain"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func setupSearchRepository(t *testing.T) *SearchRepository {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSearchRepository(writer, log)
}

func indexMessage(t *testing.T, repo *SearchRepository, course, sender, content string, orderKey uint64) domain.Message {
	t.Helper()
	msg := domain.Message{
		ID:        uuid.New(),
		CourseID:  domain.CourseID(course),
		SenderID:  sender,
		Content:   content,
		OrderKey:  orderKey,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Index(msg))
	return msg
}

func TestSearchRepository_Finds_Matching_Messages(t *testing.T) {
	req := require.New(t)
	repo := setupSearchRepository(t)

	indexMessage(t, repo, "C1", "alice", "the homework is due friday", 1)
	indexMessage(t, repo, "C1", "bob", "thanks for the reminder", 2)

	found, err := repo.Search(context.Background(), "C1", "homework", 10)
	req.NoError(err)
	req.Len(found, 1)
	req.Equal("alice", found[0].SenderID)
	req.Equal("the homework is due friday", found[0].Content)
	req.Equal(uint64(1), found[0].OrderKey)
}

func TestSearchRepository_Results_Are_Course_Scoped(t *testing.T) {
	req := require.New(t)
	repo := setupSearchRepository(t)

	indexMessage(t, repo, "C1", "alice", "homework for calculus", 1)
	indexMessage(t, repo, "C2", "carol", "homework for biology", 1)

	found, err := repo.Search(context.Background(), "C1", "homework", 10)
	req.NoError(err)
	req.Len(found, 1)
	req.Equal(domain.CourseID("C1"), found[0].CourseID)
}

func TestSearchRepository_Results_Follow_Transcript_Order(t *testing.T) {
	req := require.New(t)
	repo := setupSearchRepository(t)

	// Indexed out of order on purpose
	indexMessage(t, repo, "C1", "alice", "homework part two", 12)
	indexMessage(t, repo, "C1", "alice", "homework part one", 3)

	found, err := repo.Search(context.Background(), "C1", "homework", 10)
	req.NoError(err)
	req.Len(found, 2)
	req.Less(found[0].OrderKey, found[1].OrderKey)
}

func TestSearchRepository_No_Match(t *testing.T) {
	req := require.New(t)
	repo := setupSearchRepository(t)

	indexMessage(t, repo, "C1", "alice", "hello there", 1)

	found, err := repo.Search(context.Background(), "C1", "nonexistent", 10)
	req.NoError(err)
	req.Empty(found)
}
