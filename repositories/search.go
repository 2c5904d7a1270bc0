package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"course-chat/contract"
	"course-chat/domain"

	"github.com/blugelabs/bluge"
	"github.com/blugelabs/bluge/search"
	"github.com/google/uuid"
)

var _ contract.ISearchIndex = (*SearchRepository)(nil)

// SearchRepository maintains a Bluge full-text index of the transcript.
// It is fed by the dispatch pipeline after each successful persist, so the
// index can lag the store but never contains an unpersisted message.
type SearchRepository struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchRepository(writer *bluge.Writer, log *slog.Logger) *SearchRepository {
	return &SearchRepository{writer: writer, log: log}
}

// Index upserts one persisted message into the search index.
// The order key is stored zero-padded so lexicographic sort equals
// numeric transcript order.
func (s *SearchRepository) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewKeywordField("course", string(message.CourseID)).StoreValue()).
		AddField(bluge.NewKeywordField("sender", message.SenderID).StoreValue()).
		AddField(bluge.NewKeywordField("order", fmt.Sprintf("%019d", message.OrderKey)).StoreValue().Sortable()).
		AddField(bluge.NewKeywordField("at", message.CreatedAt.Format(time.RFC3339Nano)).StoreValue())

	return s.writer.Update(doc.ID(), doc)
}

// Search returns course messages matching terms, ascending by order key.
func (s *SearchRepository) Search(ctx context.Context, course domain.CourseID, terms string, limit int) ([]domain.Message, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			s.log.Warn("Failed to close index reader", "err", closeErr)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(string(course)).SetField("course"))

	request := bluge.NewTopNSearch(limit, query).SortBy([]string{"order"})

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var messages []domain.Message
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		message, err := matchToMessage(match)
		if err != nil {
			s.log.Debug("Skipping unreadable index document", "err", err)
			continue
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func matchToMessage(match *search.DocumentMatch) (domain.Message, error) {
	var message domain.Message
	var visitErr error

	err := match.VisitStoredFields(func(field string, value []byte) bool {
		switch field {
		case "_id":
			message.ID, visitErr = uuid.Parse(string(value))
		case "course":
			message.CourseID = domain.CourseID(value)
		case "sender":
			message.SenderID = string(value)
		case "content":
			message.Content = string(value)
		case "order":
			message.OrderKey, visitErr = strconv.ParseUint(string(value), 10, 64)
		case "at":
			message.CreatedAt, visitErr = time.Parse(time.RFC3339Nano, string(value))
		}
		return visitErr == nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	if visitErr != nil {
		return domain.Message{}, visitErr
	}
	return message, nil
}
