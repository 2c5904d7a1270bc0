package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"course-chat/contract"
	"course-chat/domain"
	"course-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var _ contract.IMessageStore = (*MessageRepository)(nil)

// seqBandwidth is the lease size of each per-course badger sequence.
// Unused leased values leave gaps in the order key after a restart,
// which is harmless: only monotonicity matters, not density.
const seqBandwidth = 128

type MessageRepository struct {
	db           *badger.DB
	log          *slog.Logger
	historyLimit int

	mu        sync.Mutex
	sequences map[domain.CourseID]*badger.Sequence
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, historyLimit int) *MessageRepository {
	return &MessageRepository{
		db:           db,
		log:          log,
		historyLimit: historyLimit,
		sequences:    make(map[domain.CourseID]*badger.Sequence),
	}
}

// storedMessage is the on-disk representation of a message value.
type storedMessage struct {
	ID       string `json:"id"`
	Course   string `json:"course"`
	Sender   string `json:"sender"`
	Content  string `json:"content"`
	OrderKey uint64 `json:"order_key"`
	At       int64  `json:"at"` // UnixNano UTC
}

// messageKey formats a badger key as "msg:{course}:{order_key_padded}".
// The 19-digit zero padding keeps lexicographical order equal to numeric
// order, so a prefix scan returns the course transcript already sorted.
func messageKey(course domain.CourseID, orderKey uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d", course, orderKey))
}

// AppendMessage persists a message and assigns its durable identity:
// uuid, per-course monotonic order key (badger sequence) and timestamp.
// The returned copy is the canonical one the dispatcher broadcasts.
func (r *MessageRepository) AppendMessage(ctx context.Context, course domain.CourseID, senderID, content string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrDispatchTimeout, err)
	}

	orderKey, err := r.nextOrderKey(course)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
	}

	message := domain.Message{
		ID:        uuid.New(),
		CourseID:  course,
		SenderID:  senderID,
		Content:   content,
		OrderKey:  orderKey,
		CreatedAt: time.Now().UTC(),
	}

	value, err := json.Marshal(fromMessage(message))
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(course, orderKey), value)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
	}

	return message, nil
}

// ReadHistory returns at most limit of the most recent messages for a
// course, ascending by order key. limit <= 0 falls back to the configured
// default so a client cannot request an unbounded replay.
func (r *MessageRepository) ReadHistory(ctx context.Context, course domain.CourseID, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDispatchTimeout, err)
	}
	if limit <= 0 || limit > r.historyLimit {
		limit = r.historyLimit
	}

	var values [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", course))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the highest possible order key, then walk backwards
		// so the scan yields the most recent messages first.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(values) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				values = append(values, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
	}

	// Reverse scan order back to ascending order-key order.
	messages := make([]domain.Message, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		var stored storedMessage
		if err := json.Unmarshal(values[i], &stored); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
		}
		message, err := toMessage(stored)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
		}
		messages = append(messages, message)
	}
	return messages, nil
}

// nextOrderKey hands out the next value of the course's persistent
// sequence, creating and caching the sequence on first use.
func (r *MessageRepository) nextOrderKey(course domain.CourseID) (uint64, error) {
	r.mu.Lock()
	seq, ok := r.sequences[course]
	if !ok {
		var err error
		seq, err = r.db.GetSequence([]byte("seq:"+string(course)), seqBandwidth)
		if err != nil {
			r.mu.Unlock()
			return 0, err
		}
		r.sequences[course] = seq
	}
	r.mu.Unlock()

	// The raw sequence starts at 0; shift so order keys start at 1 and
	// zero can mean "no key assigned".
	key, err := seq.Next()
	if err != nil {
		return 0, err
	}
	return key + 1, nil
}

// Close releases all leased sequences so unused order keys are returned.
func (r *MessageRepository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for course, seq := range r.sequences {
		if err := seq.Release(); err != nil {
			r.log.Warn("Failed to release sequence", "course", course, "err", err)
		}
	}
	r.sequences = make(map[domain.CourseID]*badger.Sequence)
}

func fromMessage(message domain.Message) storedMessage {
	return storedMessage{
		ID:       message.ID.String(),
		Course:   string(message.CourseID),
		Sender:   message.SenderID,
		Content:  message.Content,
		OrderKey: message.OrderKey,
		At:       message.CreatedAt.UnixNano(),
	}
}

func toMessage(stored storedMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(stored.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		CourseID:  domain.CourseID(stored.Course),
		SenderID:  stored.Sender,
		Content:   stored.Content,
		OrderKey:  stored.OrderKey,
		CreatedAt: time.Unix(0, stored.At).UTC(),
	}, nil
}
