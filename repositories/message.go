package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"

	"campus-connect/domain"
	"campus-connect/errors"
)

type IMessageRepository interface {
	Append(message domain.ChatMessage) (domain.StoredMessage, error)
	Search(ctx context.Context, substring string) ([]domain.StoredMessage, error)
}

// MessageRepository persists accepted messages in BadgerDB and maintains a
// Bluge index for substring search. Badger is the source of truth; the index
// only resolves which identifiers match a query.
type MessageRepository struct {
	db          *badger.DB
	index       *bluge.Writer
	seq         *badger.Sequence
	log         *slog.Logger
	searchLimit int
}

// NewMessageRepository reserves a Badger sequence for identifier assignment.
// Sequence values survive restarts, so identifiers stay monotonically
// increasing across the life of the store (gaps are possible, order is not).
func NewMessageRepository(db *badger.DB, index *bluge.Writer, log *slog.Logger, searchLimit int) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:message"), 64)
	if err != nil {
		return nil, fmt.Errorf("reserving message sequence: %w", err)
	}
	return &MessageRepository{db: db, index: index, seq: seq, log: log, searchLimit: searchLimit}, nil
}

// Close releases the unused tail of the reserved sequence range.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// diskMessage is the JSON value stored in Badger.
type diskMessage struct {
	ID      uint64 `json:"id"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
	At      int64  `json:"at"` // unix nanoseconds, UTC
}

// messageKey formats keys as "msg:{id_padded}" with 19-digit zero padding so
// lexicographical key order equals identifier order.
func messageKey(id uint64) []byte {
	return []byte(fmt.Sprintf("msg:%019d", id))
}

// Append durably records the message, assigns the next identifier, and
// returns the stored record. The Badger write is atomic: a failed append
// leaves no partial record. The index update happens after the commit; if it
// fails the append still succeeds and the miss is logged, since dropping a
// durably recorded message from broadcast would be worse than a stale index.
func (m *MessageRepository) Append(message domain.ChatMessage) (domain.StoredMessage, error) {
	next, err := m.seq.Next()
	if err != nil {
		return domain.StoredMessage{}, fmt.Errorf("%w: sequence: %v", errors.ErrPersistence, err)
	}
	// The sequence starts at zero; identifiers start at one.
	id := next + 1

	record := diskMessage{
		ID:      id,
		Sender:  message.Sender,
		Content: message.Content,
		At:      message.Timestamp.UTC().UnixNano(),
	}
	value, err := json.Marshal(record)
	if err != nil {
		return domain.StoredMessage{}, fmt.Errorf("%w: marshal: %v", errors.ErrPersistence, err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(id), value)
	})
	if err != nil {
		return domain.StoredMessage{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	stored := domain.StoredMessage{ID: id, ChatMessage: message}
	if err := m.indexMessage(stored); err != nil {
		m.log.Error("search index update failed", "id", id, "error", err)
	}
	return stored, nil
}

func (m *MessageRepository) indexMessage(stored domain.StoredMessage) error {
	doc := bluge.NewDocument(strconv.FormatUint(stored.ID, 10))
	// Keyword field: the whole lowercased content is one term, so a wildcard
	// query gives true substring semantics.
	doc.AddField(bluge.NewKeywordField("content", strings.ToLower(stored.Content)))
	return m.index.Update(doc.ID(), doc)
}

// Search performs a case-insensitive substring match over stored content and
// returns matches in ascending identifier order. Reads are read-committed: a
// concurrently in-flight append may or may not be observed, a partial record
// never is.
func (m *MessageRepository) Search(ctx context.Context, substring string) ([]domain.StoredMessage, error) {
	reader, err := m.index.Reader()
	if err != nil {
		return nil, fmt.Errorf("%w: index reader: %v", errors.ErrPersistence, err)
	}
	defer reader.Close()

	pattern := "*" + escapeWildcard(strings.ToLower(substring)) + "*"
	query := bluge.NewWildcardQuery(pattern).SetField("content")

	iter, err := reader.Search(ctx, bluge.NewTopNSearch(m.searchLimit, query))
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", errors.ErrPersistence, err)
	}

	var ids []uint64
	for {
		match, err := iter.Next()
		if err != nil {
			return nil, fmt.Errorf("%w: search iteration: %v", errors.ErrPersistence, err)
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				if id, parseErr := strconv.ParseUint(string(value), 10, 64); parseErr == nil {
					ids = append(ids, id)
				}
			}
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("%w: stored fields: %v", errors.ErrPersistence, err)
		}
	}

	// Callers display history chronologically, so undefined order is not
	// acceptable here.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return m.fetchByIDs(ids)
}

// fetchByIDs resolves matched identifiers against the Badger records.
func (m *MessageRepository) fetchByIDs(ids []uint64) ([]domain.StoredMessage, error) {
	var results []domain.StoredMessage
	err := m.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(messageKey(id))
			if err == badger.ErrKeyNotFound {
				// Stale index entry; skip rather than fail the query.
				m.log.Warn("index entry without record", "id", id)
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				var record diskMessage
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				results = append(results, toStoredMessage(record))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return results, nil
}

func toStoredMessage(record diskMessage) domain.StoredMessage {
	return domain.StoredMessage{
		ID: record.ID,
		ChatMessage: domain.ChatMessage{
			Sender:    record.Sender,
			Content:   record.Content,
			Timestamp: time.Unix(0, record.At).UTC(),
		},
	}
}

// escapeWildcard neutralizes bluge wildcard metacharacters in user input.
func escapeWildcard(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)
	return replacer.Replace(s)
}
