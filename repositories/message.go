package repositories

import (
	"bytes"
	"context"
	"fmt"
	"huddle/contract"
	"huddle/domain"
	"huddle/errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"
	"github.com/google/uuid"
)

const (
	messagePrefix = "msg:"
	probePrefix   = "probe:"
	probeInterval = 10 * time.Millisecond
)

// MessageRepository is the badger implementation of contract.MessageStore.
// Team messages live once under their team, private messages once per participant inbox,
// so every scope is a single prefix scan and a single change feed match.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// teamKey is formatted as "msg:team:{team_id}:{timestamp_padded}:{id}" and inboxKey as
// "msg:inbox:{user_id}:{timestamp_padded}:{id}":
//  1. The 19-digit zero padding keeps lexicographical order chronological.
//  2. The id breaks ties between messages stored at the same nanosecond.
func teamKey(m domain.Message) []byte {
	return fmt.Appendf(nil, "%steam:%s:%019d:%s", messagePrefix, m.TeamID, m.CreatedAt.UnixNano(), m.ID)
}

func inboxKey(userID string, m domain.Message) []byte {
	return fmt.Appendf(nil, "%sinbox:%s:%019d:%s", messagePrefix, userID, m.CreatedAt.UnixNano(), m.ID)
}

// keysOf lists every copy of a message. A note to self is stored once.
func keysOf(m domain.Message) [][]byte {
	if m.Kind == domain.ScopeTeam {
		return [][]byte{teamKey(m)}
	}
	if m.SenderID == m.ReceiverID {
		return [][]byte{inboxKey(m.SenderID, m)}
	}
	return [][]byte{inboxKey(m.SenderID, m), inboxKey(m.ReceiverID, m)}
}

// scopePrefix is the key range holding every message of the scope.
// A pair is read from the first user's inbox and filtered.
func scopePrefix(scope domain.Scope) ([]byte, error) {
	switch scope.Kind {
	case domain.ScopeTeam:
		return fmt.Appendf(nil, "%steam:%s:", messagePrefix, scope.TeamID), nil
	case domain.ScopePrivate, domain.ScopeInbox:
		return fmt.Appendf(nil, "%sinbox:%s:", messagePrefix, scope.UserID), nil
	default:
		return nil, errors.ErrUnsupportedScope
	}
}

// Walk visits every stored copy whose key starts with prefix, in key order.
// Records that cannot be decoded are reported to fn with a zero message and the error.
func (r *MessageRepository) Walk(prefix string, fn func(key string, message domain.Message, err error) error) error {
	fullPrefix := []byte(messagePrefix + prefix)
	return r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = fullPrefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(fullPrefix); it.Next() {
			item := it.Item()
			var message domain.Message
			var decodeErr error
			if err := item.Value(func(value []byte) error {
				message, decodeErr = decodeMessage(value)
				return nil
			}); err != nil {
				return err
			}
			if err := fn(string(item.Key()), message, decodeErr); err != nil {
				return err
			}
		}
		return nil
	})
}

// FetchMessages scans the scope prefix forward, so messages come out sorted by time then id.
func (r *MessageRepository) FetchMessages(_ context.Context, scope domain.Scope) ([]domain.Message, error) {
	prefix, err := scopePrefix(scope)
	if err != nil {
		return nil, err
	}
	messages := make([]domain.Message, 0)
	err = r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			var message domain.Message
			err := it.Item().Value(func(value []byte) error {
				var err error
				message, err = decodeMessage(value)
				return err
			})
			if err != nil {
				return err
			}
			if scope.Contains(message) {
				messages = append(messages, message)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Persistence(err)
	}
	return messages, nil
}

// InsertMessage assigns a UUIDv7 and the store clock, then writes every copy in one transaction.
func (r *MessageRepository) InsertMessage(_ context.Context, draft domain.Draft) (domain.Message, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Message{}, errors.Persistence(err)
	}
	message := draft.Materialize(id.String(), r.now())
	value := encodeMessage(message)
	err = r.db.Update(func(txn *badger.Txn) error {
		for _, key := range keysOf(message) {
			if err := txn.Set(key, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Message{}, errors.Persistence(err)
	}
	r.log.Debug("Message stored", "id", message.ID, "kind", message.Kind.String())
	return message, nil
}

// MarkRead flips the read flag of every private message sent by counterpartyID to selfID.
// Both copies are rewritten so the sender's inbox feed also sees the receipt.
func (r *MessageRepository) MarkRead(_ context.Context, scope domain.Scope, counterpartyID, selfID string) error {
	if scope.Kind == domain.ScopeTeam {
		return nil
	}
	prefix := fmt.Appendf(nil, "%sinbox:%s:", messagePrefix, selfID)
	err := r.db.Update(func(txn *badger.Txn) error {
		var unread []domain.Message
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				message, err := decodeMessage(value)
				if err != nil {
					return err
				}
				if message.UnreadFor(selfID) && message.SenderID == counterpartyID {
					unread = append(unread, message)
				}
				return nil
			})
			if err != nil {
				it.Close()
				return err
			}
		}
		it.Close()

		for _, message := range unread {
			message.IsRead = true
			value := encodeMessage(message)
			for _, key := range keysOf(message) {
				if err := txn.Set(key, value); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return errors.Persistence(err)
}

// Subscribe opens a badger change feed on the scope prefix.
// It returns once the feed is registered: a probe key is written until the callback observes it,
// so an insert committed after Subscribe returns is always delivered.
func (r *MessageRepository) Subscribe(ctx context.Context, scope domain.Scope, onInsert func(domain.Message)) (contract.Subscription, error) {
	prefix, err := scopePrefix(scope)
	if err != nil {
		return nil, err
	}
	probe := []byte(probePrefix + uuid.NewString())
	acked := make(chan struct{})
	var ackOnce sync.Once

	feedCtx, cancel := context.WithCancel(ctx)
	sub := NewFeedSubscription(cancel)

	go func() {
		err := r.db.Subscribe(feedCtx, func(kvs *badger.KVList) error {
			for _, kv := range kvs.GetKv() {
				if bytes.Equal(kv.GetKey(), probe) {
					ackOnce.Do(func() { close(acked) })
					continue
				}
				if len(kv.GetValue()) == 0 {
					continue
				}
				message, err := decodeMessage(kv.GetValue())
				if err != nil {
					r.log.Warn("Skipping undecodable record", "key", string(kv.GetKey()), "error", err)
					continue
				}
				if scope.Contains(message) {
					onInsert(message)
				}
			}
			return nil
		}, []pb.Match{{Prefix: prefix}, {Prefix: probe}})
		sub.Finish(err)
	}()

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()
	for {
		if err := r.db.Update(func(txn *badger.Txn) error {
			return txn.Set(probe, []byte{1})
		}); err != nil {
			_ = sub.Close()
			return nil, errors.Subscription(err)
		}
		select {
		case <-acked:
			_ = r.db.Update(func(txn *badger.Txn) error { return txn.Delete(probe) })
			r.log.Debug("Change feed registered", "scope", scope.Key())
			return sub, nil
		case <-sub.Done():
			return nil, errors.Subscription(sub.Err())
		case <-ctx.Done():
			_ = sub.Close()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
