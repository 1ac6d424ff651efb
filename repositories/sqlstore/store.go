// Package sqlstore keeps messages in MySQL through gorm.
// MySQL has no change feed, so committed rows are published through an in-process broker;
// a deployment running several engine processes on one database should use the badger or mongo store.
package sqlstore

import (
	"context"
	"huddle/contract"
	"huddle/domain"
	"huddle/errors"
	"huddle/repositories"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

var _ contract.MessageStore = (*Store)(nil)

type messageRow struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Kind        int       `gorm:"not null"`
	TeamID      string    `gorm:"size:64;index:idx_team_created,priority:1"`
	SenderID    string    `gorm:"size:64;not null;index"`
	ReceiverID  string    `gorm:"size:64;index"`
	Content     string    `gorm:"type:text;not null"`
	MessageType string    `gorm:"size:32;not null"`
	MediaURL    string    `gorm:"size:512"`
	IsRead      bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"precision:6;index:idx_team_created,priority:2"`
}

func (messageRow) TableName() string { return "messages" }

type Store struct {
	db     *gorm.DB
	broker *repositories.Broker
	log    *slog.Logger
	now    func() time.Time
}

func NewStore(db *gorm.DB, broker *repositories.Broker, log *slog.Logger) *Store {
	return &Store{
		db:     db,
		broker: broker,
		log:    log,
		// MySQL keeps microseconds; the returned record must equal the stored one
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&messageRow{})
}

func (s *Store) scoped(ctx context.Context, scope domain.Scope) (*gorm.DB, error) {
	q := s.db.WithContext(ctx)
	switch scope.Kind {
	case domain.ScopeTeam:
		return q.Where("kind = ? AND team_id = ?", int(domain.ScopeTeam), scope.TeamID), nil
	case domain.ScopeInbox:
		return q.Where("kind = ? AND (sender_id = ? OR receiver_id = ?)",
			int(domain.ScopePrivate), scope.UserID, scope.UserID), nil
	case domain.ScopePrivate:
		return q.Where("kind = ? AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))",
			int(domain.ScopePrivate), scope.UserID, scope.PeerID, scope.PeerID, scope.UserID), nil
	default:
		return nil, errors.ErrUnsupportedScope
	}
}

func (s *Store) FetchMessages(ctx context.Context, scope domain.Scope) ([]domain.Message, error) {
	q, err := s.scoped(ctx, scope)
	if err != nil {
		return nil, err
	}
	var rows []messageRow
	if err := q.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, errors.Persistence(err)
	}
	return lo.Map(rows, func(row messageRow, _ int) domain.Message {
		return toMessage(row)
	}), nil
}

func (s *Store) InsertMessage(ctx context.Context, draft domain.Draft) (domain.Message, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Message{}, errors.Persistence(err)
	}
	message := draft.Materialize(id.String(), s.now())
	row := fromMessage(message)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Message{}, errors.Persistence(err)
	}
	s.broker.Publish(message)
	return message, nil
}

// MarkRead updates the unread rows from counterpartyID to selfID and republishes them,
// which is how open channels learn about the receipt.
func (s *Store) MarkRead(ctx context.Context, scope domain.Scope, counterpartyID, selfID string) error {
	if scope.Kind == domain.ScopeTeam {
		return nil
	}
	var rows []messageRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("kind = ? AND sender_id = ? AND receiver_id = ? AND is_read = ?",
			int(domain.ScopePrivate), counterpartyID, selfID, false).
			Find(&rows).Error
		if err != nil || len(rows) == 0 {
			return err
		}
		ids := lo.Map(rows, func(row messageRow, _ int) string { return row.ID })
		return tx.Model(&messageRow{}).Where("id IN ?", ids).Update("is_read", true).Error
	})
	if err != nil {
		return errors.Persistence(err)
	}
	s.broker.Publish(lo.Map(rows, func(row messageRow, _ int) domain.Message {
		row.IsRead = true
		return toMessage(row)
	})...)
	s.log.Debug("Messages marked read", "reader", selfID, "counterparty", counterpartyID, "count", len(rows))
	return nil
}

func (s *Store) Subscribe(_ context.Context, scope domain.Scope, onInsert func(domain.Message)) (contract.Subscription, error) {
	if !scope.Valid() {
		return nil, errors.ErrUnsupportedScope
	}
	return s.broker.Subscribe(scope, onInsert), nil
}

func fromMessage(m domain.Message) messageRow {
	return messageRow{
		ID:          m.ID,
		Kind:        int(m.Kind),
		TeamID:      m.TeamID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Content:     m.Content,
		MessageType: string(m.Type),
		MediaURL:    m.MediaURL,
		IsRead:      m.IsRead,
		CreatedAt:   m.CreatedAt,
	}
}

func toMessage(row messageRow) domain.Message {
	return domain.Message{
		ID:         row.ID,
		Kind:       domain.ScopeKind(row.Kind),
		TeamID:     row.TeamID,
		SenderID:   row.SenderID,
		ReceiverID: row.ReceiverID,
		Content:    row.Content,
		Type:       domain.MessageType(row.MessageType),
		MediaURL:   row.MediaURL,
		IsRead:     row.IsRead,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}
