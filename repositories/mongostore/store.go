// Package mongostore keeps messages in a MongoDB collection and uses change streams as the feed.
// Change streams need a replica set.
package mongostore

import (
	"context"
	"fmt"
	"huddle/contract"
	"huddle/domain"
	"huddle/errors"
	"huddle/repositories"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "messages"

var _ contract.MessageStore = (*Store)(nil)

type messageDocument struct {
	ID          string    `bson:"_id"`
	Kind        int       `bson:"kind"`
	TeamID      string    `bson:"team_id,omitempty"`
	SenderID    string    `bson:"sender_id"`
	ReceiverID  string    `bson:"receiver_id,omitempty"`
	Content     string    `bson:"content"`
	MessageType string    `bson:"message_type"`
	MediaURL    string    `bson:"media_url,omitempty"`
	IsRead      bool      `bson:"is_read"`
	CreatedAt   time.Time `bson:"created_at"`
}

type changeEvent struct {
	OperationType string          `bson:"operationType"`
	FullDocument  messageDocument `bson:"fullDocument"`
}

type Store struct {
	collection *mongo.Collection
	log        *slog.Logger
	now        func() time.Time
}

func NewStore(database *mongo.Database, log *slog.Logger) *Store {
	return &Store{
		collection: database.Collection(collectionName),
		log:        log,
		// BSON dates keep milliseconds
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Connect follows the usual connect-then-ping sequence.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, client.Database(database), nil
}

// EnsureIndexes creates the indexes backing the scope filters.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "team_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "is_read", Value: 1}}},
	})
	return err
}

func filterFor(scope domain.Scope) (bson.M, error) {
	switch scope.Kind {
	case domain.ScopeTeam:
		return bson.M{"kind": int(domain.ScopeTeam), "team_id": scope.TeamID}, nil
	case domain.ScopeInbox:
		return bson.M{"kind": int(domain.ScopePrivate), "$or": bson.A{
			bson.M{"sender_id": scope.UserID},
			bson.M{"receiver_id": scope.UserID},
		}}, nil
	case domain.ScopePrivate:
		return bson.M{"kind": int(domain.ScopePrivate), "$or": bson.A{
			bson.M{"sender_id": scope.UserID, "receiver_id": scope.PeerID},
			bson.M{"sender_id": scope.PeerID, "receiver_id": scope.UserID},
		}}, nil
	default:
		return nil, errors.ErrUnsupportedScope
	}
}

func (s *Store) FetchMessages(ctx context.Context, scope domain.Scope) ([]domain.Message, error) {
	filter, err := filterFor(scope)
	if err != nil {
		return nil, err
	}
	cursor, err := s.collection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Persistence(err)
	}
	var documents []messageDocument
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, errors.Persistence(err)
	}
	return lo.Map(documents, func(document messageDocument, _ int) domain.Message {
		return toMessage(document)
	}), nil
}

func (s *Store) InsertMessage(ctx context.Context, draft domain.Draft) (domain.Message, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Message{}, errors.Persistence(err)
	}
	message := draft.Materialize(id.String(), s.now())
	if _, err := s.collection.InsertOne(ctx, fromMessage(message)); err != nil {
		return domain.Message{}, errors.Persistence(err)
	}
	return message, nil
}

// MarkRead relies on the change stream to carry the receipt to open channels.
func (s *Store) MarkRead(ctx context.Context, scope domain.Scope, counterpartyID, selfID string) error {
	if scope.Kind == domain.ScopeTeam {
		return nil
	}
	result, err := s.collection.UpdateMany(ctx,
		bson.M{
			"kind":        int(domain.ScopePrivate),
			"sender_id":   counterpartyID,
			"receiver_id": selfID,
			"is_read":     false,
		},
		bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return errors.Persistence(err)
	}
	s.log.Debug("Messages marked read", "reader", selfID, "counterparty", counterpartyID, "count", result.ModifiedCount)
	return nil
}

// changeFilterFor matches change events whose document belongs to the scope,
// so the server only streams what the channel needs.
func changeFilterFor(scope domain.Scope) (bson.M, error) {
	filter, err := filterFor(scope)
	if err != nil {
		return nil, err
	}
	match := prefixed(filter, "fullDocument.")
	match["operationType"] = bson.M{"$in": bson.A{"insert", "update", "replace"}}
	return match, nil
}

// prefixed rewrites field names, descending into $or branches.
func prefixed(filter bson.M, prefix string) bson.M {
	out := make(bson.M, len(filter))
	for key, value := range filter {
		if key == "$or" {
			branches := value.(bson.A)
			out[key] = bson.A(lo.Map(branches, func(branch any, _ int) any {
				return prefixed(branch.(bson.M), prefix)
			}))
			continue
		}
		out[prefix+key] = value
	}
	return out
}

// Subscribe returns once the server has opened the change stream, so later inserts are not missed.
// Updates are looked up in full; the scope filter runs on the server.
func (s *Store) Subscribe(ctx context.Context, scope domain.Scope, onInsert func(domain.Message)) (contract.Subscription, error) {
	if !scope.Valid() {
		return nil, errors.ErrUnsupportedScope
	}
	match, err := changeFilterFor(scope)
	if err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline{{{Key: "$match", Value: match}}}
	stream, err := s.collection.Watch(ctx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, errors.Subscription(err)
	}

	feedCtx, cancel := context.WithCancel(ctx)
	sub := repositories.NewFeedSubscription(cancel)
	go func() {
		defer func() { _ = stream.Close(context.Background()) }()
		for stream.Next(feedCtx) {
			var change changeEvent
			if err := stream.Decode(&change); err != nil {
				s.log.Warn("Skipping undecodable change", "error", err)
				continue
			}
			if change.FullDocument.ID == "" {
				continue
			}
			message := toMessage(change.FullDocument)
			if scope.Contains(message) {
				onInsert(message)
			}
		}
		sub.Finish(stream.Err())
	}()
	s.log.Debug("Change stream opened", "scope", scope.Key())
	return sub, nil
}

func fromMessage(m domain.Message) messageDocument {
	return messageDocument{
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

func toMessage(d messageDocument) domain.Message {
	return domain.Message{
		ID:         d.ID,
		Kind:       domain.ScopeKind(d.Kind),
		TeamID:     d.TeamID,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		Content:    d.Content,
		Type:       domain.MessageType(d.MessageType),
		MediaURL:   d.MediaURL,
		IsRead:     d.IsRead,
		CreatedAt:  d.CreatedAt.UTC(),
	}
}
