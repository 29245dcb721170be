package mongodb

import (
	"context"
	"fmt"
	"time"

	"tracker_server/core/port/out"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionClassifiedMessages = "classified_messages"

	defaultArchiveTTL = 30 * 24 * time.Hour
)

var _ out.MessageArchive = (*MessageArchive)(nil)

// MessageArchive keeps one document per (integration, message), replaced when
// a message is classified again.
type MessageArchive struct {
	collection *mongo.Collection
	ttl        time.Duration
}

// NewMessageArchive creates the archive. A ttl of zero keeps documents for 30 days.
func NewMessageArchive(db *mongo.Database, ttl time.Duration) *MessageArchive {
	if ttl <= 0 {
		ttl = defaultArchiveTTL
	}
	return &MessageArchive{
		collection: db.Collection(collectionClassifiedMessages),
		ttl:        ttl,
	}
}

// EnsureIndexes creates the lookup and TTL indexes.
func (a *MessageArchive) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "integration_id", Value: 1}, {Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "archived_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

type classifiedMessageDocument struct {
	IntegrationID string    `bson:"integration_id"`
	UserID        string    `bson:"user_id"`
	MessageID     string    `bson:"message_id"`
	Subject       string    `bson:"subject"`
	Sender        string    `bson:"sender"`
	ReceivedAt    time.Time `bson:"received_at"`

	IsJobRelated    bool    `bson:"is_job_related"`
	Category        string  `bson:"category"`
	CompanyName     string  `bson:"company_name,omitempty"`
	JobTitle        string  `bson:"job_title,omitempty"`
	SuggestedStatus string  `bson:"suggested_status,omitempty"`
	Confidence      float64 `bson:"confidence"`
	Reasoning       string  `bson:"reasoning,omitempty"`
	Source          string  `bson:"source"`
	Model           string  `bson:"model,omitempty"`
	Judgment        string  `bson:"judgment,omitempty"`

	Outcome    string    `bson:"outcome"`
	ArchivedAt time.Time `bson:"archived_at"`
	ExpiresAt  time.Time `bson:"expires_at"`
}

func (a *MessageArchive) toDocument(msg *out.ArchivedMessage) *classifiedMessageDocument {
	archivedAt := msg.ArchivedAt
	if archivedAt.IsZero() {
		archivedAt = time.Now()
	}
	res := msg.Result
	doc := &classifiedMessageDocument{
		IntegrationID: msg.IntegrationID.String(),
		UserID:        msg.UserID.String(),
		MessageID:     msg.MessageID,
		Subject:       msg.Subject,
		Sender:        msg.Sender,
		ReceivedAt:    msg.ReceivedAt.UTC(),
		IsJobRelated:  res.IsJobRelated,
		Category:      string(res.Category),
		CompanyName:   res.CompanyName,
		JobTitle:      res.JobTitle,
		Confidence:    res.Confidence,
		Reasoning:     res.Reasoning,
		Source:        string(res.Source),
		Model:         res.Model,
		Judgment:      string(res.Raw),
		Outcome:       msg.Outcome,
		ArchivedAt:    archivedAt.UTC(),
		ExpiresAt:     archivedAt.Add(a.ttl).UTC(),
	}
	if res.SuggestedStatus != nil {
		doc.SuggestedStatus = string(*res.SuggestedStatus)
	}
	return doc
}

// Save upserts the classified message.
func (a *MessageArchive) Save(ctx context.Context, msg *out.ArchivedMessage) error {
	doc := a.toDocument(msg)
	filter := bson.M{"integration_id": doc.IntegrationID, "message_id": doc.MessageID}

	_, err := a.collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to archive message %s: %w", msg.MessageID, err)
	}
	return nil
}
