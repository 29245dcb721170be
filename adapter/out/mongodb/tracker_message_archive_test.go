package mongodb

import (
	"testing"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMessageArchive_ToDocument(t *testing.T) {
	archive := &MessageArchive{ttl: 48 * time.Hour}
	at := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	msg := &out.ArchivedMessage{
		IntegrationID: uuid.New(),
		UserID:        uuid.New(),
		MessageID:     "m-1",
		Subject:       "Interview invitation",
		Sender:        "hr@acme.com",
		ReceivedAt:    at.Add(-time.Hour),
		Result: domain.ClassificationResult{
			IsJobRelated:    true,
			Category:        domain.CategoryInterview,
			CompanyName:     "Acme",
			JobTitle:        "SRE",
			SuggestedStatus: domain.StatusPtr(domain.StatusInterview),
			Confidence:      0.9,
			Source:          domain.ClassifiedByAI,
			Model:           "gpt-4o-mini",
			Raw:             []byte(`{"category":"interview"}`),
		},
		Outcome:    "updated",
		ArchivedAt: at,
	}

	doc := archive.toDocument(msg)
	assert.Equal(t, msg.IntegrationID.String(), doc.IntegrationID)
	assert.Equal(t, "interview", doc.SuggestedStatus)
	assert.Equal(t, `{"category":"interview"}`, doc.Judgment)
	assert.Equal(t, at.Add(48*time.Hour), doc.ExpiresAt)

	raw, err := bson.Marshal(doc)
	assert.NoError(t, err)
	var decoded bson.M
	assert.NoError(t, bson.Unmarshal(raw, &decoded))
	assert.Equal(t, "m-1", decoded["message_id"])
	assert.Equal(t, "updated", decoded["outcome"])
}

func TestMessageArchive_DefaultsTTLAndTimestamp(t *testing.T) {
	archive := &MessageArchive{ttl: defaultArchiveTTL}
	doc := archive.toDocument(&out.ArchivedMessage{MessageID: "m-2"})
	assert.False(t, doc.ArchivedAt.IsZero())
	assert.Equal(t, doc.ArchivedAt.Add(defaultArchiveTTL), doc.ExpiresAt)
	assert.Empty(t, doc.SuggestedStatus)
}
