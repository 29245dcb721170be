package classification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"tracker_server/core/domain"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/metrics"
)

// DefaultJudgmentTTL is how long a model judgment is reused.
const DefaultJudgmentTTL = 7 * 24 * time.Hour

// JudgmentCache stores judgments as JSON. pkg/cache.RedisCache satisfies it.
type JudgmentCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Judge is anything that classifies an email.
type Judge interface {
	Classify(ctx context.Context, email EmailInput) domain.ClassificationResult
}

// CachedClassifier reuses model judgments for identical emails. Fallback
// judgments are cheap and never cached, so a later run can still reach the
// model.
type CachedClassifier struct {
	inner Judge
	cache JudgmentCache
	ttl   time.Duration
}

func NewCachedClassifier(inner Judge, cache JudgmentCache, ttl time.Duration) *CachedClassifier {
	if ttl <= 0 {
		ttl = DefaultJudgmentTTL
	}
	return &CachedClassifier{inner: inner, cache: cache, ttl: ttl}
}

type cachedJudgment struct {
	Result domain.ClassificationResult `json:"result"`
	Raw    string                      `json:"raw,omitempty"`
}

func (c *CachedClassifier) Classify(ctx context.Context, email EmailInput) domain.ClassificationResult {
	key := judgmentKey(email)

	var hit cachedJudgment
	found, err := c.cache.GetJSON(ctx, key, &hit)
	switch {
	case err != nil:
		metrics.ClassifierCacheTotal.WithLabelValues("error").Inc()
		logger.WithError(err).Warn("[CachedClassifier] cache read failed")
	case found:
		metrics.ClassifierCacheTotal.WithLabelValues("hit").Inc()
		result := hit.Result
		if hit.Raw != "" {
			result.Raw = []byte(hit.Raw)
		}
		return result
	default:
		metrics.ClassifierCacheTotal.WithLabelValues("miss").Inc()
	}

	result := c.inner.Classify(ctx, email)
	if result.Source != domain.ClassifiedByAI {
		return result
	}
	entry := cachedJudgment{Result: result, Raw: string(result.Raw)}
	if err := c.cache.SetJSON(ctx, key, entry, c.ttl); err != nil {
		logger.WithError(err).Warn("[CachedClassifier] cache write failed")
	}
	return result
}

func judgmentKey(email EmailInput) string {
	h := sha256.New()
	h.Write([]byte(email.Subject))
	h.Write([]byte{0})
	h.Write([]byte(email.Sender))
	h.Write([]byte{0})
	h.Write([]byte(email.Body))
	return hex.EncodeToString(h.Sum(nil))
}
