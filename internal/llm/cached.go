package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/zombar/newscheck/internal/models"
)

// Cached memoizes successful judgments per article and throttles calls to
// the wrapped Judge
type Cached struct {
	judge   Judge
	cache   *gocache.Cache
	ttl     time.Duration
	limiter *rate.Limiter
}

// NewCached wraps j. A ttl <= 0 disables caching and rps <= 0 disables throttling.
func NewCached(j Judge, ttl time.Duration, rps float64) *Cached {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	c := &Cached{
		judge:   j,
		ttl:     ttl,
		limiter: rate.NewLimiter(limit, 1),
	}
	if ttl > 0 {
		c.cache = gocache.New(ttl, 2*ttl)
	}
	return c
}

// Name returns the wrapped judge name
func (c *Cached) Name() string {
	return c.judge.Name()
}

// Judge returns a cached judgment when available, otherwise waits for the
// limiter and asks the wrapped judge. Errors are never cached.
func (c *Cached) Judge(ctx context.Context, article models.Article) (models.Judgment, error) {
	key := cacheKey(article)
	if c.cache != nil {
		if val, found := c.cache.Get(key); found {
			return val.(models.Judgment), nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return models.Judgment{}, fmt.Errorf("rate limiter: %w", err)
	}

	judgment, err := c.judge.Judge(ctx, article)
	if err != nil {
		return models.Judgment{}, err
	}

	if c.cache != nil {
		c.cache.Set(key, judgment, c.ttl)
	}
	return judgment, nil
}

func cacheKey(article models.Article) string {
	h := sha256.New()
	h.Write([]byte(article.Title))
	h.Write([]byte{0})
	h.Write([]byte(article.Source))
	h.Write([]byte{0})
	h.Write([]byte(article.Body))
	return hex.EncodeToString(h.Sum(nil))
}
