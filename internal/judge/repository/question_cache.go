package repository

import (
	"context"
	"encoding/json"
	"time"

	"codejudge/internal/common/cache"
	"codejudge/internal/judge/model"
)

const (
	questionKeyPrefix      = "judge:question:"
	defaultQuestionTTL     = 10 * time.Minute
	defaultQuestionMissTTL = time.Minute
)

// CachedQuestionRepository puts a Redis cache-aside layer in front of another
// repository. Misses are cached too.
type CachedQuestionRepository struct {
	next    QuestionRepository
	cache   cache.Cache
	ttl     time.Duration
	missTTL time.Duration
}

// NewCachedQuestionRepository wraps next. Zero ttls fall back to defaults.
func NewCachedQuestionRepository(next QuestionRepository, cacheClient cache.Cache, ttl, missTTL time.Duration) *CachedQuestionRepository {
	if ttl <= 0 {
		ttl = defaultQuestionTTL
	}
	if missTTL <= 0 {
		missTTL = defaultQuestionMissTTL
	}
	return &CachedQuestionRepository{next: next, cache: cacheClient, ttl: ttl, missTTL: missTTL}
}

// GetQuestion reads through the cache.
func (r *CachedQuestionRepository) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	return cache.GetWithCached(ctx, r.cache, questionKeyPrefix+id,
		cache.JitterTTL(r.ttl), r.missTTL,
		func(q *model.Question) bool { return q == nil },
		func(q *model.Question) (string, error) {
			data, err := json.Marshal(q)
			return string(data), err
		},
		func(data string) (*model.Question, error) {
			var q model.Question
			if err := json.Unmarshal([]byte(data), &q); err != nil {
				return nil, err
			}
			return &q, nil
		},
		func(ctx context.Context) (*model.Question, error) {
			return r.next.GetQuestion(ctx, id)
		},
	)
}
