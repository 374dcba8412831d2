package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"codejudge/internal/common/cache"
	"codejudge/internal/judge/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type countingRepo struct {
	calls     int
	questions map[string]*model.Question
	err       error
}

func (r *countingRepo) GetQuestion(_ context.Context, id string) (*model.Question, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.questions[id], nil
}

func newTestCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("create cache failed: %v", err)
	}
	return c, mr
}

func TestCachedQuestionRepositoryHit(t *testing.T) {
	c, mr := newTestCache(t)
	backend := &countingRepo{questions: map[string]*model.Question{
		"q1": {ID: "q1", Topic: "Math", TestCases: []model.TestCase{{Input: "1", Output: "1"}}},
	}}
	repo := NewCachedQuestionRepository(backend, c, time.Minute, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		q, err := repo.GetQuestion(ctx, "q1")
		if err != nil || q == nil || q.Topic != "Math" {
			t.Fatalf("unexpected lookup result: %v %v", q, err)
		}
	}
	if backend.calls != 1 {
		t.Fatalf("expected one backend call, got %d", backend.calls)
	}
	if !mr.Exists(questionKeyPrefix + "q1") {
		t.Fatalf("expected cached key")
	}
}

func TestCachedQuestionRepositoryCachesMisses(t *testing.T) {
	c, mr := newTestCache(t)
	backend := &countingRepo{questions: map[string]*model.Question{}}
	repo := NewCachedQuestionRepository(backend, c, time.Minute, 30*time.Second)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		q, err := repo.GetQuestion(ctx, "missing")
		if err != nil || q != nil {
			t.Fatalf("expected nil, nil, got %v %v", q, err)
		}
	}
	if backend.calls != 1 {
		t.Fatalf("expected one backend call, got %d", backend.calls)
	}
	val, err := mr.Get(questionKeyPrefix + "missing")
	if err != nil || val != cache.NullCacheValue {
		t.Fatalf("expected null marker, got %q %v", val, err)
	}

	mr.FastForward(time.Minute)
	if _, err := repo.GetQuestion(ctx, "missing"); err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if backend.calls != 2 {
		t.Fatalf("expected miss marker to expire, calls=%d", backend.calls)
	}
}

func TestCachedQuestionRepositoryPropagatesErrors(t *testing.T) {
	c, mr := newTestCache(t)
	backend := &countingRepo{err: errors.New("db down")}
	repo := NewCachedQuestionRepository(backend, c, time.Minute, time.Second)

	if _, err := repo.GetQuestion(context.Background(), "q1"); err == nil {
		t.Fatalf("expected error")
	}
	if mr.Exists(questionKeyPrefix + "q1") {
		t.Fatalf("errors must not be cached")
	}
}

func TestCachedQuestionRepositoryFallsThroughWhenRedisDown(t *testing.T) {
	c, mr := newTestCache(t)
	backend := &countingRepo{questions: map[string]*model.Question{"q1": {ID: "q1"}}}
	repo := NewCachedQuestionRepository(backend, c, time.Minute, time.Second)
	mr.Close()

	q, err := repo.GetQuestion(context.Background(), "q1")
	if err != nil || q == nil {
		t.Fatalf("expected backend result, got %v %v", q, err)
	}
}
