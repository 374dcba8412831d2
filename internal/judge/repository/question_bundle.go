package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"codejudge/internal/common/storage"
	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	bundleContentType    = "application/zstd"
	defaultBundleTTL     = 5 * time.Minute
	bundleRefreshTimeout = 30 * time.Second
)

// BundleQuestionRepository serves questions from a zstd-compressed JSON bundle
// object. The bundle is reloaded when its ETag changes, checked at most once per ttl.
// Concurrent lookups share one refresh and never hold the lock across storage calls.
type BundleQuestionRepository struct {
	store  storage.ObjectStorage
	bucket string
	key    string
	ttl    time.Duration
	now    func() time.Time
	flight singleflight.Group

	mu        sync.RWMutex
	index     *FileQuestionRepository
	etag      string
	checkedAt time.Time
}

// NewBundleQuestionRepository creates a lazily loaded bundle source.
func NewBundleQuestionRepository(store storage.ObjectStorage, bucket, key string, ttl time.Duration) *BundleQuestionRepository {
	if ttl <= 0 {
		ttl = defaultBundleTTL
	}
	return &BundleQuestionRepository{store: store, bucket: bucket, key: key, ttl: ttl, now: time.Now}
}

// GetQuestion refreshes the bundle if due and looks id up.
func (r *BundleQuestionRepository) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	index, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	return index.GetQuestion(ctx, id)
}

// current returns the loaded index, joining the shared refresh when the ttl
// has passed. A caller whose ctx ends first gets the stale copy if one exists.
func (r *BundleQuestionRepository) current(ctx context.Context) (*FileQuestionRepository, error) {
	r.mu.RLock()
	index, checkedAt := r.index, r.checkedAt
	r.mu.RUnlock()
	if index != nil && r.now().Sub(checkedAt) < r.ttl {
		return index, nil
	}

	ch := r.flight.DoChan(r.bucket+"/"+r.key, func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bundleRefreshTimeout)
		defer cancel()
		return r.refresh(refreshCtx)
	})
	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(*FileQuestionRepository), nil
		}
		if index == nil {
			return nil, res.Err
		}
		logger.Warn(ctx, "refresh question bundle failed, serving stale copy",
			zap.String("bucket", r.bucket), zap.String("key", r.key), zap.Error(res.Err))
		return index, nil
	case <-ctx.Done():
		if index != nil {
			return index, nil
		}
		return nil, appErr.Wrapf(ctx.Err(), appErr.QuestionSourceDown, "wait for question bundle failed")
	}
}

// refresh loads the bundle and swaps it in. A failed check still counts
// against the ttl once a copy is loaded.
func (r *BundleQuestionRepository) refresh(ctx context.Context) (*FileQuestionRepository, error) {
	r.mu.RLock()
	index, etag := r.index, r.etag
	r.mu.RUnlock()

	checkedAt := r.now()
	next, nextTag, err := r.load(ctx, index, etag)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		if r.index != nil {
			r.checkedAt = checkedAt
		}
		return nil, err
	}
	r.index, r.etag, r.checkedAt = next, nextTag, checkedAt
	return next, nil
}

func (r *BundleQuestionRepository) load(ctx context.Context, index *FileQuestionRepository, etag string) (*FileQuestionRepository, string, error) {
	stat, err := r.store.StatObject(ctx, r.bucket, r.key)
	if err != nil {
		return nil, "", appErr.Wrapf(err, appErr.QuestionSourceDown, "stat question bundle failed")
	}
	if index != nil && stat.ETag != "" && stat.ETag == etag {
		return index, etag, nil
	}

	reader, err := r.store.GetObject(ctx, r.bucket, r.key)
	if err != nil {
		return nil, "", appErr.Wrapf(err, appErr.QuestionSourceDown, "download question bundle failed")
	}
	defer reader.Close()

	questions, err := DecodeBundle(reader)
	if err != nil {
		return nil, "", err
	}
	next, err := NewMemoryQuestionRepository(questions)
	if err != nil {
		return nil, "", err
	}
	logger.Info(ctx, "question bundle loaded", zap.Int("questions", next.Len()), zap.String("etag", stat.ETag))
	return next, stat.ETag, nil
}

// DecodeBundle reads a zstd-compressed JSON question bank.
func DecodeBundle(r io.Reader) ([]model.Question, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidFormat, "open bundle decoder failed")
	}
	defer dec.Close()

	var bank questionBank
	if err := json.NewDecoder(dec).Decode(&bank); err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidFormat, "decode question bundle failed")
	}
	return bank.Questions, nil
}

// EncodeBundle compresses questions into the bundle format.
func EncodeBundle(questions []model.Question) ([]byte, error) {
	payload, err := json.Marshal(questionBank{Questions: questions})
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidFormat, "encode question bundle failed")
	}
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "open bundle encoder failed")
	}
	if _, err := enc.Write(payload); err != nil {
		_ = enc.Close()
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "compress question bundle failed")
	}
	if err := enc.Close(); err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "compress question bundle failed")
	}
	return buf.Bytes(), nil
}

// PublishBundle encodes questions and uploads them as one object.
func PublishBundle(ctx context.Context, store storage.ObjectStorage, bucket, key string, questions []model.Question) (int, error) {
	data, err := EncodeBundle(questions)
	if err != nil {
		return 0, err
	}
	if err := store.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), bundleContentType); err != nil {
		return 0, appErr.Wrapf(err, appErr.QuestionSourceDown, "upload question bundle failed")
	}
	return len(data), nil
}
