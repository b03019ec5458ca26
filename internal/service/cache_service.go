package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/measure-api/internal/models"
	appErrors "github.com/noah-isme/measure-api/pkg/errors"
)

const (
	listCachePrefix      = "measures:list:"
	listGenerationPrefix = "measures:gen:"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Counter(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// CacheService is a best-effort read-through cache. Failures are logged and
// reported as misses so the database stays the source of truth.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get fills dest and reports a hit. Errors count as misses.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores value under key for the configured TTL.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// ListGeneration returns the customer's listing generation. Listings are
// keyed by it, so a listing loaded before an invalidation is written under a
// key no later read uses. ok is false when the cache is off or the counter
// cannot be read, and the caller must then bypass the cache.
func (s *CacheService) ListGeneration(ctx context.Context, customerCode string) (gen int64, ok bool) {
	if !s.Enabled() {
		return 0, false
	}
	key := listGenerationPrefix + customerCode
	gen, err := s.repo.Counter(ctx, key)
	if err != nil {
		s.logger.Warn("cache generation read failed", zap.String("key", key), zap.Error(err))
		return 0, false
	}
	return gen, true
}

// InvalidateCustomer bumps the customer's listing generation and drops the
// listings cached under older ones. Generation keys never expire.
func (s *CacheService) InvalidateCustomer(ctx context.Context, customerCode string) {
	if !s.Enabled() {
		return
	}
	key := listGenerationPrefix + customerCode
	if _, err := s.repo.Incr(ctx, key); err != nil {
		s.logger.Warn("cache generation bump failed", zap.String("key", key), zap.Error(err))
	}
	pattern := listCachePrefix + customerCode + ":*"
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

// listCacheKey is measures:list:{customer}:{generation}:{type|ALL}.
func listCacheKey(filter models.MeasureFilter, gen int64) string {
	t := string(filter.Type)
	if t == "" {
		t = "ALL"
	}
	return listCachePrefix + filter.CustomerCode + ":" + strconv.FormatInt(gen, 10) + ":" + t
}
