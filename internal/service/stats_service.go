package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edulib/edulib-api/internal/models"
	appErrors "github.com/edulib/edulib-api/pkg/errors"
	"github.com/edulib/edulib-api/pkg/jobs"
)

const (
	ratingSummaryKeyPrefix = "stats:rating:"
	topTagsKey             = "stats:top_tags"

	jobRecomputeRatingSummary = "recompute_rating_summary"
)

type ratingValuesRepo interface {
	ListRatingValues(ctx context.Context, resourceID string) ([]int, error)
}

type topTagsRepo interface {
	TopTags(ctx context.Context, limit int) ([]models.TagCount, error)
}

// StatsCache is the cache surface consumed by StatsService.
type StatsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ComputeRatingSummary derives the aggregate for a set of rating values.
// The empty set yields average 0 and count 0, not an error.
func ComputeRatingSummary(values []int) models.RatingSummary {
	if len(values) == 0 {
		return models.RatingSummary{}
	}
	var sum int
	for _, v := range values {
		sum += v
	}
	return models.RatingSummary{
		Average: float64(sum) / float64(len(values)),
		Count:   len(values),
	}
}

// StatsService computes derived aggregates. Summaries are always recomputed
// from the underlying rows, never incrementally patched; the cache only
// bounds how often that recompute runs.
type StatsService struct {
	ratings  ratingValuesRepo
	tags     topTagsRepo
	cache    StatsCache
	metrics  *MetricsService
	queue    *jobs.Queue
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewStatsService constructs a StatsService instance. cache and metrics may be
// nil; without a cache every read recomputes.
func NewStatsService(ratings ratingValuesRepo, tags topTagsRepo, cache StatsCache, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &StatsService{ratings: ratings, tags: tags, cache: cache, metrics: metrics, cacheTTL: cacheTTL, logger: logger}
}

// AttachQueue wires the background queue used for recompute-on-write. Without
// a queue, invalidation degrades to cache deletion and the next read
// recomputes inline.
func (s *StatsService) AttachQueue(queue *jobs.Queue) {
	s.queue = queue
}

// HandleJob processes a queued recompute task.
func (s *StatsService) HandleJob(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobRecomputeRatingSummary:
		resourceID, ok := job.Payload.(string)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return s.recomputeRatingSummary(ctx, resourceID)
	default:
		return fmt.Errorf("unknown job type %s", job.Type)
	}
}

// RatingSummary returns the rating aggregate for a resource, served from
// cache when fresh.
func (s *StatsService) RatingSummary(ctx context.Context, resourceID string) (models.RatingSummary, error) {
	key := ratingSummaryKeyPrefix + resourceID

	if s.cache != nil {
		var cached models.RatingSummary
		err := s.cache.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("rating summary cache read failed", zap.String("resource_id", resourceID), zap.Error(err))
		}
	}

	values, err := s.ratings.ListRatingValues(ctx, resourceID)
	if err != nil {
		return models.RatingSummary{}, fmt.Errorf("load rating values: %w", err)
	}
	summary := ComputeRatingSummary(values)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.cacheTTL); err != nil {
			s.logger.Warn("rating summary cache write failed", zap.String("resource_id", resourceID), zap.Error(err))
		}
	}
	return summary, nil
}

// TopTags returns the most used tags over publicly listable resources.
// Ordering is count descending with name ascending as tie-break.
func (s *StatsService) TopTags(ctx context.Context, limit int) ([]models.TagCount, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	key := fmt.Sprintf("%s:%d", topTagsKey, limit)

	if s.cache != nil {
		var cached []models.TagCount
		err := s.cache.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("top tags cache read failed", zap.Error(err))
		}
	}

	counts, err := s.tags.TopTags(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute top tags")
	}
	if counts == nil {
		counts = []models.TagCount{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, counts, s.cacheTTL); err != nil {
			s.logger.Warn("top tags cache write failed", zap.Error(err))
		}
	}
	return counts, nil
}

// InvalidateRatingSummary schedules a recompute after a rating write. The
// summary a concurrent reader sees is stale for at most the cache TTL plus
// queue latency.
func (s *StatsService) InvalidateRatingSummary(resourceID string) {
	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{
			ID:      uuid.NewString(),
			Type:    jobRecomputeRatingSummary,
			Payload: resourceID,
		})
		if err == nil {
			return
		}
		s.logger.Warn("failed to enqueue rating recompute", zap.String("resource_id", resourceID), zap.Error(err))
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(context.Background(), ratingSummaryKeyPrefix+resourceID); err != nil {
			s.logger.Warn("failed to invalidate rating summary", zap.String("resource_id", resourceID), zap.Error(err))
		}
	}
}

func (s *StatsService) recomputeRatingSummary(ctx context.Context, resourceID string) error {
	values, err := s.ratings.ListRatingValues(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("recompute rating summary: %w", err)
	}
	summary := ComputeRatingSummary(values)

	if s.cache != nil {
		if err := s.cache.Set(ctx, ratingSummaryKeyPrefix+resourceID, summary, s.cacheTTL); err != nil {
			return fmt.Errorf("store recomputed summary: %w", err)
		}
	}
	return nil
}
