package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulib/edulib-api/internal/models"
	appErrors "github.com/edulib/edulib-api/pkg/errors"
	"github.com/edulib/edulib-api/pkg/jobs"
)

type mockRatingValues struct {
	values map[string][]int
	calls  int
}

func (m *mockRatingValues) ListRatingValues(ctx context.Context, resourceID string) ([]int, error) {
	m.calls++
	return m.values[resourceID], nil
}

type mockTopTags struct {
	counts []models.TagCount
}

func (m *mockTopTags) TopTags(ctx context.Context, limit int) ([]models.TagCount, error) {
	if limit < len(m.counts) {
		return m.counts[:limit], nil
	}
	return m.counts, nil
}

type mockStatsCache struct {
	entries map[string]interface{}
	deleted []string
}

func newMockStatsCache() *mockStatsCache {
	return &mockStatsCache{entries: make(map[string]interface{})}
}

func (m *mockStatsCache) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	switch d := dest.(type) {
	case *models.RatingSummary:
		*d = v.(models.RatingSummary)
	case *[]models.TagCount:
		*d = v.([]models.TagCount)
	}
	return nil
}

func (m *mockStatsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.entries[key] = value
	return nil
}

func (m *mockStatsCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	delete(m.entries, pattern)
	return nil
}

func TestComputeRatingSummary(t *testing.T) {
	tests := []struct {
		name    string
		values  []int
		average float64
		count   int
	}{
		{"empty set is zero, not an error", nil, 0, 0},
		{"single value", []int{3}, 3, 1},
		{"two values", []int{4, 5}, 4.5, 2},
		{"full spread", []int{1, 2, 3, 4, 5}, 3, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := ComputeRatingSummary(tt.values)
			assert.Equal(t, tt.average, summary.Average)
			assert.Equal(t, tt.count, summary.Count)
		})
	}
}

func TestRatingSummaryRecomputesOnMiss(t *testing.T) {
	ratings := &mockRatingValues{values: map[string][]int{"r1": {4, 5}}}
	cache := newMockStatsCache()
	svc := NewStatsService(ratings, &mockTopTags{}, cache, nil, time.Minute, nil)

	summary, err := svc.RatingSummary(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 4.5, summary.Average)
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, 1, ratings.calls)

	// Second read is served from cache.
	summary, err = svc.RatingSummary(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 4.5, summary.Average)
	assert.Equal(t, 1, ratings.calls)
}

func TestRatingSummaryWithoutCache(t *testing.T) {
	ratings := &mockRatingValues{values: map[string][]int{"r1": {2}}}
	svc := NewStatsService(ratings, &mockTopTags{}, nil, nil, time.Minute, nil)

	summary, err := svc.RatingSummary(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, float64(2), summary.Average)

	_, err = svc.RatingSummary(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, ratings.calls)
}

func TestHandleJobRecomputesSummary(t *testing.T) {
	ratings := &mockRatingValues{values: map[string][]int{"r1": {5, 5, 5}}}
	cache := newMockStatsCache()
	svc := NewStatsService(ratings, &mockTopTags{}, cache, nil, time.Minute, nil)

	err := svc.HandleJob(context.Background(), jobs.Job{Type: "recompute_rating_summary", Payload: "r1"})
	require.NoError(t, err)

	cached, ok := cache.entries["stats:rating:r1"].(models.RatingSummary)
	require.True(t, ok)
	assert.Equal(t, float64(5), cached.Average)
	assert.Equal(t, 3, cached.Count)
}

func TestHandleJobRejectsUnknownType(t *testing.T) {
	svc := NewStatsService(&mockRatingValues{}, &mockTopTags{}, nil, nil, time.Minute, nil)

	err := svc.HandleJob(context.Background(), jobs.Job{Type: "resize_thumbnails"})
	require.Error(t, err)
}

func TestInvalidateWithoutQueueDeletesCache(t *testing.T) {
	cache := newMockStatsCache()
	cache.entries["stats:rating:r1"] = models.RatingSummary{Average: 1, Count: 1}
	svc := NewStatsService(&mockRatingValues{}, &mockTopTags{}, cache, nil, time.Minute, nil)

	svc.InvalidateRatingSummary("r1")
	assert.Contains(t, cache.deleted, "stats:rating:r1")
}

func TestRatingSummaryCountsCacheHitsAndMisses(t *testing.T) {
	ratings := &mockRatingValues{values: map[string][]int{"r1": {4}}}
	cache := newMockStatsCache()
	metrics := NewMetricsService()
	svc := NewStatsService(ratings, &mockTopTags{}, cache, metrics, time.Minute, nil)

	_, err := svc.RatingSummary(context.Background(), "r1")
	require.NoError(t, err)
	_, err = svc.RatingSummary(context.Background(), "r1")
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))
}

func TestTopTagsClampsLimit(t *testing.T) {
	tags := &mockTopTags{counts: []models.TagCount{
		{ID: "t1", Name: "algebra", Count: 9},
		{ID: "t2", Name: "biology", Count: 4},
	}}
	svc := NewStatsService(&mockRatingValues{}, tags, nil, nil, time.Minute, nil)

	counts, err := svc.TopTags(context.Background(), -3)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "algebra", counts[0].Name)
}
