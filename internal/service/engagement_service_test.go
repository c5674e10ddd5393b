package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulib/edulib-api/internal/models"
	appErrors "github.com/edulib/edulib-api/pkg/errors"
)

type mockEngagementRepo struct {
	ratings  map[string]map[string]int // resourceID -> userID -> value
	comments map[string]*models.Comment
	saves    map[string]map[string]bool
	deleted  []string
}

func newMockEngagementRepo() *mockEngagementRepo {
	return &mockEngagementRepo{
		ratings:  make(map[string]map[string]int),
		comments: make(map[string]*models.Comment),
		saves:    make(map[string]map[string]bool),
	}
}

func (m *mockEngagementRepo) UpsertRating(ctx context.Context, rating *models.Rating) error {
	if m.ratings[rating.ResourceID] == nil {
		m.ratings[rating.ResourceID] = make(map[string]int)
	}
	m.ratings[rating.ResourceID][rating.UserID] = rating.Value
	return nil
}

func (m *mockEngagementRepo) FindUserRating(ctx context.Context, resourceID, userID string) (*models.Rating, error) {
	if v, ok := m.ratings[resourceID][userID]; ok {
		return &models.Rating{ResourceID: resourceID, UserID: userID, Value: v}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEngagementRepo) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = "c1"
	}
	m.comments[comment.ID] = comment
	return nil
}

func (m *mockEngagementRepo) FindCommentByID(ctx context.Context, id string) (*models.Comment, error) {
	if c, ok := m.comments[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEngagementRepo) ListComments(ctx context.Context, resourceID string) ([]models.Comment, error) {
	var out []models.Comment
	for _, c := range m.comments {
		if c.ResourceID == resourceID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockEngagementRepo) DeleteComment(ctx context.Context, id string) error {
	delete(m.comments, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockEngagementRepo) ToggleSave(ctx context.Context, userID, resourceID string) (bool, error) {
	if m.saves[resourceID] == nil {
		m.saves[resourceID] = make(map[string]bool)
	}
	if m.saves[resourceID][userID] {
		delete(m.saves[resourceID], userID)
		return false, nil
	}
	m.saves[resourceID][userID] = true
	return true, nil
}

func (m *mockEngagementRepo) IsSaved(ctx context.Context, userID, resourceID string) (bool, error) {
	return m.saves[resourceID][userID], nil
}

type mockResourceFinder struct {
	resources map[string]*models.Resource
}

func (m *mockResourceFinder) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	if r, ok := m.resources[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type mockInvalidator struct {
	invalidated []string
}

func (m *mockInvalidator) InvalidateRatingSummary(resourceID string) {
	m.invalidated = append(m.invalidated, resourceID)
}

func engagementFixture() (*mockEngagementRepo, *mockResourceFinder, *mockUserRepo, *mockInvalidator) {
	engagement := newMockEngagementRepo()
	resources := &mockResourceFinder{resources: map[string]*models.Resource{
		"public":  {ID: "public", OwnerID: "owner", Status: models.ResourceApproved},
		"pending": {ID: "pending", OwnerID: "owner", Status: models.ResourcePending},
		"hidden":  {ID: "hidden", OwnerID: "owner", Status: models.ResourceApproved, Hidden: true},
	}}
	users := newUserFixture()
	invalidator := &mockInvalidator{}
	return engagement, resources, users, invalidator
}

func TestRateUpsertsAndInvalidates(t *testing.T) {
	engagement, resources, users, invalidator := engagementFixture()
	svc := NewEngagementService(engagement, resources, users, invalidator, nil, nil)

	rating, err := svc.Rate(context.Background(), "student", "public", RateRequest{Value: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, rating.Value)

	// Re-rating replaces the previous value, no second row.
	rating, err = svc.Rate(context.Background(), "student", "public", RateRequest{Value: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, rating.Value)
	assert.Len(t, engagement.ratings["public"], 1)
	assert.Equal(t, []string{"public", "public"}, invalidator.invalidated)
}

func TestRateValueOutOfRange(t *testing.T) {
	engagement, resources, users, invalidator := engagementFixture()
	svc := NewEngagementService(engagement, resources, users, invalidator, nil, nil)

	_, err := svc.Rate(context.Background(), "student", "public", RateRequest{Value: 6})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRateNonListableResource(t *testing.T) {
	engagement, resources, users, invalidator := engagementFixture()
	svc := NewEngagementService(engagement, resources, users, invalidator, nil, nil)

	_, err := svc.Rate(context.Background(), "student", "pending", RateRequest{Value: 3})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRateBlockedUser(t *testing.T) {
	engagement, resources, users, invalidator := engagementFixture()
	users.users["student"].Blocked = true
	svc := NewEngagementService(engagement, resources, users, invalidator, nil, nil)

	_, err := svc.Rate(context.Background(), "student", "public", RateRequest{Value: 3})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	// The block wins even over a malformed payload.
	_, err = svc.Rate(context.Background(), "student", "public", RateRequest{Value: 42})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestCommentOnHiddenResourceForbidden(t *testing.T) {
	engagement, resources, users, invalidator := engagementFixture()
	svc := NewEngagementService(engagement, resources, users, invalidator, nil, nil)

	_, err := svc.Comment(context.Background(), "student", "hidden", CommentRequest{Text: "nice"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCommentBlockedUserWithEmptyText(t *testing.T) {
	engagement, resources, users, invalidator := engagementFixture()
	users.users["student"].Blocked = true
	svc := NewEngagementService(engagement, resources, users, invalidator, nil, nil)

	_, err := svc.Comment(context.Background(), "student", "public", CommentRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestCommentCarriesAuthorName(t *testing.T) {
	engagement, resources, users, invalidator := engagementFixture()
	users.users["student"].DisplayName = "Student Name"
	svc := NewEngagementService(engagement, resources, users, invalidator, nil, nil)

	comment, err := svc.Comment(context.Background(), "student", "public", CommentRequest{Text: "  great material  "})
	require.NoError(t, err)
	assert.Equal(t, "great material", comment.Text)
	assert.Equal(t, "Student Name", comment.AuthorName)
}

func TestDeleteCommentByStranger(t *testing.T) {
	engagement, resources, users, invalidator := engagementFixture()
	engagement.comments["c1"] = &models.Comment{ID: "c1", ResourceID: "public", AuthorID: "owner"}
	svc := NewEngagementService(engagement, resources, users, invalidator, nil, nil)

	err := svc.DeleteComment(context.Background(), "student", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDeleteCommentByStaff(t *testing.T) {
	engagement, resources, users, invalidator := engagementFixture()
	engagement.comments["c1"] = &models.Comment{ID: "c1", ResourceID: "public", AuthorID: "owner"}
	svc := NewEngagementService(engagement, resources, users, invalidator, nil, nil)

	err := svc.DeleteComment(context.Background(), "staff", "c1")
	require.NoError(t, err)
	assert.Contains(t, engagement.deleted, "c1")
}

func TestToggleSaveIsItsOwnInverse(t *testing.T) {
	engagement, resources, users, invalidator := engagementFixture()
	svc := NewEngagementService(engagement, resources, users, invalidator, nil, nil)

	state, err := svc.ToggleSave(context.Background(), "student", "public")
	require.NoError(t, err)
	assert.True(t, state.Saved)

	state, err = svc.ToggleSave(context.Background(), "student", "public")
	require.NoError(t, err)
	assert.False(t, state.Saved)
}
