package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulib/edulib-api/internal/models"
	"github.com/edulib/edulib-api/internal/repository"
	appErrors "github.com/edulib/edulib-api/pkg/errors"
)

type mockResourceRepo struct {
	resources map[string]*models.Resource
	deleted   []string
	lastVis   repository.ListVisibility
	views     map[string]int64
	downloads map[string]int64
}

func newMockResourceRepo() *mockResourceRepo {
	return &mockResourceRepo{
		resources: make(map[string]*models.Resource),
		views:     make(map[string]int64),
		downloads: make(map[string]int64),
	}
}

func (m *mockResourceRepo) Create(ctx context.Context, resource *models.Resource, tagIDs []string) error {
	if resource.ID == "" {
		resource.ID = "r-new"
	}
	copied := *resource
	m.resources[resource.ID] = &copied
	return nil
}

func (m *mockResourceRepo) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	if r, ok := m.resources[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockResourceRepo) UpdateStatus(ctx context.Context, id string, from, to models.ResourceStatus) (bool, error) {
	r, ok := m.resources[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	return true, nil
}

func (m *mockResourceRepo) SetHidden(ctx context.Context, id string, hidden bool) error {
	if r, ok := m.resources[id]; ok {
		r.Hidden = hidden
	}
	return nil
}

func (m *mockResourceRepo) SetProblematic(ctx context.Context, id string, problematic bool) error {
	if r, ok := m.resources[id]; ok {
		r.Problematic = problematic
	}
	return nil
}

func (m *mockResourceRepo) Delete(ctx context.Context, id string) error {
	delete(m.resources, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockResourceRepo) IncrementViews(ctx context.Context, id string) (int64, error) {
	if _, ok := m.resources[id]; !ok {
		return 0, sql.ErrNoRows
	}
	m.views[id]++
	return m.views[id], nil
}

func (m *mockResourceRepo) IncrementDownloads(ctx context.Context, id string) (int64, error) {
	if _, ok := m.resources[id]; !ok {
		return 0, sql.ErrNoRows
	}
	m.downloads[id]++
	return m.downloads[id], nil
}

func (m *mockResourceRepo) List(ctx context.Context, filter models.ResourceFilter, vis repository.ListVisibility) ([]models.Resource, int, error) {
	m.lastVis = vis
	var out []models.Resource
	for _, r := range m.resources {
		if vis.PublicOnly && !r.PubliclyListable() && r.OwnerID != vis.OwnerID {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *mockResourceRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.Resource, error) {
	var out []models.Resource
	for _, r := range m.resources {
		if r.OwnerID == ownerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockResourceRepo) ListPending(ctx context.Context) ([]models.Resource, error) {
	var out []models.Resource
	for _, r := range m.resources {
		if r.Status == models.ResourcePending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockResourceRepo) ListSavedBy(ctx context.Context, userID string) ([]models.Resource, error) {
	return nil, nil
}

type mockTagResolver struct{}

func (m *mockTagResolver) ResolveIDs(ctx context.Context, ids []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(ids))
	for _, id := range ids {
		tags = append(tags, models.Tag{ID: id, Name: "tag-" + id})
	}
	return tags, nil
}

type mockSummaryProvider struct {
	summary models.RatingSummary
}

func (m *mockSummaryProvider) RatingSummary(ctx context.Context, resourceID string) (models.RatingSummary, error) {
	return m.summary, nil
}

type mockSigner struct {
	lastResourceID string
	lastFileRef    string
}

func (m *mockSigner) Generate(resourceID, fileRef string) (string, time.Time, error) {
	m.lastResourceID, m.lastFileRef = resourceID, fileRef
	return "signed-token", time.Now().Add(15 * time.Minute), nil
}

func (m *mockSigner) Parse(token string) (string, string, time.Time, error) {
	if token != "signed-token" {
		return "", "", time.Time{}, appErrors.ErrUnauthorized
	}
	return m.lastResourceID, m.lastFileRef, time.Now().Add(15 * time.Minute), nil
}

type mockFileRemover struct {
	removed []string
}

func (m *mockFileRemover) Delete(fileRef string) error {
	m.removed = append(m.removed, fileRef)
	return nil
}

func newResourceService(repo *mockResourceRepo, users *mockUserRepo, files *mockFileRemover) *ResourceService {
	return NewResourceService(
		repo,
		users,
		&mockTagResolver{},
		newMockEngagementRepo(),
		&mockSummaryProvider{},
		&mockSigner{},
		files,
		nil,
		nil,
	)
}

func TestCreateStartsPending(t *testing.T) {
	repo := newMockResourceRepo()
	users := newUserFixture()
	svc := newResourceService(repo, users, nil)

	res, err := svc.Create(context.Background(), "student", CreateResourceRequest{
		Title:       "Linear algebra worksheets",
		Description: "A set of worksheets covering matrices and determinants.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ResourcePending, res.Status)
	assert.Equal(t, "student", res.OwnerID)
	assert.NotNil(t, res.Tags)
}

func TestCreateRejectsShortTitle(t *testing.T) {
	repo := newMockResourceRepo()
	users := newUserFixture()
	svc := newResourceService(repo, users, nil)

	_, err := svc.Create(context.Background(), "student", CreateResourceRequest{
		Title:       "ab",
		Description: "A set of worksheets covering matrices and determinants.",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestApprovePendingResource(t *testing.T) {
	repo := newMockResourceRepo()
	repo.resources["r1"] = &models.Resource{ID: "r1", OwnerID: "student", Status: models.ResourcePending}
	users := newUserFixture()
	svc := newResourceService(repo, users, nil)

	res, err := svc.Approve(context.Background(), "staff", "r1")
	require.NoError(t, err)
	assert.Equal(t, models.ResourceApproved, res.Status)
}

func TestApproveLosesRace(t *testing.T) {
	repo := newMockResourceRepo()
	repo.resources["r1"] = &models.Resource{ID: "r1", OwnerID: "student", Status: models.ResourceRejected}
	users := newUserFixture()
	svc := newResourceService(repo, users, nil)

	_, err := svc.Approve(context.Background(), "staff", "r1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "REJECTED")
}

func TestApproveMissingResource(t *testing.T) {
	repo := newMockResourceRepo()
	users := newUserFixture()
	svc := newResourceService(repo, users, nil)

	_, err := svc.Approve(context.Background(), "staff", "nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestApproveRequiresStaff(t *testing.T) {
	repo := newMockResourceRepo()
	repo.resources["r1"] = &models.Resource{ID: "r1", OwnerID: "student", Status: models.ResourcePending}
	users := newUserFixture()
	svc := newResourceService(repo, users, nil)

	_, err := svc.Approve(context.Background(), "student", "r1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDeleteByStranger(t *testing.T) {
	repo := newMockResourceRepo()
	repo.resources["r1"] = &models.Resource{ID: "r1", OwnerID: "someone-else", Status: models.ResourceApproved}
	users := newUserFixture()
	svc := newResourceService(repo, users, nil)

	err := svc.Delete(context.Background(), "student", "r1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

func TestDeleteByOwnerRemovesFile(t *testing.T) {
	repo := newMockResourceRepo()
	fileRef := "r1.pdf"
	repo.resources["r1"] = &models.Resource{ID: "r1", OwnerID: "student", Status: models.ResourceApproved, FileRef: &fileRef}
	users := newUserFixture()
	files := &mockFileRemover{}
	svc := newResourceService(repo, users, files)

	err := svc.Delete(context.Background(), "student", "r1")
	require.NoError(t, err)
	assert.Contains(t, repo.deleted, "r1")
	assert.Contains(t, files.removed, "r1.pdf")
}

func TestGetPendingResourceAnonymously(t *testing.T) {
	repo := newMockResourceRepo()
	repo.resources["r1"] = &models.Resource{ID: "r1", OwnerID: "student", Status: models.ResourcePending}
	users := newUserFixture()
	svc := newResourceService(repo, users, nil)

	_, err := svc.Get(context.Background(), "", "r1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestGetIncludesSummary(t *testing.T) {
	repo := newMockResourceRepo()
	repo.resources["r1"] = &models.Resource{ID: "r1", OwnerID: "student", Status: models.ResourceApproved}
	users := newUserFixture()
	svc := NewResourceService(
		repo, users, &mockTagResolver{}, newMockEngagementRepo(),
		&mockSummaryProvider{summary: models.RatingSummary{Average: 4.5, Count: 2}},
		&mockSigner{}, nil, nil, nil,
	)

	detail, err := svc.Get(context.Background(), "", "r1")
	require.NoError(t, err)
	assert.Equal(t, 4.5, detail.AverageRating)
	assert.Equal(t, 2, detail.RatingCount)
	assert.Nil(t, detail.UserRating)
}

func TestListVisibility(t *testing.T) {
	repo := newMockResourceRepo()
	users := newUserFixture()
	svc := newResourceService(repo, users, nil)

	// Anonymous callers only see the public catalog.
	_, _, err := svc.List(context.Background(), "", models.ResourceFilter{})
	require.NoError(t, err)
	assert.True(t, repo.lastVis.PublicOnly)
	assert.Empty(t, repo.lastVis.OwnerID)

	// Authenticated callers additionally see their own entries.
	_, _, err = svc.List(context.Background(), "student", models.ResourceFilter{})
	require.NoError(t, err)
	assert.True(t, repo.lastVis.PublicOnly)
	assert.Equal(t, "student", repo.lastVis.OwnerID)

	// Staff see everything.
	_, _, err = svc.List(context.Background(), "staff", models.ResourceFilter{})
	require.NoError(t, err)
	assert.False(t, repo.lastVis.PublicOnly)
}

func TestRecordViewCounts(t *testing.T) {
	repo := newMockResourceRepo()
	repo.resources["r1"] = &models.Resource{ID: "r1", OwnerID: "student", Status: models.ResourceApproved}
	users := newUserFixture()
	svc := newResourceService(repo, users, nil)

	count, err := svc.RecordView(context.Background(), "", "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = svc.RecordView(context.Background(), "student", "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestDownloadWithoutFile(t *testing.T) {
	repo := newMockResourceRepo()
	repo.resources["r1"] = &models.Resource{ID: "r1", OwnerID: "student", Status: models.ResourceApproved}
	users := newUserFixture()
	svc := newResourceService(repo, users, nil)

	_, err := svc.Download(context.Background(), "student", "r1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDownloadIssuesSignedLink(t *testing.T) {
	repo := newMockResourceRepo()
	fileRef := "r1.pdf"
	repo.resources["r1"] = &models.Resource{ID: "r1", OwnerID: "student", Status: models.ResourceApproved, FileRef: &fileRef}
	users := newUserFixture()
	signer := &mockSigner{}
	svc := NewResourceService(repo, users, &mockTagResolver{}, newMockEngagementRepo(), &mockSummaryProvider{}, signer, nil, nil, nil)

	link, err := svc.Download(context.Background(), "", "r1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/files/signed-token", link.URL)
	assert.False(t, link.ExpiresAt.IsZero())
	assert.Equal(t, int64(1), repo.downloads["r1"])

	resolved, err := svc.ResolveDownloadToken("signed-token")
	require.NoError(t, err)
	assert.Equal(t, "r1.pdf", resolved)

	_, err = svc.ResolveDownloadToken("tampered")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
