package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edulib/edulib-api/internal/authz"
	"github.com/edulib/edulib-api/internal/models"
	"github.com/edulib/edulib-api/internal/repository"
	appErrors "github.com/edulib/edulib-api/pkg/errors"
)

type resourceRepo interface {
	Create(ctx context.Context, resource *models.Resource, tagIDs []string) error
	FindByID(ctx context.Context, id string) (*models.Resource, error)
	UpdateStatus(ctx context.Context, id string, from, to models.ResourceStatus) (bool, error)
	SetHidden(ctx context.Context, id string, hidden bool) error
	SetProblematic(ctx context.Context, id string, problematic bool) error
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) (int64, error)
	IncrementDownloads(ctx context.Context, id string) (int64, error)
	List(ctx context.Context, filter models.ResourceFilter, vis repository.ListVisibility) ([]models.Resource, int, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Resource, error)
	ListPending(ctx context.Context) ([]models.Resource, error)
	ListSavedBy(ctx context.Context, userID string) ([]models.Resource, error)
}

type resourceActorRepo interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type tagResolver interface {
	ResolveIDs(ctx context.Context, ids []string) ([]models.Tag, error)
}

type ratingReader interface {
	FindUserRating(ctx context.Context, resourceID, userID string) (*models.Rating, error)
	IsSaved(ctx context.Context, userID, resourceID string) (bool, error)
}

type summaryProvider interface {
	RatingSummary(ctx context.Context, resourceID string) (models.RatingSummary, error)
}

type downloadSigner interface {
	Generate(resourceID, fileRef string) (string, time.Time, error)
	Parse(token string) (resourceID, fileRef string, expiresAt time.Time, err error)
}

type fileRemover interface {
	Delete(fileRef string) error
}

// CreateResourceRequest is the payload for publishing a resource.
type CreateResourceRequest struct {
	Title       string   `json:"title" validate:"required,min=3,max=200"`
	Description string   `json:"description" validate:"required,min=10,max=5000"`
	TagIDs      []string `json:"tag_ids" validate:"omitempty,dive,uuid4"`
	FileRef     *string  `json:"-"`
}

// DownloadLink is an expiring signed link handed out by Download.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResourceService implements the resource lifecycle: publication, moderation
// transitions, staff flags, deletion and signed downloads. Every operation
// re-reads the actor so blocks and trust changes take effect immediately.
type ResourceService struct {
	resources resourceRepo
	users     resourceActorRepo
	tags      tagResolver
	ratings   ratingReader
	summaries summaryProvider
	signer    downloadSigner
	files     fileRemover
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResourceService constructs a ResourceService instance.
func NewResourceService(
	resources resourceRepo,
	users resourceActorRepo,
	tags tagResolver,
	ratings ratingReader,
	summaries summaryProvider,
	signer downloadSigner,
	files fileRemover,
	validate *validator.Validate,
	logger *zap.Logger,
) *ResourceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ResourceService{
		resources: resources,
		users:     users,
		tags:      tags,
		ratings:   ratings,
		summaries: summaries,
		signer:    signer,
		files:     files,
		validator: validate,
		logger:    logger,
	}
}

func (s *ResourceService) loadActor(ctx context.Context, actorID string) (*models.User, error) {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load actor")
	}
	return actor, nil
}

func (s *ResourceService) loadResource(ctx context.Context, id string) (*models.Resource, error) {
	res, err := s.resources.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	return res, nil
}

// Create publishes a new resource. Every resource starts pending regardless
// of the author's trust; visibility is decided purely by resource status.
func (s *ResourceService) Create(ctx context.Context, actorID string, req CreateResourceRequest) (*models.Resource, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, authz.ActionCreateResource, authz.Target{}).Err(); err != nil {
		return nil, err
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}

	tags, err := s.tags.ResolveIDs(ctx, req.TagIDs)
	if err != nil {
		return nil, err
	}

	resource := &models.Resource{
		Title:       req.Title,
		Description: req.Description,
		FileRef:     req.FileRef,
		OwnerID:     actor.ID,
		Status:      models.ResourcePending,
	}

	if err := s.resources.Create(ctx, resource, req.TagIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create resource")
	}

	resource.OwnerName = actor.DisplayName
	resource.Tags = tags
	if resource.Tags == nil {
		resource.Tags = []models.Tag{}
	}

	s.logger.Info("resource created", zap.String("resource_id", resource.ID), zap.String("owner_id", actor.ID))
	return resource, nil
}

// Get returns a resource with its derived engagement figures. actorID is
// empty for anonymous callers; non-public resources are visible only to the
// owner and staff.
func (s *ResourceService) Get(ctx context.Context, actorID, resourceID string) (*models.ResourceDetail, error) {
	res, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	var actor *models.User
	if actorID != "" {
		if actor, err = s.loadActor(ctx, actorID); err != nil {
			return nil, err
		}
	}

	if err := authz.Can(actor, authz.ActionViewResource, authz.Target{Resource: res}).Err(); err != nil {
		return nil, err
	}

	summary, err := s.summaries.RatingSummary(ctx, resourceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rating summary")
	}

	detail := &models.ResourceDetail{
		Resource:      *res,
		AverageRating: summary.Average,
		RatingCount:   summary.Count,
	}

	if actor != nil {
		rating, err := s.ratings.FindUserRating(ctx, resourceID, actor.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user rating")
		}
		if rating != nil {
			detail.UserRating = &rating.Value
		}

		saved, err := s.ratings.IsSaved(ctx, actor.ID, resourceID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load save state")
		}
		detail.Saved = saved
	}

	return detail, nil
}

// List returns the public catalog. Authenticated callers additionally see
// their own non-public resources; staff see everything.
func (s *ResourceService) List(ctx context.Context, actorID string, filter models.ResourceFilter) ([]models.Resource, *models.Pagination, error) {
	vis := repository.ListVisibility{PublicOnly: true}
	if actorID != "" {
		actor, err := s.loadActor(ctx, actorID)
		if err != nil {
			return nil, nil, err
		}
		if actor.Staff {
			vis.PublicOnly = false
		} else {
			vis.OwnerID = actor.ID
		}
	}

	resources, total, err := s.resources.List(ctx, filter, vis)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resources")
	}
	if resources == nil {
		resources = []models.Resource{}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	return resources, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Mine returns all resources owned by the caller regardless of status.
func (s *ResourceService) Mine(ctx context.Context, actorID string) ([]models.Resource, error) {
	if _, err := s.loadActor(ctx, actorID); err != nil {
		return nil, err
	}
	resources, err := s.resources.ListByOwner(ctx, actorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list own resources")
	}
	if resources == nil {
		resources = []models.Resource{}
	}
	return resources, nil
}

// Pending returns the moderation queue, oldest first.
func (s *ResourceService) Pending(ctx context.Context, actorID string) ([]models.Resource, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, authz.ActionModerateResource, authz.Target{}).Err(); err != nil {
		return nil, err
	}

	resources, err := s.resources.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending resources")
	}
	if resources == nil {
		resources = []models.Resource{}
	}
	return resources, nil
}

// Saved returns the publicly listable resources the caller has saved.
func (s *ResourceService) Saved(ctx context.Context, actorID string) ([]models.Resource, error) {
	if _, err := s.loadActor(ctx, actorID); err != nil {
		return nil, err
	}
	resources, err := s.resources.ListSavedBy(ctx, actorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list saved resources")
	}
	if resources == nil {
		resources = []models.Resource{}
	}
	return resources, nil
}

// Approve transitions a pending resource to approved. Of two concurrent
// decisions exactly one wins; the loser sees an invalid-state error.
func (s *ResourceService) Approve(ctx context.Context, actorID, resourceID string) (*models.Resource, error) {
	return s.decide(ctx, actorID, resourceID, models.ResourceApproved)
}

// Reject transitions a pending resource to rejected. Terminal: resubmission
// means creating a new resource.
func (s *ResourceService) Reject(ctx context.Context, actorID, resourceID string) (*models.Resource, error) {
	return s.decide(ctx, actorID, resourceID, models.ResourceRejected)
}

func (s *ResourceService) decide(ctx context.Context, actorID, resourceID string, to models.ResourceStatus) (*models.Resource, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, authz.ActionModerateResource, authz.Target{}).Err(); err != nil {
		return nil, err
	}

	applied, err := s.resources.UpdateStatus(ctx, resourceID, models.ResourcePending, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update resource status")
	}
	if !applied {
		// Either the resource does not exist or it already left PENDING;
		// a re-read distinguishes the two.
		res, err := s.loadResource(ctx, resourceID)
		if err != nil {
			return nil, err
		}
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "resource is not pending review (current status: "+string(res.Status)+")")
	}

	s.logger.Info("resource moderated",
		zap.String("resource_id", resourceID),
		zap.String("decided_by", actorID),
		zap.String("status", string(to)))

	return s.loadResource(ctx, resourceID)
}

// SetHidden flips the hidden flag. Hiding is orthogonal to status: an
// approved-then-hidden resource keeps its approval.
func (s *ResourceService) SetHidden(ctx context.Context, actorID, resourceID string, hidden bool) (*models.Resource, error) {
	return s.setFlag(ctx, actorID, resourceID, hidden, s.resources.SetHidden, "hidden")
}

// SetProblematic flips the problematic marker used to track resources under
// review without pulling them from the catalog.
func (s *ResourceService) SetProblematic(ctx context.Context, actorID, resourceID string, problematic bool) (*models.Resource, error) {
	return s.setFlag(ctx, actorID, resourceID, problematic, s.resources.SetProblematic, "problematic")
}

func (s *ResourceService) setFlag(ctx context.Context, actorID, resourceID string, value bool, update func(context.Context, string, bool) error, name string) (*models.Resource, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, authz.ActionModerateResource, authz.Target{}).Err(); err != nil {
		return nil, err
	}

	if _, err := s.loadResource(ctx, resourceID); err != nil {
		return nil, err
	}

	if err := update(ctx, resourceID, value); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update resource flag")
	}

	s.logger.Info("resource flag updated",
		zap.String("resource_id", resourceID),
		zap.String("flag", name),
		zap.Bool("value", value),
		zap.String("changed_by", actorID))

	return s.loadResource(ctx, resourceID)
}

// Delete removes a resource and its engagement rows. Owner or staff only.
func (s *ResourceService) Delete(ctx context.Context, actorID, resourceID string) error {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return err
	}

	res, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return err
	}

	if err := authz.Can(actor, authz.ActionDeleteResource, authz.Target{Resource: res}).Err(); err != nil {
		return err
	}

	if err := s.resources.Delete(ctx, resourceID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete resource")
	}

	if res.FileRef != nil && s.files != nil {
		if err := s.files.Delete(*res.FileRef); err != nil {
			s.logger.Warn("failed to remove stored file", zap.String("resource_id", resourceID), zap.Error(err))
		}
	}

	s.logger.Info("resource deleted", zap.String("resource_id", resourceID), zap.String("deleted_by", actorID))
	return nil
}

// RecordView bumps the view counter and returns the new total. Views are
// counted for anyone allowed to see the resource, including anonymous
// visitors of public entries.
func (s *ResourceService) RecordView(ctx context.Context, actorID, resourceID string) (int64, error) {
	res, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return 0, err
	}

	var actor *models.User
	if actorID != "" {
		if actor, err = s.loadActor(ctx, actorID); err != nil {
			return 0, err
		}
	}
	if err := authz.Can(actor, authz.ActionViewResource, authz.Target{Resource: res}).Err(); err != nil {
		return 0, err
	}

	count, err := s.resources.IncrementViews(ctx, resourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record view")
	}
	return count, nil
}

// Download bumps the download counter and returns an expiring signed link
// for the resource's file.
func (s *ResourceService) Download(ctx context.Context, actorID, resourceID string) (*DownloadLink, error) {
	res, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	var actor *models.User
	if actorID != "" {
		if actor, err = s.loadActor(ctx, actorID); err != nil {
			return nil, err
		}
	}
	if err := authz.Can(actor, authz.ActionViewResource, authz.Target{Resource: res}).Err(); err != nil {
		return nil, err
	}

	if res.FileRef == nil || *res.FileRef == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "resource has no attached file")
	}

	token, expiresAt, err := s.signer.Generate(res.ID, *res.FileRef)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	if _, err := s.resources.IncrementDownloads(ctx, resourceID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to record download", zap.String("resource_id", resourceID), zap.Error(err))
	}

	return &DownloadLink{URL: "/api/v1/files/" + token, ExpiresAt: expiresAt}, nil
}

// ResolveDownloadToken validates a signed token and returns the file
// reference it names. The visibility check already ran when the token was
// issued; the signature and expiry are all that is verified here.
func (s *ResourceService) ResolveDownloadToken(token string) (string, error) {
	_, fileRef, _, err := s.signer.Parse(token)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	return fileRef, nil
}
