package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edulib/edulib-api/internal/authz"
	"github.com/edulib/edulib-api/internal/models"
	appErrors "github.com/edulib/edulib-api/pkg/errors"
)

type engagementRepo interface {
	UpsertRating(ctx context.Context, rating *models.Rating) error
	FindUserRating(ctx context.Context, resourceID, userID string) (*models.Rating, error)
	CreateComment(ctx context.Context, comment *models.Comment) error
	FindCommentByID(ctx context.Context, id string) (*models.Comment, error)
	ListComments(ctx context.Context, resourceID string) ([]models.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	ToggleSave(ctx context.Context, userID, resourceID string) (bool, error)
}

type engagementResourceRepo interface {
	FindByID(ctx context.Context, id string) (*models.Resource, error)
}

type engagementActorRepo interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type summaryInvalidator interface {
	InvalidateRatingSummary(resourceID string)
}

// RateRequest is the payload for rating a resource.
type RateRequest struct {
	Value int `json:"value" validate:"required,min=1,max=5"`
}

// CommentRequest is the payload for commenting on a resource.
type CommentRequest struct {
	Text string `json:"text" validate:"required,min=1,max=2000"`
}

// SaveState reports the save membership after a toggle.
type SaveState struct {
	Saved bool `json:"saved"`
}

// EngagementService implements the engagement ledger: ratings, comments and
// saves against publicly listable resources.
type EngagementService struct {
	engagement engagementRepo
	resources  engagementResourceRepo
	users      engagementActorRepo
	summaries  summaryInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewEngagementService constructs an EngagementService instance.
func NewEngagementService(
	engagement engagementRepo,
	resources engagementResourceRepo,
	users engagementActorRepo,
	summaries summaryInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *EngagementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EngagementService{
		engagement: engagement,
		resources:  resources,
		users:      users,
		summaries:  summaries,
		validator:  validate,
		logger:     logger,
	}
}

func (s *EngagementService) loadActor(ctx context.Context, actorID string) (*models.User, error) {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load actor")
	}
	return actor, nil
}

func (s *EngagementService) loadResource(ctx context.Context, id string) (*models.Resource, error) {
	res, err := s.resources.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	return res, nil
}

// Rate records or overwrites the caller's rating for a resource. Rating the
// same value twice is a no-op on the aggregate; a different value replaces
// the previous one.
func (s *EngagementService) Rate(ctx context.Context, actorID, resourceID string, req RateRequest) (*models.Rating, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	res, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	decision := authz.Can(actor, authz.ActionRate, authz.Target{Resource: res})
	if !decision.Allowed {
		// Rating a resource that is not open for rating is a payload
		// problem, not a permissions one; blocked actors still get the
		// authentication error.
		if !actor.Blocked && !res.PubliclyListable() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "resource is not open for rating")
		}
		return nil, decision.Err()
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "rating value must be between 1 and 5")
	}

	rating := &models.Rating{ResourceID: resourceID, UserID: actorID, Value: req.Value}
	if err := s.engagement.UpsertRating(ctx, rating); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store rating")
	}

	if s.summaries != nil {
		s.summaries.InvalidateRatingSummary(resourceID)
	}

	s.logger.Debug("rating stored", zap.String("resource_id", resourceID), zap.String("user_id", actorID), zap.Int("value", req.Value))
	return rating, nil
}

// Comment appends a comment to a resource's ledger.
func (s *EngagementService) Comment(ctx context.Context, actorID, resourceID string, req CommentRequest) (*models.Comment, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	res, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, authz.ActionComment, authz.Target{Resource: res}).Err(); err != nil {
		return nil, err
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}

	comment := &models.Comment{
		ResourceID: resourceID,
		AuthorID:   actorID,
		Text:       strings.TrimSpace(req.Text),
	}
	if err := s.engagement.CreateComment(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store comment")
	}
	comment.AuthorName = actor.DisplayName

	return comment, nil
}

// ListComments returns a resource's comments newest first. Visibility follows
// the resource: comments on non-public resources are only shown to callers
// who may view the resource itself.
func (s *EngagementService) ListComments(ctx context.Context, actorID, resourceID string) ([]models.Comment, error) {
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

	comments, err := s.engagement.ListComments(ctx, resourceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, nil
}

// DeleteComment removes a comment. Author or staff only.
func (s *EngagementService) DeleteComment(ctx context.Context, actorID, commentID string) error {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return err
	}

	comment, err := s.engagement.FindCommentByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment")
	}

	if err := authz.Can(actor, authz.ActionDeleteComment, authz.Target{Comment: comment}).Err(); err != nil {
		return err
	}

	if err := s.engagement.DeleteComment(ctx, commentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete comment")
	}

	s.logger.Info("comment deleted", zap.String("comment_id", commentID), zap.String("deleted_by", actorID))
	return nil
}

// ToggleSave flips the caller's save membership for a resource and returns
// the resulting state. Toggling twice restores the original state.
func (s *EngagementService) ToggleSave(ctx context.Context, actorID, resourceID string) (*SaveState, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	res, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, authz.ActionSave, authz.Target{Resource: res}).Err(); err != nil {
		return nil, err
	}

	saved, err := s.engagement.ToggleSave(ctx, actorID, resourceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle save")
	}

	return &SaveState{Saved: saved}, nil
}
