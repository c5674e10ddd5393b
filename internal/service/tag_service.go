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

type tagRepository interface {
	FindByName(ctx context.Context, name string) (*models.Tag, error)
	Create(ctx context.Context, tag *models.Tag) error
	List(ctx context.Context) ([]models.Tag, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Tag, error)
}

type tagActorRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateTagRequest is the payload for creating a tag.
type CreateTagRequest struct {
	Name string `json:"name" validate:"required,min=2,max=50"`
}

// TagService manages the curated tag catalog. Tags are staff-created only;
// resource authors pick from the existing set.
type TagService struct {
	tags      tagRepository
	users     tagActorRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTagService constructs a TagService instance.
func NewTagService(tags tagRepository, users tagActorRepository, validate *validator.Validate, logger *zap.Logger) *TagService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TagService{tags: tags, users: users, validator: validate, logger: logger}
}

// List returns the full tag catalog sorted by name.
func (s *TagService) List(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.tags.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tags")
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	return tags, nil
}

// Create adds a tag to the catalog. Names are unique case-insensitively, so
// "Algebra" and "algebra" are the same tag.
func (s *TagService) Create(ctx context.Context, actorID string, req CreateTagRequest) (*models.Tag, error) {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load actor")
	}
	if err := authz.Can(actor, authz.ActionModerateResource, authz.Target{}).Err(); err != nil {
		return nil, err
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tag payload")
	}

	name := strings.TrimSpace(req.Name)
	if _, err := s.tags.FindByName(ctx, name); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "tag already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check tag uniqueness")
	}

	tag := &models.Tag{Name: name}
	if err := s.tags.Create(ctx, tag); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create tag")
	}

	s.logger.Info("tag created", zap.String("tag_id", tag.ID), zap.String("name", tag.Name), zap.String("created_by", actorID))
	return tag, nil
}

// ResolveIDs verifies that every referenced tag exists and returns them.
func (s *TagService) ResolveIDs(ctx context.Context, ids []string) ([]models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tags, err := s.tags.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve tags")
	}
	if len(tags) != len(ids) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "one or more tags do not exist")
	}
	return tags, nil
}
