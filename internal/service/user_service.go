package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/edulib/edulib-api/internal/authz"
	"github.com/edulib/edulib-api/internal/models"
	appErrors "github.com/edulib/edulib-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateTrust(ctx context.Context, id string, from, to models.TrustState) (bool, error)
	SetBlocked(ctx context.Context, id string, blocked bool, reason *string) error
	SetStaff(ctx context.Context, id string, staff bool) error
	ListPendingTeachers(ctx context.Context) ([]models.User, error)
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

type ownerStatsRepository interface {
	OwnerStats(ctx context.Context, ownerID string) (*models.OwnerStats, error)
}

// UserService implements account moderation: trust transitions, blocking and
// staff promotion. Actor state is re-read from the store on every call;
// nothing is trusted from the token beyond identity.
type UserService struct {
	users  userRepository
	stats  ownerStatsRepository
	logger *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(users userRepository, stats ownerStatsRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, stats: stats, logger: logger}
}

// UserProfile bundles a public profile with the owner's publication totals.
type UserProfile struct {
	Profile models.Profile     `json:"profile"`
	Stats   *models.OwnerStats `json:"stats,omitempty"`
}

func (s *UserService) loadActor(ctx context.Context, actorID string) (*models.User, error) {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load actor")
	}
	return actor, nil
}

func (s *UserService) loadTarget(ctx context.Context, userID string) (*models.User, error) {
	target, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return target, nil
}

// Me returns the caller's own account, including trust and block state.
func (s *UserService) Me(ctx context.Context, actorID string) (*models.User, error) {
	return s.loadActor(ctx, actorID)
}

// GetProfile returns the public view of a user plus their publication totals.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	target, err := s.loadTarget(ctx, userID)
	if err != nil {
		return nil, err
	}

	ownerStats, err := s.stats.OwnerStats(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load owner stats")
	}

	return &UserProfile{Profile: target.Profile(), Stats: ownerStats}, nil
}

// ListPendingTeachers returns teacher accounts awaiting review, oldest first.
func (s *UserService) ListPendingTeachers(ctx context.Context, actorID string) ([]models.User, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, authz.ActionModerateUser, authz.Target{}).Err(); err != nil {
		return nil, err
	}

	users, err := s.users.ListPendingTeachers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending teachers")
	}
	return users, nil
}

// ApproveTeacher transitions a pending teacher to approved. The conditional
// update means that of two concurrent decisions on the same account exactly
// one succeeds; the loser reports an invalid state.
func (s *UserService) ApproveTeacher(ctx context.Context, actorID, userID string) (*models.User, error) {
	return s.decideTeacher(ctx, actorID, userID, models.TrustApproved)
}

// RejectTeacher transitions a pending teacher to rejected. Rejection is
// terminal: the account remains and can sign in, but never gains trust.
func (s *UserService) RejectTeacher(ctx context.Context, actorID, userID string) (*models.User, error) {
	return s.decideTeacher(ctx, actorID, userID, models.TrustRejected)
}

func (s *UserService) decideTeacher(ctx context.Context, actorID, userID string, to models.TrustState) (*models.User, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, authz.ActionModerateUser, authz.Target{}).Err(); err != nil {
		return nil, err
	}

	target, err := s.loadTarget(ctx, userID)
	if err != nil {
		return nil, err
	}
	if target.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only teacher accounts go through review")
	}

	applied, err := s.users.UpdateTrust(ctx, userID, models.TrustPending, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update trust state")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "user is not pending review")
	}

	s.logger.Info("teacher trust decided",
		zap.String("user_id", userID),
		zap.String("decided_by", actorID),
		zap.String("trust", string(to)))

	return s.loadTarget(ctx, userID)
}

// Block blocks a user. A non-empty reason is required and staff accounts
// cannot be blocked. Active sessions are cut by revoking refresh tokens; the
// access token that remains is harmless because every mutating call re-reads
// the blocked flag.
func (s *UserService) Block(ctx context.Context, actorID, userID, reason string) (*models.User, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, authz.ActionModerateUser, authz.Target{}).Err(); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "block reason is required")
	}

	target, err := s.loadTarget(ctx, userID)
	if err != nil {
		return nil, err
	}
	if target.Staff {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "staff accounts cannot be blocked")
	}
	if target.Blocked {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "user is already blocked")
	}

	if err := s.users.SetBlocked(ctx, userID, true, &reason); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to block user")
	}

	if err := s.users.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke sessions of blocked user", zap.String("user_id", userID), zap.Error(err))
	}

	s.logger.Info("user blocked", zap.String("user_id", userID), zap.String("blocked_by", actorID))
	return s.loadTarget(ctx, userID)
}

// Unblock lifts a block and clears the stored reason.
func (s *UserService) Unblock(ctx context.Context, actorID, userID string) (*models.User, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, authz.ActionModerateUser, authz.Target{}).Err(); err != nil {
		return nil, err
	}

	target, err := s.loadTarget(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !target.Blocked {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "user is not blocked")
	}

	if err := s.users.SetBlocked(ctx, userID, false, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unblock user")
	}

	s.logger.Info("user unblocked", zap.String("user_id", userID), zap.String("unblocked_by", actorID))
	return s.loadTarget(ctx, userID)
}

// ToggleStaff grants or revokes the staff flag.
func (s *UserService) ToggleStaff(ctx context.Context, actorID, userID string, staff bool) (*models.User, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, authz.ActionModerateUser, authz.Target{}).Err(); err != nil {
		return nil, err
	}
	if actorID == userID && !staff {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot revoke your own staff flag")
	}

	target, err := s.loadTarget(ctx, userID)
	if err != nil {
		return nil, err
	}
	if target.Staff == staff {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "staff flag already in requested state")
	}

	if err := s.users.SetStaff(ctx, userID, staff); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update staff flag")
	}

	s.logger.Info("staff flag updated", zap.String("user_id", userID), zap.Bool("staff", staff), zap.String("changed_by", actorID))
	return s.loadTarget(ctx, userID)
}
