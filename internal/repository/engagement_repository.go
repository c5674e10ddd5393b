package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edulib/edulib-api/internal/models"
)

// EngagementRepository provides database access for ratings, comments and
// saves. The three mutation disciplines are deliberately distinct: ratings
// upsert, saves toggle, counters increment (those live on the resource row).
type EngagementRepository struct {
	db *sqlx.DB
}

// NewEngagementRepository creates a new instance of EngagementRepository.
func NewEngagementRepository(db *sqlx.DB) *EngagementRepository {
	return &EngagementRepository{db: db}
}

// UpsertRating writes the (resource, user) rating, overwriting any prior
// value. The unique key makes concurrent upserts last-write-wins without a
// read-modify-write race.
func (r *EngagementRepository) UpsertRating(ctx context.Context, rating *models.Rating) error {
	now := time.Now().UTC()
	if rating.CreatedAt.IsZero() {
		rating.CreatedAt = now
	}
	rating.UpdatedAt = now

	const query = `INSERT INTO ratings (resource_id, user_id, value, created_at, updated_at)
		VALUES (:resource_id, :user_id, :value, :created_at, :updated_at)
		ON CONFLICT (resource_id, user_id) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, rating); err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

// ListRatingValues returns all rating values for a resource.
func (r *EngagementRepository) ListRatingValues(ctx context.Context, resourceID string) ([]int, error) {
	const query = `SELECT value FROM ratings WHERE resource_id = $1`
	var values []int
	if err := r.db.SelectContext(ctx, &values, query, resourceID); err != nil {
		return nil, fmt.Errorf("list rating values: %w", err)
	}
	return values, nil
}

// FindUserRating returns the rating a user gave a resource, if any.
func (r *EngagementRepository) FindUserRating(ctx context.Context, resourceID, userID string) (*models.Rating, error) {
	const query = `SELECT resource_id, user_id, value, created_at, updated_at FROM ratings WHERE resource_id = $1 AND user_id = $2 LIMIT 1`
	var rating models.Rating
	if err := r.db.GetContext(ctx, &rating, query, resourceID, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user rating: %w", err)
	}
	return &rating, nil
}

// CreateComment appends a comment to the ledger.
func (r *EngagementRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO comments (id, resource_id, author_id, text, created_at)
		VALUES (:id, :resource_id, :author_id, :text, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// FindCommentByID returns a comment with its author name.
func (r *EngagementRepository) FindCommentByID(ctx context.Context, id string) (*models.Comment, error) {
	const query = `SELECT c.id, c.resource_id, c.author_id, u.display_name AS author_name, c.text, c.created_at
		FROM comments c JOIN users u ON u.id = c.author_id WHERE c.id = $1 LIMIT 1`
	var comment models.Comment
	if err := r.db.GetContext(ctx, &comment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find comment by id: %w", err)
	}
	return &comment, nil
}

// ListComments returns a resource's comments newest first. Ordering is a
// read-time convention, not a ledger invariant.
func (r *EngagementRepository) ListComments(ctx context.Context, resourceID string) ([]models.Comment, error) {
	const query = `SELECT c.id, c.resource_id, c.author_id, u.display_name AS author_name, c.text, c.created_at
		FROM comments c JOIN users u ON u.id = c.author_id
		WHERE c.resource_id = $1 ORDER BY c.created_at DESC, c.id ASC`
	var comments []models.Comment
	if err := r.db.SelectContext(ctx, &comments, query, resourceID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// DeleteComment removes a comment.
func (r *EngagementRepository) DeleteComment(ctx context.Context, id string) error {
	const query = `DELETE FROM comments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// ToggleSave flips the save membership for (user, resource) and reports the
// resulting state. Removal first: when no row was deleted, the membership is
// created. The unique key absorbs concurrent inserts.
func (r *EngagementRepository) ToggleSave(ctx context.Context, userID, resourceID string) (bool, error) {
	const remove = `DELETE FROM saves WHERE user_id = $1 AND resource_id = $2`
	res, err := r.db.ExecContext(ctx, remove, userID, resourceID)
	if err != nil {
		return false, fmt.Errorf("toggle save delete: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("toggle save rows: %w", err)
	}
	if affected > 0 {
		return false, nil
	}

	const insert = `INSERT INTO saves (user_id, resource_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (user_id, resource_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, userID, resourceID, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("toggle save insert: %w", err)
	}
	return true, nil
}

// IsSaved reports whether the user has saved the resource.
func (r *EngagementRepository) IsSaved(ctx context.Context, userID, resourceID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM saves WHERE user_id = $1 AND resource_id = $2)`
	var saved bool
	if err := r.db.GetContext(ctx, &saved, query, userID, resourceID); err != nil {
		return false, fmt.Errorf("is saved: %w", err)
	}
	return saved, nil
}
