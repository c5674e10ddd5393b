package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edulib/edulib-api/internal/models"
)

// TagRepository provides database access for the tag catalog.
type TagRepository struct {
	db *sqlx.DB
}

// NewTagRepository creates a new instance of TagRepository.
func NewTagRepository(db *sqlx.DB) *TagRepository {
	return &TagRepository{db: db}
}

// FindByName returns a tag by case-insensitive name.
func (r *TagRepository) FindByName(ctx context.Context, name string) (*models.Tag, error) {
	const query = `SELECT id, name, created_at FROM tags WHERE LOWER(name) = $1 LIMIT 1`
	var tag models.Tag
	if err := r.db.GetContext(ctx, &tag, query, strings.ToLower(name)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find tag by name: %w", err)
	}
	return &tag, nil
}

// Create inserts a new tag.
func (r *TagRepository) Create(ctx context.Context, tag *models.Tag) error {
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO tags (id, name, created_at) VALUES (:id, :name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tag); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// List returns all tags sorted by name.
func (r *TagRepository) List(ctx context.Context) ([]models.Tag, error) {
	const query = `SELECT id, name, created_at FROM tags ORDER BY name ASC`
	var tags []models.Tag
	if err := r.db.SelectContext(ctx, &tags, query); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// FindByIDs returns the tags matching the given identifiers.
func (r *TagRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, name, created_at FROM tags WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build tag lookup: %w", err)
	}
	query = r.db.Rebind(query)
	var tags []models.Tag
	if err := r.db.SelectContext(ctx, &tags, query, args...); err != nil {
		return nil, fmt.Errorf("find tags by ids: %w", err)
	}
	return tags, nil
}

// TopTags counts publicly listable resources per tag. Ordering is part of the
// contract: count descending, ties broken by name ascending so pagination is
// deterministic.
func (r *TagRepository) TopTags(ctx context.Context, limit int) ([]models.TagCount, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT t.id, t.name, COUNT(r.id) AS count
		FROM tags t
		JOIN resource_tags rt ON rt.tag_id = t.id
		JOIN resources r ON r.id = rt.resource_id AND r.status = $1 AND r.hidden = FALSE
		GROUP BY t.id, t.name
		ORDER BY count DESC, t.name ASC
		LIMIT $2`
	var counts []models.TagCount
	if err := r.db.SelectContext(ctx, &counts, query, models.ResourceApproved, limit); err != nil {
		return nil, fmt.Errorf("top tags: %w", err)
	}
	return counts, nil
}
