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

const resourceColumns = `r.id, r.title, r.description, r.file_ref, r.owner_id, u.display_name AS owner_name,
	r.status, r.hidden, r.problematic, r.views_count, r.downloads_count, r.created_at, r.updated_at`

const resourceBase = `FROM resources r JOIN users u ON u.id = r.owner_id`

// ResourceRepository provides database access for the resource catalog.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository creates a new instance of ResourceRepository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Create inserts a resource and its tag references in one transaction.
func (r *ResourceRepository) Create(ctx context.Context, resource *models.Resource, tagIDs []string) error {
	if resource.ID == "" {
		resource.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if resource.CreatedAt.IsZero() {
		resource.CreatedAt = now
	}
	resource.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create resource: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertResource = `INSERT INTO resources (id, title, description, file_ref, owner_id, status, hidden, problematic, views_count, downloads_count, created_at, updated_at)
		VALUES (:id, :title, :description, :file_ref, :owner_id, :status, :hidden, :problematic, :views_count, :downloads_count, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertResource, resource); err != nil {
		return fmt.Errorf("create resource: %w", err)
	}

	const insertTag = `INSERT INTO resource_tags (resource_id, tag_id) VALUES ($1, $2)`
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, insertTag, resource.ID, tagID); err != nil {
			return fmt.Errorf("attach resource tag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create resource: %w", err)
	}
	return nil
}

// FindByID returns a resource with its owner name and tags.
func (r *ResourceRepository) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` ` + resourceBase + ` WHERE r.id = $1 LIMIT 1`
	var resource models.Resource
	if err := r.db.GetContext(ctx, &resource, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find resource by id: %w", err)
	}

	tags, err := r.tagsFor(ctx, []string{resource.ID})
	if err != nil {
		return nil, err
	}
	resource.Tags = tags[resource.ID]
	if resource.Tags == nil {
		resource.Tags = []models.Tag{}
	}
	return &resource, nil
}

// UpdateStatus transitions a resource's moderation state. The update is
// conditional on the expected current state: of two concurrent approvals,
// exactly one observes an affected row.
func (r *ResourceRepository) UpdateStatus(ctx context.Context, id string, from, to models.ResourceStatus) (bool, error) {
	const query = `UPDATE resources SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update resource status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update resource status rows: %w", err)
	}
	return affected == 1, nil
}

// SetHidden updates the hidden flag independently of status.
func (r *ResourceRepository) SetHidden(ctx context.Context, id string, hidden bool) error {
	const query = `UPDATE resources SET hidden = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, hidden, time.Now().UTC()); err != nil {
		return fmt.Errorf("set resource hidden: %w", err)
	}
	return nil
}

// SetProblematic updates the problematic flag.
func (r *ResourceRepository) SetProblematic(ctx context.Context, id string, problematic bool) error {
	const query = `UPDATE resources SET problematic = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, problematic, time.Now().UTC()); err != nil {
		return fmt.Errorf("set resource problematic: %w", err)
	}
	return nil
}

// Delete removes a resource. Tag references, ratings, comments and saves go
// with it via ON DELETE CASCADE.
func (r *ResourceRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM resources WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	return nil
}

// IncrementViews bumps the view counter atomically.
func (r *ResourceRepository) IncrementViews(ctx context.Context, id string) (int64, error) {
	const query = `UPDATE resources SET views_count = views_count + 1 WHERE id = $1 RETURNING views_count`
	var count int64
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("increment views: %w", err)
	}
	return count, nil
}

// IncrementDownloads bumps the download counter atomically.
func (r *ResourceRepository) IncrementDownloads(ctx context.Context, id string) (int64, error) {
	const query = `UPDATE resources SET downloads_count = downloads_count + 1 WHERE id = $1 RETURNING downloads_count`
	var count int64
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("increment downloads: %w", err)
	}
	return count, nil
}

// ListVisibility narrows List to what the caller may see.
type ListVisibility struct {
	// PublicOnly restricts to approved, non-hidden resources.
	PublicOnly bool
	// OwnerID, when set with PublicOnly, additionally admits that owner's
	// non-public resources.
	OwnerID string
}

// List returns resources matching the filter under the given visibility,
// with total count.
func (r *ResourceRepository) List(ctx context.Context, filter models.ResourceFilter, vis ListVisibility) ([]models.Resource, int, error) {
	baseQuery := resourceBase + ` WHERE 1=1`
	var conditions []string
	var args []interface{}

	if vis.PublicOnly {
		if vis.OwnerID != "" {
			conditions = append(conditions, fmt.Sprintf("((r.status = $%d AND r.hidden = FALSE) OR r.owner_id = $%d)", len(args)+1, len(args)+2))
			args = append(args, models.ResourceApproved, vis.OwnerID)
		} else {
			conditions = append(conditions, fmt.Sprintf("r.status = $%d AND r.hidden = FALSE", len(args)+1))
			args = append(args, models.ResourceApproved)
		}
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(r.title) LIKE $%d OR LOWER(r.description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.TagName != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM resource_tags rt JOIN tags t ON t.id = rt.tag_id WHERE rt.resource_id = r.id AND LOWER(t.name) = $%d)", len(args)+1))
		args = append(args, strings.ToLower(filter.TagName))
	}
	if filter.Author != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(u.display_name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Author)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"created_at": "r.created_at",
		"title":      "r.title",
		"views":      "r.views_count",
		"downloads":  "r.downloads_count",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "r.created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, r.id ASC LIMIT %d OFFSET %d", resourceColumns, baseQuery, column, sortOrder, pageSize, offset)

	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list resources: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count resources: %w", err)
	}

	if err := r.attachTags(ctx, resources); err != nil {
		return nil, 0, err
	}
	return resources, total, nil
}

// ListByOwner returns all resources owned by the given user, newest first.
func (r *ResourceRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` ` + resourceBase + ` WHERE r.owner_id = $1 ORDER BY r.created_at DESC`
	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, query, ownerID); err != nil {
		return nil, fmt.Errorf("list resources by owner: %w", err)
	}
	if err := r.attachTags(ctx, resources); err != nil {
		return nil, err
	}
	return resources, nil
}

// ListPending returns resources awaiting moderation, oldest first so the
// review queue is drained fairly.
func (r *ResourceRepository) ListPending(ctx context.Context) ([]models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` ` + resourceBase + ` WHERE r.status = $1 ORDER BY r.created_at ASC`
	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, query, models.ResourcePending); err != nil {
		return nil, fmt.Errorf("list pending resources: %w", err)
	}
	if err := r.attachTags(ctx, resources); err != nil {
		return nil, err
	}
	return resources, nil
}

// ListSavedBy returns the publicly listable resources the user has saved.
func (r *ResourceRepository) ListSavedBy(ctx context.Context, userID string) ([]models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` ` + resourceBase + `
		JOIN saves s ON s.resource_id = r.id
		WHERE s.user_id = $1 AND r.status = $2 AND r.hidden = FALSE
		ORDER BY s.created_at DESC`
	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, query, userID, models.ResourceApproved); err != nil {
		return nil, fmt.Errorf("list saved resources: %w", err)
	}
	if err := r.attachTags(ctx, resources); err != nil {
		return nil, err
	}
	return resources, nil
}

// OwnerStats aggregates publication totals over a user's approved resources.
func (r *ResourceRepository) OwnerStats(ctx context.Context, ownerID string) (*models.OwnerStats, error) {
	const query = `SELECT COUNT(*) AS published_count,
		COALESCE(SUM(views_count), 0) AS total_views,
		COALESCE(SUM(downloads_count), 0) AS total_downloads
		FROM resources WHERE owner_id = $1 AND status = $2`
	var stats models.OwnerStats
	if err := r.db.GetContext(ctx, &stats, query, ownerID, models.ResourceApproved); err != nil {
		return nil, fmt.Errorf("owner stats: %w", err)
	}
	return &stats, nil
}

func (r *ResourceRepository) attachTags(ctx context.Context, resources []models.Resource) error {
	if len(resources) == 0 {
		return nil
	}
	ids := make([]string, len(resources))
	for i := range resources {
		ids[i] = resources[i].ID
	}
	tags, err := r.tagsFor(ctx, ids)
	if err != nil {
		return err
	}
	for i := range resources {
		if t, ok := tags[resources[i].ID]; ok {
			resources[i].Tags = t
		} else {
			resources[i].Tags = []models.Tag{}
		}
	}
	return nil
}

type resourceTagRow struct {
	ResourceID string    `db:"resource_id"`
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r *ResourceRepository) tagsFor(ctx context.Context, resourceIDs []string) (map[string][]models.Tag, error) {
	query, args, err := sqlx.In(`SELECT rt.resource_id, t.id, t.name, t.created_at
		FROM resource_tags rt JOIN tags t ON t.id = rt.tag_id
		WHERE rt.resource_id IN (?) ORDER BY t.name ASC`, resourceIDs)
	if err != nil {
		return nil, fmt.Errorf("build tag join: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []resourceTagRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load resource tags: %w", err)
	}

	out := make(map[string][]models.Tag, len(resourceIDs))
	for _, row := range rows {
		out[row.ResourceID] = append(out[row.ResourceID], models.Tag{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt})
	}
	return out, nil
}
