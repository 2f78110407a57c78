package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/illegalcall/linkbio/internal/models"
)

const linkColumns = `id, user_id, title, url, display_order, created_at`

const (
	selectLinksByOwner = `SELECT ` + linkColumns + ` FROM links WHERE user_id = $1 ORDER BY display_order ASC NULLS LAST, created_at ASC`

	insertLink = `INSERT INTO links (id, user_id, title, url, display_order) VALUES ($1, $2, $3, $4, $5) RETURNING ` + linkColumns

	updateLink = `UPDATE links SET
			title = COALESCE($3, title),
			url = COALESCE($4, url),
			display_order = COALESCE($5, display_order)
		WHERE id = $1 AND user_id = $2
		RETURNING ` + linkColumns

	deleteLink = `DELETE FROM links WHERE id = $1 AND user_id = $2`
)

type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func (r *LinkRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error) {
	links := []models.Link{}
	if err := r.db.SelectContext(ctx, &links, selectLinksByOwner, ownerID); err != nil {
		return nil, fmt.Errorf("failed to fetch links: %w", err)
	}
	return links, nil
}

func (r *LinkRepository) Create(ctx context.Context, ownerID string, req models.LinkRequest) (*models.Link, error) {
	var link models.Link
	if err := r.db.GetContext(ctx, &link, insertLink, uuid.NewString(), ownerID, req.Title, req.URL, req.Order); err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}
	return &link, nil
}

// Update applies patch to a link owned by ownerID. Links owned by someone
// else are reported as ErrNotFound.
func (r *LinkRepository) Update(ctx context.Context, id, ownerID string, patch models.LinkPatch) (*models.Link, error) {
	var link models.Link
	if err := r.db.GetContext(ctx, &link, updateLink, id, ownerID, patch.Title, patch.URL, patch.Order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update link: %w", err)
	}
	return &link, nil
}

func (r *LinkRepository) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.db.ExecContext(ctx, deleteLink, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
