package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/docstream/internal/core/domain"
)

type PreResourceRepository struct {
	db *sql.DB
}

func NewPreResourceRepository(db *sql.DB) *PreResourceRepository {
	return &PreResourceRepository{db: db}
}

func (r *PreResourceRepository) Create(ctx context.Context, pre *domain.PreResource) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO pre_resources (
	id, project_id, original_name, mime_type, byte_size, storage_path,
	split_mode, page_ranges, status, error_message, child_count, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		pre.ID, pre.ProjectID, pre.OriginalName, pre.MimeType, pre.ByteSize, pre.StoragePath,
		string(pre.SplitMode), pre.PageRanges, string(pre.Status), pre.Error, pre.ChildCount,
		pre.CreatedAt, pre.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pre-resource: %w", err)
	}
	return nil
}

func (r *PreResourceRepository) GetByID(ctx context.Context, id string) (*domain.PreResource, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, project_id, original_name, mime_type, byte_size, storage_path,
	split_mode, page_ranges, status, error_message, child_count, created_at, updated_at
FROM pre_resources
WHERE id = $1
`, id)

	var pre domain.PreResource
	var splitMode, status string
	var pageRanges, errMessage sql.NullString

	err := row.Scan(
		&pre.ID, &pre.ProjectID, &pre.OriginalName, &pre.MimeType, &pre.ByteSize, &pre.StoragePath,
		&splitMode, &pageRanges, &status, &errMessage, &pre.ChildCount, &pre.CreatedAt, &pre.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrResourceNotFound, "get pre-resource", errors.New(id))
		}
		return nil, fmt.Errorf("scan pre-resource: %w", err)
	}
	pre.SplitMode = domain.SplitMode(splitMode)
	pre.PageRanges = pageRanges.String
	pre.Status = domain.PreResourceStatus(status)
	pre.Error = errMessage.String
	return &pre, nil
}

func (r *PreResourceRepository) MarkResolved(ctx context.Context, id string, childCount int) error {
	return r.updateStatus(ctx, id, domain.PreResourceResolved, "", childCount)
}

func (r *PreResourceRepository) MarkFailed(ctx context.Context, id string, errMessage string) error {
	return r.updateStatus(ctx, id, domain.PreResourceFailed, errMessage, 0)
}

func (r *PreResourceRepository) updateStatus(
	ctx context.Context,
	id string,
	status domain.PreResourceStatus,
	errMessage string,
	childCount int,
) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE pre_resources
SET status = $2, error_message = $3, child_count = $4, updated_at = $5
WHERE id = $1
`, id, string(status), errMessage, childCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update pre-resource status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrResourceNotFound, "update pre-resource status", errors.New(id))
	}
	return nil
}
