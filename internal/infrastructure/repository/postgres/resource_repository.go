package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/docstream/internal/core/domain"
)

type ResourceRepository struct {
	db *sql.DB
}

func NewResourceRepository(db *sql.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

func (r *ResourceRepository) Create(ctx context.Context, res *domain.Resource) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO resources (
	id, project_id, title, filename, namespace, type, description, code,
	mime_type, byte_size, storage_path, parent_id, page_from, page_to, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
`,
		res.ID, res.ProjectID, res.Title, res.Filename, res.Namespace, res.Type, res.Description, res.Code,
		res.MimeType, res.ByteSize, res.StoragePath, res.ParentID, res.PageFrom, res.PageTo,
		res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	return nil
}

func (r *ResourceRepository) GetByID(ctx context.Context, id string) (*domain.Resource, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, project_id, title, filename, namespace, type, description, code,
	mime_type, byte_size, storage_path, parent_id, page_from, page_to, created_at, updated_at
FROM resources
WHERE id = $1
`, id)

	res, err := scanResource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrResourceNotFound, "get resource", errors.New(id))
		}
		return nil, fmt.Errorf("scan resource: %w", err)
	}
	return res, nil
}

func (r *ResourceRepository) ListByParent(ctx context.Context, parentID string) ([]domain.Resource, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, project_id, title, filename, namespace, type, description, code,
	mime_type, byte_size, storage_path, parent_id, page_from, page_to, created_at, updated_at
FROM resources
WHERE parent_id = $1
ORDER BY page_from, created_at
`, parentID)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer rows.Close()

	var out []domain.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child resource: %w", err)
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*domain.Resource, error) {
	var res domain.Resource
	var namespace, typ, description, code, parentID sql.NullString

	err := row.Scan(
		&res.ID, &res.ProjectID, &res.Title, &res.Filename, &namespace, &typ, &description, &code,
		&res.MimeType, &res.ByteSize, &res.StoragePath, &parentID, &res.PageFrom, &res.PageTo,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.Namespace = namespace.String
	res.Type = typ.String
	res.Description = description.String
	res.Code = code.String
	res.ParentID = parentID.String
	return &res, nil
}
