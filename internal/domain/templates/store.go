package templates

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wipetrace/internal/domain/enums"
)

const templateColumns = `id, COALESCE(company_id::text, ''), jurisdiction, template_type, subject, body,
    COALESCE(plain_text, ''), is_default, is_active, created_at, updated_at`

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) FindCompanyTemplate(ctx context.Context, companyID string, j enums.Jurisdiction, tt enums.TemplateType) (Template, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+templateColumns+`
    FROM email_templates
    WHERE company_id = $1 AND jurisdiction = $2 AND template_type = $3 AND is_active = true
    ORDER BY updated_at DESC
    LIMIT 1
  `, companyID, j, tt)
	return scanTemplate(row)
}

func (s *Store) FindDefaultTemplate(ctx context.Context, j enums.Jurisdiction, tt enums.TemplateType) (Template, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+templateColumns+`
    FROM email_templates
    WHERE company_id IS NULL AND jurisdiction = $1 AND template_type = $2
      AND is_default = true AND is_active = true
    ORDER BY updated_at DESC
    LIMIT 1
  `, j, tt)
	return scanTemplate(row)
}

// UpsertTemplate keys templates by jurisdiction, type and company (or the
// default slot) and reactivates an existing row.
func (s *Store) UpsertTemplate(ctx context.Context, in UpsertInput) (Template, error) {
	row := s.DB.QueryRow(ctx, `
    INSERT INTO email_templates (company_id, jurisdiction, template_type, subject, body, plain_text, is_default, is_active)
    VALUES ($1,$2,$3,$4,$5,$6,$7,true)
    ON CONFLICT (jurisdiction, template_type, (COALESCE(company_id::text, 'default')))
    DO UPDATE SET subject = EXCLUDED.subject,
                  body = EXCLUDED.body,
                  plain_text = EXCLUDED.plain_text,
                  is_default = EXCLUDED.is_default,
                  is_active = true,
                  updated_at = now()
    RETURNING `+templateColumns+`
  `, nullIfEmpty(in.CompanyID), in.Jurisdiction, in.TemplateType, in.Subject, in.Body, nullIfEmpty(in.PlainText), in.IsDefault)
	return scanTemplate(row)
}

func (s *Store) DeactivateTemplate(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, `UPDATE email_templates SET is_active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListTemplates(ctx context.Context, filter Filter) ([]Template, error) {
	query := "SELECT " + templateColumns + " FROM email_templates WHERE 1=1"
	var args []any
	if filter.Jurisdiction != nil {
		args = append(args, *filter.Jurisdiction)
		query += fmt.Sprintf(" AND jurisdiction = $%d", len(args))
	}
	if filter.TemplateType != nil {
		args = append(args, *filter.TemplateType)
		query += fmt.Sprintf(" AND template_type = $%d", len(args))
	}
	if filter.CompanyID != nil {
		if *filter.CompanyID == "" {
			query += " AND company_id IS NULL"
		} else {
			args = append(args, *filter.CompanyID)
			query += fmt.Sprintf(" AND company_id = $%d", len(args))
		}
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		query += fmt.Sprintf(" AND is_active = $%d", len(args))
	}
	query += " ORDER BY jurisdiction, template_type, updated_at DESC"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTemplate(row pgx.Row) (Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.CompanyID, &t.Jurisdiction, &t.TemplateType, &t.Subject, &t.Body,
		&t.PlainText, &t.IsDefault, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	return t, err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
