// internal/repository/template_repository.go
package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	appErrors "github.com/haulcrm/campaign-engine/internal/errors"
	"github.com/haulcrm/campaign-engine/internal/model"
)

// foreignKeyViolation is the Postgres error code for a RESTRICT reference.
const foreignKeyViolation = pq.ErrorCode("23503")

type TemplateRepositoryInterface interface {
	Create(t *model.MessageTemplate) error
	Update(t *model.MessageTemplate) error
	Delete(id int) error
	GetByID(id int) (*model.MessageTemplate, error)
	List() ([]model.MessageTemplate, error)
}

type TemplateRepository struct {
	DB *sqlx.DB
}

func (r *TemplateRepository) Create(t *model.MessageTemplate) error {
	t.CreatedAt = time.Now()
	query := `
        INSERT INTO message_templates (name, channel, subject, body, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `
	return r.DB.QueryRow(query, t.Name, t.Channel, t.Subject, t.Body, t.CreatedBy, t.CreatedAt).Scan(&t.ID)
}

func (r *TemplateRepository) Update(t *model.MessageTemplate) error {
	query := `
        UPDATE message_templates
        SET name=$1, channel=$2, subject=$3, body=$4, updated_at=NOW()
        WHERE id=$5
    `
	res, err := r.DB.Exec(query, t.Name, t.Channel, t.Subject, t.Body, t.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewNotFound("template", t.ID)
	}
	return nil
}

// Delete removes a template. Campaign steps and automation rules hold
// RESTRICT references, so deleting a template still in use is a conflict the
// operator resolves by editing the referrers first.
func (r *TemplateRepository) Delete(id int) error {
	res, err := r.DB.Exec(`DELETE FROM message_templates WHERE id=$1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return appErrors.NewConflict("template %d is still referenced by a campaign step or automation rule", id)
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewNotFound("template", id)
	}
	return nil
}

func (r *TemplateRepository) GetByID(id int) (*model.MessageTemplate, error) {
	query := `
        SELECT id, name, channel, subject, body, created_by, created_at, updated_at
        FROM message_templates WHERE id=$1
    `
	var t model.MessageTemplate
	if err := r.DB.Get(&t, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) List() ([]model.MessageTemplate, error) {
	query := `
        SELECT id, name, channel, subject, body, created_by, created_at, updated_at
        FROM message_templates ORDER BY name
    `
	templates := []model.MessageTemplate{}
	if err := r.DB.Select(&templates, query); err != nil {
		return nil, err
	}
	return templates, nil
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
