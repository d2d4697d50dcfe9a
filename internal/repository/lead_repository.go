// internal/repository/lead_repository.go
package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/haulcrm/campaign-engine/internal/model"
)

// LeadRepositoryInterface is the engine's read-only view of CRM leads.
// Lead persistence is owned by the surrounding CRM; the engine never writes.
type LeadRepositoryInterface interface {
	GetByID(id int) (*model.Lead, error)
	ListActive() ([]model.Lead, error)
}

type LeadRepository struct {
	DB *sqlx.DB
}

const leadColumns = `id, lead_number, first_name, last_name, phone, email,
	status, source, priority, tags, opted_out, deleted_at`

// GetByID fetches a lead by ID, nil when missing or soft-deleted.
func (r *LeadRepository) GetByID(id int) (*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1 AND deleted_at IS NULL`

	var l model.Lead
	if err := r.DB.Get(&l, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// ListActive fetches the live lead population (soft-deleted leads excluded).
func (r *LeadRepository) ListActive() ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE deleted_at IS NULL ORDER BY id`

	leads := []model.Lead{}
	if err := r.DB.Select(&leads, query); err != nil {
		return nil, err
	}
	return leads, nil
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
