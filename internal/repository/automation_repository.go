// internal/repository/automation_repository.go
package repository

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/haulcrm/campaign-engine/internal/errors"
	"github.com/haulcrm/campaign-engine/internal/model"
)

type AutomationRepositoryInterface interface {
	Create(rule *model.AutomationRule) error
	Update(rule *model.AutomationRule) error
	Delete(id int) error
	SetEnabled(id int, enabled bool) error
	GetByID(id int) (*model.AutomationRule, error)
	List() ([]model.AutomationRule, error)
	ListEnabled() ([]model.AutomationRule, error)

	// ClaimFiring inserts the (rule, lead, event) firing record that gates
	// dispatch. false means this event was already handled for this rule.
	ClaimFiring(ruleID, leadID int, eventID string) (bool, error)
	FinishFiring(ruleID, leadID int, eventID, status, errMsg string) error
	ListFirings(ruleID int, limit int) ([]model.AutomationFiring, error)
}

type AutomationRepository struct {
	DB *sqlx.DB
}

const ruleColumns = `id, name, enabled, channel, trigger_type, trigger_value,
	template_id, subject, body, created_at, updated_at`

func (r *AutomationRepository) Create(rule *model.AutomationRule) error {
	rule.CreatedAt = time.Now()
	query := `
        INSERT INTO automation_rules (name, enabled, channel, trigger_type, trigger_value, template_id, subject, body, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `
	return r.DB.QueryRow(query, rule.Name, rule.Enabled, rule.Channel, rule.TriggerType,
		rule.TriggerValue, rule.TemplateID, rule.Subject, rule.Body, rule.CreatedAt).Scan(&rule.ID)
}

func (r *AutomationRepository) Update(rule *model.AutomationRule) error {
	query := `
        UPDATE automation_rules
        SET name=$1, channel=$2, trigger_type=$3, trigger_value=$4, template_id=$5, subject=$6, body=$7, updated_at=NOW()
        WHERE id=$8
    `
	res, err := r.DB.Exec(query, rule.Name, rule.Channel, rule.TriggerType,
		rule.TriggerValue, rule.TemplateID, rule.Subject, rule.Body, rule.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewNotFound("automation rule", rule.ID)
	}
	return nil
}

func (r *AutomationRepository) Delete(id int) error {
	res, err := r.DB.Exec(`DELETE FROM automation_rules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewNotFound("automation rule", id)
	}
	return nil
}

func (r *AutomationRepository) SetEnabled(id int, enabled bool) error {
	res, err := r.DB.Exec(`UPDATE automation_rules SET enabled=$1, updated_at=NOW() WHERE id=$2`, enabled, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewNotFound("automation rule", id)
	}
	return nil
}

func (r *AutomationRepository) GetByID(id int) (*model.AutomationRule, error) {
	var rule model.AutomationRule
	if err := r.DB.Get(&rule, `SELECT `+ruleColumns+` FROM automation_rules WHERE id=$1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *AutomationRepository) List() ([]model.AutomationRule, error) {
	rules := []model.AutomationRule{}
	if err := r.DB.Select(&rules, `SELECT `+ruleColumns+` FROM automation_rules ORDER BY id`); err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *AutomationRepository) ListEnabled() ([]model.AutomationRule, error) {
	rules := []model.AutomationRule{}
	if err := r.DB.Select(&rules, `SELECT `+ruleColumns+` FROM automation_rules WHERE enabled ORDER BY id`); err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *AutomationRepository) ClaimFiring(ruleID, leadID int, eventID string) (bool, error) {
	query := `
        INSERT INTO automation_firings (rule_id, lead_id, event_id, status, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (rule_id, lead_id, event_id) DO NOTHING
        RETURNING id
    `
	var id int
	err := r.DB.QueryRow(query, ruleID, leadID, eventID, model.ExecutionStatusPending).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *AutomationRepository) FinishFiring(ruleID, leadID int, eventID, status, errMsg string) error {
	query := `
        UPDATE automation_firings SET status=$1, error=$2
        WHERE rule_id=$3 AND lead_id=$4 AND event_id=$5
    `
	_, err := r.DB.Exec(query, status, errMsg, ruleID, leadID, eventID)
	return err
}

func (r *AutomationRepository) ListFirings(ruleID int, limit int) ([]model.AutomationFiring, error) {
	query := `
        SELECT id, rule_id, lead_id, event_id, status, error, created_at
        FROM automation_firings WHERE rule_id=$1 ORDER BY id DESC LIMIT $2
    `
	firings := []model.AutomationFiring{}
	if err := r.DB.Select(&firings, query, ruleID, limit); err != nil {
		return nil, err
	}
	return firings, nil
}

var _ AutomationRepositoryInterface = (*AutomationRepository)(nil)
