// internal/repository/campaign_repository.go
package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	appErrors "github.com/haulcrm/campaign-engine/internal/errors"
	"github.com/haulcrm/campaign-engine/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign, steps []model.CampaignStep) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(offset, limit int, channel, status string) ([]*model.Campaign, int, error)
	ListSteps(campaignID int) ([]model.CampaignStep, error)

	// UpdateStatus flips the campaign status only when the current status is
	// one of from. Returns false when the precondition no longer holds, so a
	// racing activate/pause/archive loses cleanly.
	UpdateStatus(campaignID int, from []string, to string) (bool, error)

	SetTotalRecipients(campaignID, total int) error
	IncrementSent(campaignID int) error
	IncrementFailed(campaignID int) error

	// CompleteIfDone moves an ACTIVE campaign with no PENDING recipients to
	// COMPLETED. Returns whether the transition happened.
	CompleteIfDone(campaignID int) (bool, error)
}

type CampaignRepository struct {
	DB *sqlx.DB
}

const campaignColumns = `id, name, description, channel, is_drip, audience_filter,
	status, total_recipients, total_sent, total_failed, created_at, updated_at`

// Create inserts the campaign and its ordered steps in one transaction.
func (r *CampaignRepository) Create(c *model.Campaign, steps []model.CampaignStep) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}

	tx, err := r.DB.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO campaigns (name, description, channel, is_drip, audience_filter, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	if err := tx.QueryRow(query, c.Name, c.Description, c.Channel, c.IsDrip, c.AudienceFilter, c.Status, c.CreatedAt).Scan(&c.ID); err != nil {
		return err
	}

	stepQuery := `
        INSERT INTO campaign_steps (campaign_id, sort_order, template_id, subject, body, delay_days, delay_hours)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	for i := range steps {
		steps[i].CampaignID = c.ID
		steps[i].SortOrder = i
		s := &steps[i]
		if err := tx.QueryRow(stepQuery, c.ID, s.SortOrder, s.TemplateID, s.Subject, s.Body, s.DelayDays, s.DelayHours).Scan(&s.ID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`

	var c model.Campaign
	if err := r.DB.Get(&c, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewNotFound("campaign", id)
		}
		return nil, err
	}
	return &c, nil
}

// ListCampaigns returns a page of campaigns plus the total count. Archived
// campaigns are hidden unless explicitly requested by status.
func (r *CampaignRepository) ListCampaigns(offset, limit int, channel, status string) ([]*model.Campaign, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if channel != "" {
		where += fmt.Sprintf(" AND channel=$%d", argPos)
		args = append(args, channel)
		argPos++
	}
	if status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	} else {
		where += fmt.Sprintf(" AND status <> '%s'", model.CampaignStatusArchived)
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	pageArgs := append(append([]interface{}{}, args...), limit, offset)

	campaigns := []*model.Campaign{}
	if err := r.DB.Select(&campaigns, query, pageArgs...); err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM campaigns` + where
	if err := r.DB.Get(&total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) ListSteps(campaignID int) ([]model.CampaignStep, error) {
	query := `
        SELECT id, campaign_id, sort_order, template_id, subject, body, delay_days, delay_hours
        FROM campaign_steps WHERE campaign_id=$1 ORDER BY sort_order
    `
	steps := []model.CampaignStep{}
	if err := r.DB.Select(&steps, query, campaignID); err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *CampaignRepository) UpdateStatus(campaignID int, from []string, to string) (bool, error) {
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND status = ANY($3)`
	res, err := r.DB.Exec(query, to, campaignID, pq.Array(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *CampaignRepository) SetTotalRecipients(campaignID, total int) error {
	_, err := r.DB.Exec(`UPDATE campaigns SET total_recipients=$1, updated_at=NOW() WHERE id=$2`, total, campaignID)
	return err
}

func (r *CampaignRepository) IncrementSent(campaignID int) error {
	_, err := r.DB.Exec(`UPDATE campaigns SET total_sent=total_sent+1, updated_at=NOW() WHERE id=$1`, campaignID)
	return err
}

func (r *CampaignRepository) IncrementFailed(campaignID int) error {
	_, err := r.DB.Exec(`UPDATE campaigns SET total_failed=total_failed+1, updated_at=NOW() WHERE id=$1`, campaignID)
	return err
}

func (r *CampaignRepository) CompleteIfDone(campaignID int) (bool, error) {
	query := `
        UPDATE campaigns SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status=$3
          AND NOT EXISTS (
              SELECT 1 FROM campaign_recipients
              WHERE campaign_id=$2 AND status=$4
          )
    `
	res, err := r.DB.Exec(query, model.CampaignStatusCompleted, campaignID,
		model.CampaignStatusActive, model.RecipientStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
