// internal/repository/recipient_repository.go
package repository

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/haulcrm/campaign-engine/internal/model"
)

type RecipientRepositoryInterface interface {
	// EnrollBatch inserts one PENDING recipient per lead at step 0, due
	// immediately. Already-enrolled leads are skipped. Returns the number
	// actually inserted.
	EnrollBatch(campaignID int, leadIDs []int, enrolledAt time.Time) (int, error)

	GetByID(id int) (*model.CampaignRecipient, error)
	ListByCampaign(campaignID int) ([]model.RecipientDetail, error)

	// ListDue returns PENDING recipients of ACTIVE campaigns whose next step
	// is due at or before now.
	ListDue(now time.Time, limit int) ([]model.CampaignRecipient, error)

	// AdvanceStep moves the recipient from fromIndex to fromIndex+1. The
	// update re-verifies at commit time that the recipient is still PENDING
	// at fromIndex and that the campaign is still ACTIVE, so a sweep racing
	// itself or a pause/archive call loses cleanly. status must be PENDING
	// (more steps remain, due at nextSendAt) or SENT (final step done).
	AdvanceStep(id, fromIndex int, status string, nextSendAt, now time.Time) (bool, error)

	// MarkTerminal moves a PENDING recipient at fromIndex to FAILED or
	// OPTED_OUT, guarded the same way as AdvanceStep minus the ACTIVE check
	// (a failure outcome must be recorded even if the campaign was paused
	// after dispatch).
	MarkTerminal(id, fromIndex int, status, reason string, now time.Time) (bool, error)

	// Reenroll resets a FAILED recipient to PENDING at its current step,
	// due immediately. Manual operator action; OPTED_OUT is not eligible.
	Reenroll(id int, now time.Time) (bool, error)

	// ClaimExecution inserts the (recipient, step) execution row that gates
	// dispatch. claimed=false means another sweep already claimed the step;
	// existing then carries that row for recovery decisions.
	ClaimExecution(recipientID, stepIndex int) (claimed bool, existing *model.StepExecution, err error)
	FinishExecution(recipientID, stepIndex int, status, errMsg string, sentAt *time.Time) error

	StatusBreakdown(campaignID int) (map[string]int, error)
}

type RecipientRepository struct {
	DB *sqlx.DB
}

func (r *RecipientRepository) EnrollBatch(campaignID int, leadIDs []int, enrolledAt time.Time) (int, error) {
	if len(leadIDs) == 0 {
		return 0, nil
	}

	tx, err := r.DB.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO campaign_recipients (campaign_id, lead_id, status, current_step_index, enrolled_at, next_send_at)
        VALUES ($1, $2, $3, 0, $4, $4)
        ON CONFLICT (campaign_id, lead_id) DO NOTHING
    `
	inserted := 0
	for _, leadID := range leadIDs {
		res, err := tx.Exec(query, campaignID, leadID, model.RecipientStatusPending, enrolledAt)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *RecipientRepository) GetByID(id int) (*model.CampaignRecipient, error) {
	query := `
        SELECT id, campaign_id, lead_id, status, current_step_index, enrolled_at, next_send_at, last_attempt_at, last_error
        FROM campaign_recipients WHERE id=$1
    `
	var rec model.CampaignRecipient
	if err := r.DB.Get(&rec, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *RecipientRepository) ListByCampaign(campaignID int) ([]model.RecipientDetail, error) {
	query := `
        SELECT r.id, r.campaign_id, r.lead_id, r.status, r.current_step_index,
               r.enrolled_at, r.next_send_at, r.last_attempt_at, r.last_error,
               l.lead_number, l.first_name, l.last_name, l.phone, l.email
        FROM campaign_recipients r
        JOIN leads l ON l.id = r.lead_id
        WHERE r.campaign_id=$1
        ORDER BY r.id
    `
	recipients := []model.RecipientDetail{}
	if err := r.DB.Select(&recipients, query, campaignID); err != nil {
		return nil, err
	}
	return recipients, nil
}

func (r *RecipientRepository) ListDue(now time.Time, limit int) ([]model.CampaignRecipient, error) {
	query := `
        SELECT r.id, r.campaign_id, r.lead_id, r.status, r.current_step_index,
               r.enrolled_at, r.next_send_at, r.last_attempt_at, r.last_error
        FROM campaign_recipients r
        JOIN campaigns c ON c.id = r.campaign_id
        WHERE c.status=$1 AND r.status=$2 AND r.next_send_at <= $3
        ORDER BY r.next_send_at
        LIMIT $4
    `
	due := []model.CampaignRecipient{}
	if err := r.DB.Select(&due, query, model.CampaignStatusActive, model.RecipientStatusPending, now, limit); err != nil {
		return nil, err
	}
	return due, nil
}

func (r *RecipientRepository) AdvanceStep(id, fromIndex int, status string, nextSendAt, now time.Time) (bool, error) {
	query := `
        UPDATE campaign_recipients
        SET current_step_index=$1, status=$2, next_send_at=$3, last_attempt_at=$4, last_error=''
        WHERE id=$5 AND current_step_index=$6 AND status=$7
          AND EXISTS (SELECT 1 FROM campaigns c WHERE c.id = campaign_id AND c.status=$8)
    `
	res, err := r.DB.Exec(query, fromIndex+1, status, nextSendAt, now,
		id, fromIndex, model.RecipientStatusPending, model.CampaignStatusActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RecipientRepository) MarkTerminal(id, fromIndex int, status, reason string, now time.Time) (bool, error) {
	query := `
        UPDATE campaign_recipients
        SET status=$1, last_error=$2, last_attempt_at=$3
        WHERE id=$4 AND current_step_index=$5 AND status=$6
    `
	res, err := r.DB.Exec(query, status, reason, now, id, fromIndex, model.RecipientStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RecipientRepository) Reenroll(id int, now time.Time) (bool, error) {
	tx, err := r.DB.Beginx()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	query := `
        UPDATE campaign_recipients
        SET status=$1, next_send_at=$2, last_error=''
        WHERE id=$3 AND status=$4
        RETURNING current_step_index
    `
	var stepIndex int
	if err := tx.QueryRow(query, model.RecipientStatusPending, now, id, model.RecipientStatusFailed).Scan(&stepIndex); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}

	// Clear the failed execution so the sweep can claim the step again. The
	// dispatch idempotency key is unchanged, so a timed-out send that
	// actually landed is deduplicated by the gateway rather than repeated.
	if _, err := tx.Exec(`DELETE FROM step_executions WHERE recipient_id=$1 AND step_index=$2`, id, stepIndex); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// ClaimExecution is the idempotent insert gating each dispatch, the same
// shape as an idempotent outbound-message insert keyed on its natural key.
func (r *RecipientRepository) ClaimExecution(recipientID, stepIndex int) (bool, *model.StepExecution, error) {
	query := `
        INSERT INTO step_executions (recipient_id, step_index, status, created_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (recipient_id, step_index) DO NOTHING
        RETURNING id
    `
	var execID int
	err := r.DB.QueryRow(query, recipientID, stepIndex, model.ExecutionStatusPending).Scan(&execID)
	if err == nil {
		return true, nil, nil
	}
	if err != sql.ErrNoRows {
		return false, nil, err
	}

	// Lost the claim; fetch the existing row so callers can recover.
	var existing model.StepExecution
	getQuery := `
        SELECT id, recipient_id, step_index, status, error, sent_at, created_at
        FROM step_executions WHERE recipient_id=$1 AND step_index=$2
    `
	if err := r.DB.Get(&existing, getQuery, recipientID, stepIndex); err != nil {
		if err == sql.ErrNoRows {
			return false, nil, nil
		}
		return false, nil, err
	}
	return false, &existing, nil
}

func (r *RecipientRepository) FinishExecution(recipientID, stepIndex int, status, errMsg string, sentAt *time.Time) error {
	query := `
        UPDATE step_executions SET status=$1, error=$2, sent_at=$3
        WHERE recipient_id=$4 AND step_index=$5
    `
	_, err := r.DB.Exec(query, status, errMsg, sentAt, recipientID, stepIndex)
	return err
}

func (r *RecipientRepository) StatusBreakdown(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM campaign_recipients WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		model.RecipientStatusPending:  0,
		model.RecipientStatusSent:     0,
		model.RecipientStatusFailed:   0,
		model.RecipientStatusOptedOut: 0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
