// internal/service/campaign_service.go
package service

import (
	"log"
	"strings"
	"time"

	appErrors "github.com/haulcrm/campaign-engine/internal/errors"
	"github.com/haulcrm/campaign-engine/internal/metrics"
	"github.com/haulcrm/campaign-engine/internal/model"
	"github.com/haulcrm/campaign-engine/internal/repository"
)

// CampaignService owns the campaign lifecycle: creation, the
// DRAFT/ACTIVE/PAUSED/COMPLETED/ARCHIVED state machine, and enrollment.
type CampaignService struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	TemplateRepo  repository.TemplateRepositoryInterface
	Audience      *AudienceService

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// StepInput is one step of a new campaign. TemplateID and inline body are
// mutually exclusive.
type StepInput struct {
	TemplateID *int   `json:"template_id,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Body       string `json:"body,omitempty"`
	DelayDays  int    `json:"delay_days"`
	DelayHours int    `json:"delay_hours"`
}

// CreateCampaignInput is the payload for creating a DRAFT campaign.
type CreateCampaignInput struct {
	Name           string               `json:"name"`
	Description    string               `json:"description,omitempty"`
	Channel        string               `json:"channel"`
	IsDrip         bool                 `json:"is_drip"`
	AudienceFilter model.AudienceFilter `json:"audience_filter"`
	Steps          []StepInput          `json:"steps"`
}

// CreateCampaign validates and persists a campaign in DRAFT. Nothing is
// enrolled until activation.
func (s *CampaignService) CreateCampaign(input CreateCampaignInput) (*model.Campaign, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, appErrors.NewValidation("campaign name is required")
	}
	if !model.ValidChannel(input.Channel) {
		return nil, appErrors.NewValidation("unknown channel %q", input.Channel)
	}
	if len(input.Steps) == 0 {
		return nil, appErrors.NewValidation("campaign needs at least one step")
	}
	if !input.IsDrip && len(input.Steps) != 1 {
		return nil, appErrors.NewValidation("non-drip campaign must have exactly one step")
	}

	steps := make([]model.CampaignStep, len(input.Steps))
	for i, in := range input.Steps {
		if in.TemplateID != nil && strings.TrimSpace(in.Body) != "" {
			return nil, appErrors.NewValidation("step %d: template and inline body are mutually exclusive", i)
		}
		if in.TemplateID == nil && strings.TrimSpace(in.Body) == "" {
			return nil, appErrors.NewValidation("step %d: either a template or an inline body is required", i)
		}
		if in.DelayDays < 0 || in.DelayHours < 0 {
			return nil, appErrors.NewValidation("step %d: delays cannot be negative", i)
		}
		if in.TemplateID != nil {
			t, err := s.TemplateRepo.GetByID(*in.TemplateID)
			if err != nil {
				return nil, err
			}
			if t == nil {
				return nil, appErrors.NewValidation("step %d: template %d does not exist", i, *in.TemplateID)
			}
			if t.Channel != input.Channel {
				return nil, appErrors.NewValidation("step %d: template %d is a %s template", i, t.ID, t.Channel)
			}
		}
		steps[i] = model.CampaignStep{
			SortOrder:  i,
			TemplateID: in.TemplateID,
			Subject:    in.Subject,
			Body:       in.Body,
			DelayDays:  in.DelayDays,
			DelayHours: in.DelayHours,
		}
	}

	campaign := &model.Campaign{
		Name:           input.Name,
		Description:    input.Description,
		Channel:        input.Channel,
		IsDrip:         input.IsDrip,
		AudienceFilter: input.AudienceFilter,
		Status:         model.CampaignStatusDraft,
	}
	if err := s.CampaignRepo.Create(campaign, steps); err != nil {
		return nil, err
	}
	return campaign, nil
}

// Activate moves a campaign to ACTIVE. From DRAFT the audience filter is
// resolved against the current lead population and matching reachable leads
// are enrolled at step 0; that snapshot is fixed for the campaign's lifetime.
// From PAUSED scheduling resumes without re-enrolling or re-scanning — leads
// that started matching while paused are not picked up.
func (s *CampaignService) Activate(id int) (*model.Campaign, error) {
	campaign, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	switch campaign.Status {
	case model.CampaignStatusDraft:
		if campaign.AudienceFilter.Empty() {
			log.Printf("⚠️ campaign %d has no audience filter: activating broadcasts to the entire population", id)
		}
		leads, err := s.Audience.Resolve(campaign.AudienceFilter, campaign.Channel)
		if err != nil {
			return nil, err
		}
		leadIDs := make([]int, len(leads))
		for i, l := range leads {
			leadIDs[i] = l.ID
		}
		enrolled, err := s.RecipientRepo.EnrollBatch(id, leadIDs, s.now())
		if err != nil {
			return nil, err
		}
		if err := s.CampaignRepo.SetTotalRecipients(id, enrolled); err != nil {
			return nil, err
		}
		metrics.RecipientsEnrolled.Add(float64(enrolled))
		log.Printf("📋 campaign %d enrolled %d recipients", id, enrolled)

		ok, err := s.CampaignRepo.UpdateStatus(id, []string{model.CampaignStatusDraft}, model.CampaignStatusActive)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, appErrors.NewTransition(campaign.Status, model.CampaignStatusActive)
		}

	case model.CampaignStatusPaused:
		ok, err := s.CampaignRepo.UpdateStatus(id, []string{model.CampaignStatusPaused}, model.CampaignStatusActive)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, appErrors.NewTransition(campaign.Status, model.CampaignStatusActive)
		}

	default:
		return nil, appErrors.NewTransition(campaign.Status, model.CampaignStatusActive)
	}

	return s.CampaignRepo.GetByID(id)
}

// Pause halts scheduling for an ACTIVE campaign. Sends already dispatched in
// the current sweep are not rolled back; recipients the sweep has not yet
// committed stay where they are.
func (s *CampaignService) Pause(id int) error {
	campaign, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return err
	}
	ok, err := s.CampaignRepo.UpdateStatus(id, []string{model.CampaignStatusActive}, model.CampaignStatusPaused)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.NewTransition(campaign.Status, model.CampaignStatusPaused)
	}
	return nil
}

// Archive is terminal and legal from any state except ARCHIVED. History is
// retained; all future processing stops.
func (s *CampaignService) Archive(id int) error {
	campaign, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return err
	}
	from := []string{
		model.CampaignStatusDraft,
		model.CampaignStatusActive,
		model.CampaignStatusPaused,
		model.CampaignStatusCompleted,
	}
	ok, err := s.CampaignRepo.UpdateStatus(id, from, model.CampaignStatusArchived)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.NewTransition(campaign.Status, model.CampaignStatusArchived)
	}
	return nil
}

// ListCampaigns fetches campaigns with pagination.
func (s *CampaignService) ListCampaigns(page, pageSize int, channel, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, channel, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

// CampaignDetails is a campaign plus its steps and recipient breakdown.
type CampaignDetails struct {
	model.Campaign
	Steps []model.CampaignStep `json:"steps"`
	Stats map[string]int       `json:"stats"`
}

// GetDetails fetches a campaign with steps and per-status recipient counts.
func (s *CampaignService) GetDetails(id int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	steps, err := s.CampaignRepo.ListSteps(id)
	if err != nil {
		return nil, err
	}
	stats, err := s.RecipientRepo.StatusBreakdown(id)
	if err != nil {
		return nil, err
	}
	return &CampaignDetails{Campaign: *campaign, Steps: steps, Stats: stats}, nil
}

// ListRecipients returns the campaign's recipients with lead summaries.
func (s *CampaignService) ListRecipients(campaignID int) ([]model.RecipientDetail, error) {
	if _, err := s.CampaignRepo.GetByID(campaignID); err != nil {
		return nil, err
	}
	return s.RecipientRepo.ListByCampaign(campaignID)
}

// ReenrollRecipient resets a FAILED recipient to PENDING at its current step.
// This is the only retry path for failed sends; OPTED_OUT stays terminal.
func (s *CampaignService) ReenrollRecipient(campaignID, recipientID int) error {
	rec, err := s.RecipientRepo.GetByID(recipientID)
	if err != nil {
		return err
	}
	if rec == nil || rec.CampaignID != campaignID {
		return appErrors.NewNotFound("recipient", recipientID)
	}
	if rec.Status != model.RecipientStatusFailed {
		return appErrors.NewTransition(rec.Status, model.RecipientStatusPending)
	}
	ok, err := s.RecipientRepo.Reenroll(recipientID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.NewTransition(rec.Status, model.RecipientStatusPending)
	}

	// A failure on the last outstanding recipient completes the campaign, so
	// the re-enrolled recipient needs it back in ACTIVE to be swept. PAUSED
	// and ARCHIVED stay put; the operator resumes or the retry stays parked.
	reopened, err := s.CampaignRepo.UpdateStatus(campaignID,
		[]string{model.CampaignStatusCompleted}, model.CampaignStatusActive)
	if err != nil {
		return err
	}
	if reopened {
		log.Printf("🔁 campaign %d reopened for re-enrolled recipient %d", campaignID, recipientID)
	}
	return nil
}
