package service_test

import (
	"fmt"
	"sort"
	"time"

	appErrors "github.com/haulcrm/campaign-engine/internal/errors"
	"github.com/haulcrm/campaign-engine/internal/model"
)

// In-memory repositories shared by the service tests. They mirror the
// conditional-update semantics of the real Postgres repositories closely
// enough to exercise the state machines.

type memLeadRepo struct {
	leads map[int]*model.Lead
}

func (m *memLeadRepo) GetByID(id int) (*model.Lead, error) {
	l, ok := m.leads[id]
	if !ok || l.DeletedAt != nil {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (m *memLeadRepo) ListActive() ([]model.Lead, error) {
	ids := make([]int, 0, len(m.leads))
	for id, l := range m.leads {
		if l.DeletedAt == nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	out := make([]model.Lead, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.leads[id])
	}
	return out, nil
}

type memTemplateRepo struct {
	templates map[int]*model.MessageTemplate
	nextID    int
}

func (m *memTemplateRepo) Create(t *model.MessageTemplate) error {
	m.nextID++
	t.ID = m.nextID
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

func (m *memTemplateRepo) Update(t *model.MessageTemplate) error {
	if _, ok := m.templates[t.ID]; !ok {
		return appErrors.NewNotFound("template", t.ID)
	}
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

func (m *memTemplateRepo) Delete(id int) error {
	if _, ok := m.templates[id]; !ok {
		return appErrors.NewNotFound("template", id)
	}
	delete(m.templates, id)
	return nil
}

func (m *memTemplateRepo) GetByID(id int) (*model.MessageTemplate, error) {
	t, ok := m.templates[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memTemplateRepo) List() ([]model.MessageTemplate, error) {
	out := []model.MessageTemplate{}
	for _, t := range m.templates {
		out = append(out, *t)
	}
	return out, nil
}

type memCampaignRepo struct {
	campaigns  map[int]*model.Campaign
	steps      map[int][]model.CampaignStep
	nextID     int
	recipients *memRecipientRepo
}

func (m *memCampaignRepo) Create(c *model.Campaign, steps []model.CampaignStep) error {
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	cp := *c
	m.campaigns[c.ID] = &cp
	for i := range steps {
		steps[i].CampaignID = c.ID
		steps[i].ID = i + 1
	}
	m.steps[c.ID] = steps
	return nil
}

func (m *memCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewNotFound("campaign", id)
	}
	cp := *c
	return &cp, nil
}

func (m *memCampaignRepo) ListCampaigns(offset, limit int, channel, status string) ([]*model.Campaign, int, error) {
	ids := make([]int, 0, len(m.campaigns))
	for id := range m.campaigns {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))

	filtered := []*model.Campaign{}
	for _, id := range ids {
		c := m.campaigns[id]
		if channel != "" && c.Channel != channel {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		if status == "" && c.Status == model.CampaignStatusArchived {
			continue
		}
		cp := *c
		filtered = append(filtered, &cp)
	}

	total := len(filtered)
	if offset >= total {
		return []*model.Campaign{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return filtered[offset:end], total, nil
}

func (m *memCampaignRepo) ListSteps(campaignID int) ([]model.CampaignStep, error) {
	return append([]model.CampaignStep{}, m.steps[campaignID]...), nil
}

func (m *memCampaignRepo) UpdateStatus(campaignID int, from []string, to string) (bool, error) {
	c, ok := m.campaigns[campaignID]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if c.Status == f {
			c.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (m *memCampaignRepo) SetTotalRecipients(campaignID, total int) error {
	if c, ok := m.campaigns[campaignID]; ok {
		c.TotalRecipients = total
	}
	return nil
}

func (m *memCampaignRepo) IncrementSent(campaignID int) error {
	if c, ok := m.campaigns[campaignID]; ok {
		c.TotalSent++
	}
	return nil
}

func (m *memCampaignRepo) IncrementFailed(campaignID int) error {
	if c, ok := m.campaigns[campaignID]; ok {
		c.TotalFailed++
	}
	return nil
}

func (m *memCampaignRepo) CompleteIfDone(campaignID int) (bool, error) {
	c, ok := m.campaigns[campaignID]
	if !ok || c.Status != model.CampaignStatusActive {
		return false, nil
	}
	for _, r := range m.recipients.recipients {
		if r.CampaignID == campaignID && r.Status == model.RecipientStatusPending {
			return false, nil
		}
	}
	c.Status = model.CampaignStatusCompleted
	return true, nil
}

type execKey struct {
	recipientID int
	stepIndex   int
}

type memRecipientRepo struct {
	recipients map[int]*model.CampaignRecipient
	executions map[execKey]*model.StepExecution
	nextID     int
	campaigns  *memCampaignRepo
	leads      *memLeadRepo
}

func (m *memRecipientRepo) EnrollBatch(campaignID int, leadIDs []int, enrolledAt time.Time) (int, error) {
	inserted := 0
	for _, leadID := range leadIDs {
		dup := false
		for _, r := range m.recipients {
			if r.CampaignID == campaignID && r.LeadID == leadID {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		m.nextID++
		m.recipients[m.nextID] = &model.CampaignRecipient{
			ID:         m.nextID,
			CampaignID: campaignID,
			LeadID:     leadID,
			Status:     model.RecipientStatusPending,
			EnrolledAt: enrolledAt,
			NextSendAt: enrolledAt,
		}
		inserted++
	}
	return inserted, nil
}

func (m *memRecipientRepo) GetByID(id int) (*model.CampaignRecipient, error) {
	r, ok := m.recipients[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memRecipientRepo) ListByCampaign(campaignID int) ([]model.RecipientDetail, error) {
	out := []model.RecipientDetail{}
	for _, id := range m.sortedIDs() {
		r := m.recipients[id]
		if r.CampaignID != campaignID {
			continue
		}
		d := model.RecipientDetail{CampaignRecipient: *r}
		if l, ok := m.leads.leads[r.LeadID]; ok {
			d.LeadNumber = l.LeadNumber
			d.FirstName = l.FirstName
			d.LastName = l.LastName
			d.Phone = l.Phone
			d.Email = l.Email
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *memRecipientRepo) ListDue(now time.Time, limit int) ([]model.CampaignRecipient, error) {
	out := []model.CampaignRecipient{}
	for _, id := range m.sortedIDs() {
		if len(out) >= limit {
			break
		}
		r := m.recipients[id]
		if r.Status != model.RecipientStatusPending || r.NextSendAt.After(now) {
			continue
		}
		c, ok := m.campaigns.campaigns[r.CampaignID]
		if !ok || c.Status != model.CampaignStatusActive {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (m *memRecipientRepo) AdvanceStep(id, fromIndex int, status string, nextSendAt, now time.Time) (bool, error) {
	r, ok := m.recipients[id]
	if !ok || r.Status != model.RecipientStatusPending || r.CurrentStepIndex != fromIndex {
		return false, nil
	}
	c, ok := m.campaigns.campaigns[r.CampaignID]
	if !ok || c.Status != model.CampaignStatusActive {
		return false, nil
	}
	r.CurrentStepIndex = fromIndex + 1
	r.Status = status
	r.NextSendAt = nextSendAt
	r.LastAttemptAt = &now
	r.LastError = ""
	return true, nil
}

func (m *memRecipientRepo) MarkTerminal(id, fromIndex int, status, reason string, now time.Time) (bool, error) {
	r, ok := m.recipients[id]
	if !ok || r.Status != model.RecipientStatusPending || r.CurrentStepIndex != fromIndex {
		return false, nil
	}
	r.Status = status
	r.LastError = reason
	r.LastAttemptAt = &now
	return true, nil
}

func (m *memRecipientRepo) Reenroll(id int, now time.Time) (bool, error) {
	r, ok := m.recipients[id]
	if !ok || r.Status != model.RecipientStatusFailed {
		return false, nil
	}
	r.Status = model.RecipientStatusPending
	r.NextSendAt = now
	r.LastError = ""
	delete(m.executions, execKey{id, r.CurrentStepIndex})
	return true, nil
}

func (m *memRecipientRepo) ClaimExecution(recipientID, stepIndex int) (bool, *model.StepExecution, error) {
	key := execKey{recipientID, stepIndex}
	if existing, ok := m.executions[key]; ok {
		cp := *existing
		return false, &cp, nil
	}
	m.executions[key] = &model.StepExecution{
		RecipientID: recipientID,
		StepIndex:   stepIndex,
		Status:      model.ExecutionStatusPending,
		CreatedAt:   time.Now(),
	}
	return true, nil, nil
}

func (m *memRecipientRepo) FinishExecution(recipientID, stepIndex int, status, errMsg string, sentAt *time.Time) error {
	e, ok := m.executions[execKey{recipientID, stepIndex}]
	if !ok {
		return fmt.Errorf("no execution for recipient %d step %d", recipientID, stepIndex)
	}
	e.Status = status
	e.Error = errMsg
	e.SentAt = sentAt
	return nil
}

func (m *memRecipientRepo) StatusBreakdown(campaignID int) (map[string]int, error) {
	out := map[string]int{}
	for _, r := range m.recipients {
		if r.CampaignID == campaignID {
			out[r.Status]++
		}
	}
	return out, nil
}

func (m *memRecipientRepo) sortedIDs() []int {
	ids := make([]int, 0, len(m.recipients))
	for id := range m.recipients {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

type firingKey struct {
	ruleID  int
	leadID  int
	eventID string
}

type memRuleRepo struct {
	rules   map[int]*model.AutomationRule
	firings map[firingKey]*model.AutomationFiring
	nextID  int
}

func (m *memRuleRepo) Create(rule *model.AutomationRule) error {
	m.nextID++
	rule.ID = m.nextID
	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *memRuleRepo) Update(rule *model.AutomationRule) error {
	if _, ok := m.rules[rule.ID]; !ok {
		return appErrors.NewNotFound("automation rule", rule.ID)
	}
	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *memRuleRepo) Delete(id int) error {
	if _, ok := m.rules[id]; !ok {
		return appErrors.NewNotFound("automation rule", id)
	}
	delete(m.rules, id)
	return nil
}

func (m *memRuleRepo) SetEnabled(id int, enabled bool) error {
	r, ok := m.rules[id]
	if !ok {
		return appErrors.NewNotFound("automation rule", id)
	}
	r.Enabled = enabled
	return nil
}

func (m *memRuleRepo) GetByID(id int) (*model.AutomationRule, error) {
	r, ok := m.rules[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memRuleRepo) List() ([]model.AutomationRule, error) {
	out := []model.AutomationRule{}
	for _, id := range m.sortedRuleIDs() {
		out = append(out, *m.rules[id])
	}
	return out, nil
}

func (m *memRuleRepo) ListEnabled() ([]model.AutomationRule, error) {
	out := []model.AutomationRule{}
	for _, id := range m.sortedRuleIDs() {
		if m.rules[id].Enabled {
			out = append(out, *m.rules[id])
		}
	}
	return out, nil
}

func (m *memRuleRepo) ClaimFiring(ruleID, leadID int, eventID string) (bool, error) {
	key := firingKey{ruleID, leadID, eventID}
	if _, ok := m.firings[key]; ok {
		return false, nil
	}
	m.firings[key] = &model.AutomationFiring{
		RuleID:    ruleID,
		LeadID:    leadID,
		EventID:   eventID,
		Status:    model.ExecutionStatusPending,
		CreatedAt: time.Now(),
	}
	return true, nil
}

func (m *memRuleRepo) FinishFiring(ruleID, leadID int, eventID, status, errMsg string) error {
	f, ok := m.firings[firingKey{ruleID, leadID, eventID}]
	if !ok {
		return fmt.Errorf("no firing for rule %d lead %d event %s", ruleID, leadID, eventID)
	}
	f.Status = status
	f.Error = errMsg
	return nil
}

func (m *memRuleRepo) ListFirings(ruleID int, limit int) ([]model.AutomationFiring, error) {
	out := []model.AutomationFiring{}
	for _, f := range m.firings {
		if f.RuleID == ruleID && len(out) < limit {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *memRuleRepo) sortedRuleIDs() []int {
	ids := make([]int, 0, len(m.rules))
	for id := range m.rules {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// fixture wires the in-memory repositories together the way the real ones are
// wired through Postgres.
type fixture struct {
	leads      *memLeadRepo
	templates  *memTemplateRepo
	campaigns  *memCampaignRepo
	recipients *memRecipientRepo
	rules      *memRuleRepo
}

func newFixture() *fixture {
	f := &fixture{
		leads:     &memLeadRepo{leads: map[int]*model.Lead{}},
		templates: &memTemplateRepo{templates: map[int]*model.MessageTemplate{}},
		rules:     &memRuleRepo{rules: map[int]*model.AutomationRule{}, firings: map[firingKey]*model.AutomationFiring{}},
	}
	f.campaigns = &memCampaignRepo{campaigns: map[int]*model.Campaign{}, steps: map[int][]model.CampaignStep{}}
	f.recipients = &memRecipientRepo{
		recipients: map[int]*model.CampaignRecipient{},
		executions: map[execKey]*model.StepExecution{},
		campaigns:  f.campaigns,
		leads:      f.leads,
	}
	f.campaigns.recipients = f.recipients
	return f
}

func (f *fixture) addLead(l model.Lead) {
	cp := l
	f.leads.leads[l.ID] = &cp
}
