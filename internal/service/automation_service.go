// internal/service/automation_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/haulcrm/campaign-engine/internal/dispatch"
	appErrors "github.com/haulcrm/campaign-engine/internal/errors"
	"github.com/haulcrm/campaign-engine/internal/metrics"
	"github.com/haulcrm/campaign-engine/internal/model"
	"github.com/haulcrm/campaign-engine/internal/repository"
)

// AutomationService evaluates automation rules against lead lifecycle events
// and fires ad hoc sends, bypassing campaign and recipient bookkeeping.
// Event delivery is the lead-management subsystem's responsibility; this
// service only reacts to the payloads it is handed.
type AutomationService struct {
	RuleRepo     repository.AutomationRepositoryInterface
	TemplateRepo repository.TemplateRepositoryInterface
	LeadRepo     repository.LeadRepositoryInterface
	Gateway      dispatch.Gateway
}

func (s *AutomationService) validate(rule *model.AutomationRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return appErrors.NewValidation("rule name is required")
	}
	if !model.ValidChannel(rule.Channel) {
		return appErrors.NewValidation("unknown channel %q", rule.Channel)
	}
	if !model.ValidTriggerType(rule.TriggerType) {
		return appErrors.NewValidation("unknown trigger type %q", rule.TriggerType)
	}
	if rule.TriggerType == model.TriggerStatusChange && rule.TriggerValue.ToStatus == "" {
		return appErrors.NewValidation("status_change trigger requires toStatus")
	}
	if rule.TriggerType == model.TriggerTagAdded && rule.TriggerValue.Tag == "" {
		return appErrors.NewValidation("tag_added trigger requires a tag")
	}
	if rule.TemplateID != nil && strings.TrimSpace(rule.Body) != "" {
		return appErrors.NewValidation("template and inline body are mutually exclusive")
	}
	if rule.TemplateID == nil && strings.TrimSpace(rule.Body) == "" {
		return appErrors.NewValidation("either a template or an inline body is required")
	}
	if rule.TemplateID != nil {
		t, err := s.TemplateRepo.GetByID(*rule.TemplateID)
		if err != nil {
			return err
		}
		if t == nil {
			return appErrors.NewValidation("template %d does not exist", *rule.TemplateID)
		}
		if t.Channel != rule.Channel {
			return appErrors.NewValidation("template %d is a %s template", t.ID, t.Channel)
		}
	}
	return nil
}

func (s *AutomationService) CreateRule(rule *model.AutomationRule) error {
	if err := s.validate(rule); err != nil {
		return err
	}
	return s.RuleRepo.Create(rule)
}

func (s *AutomationService) UpdateRule(rule *model.AutomationRule) error {
	if err := s.validate(rule); err != nil {
		return err
	}
	return s.RuleRepo.Update(rule)
}

func (s *AutomationService) DeleteRule(id int) error {
	return s.RuleRepo.Delete(id)
}

func (s *AutomationService) ToggleRule(id int, enabled bool) error {
	return s.RuleRepo.SetEnabled(id, enabled)
}

func (s *AutomationService) GetRule(id int) (*model.AutomationRule, error) {
	return s.RuleRepo.GetByID(id)
}

func (s *AutomationService) ListRules() ([]model.AutomationRule, error) {
	return s.RuleRepo.List()
}

func (s *AutomationService) ListFirings(ruleID, limit int) ([]model.AutomationFiring, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.RuleRepo.ListFirings(ruleID, limit)
}

// Evaluate returns the enabled rules whose trigger matches the event. The
// rule channel never affects matching.
func (s *AutomationService) Evaluate(ev *model.LeadEvent) ([]model.AutomationRule, error) {
	rules, err := s.RuleRepo.ListEnabled()
	if err != nil {
		return nil, err
	}
	matched := []model.AutomationRule{}
	for _, rule := range rules {
		if rule.Matches(ev) {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}

// FireReport summarizes how one event was handled.
type FireReport struct {
	Matched int `json:"matched"`
	Fired   int `json:"fired"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"` // duplicate event delivery or unreachable lead
}

// HandleEvent evaluates the event and fires every matched rule once. Matched
// rules fire independently: one failure neither blocks nor fails the others,
// and failures are recorded, never retried. Duplicate delivery of the same
// eventID is a no-op per rule.
func (s *AutomationService) HandleEvent(ctx context.Context, ev model.LeadEvent) (*FireReport, error) {
	if ev.EventID == "" {
		// Without an event id idempotency degrades to best effort.
		ev.EventID = uuid.NewString()
		log.Printf("⚠️ lead event without event_id (lead %d, %s); assigned %s", ev.LeadID, ev.EventType, ev.EventID)
	}

	matched, err := s.Evaluate(&ev)
	if err != nil {
		return nil, err
	}
	report := &FireReport{Matched: len(matched)}
	if len(matched) == 0 {
		return report, nil
	}

	lead, err := s.LeadRepo.GetByID(ev.LeadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		log.Printf("⚠️ lead event for unknown lead %d ignored", ev.LeadID)
		report.Skipped = len(matched)
		return report, nil
	}

	for _, rule := range matched {
		switch outcome := s.fire(ctx, &rule, lead, &ev); outcome {
		case model.ExecutionStatusSent:
			report.Fired++
		case model.ExecutionStatusFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}
	return report, nil
}

// fire dispatches one rule for one event. Returns the firing status, or ""
// when the firing was skipped (duplicate event or opted-out lead).
func (s *AutomationService) fire(ctx context.Context, rule *model.AutomationRule, lead *model.Lead, ev *model.LeadEvent) string {
	if lead.OptedOut {
		metrics.RuleFiringsTotal.WithLabelValues("skipped").Inc()
		return ""
	}

	claimed, err := s.RuleRepo.ClaimFiring(rule.ID, lead.ID, ev.EventID)
	if err != nil {
		log.Printf("⚠️ rule %d: failed to claim firing for event %s: %v", rule.ID, ev.EventID, err)
		return ""
	}
	if !claimed {
		return "" // duplicate event delivery
	}

	finish := func(status, errMsg string) string {
		if err := s.RuleRepo.FinishFiring(rule.ID, lead.ID, ev.EventID, status, errMsg); err != nil {
			log.Printf("⚠️ rule %d: failed to record firing outcome: %v", rule.ID, err)
		}
		return status
	}

	destination := lead.ContactFor(rule.Channel)
	if destination == "" {
		metrics.RuleFiringsTotal.WithLabelValues("failed").Inc()
		return finish(model.ExecutionStatusFailed, "lead has no "+rule.Channel+" contact")
	}

	subject, body, err := ResolveContent(s.TemplateRepo, rule.Content())
	if err != nil || body == "" {
		metrics.RuleFiringsTotal.WithLabelValues("failed").Inc()
		return finish(model.ExecutionStatusFailed, "no message body")
	}

	rendered := RenderMessage(subject, body, lead)
	d := dispatch.Dispatch{
		Destination:    destination,
		Channel:        rule.Channel,
		Body:           rendered.Body,
		IdempotencyKey: fmt.Sprintf("rule-%d-lead-%d-event-%s", rule.ID, lead.ID, ev.EventID),
	}
	if rule.Channel == model.ChannelEmail {
		d.Subject = rendered.Subject
	}

	if err := s.Gateway.Send(ctx, d); err != nil {
		// Failures surface to the operator through the firing log; they are
		// never retried automatically.
		log.Printf("⚠️ rule %d: dispatch to lead %d failed: %v", rule.ID, lead.ID, err)
		metrics.RuleFiringsTotal.WithLabelValues("failed").Inc()
		return finish(model.ExecutionStatusFailed, err.Error())
	}

	metrics.RuleFiringsTotal.WithLabelValues("sent").Inc()
	return finish(model.ExecutionStatusSent, "")
}
