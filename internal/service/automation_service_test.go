package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/haulcrm/campaign-engine/internal/dispatch"
	appErrors "github.com/haulcrm/campaign-engine/internal/errors"
	"github.com/haulcrm/campaign-engine/internal/model"
	"github.com/haulcrm/campaign-engine/internal/service"
)

func newAutomationService(f *fixture, gateway dispatch.Gateway) *service.AutomationService {
	return &service.AutomationService{
		RuleRepo:     f.rules,
		TemplateRepo: f.templates,
		LeadRepo:     f.leads,
		Gateway:      gateway,
	}
}

func TestAutomationRuleValidation(t *testing.T) {
	f := newFixture()
	svc := newAutomationService(f, dispatch.NewMemoryGateway())

	tests := []struct {
		name string
		rule model.AutomationRule
	}{
		{"missing name", model.AutomationRule{Channel: model.ChannelSMS, TriggerType: model.TriggerNewLead, Body: "Hi"}},
		{"bad channel", model.AutomationRule{Name: "R", Channel: "FAX", TriggerType: model.TriggerNewLead, Body: "Hi"}},
		{"bad trigger", model.AutomationRule{Name: "R", Channel: model.ChannelSMS, TriggerType: "lead_sneezed", Body: "Hi"}},
		{"status_change without toStatus", model.AutomationRule{Name: "R", Channel: model.ChannelSMS, TriggerType: model.TriggerStatusChange, Body: "Hi"}},
		{"tag_added without tag", model.AutomationRule{Name: "R", Channel: model.ChannelSMS, TriggerType: model.TriggerTagAdded, Body: "Hi"}},
		{"no content", model.AutomationRule{Name: "R", Channel: model.ChannelSMS, TriggerType: model.TriggerNewLead}},
		{"missing template", model.AutomationRule{Name: "R", Channel: model.ChannelSMS, TriggerType: model.TriggerNewLead, TemplateID: intPtr(9)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.CreateRule(&tt.rule); !appErrors.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestHandleEventFiresMatchingRules(t *testing.T) {
	f := newFixture()
	gateway := dispatch.NewMemoryGateway()
	svc := newAutomationService(f, gateway)

	f.addLead(model.Lead{ID: 7, FirstName: "Deng", Phone: "+1557", Status: model.LeadStatusQualified})

	anyInto := &model.AutomationRule{
		Name: "Any into QUALIFIED", Channel: model.ChannelSMS,
		TriggerType:  model.TriggerStatusChange,
		TriggerValue: model.TriggerValue{ToStatus: "QUALIFIED"},
		Body:         "Congrats {{firstName}}!",
	}
	fromNew := &model.AutomationRule{
		Name: "NEW into QUALIFIED", Channel: model.ChannelSMS,
		TriggerType:  model.TriggerStatusChange,
		TriggerValue: model.TriggerValue{FromStatus: "NEW", ToStatus: "QUALIFIED"},
		Body:         "Fast track",
	}
	unrelated := &model.AutomationRule{
		Name: "Tag watcher", Channel: model.ChannelSMS,
		TriggerType:  model.TriggerTagAdded,
		TriggerValue: model.TriggerValue{Tag: "vip"},
		Body:         "VIP",
	}
	for _, r := range []*model.AutomationRule{anyInto, fromNew, unrelated} {
		if err := svc.CreateRule(r); err != nil {
			t.Fatal(err)
		}
	}

	report, err := svc.HandleEvent(context.Background(), model.LeadEvent{
		LeadID: 7, EventType: model.TriggerStatusChange,
		FromStatus: "CONTACTED", ToStatus: "QUALIFIED", EventID: "ev-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	// fromStatus=NEW excludes the second rule for a CONTACTED origin.
	if report.Matched != 1 || report.Fired != 1 {
		t.Errorf("report = %+v, want 1 matched / 1 fired", report)
	}
	if len(gateway.Sent()) != 1 {
		t.Fatalf("dispatches = %d, want 1", len(gateway.Sent()))
	}
	for _, d := range gateway.Sent() {
		if d.Body != "Congrats Deng!" {
			t.Errorf("body = %q", d.Body)
		}
	}
}

func TestHandleEventDuplicateDeliveryIsNoOp(t *testing.T) {
	f := newFixture()
	gateway := dispatch.NewMemoryGateway()
	svc := newAutomationService(f, gateway)

	f.addLead(model.Lead{ID: 1, Phone: "+1551"})
	rule := &model.AutomationRule{
		Name: "Welcome", Channel: model.ChannelSMS,
		TriggerType: model.TriggerNewLead, Body: "Hi",
	}
	if err := svc.CreateRule(rule); err != nil {
		t.Fatal(err)
	}

	ev := model.LeadEvent{LeadID: 1, EventType: model.TriggerNewLead, EventID: "ev-dup"}
	first, err := svc.HandleEvent(context.Background(), ev)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.HandleEvent(context.Background(), ev)
	if err != nil {
		t.Fatal(err)
	}

	if first.Fired != 1 {
		t.Errorf("first delivery: %+v", first)
	}
	if second.Fired != 0 || second.Skipped != 1 {
		t.Errorf("duplicate delivery fired again: %+v", second)
	}
	if len(gateway.Sent()) != 1 {
		t.Errorf("dispatches = %d, want 1", len(gateway.Sent()))
	}
}

func TestHandleEventRulesFireIndependently(t *testing.T) {
	f := newFixture()
	gateway := dispatch.NewMemoryGateway()
	gateway.FailFunc = func(d dispatch.Dispatch) error {
		if d.Body == "boom" {
			return errors.New("carrier rejected")
		}
		return nil
	}
	svc := newAutomationService(f, gateway)

	f.addLead(model.Lead{ID: 1, Phone: "+1551"})
	failing := &model.AutomationRule{Name: "Failing", Channel: model.ChannelSMS, TriggerType: model.TriggerNewLead, Body: "boom"}
	working := &model.AutomationRule{Name: "Working", Channel: model.ChannelSMS, TriggerType: model.TriggerNewLead, Body: "hello"}
	for _, r := range []*model.AutomationRule{failing, working} {
		if err := svc.CreateRule(r); err != nil {
			t.Fatal(err)
		}
	}

	report, err := svc.HandleEvent(context.Background(), model.LeadEvent{
		LeadID: 1, EventType: model.TriggerNewLead, EventID: "ev-2",
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Fired != 1 || report.Failed != 1 {
		t.Errorf("report = %+v, want one fired and one failed", report)
	}

	// The failure is recorded and never retried.
	firings, _ := f.rules.ListFirings(failing.ID, 10)
	if len(firings) != 1 || firings[0].Status != model.ExecutionStatusFailed {
		t.Errorf("failing rule firings = %+v", firings)
	}

	retry, err := svc.HandleEvent(context.Background(), model.LeadEvent{
		LeadID: 1, EventType: model.TriggerNewLead, EventID: "ev-2",
	})
	if err != nil {
		t.Fatal(err)
	}
	if retry.Fired != 0 || retry.Failed != 0 {
		t.Errorf("redelivery retried a recorded outcome: %+v", retry)
	}
}

func TestHandleEventSkipsDisabledRulesAndOptedOutLeads(t *testing.T) {
	f := newFixture()
	gateway := dispatch.NewMemoryGateway()
	svc := newAutomationService(f, gateway)

	f.addLead(model.Lead{ID: 1, Phone: "+1551"})
	f.addLead(model.Lead{ID: 2, Phone: "+1552", OptedOut: true})

	rule := &model.AutomationRule{Name: "Welcome", Channel: model.ChannelSMS, TriggerType: model.TriggerNewLead, Body: "Hi"}
	if err := svc.CreateRule(rule); err != nil {
		t.Fatal(err)
	}
	if err := svc.ToggleRule(rule.ID, false); err != nil {
		t.Fatal(err)
	}

	report, err := svc.HandleEvent(context.Background(), model.LeadEvent{LeadID: 1, EventType: model.TriggerNewLead, EventID: "ev-3"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Matched != 0 {
		t.Errorf("disabled rule matched: %+v", report)
	}

	if err := svc.ToggleRule(rule.ID, true); err != nil {
		t.Fatal(err)
	}
	report, err = svc.HandleEvent(context.Background(), model.LeadEvent{LeadID: 2, EventType: model.TriggerNewLead, EventID: "ev-4"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Fired != 0 || report.Skipped != 1 {
		t.Errorf("opted-out lead was fired at: %+v", report)
	}
	if len(gateway.Sent()) != 0 {
		t.Error("nothing should have been dispatched")
	}
}

func TestHandleEventUnknownLeadIsSkipped(t *testing.T) {
	f := newFixture()
	svc := newAutomationService(f, dispatch.NewMemoryGateway())

	rule := &model.AutomationRule{Name: "Welcome", Channel: model.ChannelSMS, TriggerType: model.TriggerNewLead, Body: "Hi"}
	if err := svc.CreateRule(rule); err != nil {
		t.Fatal(err)
	}

	report, err := svc.HandleEvent(context.Background(), model.LeadEvent{LeadID: 404, EventType: model.TriggerNewLead, EventID: "ev-5"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Matched != 1 || report.Skipped != 1 || report.Fired != 0 {
		t.Errorf("report = %+v, want matched but skipped", report)
	}
}
