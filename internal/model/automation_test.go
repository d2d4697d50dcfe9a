package model

import "testing"

func TestRuleMatchesStatusChange(t *testing.T) {
	rule := &AutomationRule{
		TriggerType:  TriggerStatusChange,
		TriggerValue: TriggerValue{ToStatus: "QUALIFIED"},
	}

	ev := &LeadEvent{EventType: TriggerStatusChange, FromStatus: "NEW", ToStatus: "QUALIFIED"}
	if !rule.Matches(ev) {
		t.Error("rule without fromStatus should match any transition into toStatus")
	}

	ev.ToStatus = "REJECTED"
	if rule.Matches(ev) {
		t.Error("rule should not match a different toStatus")
	}
}

func TestRuleMatchesStatusChangeWithFromStatus(t *testing.T) {
	rule := &AutomationRule{
		TriggerType:  TriggerStatusChange,
		TriggerValue: TriggerValue{FromStatus: "NEW", ToStatus: "QUALIFIED"},
	}

	if !rule.Matches(&LeadEvent{EventType: TriggerStatusChange, FromStatus: "NEW", ToStatus: "QUALIFIED"}) {
		t.Error("exact from/to transition should match")
	}
	if rule.Matches(&LeadEvent{EventType: TriggerStatusChange, FromStatus: "CONTACTED", ToStatus: "QUALIFIED"}) {
		t.Error("fromStatus constraint should exclude other origins")
	}
}

func TestRuleMatchesOtherTriggers(t *testing.T) {
	newLead := &AutomationRule{TriggerType: TriggerNewLead}
	if !newLead.Matches(&LeadEvent{EventType: TriggerNewLead}) {
		t.Error("new_lead rule should match every new_lead event")
	}
	if newLead.Matches(&LeadEvent{EventType: TriggerTagAdded, Tag: "vip"}) {
		t.Error("trigger types must match exactly")
	}

	tagged := &AutomationRule{TriggerType: TriggerTagAdded, TriggerValue: TriggerValue{Tag: "vip"}}
	if !tagged.Matches(&LeadEvent{EventType: TriggerTagAdded, Tag: "vip"}) {
		t.Error("tag_added rule should match its tag")
	}
	// Tag comparison is case-sensitive.
	if tagged.Matches(&LeadEvent{EventType: TriggerTagAdded, Tag: "VIP"}) {
		t.Error("tag comparison should be case-sensitive")
	}
}

func TestLeadFullNameAndContact(t *testing.T) {
	l := &Lead{FirstName: "Amina", LastName: "Okafor", Phone: "+1555", Email: "a@example.com"}
	if l.FullName() != "Amina Okafor" {
		t.Errorf("FullName() = %q", l.FullName())
	}
	if (&Lead{LastName: "Okafor"}).FullName() != "Okafor" {
		t.Error("missing first name should not leave a leading space")
	}
	if l.ContactFor(ChannelSMS) != "+1555" || l.ContactFor(ChannelEmail) != "a@example.com" {
		t.Error("ContactFor should select the channel's contact field")
	}
	if (&Lead{Email: "a@example.com"}).ContactFor(ChannelSMS) != "" {
		t.Error("lead without phone is unreachable over SMS")
	}
}
