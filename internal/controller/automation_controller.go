// internal/controller/automation_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appErrors "github.com/haulcrm/campaign-engine/internal/errors"
	"github.com/haulcrm/campaign-engine/internal/model"
	"github.com/haulcrm/campaign-engine/internal/queue"
	"github.com/haulcrm/campaign-engine/internal/service"
)

type AutomationController struct {
	AutomationService *service.AutomationService

	// Events, when set, makes event ingestion asynchronous: posted events are
	// published to the queue and handled by the in-process subscriber. Left
	// nil when a broker carries the feed instead.
	Events queue.Queue
}

type rulePayload struct {
	Name         string             `json:"name"`
	Channel      string             `json:"channel"`
	TriggerType  string             `json:"trigger_type"`
	TriggerValue model.TriggerValue `json:"trigger_value"`
	TemplateID   *int               `json:"template_id,omitempty"`
	Subject      string             `json:"subject,omitempty"`
	Body         string             `json:"body,omitempty"`
	Enabled      *bool              `json:"enabled,omitempty"`
}

func (p *rulePayload) toRule(id int) *model.AutomationRule {
	rule := &model.AutomationRule{
		ID:           id,
		Name:         p.Name,
		Channel:      p.Channel,
		TriggerType:  p.TriggerType,
		TriggerValue: p.TriggerValue,
		TemplateID:   p.TemplateID,
		Subject:      p.Subject,
		Body:         p.Body,
		Enabled:      true,
	}
	if p.Enabled != nil {
		rule.Enabled = *p.Enabled
	}
	return rule
}

func (c *AutomationController) CreateRule(w http.ResponseWriter, r *http.Request) {
	var body rulePayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, appErrors.NewValidation("invalid body"))
		return
	}

	rule := body.toRule(0)
	if err := c.AutomationService.CreateRule(rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (c *AutomationController) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, appErrors.NewValidation("invalid rule id"))
		return
	}

	var body rulePayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, appErrors.NewValidation("invalid body"))
		return
	}

	rule := body.toRule(id)
	if err := c.AutomationService.UpdateRule(rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (c *AutomationController) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, appErrors.NewValidation("invalid rule id"))
		return
	}

	if err := c.AutomationService.DeleteRule(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *AutomationController) ToggleRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, appErrors.NewValidation("invalid rule id"))
		return
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, appErrors.NewValidation("invalid body"))
		return
	}

	if err := c.AutomationService.ToggleRule(id, body.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": body.Enabled})
}

func (c *AutomationController) GetRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, appErrors.NewValidation("invalid rule id"))
		return
	}

	rule, err := c.AutomationService.GetRule(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if rule == nil {
		writeError(w, appErrors.NewNotFound("automation rule", id))
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (c *AutomationController) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := c.AutomationService.ListRules()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (c *AutomationController) ListFirings(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, appErrors.NewValidation("invalid rule id"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	firings, err := c.AutomationService.ListFirings(id, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, firings)
}

// IngestEvent is the HTTP half of the inbound event feed; the AMQP consumer
// is the other. Both funnel into the same idempotent handler.
func (c *AutomationController) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.LeadEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, appErrors.NewValidation("invalid body"))
		return
	}
	if ev.LeadID == 0 || !model.ValidTriggerType(ev.EventType) {
		writeError(w, appErrors.NewValidation("event requires lead_id and a known event_type"))
		return
	}

	if c.Events != nil {
		// Assign the event id here so queue retries reuse the same
		// idempotency claim and the caller can correlate the firing log.
		if ev.EventID == "" {
			ev.EventID = uuid.NewString()
		}
		if err := c.Events.Publish(queue.LeadEventTopic, ev); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":   "accepted",
			"event_id": ev.EventID,
		})
		return
	}

	report, err := c.AutomationService.HandleEvent(r.Context(), ev)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
