// internal/controller/template_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/haulcrm/campaign-engine/internal/errors"
	"github.com/haulcrm/campaign-engine/internal/model"
	"github.com/haulcrm/campaign-engine/internal/service"
)

type TemplateController struct {
	TemplateService *service.TemplateService
}

type templatePayload struct {
	Name      string `json:"name"`
	Channel   string `json:"channel"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body"`
	CreatedBy string `json:"created_by,omitempty"`
}

func (c *TemplateController) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var body templatePayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, appErrors.NewValidation("invalid body"))
		return
	}

	t := &model.MessageTemplate{
		Name:      body.Name,
		Channel:   body.Channel,
		Subject:   body.Subject,
		Body:      body.Body,
		CreatedBy: body.CreatedBy,
	}
	if err := c.TemplateService.Create(t); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (c *TemplateController) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, appErrors.NewValidation("invalid template id"))
		return
	}

	var body templatePayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, appErrors.NewValidation("invalid body"))
		return
	}

	t := &model.MessageTemplate{
		ID:      id,
		Name:    body.Name,
		Channel: body.Channel,
		Subject: body.Subject,
		Body:    body.Body,
	}
	if err := c.TemplateService.Update(t); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (c *TemplateController) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, appErrors.NewValidation("invalid template id"))
		return
	}

	if err := c.TemplateService.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *TemplateController) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, appErrors.NewValidation("invalid template id"))
		return
	}

	t, err := c.TemplateService.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if t == nil {
		writeError(w, appErrors.NewNotFound("template", id))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (c *TemplateController) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := c.TemplateService.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}
