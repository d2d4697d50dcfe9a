// internal/controller/campaign_controller.go
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

type CampaignController struct {
	CampaignService *service.CampaignService
	AudienceService *service.AudienceService
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var input service.CreateCampaignInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, appErrors.NewValidation("invalid body"))
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	channel := r.URL.Query().Get("channel")
	status := r.URL.Query().Get("status")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	campaigns, pagination, err := c.CampaignService.ListCampaigns(page, pageSize, channel, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, appErrors.NewValidation("invalid campaign id"))
		return
	}

	details, err := c.CampaignService.GetDetails(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (c *CampaignController) ActivateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, appErrors.NewValidation("invalid campaign id"))
		return
	}

	campaign, err := c.CampaignService.Activate(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, appErrors.NewValidation("invalid campaign id"))
		return
	}

	if err := c.CampaignService.Pause(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": model.CampaignStatusPaused})
}

func (c *CampaignController) ArchiveCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, appErrors.NewValidation("invalid campaign id"))
		return
	}

	if err := c.CampaignService.Archive(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": model.CampaignStatusArchived})
}

// PreviewAudience counts the leads an audience filter would reach, without
// touching any state. Used by operators before activation.
func (c *CampaignController) PreviewAudience(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Channel        string               `json:"channel"`
		AudienceFilter model.AudienceFilter `json:"audience_filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, appErrors.NewValidation("invalid body"))
		return
	}
	if !model.ValidChannel(body.Channel) {
		writeError(w, appErrors.NewValidation("unknown channel %q", body.Channel))
		return
	}

	preview, err := c.AudienceService.Preview(body.AudienceFilter, body.Channel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}
