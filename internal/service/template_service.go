// internal/service/template_service.go
package service

import (
	"strings"

	appErrors "github.com/haulcrm/campaign-engine/internal/errors"
	"github.com/haulcrm/campaign-engine/internal/model"
	"github.com/haulcrm/campaign-engine/internal/repository"
)

// Recognized placeholders. Missing lead fields render as "". Anything else
// between double curly braces is left verbatim so operators can include
// literal {{...}}-shaped text.
var placeholders = map[string]func(*model.Lead) string{
	"firstName":  func(l *model.Lead) string { return l.FirstName },
	"lastName":   func(l *model.Lead) string { return l.LastName },
	"fullName":   func(l *model.Lead) string { return l.FullName() },
	"leadNumber": func(l *model.Lead) string { return l.LeadNumber },
	"phone":      func(l *model.Lead) string { return l.Phone },
	"email":      func(l *model.Lead) string { return l.Email },
}

// RenderText substitutes every recognized {{placeholder}} in text with the
// lead's field. Pure: identical inputs always give identical output, which
// keeps retried dispatches byte-identical.
func RenderText(text string, lead *model.Lead) string {
	result := text
	for key, resolve := range placeholders {
		result = strings.ReplaceAll(result, "{{"+key+"}}", resolve(lead))
	}
	return result
}

// RenderedMessage is a fully substituted subject and body.
type RenderedMessage struct {
	Subject string
	Body    string
}

// RenderMessage renders subject and body against a lead.
func RenderMessage(subject, body string, lead *model.Lead) RenderedMessage {
	return RenderedMessage{
		Subject: RenderText(subject, lead),
		Body:    RenderText(body, lead),
	}
}

// TemplateService owns message template CRUD and content resolution.
type TemplateService struct {
	TemplateRepo repository.TemplateRepositoryInterface
}

func (s *TemplateService) validate(t *model.MessageTemplate) error {
	if strings.TrimSpace(t.Name) == "" {
		return appErrors.NewValidation("template name is required")
	}
	if !model.ValidChannel(t.Channel) {
		return appErrors.NewValidation("unknown channel %q", t.Channel)
	}
	if strings.TrimSpace(t.Body) == "" {
		return appErrors.NewValidation("template body is required")
	}
	if t.Channel == model.ChannelSMS && t.Subject != "" {
		return appErrors.NewValidation("SMS templates cannot have a subject")
	}
	return nil
}

func (s *TemplateService) Create(t *model.MessageTemplate) error {
	if err := s.validate(t); err != nil {
		return err
	}
	return s.TemplateRepo.Create(t)
}

func (s *TemplateService) Update(t *model.MessageTemplate) error {
	if err := s.validate(t); err != nil {
		return err
	}
	return s.TemplateRepo.Update(t)
}

func (s *TemplateService) Delete(id int) error {
	return s.TemplateRepo.Delete(id)
}

func (s *TemplateService) Get(id int) (*model.MessageTemplate, error) {
	return s.TemplateRepo.GetByID(id)
}

func (s *TemplateService) List() ([]model.MessageTemplate, error) {
	return s.TemplateRepo.List()
}

// ResolveContent turns a template-or-inline variant into concrete text.
// A dangling template reference falls back to the inline fields rather than
// failing the whole unit of work; the caller decides whether an empty body
// is an error.
func ResolveContent(repo repository.TemplateRepositoryInterface, content model.MessageContent) (subject, body string, err error) {
	if content.IsTemplate() {
		t, err := repo.GetByID(*content.TemplateID)
		if err != nil {
			return "", "", err
		}
		if t != nil {
			return t.Subject, t.Body, nil
		}
	}
	return content.Subject, content.Body, nil
}
