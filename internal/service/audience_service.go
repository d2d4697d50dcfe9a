// internal/service/audience_service.go
package service

import (
	"github.com/haulcrm/campaign-engine/internal/model"
	"github.com/haulcrm/campaign-engine/internal/repository"
)

// AudienceService evaluates audience filters against the lead population.
// All operations are read-only.
type AudienceService struct {
	LeadRepo repository.LeadRepositoryInterface
}

// PreviewResult is the operator-facing audience count. WithContact is the
// subset reachable on the given channel.
type PreviewResult struct {
	Total       int  `json:"total"`
	WithContact int  `json:"with_contact"`
	Broadcast   bool `json:"broadcast"` // empty filter: matches the entire population
}

// Preview counts matching leads without mutating anything. An empty filter
// matches all leads; Broadcast flags that so callers can warn the operator
// before they message an entire population.
func (s *AudienceService) Preview(filter model.AudienceFilter, channel string) (*PreviewResult, error) {
	leads, err := s.LeadRepo.ListActive()
	if err != nil {
		return nil, err
	}

	result := &PreviewResult{Broadcast: filter.Empty()}
	for i := range leads {
		lead := &leads[i]
		if !filter.Matches(lead) {
			continue
		}
		result.Total++
		if lead.ContactFor(channel) != "" {
			result.WithContact++
		}
	}
	return result, nil
}

// Resolve returns the matching leads that are reachable on the channel.
// Used at campaign activation to build the enrollment snapshot.
func (s *AudienceService) Resolve(filter model.AudienceFilter, channel string) ([]model.Lead, error) {
	leads, err := s.LeadRepo.ListActive()
	if err != nil {
		return nil, err
	}

	matched := []model.Lead{}
	for i := range leads {
		lead := leads[i]
		if !filter.Matches(&lead) {
			continue
		}
		if lead.ContactFor(channel) == "" {
			continue // unreachable on this channel, not enrolled
		}
		matched = append(matched, lead)
	}
	return matched, nil
}
