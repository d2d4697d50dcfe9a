// internal/model/filter.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// AudienceFilter selects which leads belong to a campaign's population.
// Each dimension is an optional inclusion list; an empty or absent list means
// no constraint on that dimension. A lead matches when every present
// dimension intersects the lead's attributes.
type AudienceFilter struct {
	Status   []string `json:"status,omitempty"`
	Source   []string `json:"source,omitempty"`
	Priority []string `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Empty reports whether the filter constrains nothing, i.e. it would match
// the entire lead population.
func (f AudienceFilter) Empty() bool {
	return len(f.Status) == 0 && len(f.Source) == 0 && len(f.Priority) == 0 && len(f.Tags) == 0
}

// Matches evaluates the filter against a single lead. Conjunction across
// dimensions, disjunction within a dimension's list.
func (f AudienceFilter) Matches(lead *Lead) bool {
	if len(f.Status) > 0 && !contains(f.Status, lead.Status) {
		return false
	}
	if len(f.Source) > 0 && !contains(f.Source, lead.Source) {
		return false
	}
	if len(f.Priority) > 0 && !contains(f.Priority, lead.Priority) {
		return false
	}
	if len(f.Tags) > 0 && !intersects(f.Tags, lead.Tags) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(list, tags []string) bool {
	for _, t := range tags {
		if contains(list, t) {
			return true
		}
	}
	return false
}

// Value stores the filter as JSONB.
func (f AudienceFilter) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan loads the filter from a JSONB column.
func (f *AudienceFilter) Scan(src any) error {
	if src == nil {
		*f = AudienceFilter{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	}
	return fmt.Errorf("unsupported audience filter type %T", src)
}
