package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Opportunity is the scoring-relevant view of a harvested lead.
type Opportunity struct {
	ID            uuid.UUID         `json:"id"`
	SourceID      *string           `json:"source_id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"` // May contain HTML
	Organization  string            `json:"organization"`
	Fields        map[string]string `json:"fields"`
	DeadlineAt    *time.Time        `json:"deadline_at"`
	Score         float64           `json:"score"`
	Tier          string            `json:"tier"`
	Contributions []Contribution    `json:"contributions"`
	ScoredAt      *time.Time        `json:"scored_at"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Contribution records the points one matched rule added to a score.
type Contribution struct {
	RuleID int64  `json:"rule_id"`
	Points int    `json:"points"`
	Label  string `json:"label,omitempty"`
}

// FieldValue resolves a named field. The first-class columns shadow entries
// of the same name in Fields.
func (o Opportunity) FieldValue(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "title":
		return o.Title
	case "description":
		return o.Description
	case "organization":
		return o.Organization
	case "deadline", "deadline_at":
		if o.DeadlineAt == nil {
			return ""
		}
		return o.DeadlineAt.UTC().Format(time.RFC3339)
	}

	if v, ok := o.Fields[name]; ok {
		return v
	}
	// Field names from ingestion are not case-stable.
	for k, v := range o.Fields {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// HasField reports whether the named field is present and non-blank.
func (o Opportunity) HasField(name string) bool {
	return strings.TrimSpace(o.FieldValue(name)) != ""
}

// ScoreUpdate is the persisted outcome of scoring one opportunity.
type ScoreUpdate struct {
	Score         int
	Tier          string
	Contributions []Contribution
	ScoredAt      time.Time
}

// OpportunityInput is an opportunity as handed over by ingestion.
type OpportunityInput struct {
	SourceID     *string           `json:"source_id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Organization string            `json:"organization"`
	Fields       map[string]string `json:"fields"`
	DeadlineAt   *time.Time        `json:"deadline_at"`
}

// Build validates the input and returns an unscored opportunity.
func (in OpportunityInput) Build() (Opportunity, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Opportunity{}, invalid("title", "is required")
	}
	if len(title) > 1000 {
		return Opportunity{}, invalid("title", "must be at most 1000 characters")
	}
	var sourceID *string
	if in.SourceID != nil {
		if s := strings.TrimSpace(*in.SourceID); s != "" {
			sourceID = &s
		}
	}
	fields := make(map[string]string, len(in.Fields))
	for k, v := range in.Fields {
		k = strings.TrimSpace(k)
		if k == "" {
			return Opportunity{}, invalid("fields", "field names must not be blank")
		}
		fields[k] = v
	}
	var deadline *time.Time
	if in.DeadlineAt != nil {
		d := in.DeadlineAt.UTC()
		deadline = &d
	}
	return Opportunity{
		ID:            uuid.New(),
		SourceID:      sourceID,
		Title:         title,
		Description:   in.Description,
		Organization:  strings.TrimSpace(in.Organization),
		Fields:        fields,
		DeadlineAt:    deadline,
		Contributions: []Contribution{},
	}, nil
}
