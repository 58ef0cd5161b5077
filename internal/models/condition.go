package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

type ConditionType string

const (
	ConditionKeywords         ConditionType = "keywords"
	ConditionDeadlineDays     ConditionType = "deadline_days"
	ConditionHasField         ConditionType = "has_field"
	ConditionMissingFields    ConditionType = "missing_fields"
	ConditionOrganizationType ConditionType = "organization_type"
)

// maxDeadlineDays bounds deadline_days conditions to ten years.
const maxDeadlineDays = 3650

// Condition is the typed payload of a rule. Each ConditionType has exactly one
// implementation; payloads are decoded and validated once, at the write
// boundary or when rules are loaded, never during evaluation.
type Condition interface {
	Type() ConditionType
	Validate() error
}

// KeywordsCondition matches when any keyword appears in the title or description.
type KeywordsCondition struct {
	Keywords []string `json:"keywords"`
}

// DeadlineDaysCondition matches an open deadline at most MaxDays away.
type DeadlineDaysCondition struct {
	MaxDays int `json:"max_days"`
}

// HasFieldCondition matches when Field is present and non-empty.
type HasFieldCondition struct {
	Field string `json:"field"`
}

// MissingFieldsCondition matches only when every listed field is absent.
type MissingFieldsCondition struct {
	Fields []string `json:"fields"`
}

// OrganizationTypeCondition matches when the organization resolves to OrganizationType.
type OrganizationTypeCondition struct {
	OrganizationType string `json:"organization_type"`
}

func (KeywordsCondition) Type() ConditionType         { return ConditionKeywords }
func (DeadlineDaysCondition) Type() ConditionType     { return ConditionDeadlineDays }
func (HasFieldCondition) Type() ConditionType         { return ConditionHasField }
func (MissingFieldsCondition) Type() ConditionType    { return ConditionMissingFields }
func (OrganizationTypeCondition) Type() ConditionType { return ConditionOrganizationType }

func (c KeywordsCondition) Validate() error {
	if len(c.Keywords) == 0 {
		return invalid("condition_value.keywords", "at least one keyword is required")
	}
	for i, k := range c.Keywords {
		if strings.TrimSpace(k) == "" {
			return invalid("condition_value.keywords", "keyword %d is empty", i)
		}
	}
	return nil
}

func (c DeadlineDaysCondition) Validate() error {
	if c.MaxDays < 0 || c.MaxDays > maxDeadlineDays {
		return invalid("condition_value.max_days", "must be between 0 and %d", maxDeadlineDays)
	}
	return nil
}

func (c HasFieldCondition) Validate() error {
	if strings.TrimSpace(c.Field) == "" {
		return invalid("condition_value.field", "field name is required")
	}
	return nil
}

func (c MissingFieldsCondition) Validate() error {
	if len(c.Fields) == 0 {
		return invalid("condition_value.fields", "at least one field is required")
	}
	for i, f := range c.Fields {
		if strings.TrimSpace(f) == "" {
			return invalid("condition_value.fields", "field %d is empty", i)
		}
	}
	return nil
}

func (c OrganizationTypeCondition) Validate() error {
	if strings.TrimSpace(c.OrganizationType) == "" {
		return invalid("condition_value.organization_type", "organization type is required")
	}
	return nil
}

// DecodeCondition parses raw into the variant selected by ct and validates it.
// Unknown keys are rejected so that typos in operator payloads surface at
// write time instead of silently never matching.
func DecodeCondition(ct ConditionType, raw []byte) (Condition, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, invalid("condition_value", "payload is required for %s", ct)
	}

	var cond Condition
	switch ct {
	case ConditionKeywords:
		var c KeywordsCondition
		if err := strictUnmarshal(raw, &c); err != nil {
			return nil, err
		}
		c.Keywords = trimAll(c.Keywords)
		cond = c
	case ConditionDeadlineDays:
		var c DeadlineDaysCondition
		if err := strictUnmarshal(raw, &c); err != nil {
			return nil, err
		}
		cond = c
	case ConditionHasField:
		var c HasFieldCondition
		if err := strictUnmarshal(raw, &c); err != nil {
			return nil, err
		}
		c.Field = strings.TrimSpace(c.Field)
		cond = c
	case ConditionMissingFields:
		var c MissingFieldsCondition
		if err := strictUnmarshal(raw, &c); err != nil {
			return nil, err
		}
		c.Fields = trimAll(c.Fields)
		cond = c
	case ConditionOrganizationType:
		var c OrganizationTypeCondition
		if err := strictUnmarshal(raw, &c); err != nil {
			return nil, err
		}
		c.OrganizationType = strings.TrimSpace(c.OrganizationType)
		cond = c
	default:
		return nil, invalid("condition_type", "unknown condition type %q", ct)
	}

	if err := cond.Validate(); err != nil {
		return nil, err
	}
	return cond, nil
}

func strictUnmarshal(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalid("condition_value", "%v", err)
	}
	return nil
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
