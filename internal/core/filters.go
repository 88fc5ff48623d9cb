package core

import (
	"strings"

	"causalgen-backend/pkg/api"
)

// CaseFields is the queryable view of a case: field name to values. Scalar
// fields carry a single value; "entity" carries one value per seed entity.
type CaseFields map[string][]string

func FieldsForCase(c api.Case) CaseFields {
	return CaseFields{
		"level":      {c.PearlLevel},
		"label":      {c.GroundTruth},
		"difficulty": {c.Difficulty},
		"trap":       {c.TrapType},
		"subdomain":  {c.Subdomain},
		"status":     {c.ValidationStatus},
		"timeframe":  {c.Timeframe},
		"seed":       {c.SeedId},
		"entity":     c.Entities,
	}
}

type Filter interface {
	Matches(fields CaseFields) bool
}

type AndFilter struct {
	filters []Filter
}

func (f *AndFilter) Matches(fields CaseFields) bool {
	for _, filter := range f.filters {
		if !filter.Matches(fields) {
			return false
		}
	}
	return true
}

type OrFilter struct {
	filters []Filter
}

func (f *OrFilter) Matches(fields CaseFields) bool {
	for _, filter := range f.filters {
		if filter.Matches(fields) {
			return true
		}
	}
	return false
}

type NotFilter struct {
	filter Filter
}

func (f *NotFilter) Matches(fields CaseFields) bool {
	return !f.filter.Matches(fields)
}

type CountFilter struct {
	field string
	min   int
	max   int
}

func (f *CountFilter) Matches(fields CaseFields) bool {
	count := len(fields[f.field])
	return f.min < count && count < f.max
}

type SubstringFilter struct {
	field  string
	substr string
}

func (f *SubstringFilter) Matches(fields CaseFields) bool {
	for _, value := range fields[f.field] {
		if strings.Contains(value, f.substr) {
			return true
		}
	}
	return false
}

type StringEqFilter struct {
	field string
	value string
}

func (f *StringEqFilter) Matches(fields CaseFields) bool {
	for _, value := range fields[f.field] {
		if value == f.value {
			return true
		}
	}
	return false
}

type StringLtFilter struct {
	field string
	value string
}

func (f *StringLtFilter) Matches(fields CaseFields) bool {
	for _, value := range fields[f.field] {
		if value < f.value {
			return true
		}
	}
	return false
}

type StringGtFilter struct {
	field string
	value string
}

func (f *StringGtFilter) Matches(fields CaseFields) bool {
	for _, value := range fields[f.field] {
		if value > f.value {
			return true
		}
	}
	return false
}
