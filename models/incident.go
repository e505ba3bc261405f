package models

import "fmt"

// IncidentType is the category of a reported incident.
type IncidentType string

const (
	IncidentUnset              IncidentType = ""
	IncidentHazardousSituation IncidentType = "hazardous-situation"
	IncidentDamage             IncidentType = "damage"
	IncidentNearMiss           IncidentType = "near-miss"
	IncidentUnsafeAct          IncidentType = "unsafe-act"
	IncidentDefectiveEquipment IncidentType = "defective-equipment"
	IncidentOther              IncidentType = "other"
)

// IncidentTypes lists the selectable types in form order.
var IncidentTypes = []IncidentType{
	IncidentHazardousSituation,
	IncidentDamage,
	IncidentNearMiss,
	IncidentUnsafeAct,
	IncidentDefectiveEquipment,
	IncidentOther,
}

// Label returns the display label used in email subjects and bodies.
func (t IncidentType) Label() string {
	switch t {
	case IncidentHazardousSituation:
		return "Hazardous Situation"
	case IncidentDamage:
		return "Damage"
	case IncidentNearMiss:
		return "Near Miss"
	case IncidentUnsafeAct:
		return "Unsafe Act"
	case IncidentDefectiveEquipment:
		return "Defective Equipment"
	case IncidentOther:
		return "Other"
	default:
		return string(t)
	}
}

// Icon returns the emoji shown next to the type on report cards.
func (t IncidentType) Icon() string {
	switch t {
	case IncidentHazardousSituation:
		return "⚠️"
	case IncidentDamage:
		return "🔨"
	case IncidentNearMiss:
		return "🚨"
	case IncidentUnsafeAct:
		return "🖐️"
	case IncidentDefectiveEquipment:
		return "🔧"
	case IncidentOther:
		return "📌"
	default:
		return ""
	}
}

// CardLabel is the icon-prefixed label used in the report list.
func (t IncidentType) CardLabel() string {
	if icon := t.Icon(); icon != "" {
		return icon + " " + t.Label()
	}
	return t.Label()
}

// Valid reports whether t is one of the known types. The unset value is not valid.
func (t IncidentType) Valid() bool {
	for _, known := range IncidentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseIncidentType accepts the empty string (unset) or a known type.
func ParseIncidentType(s string) (IncidentType, error) {
	t := IncidentType(s)
	if t == IncidentUnset || t.Valid() {
		return t, nil
	}
	return IncidentUnset, fmt.Errorf("unknown incident type %q", s)
}

// Priority is the urgency assigned by the reporter.
type Priority string

const (
	PriorityUnset    Priority = ""
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Priorities lists the selectable priorities from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Label returns the color-coded label, e.g. "🔴 Critical".
func (p Priority) Label() string {
	switch p {
	case PriorityLow:
		return "🟢 Low"
	case PriorityMedium:
		return "🟡 Medium"
	case PriorityHigh:
		return "🟠 High"
	case PriorityCritical:
		return "🔴 Critical"
	default:
		return ""
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePriority accepts the empty string (unset) or a known priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if p == PriorityUnset || p.Valid() {
		return p, nil
	}
	return PriorityUnset, fmt.Errorf("unknown priority %q", s)
}
