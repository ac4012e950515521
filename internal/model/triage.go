package model

import "strings"

// TriagePriority is the five-level emergency classification.
type TriagePriority string

const (
	PriorityCritical    TriagePriority = "CRITICA"
	PriorityEmergency   TriagePriority = "EMERGENCIA"
	PriorityUrgent      TriagePriority = "URGENCIA"
	PriorityMinorUrgent TriagePriority = "URGENCIA_MENOR"
	PriorityNonUrgent   TriagePriority = "SIN_URGENCIA"
)

// Priorities lists every level from most to least severe.
var Priorities = []TriagePriority{
	PriorityCritical,
	PriorityEmergency,
	PriorityUrgent,
	PriorityMinorUrgent,
	PriorityNonUrgent,
}

// Rank is 1 for the most severe level. Unknown levels rank last.
func (p TriagePriority) Rank() int {
	for i, level := range Priorities {
		if level == p {
			return i + 1
		}
	}
	return len(Priorities) + 1
}

func (p TriagePriority) Valid() bool {
	return p.Rank() <= len(Priorities)
}

// Before reports whether p must be dispatched ahead of other.
func (p TriagePriority) Before(other TriagePriority) bool {
	return p.Rank() < other.Rank()
}

func (p TriagePriority) Label() string {
	switch p {
	case PriorityCritical:
		return "Critical"
	case PriorityEmergency:
		return "Emergency"
	case PriorityUrgent:
		return "Urgent"
	case PriorityMinorUrgent:
		return "Minor urgent"
	case PriorityNonUrgent:
		return "Non urgent"
	default:
		return string(p)
	}
}

// ParsePriority accepts wire values and English aliases, case-insensitively.
func ParsePriority(s string) (TriagePriority, bool) {
	key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	switch key {
	case "CRITICA", "CRITICAL":
		return PriorityCritical, true
	case "EMERGENCIA", "EMERGENCY":
		return PriorityEmergency, true
	case "URGENCIA", "URGENT":
		return PriorityUrgent, true
	case "URGENCIA_MENOR", "MINOR_URGENT":
		return PriorityMinorUrgent, true
	case "SIN_URGENCIA", "NON_URGENT":
		return PriorityNonUrgent, true
	}
	return "", false
}

// AdmissionStatus is the lifecycle state of an admission.
type AdmissionStatus string

const (
	StatusPending    AdmissionStatus = "PENDIENTE"
	StatusInProgress AdmissionStatus = "EN_PROCESO"
	StatusFinalized  AdmissionStatus = "FINALIZADO"
)

// CanTransition reports whether next is a legal successor of s.
func (s AdmissionStatus) CanTransition(next AdmissionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress
	case StatusInProgress:
		return next == StatusFinalized
	}
	return false
}

// TriageRuleMessage describes the "triage" validation rule.
const TriageRuleMessage = "must be one of CRITICA, EMERGENCIA, URGENCIA, URGENCIA_MENOR, SIN_URGENCIA"

// ValidTriage backs the "triage" validation rule.
func ValidTriage(value interface{}) bool {
	p, ok := value.(TriagePriority)
	return ok && p.Valid()
}
