package model

// IncidentType classifies an event.
type IncidentType string

const (
	Airstrike  IncidentType = "airstrike"
	Explosion  IncidentType = "explosion"
	Earthquake IncidentType = "earthquake"
	Fire       IncidentType = "fire"
	Flood      IncidentType = "flood"
	Shooting   IncidentType = "shooting"
	Attack     IncidentType = "attack"
	Derailment IncidentType = "derailment"
	Incident   IncidentType = "incident" // nothing more specific matched
)

// IncidentTypes lists the specific types in match priority order.
var IncidentTypes = []IncidentType{
	Airstrike,
	Explosion,
	Earthquake,
	Fire,
	Flood,
	Shooting,
	Attack,
	Derailment,
}

// Valid reports whether t is a known type.
func (t IncidentType) Valid() bool {
	if t == Incident {
		return true
	}
	for _, known := range IncidentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Title returns the type name with its first letter upper-cased.
func (t IncidentType) Title() string {
	if t == "" {
		return ""
	}
	b := []byte(t)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
