// Package inspection encodes technician inspection reports into the text
// block stored in a service request's notes and decodes them back out.
package inspection

import (
	"strings"

	"fleet_service_backend/platform/apperr"
)

// Severity grades one checklist point.
type Severity string

const (
	SeverityGood        Severity = "GOOD"
	SeverityRecommended Severity = "RECOMMENDED"
	SeverityUrgent      Severity = "URGENT"
)

// legacyRecommendedLabel is how one technician screen labelled the middle severity.
const legacyRecommendedLabel = "FUTURE"

// Markers, one glyph per severity. They identify the severity of a line.
const (
	MarkerGood        = "🟢"
	MarkerRecommended = "🟡"
	MarkerUrgent      = "🔴"
)

// Severities lists every severity from best to worst.
var Severities = []Severity{SeverityGood, SeverityRecommended, SeverityUrgent}

// Marker returns the glyph for s, or "" if s is not a valid severity.
func (s Severity) Marker() string {
	switch s {
	case SeverityGood:
		return MarkerGood
	case SeverityRecommended:
		return MarkerRecommended
	case SeverityUrgent:
		return MarkerUrgent
	default:
		return ""
	}
}

// Valid reports whether s is one of the three severities.
func (s Severity) Valid() bool { return s.Marker() != "" }

var markerStripper = strings.NewReplacer(MarkerGood, "", MarkerRecommended, "", MarkerUrgent, "")

// StripMarkers removes severity glyphs from free text so Decode never reads
// it as a finding.
func StripMarkers(text string) string {
	lines := strings.Split(markerStripper.Replace(text), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ParseSeverity accepts the canonical labels in any case plus the legacy "Future".
func ParseSeverity(value string) (Severity, error) {
	upper := strings.ToUpper(strings.TrimSpace(value))
	if upper == legacyRecommendedLabel {
		return SeverityRecommended, nil
	}
	s := Severity(upper)
	if !s.Valid() {
		return "", apperr.Validation("invalid severity").WithDetails(map[string]string{"severity": value})
	}
	return s, nil
}

// Findings maps a checklist point to its severity.
type Findings map[string]Severity

// Clone returns an independent copy.
func (f Findings) Clone() Findings {
	if f == nil {
		return nil
	}
	out := make(Findings, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
