package inspection

import (
	"fmt"
	"strings"
)

// Banner marks the start of the machine-readable block inside free text.
const Banner = "=== INSPECTION REPORT ==="

// Finding is one decoded report line.
type Finding struct {
	Line     string   `json:"line"`
	Point    string   `json:"point"`
	Severity Severity `json:"severity"`
}

// Decoded holds the lines of a report grouped by severity, in text order.
type Decoded struct {
	Urgent      []Finding `json:"urgent"`
	Recommended []Finding `json:"recommended"`
	Good        []Finding `json:"good"`
}

// Summary counts findings per severity. List badges and escalation views read it.
type Summary struct {
	Urgent      int `json:"urgent"`
	Recommended int `json:"recommended"`
	Good        int `json:"good"`
}

// Total is the number of classified lines.
func (s Summary) Total() int { return s.Urgent + s.Recommended + s.Good }

// Summary returns the per-severity counts.
func (d Decoded) Summary() Summary {
	return Summary{Urgent: len(d.Urgent), Recommended: len(d.Recommended), Good: len(d.Good)}
}

// Findings rebuilds the point to severity map. On a repeated point the later line wins.
func (d Decoded) Findings() Findings {
	out := make(Findings, len(d.Urgent)+len(d.Recommended)+len(d.Good))
	for _, bucket := range [][]Finding{d.Good, d.Recommended, d.Urgent} {
		for _, f := range bucket {
			out[f.Point] = f.Severity
		}
	}
	return out
}

// Empty reports whether no line was classified.
func (d Decoded) Empty() bool { return d.Summary().Total() == 0 }

// Codec renders and parses the inspection block.
type Codec struct {
	checklist *Checklist
}

// NewCodec creates a codec ordering output by checklist. A nil checklist uses the default.
func NewCodec(checklist *Checklist) *Codec {
	if checklist == nil {
		checklist = DefaultChecklist()
	}
	return &Codec{checklist: checklist}
}

// Checklist returns the checklist the codec orders by.
func (c *Codec) Checklist() *Checklist { return c.checklist }

// Encode renders findings as the banner followed by one
// `<marker> <LABEL> - <point>` line per point.
func (c *Codec) Encode(findings Findings) string {
	var b strings.Builder
	b.WriteString(Banner)
	for _, point := range c.checklist.order(findings) {
		s := findings[point]
		fmt.Fprintf(&b, "\n%s %s - %s", s.Marker(), s, point)
	}
	return b.String()
}

// Decode extracts findings from text. When the banner is present only the
// lines after its last occurrence are read; older records without a banner
// are scanned whole. Lines without a marker are ignored.
func (c *Codec) Decode(text string) Decoded {
	return Decode(text)
}

// Decode is Codec.Decode; decoding does not depend on the checklist.
func Decode(text string) Decoded {
	if idx := strings.LastIndex(text, Banner); idx >= 0 {
		text = text[idx+len(Banner):]
	}

	var d Decoded
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		f, ok := parseLine(line)
		if !ok {
			continue
		}
		switch f.Severity {
		case SeverityUrgent:
			d.Urgent = append(d.Urgent, f)
		case SeverityRecommended:
			d.Recommended = append(d.Recommended, f)
		default:
			d.Good = append(d.Good, f)
		}
	}
	return d
}

// Summarize is shorthand for Decode(text).Summary().
func Summarize(text string) Summary {
	return Decode(text).Summary()
}

// parseLine classifies a line by the first marker it contains.
func parseLine(line string) (Finding, bool) {
	pos := -1
	var sev Severity
	var marker string
	for _, s := range Severities {
		m := s.Marker()
		if i := strings.Index(line, m); i >= 0 && (pos < 0 || i < pos) {
			pos, sev, marker = i, s, m
		}
	}
	if pos < 0 {
		return Finding{}, false
	}

	rest := strings.TrimSpace(line[pos+len(marker):])
	point := rest
	if i := strings.Index(rest, " - "); i >= 0 {
		point = strings.TrimSpace(rest[i+len(" - "):])
	}
	return Finding{Line: line, Point: point, Severity: sev}, true
}
