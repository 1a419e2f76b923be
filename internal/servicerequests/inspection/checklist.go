package inspection

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"fleet_service_backend/platform/apperr"

	"gopkg.in/yaml.v3"
)

// CodeInspectionIncomplete mirrors the lifecycle precondition code.
const CodeInspectionIncomplete = "inspection_incomplete"

// DefaultPoints is the standard nine-point vehicle checklist.
var DefaultPoints = []string{
	"Tires",
	"Brakes",
	"Lights",
	"Wipers",
	"Fluids",
	"Battery",
	"Belts & Hoses",
	"Suspension",
	"Exhaust",
}

// Checklist is the fixed, ordered set of points every report must grade.
type Checklist struct {
	points []string
	index  map[string]int
}

// NewChecklist builds a checklist. Points are trimmed; blanks and duplicates are rejected.
func NewChecklist(points []string) (*Checklist, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("checklist has no points")
	}
	c := &Checklist{index: make(map[string]int, len(points))}
	for _, p := range points {
		name := strings.TrimSpace(p)
		if name == "" || strings.ContainsAny(name, "\r\n") {
			return nil, fmt.Errorf("invalid checklist point %q", p)
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("duplicate checklist point %q", name)
		}
		c.index[name] = len(c.points)
		c.points = append(c.points, name)
	}
	return c, nil
}

// DefaultChecklist returns the nine-point checklist.
func DefaultChecklist() *Checklist {
	c, err := NewChecklist(DefaultPoints)
	if err != nil {
		panic(err)
	}
	return c
}

type checklistFile struct {
	Points []string `yaml:"points"`
}

// LoadChecklist reads a YAML file of the form `points: [..]`.
// An empty path yields the default checklist.
func LoadChecklist(path string) (*Checklist, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultChecklist(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checklist file: %w", err)
	}
	return ParseChecklist(raw)
}

// ParseChecklist decodes a YAML checklist document.
func ParseChecklist(raw []byte) (*Checklist, error) {
	var file checklistFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse checklist: %w", err)
	}
	return NewChecklist(file.Points)
}

// Points returns the ordered point names.
func (c *Checklist) Points() []string {
	out := make([]string, len(c.points))
	copy(out, c.points)
	return out
}

// Size is N, the number of points a complete report grades.
func (c *Checklist) Size() int { return len(c.points) }

// Contains reports whether point is on the checklist.
func (c *Checklist) Contains(point string) bool {
	_, ok := c.index[point]
	return ok
}

// Validate checks that findings grades every point exactly once with a valid
// severity and names no point outside the checklist.
func (c *Checklist) Validate(findings Findings) error {
	var missing, unknown, invalid []string
	for _, p := range c.points {
		s, ok := findings[p]
		if !ok {
			missing = append(missing, p)
			continue
		}
		if !s.Valid() {
			invalid = append(invalid, p)
		}
	}
	for p := range findings {
		if !c.Contains(p) {
			unknown = append(unknown, p)
		}
	}
	if len(missing) == 0 && len(unknown) == 0 && len(invalid) == 0 {
		return nil
	}
	sort.Strings(unknown)
	details := map[string][]string{}
	if len(missing) > 0 {
		details["missing"] = missing
	}
	if len(unknown) > 0 {
		details["unknown"] = unknown
	}
	if len(invalid) > 0 {
		details["invalidSeverity"] = invalid
	}
	return apperr.Precondition(CodeInspectionIncomplete,
		fmt.Sprintf("inspection report must grade all %d checklist points", len(c.points))).
		WithDetails(details)
}

// order returns the points of findings in checklist order, then unknown points sorted.
func (c *Checklist) order(findings Findings) []string {
	known := make([]string, 0, len(findings))
	var extra []string
	for _, p := range c.points {
		if _, ok := findings[p]; ok {
			known = append(known, p)
		}
	}
	for p := range findings {
		if !c.Contains(p) {
			extra = append(extra, p)
		}
	}
	sort.Strings(extra)
	return append(known, extra...)
}
