package inspection

import (
	"strings"
	"testing"

	"fleet_service_backend/platform/apperr"
)

func fullFindings(s Severity) Findings {
	f := make(Findings, len(DefaultPoints))
	for _, p := range DefaultPoints {
		f[p] = s
	}
	return f
}

func sameFindings(a, b Findings) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func TestEncodeFormat(t *testing.T) {
	codec := NewCodec(nil)
	text := codec.Encode(Findings{"Brakes": SeverityUrgent, "Tires": SeverityGood, "Wipers": SeverityRecommended})

	want := Banner + "\n" +
		"🟢 GOOD - Tires\n" +
		"🔴 URGENT - Brakes\n" +
		"🟡 RECOMMENDED - Wipers"
	if text != want {
		t.Fatalf("expected\n%s\ngot\n%s", want, text)
	}
}

func TestEncodeOrdersUnknownPointsAfterChecklist(t *testing.T) {
	codec := NewCodec(nil)
	text := codec.Encode(Findings{"Zeta": SeverityGood, "Alpha": SeverityGood, "Exhaust": SeverityUrgent})
	lines := strings.Split(text, "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[1], "Exhaust") || !strings.HasSuffix(lines[2], "Alpha") || !strings.HasSuffix(lines[3], "Zeta") {
		t.Fatalf("unexpected order: %q", lines[1:])
	}
}

func TestRoundTripExtremes(t *testing.T) {
	codec := NewCodec(nil)
	for _, s := range Severities {
		f := fullFindings(s)
		got := codec.Decode(codec.Encode(f)).Findings()
		if !sameFindings(f, got) {
			t.Fatalf("all-%s round trip mismatch: %v", s, got)
		}
	}

	empty := codec.Decode(codec.Encode(Findings{}))
	if !empty.Empty() || len(empty.Findings()) != 0 {
		t.Fatalf("expected empty decode, got %+v", empty)
	}
}

func TestDecodeReadsOnlyAfterBanner(t *testing.T) {
	text := "Customer says 🔴 brakes squeal\n" +
		"✅ APPROVED by customer\n\n" +
		NewCodec(nil).Encode(Findings{"Lights": SeverityGood}) +
		"\nthanks, see you next time"

	d := Decode(text)
	if len(d.Urgent) != 0 {
		t.Fatalf("expected text before banner to be ignored, got %+v", d.Urgent)
	}
	if len(d.Good) != 1 || d.Good[0].Point != "Lights" {
		t.Fatalf("expected one good Lights finding, got %+v", d.Good)
	}
}

func TestDecodeUsesLastBanner(t *testing.T) {
	codec := NewCodec(nil)
	text := codec.Encode(Findings{"Tires": SeverityUrgent}) + "\n\n" + codec.Encode(Findings{"Tires": SeverityGood})

	s := Summarize(text)
	if s.Urgent != 0 || s.Good != 1 {
		t.Fatalf("expected latest report only, got %+v", s)
	}
}

func TestDecodeLegacyTextWithoutBanner(t *testing.T) {
	text := "Job notes\n🔴 URGENT - Brakes\nno marker here\n🟡 Future - Wipers\n🟢 GOOD - Tires"

	d := Decode(text)
	if got := d.Summary(); got != (Summary{Urgent: 1, Recommended: 1, Good: 1}) {
		t.Fatalf("unexpected summary %+v", got)
	}
	if d.Recommended[0].Point != "Wipers" || d.Recommended[0].Severity != SeverityRecommended {
		t.Fatalf("expected Future alias to decode as recommended, got %+v", d.Recommended[0])
	}
	if d.Urgent[0].Line != "🔴 URGENT - Brakes" {
		t.Fatalf("expected original line kept, got %q", d.Urgent[0].Line)
	}
}

func TestDecodeIgnoresUnmarkedText(t *testing.T) {
	d := Decode(Banner + "\nplain line\n- dash only")
	if !d.Empty() {
		t.Fatalf("expected nothing decoded, got %+v", d)
	}
}

func TestChecklistValidate(t *testing.T) {
	c := DefaultChecklist()

	if err := c.Validate(fullFindings(SeverityGood)); err != nil {
		t.Fatalf("expected full report to validate, got %v", err)
	}

	partial := fullFindings(SeverityGood)
	delete(partial, "Battery")
	err := c.Validate(partial)
	if apperr.GetCode(err) != CodeInspectionIncomplete {
		t.Fatalf("expected %s, got %v", CodeInspectionIncomplete, err)
	}

	extra := fullFindings(SeverityGood)
	extra["Horn"] = SeverityGood
	if err := c.Validate(extra); err == nil {
		t.Fatalf("expected unknown point to be rejected")
	}

	bad := fullFindings(SeverityGood)
	bad["Tires"] = Severity("MEH")
	if err := c.Validate(bad); err == nil {
		t.Fatalf("expected invalid severity to be rejected")
	}
}

func TestParseChecklistYAML(t *testing.T) {
	c, err := ParseChecklist([]byte("points:\n  - Tires\n  - Brakes\n  - Horn\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Size() != 3 || c.Points()[2] != "Horn" {
		t.Fatalf("unexpected checklist %v", c.Points())
	}

	if _, err := ParseChecklist([]byte("points:\n  - Tires\n  - Tires\n")); err == nil {
		t.Fatalf("expected duplicate point to be rejected")
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]Severity{
		"good":        SeverityGood,
		"RECOMMENDED": SeverityRecommended,
		"Future":      SeverityRecommended,
		" urgent ":    SeverityUrgent,
	}
	for in, want := range cases {
		got, err := ParseSeverity(in)
		if err != nil || got != want {
			t.Fatalf("ParseSeverity(%q): expected %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParseSeverity("fine"); err == nil {
		t.Fatalf("expected error for unknown severity")
	}
}

func TestStripMarkers(t *testing.T) {
	got := StripMarkers("🔴 seal weeping\n  🟢🟡 fine ")
	if got != "seal weeping\nfine" {
		t.Fatalf("expected markers removed, got %q", got)
	}
	if len(Decode(Banner+"\n"+got).Urgent) != 0 {
		t.Fatalf("expected stripped text to decode as nothing")
	}
}
