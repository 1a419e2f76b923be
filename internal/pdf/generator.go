// Package pdf renders the inspection report handed to the fleet customer
// when a job is completed, using maroto/v2.
package pdf

import (
	"fmt"
	"strings"
	"time"

	"fleet_service_backend/internal/servicerequests/inspection"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// ── Colour palette ──────────────────────────────────────────────────────

var (
	colorPrimary   = &props.Color{Red: 17, Green: 24, Blue: 39}    // near-black
	colorSecondary = &props.Color{Red: 107, Green: 114, Blue: 128} // gray-500
	colorAccent    = &props.Color{Red: 37, Green: 99, Blue: 235}   // blue-600
	colorTableHead = &props.Color{Red: 241, Green: 245, Blue: 249} // slate-100
	colorTableAlt  = &props.Color{Red: 249, Green: 250, Blue: 251} // gray-50
	colorGreen     = &props.Color{Red: 22, Green: 163, Blue: 74}   // green-600
	colorAmber     = &props.Color{Red: 217, Green: 119, Blue: 6}   // amber-600
	colorRed       = &props.Color{Red: 220, Green: 38, Blue: 38}   // red-600
	colorBorder    = &props.Color{Red: 226, Green: 232, Blue: 240} // slate-200
)

// ── Data struct ─────────────────────────────────────────────────────────

// InspectionReportData holds everything printed on the report.
type InspectionReportData struct {
	RequestID    string
	Title        string
	CustomerName string
	CompanyName  string
	CompletedAt  time.Time
	Technicians  []string
	// Points in checklist order.
	Points   []string
	Findings inspection.Findings
}

// GenerateInspectionReportPDF renders the report to PDF bytes.
func GenerateInspectionReportPDF(data InspectionReportData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithTopMargin(12).
		WithRightMargin(15).
		Build()

	m := maroto.New(cfg)

	if err := m.RegisterFooter(buildFooter(data)); err != nil {
		return nil, fmt.Errorf("register footer: %w", err)
	}

	m.AddRows(buildHeader(data)...)
	m.AddRows(row.New(1).WithStyle(&props.Cell{
		BorderType:  border.Bottom,
		BorderColor: colorBorder,
	}))
	m.AddRows(row.New(6))

	m.AddRows(buildDetails(data)...)
	m.AddRows(row.New(6))

	m.AddRows(buildSummary(data.Findings))
	m.AddRows(row.New(4))

	m.AddRows(buildFindingsTable(data)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate PDF: %w", err)
	}

	return doc.GetBytes(), nil
}

// FileName is the attachment name for a report.
func FileName(requestID string, completedAt time.Time) string {
	short := requestID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("inspection-%s-%s.pdf", short, completedAt.UTC().Format("20060102"))
}

// ── Header ──────────────────────────────────────────────────────────────

func buildHeader(data InspectionReportData) []core.Row {
	return []core.Row{
		row.New(20).Add(
			col.New(5).Add(text.New(data.CompanyName, props.Text{
				Size:  14,
				Style: fontstyle.Bold,
				Color: colorPrimary,
				Top:   4,
			})),
			col.New(7).Add(
				text.New("INSPECTION REPORT", props.Text{
					Size:  20,
					Style: fontstyle.Bold,
					Align: align.Right,
					Color: colorAccent,
				}),
				text.New(data.RequestID, props.Text{
					Size:  9,
					Align: align.Right,
					Color: colorSecondary,
					Top:   11,
				}),
			),
		),
	}
}

func buildDetails(data InspectionReportData) []core.Row {
	label := props.Text{Size: 7, Style: fontstyle.Bold, Color: colorAccent}
	value := props.Text{Size: 9, Color: colorPrimary}
	technicians := "-"
	if len(data.Technicians) > 0 {
		technicians = strings.Join(data.Technicians, ", ")
	}

	return []core.Row{
		row.New(5).Add(
			col.New(6).Add(text.New("SERVICE REQUEST", label)),
			col.New(3).Add(text.New("CUSTOMER", label)),
			col.New(3).Add(text.New("COMPLETED", props.Text{Size: 7, Style: fontstyle.Bold, Color: colorAccent, Align: align.Right})),
		),
		row.New(6).Add(
			col.New(6).Add(text.New(data.Title, value)),
			col.New(3).Add(text.New(data.CustomerName, value)),
			col.New(3).Add(text.New(data.CompletedAt.UTC().Format("02 Jan 2006 15:04"), props.Text{Size: 9, Color: colorPrimary, Align: align.Right})),
		),
		row.New(5).Add(
			col.New(12).Add(text.New("Technicians: "+technicians, props.Text{Size: 8, Color: colorSecondary})),
		),
	}
}

func buildSummary(findings inspection.Findings) core.Row {
	var urgent, recommended, good int
	for _, s := range findings {
		switch s {
		case inspection.SeverityUrgent:
			urgent++
		case inspection.SeverityRecommended:
			recommended++
		case inspection.SeverityGood:
			good++
		}
	}
	style := func(c *props.Color) props.Text {
		return props.Text{Size: 10, Style: fontstyle.Bold, Color: c, Align: align.Center, Top: 2}
	}
	return row.New(10).Add(
		col.New(4).Add(text.New(fmt.Sprintf("%d urgent", urgent), style(colorRed))),
		col.New(4).Add(text.New(fmt.Sprintf("%d recommended", recommended), style(colorAmber))),
		col.New(4).Add(text.New(fmt.Sprintf("%d good", good), style(colorGreen))),
	).WithStyle(&props.Cell{BackgroundColor: colorTableHead})
}

// ── Findings table ──────────────────────────────────────────────────────

func buildFindingsTable(data InspectionReportData) []core.Row {
	headerStyle := props.Text{Size: 7.5, Style: fontstyle.Bold, Color: colorPrimary, Top: 1.5}
	rows := []core.Row{
		row.New(7).Add(
			col.New(8).Add(text.New("Checklist point", headerStyle)),
			col.New(4).Add(text.New("Condition", props.Text{Size: 7.5, Style: fontstyle.Bold, Color: colorPrimary, Align: align.Right, Top: 1.5})),
		).WithStyle(&props.Cell{
			BackgroundColor: colorTableHead,
			BorderType:      border.Bottom,
			BorderColor:     colorBorder,
		}),
	}

	for i, point := range data.Points {
		severity, ok := data.Findings[point]
		if !ok {
			continue
		}
		r := row.New(7).Add(
			col.New(8).Add(text.New(point, props.Text{Size: 8, Color: colorPrimary, Top: 1})),
			col.New(4).Add(text.New(severityLabel(severity), props.Text{
				Size:  8,
				Style: fontstyle.Bold,
				Color: severityColor(severity),
				Align: align.Right,
				Top:   1,
			})),
		)
		if i%2 == 1 {
			r.WithStyle(&props.Cell{BackgroundColor: colorTableAlt})
		}
		rows = append(rows, r)
	}
	return rows
}

// ── Footer ──────────────────────────────────────────────────────────────

func buildFooter(data InspectionReportData) core.Row {
	return row.New(10).Add(
		col.New(12).Add(
			text.New(data.CompanyName+"  ·  Fleet inspection report", props.Text{
				Size:  6.5,
				Color: colorSecondary,
				Align: align.Center,
				Top:   4,
			}),
		),
	).WithStyle(&props.Cell{
		BorderType:  border.Top,
		BorderColor: colorBorder,
	})
}

// ── Helpers ─────────────────────────────────────────────────────────────

func severityColor(s inspection.Severity) *props.Color {
	switch s {
	case inspection.SeverityUrgent:
		return colorRed
	case inspection.SeverityRecommended:
		return colorAmber
	default:
		return colorGreen
	}
}

func severityLabel(s inspection.Severity) string {
	switch s {
	case inspection.SeverityUrgent:
		return "Urgent"
	case inspection.SeverityRecommended:
		return "Recommended"
	case inspection.SeverityGood:
		return "Good"
	default:
		return string(s)
	}
}
