package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veridian/comply/internal/models"
)

type ReportFormat string

const (
	FormatCSV ReportFormat = "csv"
	FormatPDF ReportFormat = "pdf"
)

type Report struct {
	ID          string
	Format      ReportFormat
	Title       string
	GeneratedAt time.Time
	Data        []byte
	Filename    string
	MimeType    string
}

// DataProvider supplies the entity data a report needs.
type DataProvider interface {
	GetEntity(ctx context.Context, id uuid.UUID) (*models.EntityProfile, error)
	GetState(ctx context.Context, entityID uuid.UUID) (*models.ComplianceState, error)
	ListAlerts(ctx context.Context, entityID uuid.UUID, activeOnly bool) ([]models.ComplianceAlert, error)
}

type Generator struct {
	provider DataProvider
	archiver *Archiver
}

func NewGenerator(provider DataProvider, archiver *Archiver) *Generator {
	return &Generator{provider: provider, archiver: archiver}
}

// ComplianceSummary renders the entity's current compliance state. When an
// archiver is configured the PDF copy is also uploaded for record keeping.
func (g *Generator) ComplianceSummary(ctx context.Context, entityID uuid.UUID, format ReportFormat) (*Report, error) {
	entity, err := g.provider.GetEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("loading entity: %w", err)
	}
	if entity == nil {
		return nil, fmt.Errorf("entity %s not found", entityID)
	}

	state, err := g.provider.GetState(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}
	if state == nil {
		return nil, fmt.Errorf("entity %s has no calculated state", entityID)
	}

	report := &Report{
		ID:          uuid.New().String(),
		Format:      format,
		Title:       fmt.Sprintf("Compliance Summary - %s", entity.Name),
		GeneratedAt: time.Now(),
	}

	switch format {
	case FormatCSV:
		data, err := requirementsCSV(state)
		if err != nil {
			return nil, err
		}
		report.Data = data
		report.Filename = fmt.Sprintf("compliance-%s-%s.csv", entity.ID, report.GeneratedAt.Format("20060102"))
		report.MimeType = "text/csv"

	case FormatPDF:
		alerts, err := g.provider.ListAlerts(ctx, entityID, true)
		if err != nil {
			return nil, fmt.Errorf("loading alerts: %w", err)
		}
		data, err := compliancePDF(report.Title, entity, state, alerts)
		if err != nil {
			return nil, err
		}
		report.Data = data
		report.Filename = fmt.Sprintf("compliance-%s-%s.pdf", entity.ID, report.GeneratedAt.Format("20060102"))
		report.MimeType = "application/pdf"

		if g.archiver != nil {
			if err := g.archiver.Upload(ctx, report.Filename, report.MimeType, data); err != nil {
				return nil, fmt.Errorf("archiving report: %w", err)
			}
		}

	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}

	return report, nil
}

func requirementsCSV(state *models.ComplianceState) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"rule_code", "rule_name", "domain", "period", "due_date", "status", "overdue_days", "penalty"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, req := range state.Requirements {
		row := []string{
			req.RuleCode,
			req.RuleName,
			string(req.Domain),
			req.PeriodKey,
			req.DueDate.Format("2006-01-02"),
			string(req.Status),
			fmt.Sprintf("%d", req.OverdueDays),
			req.Penalty.Total.String(),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compliancePDF(title string, entity *models.EntityProfile, state *models.ComplianceState, alerts []models.ComplianceAlert) ([]byte, error) {
	pdf := NewPDFReport(title)

	pdf.AddSection("Overall Position")
	pdf.AddStateBadge(string(state.OverallState))
	pdf.AddKeyValues([][2]string{
		{"Entity", entity.Name},
		{"Risk Score", fmt.Sprintf("%.2f", state.RiskScore)},
		{"Penalty Exposure", state.TotalPenaltyExposure.String()},
		{"Overdue Requirements", fmt.Sprintf("%d", state.OverdueCount)},
		{"Upcoming Requirements", fmt.Sprintf("%d", state.UpcomingCount)},
		{"Data Completeness", fmt.Sprintf("%.0f%%", state.DataCompleteness*100)},
		{"Calculated At", state.CalculatedAt.Format("2006-01-02 15:04")},
	})

	if state.NextDeadline != nil {
		pdf.AddParagraph(fmt.Sprintf("Next deadline: %s (%s)",
			state.NextDeadline.Format("January 2, 2006"), state.NextAction))
	}

	pdf.AddSection("Domain Breakdown")
	domainRows := make([][]string, 0, len(state.DomainStates))
	for domain, domainState := range state.DomainStates {
		domainRows = append(domainRows, []string{string(domain), string(domainState)})
	}
	pdf.AddTable([]string{"Domain", "State"}, domainRows)

	pdf.AddSection("Requirements")
	reqRows := make([][]string, 0, len(state.Requirements))
	for _, req := range state.Requirements {
		reqRows = append(reqRows, []string{
			req.RuleCode,
			req.DueDate.Format("2006-01-02"),
			string(req.Status),
			fmt.Sprintf("%d", req.OverdueDays),
			req.Penalty.Total.String(),
		})
	}
	pdf.AddTable([]string{"Rule", "Due", "Status", "Overdue", "Penalty"}, reqRows)

	if len(alerts) > 0 {
		pdf.AddSection(fmt.Sprintf("Active Alerts (%d)", len(alerts)))
		alertRows := make([][]string, 0, len(alerts))
		for _, alert := range alerts {
			alertRows = append(alertRows, []string{
				string(alert.Type),
				string(alert.Severity),
				alert.RuleCode,
				alert.TriggeredAt.Format("2006-01-02"),
			})
		}
		pdf.AddTable([]string{"Type", "Severity", "Rule", "Raised"}, alertRows)
	}

	return pdf.Output()
}
