package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"microstructure-lab/internal/reporting"
)

// Output file names written by Export.
const (
	FeaturesFile = "features.csv"
	AlertsFile   = "alerts.csv"
	SummaryFile  = "alert_summary.csv"
	ReportFile   = "REPORT.md"
	XLSXFile     = "alerts.xlsx"
)

// ExportMeta identifies the exported run in the report header.
type ExportMeta struct {
	DatasetID string
	RunID     string
}

// Export writes the tables and report of res to outputDir and returns the
// written paths. alerts.xlsx is only written when enabled with WithXLSX.
func (p *Pipeline) Export(res *Result, outputDir string, meta ExportMeta) ([]string, error) {
	if res == nil || res.Alerts == nil {
		return nil, fmt.Errorf("export: result has no alert table")
	}

	// Ensure output directory exists
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	alerts, err := reporting.BuildAlertRows(res.Alerts, res.Params.Horizon)
	if err != nil {
		return nil, err
	}

	report := &reporting.Report{
		GeneratedAt:  p.clock(),
		DatasetID:    meta.DatasetID,
		RunID:        meta.RunID,
		ParamsHash:   res.ParamsHash,
		Params:       res.Params,
		Data:         reporting.NewDataSection(res.Features.Ticks, res.Spacing),
		Summary:      res.Summary,
		RecentAlerts: reporting.Tail(alerts, reporting.DefaultRecentAlerts),
	}

	files := []struct {
		name    string
		content string
	}{
		{FeaturesFile, reporting.RenderFeaturesCSV(res.Rolling)},
		{AlertsFile, reporting.RenderAlertsCSV(alerts, res.Params.SpreadWindow)},
		{SummaryFile, reporting.RenderSummaryCSV(res.Summary)},
		{ReportFile, reporting.RenderMarkdown(report)},
	}

	var written []string
	for _, f := range files {
		path := filepath.Join(outputDir, f.name)
		if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if p.xlsx {
		var buf bytes.Buffer
		if err := reporting.WriteXLSX(&buf, report, alerts); err != nil {
			return written, err
		}
		path := filepath.Join(outputDir, XLSXFile)
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	p.logger.Info("exported run", "dir", outputDir, "files", len(written))
	return written, nil
}

// ExportSweep writes sweep.csv and SWEEP.md for a set of results.
func (p *Pipeline) ExportSweep(rows []reporting.SweepRow, outputDir string, meta ExportMeta) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	report := &reporting.Report{
		GeneratedAt: p.clock(),
		DatasetID:   meta.DatasetID,
		Sweep:       rows,
	}
	if len(rows) > 0 {
		report.Params = rows[0].Params
		report.RunID = rows[0].RunID
		report.Summary = rows[0].Summary
	}

	csvPath := filepath.Join(outputDir, "sweep.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderSweepCSV(rows)), 0644); err != nil {
		return nil, err
	}
	mdPath := filepath.Join(outputDir, "SWEEP.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0644); err != nil {
		return []string{csvPath}, err
	}
	return []string{csvPath, mdPath}, nil
}
