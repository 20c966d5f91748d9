package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"ramplab/domain/analysis"
	"ramplab/domain/session"
)

// WorkbookWriter renders an analysis result as an .xlsx workbook with one
// sheet per section: summary, thresholds, validation findings and the
// critical power model.
type WorkbookWriter struct{}

// NewWorkbookWriter creates a workbook exporter
func NewWorkbookWriter() *WorkbookWriter {
	return &WorkbookWriter{}
}

// ExportWorkbook renders the result into w as an .xlsx document
func (ww *WorkbookWriter) ExportWorkbook(w io.Writer, sess *session.Session, result *analysis.AnalysisResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := ww.writeSummary(f, sess, result); err != nil {
		return err
	}
	if err := ww.writeThresholds(f, result); err != nil {
		return err
	}
	if err := ww.writeFindings(f, result); err != nil {
		return err
	}
	if err := ww.writeCPModel(f, result); err != nil {
		return err
	}

	// Drop the default sheet last so the workbook is never empty mid-build.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	return f.Write(w)
}

func (ww *WorkbookWriter) writeSummary(f *excelize.File, sess *session.Session, result *analysis.AnalysisResult) error {
	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Session ID", sess.ID.String()},
		{"Protocol", string(sess.Protocol)},
		{"Duration (s)", sess.Duration()},
		{"Analysis ID", result.ID.String()},
		{"Algorithm version", result.Provenance.AlgorithmVersion},
		{"Validation status", string(result.Validation.Status)},
		{"Quality score", result.Validation.QualityScore},
	}
	if m := result.Metrics; m != nil {
		rows = append(rows,
			[]interface{}{"Average power (W)", m.AvgPowerW},
			[]interface{}{"Normalized power (W)", m.NormalizedW},
			[]interface{}{"Total work (kJ)", m.WorkKJ},
		)
		if m.VO2MaxEst > 0 {
			rows = append(rows, []interface{}{"VO2max estimate (ml/kg/min)", m.VO2MaxEst})
		}
		if m.TDIClass != "" {
			rows = append(rows,
				[]interface{}{"Threshold discordance (%)", m.TDI},
				[]interface{}{"Discordance class", m.TDIClass},
			)
		}
	}
	return writeRows(f, sheet, rows)
}

func (ww *WorkbookWriter) writeThresholds(f *excelize.File, result *analysis.AnalysisResult) error {
	const sheet = "Thresholds"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Threshold", "Point", "Lower", "Upper", "Unit", "Methods", "Score", "Confidence", "Degenerate"},
	}
	for _, t := range result.Thresholds {
		rows = append(rows, []interface{}{
			string(t.Name), t.Point, t.Lower, t.Upper, t.Unit,
			joinMethods(t.Methods), t.Score, string(t.Level), t.Degenerate,
		})
	}
	for _, n := range result.Undetected {
		rows = append(rows, []interface{}{
			string(n.Name), "-", "-", "-", "-", n.Reason, "-", "undetected", "-",
		})
	}
	return writeRows(f, sheet, rows)
}

func (ww *WorkbookWriter) writeFindings(f *excelize.File, result *analysis.AnalysisResult) error {
	const sheet = "Validation"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Rule", "Severity", "Message", "Measured"},
	}
	for _, finding := range result.Validation.Findings {
		rows = append(rows, []interface{}{
			string(finding.Rule), string(finding.Severity), finding.Message, finding.Measured,
		})
	}
	return writeRows(f, sheet, rows)
}

func (ww *WorkbookWriter) writeCPModel(f *excelize.File, result *analysis.AnalysisResult) error {
	if result.CP == nil {
		return nil
	}
	const sheet = "Critical Power"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	cp := result.CP
	rows := [][]interface{}{
		{"CP (W)", cp.CP},
		{"W' (J)", cp.WPrime},
		{"CP 95% CI", fmt.Sprintf("[%.1f, %.1f]", cp.CPLower, cp.CPUpper)},
		{"R²", cp.RSquared},
		{"Degenerate", cp.Degenerate},
		{},
		{"Duration (s)", "Power (W)", "Residual (J)"},
	}
	for i, e := range cp.Inputs {
		row := []interface{}{e.DurationS, e.PowerW}
		if i < len(cp.Residuals) {
			row = append(row, cp.Residuals[i].Residual)
		}
		rows = append(rows, row)
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func joinMethods(methods []analysis.MethodName) string {
	out := ""
	for i, m := range methods {
		if i > 0 {
			out += ", "
		}
		out += string(m)
	}
	return out
}
