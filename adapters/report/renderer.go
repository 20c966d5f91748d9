package report

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"ramplab/domain/analysis"
	"ramplab/domain/session"
)

// Renderer produces human-readable analysis reports. Markdown is the source
// format; HTML is rendered from it.
type Renderer struct{}

// NewRenderer creates a report renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderMarkdown produces the report in Markdown
func (rr *Renderer) RenderMarkdown(sess *session.Session, result *analysis.AnalysisResult) ([]byte, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# Session Analysis Report\n\n")
	fmt.Fprintf(&b, "- **Session**: `%s` (%s protocol, %.0f s)\n", sess.ID, sess.Protocol, sess.Duration())
	fmt.Fprintf(&b, "- **Analysis**: `%s` (algorithm %s)\n\n", result.ID, result.Provenance.AlgorithmVersion)

	rr.writeValidation(&b, result.Validation)

	if result.Validation.Fatal() {
		b.WriteString("Analysis was not performed: the session failed data-quality validation.\n")
		return []byte(b.String()), nil
	}

	rr.writeThresholds(&b, result)
	rr.writeCPModel(&b, result.CP)
	rr.writeMetrics(&b, result.Metrics)

	return []byte(b.String()), nil
}

// RenderHTML produces the report as a standalone HTML document
func (rr *Renderer) RenderHTML(sess *session.Session, result *analysis.AnalysisResult) ([]byte, error) {
	md, err := rr.RenderMarkdown(sess, result)
	if err != nil {
		return nil, err
	}

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.Tables)
	doc := p.Parse(md)

	renderer := html.NewRenderer(html.RendererOptions{
		Title: fmt.Sprintf("Session %s", sess.ID),
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.Render(doc, renderer), nil
}

func (rr *Renderer) writeValidation(b *strings.Builder, report analysis.ValidationReport) {
	fmt.Fprintf(b, "## Data Quality\n\n")
	fmt.Fprintf(b, "Status **%s**, quality score %.1f/100.\n\n", report.Status, report.QualityScore)

	if len(report.Findings) == 0 {
		b.WriteString("No findings.\n\n")
		return
	}
	b.WriteString("| Rule | Severity | Finding | Measured |\n")
	b.WriteString("|------|----------|---------|----------|\n")
	for _, f := range report.Findings {
		fmt.Fprintf(b, "| %s | %s | %s | %.2f |\n", f.Rule, f.Severity, f.Message, f.Measured)
	}
	b.WriteString("\n")
}

func (rr *Renderer) writeThresholds(b *strings.Builder, result *analysis.AnalysisResult) {
	fmt.Fprintf(b, "## Thresholds\n\n")

	if len(result.Thresholds) == 0 && len(result.Undetected) == 0 {
		b.WriteString("No threshold channels were available.\n\n")
		return
	}

	if len(result.Thresholds) > 0 {
		b.WriteString("| Threshold | Estimate | Range | Confidence | Methods |\n")
		b.WriteString("|-----------|----------|-------|------------|--------|\n")
		for _, t := range result.Thresholds {
			degenerate := ""
			if t.Degenerate {
				degenerate = " (degenerate)"
			}
			fmt.Fprintf(b, "| %s | %.0f %s | %.0f–%.0f%s | %.0f (%s) | %s |\n",
				t.Name, t.Point, t.Unit, t.Lower, t.Upper, degenerate,
				t.Score, t.Level, methodList(t.Methods))
		}
		b.WriteString("\n")
	}

	for _, n := range result.Undetected {
		fmt.Fprintf(b, "- %s not detected: %s\n", n.Name, n.Reason)
	}
	if len(result.Undetected) > 0 {
		b.WriteString("\n")
	}
}

func (rr *Renderer) writeCPModel(b *strings.Builder, cp *analysis.CPModelResult) {
	if cp == nil {
		return
	}
	fmt.Fprintf(b, "## Critical Power\n\n")
	if cp.Degenerate {
		b.WriteString("The fit is flagged **degenerate**; values below are diagnostic only.\n\n")
	}
	fmt.Fprintf(b, "- CP: **%.0f W** (95%% CI %.0f–%.0f)\n", cp.CP, cp.CPLower, cp.CPUpper)
	fmt.Fprintf(b, "- W': **%.1f kJ**\n", cp.WPrime/1000)
	fmt.Fprintf(b, "- R²: %.3f over %d efforts (residual RMSE %.0f J)\n\n",
		cp.RSquared, len(cp.Inputs), cp.ResidualStats.RMSE)
}

func (rr *Renderer) writeMetrics(b *strings.Builder, m *analysis.SessionMetrics) {
	if m == nil {
		return
	}
	fmt.Fprintf(b, "## Session Metrics\n\n")
	fmt.Fprintf(b, "- Average power: %.0f W\n", m.AvgPowerW)
	fmt.Fprintf(b, "- Normalized power: %.0f W\n", m.NormalizedW)
	fmt.Fprintf(b, "- Total work: %.0f kJ\n", m.WorkKJ)
	if m.VO2MaxEst > 0 {
		fmt.Fprintf(b, "- Estimated VO2max: %.1f ± %.1f ml/kg/min (weight %.0f%%)\n",
			m.VO2MaxEst, m.VO2MaxCI95, m.VO2MaxWeightPct)
	}
	if m.TDIClass != "" {
		fmt.Fprintf(b, "- Threshold discordance: %.1f%% (%s)\n", m.TDI, m.TDIClass)
	}
	b.WriteString("\n")
}

func methodList(methods []analysis.MethodName) string {
	parts := make([]string, len(methods))
	for i, m := range methods {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}
