package ports

import (
	"io"

	"ramplab/domain/analysis"
	"ramplab/domain/session"
)

// WorkbookExporter writes an analysis result as a spreadsheet workbook
type WorkbookExporter interface {
	// ExportWorkbook renders the result into w as an .xlsx document
	ExportWorkbook(w io.Writer, sess *session.Session, result *analysis.AnalysisResult) error
}

// ReportRenderer renders an analysis result as a human-readable report
type ReportRenderer interface {
	// RenderMarkdown produces the report in Markdown
	RenderMarkdown(sess *session.Session, result *analysis.AnalysisResult) ([]byte, error)

	// RenderHTML produces the report as a standalone HTML document
	RenderHTML(sess *session.Session, result *analysis.AnalysisResult) ([]byte, error)
}
