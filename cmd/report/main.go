package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"ramplab/adapters/excel"
	"ramplab/adapters/report"
	"ramplab/app"
	"ramplab/domain/analysis"
	"ramplab/domain/core"
	"ramplab/domain/session"
	"ramplab/internal"
	"ramplab/internal/config"
)

// report analyzes one recorded session file and writes the analysis as an
// xlsx workbook plus Markdown and HTML reports next to it.
func main() {
	var (
		inPath   = flag.String("in", "", "session file (.xlsx, .csv or .json)")
		outDir   = flag.String("out", ".", "output directory")
		protocol = flag.String("protocol", "ramp", "test protocol: ramp or step")
	)
	flag.Parse()

	if *inPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	proto, err := session.ParseProtocol(*protocol)
	if err != nil {
		log.Fatalf("Invalid protocol: %v", err)
	}

	sess, err := readSession(*inPath, proto)
	if err != nil {
		log.Fatalf("Failed to read session: %v", err)
	}

	service := app.NewAnalysisService(internal.NewDefaultLogger())
	result, err := service.RunFullAnalysis(context.Background(), sess, cfg.Analysis)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	if !result.Validation.Passed {
		log.Printf("Warning: %v; report contains findings only", core.ErrValidationFailed)
	}

	base := strings.TrimSuffix(filepath.Base(*inPath), filepath.Ext(*inPath))
	if err := writeOutputs(*outDir, base, sess, result); err != nil {
		log.Fatalf("Failed to write outputs: %v", err)
	}

	fmt.Printf("Session %s: validation %s (score %.1f), %d thresholds detected\n",
		sess.ID, result.Validation.Status, result.Validation.QualityScore, len(result.Thresholds))
}

func readSession(path string, protocol session.Protocol) (*session.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		var sess session.Session
		if err := json.NewDecoder(f).Decode(&sess); err != nil {
			return nil, fmt.Errorf("decoding session json: %w", err)
		}
		if sess.ID.String() == "" {
			sess.ID = core.SessionID(core.NewID())
		}
		for _, c := range sess.Channels {
			if err := c.Validate(); err != nil {
				return nil, err
			}
		}
		return &sess, nil
	}

	reader := excel.NewSessionReader(path, protocol)
	return reader.ReadSession(f)
}

func writeOutputs(dir, base string, sess *session.Session, result *analysis.AnalysisResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	wb, err := os.Create(filepath.Join(dir, base+"_analysis.xlsx"))
	if err != nil {
		return err
	}
	defer wb.Close()
	if err := excel.NewWorkbookWriter().ExportWorkbook(wb, sess, result); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}

	renderer := report.NewRenderer()
	md, err := renderer.RenderMarkdown(sess, result)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, base+"_report.md"), md, 0o644); err != nil {
		return err
	}

	page, err := renderer.RenderHTML(sess, result)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, base+"_report.html"), page, 0o644)
}
