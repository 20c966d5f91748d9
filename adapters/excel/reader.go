package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"ramplab/domain/core"
	"ramplab/domain/session"
)

// columnKinds maps recognized header names to channel kinds. Headers are
// matched case-insensitively with units stripped ("power_w" and "Power"
// both resolve to power).
var columnKinds = map[string]session.Kind{
	"power":       session.KindPower,
	"heartrate":   session.KindHeartRate,
	"hr":          session.KindHeartRate,
	"cadence":     session.KindCadence,
	"ventilation": session.KindVentilation,
	"ve":          session.KindVentilation,
	"breathrate":  session.KindBreathRate,
	"smo2":        session.KindSmO2,
	"thb":         session.KindTHb,
}

// SessionReader parses a recorded session from a columnar file: one time
// column plus one column per channel. XLSX is read from Sheet1; CSV from the
// whole stream.
type SessionReader struct {
	protocol session.Protocol
	format   string // "xlsx" or "csv"
}

// NewSessionReader creates a reader for the given file name; the extension
// selects the format.
func NewSessionReader(name string, protocol session.Protocol) *SessionReader {
	format := "xlsx"
	if strings.ToLower(filepath.Ext(name)) == ".csv" {
		format = "csv"
	}
	return &SessionReader{protocol: protocol, format: format}
}

// ReadSession decodes one session from r.
func (sr *SessionReader) ReadSession(r io.Reader) (*session.Session, error) {
	var rows [][]string
	var err error
	switch sr.format {
	case "csv":
		rows, err = readCSVRows(r)
	default:
		rows, err = readSheetRows(r)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("file must have a header row and at least one data row")
	}
	return sr.buildSession(rows)
}

func readSheetRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("reading sheet: %w", err)
	}
	return rows, nil
}

func readCSVRows(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	return rows, nil
}

func (sr *SessionReader) buildSession(rows [][]string) (*session.Session, error) {
	header := rows[0]
	timeCol := -1
	kindCols := make(map[int]session.Kind)
	for i, h := range header {
		name := normalizeHeader(h)
		if name == "time" || name == "t" || name == "seconds" {
			timeCol = i
			continue
		}
		if kind, ok := columnKinds[name]; ok {
			kindCols[i] = kind
		}
	}
	if timeCol < 0 {
		return nil, fmt.Errorf("no time column found in header %v", header)
	}
	if len(kindCols) == 0 {
		return nil, fmt.Errorf("no recognized channel columns in header %v", header)
	}

	samples := make(map[session.Kind][]session.Sample, len(kindCols))
	for rowIdx, row := range rows[1:] {
		if timeCol >= len(row) || strings.TrimSpace(row[timeCol]) == "" {
			continue
		}
		t, err := strconv.ParseFloat(strings.TrimSpace(row[timeCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad time value %q", rowIdx+2, row[timeCol])
		}
		for col, kind := range kindCols {
			if col >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[col])
			if cell == "" {
				continue // missing value, left for gap detection downstream
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad %s value %q", rowIdx+2, kind, cell)
			}
			samples[kind] = append(samples[kind], session.Sample{T: t, Value: v})
		}
	}

	channels := make([]session.Channel, 0, len(samples))
	for kind, s := range samples {
		channels = append(channels, session.Channel{Kind: kind, Samples: s})
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Kind < channels[j].Kind })
	sess, err := session.New(core.SessionID(core.NewID()), sr.protocol, channels)
	if err != nil {
		return nil, fmt.Errorf("building session: %w", err)
	}
	return sess, nil
}

// normalizeHeader lowercases a header and strips a trailing unit suffix such
// as "_w" or "_bpm".
func normalizeHeader(h string) string {
	name := strings.ToLower(strings.TrimSpace(h))
	for _, suffix := range []string{"_w", "_bpm", "_rpm", "_lmin", "_l_min", "_pct", "_s"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return name
}
