// Package ingest turns uploaded spreadsheets into candidate records. Header
// names vary between sources, so each column is mapped through an alias
// table onto a Candidate field.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"recruitpipe/internal/domain"
)

var ErrUnsupportedFormat = errString("unsupported file format")

type errString string

func (e errString) Error() string { return string(e) }

// Row is one data row of an upload. Line is the 1-based line in the file,
// counting the header.
type Row struct {
	Line   int
	Record domain.Record
}

// Sheet is the parsed content of one upload.
type Sheet struct {
	Rows    []Row
	Skipped []domain.RowError
}

// Records returns the parsed rows in file order.
func (s Sheet) Records() []domain.Record {
	out := make([]domain.Record, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.Record
	}
	return out
}

// aliases maps a folded header (lowercase letters and digits only) to a field.
var aliases = map[string]string{
	"name":                "name",
	"fullname":            "name",
	"candidatename":       "name",
	"candidate":           "name",
	"email":               "email",
	"emailaddress":        "email",
	"mail":                "email",
	"workemail":           "email",
	"linkedin":            "linkedinUrl",
	"linkedinurl":         "linkedinUrl",
	"linkedinprofile":     "linkedinUrl",
	"profileurl":          "linkedinUrl",
	"title":               "title",
	"jobtitle":            "title",
	"currenttitle":        "title",
	"position":            "title",
	"company":             "company",
	"currentcompany":      "company",
	"currentemployer":     "company",
	"employer":            "company",
	"location":            "location",
	"city":                "location",
	"summary":             "summary",
	"about":               "summary",
	"bio":                 "summary",
	"skills":              "skills",
	"keyskills":           "skills",
	"languages":           "languages",
	"certifications":      "certifications",
	"headline":            "linkedinHeadline",
	"linkedinheadline":    "linkedinHeadline",
	"connections":         "linkedinConnections",
	"linkedinconnections": "linkedinConnections",
	"notes":               "linkedinNotes",
	"opentowork":          "openToWork",
	"lastactive":          "linkedinLastActive",
}

// listFields hold several values in one cell.
var listFields = map[string]bool{"skills": true, "languages": true, "certifications": true}

// Parse reads an upload, choosing the format from the file name.
func Parse(filename string, r io.Reader) (Sheet, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx", ".xlsm":
		return ParseXLSX(r)
	}
	return Sheet{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
}

func ParseCSV(r io.Reader) (Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return Sheet{}, fmt.Errorf("read csv: %w", err)
	}
	return fromRows(rows), nil
}

// ParseXLSX reads the first worksheet of a workbook.
func ParseXLSX(r io.Reader) (Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Sheet{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Sheet{}, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Sheet{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return fromRows(rows), nil
}

func fromRows(rows [][]string) Sheet {
	var sheet Sheet
	if len(rows) == 0 {
		return sheet
	}
	fields := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		fields[i] = aliases[fold(h)]
	}
	for i, cells := range rows[1:] {
		line := i + 2
		rec := domain.Record{}
		for col, cell := range cells {
			if col >= len(fields) || fields[col] == "" {
				continue
			}
			if v, ok := cellValue(fields[col], cell); ok {
				rec[fields[col]] = v
			}
		}
		if len(rec) == 0 {
			continue
		}
		if !rec.Present(domain.FieldEmail) && !rec.Present(domain.FieldLinkedinURL) {
			sheet.Skipped = append(sheet.Skipped, domain.RowError{Row: line, Message: domain.ErrNoIdentifier.Error()})
			continue
		}
		sheet.Rows = append(sheet.Rows, Row{Line: line, Record: rec})
	}
	return sheet
}

func cellValue(field, cell string) (any, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, false
	}
	switch {
	case listFields[field]:
		parts := SplitList(cell)
		if len(parts) == 0 {
			return nil, false
		}
		return parts, true
	case field == "linkedinConnections":
		n, err := strconv.Atoi(strings.TrimSuffix(strings.ReplaceAll(cell, ",", ""), "+"))
		if err != nil {
			return nil, false
		}
		return float64(n), true
	case field == "openToWork":
		switch strings.ToLower(cell) {
		case "yes", "y", "true", "1", "open":
			return true, true
		}
		return false, true
	}
	return cell, true
}

// SplitList splits a cell on commas, semicolons and pipes, dropping blanks.
func SplitList(s string) []any {
	var out []any
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '|' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fold(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
