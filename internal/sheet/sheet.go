// Package sheet reads the "View My Courses" export into rows.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/minjunminji/ubcxlsxtoics/internal/model"
)

const (
	ColCourseListing   = "Course Listing"
	ColSection         = "Section"
	ColInstructor      = "Instructor"
	ColMeetingPatterns = "Meeting Patterns"

	// preferredSheet is the worksheet name Workday uses for the export.
	preferredSheet = "View My Courses"

	// fallbackHeaderRow is where Workday puts the header when no row
	// names a known column.
	fallbackHeaderRow = 2
)

var ErrEmpty = errors.New("no rows found")

// MissingColumnsError lists required headers absent from the header row.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// Format is the detected input container.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// zipMagic starts every XLSX file.
var zipMagic = []byte("PK\x03\x04")

// Detect picks the format from the file name, then from content.
func Detect(name string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".csv", ".txt":
		return FormatCSV
	}
	if bytes.HasPrefix(data, zipMagic) {
		return FormatXLSX
	}
	return FormatCSV
}

// Read parses an uploaded export into rows.
func Read(name string, data []byte) ([]model.Row, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	var (
		grid [][]string
		err  error
	)
	switch Detect(name, data) {
	case FormatXLSX:
		grid, err = readXLSX(data)
	default:
		grid, err = readCSV(data)
	}
	if err != nil {
		return nil, err
	}
	return Rows(grid)
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}
	name := sheets[0]
	for _, s := range sheets {
		if strings.EqualFold(strings.TrimSpace(s), preferredSheet) {
			name = s
			break
		}
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// Rows locates the header row in grid and maps the records below it.
func Rows(grid [][]string) ([]model.Row, error) {
	if len(grid) == 0 {
		return nil, ErrEmpty
	}
	hdr := headerRow(grid)
	if hdr >= len(grid) {
		return nil, &MissingColumnsError{Missing: []string{ColMeetingPatterns, ColSection}}
	}

	idx := make(map[string]int)
	for i, cell := range grid[hdr] {
		key := strings.ToLower(strings.TrimSpace(cell))
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	col := func(name string) int {
		if i, ok := idx[strings.ToLower(name)]; ok {
			return i
		}
		return -1
	}
	course, sec, instr, pat := col(ColCourseListing), col(ColSection), col(ColInstructor), col(ColMeetingPatterns)

	var missing []string
	if pat < 0 {
		missing = append(missing, ColMeetingPatterns)
	}
	if sec < 0 && course < 0 {
		missing = append(missing, ColSection)
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}

	out := make([]model.Row, 0, len(grid)-hdr-1)
	for _, rec := range grid[hdr+1:] {
		row := model.Row{
			CourseListing:   cell(rec, course),
			Section:         cell(rec, sec),
			Instructor:      cell(rec, instr),
			MeetingPatterns: cell(rec, pat),
		}
		if row == (model.Row{}) {
			continue
		}
		if row.Section == "" {
			row.Section = row.CourseListing
		}
		out = append(out, row)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

func headerRow(grid [][]string) int {
	for _, name := range []string{ColCourseListing, ColMeetingPatterns} {
		for i, rec := range grid {
			for _, c := range rec {
				if strings.EqualFold(strings.TrimSpace(c), name) {
					return i
				}
			}
		}
	}
	return fallbackHeaderRow
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
