// Package csvio reads and writes the semicolon-delimited cellar exchange format.
package csvio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mycellarapp/cellar-server/internal/domain"
)

// Delimiter separates fields in every file this package handles.
const Delimiter = ';'

// Column headers, in file order.
var (
	WineHeaders        = []string{"Name", "Producer", "Year", "Region", "Color", "Location", "DrinkingWindowStartYear", "DrinkingWindowEndYear"}
	ExperiencedHeaders = append(append([]string{}, WineHeaders...), "ConsumedAt", "Rating", "TastingNotes")
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Row is one data line keyed by lowercased header.
type Row struct {
	Line   int
	Fields map[string]string
}

// Get returns the trimmed value for header, matched case-insensitively.
func (r Row) Get(header string) string {
	return r.Fields[strings.ToLower(header)]
}

// WineInput maps the row onto wine input. cellarID is applied when the file
// does not carry one.
func (r Row) WineInput(cellarID string) domain.WineInput {
	in := domain.WineInput{
		Name:                    r.Get("name"),
		Producer:                r.Get("producer"),
		Year:                    r.Get("year"),
		Region:                  r.Get("region"),
		Color:                   r.Get("color"),
		Location:                r.Get("location"),
		DrinkingWindowStartYear: r.Get("drinkingwindowstartyear"),
		DrinkingWindowEndYear:   r.Get("drinkingwindowendyear"),
		CellarID:                r.Get("cellarid"),
	}
	if in.CellarID == "" {
		in.CellarID = cellarID
	}
	if notes := r.Get("notes"); notes != "" {
		in.Notes = &notes
	}
	return in
}

// Parse reads a header row followed by data rows. A leading byte order mark
// is dropped, blank lines are skipped and every value is trimmed. A file with
// fewer than two lines yields no headers and no rows.
func Parse(r io.Reader) ([]string, []Row, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(bom)); err == nil && bytes.Equal(head, bom) {
		_, _ = br.Discard(len(bom))
	}

	cr := csv.NewReader(br)
	cr.Comma = Delimiter
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	record, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	headers := make([]string, len(record))
	for i, h := range record {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row: %w", err)
		}
		if blank(record) {
			continue
		}
		line, _ := cr.FieldPos(0)
		row := Row{Line: line, Fields: make(map[string]string, len(headers))}
		for i, h := range headers {
			if i < len(record) {
				row.Fields[h] = strings.TrimSpace(record[i])
			} else {
				row.Fields[h] = ""
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return headers, nil, nil
	}
	return headers, rows, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Escape quotes a field when it contains a delimiter, comma, quote or newline.
func Escape(field string) string {
	if strings.ContainsAny(field, ";,\"\n") {
		return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	return field
}

func writeLine(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(Delimiter)
		}
		w.WriteString(Escape(f))
	}
}

func wineFields(w *domain.Wine) []string {
	return []string{
		w.Name,
		w.Producer,
		domain.FormatYear(w.Year),
		w.Region,
		string(w.Color),
		w.Location,
		domain.FormatYear(w.DrinkingWindowStartYear),
		domain.FormatYear(w.DrinkingWindowEndYear),
	}
}

// WriteWines writes the header row and one line per wine. Lines are joined
// with "\n" and the file has no trailing newline.
func WriteWines(out io.Writer, wines []domain.Wine) error {
	w := bufio.NewWriter(out)
	writeLine(w, WineHeaders)
	for i := range wines {
		w.WriteByte('\n')
		writeLine(w, wineFields(&wines[i]))
	}
	return w.Flush()
}

// WriteExperienced writes experienced wines with ConsumedAt as a UTC date.
func WriteExperienced(out io.Writer, wines []domain.ExperiencedWine) error {
	w := bufio.NewWriter(out)
	writeLine(w, ExperiencedHeaders)
	for i := range wines {
		e := &wines[i]
		consumed := ""
		if !e.ConsumedAt.IsZero() {
			consumed = e.ConsumedAt.UTC().Format(time.DateOnly)
		}
		fields := append(wineFields(&e.Wine), consumed, strconv.Itoa(e.Rating), e.TastingNotes)
		w.WriteByte('\n')
		writeLine(w, fields)
	}
	return w.Flush()
}

// FileName is the download name for an export taken at now.
func FileName(base string, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", base, now.UTC().Format(time.DateOnly))
}

// ReadLocationMapping reads "location,cellarId" lines. Both sides are trimmed
// and lowercased; lines missing either side are ignored.
func ReadLocationMapping(r io.Reader) (map[string]string, error) {
	mapping := make(map[string]string)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		parts := strings.Split(sc.Text(), ",")
		if len(parts) < 2 {
			continue
		}
		loc := strings.ToLower(strings.TrimSpace(parts[0]))
		cellar := strings.ToLower(strings.TrimSpace(parts[1]))
		if loc != "" && cellar != "" {
			mapping[loc] = cellar
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	return mapping, nil
}
