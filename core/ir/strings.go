package ir

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// LastLineTag marks a line that immediately precedes an option set in
// the same block. Dialogue views use it to keep the line on screen
// while options are shown.
const LastLineTag = "lastline"

// StringInfo is one localizable line: its source text with positional
// {0}, {1}, ... placeholders, where it came from, and its hashtag
// metadata.
type StringInfo struct {
	Text       string
	NodeName   string
	LineNumber int
	FileName   string
	Metadata   []string
}

// HasTag reports whether the metadata list carries tag.
func (s StringInfo) HasTag(tag string) bool {
	return slices.Contains(s.Metadata, tag)
}

// StringTable maps line ids to their StringInfo. It is produced by the
// compiler and handed to the caller; the VM only ever refers to line
// ids.
type StringTable map[string]StringInfo

// IDs returns all line ids in sorted order.
func (t StringTable) IDs() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var csvHeader = []string{"id", "text", "file", "node", "line_number", "metadata"}

// WriteCSV serializes the table with one row per line id, sorted by id.
func (t StringTable) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, id := range t.IDs() {
		info := t[id]
		row := []string{
			id,
			info.Text,
			info.FileName,
			info.NodeName,
			strconv.Itoa(info.LineNumber),
			strings.Join(info.Metadata, ";"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a table previously written by WriteCSV.
func ReadCSV(r io.Reader) (StringTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading string table header: %w", err)
	}
	if !slices.Equal(header, csvHeader) {
		return nil, fmt.Errorf("unexpected string table header %v", header)
	}
	table := make(StringTable)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading string table row: %w", err)
		}
		lineNumber, err := strconv.Atoi(row[4])
		if err != nil {
			return nil, fmt.Errorf("string table row %q: bad line number: %w", row[0], err)
		}
		var metadata []string
		if row[5] != "" {
			metadata = strings.Split(row[5], ";")
		}
		table[row[0]] = StringInfo{
			Text:       row[1],
			FileName:   row[2],
			NodeName:   row[3],
			LineNumber: lineNumber,
			Metadata:   metadata,
		}
	}
	return table, nil
}
