// Package csvrecord converts delimited records into JSON, one line at a
// time.
package csvrecord

import (
	"encoding/csv"
	"encoding/json"
	"strings"
)

// extraKey names columns beyond the configured header.
const extraKey = "_extra"

// Options configures a Parser.
type Options struct {
	// Header gives the column names.  When empty, each line produces an
	// array of columns; otherwise an array of (name, value) pairs, which
	// keeps duplicate names intact.
	Header []string

	// Comma is the field delimiter; zero means ','.
	Comma rune
}

// Parser implements the multiparse.Parser contract for delimited records.
// The configuration is fixed at construction, so it is safe for concurrent
// use.
type Parser struct {
	header []string
	comma  rune
}

// New builds a CSV parser.
func New(opts Options) *Parser {
	comma := opts.Comma
	if comma == 0 {
		comma = ','
	}
	return &Parser{header: opts.Header, comma: comma}
}

func (p *Parser) Name() string { return "csv" }

func (p *Parser) Description() string {
	return "CSV -> JSONL (stateless per-line; optional header for named columns)"
}

type arrayRecord struct {
	Cols []string `json:"cols"`
	Raw  string   `json:"raw"`
}

type pairsRecord struct {
	Cols [][2]string `json:"cols"`
	Raw  string      `json:"raw"`
}

// AppendLine parses one delimited line and appends the serialized record to
// dst.  Blank lines and lines that are not valid CSV are declined.
func (p *Parser) AppendLine(dst []byte, line string) ([]byte, bool) {
	if strings.TrimSpace(line) == "" {
		return dst, false
	}
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = p.comma
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		return dst, false
	}

	var rec any
	if len(p.header) > 0 {
		pairs := make([][2]string, len(fields))
		for i, val := range fields {
			key := extraKey
			if i < len(p.header) {
				key = p.header[i]
			}
			pairs[i] = [2]string{key, val}
		}
		rec = pairsRecord{Cols: pairs, Raw: line}
	} else {
		rec = arrayRecord{Cols: fields, Raw: line}
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return dst, false
	}
	return append(dst, buf...), true
}

// ParseHeader splits a comma-separated header specification into column
// names, dropping blank entries.
func ParseHeader(spec string) []string {
	var header []string
	for _, name := range strings.Split(spec, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			header = append(header, name)
		}
	}
	return header
}

// ParseComma interprets a delimiter specification, accepting the literal
// spelling `\t` for a tab.  An empty specification means ','.
func ParseComma(spec string) rune {
	if spec == `\t` {
		return '\t'
	}
	for _, r := range spec {
		return r
	}
	return ','
}
