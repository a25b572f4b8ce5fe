package csvrecord

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestAppendLineArrays(t *testing.T) {
	p := New(Options{})
	out, ok := p.AppendLine(nil, "1,2,3")
	if !ok {
		t.Fatal("expected a record")
	}
	var rec struct {
		Cols []string `json:"cols"`
		Raw  string   `json:"raw"`
	}
	if err := json.Unmarshal(out, &rec); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if !reflect.DeepEqual(rec.Cols, []string{"1", "2", "3"}) {
		t.Errorf("expected cols [1 2 3], got %v", rec.Cols)
	}
	if rec.Raw != "1,2,3" {
		t.Errorf("expected raw %q, got %q", "1,2,3", rec.Raw)
	}
}

func TestAppendLinePairs(t *testing.T) {
	tests := []struct {
		name     string
		header   []string
		line     string
		expected [][2]string
	}{
		{
			name:     "header matches columns",
			header:   []string{"a", "b", "c"},
			line:     "1,2,3",
			expected: [][2]string{{"a", "1"}, {"b", "2"}, {"c", "3"}},
		},
		{
			name:     "extra columns",
			header:   []string{"a"},
			line:     "1,2",
			expected: [][2]string{{"a", "1"}, {"_extra", "2"}},
		},
		{
			name:     "missing columns",
			header:   []string{"a", "b"},
			line:     "1",
			expected: [][2]string{{"a", "1"}},
		},
		{
			name:     "quoted field with delimiter",
			header:   []string{"a", "b"},
			line:     `"1,5",2`,
			expected: [][2]string{{"a", "1,5"}, {"b", "2"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Options{Header: tt.header})
			out, ok := p.AppendLine(nil, tt.line)
			if !ok {
				t.Fatal("expected a record")
			}
			var rec struct {
				Cols [][2]string `json:"cols"`
				Raw  string      `json:"raw"`
			}
			if err := json.Unmarshal(out, &rec); err != nil {
				t.Fatalf("invalid JSON %q: %v", out, err)
			}
			if !reflect.DeepEqual(rec.Cols, tt.expected) {
				t.Errorf("expected cols %v, got %v", tt.expected, rec.Cols)
			}
		})
	}
}

func TestAppendLineTabDelimiter(t *testing.T) {
	p := New(Options{Comma: '\t'})
	out, ok := p.AppendLine(nil, "1\t2\t3")
	if !ok {
		t.Fatal("expected a record")
	}
	var rec struct {
		Cols []string `json:"cols"`
	}
	if err := json.Unmarshal(out, &rec); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if !reflect.DeepEqual(rec.Cols, []string{"1", "2", "3"}) {
		t.Errorf("expected cols [1 2 3], got %v", rec.Cols)
	}
}

func TestAppendLineDeclined(t *testing.T) {
	p := New(Options{})
	tests := []struct {
		name string
		line string
	}{
		{"blank", ""},
		{"whitespace only", "  \t "},
		{"unterminated quote", `"1,2`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := p.AppendLine(nil, tt.line)
			if ok {
				t.Errorf("expected line to be declined, got %q", out)
			}
		})
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		spec     string
		expected []string
	}{
		{"", nil},
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ", []string{"a", "b"}},
		{"a,,c", []string{"a", "c"}},
	}
	for _, tt := range tests {
		if got := ParseHeader(tt.spec); !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("ParseHeader(%q): expected %v, got %v", tt.spec, tt.expected, got)
		}
	}
}

func TestParseComma(t *testing.T) {
	tests := []struct {
		spec     string
		expected rune
	}{
		{"", ','},
		{",", ','},
		{";", ';'},
		{`\t`, '\t'},
	}
	for _, tt := range tests {
		if got := ParseComma(tt.spec); got != tt.expected {
			t.Errorf("ParseComma(%q): expected %q, got %q", tt.spec, tt.expected, got)
		}
	}
}
