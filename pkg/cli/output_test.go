package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

type profileRow struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Sim  float64 `json:"sim"`
}

type profileList []profileRow

func (l profileList) Header() []string { return []string{"ID", "NAME", "SIM"} }

func (l profileList) Rows() [][]string {
	var rows [][]string
	for _, p := range l {
		rows = append(rows, []string{p.ID, p.Name, fmt.Sprintf("%.2f", p.Sim)})
	}
	return rows
}

var sample = profileList{
	{ID: "u1", Name: "Alice", Sim: 0.91},
	{ID: "u2", Name: "Bob", Sim: 0.5},
}

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(sample, OutputOptions{Format: FormatJSON, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	var result []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if len(result) != 2 || result[0]["name"] != "Alice" {
		t.Errorf("result = %v", result)
	}
}

func TestOutput_YAMLIsDefault(t *testing.T) {
	for _, f := range []OutputFormat{FormatYAML, ""} {
		var buf bytes.Buffer
		if err := Output(map[string]string{"key": "value"}, OutputOptions{Format: f, Writer: &buf}); err != nil {
			t.Fatalf("Output error: %v", err)
		}
		if !strings.Contains(buf.String(), "key: value") {
			t.Errorf("format %q: got %s", f, buf.String())
		}
	}
}

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(sample, OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ID", "NAME", "Alice", "Bob", "╭"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestOutput_TableNeedsTabular(t *testing.T) {
	err := Output(map[string]int{"a": 1}, OutputOptions{Format: FormatTable, Writer: &bytes.Buffer{}})
	if err == nil {
		t.Error("table output of a map should fail")
	}
}

func TestOutput_Query(t *testing.T) {
	var buf bytes.Buffer
	err := Output(sample, OutputOptions{
		Format: FormatJSON,
		Query:  `.[] | select(.sim > 0.8) | .id`,
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != `"u1"` {
		t.Errorf("query output = %s, want \"u1\"", got)
	}
}

func TestOutput_QueryErrors(t *testing.T) {
	if err := Output(sample, OutputOptions{Query: ".[", Writer: &bytes.Buffer{}}); err == nil {
		t.Error("invalid jq expression should fail")
	}
	if err := Output(sample, OutputOptions{Query: ".[] | error(\"boom\")", Writer: &bytes.Buffer{}}); err == nil {
		t.Error("jq runtime error should fail")
	}
	if err := Output(sample, OutputOptions{Format: FormatTable, Query: ".", Writer: &bytes.Buffer{}}); err == nil {
		t.Error("table with query should fail")
	}
}

func TestOutput_UnsupportedFormat(t *testing.T) {
	if err := Output("data", OutputOptions{Format: "invalid", Writer: &bytes.Buffer{}}); err == nil {
		t.Error("Output should fail for unsupported format")
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatYAML, "json": FormatJSON, "table": FormatTable} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestRenderTableAlignsNumbers(t *testing.T) {
	out := RenderTable([]string{"NAME", "N"}, [][]string{{"a", "1"}, {"bbbb", "100"}})
	if !strings.Contains(out, "│   1 │") {
		t.Errorf("numeric column not right-aligned:\n%s", out)
	}
	if RenderTable(nil, nil) != "" {
		t.Error("empty header should render nothing")
	}
}
