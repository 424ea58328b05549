package itemcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validItem = `
item = {
    responses = {
        R1 = { base_type = "integer" },
        R2 = { base_type = "string" },
    },
}

function item.init(vars)
    vars.SCORE = 0
end
`

func writeItem(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.lua")
	if err := os.WriteFile(path, []byte(source), 0o600); err != nil {
		t.Fatalf("write item script: %v", err)
	}
	return path
}

func TestParseConfig(t *testing.T) {
	path := writeItem(t, validItem)

	fs := flag.NewFlagSet("itemcheck", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-item", path, "-json"})
	if err != nil {
		t.Fatalf("ParseConfig() error: %v", err)
	}
	if cfg.ItemPath != path || !cfg.JSON {
		t.Fatalf("ParseConfig() = %+v", cfg)
	}
}

func TestParseConfigPositionalPath(t *testing.T) {
	path := writeItem(t, validItem)

	fs := flag.NewFlagSet("itemcheck", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{path})
	if err != nil {
		t.Fatalf("ParseConfig() error: %v", err)
	}
	if cfg.ItemPath != path {
		t.Fatalf("ParseConfig() item path = %q, want %q", cfg.ItemPath, path)
	}
}

func TestParseConfigRequiresPath(t *testing.T) {
	fs := flag.NewFlagSet("itemcheck", flag.ContinueOnError)
	if _, err := ParseConfig(fs, nil); err == nil {
		t.Fatal("ParseConfig() without path succeeded, want error")
	}
}

func TestRunReportsDeclarations(t *testing.T) {
	path := writeItem(t, validItem)

	var out bytes.Buffer
	err := Run(context.Background(), Config{ItemPath: path}, &out)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	report := out.String()
	if !strings.Contains(report, "item sample: ok") {
		t.Fatalf("Run() output = %q", report)
	}
	if !strings.Contains(report, "response R1: integer") || !strings.Contains(report, "response R2: string") {
		t.Fatalf("Run() output missing declarations: %q", report)
	}
}

func TestRunJSONReport(t *testing.T) {
	path := writeItem(t, validItem)

	var out bytes.Buffer
	err := Run(context.Background(), Config{ItemPath: path, JSON: true}, &out)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	var report Report
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report.Item != "sample" || report.Declarations["R1"] != "integer" {
		t.Fatalf("Run() report = %+v", report)
	}
	if report.AutoClosed {
		t.Fatal("Run() report marks open item as auto-closed")
	}
}

func TestRunRejectsBrokenScript(t *testing.T) {
	path := writeItem(t, "item = nil")

	err := Run(context.Background(), Config{ItemPath: path}, nil)
	if err == nil {
		t.Fatal("Run() on broken script succeeded, want error")
	}
}

func TestRunMissingFile(t *testing.T) {
	err := Run(context.Background(), Config{ItemPath: filepath.Join(t.TempDir(), "missing.lua")}, nil)
	if err == nil {
		t.Fatal("Run() on missing file succeeded, want error")
	}
}
