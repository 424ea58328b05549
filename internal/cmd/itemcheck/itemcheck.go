// Package itemcheck validates item definition scripts before deployment.
package itemcheck

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/assessly/itemdelivery/internal/evaluator"
	"github.com/assessly/itemdelivery/internal/evaluator/luaeval"
	"github.com/assessly/itemdelivery/internal/platform/config"
)

// Config holds itemcheck command configuration.
type Config struct {
	// ItemPath is the item script to validate.
	ItemPath string `env:"ITEMCHECK_ITEM"`
	// JSON switches the report to machine-readable output.
	JSON bool `env:"ITEMCHECK_JSON"`
}

// ParseConfig parses environment and flags into a Config. Flags win over
// environment values.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.ItemPath, "item", cfg.ItemPath, "path to the item script to validate")
	fs.BoolVar(&cfg.JSON, "json", cfg.JSON, "emit the report as JSON")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.ItemPath) == "" && fs.NArg() > 0 {
		cfg.ItemPath = fs.Arg(0)
	}
	if strings.TrimSpace(cfg.ItemPath) == "" {
		return Config{}, fmt.Errorf("item script path is required")
	}
	return cfg, nil
}

// Report summarizes one validated item script.
type Report struct {
	Item         string            `json:"item"`
	Declarations map[string]string `json:"declarations"`
	AutoClosed   bool              `json:"auto_closed"`
}

// Run validates the item script and writes a report.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	source, err := os.ReadFile(cfg.ItemPath)
	if err != nil {
		return fmt.Errorf("read item script: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(cfg.ItemPath), filepath.Ext(cfg.ItemPath))
	item := evaluator.ItemDefinition{ID: name, Title: name, Source: string(source)}

	declarations, err := luaeval.Declarations(item)
	if err != nil {
		return fmt.Errorf("read response declarations: %w", err)
	}

	eval := luaeval.New()
	snapshot, autoClosed, err := eval.InitializeState(ctx, item)
	if err != nil {
		return fmt.Errorf("initialize item: %w", err)
	}
	if _, err := eval.ComputeResult(ctx, item, snapshot); err != nil {
		return fmt.Errorf("compute initial result: %w", err)
	}

	report := Report{Item: name, Declarations: declarations, AutoClosed: autoClosed}
	if cfg.JSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	fmt.Fprintf(out, "item %s: ok\n", name)
	identifiers := make([]string, 0, len(declarations))
	for identifier := range declarations {
		identifiers = append(identifiers, identifier)
	}
	sort.Strings(identifiers)
	for _, identifier := range identifiers {
		fmt.Fprintf(out, "  response %s: %s\n", identifier, declarations[identifier])
	}
	if autoClosed {
		fmt.Fprintln(out, "  note: item closes itself during initialization")
	}
	return nil
}
