package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/solatis/packkeeper/internal/core/rulestore"
	"github.com/solatis/packkeeper/internal/logging"
	"github.com/solatis/packkeeper/internal/rules"
	"github.com/solatis/packkeeper/internal/types"
)

var applyCmd = &cobra.Command{
	Use:   "apply [flags] DATASET.json...",
	Short: "Apply a rule set to JSON dataset files",
	Long: `Apply evaluates a rule set against each dataset file (a JSON array of
line-item objects) and writes the mutated dataset as JSON.

With a single dataset and no --out, the result is written to stdout.
Otherwise every result is written to --out under the input's base name.
Dataset files are evaluated concurrently, bounded by --parallel.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().String("rules", "", "rule set file (YAML or JSON)")
	applyCmd.Flags().String("rule-set", "", "name of a stored rule set (requires --account)")
	applyCmd.Flags().Int("version", 0, "stored rule set revision (0 = latest)")
	applyCmd.Flags().String("account", "", "account owning the stored rule set")
	applyCmd.Flags().String("out", "", "output directory")
	applyCmd.Flags().Int("parallel", runtime.GOMAXPROCS(0), "maximum dataset files evaluated concurrently")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	rulesFile, _ := cmd.Flags().GetString("rules")
	ruleSetName, _ := cmd.Flags().GetString("rule-set")
	outDir, _ := cmd.Flags().GetString("out")
	parallel, _ := cmd.Flags().GetInt("parallel")

	var (
		rs     types.RuleSet
		record func(*rules.RunReport)
	)
	switch {
	case rulesFile != "" && ruleSetName != "":
		return fmt.Errorf("--rules and --rule-set are mutually exclusive")
	case rulesFile != "":
		rs, err = readRuleSetFile(rulesFile)
		if err != nil {
			return err
		}
	case ruleSetName != "":
		database, queries, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		store := rulestore.New(queries)
		acct, err := accountByFlag(ctx, store, cmd)
		if err != nil {
			return err
		}
		version, _ := cmd.Flags().GetInt("version")
		stored, err := store.GetRuleSet(ctx, acct.ID, ruleSetName, version)
		if err != nil {
			return err
		}
		rs = stored.RuleSet
		record = func(report *rules.RunReport) {
			if _, err := store.RecordRun(ctx, acct.ID, stored.ID, report); err != nil {
				slog.Warn("failed to record run", slog.Any("error", err))
			}
		}
	default:
		return fmt.Errorf("one of --rules or --rule-set required")
	}

	if len(args) == 1 && outDir == "" {
		report, err := applyFile(engine, rs, args[0], cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if record != nil {
			record(report)
		}
		return nil
	}
	if outDir == "" {
		return fmt.Errorf("--out required with more than one dataset")
	}

	reports, err := applyFiles(ctx, engine, rs, args, outDir, parallel)
	if err != nil {
		return err
	}
	if record != nil {
		for _, report := range reports {
			record(report)
		}
	}
	return nil
}

// applyFiles evaluates every dataset file into outDir, at most parallel at a
// time. Each file owns its dataset; the engine is shared. Reports are returned
// in input order.
func applyFiles(ctx context.Context, engine *rules.Engine, rs types.RuleSet, paths []string, outDir string, parallel int) ([]*rules.RunReport, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if parallel < 1 {
		parallel = 1
	}

	log := logging.New("apply")
	reports := make([]*rules.RunReport, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			report, err := applyFile(engine, rs, path, &buf)
			if err != nil {
				return err
			}
			target := filepath.Join(outDir, filepath.Base(path))
			if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("%s: failed to write result: %w", path, err)
			}
			reports[i] = report
			log.Info("dataset written",
				slog.String("input", path),
				slog.String("output", target),
				slog.Int("rows_in", report.RowsIn),
				slog.Int("rows_out", report.RowsOut),
				slog.Int("warnings", report.Warnings))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// applyFile evaluates one dataset file and writes the result as indented JSON.
func applyFile(engine *rules.Engine, rs types.RuleSet, path string, w io.Writer) (*rules.RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	ds := types.NewDataset()
	if err := json.Unmarshal(data, ds); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	report := engine.Run(ds, rs.Rules)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ds); err != nil {
		return nil, fmt.Errorf("%s: failed to encode result: %w", path, err)
	}
	return report, nil
}

// readRuleSetFile parses a YAML or JSON rule set file.
func readRuleSetFile(path string) (types.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.RuleSet{}, fmt.Errorf("failed to read rules: %w", err)
	}
	rs, err := rules.ParseRuleSet(data)
	if err != nil {
		return types.RuleSet{}, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}
