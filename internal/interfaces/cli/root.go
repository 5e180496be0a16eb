// Package cli implements the chemsight command line. Commands run the
// analysis pipeline in-process by default, or against a running API server
// when --server is given.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/ChemSight/internal/application/analysis"
	"github.com/turtacn/ChemSight/internal/config"
	"github.com/turtacn/ChemSight/internal/infrastructure/external/llm"
	"github.com/turtacn/ChemSight/internal/infrastructure/external/pubchem"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/internal/intelligence/chem_extractor"
	"github.com/turtacn/ChemSight/pkg/client"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Analyzer is what the commands need from either backend. Both
// *analysis.Service (through localAnalyzer) and *client.CompoundsClient
// satisfy it.
type Analyzer interface {
	Analyze(ctx context.Context, query string) (*chemical.ChemicalResult, error)
	AnalyzeSMILES(ctx context.Context, smiles, name string) (*chemical.ChemicalResult, error)
	Measure(ctx context.Context, req *chemical.MeasureRequest) (*chemical.Measurement, error)
	ValidateSMILES(ctx context.Context, smiles string) (*chemical.ValidateSMILESResponse, error)
	Search(ctx context.Context, text string, limit int) (*chemical.SearchResponse, error)
	Similar(ctx context.Context, smiles string, k int) (*chemical.SearchResponse, error)
}

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	EnvFile      string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	Offline      bool
	Timeout      time.Duration
	ServerAddr   string
}

// CLIContext carries initialised dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	Timeout      time.Duration

	opts     *RootOptions
	analyzer Analyzer
}

// Analyzer builds the backend on first use, so commands that never analyse
// (version, migrate) do not pay for it.
func (c *CLIContext) Analyzer() (Analyzer, error) {
	if c.analyzer != nil {
		return c.analyzer, nil
	}
	if c.opts.ServerAddr != "" {
		cl, err := client.NewClient(c.opts.ServerAddr, client.WithTimeout(c.Timeout))
		if err != nil {
			return nil, err
		}
		c.analyzer = cl.Compounds()
		return c.analyzer, nil
	}
	c.analyzer = &localAnalyzer{newLocalService(c.Config, c.Logger, c.opts.Offline)}
	return c.analyzer, nil
}

// localAnalyzer adapts the in-process service to Analyzer.
type localAnalyzer struct {
	*analysis.Service
}

func (l *localAnalyzer) ValidateSMILES(_ context.Context, smiles string) (*chemical.ValidateSMILESResponse, error) {
	return l.Service.ValidateSMILES(smiles), nil
}

// newLocalService wires the pipeline with the built-in dictionary and, unless
// offline, the PubChem resolver and the language model fallback.
func newLocalService(cfg *config.Config, log logging.Logger, offline bool) *analysis.Service {
	dict := chem_extractor.DefaultDictionary()
	resolverOpts := []chem_extractor.ResolverOption{chem_extractor.WithResolverLogger(log)}
	opts := []analysis.Option{analysis.WithLogger(log)}

	var fallback chem_extractor.EntityExtractor
	if !offline {
		if cfg.PubChem.Enabled {
			resolverOpts = append(resolverOpts, chem_extractor.WithPubChem(pubchem.NewClient(cfg.PubChem, log)))
		}
		if lc := llm.NewClient(cfg.LLM, log); lc.Enabled() {
			fallback = chem_extractor.NewLLMExtractor(lc, log)
			opts = append(opts, analysis.WithCompleter(lc))
		}
	}

	extractor := chem_extractor.NewExtractor(dict, fallback, chem_extractor.DefaultExtractorConfig(), log)
	resolver := chem_extractor.NewResolver(dict, chem_extractor.ResolverConfigFrom(cfg.Analysis), resolverOpts...)
	acfg := analysis.ConfigFrom(cfg.Analysis, cfg.Milvus.FingerprintDim)
	acfg.InlineStructures = true
	return analysis.NewService(extractor, resolver, dict, acfg, opts...)
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "chemsight",
		Short: "ChemSight CLI: chemical names to structures, properties and geometry",
		Long: "ChemSight resolves chemical names, SMILES, CAS numbers and formulas to\n" +
			"structures and reports their formula, weight, drug-likeness and bond geometry.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: environment only)")
	pf.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before the config")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&opts.Offline, "offline", false, "resolve with the built-in dictionary only")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-command timeout")
	pf.StringVar(&opts.ServerAddr, "server", "", "API server base URL; analyse remotely when set")

	cmd.AddCommand(
		newAnalyzeCmd(),
		newMeasureCmd(),
		newValidateCmd(),
		newCompoundsCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	switch strings.ToLower(opts.OutputFormat) {
	case "text", "json", "table":
	default:
		return errors.InvalidParam(fmt.Sprintf("unknown output format %q", opts.OutputFormat))
	}

	if opts.EnvFile != "" {
		if err := config.LoadDotEnv(opts.EnvFile); err != nil {
			return err
		}
	}
	cfg, err := config.LoadAuto(opts.ConfigPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeBadRequest, "config initialization failed")
	}

	level := strings.ToLower(opts.LogLevel)
	if opts.Verbose {
		level = logging.LevelDebug
	}
	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return err
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: strings.ToLower(opts.OutputFormat),
		Timeout:      opts.Timeout,
		opts:         opts,
	}
	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

// GetCLIContext extracts the CLIContext stored by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.Internal("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.Internal("CLIContext not found in command context")
	}
	return cliCtx, nil
}

// commandContext returns the command context bounded by --timeout.
func commandContext(cmd *cobra.Command, cliCtx *CLIContext) (context.Context, context.CancelFunc) {
	if cliCtx.Timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), cliCtx.Timeout)
}

// Execute runs the root command, printing any error to stderr.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		PrintError(rootCmd.ErrOrStderr(), err)
		return err
	}
	return nil
}

// tableData is implemented by views that render as a table.
type tableData interface {
	TableHeaders() []string
	TableRows() [][]string
}

// textData is implemented by views with a human-readable rendering.
type textData interface {
	Text() string
}

// PrintResult writes v in the selected output format. json marshals data;
// the other formats use view.
func PrintResult(cmd *cobra.Command, data interface{}, view interface{}) error {
	format := "text"
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = cliCtx.OutputFormat
	}
	out := cmd.OutOrStdout()

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	if format == "table" {
		if td, ok := view.(tableData); ok {
			_, err := fmt.Fprint(out, FormatTable(td.TableHeaders(), td.TableRows()))
			return err
		}
	}
	if tx, ok := view.(textData); ok {
		_, err := fmt.Fprint(out, tx.Text())
		return err
	}
	_, err := fmt.Fprintf(out, "%+v\n", data)
	return err
}

// PrintError writes a one-line error, preferring the API detail when the
// error came from the server.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		fmt.Fprintf(w, "Error: %s: %s\n", apiErr.Message, apiErr.Detail)
		return
	}
	fmt.Fprintf(w, "Error: %s\n", err.Error())
}

// FormatTable renders headers and rows as an aligned ASCII table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if len(row[i]) > colWidths[i] {
				colWidths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells func(i int) string) {
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(padRight(cells(i), colWidths[i]))
		}
		sb.WriteString("\n")
	}

	writeRow(func(i int) string { return headers[i] })
	writeRow(func(i int) string { return strings.Repeat("-", colWidths[i]) })
	for _, row := range rows {
		row := row
		writeRow(func(i int) string {
			if i < len(row) {
				return row[i]
			}
			return ""
		})
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
