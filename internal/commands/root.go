package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/equitax/internal/buildinfo"
	"github.com/cleared-dev/equitax/internal/config"
	"github.com/cleared-dev/equitax/internal/gitops"
	"github.com/cleared-dev/equitax/internal/logging"
	"github.com/cleared-dev/equitax/internal/runlog"
)

const dateFormat = "2006-01-02"

// skipConfig marks commands that run before any config exists.
const skipConfig = "skip-config"

// app carries what every subcommand needs once the root has loaded config.
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log zerolog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{log: logging.Nop()}

	rootCmd := &cobra.Command{
		Use:     "equitax",
		Short:   "Average-cost capital gains for foreign-priced shares",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			return a.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./"+config.FileName+" if present)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error, disabled")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newExtractCommand(a))
	rootCmd.AddCommand(newMergeCommand(a))
	rootCmd.AddCommand(newProcessCommand(a))
	rootCmd.AddCommand(newShowCommand(a))
	rootCmd.AddCommand(newRatesCommand(a))

	return rootCmd
}

func (a *app) load(cmd *cobra.Command) error {
	path := a.configPath
	if path == "" {
		path = config.FileName
	}

	cfg, err := config.Load(path)
	switch {
	case err == nil:
	case a.configPath == "" && errors.Is(err, fs.ErrNotExist):
		cfg = config.Default()
	default:
		return err
	}

	if err := cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("applying environment: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	a.cfg = cfg
	a.log = logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Out:    cmd.ErrOrStderr(),
	})
	a.log.Debug().Str("config", path).Str("rates", cfg.Rates.Source).Msg("Loaded config")
	return nil
}

// audit appends one run to the audit log. Failing to write it only warns.
func (a *app) audit(command, input, output string, records int, runErr error) {
	if a.cfg == nil || a.cfg.Audit.Path == "" {
		return
	}
	e := runlog.Entry{
		Timestamp: time.Now(),
		RunID:     runlog.NewRunID(),
		Command:   command,
		Input:     input,
		Output:    output,
		Records:   records,
		Status:    runlog.StatusOK,
	}
	if runErr != nil {
		e.Status = runlog.StatusFailed
		e.Details = runErr.Error()
	}
	if err := runlog.Append(a.cfg.Path(a.cfg.Audit.Path), []runlog.Entry{e}); err != nil {
		a.log.Warn().Err(err).Msg("Failed to write run log")
	}
}

// commit records paths and the audit log in git when the project directory
// is a repository and auto_commit is on. Failing to commit only warns.
func (a *app) commit(ctx context.Context, message string, paths ...string) {
	if a.cfg == nil || !a.cfg.Git.AutoCommit || a.cfg.Dir() == "" {
		return
	}
	dir, err := filepath.Abs(a.cfg.Dir())
	if err != nil || !gitops.IsRepo(dir) || !gitops.Available() {
		return
	}
	if a.cfg.Audit.Path != "" {
		paths = append(paths, a.cfg.Path(a.cfg.Audit.Path))
	}
	for i, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			paths[i] = abs
		}
	}

	author := gitops.Author{Name: a.cfg.Git.AuthorName, Email: a.cfg.Git.AuthorEmail}
	hash, err := gitops.Commit(ctx, dir, message, author, paths...)
	if err != nil {
		a.log.Warn().Err(err).Msg("Failed to commit outputs")
		return
	}
	if hash != "" {
		a.log.Info().Str("commit", hash).Msg("Committed outputs")
	}
}
