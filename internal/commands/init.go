package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/equitax/internal/config"
	"github.com/cleared-dev/equitax/internal/fxrate"
	"github.com/cleared-dev/equitax/internal/gitops"
)

func newInitCommand() *cobra.Command {
	var force, useGit bool
	var source string

	cmd := &cobra.Command{
		Use:         "init [directory]",
		Short:       "Write a default " + config.FileName,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.Context(), cmd.OutOrStdout(), absDir, source, force, useGit)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	cmd.Flags().StringVar(&source, "rates", config.SourcePTAX, "rate source: ptax, table or store")
	cmd.Flags().BoolVar(&useGit, "git", false, "initialize a git repository and commit the config")

	return cmd
}

func runInit(ctx context.Context, out io.Writer, dir, source string, force, useGit bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to replace it)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	cfg := config.Default()
	cfg.Rates.Source = source
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	written := []string{path}

	// A table source needs a file to fill in by hand.
	if source == config.SourceTable {
		tablePath := filepath.Join(dir, cfg.Rates.TablePath)
		if _, err := os.Stat(tablePath); errors.Is(err, fs.ErrNotExist) {
			if err := os.WriteFile(tablePath, []byte(fxrate.TableHeader+"\n"), 0o644); err != nil {
				return fmt.Errorf("writing rate table: %w", err)
			}
			written = append(written, tablePath)
		}
	}

	if useGit {
		if !gitops.Available() {
			return fmt.Errorf("--git: git is not installed")
		}
		if !gitops.IsRepo(dir) {
			if err := gitops.Init(ctx, dir); err != nil {
				return err
			}
		}
		author := gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}
		if _, err := gitops.Commit(ctx, dir, "init: equitax project", author, written...); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Initialized equitax project at %s\n", dir)
	return nil
}
