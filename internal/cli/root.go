// Package cli implements ragstorectl, a command line client that runs the
// retrieval engine in-process against the configured backend.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstore/internal/bootstrap"
	"github.com/kailas-cloud/ragstore/internal/config"
	logpkg "github.com/kailas-cloud/ragstore/internal/logger"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	env        string
	json       bool
	verbose    bool
}

// session is the per-invocation state built in PersistentPreRunE.
type session struct {
	opts   globalOptions
	app    *bootstrap.App
	logger *zap.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root, _ := newRoot()
	return root
}

func newRoot() (*cobra.Command, *session) {
	s := &session{}

	root := &cobra.Command{
		Use:           "ragstorectl",
		Short:         "Ingest, tag and search documents in a ragstore collection",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["offline"] == "true" {
				return nil
			}
			return s.open(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return s.close()
		},
	}

	// cmd.Print* write to the err stream unless an out stream is set.
	root.SetOut(os.Stdout)

	pf := root.PersistentFlags()
	pf.StringVarP(&s.opts.configPath, "config", "c", "", "path to a YAML config file (overrides --env)")
	pf.StringVar(&s.opts.env, "env", "", "config environment name, read from config/<env>.yaml (default $ENV or local)")
	pf.BoolVar(&s.opts.json, "json", false, "print results as JSON")
	pf.BoolVarP(&s.opts.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newIngestCmd(s),
		newAddTextCmd(s),
		newQueryCmd(s),
		newSearchCmd(s),
		newSimilarCmd(s),
		newDocumentsCmd(s),
		newTagsCmd(s),
		newDeleteSourceCmd(s),
		newRetagCmd(s),
		newVersionCmd(),
	)
	return root, s
}

// Execute runs the CLI with ctx. The engine is closed even when a command fails.
func Execute(ctx context.Context) error {
	root, s := newRoot()
	err := root.ExecuteContext(ctx)
	return errors.Join(err, s.close())
}

func (s *session) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	logger, err := logpkg.NewCLI(s.opts.verbose)
	if err != nil {
		return err
	}
	s.logger = logger

	app, err := bootstrap.New(ctx, &cfg, logger)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	s.app = app
	return nil
}

func (s *session) loadConfig() (config.Config, error) {
	if s.opts.configPath != "" {
		return config.LoadFile(s.opts.configPath)
	}
	env := s.opts.env
	if env == "" {
		env = config.GetEnv()
	}
	return config.Load(env)
}

func (s *session) close() error {
	var errs []error
	if s.app != nil {
		errs = append(errs, s.app.Close())
		s.app = nil
	}
	if s.logger != nil {
		_ = s.logger.Sync()
		s.logger = nil
	}
	return errors.Join(errs...)
}

// ctx attaches the CLI logger so use cases log through it.
func (s *session) ctx(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if s.logger != nil {
		ctx = logpkg.ContextWithLogger(ctx, s.logger)
	}
	return ctx
}
