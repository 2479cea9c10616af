package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"nbahighlights/config"
	"nbahighlights/logging"
	"nbahighlights/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every command needs once the config is loaded.
type app struct {
	loader *config.Loader
	cfg    *config.Config
	log    *zap.Logger

	runner     utils.Runner
	stdout     io.Writer
	stderr     io.Writer
	checkTools bool
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		runner:     utils.ExecRunner{},
		stdout:     stdout,
		stderr:     stderr,
		checkTools: true,
	}
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "nbahighlights",
		Short:         "Build highlight reels for NBA players",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	a.loader = config.NewLoader(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newRunCommand(a))
	rootCmd.AddCommand(newStitchCommand(a))
	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newDoctorCommand(a))
	return rootCmd
}

func (a *app) setup() error {
	cfg, err := a.loader.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, a.stderr)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	a.log.Debug("config loaded",
		zap.String("season", cfg.Season),
		zap.String("downloads_dir", cfg.DownloadsDir),
		zap.String("output_dir", cfg.OutputDir),
	)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := newRootCommand(newApp(os.Stdout, os.Stderr))
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
