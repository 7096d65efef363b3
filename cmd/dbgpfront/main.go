// Command dbgpfront is a terminal DBGp debugger front-end: it listens
// for one Xdebug-speaking debuggee at a time, renders its call stack
// and annotated source, and drives it with step/run commands. See
// spec §6.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/dbgpfront/internal/config"
	"github.com/marmos91/dbgpfront/internal/logger"
	"github.com/marmos91/dbgpfront/internal/session"
	"github.com/marmos91/dbgpfront/internal/ui"
)

var (
	listenAddr    string
	logPath       string
	supervisedCmd []string
)

var rootCmd = &cobra.Command{
	Use:   "dbgpfront",
	Short: "Terminal front-end for the DBGp debugger protocol",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&listenAddr, "listen", "", "address the DBGp listener binds to (default 0.0.0.0:9003)")
	rootCmd.Flags().StringVar(&logPath, "log", "", "path to a trace log sink (default: stderr)")
	rootCmd.Flags().StringArrayVar(&supervisedCmd, "cmd", nil, "supervised program (and args) to launch once connected")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dbgpfront: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if logPath != "" {
		cfg.LogPath = logPath
	}
	if len(supervisedCmd) > 0 {
		cfg.SupervisedCmd = supervisedCmd
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logOutput := "stderr"
	if cfg.LogPath != "" {
		logOutput = cfg.LogPath
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Output: logOutput}); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	renderer := ui.NewTextDump(os.Stdout)
	s := session.New(cfg, renderer, os.Stdin)

	logger.Info("dbgpfront starting", "listen", cfg.Listen)
	return s.Run(ctx)
}
