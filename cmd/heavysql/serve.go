package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/heavysql/internal/server"
)

var (
	serveAddr   string
	serveTables string
	serveHeavy  heavyFlags
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	Long: `Start the HTTP JSON API.

Endpoints:
  GET  /healthz
  POST /v1/analyze    heavy analysis of a draft query
  POST /v1/query      standard generation, optionally reviewed and executed
  GET  /v1/runs       recent runs
  GET  /v1/runs/{id}  one recorded analysis

The server shuts down on SIGINT, SIGTERM or 'heavysql stop'.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().StringVar(&serveTables, "tables", "", "JSON or YAML file of tables to load")
	serveHeavy.register(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	serveHeavy.apply(cfg)
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	e, err := newEnv(ctx, cfg, envOptions{tablesFile: serveTables})
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stopCancel := e.withStop(ctx)
	defer stopCancel()

	deps := server.Deps{
		Analyzer:  e.heavy,
		Generator: e.generator,
		Stop:      e.withStop,
	}
	// Typed nils must not reach the interfaces.
	if e.tables != nil {
		deps.Tables = e.tables
	}
	if e.store != nil {
		deps.Runs = e.store
	}

	srv, err := server.New(deps)
	if err != nil {
		return err
	}

	printStatus("✓", fmt.Sprintf("Listening on http://%s", cfg.Server.Addr), color.FgGreen)
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		return err
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		printStatus("✓", "Stopped: "+cause.Error(), color.FgGreen)
	}
	return nil
}
