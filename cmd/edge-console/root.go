package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/edge-assistant/utils/log"
)

type options struct {
	server  string
	email   string
	phase   string
	timeout time.Duration
	logFile string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "edge-console",
		Short: "Terminal client for the EDGE assistants",
		Long: `edge-console talks to an edge-assistant server from the terminal.

Examples:
  edge-console chat --email you@example.com
  edge-console chat --phase design --email you@example.com
  edge-console chat --server http://localhost:8080 --log-file console.log`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(opts.logFile)
		},
	}

	root.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:8080", "edge-assistant base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "timeout of each request")
	root.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of discarding them")

	root.AddCommand(newChatCmd(opts))
	return root
}

// setupLogging keeps log lines off the terminal the TUI draws on.
func setupLogging(path string) error {
	if path == "" {
		log.Replace(zap.NewNop())
		return nil
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	log.Replace(logger)
	return nil
}

func (o *options) endpoint(path string) string {
	return strings.TrimRight(o.server, "/") + path
}
