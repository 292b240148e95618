// Command voiceagentd runs the voice-driven task-management assistant's
// Session Orchestrator: a single WebSocket endpoint at /agent that
// multiplexes client audio to a speech-to-text provider and an LLM-backed
// Agent Loop back to the client.
//
// Start the server:
//
//	voiceagentd serve --config voiceagent.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := &cobra.Command{
		Use:     "voiceagentd",
		Short:   "Voice-driven task-management assistant server",
		Version: fmt.Sprintf("%s (%s)", version, commit),
	}

	var configPath string
	var debug bool

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the session orchestrator and accept client connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}
	serveCmd.Flags().StringVar(&configPath, "config", os.Getenv("VOICEAGENT_CONFIG"), "path to an optional YAML config overlay")
	serveCmd.Flags().BoolVar(&debug, "debug", false, "enable debug-level logging")

	root.AddCommand(serveCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		slog.Error("voiceagentd exited with an error", "error", err)
		os.Exit(1)
	}
}
