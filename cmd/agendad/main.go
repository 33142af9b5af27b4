// Agendad watches a person's daily conversation spool and turns it into
// calendar events and tasks using a multi-stage LLM pipeline.
//
// Usage:
//
//	# Run the daemon with the default config
//	agendad serve
//
//	# Process a single day and exit
//	agendad process --date 2025-01-02
//
// Configuration is loaded from an optional YAML file plus AGENDAD_*
// environment variables. Provider API keys are read from ANTHROPIC_API_KEY
// and OPENAI_API_KEY, optionally via a .env file.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agendad",
	Short: "Daemon that turns daily conversations into calendar events and tasks",
	Long: `agendad reads a spool of daily conversation exports, summarizes each
day with an LLM pipeline, extracts concrete plans and commitments, and
persists them as calendar events and tasks.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("agendad %s (commit %s, built %s)\n", version, gitCommit, buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
