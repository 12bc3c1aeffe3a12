package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "rca-worker",
	Short: "rca-worker - alert analysis gateway and worker",
	Long: `rca-worker receives monitoring alerts, analyzes them with an LLM
augmented by similar past incidents, opens tickets for confident
critical findings and notifies operators.

Subcommands:
- gateway: HTTP ingestion API (POST /api/v1/analyze ...)
- worker:  queue consumer running the analysis pipeline
- ingest:  load a runbook / document into the knowledge index
- token:   issue a gateway JWT for a collector`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// 로컬 개발용 .env (없으면 무시)
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			log.Printf("[Main] failed to load env file (path=%s): %v", envFile, err)
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading configuration")
	rootCmd.AddCommand(gatewayCmd, workerCmd, ingestCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("[Main] %v", err)
	}
}
