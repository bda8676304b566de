package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var (
	config  = "./config/orchestrator.yaml"
	rootCmd = &cobra.Command{
		Use:   "settle-orchestrator",
		Short: "Delegated settlement orchestrator CLI",
		Long: `CLI to run and interact with the delegated settlement orchestrator.
Each sub command can be use for a single service

Such as "settle-orchestrator run" or "settle-orchestrator status" and so on
`,
	}
)

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&config, "config", "c", "config/orchestrator.yaml", "Path to config file")
}
