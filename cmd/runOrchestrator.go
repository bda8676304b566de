package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cluster1900/eip7702-fulldemo-sub000/orchestrator"
)

var (
	runOrchestratorCmd = &cobra.Command{
		Use:   "run",
		Short: "Run orchestrator",
		Long: `Initialize and run the orchestrator: builder, relayer, delegation
oracle, receipt sweeper, and the HTTP surface.

Use --config=path-to-your-config-file. default is=./config/orchestrator.yaml `,
		Run: func(cmd *cobra.Command, args []string) {
			if err := orchestrator.RunWithConfig(config); err != nil {
				fmt.Fprintf(os.Stderr, "orchestrator exited: %v\n", err)
				os.Exit(1)
			}
		},
	}
)

func init() {
	runOrchestratorCmd.Flags().StringVar(&config, "config", "./config/orchestrator.yaml", "path to orchestrator config file")
	rootCmd.AddCommand(runOrchestratorCmd)
}
