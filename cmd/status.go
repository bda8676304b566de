package cmd

import (
	"fmt"
	"os"

	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/cluster1900/eip7702-fulldemo-sub000/model"
	"github.com/cluster1900/eip7702-fulldemo-sub000/storage"
)

var (
	statusDbPath string

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Display system status",
		Long:  `Display status information about recorded submissions in the database`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Submission Status Report\n")
			fmt.Fprintf(out, "========================\n\n")
			fmt.Fprintf(out, "Using database path: %s\n\n", statusDbPath)

			db, err := storage.NewWithPath(statusDbPath)
			if err != nil {
				fmt.Fprintf(out, "Failed to initialize database: %v\n", err)
				fmt.Fprintf(out, "Make sure the orchestrator has been started at least once\n")
				os.Exit(1)
			}
			defer db.Close()

			total, err := db.GetCounter([]byte("ct:submission"), 0)
			if err != nil {
				fmt.Fprintf(out, "Failed to read submission counter: %v\n", err)
				os.Exit(1)
			}
			pending, err := db.CountKeysByPrefix([]byte("pending:"))
			if err != nil {
				fmt.Fprintf(out, "Failed to count pending submissions: %v\n", err)
				os.Exit(1)
			}

			fmt.Fprintf(out, "Submissions recorded: %d\n", total)
			fmt.Fprintf(out, "Still pending:        %d\n\n", pending)

			kvs, err := db.GetByPrefix(model.SubmissionKeyPrefix())
			if err != nil {
				fmt.Fprintf(out, "Failed to list submissions: %v\n", err)
				os.Exit(1)
			}

			printer := pp.New()
			printer.SetOutput(out)
			printer.SetColoringEnabled(false)

			for i, item := range kvs {
				if i >= 10 {
					fmt.Fprintf(out, "... and %d more submissions\n", len(kvs)-10)
					break
				}
				sub, err := model.SubmissionFromJSON(item.Value)
				if err != nil {
					fmt.Fprintf(out, "corrupt record at %s: %v\n", item.Key, err)
					continue
				}
				printer.Println(sub)
			}
		},
	}
)

func init() {
	statusCmd.Flags().StringVar(&statusDbPath, "db", "/tmp/settlement-orchestrator", "path to the orchestrator database")
	rootCmd.AddCommand(statusCmd)
}
