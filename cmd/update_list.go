package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halvden/comicfetch/internal/store"
)

var updateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tracked series",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		st, err := store.Load(cfg.UpdateFile)
		if err != nil {
			return err
		}

		records := st.Records()
		if len(records) == 0 {
			fmt.Println("No tracked series.")
			return nil
		}

		for _, r := range records {
			last := r.LastIssue
			if last == "" {
				last = "-"
			}
			fmt.Printf("%-40s %-10s last issue: %s\n", r.Name, r.Source, last)
		}

		return nil
	},
}

func init() {
	updateCmd.AddCommand(updateListCmd)
}
