package cmd

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/halvden/comicfetch/internal/store"
)

var updateRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Stop tracking a series",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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
			return fmt.Errorf("no tracked series")
		}

		var target store.Record
		found := false

		if len(args) == 1 {
			for _, r := range records {
				if r.Name == args[0] || r.SeriesID == args[0] {
					target = r
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("series '%s' is not tracked", args[0])
			}
		} else {
			items := make([]string, len(records))
			for i, r := range records {
				items[i] = fmt.Sprintf("%s  (%s)", r.Name, r.Source)
			}

			prompt := promptui.Select{
				Label: "Select series to remove",
				Items: items,
			}

			idx, _, err := prompt.Run()
			if err != nil {
				return fmt.Errorf("selection cancelled")
			}
			target = records[idx]
		}

		st.Remove(target.Source, target.SeriesID)
		if err := st.Save(); err != nil {
			return err
		}

		fmt.Println("Removed:", target.Name)
		return nil
	},
}

func init() {
	updateCmd.AddCommand(updateRemoveCmd)
}
