package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halvden/comicfetch/internal/config"
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := config.Path()
		if err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}

		if err := config.SaveYAML(config.DefaultConfig(), path); err != nil {
			return err
		}

		fmt.Println("Created config at:", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}
