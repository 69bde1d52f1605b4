package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/halvden/comicfetch/internal/sources/mangaplus"
	_ "github.com/halvden/comicfetch/internal/sources/webtoon"
)

var (
	flagIgnoreConfig bool
	flagDebug        bool
	flagUpdateFile   string
)

var rootCmd = &cobra.Command{
	Use:   "comicfetch",
	Short: "Comic downloader with CBZ output and new-issue tracking",
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagIgnoreConfig, "ignore-config", false, "ignore config and use only CLI flags")
	rootCmd.PersistentFlags().StringVar(&flagUpdateFile, "update-file", "", "path to the update tracking file")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
