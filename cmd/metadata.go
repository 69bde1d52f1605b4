package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/halvden/comicfetch/internal/source"
	"github.com/halvden/comicfetch/internal/ui"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata [urls...]",
	Short: "Print issue metadata as JSON without downloading pages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logSvc := ui.NewLogger(cfg.Debug)

		client, err := newClient(cfg, logSvc)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		anyFailed := false

		for _, rawURL := range args {
			src, err := source.FromURL(rawURL)
			if err != nil {
				logSvc.Errorf("%s: %v\n", rawURL, err)
				anyFailed = true
				continue
			}
			sess := newSession(client, cfg, src.Name())

			id, err := src.ResolveURL(rawURL)
			if err != nil {
				logSvc.Errorf("%s: %v\n", rawURL, err)
				anyFailed = true
				continue
			}

			ids := []source.ComicID{id}
			if id.Type == source.TypeSeries {
				refs, err := src.ListIssues(ctx, sess, id)
				if err != nil {
					logSvc.Errorf("%s: %v\n", rawURL, err)
					anyFailed = true
					continue
				}
				ids = ids[:0]
				for _, ref := range refs {
					ids = append(ids, ref.ID)
				}
			}

			for _, issueID := range ids {
				meta, err := src.Metadata(ctx, sess, issueID)
				if err != nil {
					logSvc.Errorf("%s: %v\n", issueID, err)
					anyFailed = true
					continue
				}
				doc, err := meta.JSON()
				if err != nil {
					return err
				}
				fmt.Println(string(doc))
			}
		}

		if anyFailed {
			return fmt.Errorf("some metadata lookups failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metadataCmd)
}
