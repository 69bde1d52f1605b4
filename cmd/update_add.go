package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/halvden/comicfetch/internal/source"
	"github.com/halvden/comicfetch/internal/store"
	"github.com/halvden/comicfetch/internal/ui"
)

var updateAddCmd = &cobra.Command{
	Use:   "add [urls...]",
	Short: "Start tracking one or more series for new issues",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logSvc := ui.NewLogger(cfg.Debug)

		st, err := store.Load(cfg.UpdateFile)
		if err != nil {
			return err
		}

		client, err := newClient(cfg, logSvc)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		for _, rawURL := range args {
			src, err := source.FromURL(rawURL)
			if err != nil {
				logSvc.Errorf("%s: %v\n", rawURL, err)
				continue
			}

			id, err := src.ResolveURL(rawURL)
			if err != nil {
				logSvc.Errorf("%s: %v\n", rawURL, err)
				continue
			}
			if id.Type != source.TypeSeries {
				logSvc.Warnf("%s is not a series, not adding\n", rawURL)
				continue
			}

			sess := newSession(client, cfg, src.Name())
			rec := store.Record{Source: src.Name(), SeriesID: id.ID, URL: rawURL}
			if info, err := src.SeriesInfo(ctx, sess, id); err == nil {
				rec.Name = info.Name
				rec.Ended = info.Ended
			}

			if st.Add(rec) {
				logSvc.Infof("Added %s\n", rec.Name)
			} else {
				logSvc.Infof("%s is already tracked\n", rec.Name)
			}
		}

		return st.Save()
	},
}

func init() {
	updateCmd.AddCommand(updateAddCmd)
}
