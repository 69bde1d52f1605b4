package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/halvden/comicfetch/internal/comic"
	"github.com/halvden/comicfetch/internal/fetch"
	"github.com/halvden/comicfetch/internal/source"
	"github.com/halvden/comicfetch/internal/store"
	"github.com/halvden/comicfetch/internal/ui"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check all tracked series for new issues and download them",
	RunE:  runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logSvc := ui.NewLogger(cfg.Debug)

	format, err := comic.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	st, err := store.Load(cfg.UpdateFile)
	if err != nil {
		return err
	}

	records := st.Records()
	if len(records) == 0 {
		fmt.Println("No tracked series. Add one with `comicfetch update add <url>`.")
		return nil
	}

	client, err := newClient(cfg, logSvc)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pm := ui.NewProgressManager()

	orch := fetch.New(fetch.Options{
		OutputDir:    cfg.Output,
		Template:     cfg.Template,
		Format:       format,
		IssueWorkers: cfg.IssueWorkers,
		PageWorkers:  cfg.PageWorkers,
		Attempts:     cfg.Attempts,
		Progress: func(label string) fetch.IssueProgress {
			return pm.Register(label)
		},
	}, logSvc)

	anyFailed := false

	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}

		src, err := source.FromName(rec.Source)
		if err != nil {
			logSvc.Errorf("%s (%s): %v\n", rec.Name, rec.Source, err)
			anyFailed = true
			continue
		}
		sess := newSession(client, cfg, src.Name())
		seriesID := source.ComicID{Source: rec.Source, ID: rec.SeriesID, Type: source.TypeSeries}

		if info, err := src.SeriesInfo(ctx, sess, seriesID); err == nil {
			st.SetInfo(rec.Source, rec.SeriesID, info.Name, info.Ended)
		}

		refs, err := src.ListIssues(ctx, sess, seriesID)
		if err != nil {
			logSvc.Errorf("%s: listing failed: %v\n", rec.Name, err)
			anyFailed = true
			continue
		}

		var fresh []source.IssueRef
		for _, ref := range refs {
			if source.CompareKeys(ref.Key, rec.LastIssue) > 0 {
				fresh = append(fresh, ref)
			}
		}

		if len(fresh) == 0 {
			logSvc.Infof("%s: up to date\n", rec.Name)
			continue
		}
		logSvc.Infof("%s: %d new issues\n", rec.Name, len(fresh))

		results := orch.DownloadIssues(ctx, src, sess, fresh)
		for _, r := range results {
			switch r.Status {
			case fetch.StatusFailed:
				anyFailed = true
			default:
				// Skipped output counts as seen as well.
				st.MarkLatest(rec.Source, rec.SeriesID, r.Key)
			}
		}
	}

	pm.Close()

	if ctx.Err() == nil {
		if n := st.PruneEnded(); n > 0 {
			logSvc.Infof("Dropped %d ended series\n", n)
		}
	}

	if err := st.Save(); err != nil {
		return fmt.Errorf("saving update file: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	if anyFailed {
		return fmt.Errorf("some updates failed")
	}

	fmt.Println("Update complete.")
	return nil
}
