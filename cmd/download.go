package cmd

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/halvden/comicfetch/internal/comic"
	"github.com/halvden/comicfetch/internal/config"
	"github.com/halvden/comicfetch/internal/fetch"
	"github.com/halvden/comicfetch/internal/source"
	"github.com/halvden/comicfetch/internal/ui"
	"github.com/halvden/comicfetch/internal/util"
)

var (
	// selection
	flagIssue string
	flagRange string
	flagList  string
	flagFile  string

	// runtime
	flagOutput       string
	flagTemplate     string
	flagFormat       string
	flagOverwrite    bool
	flagIssueWorkers int
	flagPageWorkers  int
	flagDryRun       bool

	// headers/auth
	flagCookie     string
	flagCookieFile string
	flagUserAgent  string
)

func init() {
	downloadCmd := &cobra.Command{
		Use:   "download [urls...]",
		Short: "Download comics from series or issue URLs and assemble archives. Uses the defaults from the config, overwritten by CLI flags",
		RunE:  runDownload,
	}

	// selection
	downloadCmd.Flags().StringVar(&flagIssue, "issue", "", "download single issue by ordering key or 1-based index")
	downloadCmd.Flags().StringVar(&flagRange, "range", "", "download range of issues by index (e.g. 5-12)")
	downloadCmd.Flags().StringVar(&flagList, "list", "", "download specific issue indices (e.g. 1,3,5)")
	downloadCmd.Flags().StringVar(&flagFile, "file", "", "path to a text file with one URL per line")

	// runtime
	downloadCmd.Flags().StringVar(&flagOutput, "output", "", "output folder for assembled comics")
	downloadCmd.Flags().StringVar(&flagTemplate, "template", "", "output path template (e.g. \"{publisher}/{series}/{title}\")")
	downloadCmd.Flags().StringVar(&flagFormat, "format", "", "output format: cbz, dir or epub")
	downloadCmd.Flags().BoolVar(&flagOverwrite, "overwrite", false, "replace already existing output")
	downloadCmd.Flags().IntVar(&flagIssueWorkers, "issue-workers", 2, "parallel issue downloads")
	downloadCmd.Flags().IntVar(&flagPageWorkers, "page-workers", 5, "parallel page downloads per issue")
	downloadCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what would be downloaded, don’t download")

	// headers/auth
	downloadCmd.Flags().StringVar(&flagCookie, "cookie", "", "cookie string, e.g. \"key=value; other=123\"")
	downloadCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	downloadCmd.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, usedPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logSvc := ui.NewLogger(cfg.Debug)
	if usedPath != "" {
		fmt.Printf("Config file: %s\n", usedPath)
	}

	format, err := comic.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}

	urls, err := collectURLs(args, flagFile)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given (arguments or --file)")
	}

	client, err := newClient(cfg, logSvc)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagDryRun {
		return dryRun(ctx, client, cfg, urls)
	}

	pm := ui.NewProgressManager()

	orch := fetch.New(fetch.Options{
		OutputDir:    cfg.Output,
		Template:     cfg.Template,
		Format:       format,
		Overwrite:    cfg.Overwrite,
		IssueWorkers: cfg.IssueWorkers,
		PageWorkers:  cfg.PageWorkers,
		Attempts:     cfg.Attempts,
		Progress: func(label string) fetch.IssueProgress {
			return pm.Register(label)
		},
	}, logSvc)

	start := time.Now()
	anyFailed := false

	for _, rawURL := range urls {
		if ctx.Err() != nil {
			break
		}

		src, err := source.FromURL(rawURL)
		if err != nil {
			logSvc.Errorf("%s: %v\n", rawURL, err)
			anyFailed = true
			continue
		}
		sess := newSession(client, cfg, src.Name())

		refs, err := orch.Resolve(ctx, src, sess, rawURL)
		if err != nil {
			logSvc.Errorf("%s: %v\n", rawURL, err)
			anyFailed = true
			continue
		}

		selected := fetch.Filter(refs, flagIssue, flagRange, flagList)
		if len(selected) == 0 {
			logSvc.Errorf("%s: no issues selected\n", rawURL)
			anyFailed = true
			continue
		}

		results := orch.DownloadIssues(ctx, src, sess, selected)
		for _, r := range results {
			if r.Status == fetch.StatusFailed {
				anyFailed = true
			}
		}
	}

	pm.Close()
	util.CleanupUnfinishedTemp(cfg.Output)

	fmt.Println()
	fmt.Println("Download Summary:")
	fmt.Printf("Issues:   %d\n", orch.Stats.TotalIssues.Load())
	fmt.Printf("Skipped:  %d\n", orch.Stats.TotalSkipped.Load())
	fmt.Printf("Failed:   %d\n", orch.Stats.TotalFailed.Load())
	fmt.Printf("Pages:    %d\n", orch.Stats.TotalPages.Load())
	fmt.Printf("Data:     %s\n", util.Human(orch.Stats.TotalBytes.Load()))
	fmt.Printf("Time:     %s\n", time.Since(start).Round(time.Second))

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	if anyFailed {
		return fmt.Errorf("some downloads failed")
	}

	fmt.Println("\nAll done.")
	return nil
}

func dryRun(ctx context.Context, client *http.Client, cfg *config.Config, urls []string) error {
	for _, rawURL := range urls {
		src, err := source.FromURL(rawURL)
		if err != nil {
			fmt.Printf("%s: %v\n", rawURL, err)
			continue
		}
		sess := newSession(client, cfg, src.Name())

		id, err := src.ResolveURL(rawURL)
		if err != nil {
			fmt.Printf("%s: %v\n", rawURL, err)
			continue
		}

		if id.Type != source.TypeSeries {
			fmt.Printf("%s: single issue %s\n", rawURL, id)
			continue
		}

		refs, err := src.ListIssues(ctx, sess, id)
		if err != nil {
			fmt.Printf("%s: %v\n", rawURL, err)
			continue
		}

		selected := fetch.Filter(refs, flagIssue, flagRange, flagList)
		fmt.Printf("%s: %d issues selected (of %d)\n", rawURL, len(selected), len(refs))
		for i, ref := range selected {
			fmt.Printf("%4d) %s  [key %s]\n", i+1, ref.Label(), ref.Key)
		}
	}

	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cfg, usedPath, err := config.LoadMerged(config.Options{
		IgnoreConfig: flagIgnoreConfig,
		Debug:        flagDebug,
		Output:       flagOutput,
		Template:     flagTemplate,
		Format:       flagFormat,
		Overwrite:    flagOverwrite,
		UpdateFile:   flagUpdateFile,
		Cookie:       flagCookie,
		CookieFile:   flagCookieFile,
		UserAgent:    flagUserAgent,
	})
	if err != nil {
		return nil, "", err
	}

	if cmd.Flags().Changed("issue-workers") {
		cfg.IssueWorkers = flagIssueWorkers
	}
	if cmd.Flags().Changed("page-workers") {
		cfg.PageWorkers = flagPageWorkers
	}

	return cfg, usedPath, nil
}

func newClient(cfg *config.Config, logSvc *ui.Logger) (*http.Client, error) {
	return util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:     30 * time.Second,
		UserAgent:   util.PickUserAgent(cfg.UserAgent),
		Cookie:      cfg.Cookie,
		CookieFile:  cfg.CookieFile,
		DebugLogger: logSvc,
	})
}

func newSession(client *http.Client, cfg *config.Config, sourceName string) *source.Session {
	auth := cfg.Sources[sourceName]
	return source.NewSession(client, source.Credentials{
		Username: auth.Username,
		Password: auth.Password,
		APIKey:   auth.APIKey,
	})
}

func collectURLs(args []string, file string) ([]string, error) {
	urls := append([]string{}, args...)

	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = f.Close()
		}()

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line != "" && !strings.HasPrefix(line, "#") {
				urls = append(urls, line)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}

	return urls, nil
}
