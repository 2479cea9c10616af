package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"nbahighlights/db"
	"nbahighlights/download"
	"nbahighlights/ffmpeg"
	"nbahighlights/jobs"
	"nbahighlights/nba"
	"nbahighlights/report"
	"nbahighlights/scrape"
	"nbahighlights/stats"
	"nbahighlights/utils"
	"nbahighlights/web"
	"nbahighlights/youtube"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errMissingTools = errors.New("required tools are missing")

func (a *app) requirements() []utils.Requirement {
	return []utils.Requirement{
		{Name: "yt-dlp", Command: a.cfg.YtDlpPath, Description: "downloads highlight clips"},
		{Name: "ffmpeg", Command: a.cfg.FFmpegPath, Description: "stitches clips into a reel"},
	}
}

// ensureTools prints the dependency table and fails when a tool is missing.
func (a *app) ensureTools() error {
	if !a.checkTools {
		return nil
	}
	statuses := utils.CheckBinaries(a.requirements())
	for _, s := range statuses {
		if !s.Available {
			report.Dependencies(a.stdout, statuses)
			fmt.Fprintln(a.stdout, "Install the missing tools, for example: brew install yt-dlp ffmpeg")
			return errMissingTools
		}
	}
	return nil
}

func (a *app) stitcher() *ffmpeg.Stitcher {
	return ffmpeg.NewStitcher(a.cfg.FFmpegPath, a.cfg.Reencode, a.runner, a.log)
}

func parseMax(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("max highlights must be a positive number, got %q", s)
	}
	return n, nil
}

func newRunCommand(a *app) *cobra.Command {
	var maxHighlights int

	cmd := &cobra.Command{
		Use:   "run <player> [max]",
		Short: "Find, download and stitch highlights for a player",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("max") {
				maxHighlights = a.cfg.MaxHighlights
			}
			if len(args) == 2 {
				n, err := parseMax(args[1])
				if err != nil {
					return err
				}
				maxHighlights = n
			}
			if maxHighlights <= 0 {
				return fmt.Errorf("max highlights must be positive, got %d", maxHighlights)
			}
			if err := a.ensureTools(); err != nil {
				return err
			}

			_, err := a.runHighlights(cmd.Context(), args[0], maxHighlights)
			if errors.Is(err, jobs.ErrNoHighlights) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVar(&maxHighlights, "max", 10, "maximum number of highlights to download")
	return cmd
}

func (a *app) runHighlights(ctx context.Context, player string, maxHighlights int) (*jobs.Reel, error) {
	cfg := a.cfg
	httpClient := utils.NewHTTPClient(cfg.HTTPTimeout())

	var cache stats.RosterCache
	if cfg.DatabaseFile != "" {
		store, err := db.Open(cfg.DatabaseFile)
		if err != nil {
			a.log.Warn("roster cache unavailable", zap.String("file", cfg.DatabaseFile), zap.Error(err))
		} else {
			defer store.Close()
			cache = store
		}
	}
	lookup := stats.NewLookup(
		nba.NewClient(cfg.StatsBaseURL, httpClient, cfg.RequestsPerSecond),
		cache,
		stats.Options{
			Season:         cfg.Season,
			FallbackSeason: cfg.FallbackSeason,
			SeasonType:     cfg.SeasonType,
			RosterTTL:      cfg.RosterTTL(),
		},
		a.log,
	)

	nbaSearch := scrape.NewNBASearch(cfg.SearchBaseURL, httpClient, cfg.RequestsPerSecond)
	searchers := []scrape.Searcher{nbaSearch}
	if cfg.YouTubeAPIKey != "" {
		yt, err := youtube.NewSearcher(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			a.log.Warn("youtube search disabled", zap.Error(err))
		} else {
			searchers = append(searchers, yt)
		}
	}

	dl := download.New(cfg.DownloadsDir, cfg.YtDlpPath, a.runner, a.log)
	unlock, err := dl.Lock()
	if err != nil {
		return nil, err
	}
	defer func() { _ = unlock() }()

	job := &jobs.HighlightJob{
		Lookup:      lookup,
		Finder:      scrape.NewFinder(a.log, searchers...),
		Resolver:    nbaSearch,
		Downloader:  dl,
		Stitcher:    a.stitcher(),
		OutputDir:   cfg.OutputDir,
		RecentGames: cfg.RecentGames,
		Out:         a.stdout,
		Log:         a.log,
	}
	if cfg.Upload {
		job.Uploader = youtube.NewUploader(cfg.YouTubeSecretFile, cfg.YouTubeTokenFile)
	}
	return job.Run(ctx, player, maxHighlights)
}

func newStitchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stitch <output> <input>...",
		Short: "Stitch local files and URLs into one video",
		Long: "Stitch local video files and URLs, in the order given, into one video.\n" +
			"URLs are downloaded to a temporary directory first. Inputs that are\n" +
			"neither an existing file nor an http(s) URL are skipped.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Only ffmpeg is required. Without yt-dlp, URL inputs are skipped.
			st := a.stitcher()
			if a.checkTools && !st.Available() {
				fmt.Fprintf(a.stdout, "Error: %s is not installed. Please install ffmpeg first.\n", a.cfg.FFmpegPath)
				fmt.Fprintln(a.stdout, "Install with: brew install ffmpeg (macOS) or apt-get install ffmpeg (Linux)")
				return errMissingTools
			}
			job := &jobs.StitchJob{
				Stitcher: st,
				NewDownloader: func(dir string) jobs.ClipDownloader {
					return download.New(dir, a.cfg.YtDlpPath, a.runner, a.log)
				},
				OutputDir: a.cfg.OutputDir,
				Out:       a.stdout,
				Log:       a.log,
			}
			_, err := job.Run(cmd.Context(), args[0], args[1:])
			return err
		},
	}
}

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Browse finished reels over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := web.New(a.cfg.OutputDir, a.log)

			errc := make(chan error, 1)
			go func() {
				a.log.Info("serving reels", zap.String("addr", a.cfg.ServeAddr), zap.String("dir", a.cfg.OutputDir))
				errc <- e.Start(a.cfg.ServeAddr)
			}()

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return e.Shutdown(ctx)
		},
	}
}

func newDoctorCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that yt-dlp and ffmpeg are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := utils.CheckBinaries(a.requirements())
			report.Dependencies(a.stdout, statuses)
			for _, s := range statuses {
				if !s.Available {
					return errMissingTools
				}
			}
			return nil
		},
	}
}
