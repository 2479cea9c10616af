package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"nbahighlights/download"
	"nbahighlights/ffmpeg"
	"nbahighlights/nba"
	"nbahighlights/report"
	"nbahighlights/scrape"
	"nbahighlights/utils"

	"go.uber.org/zap"
)

var (
	ErrNoHighlights = errors.New("no highlights found")
	ErrNoInputs     = errors.New("no input resolved to a video file")
)

type State string

const (
	StateLookingUp   State = "LOOKING UP"
	StateSearching   State = "SEARCHING"
	StateDownloading State = "DOWNLOADING CLIPS"
	StateStitching   State = "STITCHING"
	StateUploading   State = "UPLOADING"
	StateFinished    State = "FINISHED"
)

type PlayerLookup interface {
	FindPlayer(ctx context.Context, name string) (nba.Player, error)
	RecentGames(ctx context.Context, playerID, count int) ([]nba.GameLogEntry, error)
}

type HighlightFinder interface {
	Find(ctx context.Context, player string, games []nba.GameLogEntry, limit int) []scrape.Candidate
}

// PageResolver turns a link to a highlight page into the video it embeds.
type PageResolver interface {
	IsSearchSite(u string) bool
	ResolveVideoURL(ctx context.Context, pageURL string) (string, bool, error)
}

type ClipDownloader interface {
	DownloadAll(ctx context.Context, urls []string, progress func(i, total int, url string)) ([]download.Clip, error)
}

type Concatenator interface {
	Concat(ctx context.Context, inputs []string, output string) (ffmpeg.Strategy, error)
}

type ReelUploader interface {
	Upload(ctx context.Context, path, title, description string, tags []string) (string, error)
}

// Reel is the finished output of a job.
type Reel struct {
	Path     string
	Player   string
	Games    []nba.GameLogEntry
	Clips    []download.Clip
	Strategy ffmpeg.Strategy
	URL      string
}

// ReelPath is where the reel for player is written.
func ReelPath(outputDir, player string) string {
	return filepath.Join(outputDir, utils.SafeName(player)+"_highlight_reel.mp4")
}

// HighlightJob runs the whole pipeline for one player. Lookup, Resolver and
// Uploader are optional.
type HighlightJob struct {
	Lookup      PlayerLookup
	Finder      HighlightFinder
	Resolver    PageResolver
	Downloader  ClipDownloader
	Stitcher    Concatenator
	Uploader    ReelUploader
	OutputDir   string
	RecentGames int
	Out         io.Writer
	Log         *zap.Logger

	State State
}

func (j *HighlightJob) setState(s State) {
	j.State = s
	j.Log.Info("job state", zap.String("state", string(s)))
}

func (j *HighlightJob) printf(format string, args ...any) {
	fmt.Fprintf(j.Out, format, args...)
}

func (j *HighlightJob) Run(ctx context.Context, player string, maxHighlights int) (*Reel, error) {
	if j.Log == nil {
		j.Log = zap.NewNop()
	}
	if j.Out == nil {
		j.Out = io.Discard
	}
	player = strings.TrimSpace(player)
	if player == "" {
		return nil, errors.New("player name is empty")
	}

	j.printf("Creating highlight reel for %s...\n%s\n", player, strings.Repeat("=", 50))

	j.setState(StateLookingUp)
	searchName, games := j.lookup(ctx, player)

	j.setState(StateSearching)
	j.printf("Searching for highlights of %s...\n", searchName)
	candidates := j.Finder.Find(ctx, searchName, games, maxHighlights)
	if len(candidates) == 0 {
		j.printf("No highlights found. The search page may have changed its layout.\n")
		j.printf("Try collecting clip URLs by hand and use the stitch command instead.\n")
		return nil, ErrNoHighlights
	}
	j.printf("Found %d unique highlights\n", len(candidates))

	j.setState(StateDownloading)
	urls := j.resolve(ctx, candidates)
	j.printf("\nDownloading %d videos...\n", len(urls))
	clips, err := j.Downloader.DownloadAll(ctx, urls, func(i, total int, _ string) {
		title := candidates[i-1].Title
		if title == "" {
			title = "Untitled"
		}
		j.printf("Downloading %d/%d: %s\n", i, total, title)
	})
	if err != nil {
		if errors.Is(err, download.ErrNoDownloads) {
			j.printf("\nNo videos were successfully downloaded.\n")
			j.printf("The sources may be DRM protected, require a login, or use an unsupported format.\n")
		}
		return nil, err
	}

	j.setState(StateStitching)
	j.printf("\nStitching %d videos together...\n", len(clips))
	reel := &Reel{
		Path:   ReelPath(j.OutputDir, player),
		Player: searchName,
		Games:  games,
		Clips:  clips,
	}
	paths := make([]string, len(clips))
	for i, c := range clips {
		paths[i] = c.Path
	}
	reel.Strategy, err = j.Stitcher.Concat(ctx, paths, reel.Path)
	if err != nil {
		return nil, err
	}

	if j.Uploader != nil {
		j.setState(StateUploading)
		j.upload(ctx, reel)
	}

	j.setState(StateFinished)
	j.printf("\n✓ Highlight reel created successfully!\n  Output: %s\n", reel.Path)
	if reel.URL != "" {
		j.printf("  Uploaded: %s\n", reel.URL)
	}
	return reel, nil
}

// lookup returns the name to search with and whatever games could be
// found. Any failure leaves the games empty so the search runs on the name
// alone.
func (j *HighlightJob) lookup(ctx context.Context, player string) (string, []nba.GameLogEntry) {
	if j.Lookup == nil {
		return player, nil
	}
	p, err := j.Lookup.FindPlayer(ctx, player)
	if err != nil {
		j.Log.Warn("player lookup failed", zap.String("player", player), zap.Error(err))
		j.printf("Could not find player ID for %q, searching by name only\n", player)
		return player, nil
	}
	j.printf("Found player: %s (ID: %d)\n", p.FullName, p.ID)

	games, err := j.Lookup.RecentGames(ctx, p.ID, j.RecentGames)
	if err != nil {
		j.Log.Warn("recent games unavailable", zap.Int("player_id", p.ID), zap.Error(err))
		return p.FullName, nil
	}
	j.printf("Found %d recent games\n", len(games))
	report.Games(j.Out, games)
	return p.FullName, games
}

func (j *HighlightJob) resolve(ctx context.Context, candidates []scrape.Candidate) []string {
	urls := make([]string, len(candidates))
	for i, c := range candidates {
		urls[i] = c.URL
		if j.Resolver == nil || !j.Resolver.IsSearchSite(c.URL) {
			continue
		}
		actual, ok, err := j.Resolver.ResolveVideoURL(ctx, c.URL)
		if err != nil {
			j.Log.Debug("could not resolve highlight page", zap.String("url", c.URL), zap.Error(err))
			continue
		}
		if ok {
			urls[i] = actual
		}
	}
	return urls
}

// upload failures leave the local reel in place and are only reported.
func (j *HighlightJob) upload(ctx context.Context, reel *Reel) {
	j.printf("Uploading %s...\n", filepath.Base(reel.Path))
	url, err := j.Uploader.Upload(ctx, reel.Path, makeTitle(reel.Player, reel.Games), makeDescription(reel.Player, reel.Games), makeTags(reel.Player, reel.Games))
	if err != nil {
		j.Log.Error("upload failed", zap.String("path", reel.Path), zap.Error(err))
		j.printf("Upload failed: %v\n", err)
		return
	}
	reel.URL = url
}

// StitchJob concatenates user supplied files and URLs, skipping the search.
type StitchJob struct {
	Stitcher Concatenator
	// NewDownloader builds a downloader writing into dir; URL inputs are
	// fetched into a temporary directory removed after the run.
	NewDownloader func(dir string) ClipDownloader
	OutputDir     string
	TempDir       string
	Out           io.Writer
	Log           *zap.Logger
}

// OutputPath places bare file names under the output directory and leaves
// anything with a directory component alone.
func (j *StitchJob) OutputPath(output string) string {
	if filepath.IsAbs(output) || filepath.Dir(output) != "." {
		return output
	}
	return filepath.Join(j.OutputDir, output)
}

func (j *StitchJob) Run(ctx context.Context, output string, inputs []string) (*Reel, error) {
	if j.Log == nil {
		j.Log = zap.NewNop()
	}
	if j.Out == nil {
		j.Out = io.Discard
	}
	fmt.Fprintf(j.Out, "Stitching %d videos into %s...\n%s\n", len(inputs), output, strings.Repeat("=", 50))

	var (
		tmpDir string
		dl     ClipDownloader
	)
	defer func() {
		if tmpDir != "" {
			_ = os.RemoveAll(tmpDir)
		}
	}()

	paths := []string{}
	clips := []download.Clip{}
	for _, in := range inputs {
		in = strings.TrimSpace(in)
		if info, err := os.Stat(in); err == nil && info.Mode().IsRegular() {
			paths = append(paths, in)
			continue
		}
		if !utils.IsURL(in) {
			j.Log.Warn("skipping input: not a file or URL", zap.String("input", in))
			continue
		}
		if dl == nil {
			dir, err := os.MkdirTemp(j.TempDir, "nbahighlights-")
			if err != nil {
				return nil, utils.ErrorWithTrace(err)
			}
			tmpDir = dir
			dl = j.NewDownloader(dir)
		}
		fmt.Fprintf(j.Out, "Downloading video from URL: %s\n", in)
		got, err := dl.DownloadAll(ctx, []string{in}, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			j.Log.Warn("skipping input: download failed", zap.String("url", in), zap.Error(err))
			continue
		}
		for _, c := range got {
			paths = append(paths, c.Path)
			clips = append(clips, c)
		}
	}

	if len(paths) == 0 {
		fmt.Fprintln(j.Out, "Error: No valid video files found")
		return nil, ErrNoInputs
	}

	reel := &Reel{Path: j.OutputPath(output), Clips: clips}
	strategy, err := j.Stitcher.Concat(ctx, paths, reel.Path)
	if err != nil {
		return nil, err
	}
	reel.Strategy = strategy

	fmt.Fprintf(j.Out, "\n✓ Highlight reel created successfully!\n  Output: %s\n", reel.Path)
	return reel, nil
}
