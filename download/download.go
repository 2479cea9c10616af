// Package download fetches clips with yt-dlp and numbers the ones that
// arrive. Numbers follow download order and skip nothing: a failed URL
// does not consume a sequence slot.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"nbahighlights/utils"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

var (
	ErrNoDownloads = errors.New("no clips were downloaded")
	ErrLocked      = errors.New("downloads directory is in use by another run")
)

const DefaultPrefix = "highlight"

type Clip struct {
	Path string
	Seq  int
	URL  string
}

type Downloader struct {
	Dir    string
	Binary string
	Prefix string

	runner utils.Runner
	log    *zap.Logger
	seq    int
}

func New(dir, binary string, runner utils.Runner, log *zap.Logger) *Downloader {
	if runner == nil {
		runner = utils.ExecRunner{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Downloader{
		Dir:    dir,
		Binary: binary,
		Prefix: DefaultPrefix,
		runner: runner,
		log:    log,
	}
}

// Lock takes an exclusive lock on the downloads directory so a second run
// cannot overwrite clips this one is numbering.
func (d *Downloader) Lock() (func() error, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	fl := flock.New(filepath.Join(d.Dir, ".lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, d.Dir)
	}
	return fl.Unlock, nil
}

// Download fetches url into destStem plus whatever extension yt-dlp picks
// and returns the resulting path.
func (d *Downloader) Download(ctx context.Context, url, destStem string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(destStem), 0o755); err != nil {
		return "", utils.ErrorWithTrace(err)
	}
	if err := removeStem(destStem); err != nil {
		return "", utils.ErrorWithTrace(err)
	}

	args := []string{
		"-f", "best[ext=mp4]/best",
		"--no-playlist",
		"--no-progress",
		"-o", destStem + ".%(ext)s",
		url,
	}
	if _, err := d.runner.Run(ctx, d.Binary, args...); err != nil {
		_ = removeStem(destStem)
		return "", err
	}

	path, err := findStem(destStem)
	if err != nil {
		return "", utils.ErrorWithTrace(err)
	}
	if path == "" {
		return "", fmt.Errorf("%s exited cleanly but wrote nothing for %s", d.Binary, url)
	}
	return path, nil
}

// DownloadAll downloads each URL in turn. Failures are logged and skipped;
// ErrNoDownloads is returned only when every URL failed.
func (d *Downloader) DownloadAll(ctx context.Context, urls []string, progress func(i, total int, url string)) ([]Clip, error) {
	clips := make([]Clip, 0, len(urls))
	for i, u := range urls {
		if progress != nil {
			progress(i+1, len(urls), u)
		}
		if err := ctx.Err(); err != nil {
			return clips, err
		}
		seq := d.seq + 1
		stem := filepath.Join(d.Dir, fmt.Sprintf("%s_%03d", d.Prefix, seq))
		path, err := d.Download(ctx, u, stem)
		if err != nil {
			d.log.Warn("download failed, skipping", zap.String("url", u), zap.Error(err))
			continue
		}
		d.seq = seq
		clips = append(clips, Clip{Path: path, Seq: seq, URL: u})
	}
	if len(clips) == 0 {
		return nil, ErrNoDownloads
	}
	return clips, nil
}

func stemMatches(stem string) ([]string, error) {
	return filepath.Glob(globEscape(stem) + ".*")
}

func findStem(stem string) (string, error) {
	matches, err := stemMatches(stem)
	if err != nil {
		return "", err
	}
	sort.Strings(matches)
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, nil
	}
	return "", nil
}

func removeStem(stem string) error {
	matches, err := stemMatches(stem)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}
