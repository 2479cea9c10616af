package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"nbahighlights/download"
	"nbahighlights/jobs"
	"nbahighlights/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTools stands in for yt-dlp and ffmpeg. yt-dlp writes the URL into
// the requested file unless the URL contains "broken"; ffmpeg copies the
// concat list into the output.
type fakeTools struct {
	downloads []string
	failAll   bool
}

func (f *fakeTools) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	switch name {
	case "yt-dlp":
		url := args[len(args)-1]
		f.downloads = append(f.downloads, url)
		if f.failAll || strings.Contains(url, "broken") {
			return nil, &utils.ToolError{Tool: name, Output: "ERROR: Unsupported URL", Err: errors.New("exit status 1")}
		}
		tmpl := args[slices.Index(args, "-o")+1]
		return nil, os.WriteFile(strings.ReplaceAll(tmpl, "%(ext)s", "mp4"), []byte(url), 0o644)
	case "ffmpeg":
		list, err := os.ReadFile(args[slices.Index(args, "-i")+1])
		if err != nil {
			return nil, err
		}
		return nil, os.WriteFile(args[len(args)-1], list, 0o644)
	}
	return nil, fmt.Errorf("unexpected tool %s", name)
}

func execute(t *testing.T, tools *fakeTools, args ...string) (string, error) {
	t.Helper()
	return executeApp(t, tools, false, args...)
}

func executeApp(t *testing.T, tools *fakeTools, checkTools bool, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := newApp(&stdout, &stderr)
	a.runner = tools
	a.checkTools = checkTools

	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

// highlightSite serves a stats endpoint that is down and a search page
// linking to two highlight pages, one of which embeds a broken video.
func highlightSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/stats/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="/video/one">Nobody Real highlights vs BOS</a>
			<a href="/video/two">Nobody Real dunk</a>
			<a href="/news/trade">Nobody Real trade rumors</a>
		</body></html>`)
	})
	mux.HandleFunc("/video/one", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<video><source src="https://cdn.example.com/one.mp4"></video>`)
	})
	mux.HandleFunc("/video/two", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<video><source src="https://cdn.example.com/broken.mp4"></video>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runArgs(srv *httptest.Server, dir string, extra ...string) []string {
	return append([]string{
		"run",
		"--stats-url", srv.URL + "/stats",
		"--search-url", srv.URL,
		"--db", "",
		"--downloads-dir", filepath.Join(dir, "downloads"),
		"--output-dir", filepath.Join(dir, "output"),
		"--log-level", "error",
	}, extra...)
}

func TestRunCommandFallsBackToNameSearch(t *testing.T) {
	srv := highlightSite(t)
	dir := t.TempDir()
	tools := &fakeTools{}

	out, err := execute(t, tools, runArgs(srv, dir, "Nobody Real", "5")...)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.com/one.mp4", "https://cdn.example.com/broken.mp4"}, tools.downloads)

	reel := filepath.Join(dir, "output", "Nobody_Real_highlight_reel.mp4")
	require.FileExists(t, reel)
	list, err := os.ReadFile(reel)
	require.NoError(t, err)
	assert.Contains(t, string(list), "highlight_001.mp4")
	assert.NotContains(t, string(list), "highlight_002.mp4")
	assert.Contains(t, out, "Could not find player ID")
	assert.Contains(t, out, "Output: "+reel)
}

func TestRunCommandNoHighlightsSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/stats/") {
			http.Error(w, "blocked", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `<html><body><p>No results</p></body></html>`)
	}))
	defer srv.Close()
	tools := &fakeTools{}

	out, err := execute(t, tools, runArgs(srv, t.TempDir(), "Nobody Real")...)
	require.NoError(t, err)
	assert.Empty(t, tools.downloads)
	assert.Contains(t, out, "No highlights found")
}

func TestRunCommandNoDownloadsFails(t *testing.T) {
	srv := highlightSite(t)
	tools := &fakeTools{failAll: true}

	_, err := execute(t, tools, runArgs(srv, t.TempDir(), "Nobody Real")...)
	require.ErrorIs(t, err, download.ErrNoDownloads)
}

func TestRunCommandRejectsBadMax(t *testing.T) {
	_, err := execute(t, &fakeTools{}, "run", "Nobody Real", "zero")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive number")
}

func TestStitchCommand(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp4")
	b := filepath.Join(dir, "b.mp4")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0o644))
	out := filepath.Join(dir, "output")
	tools := &fakeTools{}

	stdout, err := execute(t, tools, "stitch", "--output-dir", out, "--log-level", "error",
		"reel.mp4", b, "https://example.com/broken", "not-a-file", a)
	require.NoError(t, err)

	list, err := os.ReadFile(filepath.Join(out, "reel.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "file '"+b+"'\nfile '"+a+"'\n", string(list))
	assert.Equal(t, []string{"https://example.com/broken"}, tools.downloads)
	assert.Contains(t, stdout, "✓ Highlight reel created successfully!")
}

func TestStitchCommandNoInputs(t *testing.T) {
	_, err := execute(t, &fakeTools{}, "stitch", "--output-dir", t.TempDir(), "--log-level", "error",
		"reel.mp4", "missing.mp4", "ftp://example.com/clip.mp4")
	require.ErrorIs(t, err, jobs.ErrNoInputs)
}

func TestStitchCommandNeedsInputs(t *testing.T) {
	_, err := execute(t, &fakeTools{}, "stitch", "reel.mp4")
	require.Error(t, err)
}

func TestStitchCommandRequiresFFmpeg(t *testing.T) {
	dir := t.TempDir()
	clip := filepath.Join(dir, "a.mp4")
	require.NoError(t, os.WriteFile(clip, []byte("a"), 0o644))

	out, err := executeApp(t, &fakeTools{}, true, "stitch",
		"--ffmpeg", filepath.Join(dir, "no-such-ffmpeg"),
		"--output-dir", filepath.Join(dir, "output"),
		"--log-level", "error",
		"reel.mp4", clip)
	require.ErrorIs(t, err, errMissingTools)
	assert.Contains(t, out, "Install with: brew install ffmpeg")
	assert.NoFileExists(t, filepath.Join(dir, "output", "reel.mp4"))
}

func TestDoctorReportsMissingTools(t *testing.T) {
	out, err := execute(t, &fakeTools{}, "doctor", "--ytdlp", filepath.Join(t.TempDir(), "no-such-yt-dlp"))
	require.ErrorIs(t, err, errMissingTools)
	assert.Contains(t, out, "no-such-yt-dlp")
}

func TestParseMax(t *testing.T) {
	n, err := parseMax("7")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	for _, s := range []string{"0", "-3", "ten"} {
		_, err := parseMax(s)
		assert.Error(t, err, s)
	}
}
