// Package ffmpeg concatenates clips with the ffmpeg concat demuxer.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"nbahighlights/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Strategy string

const (
	StreamCopy Strategy = "copy"
	Reencode   Strategy = "reencode"
)

var ErrNoInputs = errors.New("nothing to concatenate")

type Stitcher struct {
	Binary string
	// AlwaysReencode skips the stream copy attempt. Stream copy only works
	// when every clip shares codecs and parameters.
	AlwaysReencode bool

	runner utils.Runner
	log    *zap.Logger
}

func NewStitcher(binary string, alwaysReencode bool, runner utils.Runner, log *zap.Logger) *Stitcher {
	if runner == nil {
		runner = utils.ExecRunner{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Stitcher{Binary: binary, AlwaysReencode: alwaysReencode, runner: runner, log: log}
}

// Available reports whether the ffmpeg binary can be found.
func (s *Stitcher) Available() bool {
	_, err := exec.LookPath(s.Binary)
	return err == nil
}

// Concat joins inputs, in order, into output. It tries a stream copy first
// and re-encodes when that fails.
func (s *Stitcher) Concat(ctx context.Context, inputs []string, output string) (Strategy, error) {
	if len(inputs) == 0 {
		return "", ErrNoInputs
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", utils.ErrorWithTrace(err)
	}

	listName, err := writeList(filepath.Dir(output), inputs)
	if err != nil {
		return "", utils.ErrorWithTrace(err)
	}
	defer func() { _ = os.Remove(listName) }()

	if !s.AlwaysReencode {
		_, err := s.runner.Run(ctx, s.Binary, copyArgs(listName, output)...)
		if err == nil {
			return StreamCopy, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		s.log.Info("stream copy failed, re-encoding", zap.Error(err))
	}

	if _, err := s.runner.Run(ctx, s.Binary, reencodeArgs(listName, output)...); err != nil {
		_ = os.Remove(output)
		return "", err
	}
	return Reencode, nil
}

func baseArgs(listName string) []string {
	return []string{"-hide_banner", "-v", "error", "-f", "concat", "-safe", "0", "-i", listName}
}

func copyArgs(listName, output string) []string {
	return append(baseArgs(listName), "-c", "copy", "-y", output)
}

func reencodeArgs(listName, output string) []string {
	return append(baseArgs(listName),
		"-c:v", "libx264", "-preset", "medium", "-crf", "23",
		"-c:a", "aac", "-b:a", "192k",
		"-y", output,
	)
}

func writeList(dir string, inputs []string) (string, error) {
	listName := filepath.Join(dir, fmt.Sprintf("concat_%s.txt", uuid.NewString()))
	var b strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "file '%s'\n", escapeListPath(abs))
	}
	if err := os.WriteFile(listName, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return listName, nil
}

// escapeListPath quotes a path for the concat demuxer, where a single quote
// has to close the string, be escaped, and reopen it.
func escapeListPath(p string) string {
	return strings.ReplaceAll(p, `'`, `'\''`)
}
