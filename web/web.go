// Package web serves the finished reels over HTTP.
package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"nbahighlights/utils"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

//go:embed views/*.html
var views embed.FS

const reelSuffix = "_highlight_reel.mp4"

type Templates struct {
	templates *template.Template
}

func (t *Templates) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

func newTemplate() *Templates {
	return &Templates{
		templates: template.Must(template.New("").Funcs(template.FuncMap{
			"humanSize": humanSize,
		}).ParseFS(views, "views/*.html")),
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

type Reel struct {
	Name     string    `json:"name"`
	Player   string    `json:"player,omitempty"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	URL      string    `json:"url"`
}

// ListReels returns the .mp4 files in dir, newest first. A missing
// directory has no reels.
func ListReels(dir string) ([]Reel, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Reel{}, nil
	}
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}

	reels := []Reel{}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".mp4") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		reel := Reel{
			Name:     e.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
			URL:      "/reels/" + e.Name(),
		}
		if player, ok := strings.CutSuffix(e.Name(), reelSuffix); ok {
			reel.Player = strings.ReplaceAll(player, "_", " ")
		}
		reels = append(reels, reel)
	}
	sort.SliceStable(reels, func(i, j int) bool {
		return reels[i].Modified.After(reels[j].Modified)
	})
	return reels, nil
}

type indexState struct {
	OutputDir string
	Reels     []Reel
	Error     string
}

// New builds the echo server for the reels in outputDir.
func New(outputDir string, log *zap.Logger) *echo.Echo {
	if log == nil {
		log = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = newTemplate()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Info("request", fields...)
			return nil
		},
	}))

	e.GET("/", func(c echo.Context) error {
		state := indexState{OutputDir: outputDir}
		reels, err := ListReels(outputDir)
		if err != nil {
			log.Error("listing reels", zap.Error(err))
			state.Error = "unable to read the output directory"
		}
		state.Reels = reels
		return c.Render(http.StatusOK, "index", state)
	})

	e.GET("/api/reels", func(c echo.Context) error {
		reels, err := ListReels(outputDir)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "unable to read the output directory").SetInternal(err)
		}
		return c.JSON(http.StatusOK, reels)
	})

	e.GET("/reels/:name", func(c echo.Context) error {
		name := c.Param("name")
		if name != filepath.Base(name) || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".mp4") {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		path := filepath.Join(outputDir, name)
		if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return c.File(path)
	})

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	return e
}
