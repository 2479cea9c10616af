package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
	flag "github.com/spf13/pflag"
)

const DefaultFile = "nbahighlights.toml"

const envPrefix = "NBAHL_"

var SeasonTypes = []string{
	"Regular Season",
	"Playoffs",
	"PlayIn",
}

var seasonPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

type Config struct {
	DownloadsDir string `toml:"downloads_dir" env:"DOWNLOADS_DIR"`
	OutputDir    string `toml:"output_dir" env:"OUTPUT_DIR"`

	Season         string `toml:"season" env:"SEASON"`
	FallbackSeason string `toml:"fallback_season" env:"FALLBACK_SEASON"`
	SeasonType     string `toml:"season_type" env:"SEASON_TYPE"`
	RecentGames    int    `toml:"recent_games" env:"RECENT_GAMES"`
	MaxHighlights  int    `toml:"max_highlights" env:"MAX_HIGHLIGHTS"`

	StatsBaseURL       string  `toml:"stats_base_url" env:"STATS_BASE_URL"`
	SearchBaseURL      string  `toml:"search_base_url" env:"SEARCH_BASE_URL"`
	RequestsPerSecond  float64 `toml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	HTTPTimeoutSeconds int     `toml:"http_timeout_seconds" env:"HTTP_TIMEOUT_SECONDS"`

	YtDlpPath  string `toml:"ytdlp_path" env:"YTDLP_PATH"`
	FFmpegPath string `toml:"ffmpeg_path" env:"FFMPEG_PATH"`
	Reencode   bool   `toml:"reencode" env:"REENCODE"`

	DatabaseFile   string `toml:"database_file" env:"DATABASE_FILE"`
	RosterTTLHours int    `toml:"roster_ttl_hours" env:"ROSTER_TTL_HOURS"`

	YouTubeAPIKey     string `toml:"youtube_api_key" env:"YOUTUBE_API_KEY"`
	YouTubeSecretFile string `toml:"youtube_secret_file" env:"YOUTUBE_SECRET_FILE"`
	YouTubeTokenFile  string `toml:"youtube_token_file" env:"YOUTUBE_TOKEN_FILE"`
	Upload            bool   `toml:"upload" env:"UPLOAD"`

	ServeAddr string `toml:"serve_addr" env:"SERVE_ADDR"`
	LogLevel  string `toml:"log_level" env:"LOG_LEVEL"`
}

func Default() Config {
	return Config{
		DownloadsDir:       "downloads",
		OutputDir:          "output",
		Season:             "2024-25",
		FallbackSeason:     "2023-24",
		SeasonType:         "Regular Season",
		RecentGames:        5,
		MaxHighlights:      10,
		StatsBaseURL:       "https://stats.nba.com/stats",
		SearchBaseURL:      "https://www.nba.com",
		RequestsPerSecond:  5,
		HTTPTimeoutSeconds: 10,
		YtDlpPath:          "yt-dlp",
		FFmpegPath:         "ffmpeg",
		DatabaseFile:       "nbahighlights.db",
		RosterTTLHours:     24,
		YouTubeSecretFile:  "secret.json",
		YouTubeTokenFile:   "token.json",
		ServeAddr:          ":8080",
		LogLevel:           "info",
	}
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c Config) RosterTTL() time.Duration {
	return time.Duration(c.RosterTTLHours) * time.Hour
}

func (c Config) Validate() error {
	errs := []error{}
	if !seasonPattern.MatchString(c.Season) {
		errs = append(errs, fmt.Errorf("season: expected YYYY-YY, got %q", c.Season))
	}
	if c.FallbackSeason != "" && !seasonPattern.MatchString(c.FallbackSeason) {
		errs = append(errs, fmt.Errorf("fallback_season: expected YYYY-YY, got %q", c.FallbackSeason))
	}
	if !slices.Contains(SeasonTypes, c.SeasonType) {
		errs = append(errs, fmt.Errorf("season_type: must be one of %s", strings.Join(SeasonTypes, ", ")))
	}
	if c.MaxHighlights <= 0 {
		errs = append(errs, fmt.Errorf("max_highlights: must be positive, got %d", c.MaxHighlights))
	}
	if c.RecentGames < 0 {
		errs = append(errs, fmt.Errorf("recent_games: must not be negative, got %d", c.RecentGames))
	}
	if c.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("requests_per_second: must be positive, got %g", c.RequestsPerSecond))
	}
	if strings.TrimSpace(c.DownloadsDir) == "" {
		errs = append(errs, errors.New("downloads_dir: must not be empty"))
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, errors.New("output_dir: must not be empty"))
	}
	return errors.Join(errs...)
}

// Loader layers configuration sources: defaults, the TOML file, NBAHL_*
// environment variables and finally any flag the user actually set.
type Loader struct {
	fs     *flag.FlagSet
	path   string
	flags  Config
	fields []field
}

type field struct {
	name string
	copy func(dst, src *Config)
}

func NewLoader(fs *flag.FlagSet) *Loader {
	l := &Loader{fs: fs, flags: Default()}
	fs.StringVarP(&l.path, "config", "c", "", "path to a TOML config file (default "+DefaultFile+" when present)")

	l.str("downloads-dir", "directory for downloaded clips", func(c *Config) *string { return &c.DownloadsDir })
	l.str("output-dir", "directory for finished reels", func(c *Config) *string { return &c.OutputDir })
	l.str("season", "season to pull the game log from", func(c *Config) *string { return &c.Season })
	l.str("fallback-season", "season to try when the primary season has no games", func(c *Config) *string { return &c.FallbackSeason })
	l.str("season-type", "Regular Season, Playoffs or PlayIn", func(c *Config) *string { return &c.SeasonType })
	l.integer("recent-games", "number of recent games used to build search queries", func(c *Config) *int { return &c.RecentGames })
	l.str("stats-url", "stats service base URL", func(c *Config) *string { return &c.StatsBaseURL })
	l.str("search-url", "highlight search site base URL", func(c *Config) *string { return &c.SearchBaseURL })
	l.str("ytdlp", "yt-dlp binary", func(c *Config) *string { return &c.YtDlpPath })
	l.str("ffmpeg", "ffmpeg binary", func(c *Config) *string { return &c.FFmpegPath })
	l.boolean("reencode", "always re-encode instead of trying stream copy first", func(c *Config) *bool { return &c.Reencode })
	l.str("db", "roster cache database file, empty disables the cache", func(c *Config) *string { return &c.DatabaseFile })
	l.boolean("upload", "upload the finished reel to YouTube", func(c *Config) *bool { return &c.Upload })
	l.str("addr", "listen address for serve", func(c *Config) *string { return &c.ServeAddr })
	l.str("log-level", "debug, info, warn or error", func(c *Config) *string { return &c.LogLevel })
	return l
}

func (l *Loader) str(name, usage string, get func(*Config) *string) {
	p := get(&l.flags)
	l.fs.StringVar(p, name, *p, usage)
	l.fields = append(l.fields, field{name, func(dst, src *Config) { *get(dst) = *get(src) }})
}

func (l *Loader) integer(name, usage string, get func(*Config) *int) {
	p := get(&l.flags)
	l.fs.IntVar(p, name, *p, usage)
	l.fields = append(l.fields, field{name, func(dst, src *Config) { *get(dst) = *get(src) }})
}

func (l *Loader) boolean(name, usage string, get func(*Config) *bool) {
	p := get(&l.flags)
	l.fs.BoolVar(p, name, *p, usage)
	l.fields = append(l.fields, field{name, func(dst, src *Config) { *get(dst) = *get(src) }})
}

func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	path, explicit := l.path, l.path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := loadFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	for _, f := range l.fields {
		if l.fs.Changed(f.name) {
			f.copy(&cfg, &l.flags)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}
