// Package stats finds a player on the stats service roster and pulls their
// recent game log. Every failure here is survivable: callers fall back to a
// name-only highlight search.
package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"nbahighlights/nba"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrPlayerNotFound   = errors.New("player not found")
	ErrStatsUnavailable = errors.New("stats service unavailable")
)

type Client interface {
	CommonAllPlayers(ctx context.Context, season string) ([]nba.CommonAllPlayer, error)
	PlayerGameLog(ctx context.Context, playerID int, season, seasonType string) ([]nba.PlayerGameLogGame, error)
}

type RosterCache interface {
	SelectPlayers() ([]nba.Player, error)
	ReplacePlayers(season string, players []nba.Player, fetchedAt time.Time) error
	RosterFetchedAt(season string) (time.Time, bool, error)
}

type Options struct {
	Season         string
	FallbackSeason string
	SeasonType     string
	RosterTTL      time.Duration
}

type Lookup struct {
	client Client
	cache  RosterCache
	opts   Options
	log    *zap.Logger
	now    func() time.Time
}

// NewLookup builds a Lookup. cache may be nil, in which case the roster is
// fetched on every run.
func NewLookup(client Client, cache RosterCache, opts Options, log *zap.Logger) *Lookup {
	if log == nil {
		log = zap.NewNop()
	}
	return &Lookup{client: client, cache: cache, opts: opts, log: log, now: time.Now}
}

func (l *Lookup) FindPlayer(ctx context.Context, name string) (nba.Player, error) {
	roster, err := l.Roster(ctx)
	if err != nil {
		return nba.Player{}, err
	}
	p, ok := MatchPlayer(roster, name)
	if !ok {
		return nba.Player{}, fmt.Errorf("%w: %q", ErrPlayerNotFound, name)
	}
	return p, nil
}

// Roster returns the cached roster while it is fresh, refreshing it from
// the stats service otherwise. A stale cache beats no roster at all.
func (l *Lookup) Roster(ctx context.Context) ([]nba.Player, error) {
	var cached []nba.Player
	if l.cache != nil {
		fetchedAt, ok, err := l.cache.RosterFetchedAt(l.opts.Season)
		if err != nil {
			l.log.Warn("roster cache unreadable", zap.Error(err))
		}
		if ok {
			cached, err = l.cache.SelectPlayers()
			if err != nil {
				l.log.Warn("roster cache unreadable", zap.Error(err))
				cached = nil
			}
			if len(cached) > 0 && l.now().Sub(fetchedAt) < l.opts.RosterTTL {
				l.log.Debug("using cached roster", zap.Int("players", len(cached)), zap.Time("fetched_at", fetchedAt))
				return cached, nil
			}
		}
	}

	fresh, err := l.fetchRoster(ctx)
	if err != nil {
		if len(cached) > 0 {
			l.log.Warn("roster refresh failed, using stale cache", zap.Error(err))
			return cached, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStatsUnavailable, err)
	}

	if l.cache != nil {
		if err := l.cache.ReplacePlayers(l.opts.Season, fresh, l.now()); err != nil {
			l.log.Warn("roster cache not updated", zap.Error(err))
		}
	}
	return fresh, nil
}

func (l *Lookup) fetchRoster(ctx context.Context) ([]nba.Player, error) {
	raw, err := l.client.CommonAllPlayers(ctx, l.opts.Season)
	if err != nil {
		return nil, err
	}
	players := make([]nba.Player, 0, len(raw))
	for _, r := range raw {
		p, ok := r.Player()
		if !ok {
			continue
		}
		players = append(players, p)
	}
	if len(players) == 0 {
		return nil, errors.New("stats service returned an empty roster")
	}
	return players, nil
}

// RecentGames returns up to count games, most recent first. When the
// configured season has nothing (or fails) the fallback season is tried.
func (l *Lookup) RecentGames(ctx context.Context, playerID, count int) ([]nba.GameLogEntry, error) {
	if count <= 0 {
		return nil, nil
	}

	seasons := []string{l.opts.Season}
	if fb := l.opts.FallbackSeason; fb != "" && fb != l.opts.Season {
		seasons = append(seasons, fb)
	}

	errs := []error{}
	for _, season := range seasons {
		games, err := l.client.PlayerGameLog(ctx, playerID, season, l.opts.SeasonType)
		if err != nil {
			l.log.Warn("game log request failed", zap.String("season", season), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		entries := l.entries(games, count)
		if len(entries) == 0 {
			l.log.Info("no games in season", zap.String("season", season), zap.Int("player_id", playerID))
			continue
		}
		return entries, nil
	}
	if len(errs) == len(seasons) {
		return nil, fmt.Errorf("%w: %v", ErrStatsUnavailable, errors.Join(errs...))
	}
	return nil, nil
}

func (l *Lookup) entries(games []nba.PlayerGameLogGame, count int) []nba.GameLogEntry {
	entries := make([]nba.GameLogEntry, 0, min(count, len(games)))
	for _, g := range games {
		if len(entries) == count {
			break
		}
		e, err := g.Entry()
		if err != nil {
			l.log.Debug("skipping game log row", zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// MatchPlayer picks the roster entry for name. An exact match (ignoring
// case, accents and spacing) wins; otherwise the first entry where one name
// contains the other.
func MatchPlayer(roster []nba.Player, name string) (nba.Player, bool) {
	want := FoldName(name)
	if want == "" {
		return nba.Player{}, false
	}
	for _, p := range roster {
		if FoldName(p.FullName) == want {
			return p, true
		}
	}
	for _, p := range roster {
		full := FoldName(p.FullName)
		if full == "" {
			continue
		}
		if strings.Contains(full, want) || strings.Contains(want, full) {
			return p, true
		}
	}
	return nba.Player{}, false
}

// FoldName lower-cases s, strips diacritics and collapses whitespace, so
// "Nikola Jokić" and "nikola  jokic" compare equal.
func FoldName(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
