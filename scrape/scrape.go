// Package scrape turns a player and their recent games into highlight
// video URLs. Results depend on the markup of the search site; when that
// changes the search quietly comes back empty rather than failing.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"nbahighlights/nba"
	"nbahighlights/utils"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Candidate struct {
	URL    string
	Title  string
	Source string
	Game   *nba.GameLogEntry
}

type Query struct {
	Text   string
	Player string
	Game   *nba.GameLogEntry
}

// Searcher is one place highlights can be found.
type Searcher interface {
	Name() string
	Search(ctx context.Context, q Query, limit int) ([]Candidate, error)
}

// BuildQueries returns three queries per game (matchup, date, points) and a
// final name-only query. With no games only the name-only query remains.
func BuildQueries(player string, games []nba.GameLogEntry) []Query {
	player = strings.TrimSpace(player)
	queries := make([]Query, 0, len(games)*3+1)
	for i := range games {
		g := &games[i]
		queries = append(queries,
			Query{Text: fmt.Sprintf("%s %s", player, g.Matchup), Player: player, Game: g},
			Query{Text: fmt.Sprintf("%s %s", player, g.FormattedDate()), Player: player, Game: g},
			Query{Text: fmt.Sprintf("%s %d points", player, g.Points), Player: player, Game: g},
		)
	}
	queries = append(queries, Query{Text: player + " highlights", Player: player})
	return queries
}

type Finder struct {
	searchers []Searcher
	log       *zap.Logger
}

func NewFinder(log *zap.Logger, searchers ...Searcher) *Finder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Finder{searchers: searchers, log: log}
}

// Find runs every query against every searcher until limit unique URLs are
// collected. A failing query is logged and skipped; an empty result is not
// an error.
func (f *Finder) Find(ctx context.Context, player string, games []nba.GameLogEntry, limit int) []Candidate {
	found := []Candidate{}
	seen := map[string]bool{}
	for _, q := range BuildQueries(player, games) {
		for _, s := range f.searchers {
			if len(found) >= limit {
				return found
			}
			results, err := s.Search(ctx, q, limit)
			if err != nil {
				f.log.Warn("highlight search failed", zap.String("searcher", s.Name()), zap.String("query", q.Text), zap.Error(err))
				continue
			}
			for _, c := range results {
				if c.URL == "" || seen[c.URL] {
					continue
				}
				seen[c.URL] = true
				if c.Game == nil {
					c.Game = q.Game
				}
				found = append(found, c)
				if len(found) >= limit {
					return found
				}
			}
		}
	}
	return found
}

type NBASearch struct {
	BaseURL string
	HTTP    *http.Client
	limiter *rate.Limiter
}

func NewNBASearch(baseURL string, httpClient *http.Client, requestsPerSecond float64) *NBASearch {
	if httpClient == nil {
		httpClient = utils.NewHTTPClient(0)
	}
	return &NBASearch{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 3),
	}
}

func (*NBASearch) Name() string { return "nba.com" }

func (s *NBASearch) Search(ctx context.Context, q Query, limit int) ([]Candidate, error) {
	pageURL := s.BaseURL + "/search?q=" + url.QueryEscape(q.Text)
	body, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	found, err := ParseSearchPage(body, pageURL, q.Player)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

// ResolveVideoURL looks inside a highlight page for the actual video. ok is
// false when the page embeds nothing recognisable.
func (s *NBASearch) ResolveVideoURL(ctx context.Context, pageURL string) (string, bool, error) {
	body, err := s.fetch(ctx, pageURL)
	if err != nil {
		return "", false, err
	}
	urls, err := ParseVideoPage(body, pageURL)
	if err != nil {
		return "", false, utils.ErrorWithTrace(err)
	}
	if len(urls) == 0 {
		return "", false, nil
	}
	return urls[0], true, nil
}

// IsSearchSite reports whether u points at the search site, i.e. is a page
// that still needs resolving rather than a direct video link.
func (s *NBASearch) IsSearchSite(u string) bool {
	target, err := url.Parse(u)
	if err != nil {
		return false
	}
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return false
	}
	return sameSite(target.Hostname(), base.Hostname())
}

func sameSite(a, b string) bool {
	a = strings.TrimPrefix(strings.ToLower(a), "www.")
	b = strings.TrimPrefix(strings.ToLower(b), "www.")
	return a != "" && a == b
}

func (s *NBASearch) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", utils.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: HTTP %d", pageURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

var linkKeywords = []string{"video", "highlight", "play", "watch"}

var embedHosts = []string{"nba.com", "youtube", "vimeo"}

// ParseSearchPage extracts highlight links from a search results page in
// page order: matching anchors first, then embedded players. Each URL is
// returned once.
func ParseSearchPage(html []byte, pageURL, player string) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	player = strings.ToLower(strings.TrimSpace(player))

	found := []Candidate{}
	seen := map[string]bool{}
	add := func(c Candidate) {
		if seen[c.URL] {
			return
		}
		seen[c.URL] = true
		found = append(found, c)
	}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !containsAny(strings.ToLower(href), linkKeywords) {
			return
		}
		text := strings.Join(strings.Fields(a.Text()), " ")
		lower := strings.ToLower(text)
		if !(player != "" && strings.Contains(lower, player)) && !strings.Contains(lower, "highlight") {
			return
		}
		if abs, ok := resolve(base, href); ok {
			add(Candidate{URL: abs, Title: text, Source: "nba.com"})
		}
	})

	doc.Find("video, iframe").Each(func(_ int, el *goquery.Selection) {
		src := attrOr(el, "src", "data-src")
		if src == "" || !containsAny(src, embedHosts) {
			return
		}
		if abs, ok := resolve(base, src); ok {
			title := "Highlight"
			if player != "" {
				title = player + " highlight"
			}
			add(Candidate{URL: abs, Title: title, Source: "nba.com"})
		}
	})
	return found, nil
}

// ParseVideoPage lists the video URLs a highlight page embeds: <video>
// sources, iframes, then data-video-url attributes.
func ParseVideoPage(html []byte, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	urls := []string{}
	add := func(raw string) {
		if abs, ok := resolve(base, raw); ok {
			urls = append(urls, abs)
		}
	}
	doc.Find("video").Each(func(_ int, v *goquery.Selection) {
		if src, ok := v.Attr("src"); ok {
			add(src)
		}
		v.Find("source[src]").Each(func(_ int, s *goquery.Selection) {
			src, _ := s.Attr("src")
			add(src)
		})
	})
	doc.Find("iframe[src]").Each(func(_ int, f *goquery.Selection) {
		src, _ := f.Attr("src")
		add(src)
	})
	doc.Find("[data-video-url]").Each(func(_ int, el *goquery.Selection) {
		src, _ := el.Attr("data-video-url")
		add(src)
	})
	return urls, nil
}

func attrOr(s *goquery.Selection, names ...string) string {
	for _, n := range names {
		if v, ok := s.Attr(n); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(strings.ToLower(ref), "javascript:") {
		return "", false
	}
	u, err := base.Parse(ref)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
