package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nbahighlights/nba"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return b
}

func testGames() []nba.GameLogEntry {
	return []nba.GameLogEntry{
		{Matchup: "LAL vs. HOU", Opponent: "HOU", Points: 31, Date: time.Date(2025, time.April, 11, 0, 0, 0, 0, time.UTC)},
		{Matchup: "LAL @ POR", Opponent: "POR", Points: 14, Date: time.Date(2025, time.April, 13, 0, 0, 0, 0, time.UTC)},
	}
}

func TestBuildQueries(t *testing.T) {
	qs := BuildQueries(" LeBron James ", testGames())
	require.Len(t, qs, 7)

	texts := make([]string, len(qs))
	for i, q := range qs {
		texts[i] = q.Text
		assert.Equal(t, "LeBron James", q.Player)
	}
	assert.Equal(t, []string{
		"LeBron James LAL vs. HOU",
		"LeBron James April 11, 2025",
		"LeBron James 31 points",
		"LeBron James LAL @ POR",
		"LeBron James April 13, 2025",
		"LeBron James 14 points",
		"LeBron James highlights",
	}, texts)
	assert.Equal(t, "HOU", qs[0].Game.Opponent)
	assert.Equal(t, "POR", qs[5].Game.Opponent)
	assert.Nil(t, qs[6].Game)
}

func TestBuildQueriesNameOnly(t *testing.T) {
	qs := BuildQueries("Jalen Brunson", nil)
	require.Len(t, qs, 1)
	assert.Equal(t, "Jalen Brunson highlights", qs[0].Text)
	assert.Nil(t, qs[0].Game)
}

func TestParseSearchPage(t *testing.T) {
	found, err := ParseSearchPage(readFixture(t, "search.html"), "https://www.nba.com/search?q=lebron", "LeBron James")
	require.NoError(t, err)

	urls := make([]string, len(found))
	for i, c := range found {
		urls[i] = c.URL
		assert.Equal(t, "nba.com", c.Source)
	}
	assert.Equal(t, []string{
		"https://www.nba.com/watch/video/lebron-james-drops-31-vs-rockets",
		"https://www.nba.com/watch/video/lakers-top-plays",
		"https://www.nba.com/playoffs/2025/lebron-james-game-7",
		"https://www.youtube.com/embed/abc123",
		"https://cdn.nba.com/clips/lebron.mp4",
	}, urls)
	assert.Equal(t, "LeBron James drops 31 vs. Rockets", found[0].Title)
	assert.Equal(t, "LeBron James Game 7", found[2].Title)
}

func TestParseSearchPageChangedMarkup(t *testing.T) {
	found, err := ParseSearchPage([]byte(`<html><body><div>nothing here</div></body></html>`), "https://www.nba.com/search", "LeBron James")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestParseVideoPage(t *testing.T) {
	urls, err := ParseVideoPage(readFixture(t, "video.html"), "https://www.nba.com/watch/video/x")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://www.nba.com/media/clip1.mp4",
		"https://cdn.nba.com/media/clip2.webm",
		"https://www.youtube.com/embed/xyz",
		"https://cdn.nba.com/data/clip3.mp4",
	}, urls)
}

func TestNBASearch(t *testing.T) {
	search := readFixture(t, "search.html")
	video := readFixture(t, "video.html")
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			gotQuery = r.URL.Query().Get("q")
			_, _ = w.Write(search)
		case "/watch/video/x":
			_, _ = w.Write(video)
		case "/watch/video/empty":
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewNBASearch(srv.URL, srv.Client(), 100)
	found, err := s.Search(context.Background(), Query{Text: "LeBron James LAL vs. HOU", Player: "LeBron James"}, 2)
	require.NoError(t, err)
	assert.Equal(t, "LeBron James LAL vs. HOU", gotQuery)
	require.Len(t, found, 2)
	assert.Equal(t, srv.URL+"/watch/video/lebron-james-drops-31-vs-rockets", found[0].URL)

	u, ok, err := s.ResolveVideoURL(context.Background(), srv.URL+"/watch/video/x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, srv.URL+"/media/clip1.mp4", u)

	_, ok, err = s.ResolveVideoURL(context.Background(), srv.URL+"/watch/video/empty")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = s.ResolveVideoURL(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "HTTP 404")
}

func TestIsSearchSite(t *testing.T) {
	s := NewNBASearch("https://www.nba.com", nil, 1)
	assert.True(t, s.IsSearchSite("https://nba.com/watch/video/x"))
	assert.True(t, s.IsSearchSite("https://www.nba.com/watch/video/x"))
	assert.False(t, s.IsSearchSite("https://cdn.nba.com/clip.mp4"))
	assert.False(t, s.IsSearchSite("https://www.youtube.com/watch?v=1"))
}

type fakeSearcher struct {
	name    string
	results map[string][]Candidate
	err     error
	queries []string
}

func (f *fakeSearcher) Name() string { return f.name }

func (f *fakeSearcher) Search(ctx context.Context, q Query, limit int) ([]Candidate, error) {
	f.queries = append(f.queries, q.Text)
	if f.err != nil {
		return nil, f.err
	}
	r := f.results[q.Text]
	if len(r) > limit {
		r = r[:limit]
	}
	return r, nil
}

func TestFinderDedupAndCap(t *testing.T) {
	s := &fakeSearcher{name: "fake", results: map[string][]Candidate{
		"LeBron James LAL vs. HOU":    {{URL: "u1"}, {URL: "u2"}},
		"LeBron James April 11, 2025": {{URL: "u2"}, {URL: "u3"}},
		"LeBron James 31 points":      {{URL: "u4"}},
		"LeBron James highlights":     {{URL: "u5"}},
	}}
	f := NewFinder(nil, s)

	found := f.Find(context.Background(), "LeBron James", testGames(), 3)
	require.Len(t, found, 3)
	assert.Equal(t, "u1", found[0].URL)
	assert.Equal(t, "u2", found[1].URL)
	assert.Equal(t, "u3", found[2].URL)
	assert.Equal(t, "HOU", found[0].Game.Opponent, "game context comes from the query")
	assert.Len(t, s.queries, 2, "stops searching once the cap is reached")
}

func TestFinderSkipsFailingSearcher(t *testing.T) {
	broken := &fakeSearcher{name: "broken", err: errors.New("HTTP 503")}
	ok := &fakeSearcher{name: "ok", results: map[string][]Candidate{
		"Jalen Brunson highlights": {{URL: "u1"}},
	}}
	f := NewFinder(nil, broken, ok)

	found := f.Find(context.Background(), "Jalen Brunson", nil, 10)
	require.Len(t, found, 1)
	assert.Nil(t, found[0].Game)
	assert.Equal(t, []string{"Jalen Brunson highlights"}, broken.queries)
}

func TestFinderNoResults(t *testing.T) {
	f := NewFinder(nil, &fakeSearcher{name: "empty"})
	assert.Empty(t, f.Find(context.Background(), "Nobody", nil, 5))
}

func TestFinderCountsUniqueLinksFromRepeatedAnchors(t *testing.T) {
	page := `<html><body>
		<a href="/watch/video/a">Jalen Brunson 40 points</a>
		<a href="/watch/video/a">Jalen Brunson 40 points</a>
		<a href="/watch/video/a">Jalen Brunson 40 points</a>
		<a href="/watch/video/b">Jalen Brunson game winner</a>
		<a href="/watch/video/c">Jalen Brunson and-one</a>
		<iframe src="https://www.youtube.com/embed/a"></iframe>
		<iframe src="https://www.youtube.com/embed/a"></iframe>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	parsed, err := ParseSearchPage([]byte(page), srv.URL+"/search", "Jalen Brunson")
	require.NoError(t, err)
	require.Len(t, parsed, 4)
	assert.Equal(t, "https://www.youtube.com/embed/a", parsed[3].URL)

	f := NewFinder(nil, NewNBASearch(srv.URL, srv.Client(), 100))
	found := f.Find(context.Background(), "Jalen Brunson", nil, 3)
	require.Len(t, found, 3)
	assert.Equal(t, srv.URL+"/watch/video/a", found[0].URL)
	assert.Equal(t, srv.URL+"/watch/video/b", found[1].URL)
	assert.Equal(t, srv.URL+"/watch/video/c", found[2].URL)
}
