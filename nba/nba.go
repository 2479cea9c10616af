package nba

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nbahighlights/utils"

	"golang.org/x/time/rate"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
	limiter *rate.Limiter
}

func NewClient(baseURL string, httpClient *http.Client, requestsPerSecond float64) *Client {
	if httpClient == nil {
		httpClient = utils.NewHTTPClient(0)
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 3),
	}
}

func initNBAReq(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Referer", "https://www.nba.com/")
	req.Header.Add("Origin", "https://www.nba.com")
	req.Header.Add("x-nba-stats-origin", "stats")
	req.Header.Add("x-nba-stats-token", "true")
	req.Header.Add("User-Agent", utils.UserAgent)
	return req, nil
}

type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stats request %s: HTTP %d", e.URL, e.StatusCode)
}

type resultSet struct {
	Name    string          `json:"name"`
	Headers []string        `json:"headers"`
	RowSet  [][]interface{} `json:"rowSet"`
}

type resultSetsResp struct {
	ResultSets []resultSet `json:"resultSets"`
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values) (*resultSet, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	u := c.BaseURL + "/" + endpoint + "?" + query.Encode()
	req, err := initNBAReq(ctx, u)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}

	unmarshalledBody := resultSetsResp{}
	if err := json.Unmarshal(body, &unmarshalledBody); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	if len(unmarshalledBody.ResultSets) == 0 {
		return nil, utils.ErrorWithTrace(fmt.Errorf("%s: response has no result sets", endpoint))
	}
	return &unmarshalledBody.ResultSets[0], nil
}

// columns maps header names to row positions so rows can be decoded by
// name; the stats service reorders columns between endpoints.
type columns map[string]int

func newColumns(headers []string) columns {
	cols := make(columns, len(headers))
	for i, h := range headers {
		cols[strings.ToUpper(h)] = i
	}
	return cols
}

func column[T any](cols columns, row []interface{}, name string) *T {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return nil
	}
	return maybe[T](row[i])
}

type CommonAllPlayer struct {
	PersonID         *float64
	DisplayLastFirst *string
	DisplayFirstLast *string
	RosterStatus     *float64
	FromYear         *string
	ToYear           *string
	PlayerSlug       *string
	TeamID           *float64
	TeamCity         *string
	TeamName         *string
	TeamAbbreviation *string
}

func (c *Client) CommonAllPlayers(ctx context.Context, season string) ([]CommonAllPlayer, error) {
	query := url.Values{}
	query.Set("LeagueID", "00")
	query.Set("Season", season)
	query.Set("IsOnlyCurrentSeason", "0")

	set, err := c.get(ctx, "commonallplayers", query)
	if err != nil {
		return nil, err
	}

	cols := newColumns(set.Headers)
	players := make([]CommonAllPlayer, len(set.RowSet))
	for i, raw := range set.RowSet {
		players[i] = CommonAllPlayer{
			PersonID:         column[float64](cols, raw, "PERSON_ID"),
			DisplayLastFirst: column[string](cols, raw, "DISPLAY_LAST_COMMA_FIRST"),
			DisplayFirstLast: column[string](cols, raw, "DISPLAY_FIRST_LAST"),
			RosterStatus:     column[float64](cols, raw, "ROSTERSTATUS"),
			FromYear:         column[string](cols, raw, "FROM_YEAR"),
			ToYear:           column[string](cols, raw, "TO_YEAR"),
			PlayerSlug:       column[string](cols, raw, "PLAYER_SLUG"),
			TeamID:           column[float64](cols, raw, "TEAM_ID"),
			TeamCity:         column[string](cols, raw, "TEAM_CITY"),
			TeamName:         column[string](cols, raw, "TEAM_NAME"),
			TeamAbbreviation: column[string](cols, raw, "TEAM_ABBREVIATION"),
		}
	}
	return players, nil
}

type Player struct {
	ID       int    `db:"id"`
	FullName string `db:"full_name"`
}

// Player reports false for rows missing an id or display name.
func (p CommonAllPlayer) Player() (Player, bool) {
	if p.PersonID == nil || p.DisplayFirstLast == nil {
		return Player{}, false
	}
	return Player{ID: int(*p.PersonID), FullName: *p.DisplayFirstLast}, true
}

type PlayerGameLogGame struct {
	SeasonID *string
	PlayerID *float64
	GameID   *string
	GameDate *string
	Matchup  *string
	WL       *string
	MIN      *float64
	PTS      *float64
	REB      *float64
	AST      *float64
}

func (c *Client) PlayerGameLog(ctx context.Context, playerID int, season, seasonType string) ([]PlayerGameLogGame, error) {
	query := url.Values{}
	query.Set("PlayerID", strconv.Itoa(playerID))
	query.Set("Season", season)
	query.Set("SeasonType", seasonType)
	query.Set("LeagueID", "00")

	set, err := c.get(ctx, "playergamelog", query)
	if err != nil {
		return nil, err
	}

	cols := newColumns(set.Headers)
	games := make([]PlayerGameLogGame, len(set.RowSet))
	for i, raw := range set.RowSet {
		games[i] = PlayerGameLogGame{
			SeasonID: column[string](cols, raw, "SEASON_ID"),
			PlayerID: column[float64](cols, raw, "PLAYER_ID"),
			GameID:   column[string](cols, raw, "GAME_ID"),
			GameDate: column[string](cols, raw, "GAME_DATE"),
			Matchup:  column[string](cols, raw, "MATCHUP"),
			WL:       column[string](cols, raw, "WL"),
			MIN:      column[float64](cols, raw, "MIN"),
			PTS:      column[float64](cols, raw, "PTS"),
			REB:      column[float64](cols, raw, "REB"),
			AST:      column[float64](cols, raw, "AST"),
		}
	}
	return games, nil
}

// GameLogEntry is one game from a player's log, flattened for display and
// query building.
type GameLogEntry struct {
	GameID   string
	Date     time.Time
	Matchup  string
	Opponent string
	Points   int
	Rebounds int
	Assists  int
	Result   string
}

const gameDateLayout = "Jan 02, 2006"

func (g PlayerGameLogGame) Entry() (GameLogEntry, error) {
	if g.GameDate == nil || g.Matchup == nil {
		return GameLogEntry{}, fmt.Errorf("game log row missing date or matchup")
	}
	date, err := time.Parse(gameDateLayout, *g.GameDate)
	if err != nil {
		date, err = time.Parse("2006-01-02", *g.GameDate)
		if err != nil {
			return GameLogEntry{}, fmt.Errorf("game log date %q: %w", *g.GameDate, err)
		}
	}
	return GameLogEntry{
		GameID:   deref(g.GameID),
		Date:     date,
		Matchup:  *g.Matchup,
		Opponent: Opponent(*g.Matchup),
		Points:   int(derefNum(g.PTS)),
		Rebounds: int(derefNum(g.REB)),
		Assists:  int(derefNum(g.AST)),
		Result:   deref(g.WL),
	}, nil
}

// FormattedDate is the date the way highlight pages title their games.
func (g GameLogEntry) FormattedDate() string {
	return g.Date.Format("January 2, 2006")
}

// Opponent pulls the opposing team out of a matchup such as "LAL vs. GSW"
// or "LAL @ GSW".
func Opponent(matchup string) string {
	fields := strings.Fields(matchup)
	if len(fields) < 3 {
		return ""
	}
	return fields[len(fields)-1]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefNum(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func maybe[T any](x any) *T {
	if x, ok := x.(T); ok {
		return &x
	}
	return nil
}
