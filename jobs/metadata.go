package jobs

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"nbahighlights/nba"
)

const titleCharLimit = 100
const descCharLimit = 5000

// truncate cuts s to at most limit characters, ending in "..." when cut.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}

func makeTitle(player string, games []nba.GameLogEntry) string {
	gameCharLimit := titleCharLimit - utf8.RuneCountInString(player) - len(" | ") - len(" | Highlights")

	matchups := []string{}
	for _, g := range games {
		matchups = append(matchups, g.Matchup)
	}
	gamesList := strings.Join(matchups, ", ")
	if gameCharLimit < 4 {
		gamesList = ""
	} else {
		gamesList = truncate(gamesList, gameCharLimit)
	}

	title := player + " | Highlights"
	if gamesList != "" {
		title = player + " | " + gamesList + " | Highlights"
	}
	return truncate(title, titleCharLimit)
}

func makeDescription(player string, games []nba.GameLogEntry) string {
	matchups := make([]string, 0, len(games))
	for _, g := range games {
		matchups = append(matchups, fmt.Sprintf("%s %s: %d PTS, %d REB, %d AST (%s)",
			g.Date.Format("2006-01-02"), g.Matchup, g.Points, g.Rebounds, g.Assists, g.Result))
	}

	desc := "Player: " + player
	if len(matchups) > 0 {
		desc += "\n\nGames:\n" + strings.Join(matchups, "\n")
	}
	return truncate(desc, descCharLimit)
}

func makeTags(player string, games []nba.GameLogEntry) []string {
	tags := []string{"NBA", "basketball", "highlights", player}
	for _, g := range games {
		tags = append(tags, g.Matchup)
	}
	return tags
}
