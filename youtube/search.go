package youtube

import (
	"context"
	"time"

	"nbahighlights/scrape"
	"nbahighlights/utils"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const maxSearchResults = 50

// Searcher finds highlights through the YouTube Data API. It needs only an
// API key, no OAuth.
type Searcher struct {
	service *youtube.Service
}

func NewSearcher(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Searcher, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	return &Searcher{service: service}, nil
}

func (*Searcher) Name() string { return "youtube" }

func (s *Searcher) Search(ctx context.Context, q scrape.Query, limit int) ([]scrape.Candidate, error) {
	if limit > maxSearchResults {
		limit = maxSearchResults
	}
	call := s.service.Search.List([]string{"id", "snippet"}).
		Q(q.Text).
		Type("video").
		Order("relevance").
		MaxResults(int64(limit)).
		Context(ctx)
	if q.Game != nil {
		call = call.PublishedAfter(q.Game.Date.Format(time.RFC3339))
	}

	resp, err := call.Do()
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}

	found := make([]scrape.Candidate, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		title := ""
		if item.Snippet != nil {
			title = item.Snippet.Title
		}
		found = append(found, scrape.Candidate{
			URL:    "https://www.youtube.com/watch?v=" + item.Id.VideoId,
			Title:  title,
			Source: "youtube",
		})
	}
	return found, nil
}
