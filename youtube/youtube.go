package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"nbahighlights/utils"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Uploader publishes finished reels. The OAuth token is cached in
// TokenFile; the first run walks the user through the consent URL.
type Uploader struct {
	SecretFile string
	TokenFile  string
	In         io.Reader
	Out        io.Writer

	mu      sync.Mutex
	service *youtube.Service
}

func NewUploader(secretFile, tokenFile string) *Uploader {
	return &Uploader{
		SecretFile: secretFile,
		TokenFile:  tokenFile,
		In:         os.Stdin,
		Out:        os.Stdout,
	}
}

func (u *Uploader) getService(ctx context.Context) (*youtube.Service, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.service != nil {
		return u.service, nil
	}
	oauthConfig, err := OAuthConfig(u.SecretFile)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	token, err := u.getToken(ctx, oauthConfig)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	client := oauthConfig.Client(ctx, token)
	service, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	u.service = service
	return service, nil
}

func (u *Uploader) getToken(ctx context.Context, oauthConfig *oauth2.Config) (*oauth2.Token, error) {
	token, err := tokenFromFile(u.TokenFile)
	if err != nil {
		token, err = u.getTokenFromWeb(ctx, oauthConfig)
		if err != nil {
			return nil, utils.ErrorWithTrace(err)
		}
		if err := saveToken(u.TokenFile, token); err != nil {
			return nil, utils.ErrorWithTrace(err)
		}
		return token, nil
	}

	newTok, err := oauthConfig.TokenSource(ctx, token).Token()
	if err != nil {
		webTok, err2 := u.getTokenFromWeb(ctx, oauthConfig)
		if err2 != nil {
			return nil, errors.Join(err, err2)
		}
		if err := saveToken(u.TokenFile, webTok); err != nil {
			return nil, utils.ErrorWithTrace(err)
		}
		return webTok, nil
	}
	if newTok.AccessToken != token.AccessToken {
		if err := saveToken(u.TokenFile, newTok); err != nil {
			return nil, utils.ErrorWithTrace(err)
		}
	}
	return newTok, nil
}

func (u *Uploader) getTokenFromWeb(ctx context.Context, oauthConfig *oauth2.Config) (*oauth2.Token, error) {
	authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(u.Out, "Go to the following link in your browser then type the "+
		"authorization code: \n%v\n", authURL)

	var code string
	if _, err := fmt.Fscan(u.In, &code); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}

	tok, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(t); err != nil {
		return nil, err
	}
	return t, nil
}

// saveToken uses a file path to create a file and store the
// token in it.
func saveToken(file string, token *oauth2.Token) error {
	f, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

func OAuthConfig(secretFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(secretFile)
	if err != nil {
		return nil, err
	}
	return google.ConfigFromJSON(b, youtube.YoutubeUploadScope)
}

// Upload sends the reel at path and returns its embed URL.
func (u *Uploader) Upload(ctx context.Context, path, title, description string, tags []string) (string, error) {
	service, err := u.getService(ctx)
	if err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", utils.ErrorWithTrace(err)
	}
	defer file.Close()

	upload := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: description,
			CategoryId:  "17", // 17 => Sports
			Tags:        tags,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           "unlisted",
			MadeForKids:             false,
			SelfDeclaredMadeForKids: false,
		},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, upload)
	resp, err := call.Media(file, googleapi.ChunkSize(32*1024*1024)).Context(ctx).Do()
	if err != nil {
		return "", utils.ErrorWithTrace(err)
	}
	return fmt.Sprintf("https://www.youtube.com/embed/%s", resp.Id), nil
}
