package utils

import (
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// NewHTTPClient returns a client with a cookie jar so nba.com keeps the
// session cookies it hands out between the search and video pages.
func NewHTTPClient(timeout time.Duration) *http.Client {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		// cookiejar.New never fails with a non-nil options value
		panic(err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Jar:     jar,
		Timeout: timeout,
	}
}
