package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"emotionai-agent/internal/therapy"
)

const (
	DefaultSearchURL = "https://html.duckduckgo.com/html/"
	searchUserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// DuckDuckGoClient scrapes the no-JavaScript DuckDuckGo results page.
type DuckDuckGoClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewDuckDuckGoClient(baseURL string, timeout time.Duration) *DuckDuckGoClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultSearchURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &DuckDuckGoClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *DuckDuckGoClient) Search(ctx context.Context, query string, maxResults int) ([]therapy.Resource, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("search API error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return parseResults(resp.Body, maxResults)
}

func parseResults(r io.Reader, maxResults int) ([]therapy.Resource, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	resources := []therapy.Resource{}
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a").First()
		title := strings.Join(strings.Fields(link.Text()), " ")
		if title == "" {
			return true
		}
		snippet := strings.Join(strings.Fields(s.Find(".result__snippet").First().Text()), " ")
		href, _ := link.Attr("href")

		resources = append(resources, therapy.Resource{
			Title:   title,
			Snippet: snippet,
			URL:     resolveResultURL(href),
		})
		return maxResults <= 0 || len(resources) < maxResults
	})
	return resources, nil
}

// resolveResultURL unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveResultURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
