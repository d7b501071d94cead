package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"shlrec/internal/config"
	"shlrec/internal/errors"
	"shlrec/internal/types"

	"golang.org/x/net/html"
)

// Scraper fetches the SHL product catalog page and extracts assessment records
type Scraper struct {
	cfg        *config.ScrapeConfig
	httpClient *http.Client
	logger     *errors.Logger
}

// NewScraper creates a catalog scraper from configuration
func NewScraper(cfg *config.ScrapeConfig, logger *errors.Logger) *Scraper {
	return &Scraper{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Scrape fetches and parses the catalog page, retrying transient failures
func (s *Scraper) Scrape(ctx context.Context) ([]types.Assessment, error) {
	var lastErr error

	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			s.logger.Warn("Retrying catalog scrape",
				"attempt", attempt,
				"max_retries", s.cfg.MaxRetries,
				"error", lastErr.Error())
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, err := s.fetch(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		assessments, err := ParseCatalogPage(body, s.cfg.URL)
		if err != nil {
			// Parse failures are not transient, the page structure changed
			return nil, err
		}

		s.logger.Info("Catalog scrape completed",
			"assessments", len(assessments),
			"url", s.cfg.URL)
		return assessments, nil
	}

	return nil, errors.NewNetworkError(errors.ErrCodeScrapeFailed,
		fmt.Sprintf("Failed to fetch catalog after %d attempts", s.cfg.MaxRetries), lastErr)
}

func (s *Scraper) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create catalog request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("catalog request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("catalog request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read catalog page: %w", err)
	}
	return string(body), nil
}

var durationPattern = regexp.MustCompile(`(?i)\d+\s*(?:minutes?|mins?)`)

// sectionClassKeywords marks container elements that hold assessment cards
var sectionClassKeywords = []string{"product", "assessment", "catalog"}

// ParseCatalogPage extracts assessment records from the catalog HTML.
// Relative links are resolved against the scheme and host of pageURL.
func ParseCatalogPage(page, pageURL string) ([]types.Assessment, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeScrapeFailed,
			"Failed to parse catalog page", err)
	}

	baseURL := siteBase(pageURL)

	var assessments []types.Assessment
	seen := make(map[string]struct{})

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isAssessmentSection(n) {
			if a, ok := extractAssessment(n, baseURL); ok {
				if _, dup := seen[a.ID]; !dup {
					seen[a.ID] = struct{}{}
					assessments = append(assessments, a)
				}
			}
			// Cards do not nest, no need to descend further
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(assessments) == 0 {
		return nil, errors.NewInternalError(errors.ErrCodeScrapeFailed,
			"No assessment sections found on the page. The page structure might have changed.", nil)
	}
	return assessments, nil
}

// isAssessmentSection reports whether a node looks like an assessment card
func isAssessmentSection(n *html.Node) bool {
	switch n.Data {
	case "div", "article", "section":
	default:
		return false
	}
	class := strings.ToLower(attrValue(n, "class"))
	if class == "" {
		return false
	}
	for _, keyword := range sectionClassKeywords {
		if strings.Contains(class, keyword) {
			return true
		}
	}
	return false
}

// extractAssessment pulls one assessment record out of a card node
func extractAssessment(section *html.Node, baseURL string) (types.Assessment, bool) {
	name := strings.TrimSpace(nodeText(findFirst(section, "h3", "h2")))
	href := attrValue(findFirst(section, "a"), "href")
	description := strings.TrimSpace(nodeText(findFirst(section, "p")))

	if name == "" || href == "" {
		return types.Assessment{}, false
	}

	duration := durationPattern.FindString(description)
	if duration == "" {
		duration = "Not specified"
	}

	return types.Assessment{
		ID:              SlugID(name),
		Name:            name,
		URL:             resolveURL(baseURL, href),
		RemoteTesting:   true,
		AdaptiveSupport: false,
		Duration:        duration,
		TestType:        ClassifyTestType(name, description),
		Description:     description,
	}, true
}

// ClassifyTestType assigns a test type from keywords in the name and description
func ClassifyTestType(name, description string) string {
	text := strings.ToLower(name) + " " + strings.ToLower(description)

	containsAny := func(keywords ...string) bool {
		for _, keyword := range keywords {
			if strings.Contains(text, keyword) {
				return true
			}
		}
		return false
	}

	switch {
	case containsAny("cognitive", "ability", "aptitude"):
		return "Cognitive"
	case containsAny("personality", "behavior", "style"):
		return "Personality"
	case containsAny("skill", "proficiency", "knowledge"):
		return "Skills"
	default:
		return "General"
	}
}

// findFirst returns the first descendant element matching any of the tags
func findFirst(n *html.Node, tags ...string) *html.Node {
	if n == nil {
		return nil
	}
	var result *html.Node
	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if result != nil {
			return
		}
		if node != n && node.Type == html.ElementNode {
			for _, tag := range tags {
				if node.Data == tag {
					result = node
					return
				}
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return result
}

// nodeText collects the text content of a node and its descendants
func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// attrValue returns the value of an attribute on an element node
func attrValue(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// siteBase reduces a page URL to its scheme and host
func siteBase(pageURL string) string {
	rest, ok := strings.CutPrefix(pageURL, "https://")
	scheme := "https://"
	if !ok {
		rest, ok = strings.CutPrefix(pageURL, "http://")
		scheme = "http://"
		if !ok {
			return pageURL
		}
	}
	if idx := strings.Index(rest, "/"); idx >= 0 {
		rest = rest[:idx]
	}
	return scheme + rest
}

// resolveURL resolves a catalog link against the site base URL
func resolveURL(baseURL, href string) string {
	switch {
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	case strings.HasPrefix(href, "/"):
		return baseURL + href
	default:
		return baseURL + "/" + href
	}
}
