// Package crawl discovers same-origin links on a seed page.
package crawl

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/kalambet/pwgen/internal/fetch"
)

var skippedSchemes = []string{"javascript:", "mailto:", "tel:"}

// Crawler collects the links of a single page that stay on the base host.
// It does not recurse.
type Crawler struct {
	fetcher fetch.Fetcher
}

func New(f fetch.Fetcher) *Crawler {
	return &Crawler{fetcher: f}
}

// Crawl fetches base and returns its same-host links in first-seen order,
// absolute and without fragments.
func (c *Crawler) Crawl(ctx context.Context, base string) ([]string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if baseURL.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", base)
	}

	body, err := c.fetcher.Fetch(ctx, base)
	if err != nil {
		return nil, err
	}
	return Links(baseURL, body)
}

// Links extracts the same-host anchors from an HTML document.
func Links(base *url.URL, document string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	seen := make(map[string]bool)
	links := []string{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if link, ok := resolve(base, attr(n, "href")); ok && !seen[link] {
				seen[link] = true
				links = append(links, link)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return links, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Host != base.Host {
		return "", false
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}
