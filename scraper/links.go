package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	categorySelector = "main ul li a"
	recipeSelector   = "a[href*='/recipe/']"

	// Recipe pages live at least this many path separators deep; shallower /recipe/ links
	// point at listings.
	minRecipeSlashes = 6
)

// CategoryLinks returns the absolute category URLs linked from the ingredient index page.
func CategoryLinks(html, base string) ([]string, error) {
	return selectLinks(html, base, categorySelector, nil)
}

// RecipeLinks returns the absolute recipe URLs linked from a category page.
func RecipeLinks(html, base string) ([]string, error) {
	return selectLinks(html, base, recipeSelector, func(link string) bool {
		return strings.Count(link, "/") >= minRecipeSlashes
	})
}

func selectLinks(html, base, selector string, keep func(string) bool) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", base, err)
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}

		linkURL, err := url.Parse(href)
		if err != nil {
			return
		}
		if !linkURL.IsAbs() {
			linkURL = baseURL.ResolveReference(linkURL)
		}
		linkURL.Fragment = ""
		link := linkURL.String()

		if keep != nil && !keep(link) {
			return
		}
		if seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})
	return links, nil
}
