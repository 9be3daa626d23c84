// Package scraper walks the recipe site in three steps: the ingredient index yields
// category pages, category pages yield recipe pages, and recipe pages yield corpus records
// parsed from their embedded JSON-LD.
package scraper

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"

	"recipeagent/recipe"
	"recipeagent/tools/storage"
)

const (
	CategoryLinksFile = "category_links.txt"
	RecipeLinksFile   = "recipe_links.txt"
	RecipesFile       = "recipes.jsonl"

	lockFile = ".scrape.lock"
)

var ErrLocked = errors.New("another scrape is already writing to the data directory")

type Config struct {
	DataDir     string
	Parallelism int
	Delay       time.Duration
}

type Scraper struct {
	fetcher Fetcher
	sink    storage.RecipeSink
	cfg     Config
}

// New returns a scraper writing link lists under cfg.DataDir and records to sink. A nil
// sink writes recipes.jsonl in the data directory.
func New(fetcher Fetcher, sink storage.RecipeSink, cfg Config) *Scraper {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if sink == nil {
		sink = storage.NewFileRecipeState(filepath.Join(cfg.DataDir, RecipesFile))
	}
	return &Scraper{fetcher: fetcher, sink: sink, cfg: cfg}
}

// DiscoverCategories fetches the ingredient index and writes the category links it finds.
func (s *Scraper) DiscoverCategories(ctx context.Context, indexURL string) ([]string, error) {
	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	slog.Info("SCRAPER: Discovering categories", "url", indexURL)
	html, err := s.fetcher.Fetch(ctx, indexURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch index page: %w", err)
	}

	links, err := CategoryLinks(html, indexURL)
	if err != nil {
		return nil, err
	}

	if err := s.writeLines(CategoryLinksFile, links); err != nil {
		return nil, err
	}
	slog.Info("SCRAPER: Categories discovered", "count", len(links))
	return links, nil
}

// DiscoverRecipes visits every category link and writes the union of recipe links found.
// Categories that fail to load are logged and skipped.
func (s *Scraper) DiscoverRecipes(ctx context.Context) ([]string, error) {
	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	categories, err := s.readLines(CategoryLinksFile)
	if err != nil {
		return nil, err
	}
	slog.Info("SCRAPER: Discovering recipe links", "categories", len(categories))

	found := make([][]string, len(categories))
	err = s.forEach(ctx, categories, func(ctx context.Context, i int, url string) {
		html, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			slog.Warn("SCRAPER: Skipping category", "url", url, "error", err)
			return
		}
		links, err := RecipeLinks(html, url)
		if err != nil {
			slog.Warn("SCRAPER: Skipping category", "url", url, "error", err)
			return
		}
		found[i] = links
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []string
	for _, group := range found {
		for _, link := range group {
			if !seen[link] {
				seen[link] = true
				links = append(links, link)
			}
		}
	}
	sort.Strings(links)

	if err := s.writeLines(RecipeLinksFile, links); err != nil {
		return nil, err
	}
	slog.Info("SCRAPER: Recipe links discovered", "count", len(links))
	return links, nil
}

// ScrapeRecipes fetches every recipe link, parses the embedded recipe and saves the corpus
// in link order. Pages that fail or carry no recipe are skipped. It returns the number of
// records written.
func (s *Scraper) ScrapeRecipes(ctx context.Context) (int, error) {
	unlock, err := s.lock()
	if err != nil {
		return 0, err
	}
	defer unlock()

	urls, err := s.readLines(RecipeLinksFile)
	if err != nil {
		return 0, err
	}
	slog.Info("SCRAPER: Scraping recipes", "pages", len(urls), "parallelism", s.cfg.Parallelism)

	records := make([]*recipe.Record, len(urls))
	err = s.forEach(ctx, urls, func(ctx context.Context, i int, url string) {
		html, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			slog.Warn("SCRAPER: Skipping recipe page", "url", url, "error", err)
			return
		}
		data, ok := ExtractRecipeJSONLD(html)
		if !ok {
			slog.Warn("SCRAPER: No recipe data on page", "url", url)
			return
		}
		rec := ParseRecipe(data, url)
		records[i] = &rec
		slog.Debug("SCRAPER: Extracted recipe", "url", url, "title", rec.Title)
	})
	if err != nil {
		return 0, err
	}

	kept := make([]recipe.Record, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			kept = append(kept, *rec)
		}
	}

	var buf bytes.Buffer
	if err := recipe.WriteJSONL(&buf, kept); err != nil {
		return 0, err
	}
	if err := s.sink.Save(ctx, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("failed to save recipes: %w", err)
	}

	slog.Info("SCRAPER: Finished", "written", len(kept), "pages", len(urls))
	return len(kept), nil
}

// forEach runs fn for every url with at most Parallelism calls in flight, pausing Delay
// before each fetch. Only context cancellation stops the walk early.
func (s *Scraper) forEach(ctx context.Context, urls []string, fn func(ctx context.Context, i int, url string)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)

	var mu sync.Mutex
	done := 0
	for i, url := range urls {
		g.Go(func() error {
			if s.cfg.Delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.cfg.Delay):
				}
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(ctx, i, url)

			mu.Lock()
			done++
			if done%50 == 0 {
				slog.Info("SCRAPER: Progress", "done", done, "total", len(urls))
			}
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// lock takes an exclusive lock on the data directory for the duration of one step.
func (s *Scraper) lock() (func(), error) {
	if err := os.MkdirAll(s.cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	fl := flock.New(filepath.Join(s.cfg.DataDir, lockFile))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock data directory: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			slog.Error("SCRAPER: Failed to release data directory lock", "error", err)
		}
	}, nil
}

func (s *Scraper) writeLines(name string, lines []string) error {
	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	path := filepath.Join(s.cfg.DataDir, name)
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (s *Scraper) readLines(name string) ([]string, error) {
	path := filepath.Join(s.cfg.DataDir, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}
