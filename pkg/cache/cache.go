// Package cache keeps raw adapter results in sqlite for a limited time so
// repeated queries do not hit the sources again.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"price-hunter/pkg/models"
	"price-hunter/pkg/scrapers"
)

const (
	kindSearch  = "search"
	kindProduct = "product"
)

type Cache struct {
	db  *sql.DB
	ttl time.Duration
	log *zap.Logger
	now func() time.Time
}

func New(dbPath string, ttl time.Duration, log *zap.Logger) (*Cache, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS results (
			source TEXT NOT NULL,
			kind TEXT NOT NULL,
			key TEXT NOT NULL,
			data TEXT NOT NULL,
			scraped_at INTEGER NOT NULL,
			PRIMARY KEY (source, kind, key)
		)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db, ttl: ttl, log: log.Named("cache"), now: time.Now}, nil
}

// Get decodes a fresh entry into dst. Expired and undecodable entries are
// misses.
func (c *Cache) Get(ctx context.Context, source, kind, key string, dst any) bool {
	var data string
	var scrapedAt int64

	err := c.db.QueryRowContext(ctx,
		`SELECT data, scraped_at FROM results WHERE source = ? AND kind = ? AND key = ?`,
		source, kind, key,
	).Scan(&data, &scrapedAt)
	if err != nil {
		return false
	}

	if c.now().Sub(time.Unix(0, scrapedAt)) > c.ttl {
		return false
	}

	if err := json.Unmarshal([]byte(data), dst); err != nil {
		c.log.Warn("failed to decode entry", zap.String("source", source), zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Cache) Set(ctx context.Context, source, kind, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("failed to encode entry", zap.String("source", source), zap.String("key", key), zap.Error(err))
		return
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO results (source, kind, key, data, scraped_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(source, kind, key)
		 DO UPDATE SET data = excluded.data, scraped_at = excluded.scraped_at`,
		source, kind, key, string(data), c.now().UnixNano(),
	)
	if err != nil {
		c.log.Warn("failed to store entry", zap.String("source", source), zap.String("key", key), zap.Error(err))
	}
}

// Purge removes expired entries.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM results WHERE scraped_at < ?`, c.now().Add(-c.ttl).UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Wrap returns s with its results cached. Failures are never cached.
func Wrap(s scrapers.Scraper, c *Cache) scrapers.Scraper {
	if c == nil {
		return s
	}
	return &cachedScraper{Scraper: s, cache: c}
}

type cachedScraper struct {
	scrapers.Scraper
	cache *Cache
}

func (s *cachedScraper) Search(ctx context.Context, query string, maxResults int) ([]models.RawProduct, error) {
	key := fmt.Sprintf("%s|%d", strings.ToLower(strings.TrimSpace(query)), maxResults)

	var items []models.RawProduct
	if s.cache.Get(ctx, s.ID(), kindSearch, key, &items) {
		return items, nil
	}

	items, err := s.Scraper.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, s.ID(), kindSearch, key, items)
	return items, nil
}

func (s *cachedScraper) ScrapeOne(ctx context.Context, productURL string) (*models.RawProduct, error) {
	var p models.RawProduct
	if s.cache.Get(ctx, s.ID(), kindProduct, productURL, &p) {
		return &p, nil
	}

	got, err := s.Scraper.ScrapeOne(ctx, productURL)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, s.ID(), kindProduct, productURL, got)
	return got, nil
}
