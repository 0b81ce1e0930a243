package storage

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store persists the frontier, crawled pages, and the link graph in SQLite.
// All statements are serialized through one lock; WAL with synchronous=NORMAL
// lets external readers observe progress while the crawl runs.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if necessary) the database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// MarkEnqueued inserts url into the frontier if absent. It returns true iff a
// row was inserted, i.e. the URL was neither queued nor racing another worker.
func (s *Store) MarkEnqueued(url string, depth int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("INSERT OR IGNORE INTO frontier(url, depth) VALUES (?, ?)", url, depth)
	if err != nil {
		return false, fmt.Errorf("mark enqueued: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark enqueued: %w", err)
	}
	return n > 0, nil
}

// Dequeue removes url from the persisted frontier.
func (s *Store) Dequeue(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM frontier WHERE url = ?", url); err != nil {
		return fmt.Errorf("dequeue: %w", err)
	}
	return nil
}

// SeenURL reports whether url exists in either pages or frontier.
func (s *Store) SeenURL(url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var one int
	err := s.db.QueryRow("SELECT 1 FROM pages WHERE url = ? LIMIT 1", url).Scan(&one)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("seen url: %w", err)
	}
	err = s.db.QueryRow("SELECT 1 FROM frontier WHERE url = ? LIMIT 1", url).Scan(&one)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("seen url: %w", err)
	}
	return false, nil
}

// HasPage reports whether url has a saved page record. This is the
// authoritative check behind Bloom filter positives.
func (s *Store) HasPage(url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var one int
	err := s.db.QueryRow("SELECT 1 FROM pages WHERE url = ? LIMIT 1", url).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has page: %w", err)
	}
	return true, nil
}

// LoadFrontier returns all persisted frontier rows ordered by ascending depth,
// so resumed crawls keep their breadth-first shape.
func (s *Store) LoadFrontier() ([]FrontierRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT url, depth FROM frontier ORDER BY depth ASC")
	if err != nil {
		return nil, fmt.Errorf("load frontier: %w", err)
	}
	defer rows.Close()

	var entries []FrontierRow
	for rows.Next() {
		var row FrontierRow
		if err := rows.Scan(&row.URL, &row.Depth); err != nil {
			return nil, fmt.Errorf("load frontier: %w", err)
		}
		entries = append(entries, row)
	}
	return entries, rows.Err()
}

// IterPagesURLs streams page URLs to fn in batches of at most batchSize,
// keyset-paginated so peak memory stays bounded on large stores. Iteration
// stops on the first error fn returns.
func (s *Store) IterPagesURLs(batchSize int, fn func(urls []string) error) error {
	if batchSize < 1 {
		batchSize = 1
	}
	last := ""
	for {
		batch, err := s.pageURLsAfter(last, batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		last = batch[len(batch)-1]
	}
}

func (s *Store) pageURLsAfter(last string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT url FROM pages WHERE url > ? ORDER BY url ASC LIMIT ?", last, limit)
	if err != nil {
		return nil, fmt.Errorf("iter pages: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("iter pages: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// SavePage upserts a page row; the last writer wins.
func (s *Store) SavePage(rec PageRecord, depth int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO pages(url, status, content_type, title, description, text, depth)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.URL, rec.Status, rec.ContentType, rec.Title, rec.Description, rec.Text, depth)
	if err != nil {
		return fmt.Errorf("save page: %w", err)
	}
	return nil
}

// AddLinks bulk-inserts edges from fromURL, ignoring duplicates.
func (s *Store) AddLinks(fromURL string, toURLs []string) error {
	if len(toURLs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("add links: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO links(from_url, to_url) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("add links: %w", err)
	}
	defer stmt.Close()

	for _, to := range toURLs {
		if _, err := stmt.Exec(fromURL, to); err != nil {
			return fmt.Errorf("add links: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("add links: %w", err)
	}
	return nil
}

// LoadPages returns every page row, ordered by crawl time then URL. Used by
// the report exporter.
func (s *Store) LoadPages() ([]PageRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT url, status, content_type, title, description, text, depth, crawled_at
		FROM pages ORDER BY crawled_at ASC, url ASC`)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	defer rows.Close()

	var pages []PageRow
	for rows.Next() {
		var p PageRow
		if err := rows.Scan(&p.URL, &p.Status, &p.ContentType, &p.Title, &p.Description, &p.Text, &p.Depth, &p.CrawledAt); err != nil {
			return nil, fmt.Errorf("load pages: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// CountPages returns the number of saved page records.
func (s *Store) CountPages() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM pages").Scan(&n); err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}
