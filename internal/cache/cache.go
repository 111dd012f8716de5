// Package cache stores built images in a SQLite database keyed by entry
// file and entry function. An entry is only served while every source file
// it was built from still has the recorded digest.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"peach/internal/ir"
	"peach/internal/modules"
)

var log = commonlog.GetLogger("peach.cache")

// ErrMiss means no valid image is stored for the key.
var ErrMiss = errors.New("cache miss")

// Cache handles SQLite storage for images.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Entry describes one stored image.
type Entry struct {
	File    string
	Fn      string
	BuildID string
	Size    int
	Built   time.Time
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS images (
		file     TEXT NOT NULL,
		fn       TEXT NOT NULL,
		build_id TEXT NOT NULL,
		built_at INTEGER NOT NULL,
		image    BLOB NOT NULL,
		PRIMARY KEY (file, fn)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return &Cache{db: db, path: path}, nil
}

func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *Cache) Path() string {
	return c.path
}

// Put stores img under (file, fn), replacing any previous entry, and
// stamps it with a fresh build id.
func (c *Cache) Put(file, fn string, img *ir.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	img.BuildID = uuid.New().String()
	data, err := ir.MarshalImage(img)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO images (file, fn, build_id, built_at, image) VALUES (?, ?, ?, ?, ?)",
		file, fn, img.BuildID, time.Now().Unix(), data,
	)
	if err != nil {
		return fmt.Errorf("saving image: %w", err)
	}
	log.Debugf("stored %s:%s as build %s (%d bytes)", file, fn, img.BuildID, len(data))
	return nil
}

// Get returns the image stored for (file, fn). Stale entries, whose
// sources changed or disappeared, are deleted and reported as ErrMiss.
func (c *Cache) Get(file, fn string) (*ir.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data []byte
	err := c.db.QueryRow("SELECT image FROM images WHERE file = ? AND fn = ?", file, fn).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debugf("miss %s:%s", file, fn)
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("querying image: %w", err)
	}

	img, err := ir.UnmarshalImage(data)
	if err == nil {
		err = fresh(img)
	}
	if err != nil {
		log.Infof("dropping stale image for %s:%s: %v", file, fn, err)
		if _, derr := c.db.Exec("DELETE FROM images WHERE file = ? AND fn = ?", file, fn); derr != nil {
			return nil, fmt.Errorf("deleting image: %w", derr)
		}
		return nil, fmt.Errorf("%w: %v", ErrMiss, err)
	}
	log.Debugf("hit %s:%s build %s", file, fn, img.BuildID)
	return img, nil
}

// fresh checks that every source of img still has its recorded digest.
func fresh(img *ir.Image) error {
	if len(img.Sources) == 0 {
		return errors.New("image records no sources")
	}
	for _, src := range img.Sources {
		digest, err := modules.Digest(src.Path)
		if err != nil {
			return err
		}
		if digest != src.Digest {
			return fmt.Errorf("%s changed", src.Path)
		}
	}
	return nil
}

// List returns every stored entry, most recent first.
func (c *Cache) List() ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query("SELECT file, fn, build_id, built_at, length(image) FROM images ORDER BY built_at DESC, file, fn")
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var built int64
		if err := rows.Scan(&e.File, &e.Fn, &e.BuildID, &built, &e.Size); err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		e.Built = time.Unix(built, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear deletes every entry and reports how many there were.
func (c *Cache) Clear() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.Exec("DELETE FROM images")
	if err != nil {
		return 0, fmt.Errorf("clearing images: %w", err)
	}
	return res.RowsAffected()
}
