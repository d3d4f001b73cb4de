// Package buildcache is an on-disk, content-addressed cache of compiled
// output, keyed by a hash of the source text. Modeled on the teacher's
// internal/cache (an in-memory "skip re-parsing unchanged input" cache);
// this is the on-disk counterpart the DOMAIN STACK calls for, backed by
// gorm.io/gorm over github.com/glebarez/sqlite (pure-Go, no cgo) instead
// of an in-process map, so the cache survives across CLI invocations.
package buildcache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// entry is the single table this cache uses. Hash is the primary key:
// sha256 of "<path>\x00<source>", so a file's cached output is only ever
// reused when both its path and exact byte content match.
type entry struct {
	Hash      string `gorm:"primaryKey"`
	Path      string
	JS        string
	UpdatedAt time.Time
}

func (entry) TableName() string { return "build_cache_entries" }

type Cache struct {
	db *gorm.DB
}

// Open opens (creating if needed) the sqlite database at path and
// migrates the cache table.
func Open(path string) (*Cache, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

func hashKey(path, source string) string {
	sum := sha256.Sum256([]byte(path + "\x00" + source))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached JS output for (path, source), if present.
func (c *Cache) Lookup(path, source string) (string, bool) {
	var row entry
	if err := c.db.First(&row, "hash = ?", hashKey(path, source)).Error; err != nil {
		return "", false
	}
	return row.JS, true
}

// Store records js as the compiled output for (path, source), replacing
// any existing entry for the same hash.
func (c *Cache) Store(path, source, js string) {
	row := entry{Hash: hashKey(path, source), Path: path, JS: js, UpdatedAt: time.Now()}
	c.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row)
}
