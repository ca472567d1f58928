package vm

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// PlanCache stores compiled plans keyed by the SHA-256 of their source, so
// repeated runs of unchanged programs skip the front end entirely. Plans are
// stored in wire format, which keeps the cache portable across processes.
type PlanCache struct {
	db *sql.DB
}

// OpenPlanCache opens (creating if needed) a cache database at path.
// Use ":memory:" for an ephemeral cache.
func OpenPlanCache(path string) (*PlanCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening plan cache: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS plans (
		hash    TEXT PRIMARY KEY,
		data    BLOB NOT NULL,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing plan cache: %w", err)
	}
	return &PlanCache{db: db}, nil
}

// Close releases the underlying database.
func (c *PlanCache) Close() error {
	return c.db.Close()
}

// SourceKey is the cache key for a source text.
func SourceKey(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached plan for a source text, or (nil, false, nil) on a
// miss. A stored plan that no longer decodes is treated as a miss.
func (c *PlanCache) Get(source string) ([]Instruction, bool, error) {
	var data []byte
	err := c.db.QueryRow(`SELECT data FROM plans WHERE hash = ?`, SourceKey(source)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading plan cache: %w", err)
	}
	plan, err := UnmarshalPlan(data)
	if err != nil {
		return nil, false, nil
	}
	return plan, true, nil
}

// Put stores a plan under its source's key, replacing any previous entry.
func (c *PlanCache) Put(source string, plan []Instruction) error {
	data, err := MarshalPlan(plan)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO plans (hash, data, created) VALUES (?, ?, ?)`,
		SourceKey(source), data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing plan cache: %w", err)
	}
	return nil
}
