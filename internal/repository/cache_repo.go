package repository

import (
	"database/sql"
	"time"
)

// CacheRepository handles the question to answer cache
type CacheRepository struct {
	db *DB
}

// NewCacheRepository creates a new cache repository
func NewCacheRepository(db *DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Get returns the cached answer for question, if any
func (r *CacheRepository) Get(question string) (string, bool, error) {
	var answer string
	err := r.db.QueryRow(`SELECT answer FROM question_cache WHERE question = ?`, question).Scan(&answer)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return answer, answer != "", nil
}

// Put stores or replaces the answer for question
func (r *CacheRepository) Put(question, answer string) error {
	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO question_cache (question, answer, saved_at)
		VALUES (?, ?, ?)
	`, question, answer, time.Now().UTC().Format(timeLayout))
	return err
}

// Clear removes every cached answer
func (r *CacheRepository) Clear() error {
	_, err := r.db.Exec(`DELETE FROM question_cache`)
	return err
}
