package repository

import (
	"database/sql"

	"github.com/liliang-cn/ragdesk/internal/domain"
)

// ChunkRepository handles corpus chunk persistence
type ChunkRepository struct {
	db *DB
}

// NewChunkRepository creates a new chunk repository
func NewChunkRepository(db *DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceTable replaces every chunk of table with chunks. IDs are assigned
// by the store.
func (r *ChunkRepository) ReplaceTable(table string, chunks []domain.Chunk) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chunks WHERE source_table = ?`, table); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chunks (source_table, page_number, chunk_text) VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.Exec(table, c.Page, c.Text); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// List retrieves all chunks
func (r *ChunkRepository) List() ([]domain.Chunk, error) {
	rows, err := r.db.Query(`
		SELECT chunk_id, source_table, page_number, chunk_text
		FROM chunks ORDER BY chunk_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var page sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Table, &page, &c.Text); err != nil {
			return nil, err
		}
		c.Page = int(page.Int64)
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

// Count returns the total number of chunks
func (r *ChunkRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}
