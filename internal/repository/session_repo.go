package repository

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/liliang-cn/ragdesk/internal/domain"
)

// SessionRepository handles session and message persistence
type SessionRepository struct {
	db  *DB
	now func() time.Time
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

// Create creates a new session
func (r *SessionRepository) Create(name string) (*domain.Session, error) {
	created := r.now().UTC()
	result, err := r.db.Exec(`
		INSERT INTO chat_sessions (name, created_at) VALUES (?, ?)
	`, name, created.Format(timeLayout))
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &domain.Session{
		ID:        domain.SessionID(strconv.FormatInt(id, 10)),
		Name:      name,
		CreatedAt: domain.Timestamp{Time: created.Truncate(time.Second), Valid: true},
	}, nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(id domain.SessionID) (*domain.Session, error) {
	key, err := rowID(id)
	if err != nil {
		return nil, nil
	}

	var (
		sessionID int64
		name      sql.NullString
		created   string
		count     int
	)
	err = r.db.QueryRow(`
		SELECT s.session_id, s.name, s.created_at, COUNT(m.id)
		FROM chat_sessions s
		LEFT JOIN chat_messages m ON s.session_id = m.session_id
		WHERE s.session_id = ?
		GROUP BY s.session_id
	`, key).Scan(&sessionID, &name, &created, &count)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &domain.Session{
		ID:           domain.SessionID(strconv.FormatInt(sessionID, 10)),
		Name:         name.String,
		MessageCount: count,
		CreatedAt:    parseTime(created),
	}, nil
}

// List retrieves all sessions, newest first
func (r *SessionRepository) List() ([]domain.Session, error) {
	rows, err := r.db.Query(`
		SELECT s.session_id, s.name, s.created_at, COUNT(m.id)
		FROM chat_sessions s
		LEFT JOIN chat_messages m ON s.session_id = m.session_id
		GROUP BY s.session_id
		ORDER BY s.created_at DESC, s.session_id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		var (
			id      int64
			name    sql.NullString
			created string
			count   int
		)
		if err := rows.Scan(&id, &name, &created, &count); err != nil {
			return nil, err
		}
		sessions = append(sessions, domain.Session{
			ID:           domain.SessionID(strconv.FormatInt(id, 10)),
			Name:         name.String,
			MessageCount: count,
			CreatedAt:    parseTime(created),
		})
	}

	return sessions, rows.Err()
}

// Delete deletes a session together with its messages. Deleting a missing
// session is not an error.
func (r *SessionRepository) Delete(id domain.SessionID) error {
	key, err := rowID(id)
	if err != nil {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chat_messages WHERE session_id = ?`, key); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM chat_sessions WHERE session_id = ?`, key); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendMessages appends messages to a session in one transaction
func (r *SessionRepository) AppendMessages(id domain.SessionID, messages ...domain.Message) error {
	key, err := rowID(id)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stamp := r.now().UTC().Format(timeLayout)
	for _, m := range messages {
		if _, err := tx.Exec(`
			INSERT INTO chat_messages (session_id, role, message, timestamp)
			VALUES (?, ?, ?, ?)
		`, key, string(m.Role), m.Message, stamp); err != nil {
			return fmt.Errorf("append %s message: %w", m.Role, err)
		}
	}
	return tx.Commit()
}

// Messages retrieves the history of a session in insertion order
func (r *SessionRepository) Messages(id domain.SessionID) ([]domain.Message, error) {
	messages := []domain.Message{}
	key, err := rowID(id)
	if err != nil {
		return messages, nil
	}

	rows, err := r.db.Query(`
		SELECT role, message, timestamp
		FROM chat_messages WHERE session_id = ?
		ORDER BY id ASC
	`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var role, text, stamp string
		if err := rows.Scan(&role, &text, &stamp); err != nil {
			return nil, err
		}
		messages = append(messages, domain.Message{
			Role:      domain.Role(role),
			Message:   text,
			Timestamp: parseTime(stamp),
		})
	}

	return messages, rows.Err()
}
