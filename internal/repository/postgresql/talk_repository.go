package repository

import (
	"database/sql"
	"fmt"

	entity "simbi-market/internal/domain"

	"github.com/google/uuid"

	"github.com/lib/pq"
)

type TalkRepository interface {
	Insert(tx *sql.Tx, talk *entity.Talk, userIDs []uuid.UUID, creatorID uuid.UUID) error
	GetByID(id uuid.UUID) (*entity.Talk, error)
	Participants(talkID uuid.UUID) ([]uuid.UUID, error)
	SetStatus(tx *sql.Tx, id uuid.UUID, status string) error
	SetService(tx *sql.Tx, id, serviceID uuid.UUID) error
	InsertMessage(tx *sql.Tx, msg *entity.Message) error
	TouchForActor(talkID, actorID uuid.UUID) error
	MarkRead(talkIDs []uuid.UUID, userID uuid.UUID) error
	MarkUnread(talkIDs []uuid.UUID, userID uuid.UUID) error
	Archive(talkIDs []uuid.UUID, userID uuid.UUID) error
	Unarchive(talkIDs []uuid.UUID, userID uuid.UUID) error
	UnreadCount(userID uuid.UUID) (int, error)
	TabCounts(userID uuid.UUID) (*entity.TabCounts, error)
}

type talkRepository struct {
	db *sql.DB
}

func NewTalkRepository(db *sql.DB) TalkRepository {
	return &talkRepository{db: db}
}

func (r *talkRepository) Insert(tx *sql.Tx, talk *entity.Talk, userIDs []uuid.UUID, creatorID uuid.UUID) error {
	var serviceID interface{}
	if talk.ServiceID != uuid.Nil {
		serviceID = talk.ServiceID
	}
	query := `
		INSERT INTO talks (id, service_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
	`
	if _, err := tx.Exec(query, talk.ID, serviceID, talk.Status); err != nil {
		return fmt.Errorf("insert talk: %w", err)
	}

	tuQuery := `
		INSERT INTO talk_users (talk_id, user_id, read_at, seen_at)
		VALUES ($1, $2, CASE WHEN $3 THEN NOW() END, CASE WHEN $3 THEN NOW() END)
	`
	for _, userID := range userIDs {
		if _, err := tx.Exec(tuQuery, talk.ID, userID, userID == creatorID); err != nil {
			return fmt.Errorf("insert talk user: %w", err)
		}
	}
	return nil
}

func (r *talkRepository) GetByID(id uuid.UUID) (*entity.Talk, error) {
	var talk entity.Talk
	var serviceID sql.NullString
	query := `SELECT id, service_id, status, created_at, updated_at FROM talks WHERE id = $1`
	err := r.db.QueryRow(query, id).Scan(&talk.ID, &serviceID, &talk.Status, &talk.CreatedAt, &talk.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan talk: %w", err)
	}
	if serviceID.Valid {
		talk.ServiceID, _ = uuid.Parse(serviceID.String)
	}
	return &talk, nil
}

func (r *talkRepository) Participants(talkID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(`SELECT user_id FROM talk_users WHERE talk_id = $1`, talkID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var users []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func (r *talkRepository) SetStatus(tx *sql.Tx, id uuid.UUID, status string) error {
	query := `UPDATE talks SET status = $1, updated_at = NOW() WHERE id = $2`
	if _, err := tx.Exec(query, status, id); err != nil {
		return fmt.Errorf("update talk status: %w", err)
	}
	return nil
}

func (r *talkRepository) SetService(tx *sql.Tx, id, serviceID uuid.UUID) error {
	query := `UPDATE talks SET service_id = $1, updated_at = NOW() WHERE id = $2`
	if _, err := tx.Exec(query, serviceID, id); err != nil {
		return fmt.Errorf("update talk service: %w", err)
	}
	return nil
}

func (r *talkRepository) InsertMessage(tx *sql.Tx, msg *entity.Message) error {
	query := `
		INSERT INTO messages (id, talk_id, author_id, content, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	if _, err := tx.Exec(query, msg.ID, msg.TalkID, msg.AuthorID, msg.Content); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// TouchForActor marks the talk read for the actor, unread for the other
// participant, and unarchives it for both.
func (r *talkRepository) TouchForActor(talkID, actorID uuid.UUID) error {
	query := `
		UPDATE talk_users
		SET read_at = CASE WHEN user_id = $2 THEN NOW() END,
		    seen_at = CASE WHEN user_id = $2 THEN NOW() ELSE seen_at END,
		    archived_at = NULL
		WHERE talk_id = $1
	`
	if _, err := r.db.Exec(query, talkID, actorID); err != nil {
		return fmt.Errorf("touch talk users: %w", err)
	}
	return nil
}

func (r *talkRepository) MarkRead(talkIDs []uuid.UUID, userID uuid.UUID) error {
	query := `UPDATE talk_users SET read_at = NOW(), seen_at = NOW() WHERE talk_id = ANY($1) AND user_id = $2`
	if _, err := r.db.Exec(query, pq.Array(talkIDs), userID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (r *talkRepository) MarkUnread(talkIDs []uuid.UUID, userID uuid.UUID) error {
	query := `UPDATE talk_users SET read_at = NULL, seen_at = NOW() WHERE talk_id = ANY($1) AND user_id = $2`
	if _, err := r.db.Exec(query, pq.Array(talkIDs), userID); err != nil {
		return fmt.Errorf("mark unread: %w", err)
	}
	return nil
}

func (r *talkRepository) Archive(talkIDs []uuid.UUID, userID uuid.UUID) error {
	query := `
		UPDATE talk_users SET archived_at = NOW(), read_at = NOW(), seen_at = NOW()
		WHERE talk_id = ANY($1) AND user_id = $2
	`
	if _, err := r.db.Exec(query, pq.Array(talkIDs), userID); err != nil {
		return fmt.Errorf("archive talks: %w", err)
	}
	return nil
}

func (r *talkRepository) Unarchive(talkIDs []uuid.UUID, userID uuid.UUID) error {
	query := `UPDATE talk_users SET archived_at = NULL WHERE talk_id = ANY($1) AND user_id = $2`
	if _, err := r.db.Exec(query, pq.Array(talkIDs), userID); err != nil {
		return fmt.Errorf("unarchive talks: %w", err)
	}
	return nil
}

func (r *talkRepository) UnreadCount(userID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM talk_users WHERE user_id = $1 AND read_at IS NULL`
	if err := r.db.QueryRow(query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (r *talkRepository) TabCounts(userID uuid.UUID) (*entity.TabCounts, error) {
	var counts entity.TabCounts
	query := `
		SELECT
			COUNT(*) FILTER (WHERE tu.read_at IS NULL AND tu.archived_at IS NULL AND t.status = 'open'),
			COUNT(*) FILTER (WHERE tu.read_at IS NULL AND t.status = 'in_progress'),
			COUNT(*) FILTER (WHERE tu.archived_at IS NOT NULL)
		FROM talk_users tu
		JOIN talks t ON t.id = tu.talk_id
		WHERE tu.user_id = $1
	`
	if err := r.db.QueryRow(query, userID).Scan(&counts.Inbox, &counts.Deals, &counts.Archived); err != nil {
		return nil, fmt.Errorf("count tabs: %w", err)
	}
	return &counts, nil
}
