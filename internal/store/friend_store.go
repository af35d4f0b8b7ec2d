package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrFriendRequestExists = errors.New("friend request already exists")
	ErrFriendNotFound      = errors.New("friend request not found")
)

type FriendStatus string

const (
	FriendPending  FriendStatus = "pending"
	FriendAccepted FriendStatus = "accepted"
)

type Friend struct {
	UserID      string
	DisplayName string
	Status      FriendStatus
	Requested   bool // true when the querying user sent the request
	CreatedAt   time.Time
}

type FriendStore struct {
	db *pgxpool.Pool
}

func NewFriendStore(db *pgxpool.Pool) *FriendStore {
	return &FriendStore{db: db}
}

func (s *FriendStore) Request(ctx context.Context, fromID, toID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO friends (requester_id, addressee_id, status)
		VALUES ($1, $2, 'pending')
	`, fromID, toID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrFriendRequestExists
	}
	return err
}

func (s *FriendStore) Accept(ctx context.Context, userID, requesterID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE friends SET status = 'accepted'
		WHERE requester_id = $1 AND addressee_id = $2 AND status = 'pending'
	`, requesterID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFriendNotFound
	}
	return nil
}

func (s *FriendStore) Remove(ctx context.Context, userID, otherID string) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM friends
		WHERE (requester_id = $1 AND addressee_id = $2)
		   OR (requester_id = $2 AND addressee_id = $1)
	`, userID, otherID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFriendNotFound
	}
	return nil
}

// List returns both directions: accepted friendships and pending requests
// involving the user.
func (s *FriendStore) List(ctx context.Context, userID string) ([]Friend, error) {
	rows, err := s.db.Query(ctx, `
		SELECT
			CASE WHEN f.requester_id = $1 THEN f.addressee_id ELSE f.requester_id END,
			u.display_name,
			f.status,
			f.requester_id = $1,
			f.created_at
		FROM friends f
		JOIN users u ON u.id = CASE WHEN f.requester_id = $1 THEN f.addressee_id ELSE f.requester_id END
		WHERE f.requester_id = $1 OR f.addressee_id = $1
		ORDER BY f.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Friend
	for rows.Next() {
		var f Friend
		if err := rows.Scan(&f.UserID, &f.DisplayName, &f.Status, &f.Requested, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
