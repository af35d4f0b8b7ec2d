package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Match struct {
	ID         string
	RoomCode   string
	Winner     string
	SecretWord string
	Language   string
	Duration   time.Duration
	PlayedAt   time.Time
}

type MatchPlayer struct {
	MatchID     string
	UserID      string
	PlayerName  string
	WasImpostor bool
	Won         bool
	Eliminated  bool
}

type MatchStore struct {
	db *pgxpool.Pool
}

func NewMatchStore(db *pgxpool.Pool) *MatchStore {
	return &MatchStore{db: db}
}

// Create writes the match row and its participants in one transaction.
func (s *MatchStore) Create(ctx context.Context, m Match, players []MatchPlayer) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO matches (id, room_code, winner, secret_word, language, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.RoomCode, m.Winner, m.SecretWord, m.Language, m.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	for _, p := range players {
		_, err = tx.Exec(ctx, `
			INSERT INTO match_players (match_id, user_id, player_name, was_impostor, won, eliminated)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, m.ID, nullable(p.UserID), p.PlayerName, p.WasImpostor, p.Won, p.Eliminated)
		if err != nil {
			return fmt.Errorf("insert match player: %w", err)
		}
	}

	return tx.Commit(ctx)
}

type MatchHistoryEntry struct {
	Match
	WasImpostor bool
	Won         bool
}

func (s *MatchStore) HistoryForUser(ctx context.Context, userID string, limit int) ([]MatchHistoryEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT m.id, m.room_code, m.winner, m.secret_word, m.language, m.duration_ms, m.played_at,
		       mp.was_impostor, mp.won
		FROM matches m
		JOIN match_players mp ON mp.match_id = m.id
		WHERE mp.user_id = $1
		ORDER BY m.played_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MatchHistoryEntry
	for rows.Next() {
		var e MatchHistoryEntry
		var durationMS int64
		if err := rows.Scan(&e.ID, &e.RoomCode, &e.Winner, &e.SecretWord, &e.Language,
			&durationMS, &e.PlayedAt, &e.WasImpostor, &e.Won); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// nullable maps "" to NULL for guest players with no account.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
