package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Profile struct {
	UserID         string
	XP             int
	TotalWins      int
	TotalGames     int
	ImpostorWins   int
	ImpostorStreak int
	UpdatedAt      time.Time
}

// Rank returns the display rank for the profile's xp.
func (p Profile) Rank() string {
	switch {
	case p.XP >= 5000:
		return "GHOST"
	case p.XP >= 2500:
		return "ARCHITECT"
	case p.XP >= 1000:
		return "OPERATOR"
	case p.XP >= 250:
		return "RUNNER"
	default:
		return "SCRIPT KIDDIE"
	}
}

type LeaderboardEntry struct {
	UserID       string
	DisplayName  string
	XP           int
	TotalWins    int
	ImpostorWins int
}

const (
	xpWin           = 100
	xpLoss          = 25
	xpImpostorBonus = 50
)

type ProfileStore struct {
	db *pgxpool.Pool
}

func NewProfileStore(db *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) InitForUser(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_profiles (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

func (s *ProfileStore) Get(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := s.db.QueryRow(ctx, `
		SELECT user_id, xp, total_wins, total_games, impostor_wins, impostor_win_streak, updated_at
		FROM user_profiles
		WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.XP, &p.TotalWins, &p.TotalGames,
		&p.ImpostorWins, &p.ImpostorStreak, &p.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// a missing row reads as a zeroed profile
		return Profile{UserID: userID}, nil
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// RecordResult folds one finished game into the profile. The impostor win
// streak only moves on games the user played as the impostor.
func (s *ProfileStore) RecordResult(ctx context.Context, userID string, won, wasImpostor bool) error {
	xp := xpLoss
	wins := 0
	impWins := 0
	if won {
		xp = xpWin
		wins = 1
		if wasImpostor {
			xp += xpImpostorBonus
			impWins = 1
		}
	}

	streakExpr := "impostor_win_streak"
	if wasImpostor {
		if won {
			streakExpr = "impostor_win_streak + 1"
		} else {
			streakExpr = "0"
		}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO user_profiles (user_id, xp, total_wins, total_games, impostor_wins, impostor_win_streak)
		VALUES ($1, $2, $3, 1, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			xp = user_profiles.xp + EXCLUDED.xp,
			total_wins = user_profiles.total_wins + EXCLUDED.total_wins,
			total_games = user_profiles.total_games + 1,
			impostor_wins = user_profiles.impostor_wins + EXCLUDED.impostor_wins,
			impostor_win_streak = `+streakExpr+`,
			updated_at = now()
	`, userID, xp, wins, impWins, initialStreak(won, wasImpostor))
	return err
}

func initialStreak(won, wasImpostor bool) int {
	if won && wasImpostor {
		return 1
	}
	return 0
}

type LeaderboardOrder string

const (
	ByWins         LeaderboardOrder = "wins"
	ByImpostorWins LeaderboardOrder = "impostor"
)

func (s *ProfileStore) Leaderboard(ctx context.Context, order LeaderboardOrder, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	col := "p.total_wins"
	if order == ByImpostorWins {
		col = "p.impostor_wins"
	}

	rows, err := s.db.Query(ctx, `
		SELECT p.user_id, u.display_name, p.xp, p.total_wins, p.impostor_wins
		FROM user_profiles p
		JOIN users u ON u.id = p.user_id
		ORDER BY `+col+` DESC, p.xp DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.XP, &e.TotalWins, &e.ImpostorWins); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
