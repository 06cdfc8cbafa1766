// Package archive is the durable persistence collaborator: committed moves
// and final results go to Postgres, where the history CRUD API reads them.
// Schema DDL is owned by that side.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/castlane/chesslive/internal/live"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveMove appends one committed move. Move numbers are unique per game; a
// replayed insert of the same (game_id, move_number) is rejected by the
// primary key, which keeps the contiguity invariant enforceable here too.
func (r *Repository) SaveMove(ctx context.Context, rec *live.MoveRecord) error {
	q := `INSERT INTO game_moves (
	    game_id, player, move_number, move_notation, fen_after_move, played_at
	  ) VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.db.ExecContext(ctx, q,
		rec.GameID, rec.Player, rec.Number, rec.SAN, rec.FENAfter, rec.PlayedAt,
	)
	return err
}

// SetGameResult records a terminal status/result pair.
func (r *Repository) SetGameResult(ctx context.Context, gameID string, status live.Status, result live.Result) error {
	q := `UPDATE games SET status = $2, result = $3, updated_at = $4 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, gameID, string(status), string(result), time.Now())
	return err
}

// LoadMoves returns the game's move history ordered by move number.
func (r *Repository) LoadMoves(ctx context.Context, gameID string) ([]*live.MoveRecord, error) {
	q := `SELECT game_id, player, move_number, move_notation, fen_after_move, played_at
	  FROM game_moves WHERE game_id = $1 ORDER BY move_number`
	rows, err := r.db.QueryContext(ctx, q, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*live.MoveRecord
	for rows.Next() {
		rec := &live.MoveRecord{}
		if err := rows.Scan(&rec.GameID, &rec.Player, &rec.Number, &rec.SAN, &rec.FENAfter, &rec.PlayedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
