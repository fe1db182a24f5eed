package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/gridrank/internal/adapters/repository"
	"github.com/okian/gridrank/internal/domain/model"
	"github.com/okian/gridrank/pkg/logger"
	"github.com/okian/gridrank/pkg/metrics"
)

const snapshotCols = `kind, entity_id, season, preseason, week, games,
	opponent_rating, prior_rating, new_rating, updated_at`

const (
	newestFirst = ` ORDER BY season DESC, preseason ASC, week DESC`
	oldestFirst = ` ORDER BY season ASC, preseason DESC, week ASC`
)

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanSnapshot(row interface{ Scan(...any) error }) (model.Snapshot, error) {
	var (
		sn               model.Snapshot
		kind, games      string
		preseason        int
		updatedAtNanosec int64
	)
	err := row.Scan(&kind, &sn.Entity.ID, &sn.Season, &preseason, &sn.Week, &games,
		&sn.OpponentRating, &sn.PriorRating, &sn.NewRating, &updatedAtNanosec)
	if err != nil {
		return model.Snapshot{}, err
	}
	sn.Entity.Kind = model.EntityKind(kind)
	sn.Preseason = preseason != 0
	sn.UpdatedAt = time.Unix(0, updatedAtNanosec).UTC()
	if err := json.Unmarshal([]byte(games), &sn.Games); err != nil {
		return model.Snapshot{}, fmt.Errorf("sqlstore: games of %s: %w", sn.Entity, err)
	}
	return sn, nil
}

func (s *Store) queryOne(ctx context.Context, q querier, ref model.EntityRef, where string, args ...any) (model.Snapshot, error) {
	query := s.rebind(`SELECT ` + snapshotCols + ` FROM rating_snapshots
		WHERE kind = ? AND entity_id = ? AND ` + where + newestFirst + ` LIMIT 1`)
	all := append([]any{string(ref.Kind), ref.ID}, args...)
	sn, err := scanSnapshot(q.QueryRowContext(ctx, query, all...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, fmt.Errorf("%w: %s", repository.ErrNotFound, ref)
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("sqlstore: read %s: %w", ref, err)
	}
	return sn, nil
}

func beforeClause(pos model.Position) (string, []any) {
	if pos.Preseason {
		return `season < ?`, []any{pos.Season}
	}
	return `(season < ? OR (season = ? AND (preseason = 1 OR week < ?)))`,
		[]any{pos.Season, pos.Season, pos.Week}
}

// LatestAtOrBefore implements repository.RatingStore.
func (s *Store) LatestAtOrBefore(ctx context.Context, ref model.EntityRef, season, week int) (model.Snapshot, error) {
	defer observe("latest_at_or_before", time.Now())
	return s.queryOne(ctx, s.db, ref, `season = ? AND (preseason = 1 OR week <= ?)`, season, week)
}

// LatestBefore implements repository.RatingStore.
func (s *Store) LatestBefore(ctx context.Context, ref model.EntityRef, pos model.Position) (model.Snapshot, error) {
	defer observe("latest_before", time.Now())
	where, args := beforeClause(pos)
	return s.queryOne(ctx, s.db, ref, where, args...)
}

// Latest implements repository.RatingStore.
func (s *Store) Latest(ctx context.Context, ref model.EntityRef) (model.Snapshot, error) {
	return s.queryOne(ctx, s.db, ref, `1 = 1`)
}

// Timeline implements repository.RatingStore.
func (s *Store) Timeline(ctx context.Context, ref model.EntityRef) ([]model.Snapshot, error) {
	defer observe("timeline", time.Now())
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+snapshotCols+` FROM rating_snapshots
		WHERE kind = ? AND entity_id = ?`+oldestFirst), string(ref.Kind), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: timeline %s: %w", ref, err)
	}
	defer rows.Close()
	var out []model.Snapshot
	for rows.Next() {
		sn, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: timeline %s: %w", ref, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, ref)
	}
	return out, nil
}

// Upsert implements repository.RatingStore.
func (s *Store) Upsert(ctx context.Context, snap model.Snapshot) (err error) {
	defer observe("upsert", time.Now())
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = s.now()
	}
	if snap.Preseason {
		snap.Week = 0
	}
	games := snap.Games
	if games == nil {
		games = []string{}
	}
	gamesJSON, err := json.Marshal(games)
	if err != nil {
		return fmt.Errorf("sqlstore: encode games: %w", err)
	}

	mu := s.lock(snap.Entity.String())
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			metrics.RecordRatingWriteError(string(snap.Entity.Kind))
		}
	}()

	where, args := beforeClause(snap.Position())
	prev, perr := s.queryOne(ctx, tx, snap.Entity, where, args...)
	found := perr == nil
	if perr != nil && !errors.Is(perr, repository.ErrNotFound) {
		return perr
	}
	if found && !repository.PredecessorScope(snap, prev) {
		found = false
	}
	if err = repository.CheckChain(snap, prev, found); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO rating_snapshots (`+snapshotCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, entity_id, season, preseason, week) DO UPDATE SET
			games = excluded.games,
			opponent_rating = excluded.opponent_rating,
			prior_rating = excluded.prior_rating,
			new_rating = excluded.new_rating,
			updated_at = excluded.updated_at`),
		string(snap.Entity.Kind), snap.Entity.ID, snap.Season, boolInt(snap.Preseason), snap.Week,
		string(gamesJSON), snap.OpponentRating, snap.PriorRating, snap.NewRating, snap.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("sqlstore: upsert %s: %w", snap.Entity, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

// Refs implements repository.RatingStore.
func (s *Store) Refs(ctx context.Context, kind model.EntityKind) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT DISTINCT entity_id FROM rating_snapshots
		WHERE kind = ? ORDER BY entity_id`), string(kind))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: refs: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlstore: refs: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ResetSeason implements repository.RatingStore.
func (s *Store) ResetSeason(ctx context.Context, kind model.EntityKind, season int) error {
	defer observe("reset_season", time.Now())
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM rating_snapshots
		WHERE kind = ? AND season = ? AND preseason = 0`), string(kind), season)
	if err != nil {
		return fmt.Errorf("sqlstore: reset season %d: %w", season, err)
	}
	n, _ := res.RowsAffected()
	s.log.Info(ctx, "season reset",
		logger.String("kind", string(kind)), logger.Int("season", season), logger.Int("deleted", int(n)))
	return nil
}

// ReplaceWPN implements repository.WPNStore.
func (s *Store) ReplaceWPN(ctx context.Context, season int, scores []model.WPNScore) (err error) {
	defer observe("replace_wpn", time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, s.rebind(`DELETE FROM wpn_scores WHERE season = ?`), season); err != nil {
		return fmt.Errorf("sqlstore: clear wpn: %w", err)
	}
	insert := s.rebind(`INSERT INTO wpn_scores (season, team, score, wins, losses) VALUES (?, ?, ?, ?, ?)`)
	for _, sc := range scores {
		if _, err = tx.ExecContext(ctx, insert, season, sc.Team, sc.Score, sc.Wins, sc.Losses); err != nil {
			return fmt.Errorf("sqlstore: insert wpn %s: %w", sc.Team, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

// WPN implements repository.WPNStore.
func (s *Store) WPN(ctx context.Context, season int) ([]model.WPNScore, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT team, season, score, wins, losses
		FROM wpn_scores WHERE season = ? ORDER BY team`), season)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: wpn: %w", err)
	}
	defer rows.Close()
	var out []model.WPNScore
	for rows.Next() {
		var sc model.WPNScore
		if err := rows.Scan(&sc.Team, &sc.Season, &sc.Score, &sc.Wins, &sc.Losses); err != nil {
			return nil, fmt.Errorf("sqlstore: wpn: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: wpn: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: wpn season %d", repository.ErrNotFound, season)
	}
	return out, nil
}

// LatestWPN implements repository.WPNStore.
func (s *Store) LatestWPN(ctx context.Context, team string) (model.WPNScore, error) {
	var sc model.WPNScore
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT team, season, score, wins, losses
		FROM wpn_scores WHERE team = ? ORDER BY season DESC LIMIT 1`), team).
		Scan(&sc.Team, &sc.Season, &sc.Score, &sc.Wins, &sc.Losses)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WPNScore{}, fmt.Errorf("%w: wpn %s", repository.ErrNotFound, team)
	}
	if err != nil {
		return model.WPNScore{}, fmt.Errorf("sqlstore: latest wpn: %w", err)
	}
	return sc, nil
}
