// Package repository defines the rating and league store contracts and their
// in-memory implementations.
package repository

import (
	"context"

	"github.com/okian/gridrank/internal/domain/model"
)

// RatingStore keeps one timeline of snapshots per rated entity. Writes to the
// same timeline are serialized; different timelines never block each other.
type RatingStore interface {
	// LatestAtOrBefore returns the newest snapshot of season whose week is at
	// or before week. The preseason anchor sorts before every week.
	// Returns ErrNotFound when the season has no matching snapshot.
	LatestAtOrBefore(ctx context.Context, ref model.EntityRef, season, week int) (model.Snapshot, error)

	// LatestBefore returns the newest snapshot strictly before pos, looking
	// across seasons. Returns ErrNotFound when there is none.
	LatestBefore(ctx context.Context, ref model.EntityRef, pos model.Position) (model.Snapshot, error)

	// Latest returns the newest snapshot overall.
	Latest(ctx context.Context, ref model.EntityRef) (model.Snapshot, error)

	// Timeline returns every snapshot in position order.
	Timeline(ctx context.Context, ref model.EntityRef) ([]model.Snapshot, error)

	// Upsert writes the snapshot for its (entity, season, week), replacing an
	// existing one. Team weekly snapshots need the season's preseason anchor
	// (ErrMissingAnchor). PriorRating must equal the predecessor's NewRating,
	// or DefaultRating for a coach without history (ErrBrokenChain).
	Upsert(ctx context.Context, snap model.Snapshot) error

	// Refs lists the ids of every entity of kind with at least one snapshot.
	Refs(ctx context.Context, kind model.EntityKind) ([]string, error)

	// ResetSeason removes every weekly snapshot of season for kind, keeping
	// preseason anchors.
	ResetSeason(ctx context.Context, kind model.EntityKind, season int) error
}

// WPNStore keeps wPN scores, replaced a whole season at a time.
type WPNStore interface {
	ReplaceWPN(ctx context.Context, season int, scores []model.WPNScore) error
	WPN(ctx context.Context, season int) ([]model.WPNScore, error)
	// LatestWPN returns the team's score in the latest season it has one.
	LatestWPN(ctx context.Context, team string) (model.WPNScore, error)
}

// LeagueReader is read access to teams, coaches and schedules.
type LeagueReader interface {
	Teams(ctx context.Context) ([]model.Team, error)
	Coaches(ctx context.Context) ([]model.Coach, error)
	Conferences(ctx context.Context) ([]model.Conference, error)
	// Seasons returns every season in ascending number order.
	Seasons(ctx context.Context) ([]model.Season, error)
	// Season returns ErrSeasonNotFound for an unknown number.
	Season(ctx context.Context, seasonNo int) (model.Season, error)
	// Week returns ErrSeasonNotFound or ErrWeekNotFound.
	Week(ctx context.Context, seasonNo, weekNo int) (model.Week, error)
	// GamesByTeamAndSeason returns the team's completed games in week order.
	GamesByTeamAndSeason(ctx context.Context, team string, seasonNo int) ([]model.Game, error)
}

// Store bundles everything the service reads and writes.
type Store interface {
	RatingStore
	WPNStore
	LeagueReader
}
