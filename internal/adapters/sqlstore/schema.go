package sqlstore

// Statements run in order on Open. Types are chosen to mean the same thing to
// sqlite and postgres.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS rating_snapshots (
		kind            TEXT NOT NULL,
		entity_id       TEXT NOT NULL,
		season          INTEGER NOT NULL,
		preseason       INTEGER NOT NULL,
		week            INTEGER NOT NULL,
		games           TEXT NOT NULL,
		opponent_rating DOUBLE PRECISION NOT NULL,
		prior_rating    DOUBLE PRECISION NOT NULL,
		new_rating      DOUBLE PRECISION NOT NULL,
		updated_at      BIGINT NOT NULL,
		PRIMARY KEY (kind, entity_id, season, preseason, week)
	)`,
	`CREATE TABLE IF NOT EXISTS wpn_scores (
		season INTEGER NOT NULL,
		team   TEXT NOT NULL,
		score  DOUBLE PRECISION NOT NULL,
		wins   DOUBLE PRECISION NOT NULL,
		losses DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (season, team)
	)`,
	`CREATE TABLE IF NOT EXISTS conferences (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		ord  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS divisions (
		id            TEXT PRIMARY KEY,
		conference_id TEXT NOT NULL,
		name          TEXT NOT NULL,
		ord           INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS teams (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		abbreviation TEXT NOT NULL,
		ord          INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS team_divisions (
		team_id     TEXT NOT NULL,
		season      INTEGER NOT NULL,
		division_id TEXT NOT NULL,
		PRIMARY KEY (team_id, season)
	)`,
	`CREATE TABLE IF NOT EXISTS coaches (
		id       TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		ord      INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS seasons (
		number INTEGER PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS weeks (
		season INTEGER NOT NULL,
		number INTEGER NOT NULL,
		name   TEXT NOT NULL,
		ord    INTEGER NOT NULL,
		PRIMARY KEY (season, number)
	)`,
	`CREATE TABLE IF NOT EXISTS games (
		id             TEXT PRIMARY KEY,
		season         INTEGER NOT NULL,
		week           INTEGER NOT NULL,
		ord            INTEGER NOT NULL,
		home_team      TEXT NOT NULL,
		home_score     INTEGER NOT NULL,
		home_quarters  TEXT NOT NULL,
		away_team      TEXT NOT NULL,
		away_score     INTEGER NOT NULL,
		away_quarters  TEXT NOT NULL,
		length_seconds INTEGER NOT NULL,
		live           INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS games_season_week ON games (season, week)`,
	`CREATE TABLE IF NOT EXISTS game_coaches (
		game_id TEXT NOT NULL,
		side    TEXT NOT NULL,
		ord     INTEGER NOT NULL,
		coach   TEXT NOT NULL,
		plays   INTEGER NOT NULL,
		PRIMARY KEY (game_id, side, ord)
	)`,
}

// leagueTables are cleared, children first, before a league import.
var leagueTables = []string{
	"game_coaches", "games", "weeks", "seasons",
	"team_divisions", "teams", "coaches", "divisions", "conferences",
}
