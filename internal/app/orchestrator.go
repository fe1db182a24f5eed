package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/gridrank/internal/adapters/mq/queue"
	workerpool "github.com/okian/gridrank/internal/adapters/mq/worker"
	"github.com/okian/gridrank/internal/adapters/repository"
	"github.com/okian/gridrank/internal/domain/dedupe"
	"github.com/okian/gridrank/internal/domain/elo"
	"github.com/okian/gridrank/internal/domain/model"
	"github.com/okian/gridrank/internal/domain/wpn"
	"github.com/okian/gridrank/pkg/logger"
	"github.com/okian/gridrank/pkg/metrics"
)

// Run outcomes recorded in metrics.
const (
	outcomeSuccess = "success"
	outcomeFailed  = "failed"
	outcomeBusy    = "busy"
)

// RunReport summarises one metrics run.
type RunReport struct {
	RunID          string        `json:"run_id"`
	Season         int           `json:"season"`
	Weeks          []int         `json:"weeks"`
	Games          int           `json:"games"`
	Skipped        int           `json:"skipped"`
	Anchors        int           `json:"anchors"`
	TeamSnapshots  int           `json:"team_snapshots"`
	CoachSnapshots int           `json:"coach_snapshots"`
	WPNTeams       int           `json:"wpn_teams"`
	Duration       time.Duration `json:"duration"`
}

// run carries the state of one Update call.
type run struct {
	svc    *Service
	pool   *workerpool.Pool
	id     string
	season int
	log    logger.Logger
	report RunReport

	teamSnaps  atomic.Int64
	coachSnaps atomic.Int64
	anchors    atomic.Int64
}

// Update recomputes metrics for seasonNo. With a nil weekNo the preseason
// anchors are refreshed and every week is replayed in order. With a week
// given, that week and every later week of the season are replayed, so later
// snapshots keep chaining from the new values. wPN is recomputed for the
// season in both cases.
func (s *Service) Update(ctx context.Context, seasonNo int, weekNo *int) (RunReport, error) {
	pool, err := s.running()
	if err != nil {
		return RunReport{}, err
	}
	if !s.runMu.TryLock() {
		metrics.RecordRun(outcomeBusy)
		return RunReport{}, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	start := time.Now()
	r := &run{svc: s, pool: pool, id: uuid.NewString(), season: seasonNo}
	r.log = s.logger.With(logger.String("run_id", r.id), logger.Int("season", seasonNo))
	r.report = RunReport{RunID: r.id, Season: seasonNo, Weeks: []int{}}

	err = r.execute(ctx, weekNo)
	r.report.Anchors = int(r.anchors.Load())
	r.report.TeamSnapshots = int(r.teamSnaps.Load())
	r.report.CoachSnapshots = int(r.coachSnaps.Load())
	r.report.Duration = time.Since(start)

	// Partial writes are visible either way, so derived views are refreshed.
	s.afterWrite(ctx)

	if err != nil {
		metrics.RecordRun(outcomeFailed)
		r.log.Error(ctx, "metrics run failed", logger.Error(err), logger.Duration("took", r.report.Duration))
		return r.report, err
	}
	metrics.RecordRun(outcomeSuccess)
	s.mu.Lock()
	report := r.report
	s.lastRun = &report
	s.mu.Unlock()
	r.log.Info(ctx, "metrics run finished",
		logger.Any("weeks", r.report.Weeks),
		logger.Int("games", r.report.Games),
		logger.Int("skipped", r.report.Skipped),
		logger.Int("team_snapshots", r.report.TeamSnapshots),
		logger.Int("coach_snapshots", r.report.CoachSnapshots),
		logger.Duration("took", r.report.Duration),
	)
	return r.report, nil
}

func (r *run) execute(ctx context.Context, weekNo *int) error {
	season, err := r.svc.store.Season(ctx, r.season)
	if err != nil {
		return fmt.Errorf("update season %d: %w", r.season, err)
	}

	weeks := season.SortedWeeks()
	if weekNo != nil {
		if _, ok := season.Week(*weekNo); !ok {
			return fmt.Errorf("update season %d week %d: %w", r.season, *weekNo, repository.ErrWeekNotFound)
		}
		for i, w := range weeks {
			if w.Number == *weekNo {
				weeks = weeks[i:]
				break
			}
		}
	}

	phase := time.Now()
	if err := r.preseason(ctx, weekNo == nil); err != nil {
		return fmt.Errorf("preseason %d: %w", r.season, err)
	}
	metrics.RecordRunPhase("preseason", msSince(phase))

	phase = time.Now()
	for _, w := range weeks {
		if err := r.week(ctx, w); err != nil {
			return fmt.Errorf("season %d week %d: %w", r.season, w.Number, err)
		}
		r.report.Weeks = append(r.report.Weeks, w.Number)
	}
	metrics.RecordRunPhase("weeks", msSince(phase))

	phase = time.Now()
	if err := r.wpn(ctx, season); err != nil {
		return fmt.Errorf("wpn season %d: %w", r.season, err)
	}
	metrics.RecordRunPhase("wpn", msSince(phase))
	return nil
}

// preseason writes every team's anchor for the season: the final rating of
// the previous season regressed a third of the way to the default. With
// rewrite unset only missing anchors are created. An anchor that already
// holds the computed values is never rewritten.
func (r *run) preseason(ctx context.Context, rewrite bool) error {
	teams, err := r.svc.store.Teams(ctx)
	if err != nil {
		return err
	}
	tasks := make([]eventqueue.Task, 0, len(teams))
	for _, t := range teams {
		ref := model.TeamRef(t.ID)
		tasks = append(tasks, eventqueue.Task{
			ID:     "preseason/" + t.ID,
			Entity: ref.String(),
			Run: func(ctx context.Context) error {
				return r.anchor(ctx, ref, rewrite)
			},
		})
	}
	return r.pool.Batch(ctx, tasks)
}

func (r *run) anchor(ctx context.Context, ref model.EntityRef, rewrite bool) error {
	existing, err := r.svc.store.LatestAtOrBefore(ctx, ref, r.season, 0)
	switch {
	case err == nil && existing.Preseason:
		if !rewrite {
			return nil
		}
	case err == nil, errors.Is(err, repository.ErrNotFound):
		existing = model.Snapshot{}
	default:
		return err
	}

	old := model.DefaultRating
	prev, err := r.svc.store.LatestAtOrBefore(ctx, ref, r.season-1, math.MaxInt32)
	switch {
	case err == nil:
		old = prev.NewRating
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}
	anchor := model.Snapshot{
		Entity:      ref,
		Season:      r.season,
		Preseason:   true,
		PriorRating: old,
		NewRating:   elo.Regress(old),
		UpdatedAt:   r.svc.now(),
	}
	if existing.Preseason && existing.PriorRating == anchor.PriorRating && existing.NewRating == anchor.NewRating {
		return nil
	}
	if err := r.svc.store.Upsert(ctx, anchor); err != nil {
		metrics.RecordRatingWriteError(string(model.KindTeam))
		return err
	}
	r.anchors.Add(1)
	return nil
}

// gameResult is the compute phase output for one game.
type gameResult struct {
	game    model.Game
	team    elo.Outcome
	coaches []elo.CoachUpdate
}

// pending accumulates one entity's changes for a week.
type pending struct {
	ref      model.EntityRef
	prior    float64
	delta    float64
	oppTotal float64
	games    []string
}

// week replays one week in two phases. Every game is scored against the
// ratings as they stood before the week; then each entity gets one snapshot
// carrying the sum of its deltas.
func (r *run) week(ctx context.Context, w model.Week) error {
	games := r.gamesOf(ctx, w)
	if len(games) == 0 {
		return nil
	}
	forget := func() {
		for _, g := range games {
			r.svc.deduper.Unrecord(ctx, dedupe.Key(r.id, g.ID))
		}
	}

	coachRatings, err := r.coachRatings(ctx, w.Number, games)
	if err != nil {
		forget()
		return err
	}
	lookup := func(coach string) float64 {
		if v, ok := coachRatings[coach]; ok {
			return v
		}
		return model.DefaultRating
	}

	phase := time.Now()
	results := make([]gameResult, len(games))
	tasks := make([]eventqueue.Task, len(games))
	for i, g := range games {
		tasks[i] = eventqueue.Task{
			ID:     g.ID,
			Entity: g.Home.Team + "/" + g.Away.Team,
			Run: func(ctx context.Context) error {
				home, err := r.teamRating(ctx, g.Home.Team, w.Number-1)
				if err != nil {
					return err
				}
				away, err := r.teamRating(ctx, g.Away.Team, w.Number-1)
				if err != nil {
					return err
				}
				out, _ := r.svc.engine.Team(g, home, away)
				coaches, _ := r.svc.engine.Coaches(g, lookup)
				results[i] = gameResult{game: g, team: out, coaches: coaches}
				return nil
			},
		}
	}
	if err := r.pool.Batch(ctx, tasks); err != nil {
		forget()
		return err
	}
	metrics.RecordRunPhase("compute", msSince(phase))

	phase = time.Now()
	if err := r.write(ctx, w.Number, aggregate(results)); err != nil {
		forget()
		return err
	}
	metrics.RecordRunPhase("write", msSince(phase))
	r.report.Games += len(games)
	return nil
}

// gamesOf returns the week's games that this run has not rated yet.
func (r *run) gamesOf(ctx context.Context, w model.Week) []model.Game {
	out := make([]model.Game, 0, len(w.Games))
	for _, g := range w.Games {
		if g.Live {
			r.report.Skipped++
			metrics.RecordGameSkipped("live")
			continue
		}
		if r.svc.deduper.SeenAndRecord(ctx, dedupe.Key(r.id, g.ID)) {
			r.report.Skipped++
			metrics.RecordGameSkipped("duplicate")
			r.log.Warn(ctx, "game listed twice, rating once",
				logger.String("game", g.ID), logger.Int("week", w.Number))
			continue
		}
		g.Week = w.Number
		out = append(out, g)
	}
	return out
}

// teamRating is the team's rating at the end of week in the run's season.
func (r *run) teamRating(ctx context.Context, team string, week int) (float64, error) {
	snap, err := r.svc.store.LatestAtOrBefore(ctx, model.TeamRef(team), r.season, week)
	if errors.Is(err, repository.ErrNotFound) {
		return model.DefaultRating, nil
	}
	if err != nil {
		return 0, err
	}
	return snap.NewRating, nil
}

// coachRatings loads every coach's rating from before week.
func (r *run) coachRatings(ctx context.Context, week int, games []model.Game) (map[string]float64, error) {
	out := make(map[string]float64)
	pos := model.WeekOf(r.season, week)
	for _, g := range games {
		for _, side := range []model.Side{g.Home, g.Away} {
			for _, c := range side.Coaches {
				if _, done := out[c.Coach]; done || c.Coach == model.UnknownCoach {
					continue
				}
				snap, err := r.svc.store.LatestBefore(ctx, model.CoachRef(c.Coach), pos)
				switch {
				case err == nil:
					out[c.Coach] = snap.NewRating
				case errors.Is(err, repository.ErrNotFound):
					out[c.Coach] = model.DefaultRating
				default:
					return nil, err
				}
			}
		}
	}
	return out, nil
}

// aggregate folds game results into one pending change per entity, in the
// order entities first appear.
func aggregate(results []gameResult) []*pending {
	byRef := make(map[model.EntityRef]*pending)
	var order []*pending
	add := func(ref model.EntityRef, prior, opp, delta float64, game string) {
		p, ok := byRef[ref]
		if !ok {
			p = &pending{ref: ref, prior: prior}
			byRef[ref] = p
			order = append(order, p)
		}
		p.delta += delta
		p.oppTotal += opp
		p.games = append(p.games, game)
	}
	for _, res := range results {
		g := res.game
		add(model.TeamRef(g.Home.Team), res.team.HomeRating, res.team.AwayRating, res.team.HomeDelta, g.ID)
		add(model.TeamRef(g.Away.Team), res.team.AwayRating, res.team.HomeRating, res.team.AwayDelta, g.ID)
		for _, cu := range res.coaches {
			add(model.CoachRef(cu.Coach), cu.PriorRating, cu.OpponentRating, cu.Delta, g.ID)
		}
	}
	return order
}

// write stores one snapshot per entity. Every write is attempted; the
// joined failures are returned.
func (r *run) write(ctx context.Context, week int, changes []*pending) error {
	now := r.svc.now()
	tasks := make([]eventqueue.Task, len(changes))
	for i, p := range changes {
		snap := model.Snapshot{
			Entity:         p.ref,
			Season:         r.season,
			Week:           week,
			Games:          p.games,
			OpponentRating: p.oppTotal / float64(len(p.games)),
			PriorRating:    p.prior,
			NewRating:      p.prior + p.delta,
			UpdatedAt:      now,
		}
		tasks[i] = eventqueue.Task{
			ID:     fmt.Sprintf("write/%d/%s", week, p.ref),
			Entity: p.ref.String(),
			Run: func(ctx context.Context) error {
				if err := r.svc.store.Upsert(ctx, snap); err != nil {
					metrics.RecordRatingWriteError(string(snap.Entity.Kind))
					return fmt.Errorf("write %s: %w", snap.Entity, err)
				}
				metrics.RecordRatingUpdate(string(snap.Entity.Kind), snap.Delta())
				if snap.Entity.Kind == model.KindTeam {
					r.teamSnaps.Add(1)
				} else {
					r.coachSnaps.Add(1)
				}
				return nil
			},
		}
	}
	return r.pool.Batch(ctx, tasks)
}

// wpn scores every team assigned to a division in the season and replaces
// the season's stored scores.
func (r *run) wpn(ctx context.Context, season model.Season) error {
	start := time.Now()
	teams, err := r.svc.store.Teams(ctx)
	if err != nil {
		return err
	}
	scorer := wpn.New(season,
		wpn.WithMoVInfluence(r.svc.movInfluence),
		wpn.WithMedianMoV(wpn.MedianMoV(season.Games())),
	)

	var (
		mu     sync.Mutex
		scores = make([]model.WPNScore, 0, len(teams))
		tasks  = make([]eventqueue.Task, 0, len(teams))
	)
	for _, t := range teams {
		if t.DivisionFor(season.Number) == "" {
			continue
		}
		tasks = append(tasks, eventqueue.Task{
			ID:     "wpn/" + t.ID,
			Entity: model.TeamRef(t.ID).String(),
			Run: func(context.Context) error {
				sc := scorer.Score(t.ID)
				mu.Lock()
				scores = append(scores, sc)
				mu.Unlock()
				return nil
			},
		})
	}
	if err := r.pool.Batch(ctx, tasks); err != nil {
		return err
	}
	if err := r.svc.store.ReplaceWPN(ctx, season.Number, scores); err != nil {
		return err
	}
	r.report.WPNTeams = len(scores)
	metrics.RecordWPNDuration(msSince(start))
	return nil
}

// ResetSeason removes the season's computed metrics: team timelines go back
// to their preseason anchors, coach snapshots of the season are deleted and
// the season's wPN scores are cleared.
func (s *Service) ResetSeason(ctx context.Context, seasonNo int) error {
	if !s.runMu.TryLock() {
		return ErrRunInProgress
	}
	defer s.runMu.Unlock()

	if _, err := s.store.Season(ctx, seasonNo); err != nil {
		return fmt.Errorf("reset season %d: %w", seasonNo, err)
	}
	for _, kind := range []model.EntityKind{model.KindTeam, model.KindCoach} {
		if err := s.store.ResetSeason(ctx, kind, seasonNo); err != nil {
			return fmt.Errorf("reset season %d %s: %w", seasonNo, kind, err)
		}
	}
	if err := s.store.ReplaceWPN(ctx, seasonNo, nil); err != nil {
		return fmt.Errorf("reset season %d wpn: %w", seasonNo, err)
	}
	s.afterWrite(ctx)
	s.logger.Info(ctx, "season metrics reset", logger.Int("season", seasonNo))
	return nil
}

// afterWrite drops cached leaderboards and reloads the rank indexes.
func (s *Service) afterWrite(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn(ctx, "leaderboard cache invalidation failed", logger.Error(err))
	}
	if err := s.rebuildIndexes(ctx); err != nil {
		s.logger.Error(ctx, "rank index rebuild failed", logger.Error(err))
	}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
