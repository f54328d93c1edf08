package results

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/RiskIndex/internal/hermes"
	"github.com/MikeSquared-Agency/RiskIndex/internal/scoring"
)

// Computer is the part of Service the publisher needs.
type Computer interface {
	Compute(ctx context.Context, q Query) (*Snapshot, error)
}

// Publisher periodically recomputes the active scenario and publishes a
// ranking snapshot whenever the ranking differs from the last one sent.
// Scenario change events trigger an early recompute.
type Publisher struct {
	computer Computer
	hermes   hermes.Client
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	scenario int64
	last     []scoring.GlobalResult

	nudge    chan struct{}
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewPublisher(c Computer, h hermes.Client, interval time.Duration, logger *slog.Logger) *Publisher {
	return &Publisher{
		computer: c,
		hermes:   h,
		interval: interval,
		logger:   logger,
		nudge:    make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

func (p *Publisher) Start(ctx context.Context) {
	if p.hermes != nil {
		err := p.hermes.Subscribe(hermes.SubjectScenarioChanges, func(subject string, _ []byte) {
			p.logger.Debug("scenario changed", "subject", subject)
			p.Nudge()
		})
		if err != nil {
			p.logger.Warn("failed to subscribe to scenario changes", "error", err)
		}
	}

	p.wg.Add(1)
	go p.loop(ctx)
}

func (p *Publisher) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

// Nudge requests a recompute without waiting for the next tick. Repeated
// nudges before the loop wakes up collapse into one.
func (p *Publisher) Nudge() {
	select {
	case p.nudge <- struct{}{}:
	default:
	}
}

func (p *Publisher) loop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Tick(ctx)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		case <-p.nudge:
			p.Tick(ctx)
		}
	}
}

// Tick computes the active scenario once and publishes if the ranking
// changed. It reports whether a snapshot was published.
func (p *Publisher) Tick(ctx context.Context) bool {
	snap, err := p.computer.Compute(ctx, Query{})
	if errors.Is(err, ErrNoActiveScenario) {
		p.logger.Debug("no active scenario, skipping snapshot")
		return false
	}
	if err != nil {
		p.logger.Error("failed to compute results", "error", err)
		return false
	}

	global := snap.GlobalResults()

	p.mu.Lock()
	unchanged := p.scenario == snap.Scenario.ID && sameRanking(p.last, global)
	p.mu.Unlock()
	if unchanged {
		return false
	}

	ev := hermes.ResultsSnapshotEvent{
		SnapshotID: uuid.New().String(),
		ScenarioID: snap.Scenario.ID,
		Countries:  len(global),
		Categories: len(snap.Categories),
		Ranking:    make([]hermes.RankingEntry, 0, len(snap.Global)),
		ComputedAt: snap.ComputedAt,
	}
	for _, g := range snap.Global {
		ev.Ranking = append(ev.Ranking, hermes.RankingEntry{
			Position:  g.Position,
			CountryID: g.CountryID,
			ISO3:      g.ISO3,
			Index:     g.Index,
		})
	}

	if p.hermes != nil {
		if err := p.hermes.Publish(hermes.SubjectResultsSnapshot(snap.Scenario.ID), ev); err != nil {
			p.logger.Warn("failed to publish snapshot", "scenario_id", snap.Scenario.ID, "error", err)
			return false
		}
	}
	p.mu.Lock()
	p.scenario = snap.Scenario.ID
	p.last = global
	p.mu.Unlock()

	snapshotsPublished.Inc()
	p.logger.Info("published results snapshot",
		"snapshot_id", ev.SnapshotID,
		"scenario_id", ev.ScenarioID,
		"countries", ev.Countries,
	)
	return true
}

func sameRanking(a, b []scoring.GlobalResult) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
