// Package monitor runs the detect, notify and persist cycle for failure records.
//
// A run is strictly linear: load the notified fingerprints, fetch the current
// records, diff them, notify about the new ones, and only then persist the
// grown fingerprint set. Persisting after a successful notification means a
// crash can at worst cause one duplicate notification, never a lost one.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/cachewatch/internal/fingerprint"
	"github.com/kiranshivaraju/cachewatch/internal/notifier"
	"github.com/kiranshivaraju/cachewatch/internal/source"
	"github.com/kiranshivaraju/cachewatch/internal/store"
	"github.com/kiranshivaraju/cachewatch/pkg/models"
)

// Step names the stage of a run.
type Step string

const (
	StepLoad    Step = "load"
	StepFetch   Step = "fetch"
	StepNotify  Step = "notify"
	StepPersist Step = "persist"
)

// StepError reports which step aborted a run.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step that aborted a run, or "" if err did not come from Run.
func FailedStep(err error) Step {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// Monitor composes a fingerprint store, a failure source and a notifier.
// It holds no state between runs and must not run concurrently with another
// Monitor sharing the same store.
type Monitor struct {
	store    store.Store
	source   source.Source
	notifier notifier.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Monitor.
func New(st store.Store, src source.Source, n notifier.Notifier, opts ...Option) *Monitor {
	m := &Monitor{
		store:    st,
		source:   src,
		notifier: n,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes one full cycle. It returns a report on a clean exit (nothing
// new, or N failures notified) and a *StepError when any step aborts.
func (m *Monitor) Run(ctx context.Context) (*models.RunReport, error) {
	report, known, batch, err := m.detect(ctx)
	if err != nil {
		return nil, err
	}
	log := m.logger.With("run_id", report.RunID)

	if len(batch) == 0 {
		report.Outcome = models.RunOutcomeNothingNew
		report.Stored = known.Len()
		report.FinishedAt = m.now().UTC()
		log.Info("run complete, nothing new", "fetched", report.Fetched, "known", report.Known)
		return report, nil
	}

	log.Info("new failures detected", "new", len(batch), "notifier", m.notifier.Name())
	receipt, err := m.notifier.Notify(ctx, batch)
	if err != nil {
		// The batch stays out of the store so the next run retries it.
		log.Error("notification failed", "step", StepNotify, "new", len(batch), "error", err)
		return nil, &StepError{Step: StepNotify, Err: err}
	}
	log.Info("notification sent", "message_id", receipt.MessageID, "recipient", receipt.Recipient, "count", receipt.Count)

	added := make([]string, 0, len(batch))
	for _, r := range batch {
		added = append(added, fingerprint.Fingerprint(r))
	}
	updated := known.Union(fingerprint.NewSet(added...))

	if err := m.store.Save(ctx, updated); err != nil {
		log.Error("persist failed after notification; failures may be notified again next run",
			"step", StepPersist, "new", len(batch), "error", err)
		return nil, &StepError{Step: StepPersist, Err: err}
	}

	report.Outcome = models.RunOutcomeNotified
	report.Receipt = &receipt
	report.Batch = batch
	report.Stored = updated.Len()
	report.FinishedAt = m.now().UTC()
	log.Info("run complete, failures notified", "new", report.New, "stored", report.Stored)
	return report, nil
}

// DryRun performs the load, fetch and diff steps and returns what Run would
// notify, without notifying or persisting anything.
func (m *Monitor) DryRun(ctx context.Context) (*models.RunReport, error) {
	report, known, batch, err := m.detect(ctx)
	if err != nil {
		return nil, err
	}
	report.Outcome = models.RunOutcomeDryRun
	report.Batch = batch
	report.Stored = known.Len()
	report.FinishedAt = m.now().UTC()
	m.logger.Info("dry run complete", "run_id", report.RunID, "fetched", report.Fetched, "new", report.New)
	return report, nil
}

// detect runs the load, fetch and diff steps.
func (m *Monitor) detect(ctx context.Context) (*models.RunReport, fingerprint.Set, []models.FailureRecord, error) {
	report := &models.RunReport{
		RunID:     uuid.New(),
		StartedAt: m.now().UTC(),
	}
	log := m.logger.With("run_id", report.RunID)
	log.Debug("run started")

	known, err := m.store.Load(ctx)
	if err != nil {
		log.Error("loading fingerprints failed", "step", StepLoad, "error", err)
		return nil, fingerprint.Set{}, nil, &StepError{Step: StepLoad, Err: err}
	}

	records, err := m.source.Fetch(ctx)
	if err != nil {
		log.Error("fetching failure records failed", "step", StepFetch, "error", err)
		return nil, fingerprint.Set{}, nil, &StepError{Step: StepFetch, Err: err}
	}

	batch := Diff(known, records)
	report.Fetched = len(records)
	report.New = len(batch)
	report.Known = len(records) - len(batch)
	return report, known, batch, nil
}

// Diff returns the records whose fingerprints are not in known, in input
// order. Records repeated within records are reported once.
func Diff(known fingerprint.Set, records []models.FailureRecord) []models.FailureRecord {
	seen := fingerprint.NewSet()
	batch := make([]models.FailureRecord, 0)
	for _, r := range records {
		fp := fingerprint.Fingerprint(r)
		if known.Contains(fp) || !seen.Add(fp) {
			continue
		}
		batch = append(batch, r)
	}
	return batch
}
