// Package syncer orchestrates a catch-up run: discover candidates on the
// results page, filter to the lookback window, and import the missing
// documents concurrently.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/ttstats/rrimport/internal/archive"
	"github.com/ttstats/rrimport/internal/hash/sha256"
	"github.com/ttstats/rrimport/internal/id/uuid"
	"github.com/ttstats/rrimport/internal/importer"
	"github.com/ttstats/rrimport/internal/metrics"
	"github.com/ttstats/rrimport/internal/parser"
	"github.com/ttstats/rrimport/internal/rr"
)

// ErrPartialFailure is returned when a run completes but at least one
// document could not be imported. Callers map it to a non-zero exit.
var ErrPartialFailure = errors.New("some documents failed to import")

// Defaults for a sync run.
const (
	DefaultWorkers      = 5
	DefaultLookbackDays = 14
	DefaultDocTimeout   = 2 * time.Minute
)

// Config controls a sync run.
type Config struct {
	// Workers bounds concurrent document imports.
	Workers int
	// LookbackDays is how far back from now the window opens when Start
	// is not set explicitly.
	LookbackDays int
	// Start overrides the computed window start when non-zero.
	Start time.Time
	// DocTimeout bounds one document's fetch-to-commit pipeline.
	DocTimeout time.Duration
	// Force re-imports documents whose tournaments already succeeded.
	Force bool
}

// Summary is the outcome of one sync run.
type Summary struct {
	RunID      string
	Discovered int
	Imported   int
	Skipped    int
	Failed     int
	Duration   time.Duration
}

// idGenerator mints run IDs; satisfied by the uuid generator.
type idGenerator interface {
	NewID() (string, error)
}

// Syncer drives concurrent catch-up imports.
type Syncer struct {
	index    rr.Index
	fetcher  rr.Fetcher
	parser   *parser.Parser
	importer *importer.Importer
	store    rr.Store
	clock    rr.Clock
	archive  archive.Store
	ids      idGenerator
	hasher   *sha256.Hasher
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Syncer. A nil arc disables document archival.
func New(
	index rr.Index,
	fetcher rr.Fetcher,
	p *parser.Parser,
	imp *importer.Importer,
	store rr.Store,
	clock rr.Clock,
	arc archive.Store,
	cfg Config,
	logger *zap.Logger,
) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if arc == nil {
		arc = archive.NoOp{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	if cfg.DocTimeout <= 0 {
		cfg.DocTimeout = DefaultDocTimeout
	}
	return &Syncer{
		index:    index,
		fetcher:  fetcher,
		parser:   p,
		importer: imp,
		store:    store,
		clock:    clock,
		archive:  arc,
		ids:      uuid.New(),
		hasher:   sha256.New(),
		cfg:      cfg,
		logger:   logger,
	}
}

// Run executes one sync pass. Every candidate is handled independently: a
// failing document never stops the others, it only turns the final result
// into ErrPartialFailure.
func (s *Syncer) Run(ctx context.Context) (Summary, error) {
	runID, err := s.ids.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("generate run id: %w", err)
	}
	start := s.windowStart()
	runStart := s.clock.Now()
	logger := s.logger.With(zap.String("run_id", runID))

	logger.Info("sync run starting",
		zap.Time("window_start", start),
		zap.Int("workers", s.cfg.Workers),
	)

	candidates, err := s.index.ListCandidates(ctx)
	if err != nil {
		metrics.ObserveSyncRun("discovery_failed")
		return Summary{RunID: runID}, err
	}
	metrics.ObserveCandidates(len(candidates))

	imported, err := s.store.ImportedDates(ctx, start)
	if err != nil {
		metrics.ObserveSyncRun("discovery_failed")
		return Summary{RunID: runID}, err
	}

	tasks, preSkipped := s.filter(candidates, start, imported, logger)

	summary := Summary{RunID: runID, Discovered: len(candidates), Skipped: preSkipped}
	if len(tasks) == 0 {
		summary.Duration = s.clock.Now().Sub(runStart)
		logger.Info("sync run complete, nothing to import", zap.Int("skipped", summary.Skipped))
		metrics.ObserveSyncRun("success")
		return summary, nil
	}

	var importedCount, skippedCount, failedCount atomic.Int64

	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		metrics.ObserveSyncRun("discovery_failed")
		return summary, err
	}
	defer pool.Release()

	var workers sync.WaitGroup
	for _, cand := range tasks {
		cand := cand
		workers.Add(1)
		if submitErr := pool.Submit(func() {
			defer workers.Done()
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()

			switch s.processOne(ctx, cand, start, imported, logger) {
			case importer.StatusImported:
				importedCount.Add(1)
			case importer.StatusSkipped:
				skippedCount.Add(1)
			default:
				failedCount.Add(1)
			}
		}); submitErr != nil {
			workers.Done()
			failedCount.Add(1)
			logger.Error("worker pool submit failed",
				zap.String("locator", cand.Locator), zap.Error(submitErr))
		}
	}
	workers.Wait()

	summary.Imported = int(importedCount.Load())
	summary.Skipped += int(skippedCount.Load())
	summary.Failed = int(failedCount.Load())
	summary.Duration = s.clock.Now().Sub(runStart)

	logger.Info("sync run complete",
		zap.Int("discovered", summary.Discovered),
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration),
	)

	if summary.Failed > 0 {
		metrics.ObserveSyncRun("partial_failure")
		return summary, ErrPartialFailure
	}
	metrics.ObserveSyncRun("success")
	return summary, nil
}

// filter drops dated candidates outside the window and counts dated
// candidates already imported as skips without fetching them. Undated
// candidates stay in: their dates are mined from content by the worker.
func (s *Syncer) filter(
	candidates []rr.Candidate,
	start time.Time,
	imported map[string]struct{},
	logger *zap.Logger,
) ([]rr.Candidate, int) {
	var tasks []rr.Candidate
	skipped := 0
	for _, cand := range candidates {
		if cand.Date.IsZero() {
			tasks = append(tasks, cand)
			continue
		}
		if cand.Date.Before(start) {
			continue
		}
		if _, done := imported[cand.Date.Format("2006-01-02")]; done && !s.cfg.Force {
			logger.Debug("already imported", zap.String("locator", cand.Locator))
			skipped++
			continue
		}
		tasks = append(tasks, cand)
	}
	return tasks, skipped
}

// processOne runs one candidate through fetch and import under the
// per-document timeout.
func (s *Syncer) processOne(
	ctx context.Context,
	cand rr.Candidate,
	start time.Time,
	imported map[string]struct{},
	logger *zap.Logger,
) importer.Status {
	docCtx, cancel := context.WithTimeout(ctx, s.cfg.DocTimeout)
	defer cancel()
	began := time.Now()

	data, err := s.fetcher.Fetch(docCtx, cand.Locator, cand.Kind)
	if err != nil {
		logger.Warn("fetch failed", zap.String("locator", cand.Locator), zap.Error(err))
		s.importer.RecordFetchFailure(docCtx, cand, err)
		metrics.ObserveDocument(string(importer.StatusFailed), string(cand.Kind), 0, 0, time.Since(began))
		return importer.StatusFailed
	}
	logger.Debug("document fetched",
		zap.String("locator", cand.Locator),
		zap.Int("bytes", len(data)),
		zap.String("digest", s.hasher.Sum(data)),
	)
	s.archiveDocument(docCtx, cand, data, logger)

	// Undated candidates get their date mined here so the window and
	// already-imported filters apply before the full pipeline runs.
	if cand.Date.IsZero() {
		if date, ok := s.parser.MineDate(data, cand.Kind); ok {
			cand.Date = date
			if date.Before(start) {
				metrics.ObserveDocument(string(importer.StatusSkipped), string(cand.Kind), 0, 0, time.Since(began))
				return importer.StatusSkipped
			}
			if _, done := imported[date.Format("2006-01-02")]; done && !s.cfg.Force {
				metrics.ObserveDocument(string(importer.StatusSkipped), string(cand.Kind), 0, 0, time.Since(began))
				return importer.StatusSkipped
			}
		}
	}

	result := s.importer.Import(docCtx, cand, data, s.cfg.Force)
	if result.Err != nil {
		logger.Warn("import failed",
			zap.String("locator", cand.Locator),
			zap.Time("date", result.Date),
			zap.Error(result.Err),
		)
	}
	metrics.ObserveDocument(string(result.Status), string(cand.Kind),
		result.Counts.Matches, result.Counts.Players, time.Since(began))
	return result.Status
}

// archiveDocument stores the raw body for later triage. Archival is
// best-effort: a write failure never fails the document.
func (s *Syncer) archiveDocument(ctx context.Context, cand rr.Candidate, data []byte, logger *zap.Logger) {
	key := strings.TrimLeft(cand.Locator, "/")
	if key == "" {
		return
	}
	uri, err := s.archive.Put(ctx, key, contentTypeFor(cand.Kind), data)
	if err != nil {
		logger.Warn("archive write failed", zap.String("locator", cand.Locator), zap.Error(err))
		return
	}
	if uri != "" {
		logger.Debug("document archived", zap.String("uri", uri))
	}
}

func contentTypeFor(kind rr.DocumentKind) string {
	if kind == rr.KindHTML {
		return "text/html"
	}
	return "application/pdf"
}

func (s *Syncer) windowStart() time.Time {
	if !s.cfg.Start.IsZero() {
		return s.cfg.Start.Truncate(24 * time.Hour)
	}
	now := s.clock.Now()
	return now.AddDate(0, 0, -s.cfg.LookbackDays).Truncate(24 * time.Hour)
}
