package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"meddoc/internal/classifier"
	"meddoc/internal/fileutil"
	"meddoc/internal/index"
	"meddoc/internal/logging"
	"meddoc/internal/services"
	"meddoc/internal/slug"
	"meddoc/internal/taxonomy"
	"meddoc/internal/watcher"
	"meddoc/internal/wiki"
)

// Classifier proposes metadata for a document.
type Classifier interface {
	Classify(ctx context.Context, path string) (classifier.Result, error)
}

// Store is the subset of the index the pipeline writes to.
type Store interface {
	UpsertDraft(ctx context.Context, d index.Draft) (int64, error)
	Get(ctx context.Context, path string) (*index.Record, error)
	GetByID(ctx context.Context, id int64) (*index.Record, error)
	ConfirmAndRelocate(ctx context.Context, id int64, newPath string) error
	UpdateFields(ctx context.Context, id int64, fields map[string]string) (*index.Record, error)
	ListByDevice(ctx context.Context, deviceSlug string) ([]index.Record, error)
	LogEvent(ctx context.Context, eventType, path, detail string) error
	Stats(ctx context.Context) (index.Stats, error)
}

// Regenerator rebuilds downstream artifacts for a device after a confirm.
type Regenerator interface {
	Regenerate(ctx context.Context, deviceSlug string, info wiki.DeviceInfo, records []index.Record) error
}

// SearchIndexer keeps the full-text index in step with confirmed records.
type SearchIndexer interface {
	Put(rec index.Record) error
}

// Mover relocates a file without overwriting an existing target.
type Mover interface {
	Move(src, dst string) error
}

// MoverFunc adapts a function to Mover.
type MoverFunc func(src, dst string) error

func (f MoverFunc) Move(src, dst string) error { return f(src, dst) }

// Outcome is the terminal state of one Process call.
type Outcome string

const (
	OutcomeDrafted       Outcome = "drafted"
	OutcomeAutoConfirmed Outcome = "auto_confirmed"
	OutcomeUnchanged     Outcome = "unchanged"
	OutcomeSkipped       Outcome = "skipped"
	OutcomeFailed        Outcome = "failed"
)

const regenerateTimeout = 2 * time.Minute

// Pipeline is the ingestion orchestrator. Process calls are expected to come
// from a single consumer; Confirm and Edit may run concurrently with it.
type Pipeline struct {
	root       string
	classifier Classifier
	store      Store
	validator  *taxonomy.Validator
	regen      Regenerator
	search     SearchIndexer
	mover      Mover
	bus        *Bus
	policy     ApprovalPolicy
	dedup      *DedupCache
	manual     *manualPlacement
	rules      map[string]string
	logger     *slog.Logger

	// writeMu orders store writes between the consumer and operator actions.
	writeMu sync.Mutex
	regenMu sync.Mutex
	regenWG sync.WaitGroup
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRegenerator sets the downstream regeneration hook.
func WithRegenerator(r Regenerator) Option {
	return func(p *Pipeline) { p.regen = r }
}

// WithSearchIndex keeps idx updated on confirm.
func WithSearchIndex(idx SearchIndexer) Option {
	return func(p *Pipeline) { p.search = idx }
}

// WithMover overrides the file mover.
func WithMover(m Mover) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.mover = m
		}
	}
}

// WithBus publishes pipeline messages on bus.
func WithBus(bus *Bus) Option {
	return func(p *Pipeline) {
		if bus != nil {
			p.bus = bus
		}
	}
}

// WithPolicy sets the approval policy applied to fresh drafts.
func WithPolicy(policy ApprovalPolicy) Option {
	return func(p *Pipeline) {
		if policy != nil {
			p.policy = policy
		}
	}
}

// WithDedupCache reuses classifications for identical content.
func WithDedupCache(cache *DedupCache) Option {
	return func(p *Pipeline) { p.dedup = cache }
}

// WithSubfolderRules enables manual placement detection.
func WithSubfolderRules(rules map[string]string) Option {
	return func(p *Pipeline) { p.rules = rules }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New builds a pipeline rooted at root.
func New(root string, cls Classifier, store Store, validator *taxonomy.Validator, opts ...Option) (*Pipeline, error) {
	if cls == nil || store == nil || validator == nil {
		return nil, services.Wrap(services.ErrConfiguration, "ingest", "new", "classifier, store and validator are required", nil)
	}
	resolved, err := fileutil.ResolveRoot(root)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ingest", "new", "resolve root", err)
	}
	p := &Pipeline{
		root:       resolved,
		classifier: cls,
		store:      store,
		validator:  validator,
		mover:      MoverFunc(fileutil.MoveFile),
		bus:        NewBus(),
		policy:     AlwaysConfirm{},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "ingest")
	p.manual = newManualPlacement(p.root, p.rules, validator)
	return p, nil
}

// Bus returns the message bus.
func (p *Pipeline) Bus() *Bus {
	return p.bus
}

// Root returns the watch root.
func (p *Pipeline) Root() string {
	return p.root
}

// Run consumes events until the channel closes or ctx is cancelled. Each
// event is processed to completion even if ctx is cancelled mid-way.
func (p *Pipeline) Run(ctx context.Context, events <-chan watcher.Event) {
	p.refreshPending(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.handle(ctx, ev)
		}
	}
}

func (p *Pipeline) handle(ctx context.Context, ev watcher.Event) {
	eventCtx := services.WithRequestID(context.WithoutCancel(ctx), uuid.NewString())
	eventCtx = services.WithPath(eventCtx, ev.Path)
	logger := logging.WithContext(eventCtx, p.logger)

	start := time.Now()
	outcome, err := p.Process(eventCtx, ev.Path)
	if err != nil {
		logging.ErrorWithContext(logger, "event processing failed", "ingest_failed",
			logging.String("kind", ev.Kind.String()),
			logging.String("outcome", string(outcome)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the file stays where it is; touch it or restart with scan_on_start to retry"),
		)
		return
	}
	logger.Info("event processed",
		logging.String("kind", ev.Kind.String()),
		logging.String("outcome", string(outcome)),
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldEventType, "ingest_complete"),
	)
}

// Process runs one path through hash, classification, taxonomy correction
// and draft storage.
func (p *Pipeline) Process(ctx context.Context, path string) (outcome Outcome, err error) {
	defer func() { eventsProcessedTotal.WithLabelValues(string(outcome)).Inc() }()

	path = p.canonicalPath(path)
	ctx = services.WithPath(ctx, path)
	logger := logging.WithContext(ctx, p.logger)

	if !fileutil.IsWithin(p.root, path) {
		return OutcomeSkipped, services.Wrap(services.ErrValidation, "ingest", "process", "path outside watch root", nil)
	}

	existing, err := p.store.Get(ctx, path)
	if err != nil {
		return OutcomeFailed, services.Wrap(services.ErrTransient, "ingest", "lookup", "", err)
	}
	if existing != nil && existing.Confirmed {
		logger.Debug("path belongs to a confirmed record", logging.RecordID(existing.ID))
		return OutcomeSkipped, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("file vanished before processing")
			return OutcomeSkipped, nil
		}
		return OutcomeFailed, services.Wrap(services.ErrTransient, "ingest", "stat", "", err)
	}
	if info.IsDir() {
		return OutcomeSkipped, nil
	}

	ctx = services.WithStage(ctx, "hash")
	hash, size, err := fileutil.HashFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return OutcomeSkipped, nil
		}
		return OutcomeFailed, services.Wrap(services.ErrTransient, "ingest", "hash", "", err)
	}
	if existing != nil && existing.ContentHash == hash {
		logger.Debug("draft content unchanged", logging.RecordID(existing.ID))
		return OutcomeUnchanged, nil
	}

	ctx = services.WithStage(ctx, "classify")
	result, placement, deviceSlug, err := p.classify(ctx, path, hash)
	if err != nil {
		p.reportFailure(ctx, path, err)
		return OutcomeFailed, err
	}

	docType := taxonomy.NormalizeDocType(result.DocType)
	if placement.Corrected {
		logger.Info("taxonomy corrected",
			logging.String("raw", result.CategorySlug),
			logging.String("placement", placement.Key()),
			logging.String("reason", placement.Reason),
			logging.String(logging.FieldEventType, "taxonomy_corrected"),
		)
	}

	draft := index.Draft{
		Path:         path,
		ContentHash:  hash,
		DocType:      docType,
		Vendor:       result.Vendor,
		Model:        result.Model,
		CategorySlug: placement.Category,
		GroupSlug:    placement.Group,
		DeviceSlug:   deviceSlug,
		Summary:      result.Summary,
		Confidence:   result.Confidence,
		SizeBytes:    size,
	}

	ctx = services.WithStage(ctx, "store")
	p.writeMu.Lock()
	id, err := p.store.UpsertDraft(ctx, draft)
	if err == nil {
		detail := fmt.Sprintf("%s %s %s", docType, placement.Key(), deviceSlug)
		if logErr := p.store.LogEvent(ctx, index.EventDraftCreated, path, detail); logErr != nil {
			logger.Warn("audit log write failed", logging.Error(logErr))
		}
	}
	p.writeMu.Unlock()
	if err != nil {
		return OutcomeFailed, services.Wrap(services.ErrTransient, "ingest", "store draft", "", err)
	}
	p.refreshPending(ctx)

	msg := p.draftMessage(id, draft)
	p.bus.Publish(msg)
	logging.WithContext(services.WithRecordID(ctx, id), p.logger).Info("draft stored",
		logging.DocType(docType),
		logging.Device(deviceSlug),
		logging.String("placement", placement.Key()),
		logging.Float64("confidence", result.Confidence),
		logging.Bool("fallback", result.Fallback),
		logging.String(logging.FieldEventType, "draft_created"),
	)

	if p.policy.AutoConfirm(msg) {
		if _, err := p.Confirm(ctx, id); err != nil {
			logging.WarnWithContext(logger, "automatic approval failed", "auto_confirm_failed",
				logging.RecordID(id),
				logging.Error(err),
				logging.String(logging.FieldImpact, "draft left for manual approval"),
			)
			return OutcomeDrafted, nil
		}
		return OutcomeAutoConfirmed, nil
	}
	return OutcomeDrafted, nil
}

// canonicalPath makes path absolute and, when it names the root through a
// symlink, rewrites it onto the resolved root.
func (p *Pipeline) canonicalPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.Clean(path)
	if fileutil.IsWithin(p.root, path) {
		return path
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(path)); err == nil {
		return filepath.Join(dir, filepath.Base(path))
	}
	return path
}

// classify picks the cheapest source for a classification: a hand placement,
// a cached result for the same bytes, or the classifier.
func (p *Pipeline) classify(ctx context.Context, path, hash string) (classifier.Result, taxonomy.Placement, string, error) {
	if match, ok := p.manual.Detect(path); ok {
		classificationDuration.WithLabelValues("manual").Observe(0)
		return match.result, match.placement, match.deviceSlug, nil
	}

	result, cached := p.dedup.Get(hash)
	if !cached {
		start := time.Now()
		var err error
		result, err = p.classifier.Classify(ctx, path)
		classificationDuration.WithLabelValues("classifier").Observe(time.Since(start).Seconds())
		if err != nil {
			return classifier.Result{}, taxonomy.Placement{}, "", err
		}
		if !result.Fallback {
			p.dedup.Add(hash, result)
		}
	} else {
		classificationDuration.WithLabelValues("cache").Observe(0)
	}

	placement := p.validator.Resolve(result.Category(), result.Group())
	return result, placement, slug.DeviceSlugOrUnknown(result.Vendor, result.Model), nil
}

func (p *Pipeline) reportFailure(ctx context.Context, path string, cause error) {
	logger := logging.WithContext(ctx, p.logger)
	if err := p.store.LogEvent(ctx, index.EventClassificationFailed, path, cause.Error()); err != nil {
		logger.Warn("audit log write failed", logging.Error(err))
	}
	p.bus.Publish(ClassificationFailed{
		EventID: uuid.NewString(),
		Path:    path,
		Err:     cause,
		At:      time.Now().UTC(),
	})
}

// ProposedPath returns the final location of a file with the given placement.
func (p *Pipeline) ProposedPath(category, group, deviceSlug, fileName string) string {
	return filepath.Join(p.root, category, group, deviceSlug, fileName)
}

func (p *Pipeline) draftMessage(id int64, d index.Draft) DraftCreated {
	name := filepath.Base(d.Path)
	proposed := p.ProposedPath(d.CategorySlug, d.GroupSlug, d.DeviceSlug, name)
	if p.alreadyPlaced(d.Path, d.CategorySlug, d.GroupSlug, d.DeviceSlug) {
		proposed = d.Path
	}
	return DraftCreated{
		EventID:      uuid.NewString(),
		RecordID:     id,
		Path:         d.Path,
		FileName:     name,
		Vendor:       d.Vendor,
		Model:        d.Model,
		DocType:      d.DocType,
		Summary:      d.Summary,
		Category:     d.CategorySlug,
		Group:        d.GroupSlug,
		DeviceSlug:   d.DeviceSlug,
		ProposedPath: proposed,
		Confidence:   d.Confidence,
		At:           time.Now().UTC(),
	}
}

func (p *Pipeline) recordMessage(rec *index.Record) DraftCreated {
	return p.draftMessage(rec.ID, index.Draft{
		Path:         rec.Path,
		DocType:      rec.DocType,
		Vendor:       rec.Vendor,
		Model:        rec.Model,
		CategorySlug: rec.CategorySlug,
		GroupSlug:    rec.GroupSlug,
		DeviceSlug:   rec.DeviceSlug,
		Summary:      rec.Summary,
		Confidence:   rec.Confidence,
	})
}

// alreadyPlaced reports whether path already sits under its device directory.
func (p *Pipeline) alreadyPlaced(path, category, group, deviceSlug string) bool {
	deviceDir := filepath.Join(p.root, category, group, deviceSlug)
	return fileutil.IsWithin(deviceDir, path) && filepath.Clean(path) != deviceDir
}

func (p *Pipeline) refreshPending(ctx context.Context) {
	stats, err := p.store.Stats(ctx)
	if err != nil {
		p.logger.Debug("pending draft count unavailable", logging.Error(err))
		return
	}
	draftsPending.Set(float64(stats.Drafts))
}

// Wait blocks until background regenerations finish.
func (p *Pipeline) Wait() {
	p.regenWG.Wait()
}
