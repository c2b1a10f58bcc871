package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
	"github.com/custodia-labs/scholar/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// Ingestion defaults, used when IngestOptions leaves a field zero.
const (
	DefaultEmbedBatchSize   = 32
	DefaultMaxIndexAttempts = 3
	DefaultIngestWorkers    = 4
)

// IngestOptions tunes the ingestion pipeline.
type IngestOptions struct {
	// BatchSize is the number of chunk texts per embedding call.
	BatchSize int

	// MaxIndexAttempts bounds the delete-and-redo loop after a failed upsert.
	MaxIndexAttempts int

	// Workers is the default IngestBatch parallelism.
	Workers int

	// OnResult, when set, is called as each IngestBatch document finishes.
	OnResult func(domain.BatchResult)
}

func (o IngestOptions) withDefaults() IngestOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultEmbedBatchSize
	}
	if o.MaxIndexAttempts <= 0 {
		o.MaxIndexAttempts = DefaultMaxIndexAttempts
	}
	if o.Workers <= 0 {
		o.Workers = DefaultIngestWorkers
	}
	return o
}

// IngestionService runs documents through chunking, embedding and indexing.
type IngestionService struct {
	store    driven.CollectionStore
	index    driven.VectorIndex
	embedder driven.EmbeddingService
	sparse   driven.SparseEmbeddingService
	pipeline driven.PostProcessorPipeline
	journal  driven.IngestJournal
	opts     IngestOptions
	locks    *paperLocks

	// restoreMu serialises re-provisioning of missing index collections.
	restoreMu sync.Mutex
}

// NewIngestionService creates a new ingestion service.
// The sparse encoder is only needed for hybrid collections; the journal is optional.
func NewIngestionService(
	store driven.CollectionStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	sparse driven.SparseEmbeddingService,
	pipeline driven.PostProcessorPipeline,
	journal driven.IngestJournal,
	opts IngestOptions,
) *IngestionService {
	return &IngestionService{
		store:    store,
		index:    index,
		embedder: embedder,
		sparse:   sparse,
		pipeline: pipeline,
		journal:  journal,
		opts:     opts.withDefaults(),
		locks:    newPaperLocks(),
	}
}

// Ingest runs one document through the full pipeline.
func (s *IngestionService) Ingest(ctx context.Context, collectionID string, doc *domain.Document) (*domain.IngestReport, error) {
	if doc == nil {
		return nil, &domain.OpError{Op: "ingest", CollectionID: collectionID,
			Err: fmt.Errorf("%w: nil document", domain.ErrInvalidInput)}
	}
	if err := doc.Validate(); err != nil {
		return nil, &domain.OpError{Op: "ingest", CollectionID: collectionID, PaperID: doc.PaperID, Err: err}
	}

	unlock := s.locks.lock(collectionID, doc.PaperID)
	defer unlock()

	run := &ingestRun{
		svc:   s,
		doc:   doc,
		start: time.Now(),
		rec:   domain.IngestRecord{CollectionID: collectionID, PaperID: doc.PaperID},
	}
	report, err := run.execute(ctx)
	if err != nil {
		run.fail(ctx, err)
		return nil, &domain.OpError{Op: "ingest", CollectionID: collectionID, PaperID: doc.PaperID, Err: err}
	}
	return report, nil
}

// ingestRun carries the state of one document through the pipeline.
type ingestRun struct {
	svc    *IngestionService
	doc    *domain.Document
	start  time.Time
	rec    domain.IngestRecord
	schema *domain.IndexSchema

	// deleted is set once the paper's previous points may be gone.
	deleted bool
}

func (r *ingestRun) execute(ctx context.Context) (*domain.IngestReport, error) {
	s := r.svc
	logger.Section("Ingest " + r.doc.PaperID)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.advance(ctx, domain.IngestReceived); err != nil {
		return nil, err
	}
	if err := r.receive(ctx); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chunks, err := s.pipeline.Process(ctx, r.doc)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	r.rec.Chunks = len(chunks)
	if err := r.advance(ctx, domain.IngestChunked); err != nil {
		return nil, err
	}
	logger.Debug("Paper %s produced %d chunks", r.doc.PaperID, len(chunks))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	points, err := r.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if err := r.advance(ctx, domain.IngestEmbedded); err != nil {
		return nil, err
	}

	if err := r.index(ctx, points); err != nil {
		return nil, err
	}
	if err := r.advance(ctx, domain.IngestIndexed); err != nil {
		return nil, err
	}
	if err := r.advance(ctx, domain.IngestVisible); err != nil {
		return nil, err
	}

	report := &domain.IngestReport{
		CollectionID: r.rec.CollectionID,
		PaperID:      r.doc.PaperID,
		UniqueID:     r.doc.UniqueID,
		Chunks:       len(points),
		Attempts:     r.rec.Attempts,
		Duration:     time.Since(r.start),
	}
	logger.Info("Ingested %s into %s: %d chunks in %s",
		report.PaperID, report.CollectionID, report.Chunks, report.Duration.Round(time.Millisecond))
	return report, nil
}

// receive checks the collection on both sides, merges the document with
// any existing record and persists it.
func (r *ingestRun) receive(ctx context.Context) error {
	s := r.svc
	collectionID := r.rec.CollectionID

	exists, err := s.store.Exists(ctx, collectionID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("collection %s: %w", collectionID, domain.ErrNotFound)
	}
	if err := s.restoreIndex(ctx, collectionID); err != nil {
		return err
	}
	r.schema, err = s.index.Schema(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("read index schema: %w", err)
	}
	if r.schema.HasSparse && s.sparse == nil {
		return fmt.Errorf("%w: hybrid collection %s needs a sparse encoder", domain.ErrInvalidConfig, collectionID)
	}

	existing, err := s.store.GetDocument(ctx, collectionID, r.doc.PaperID)
	switch {
	case err == nil:
		r.doc.MergeMetadata(existing)
		if len(r.doc.Sections) == 0 {
			r.doc.Sections = existing.Sections
		}
		if r.doc.SourcePath == "" {
			r.doc.SourcePath = existing.SourcePath
		}
		logger.Debug("Merged paper %s with its existing record", r.doc.PaperID)
	case errors.Is(err, domain.ErrNotFound):
	default:
		return fmt.Errorf("read existing record: %w", err)
	}

	r.doc.Normalise()
	r.doc.IngestedAt = time.Now().UTC()
	if err := s.store.SaveDocument(ctx, collectionID, r.doc); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

// embed produces one point per chunk, dense always and sparse only for
// collections with a sparse field.
func (r *ingestRun) embed(ctx context.Context, chunks []domain.Chunk) ([]domain.Point, error) {
	s := r.svc
	points := make([]domain.Point, len(chunks))

	for start := 0; start < len(chunks); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		dense, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("dense embedding: %w", err)
		}
		if len(dense) != len(texts) {
			return nil, fmt.Errorf("%w: embedder returned %d vectors for %d texts",
				domain.ErrUpstreamUnavailable, len(dense), len(texts))
		}

		var sparse []*domain.SparseVector
		if r.schema.HasSparse {
			sparse, err = s.sparse.EmbedSparseBatch(ctx, texts)
			if err != nil {
				return nil, fmt.Errorf("sparse embedding: %w", err)
			}
		}

		for i := range texts {
			if len(dense[i]) != r.schema.DenseDim {
				return nil, fmt.Errorf("%w: embedding has %d dimensions, collection %s expects %d",
					domain.ErrInvalidConfig, len(dense[i]), r.rec.CollectionID, r.schema.DenseDim)
			}
			p := domain.Point{Chunk: chunks[start+i], Dense: dense[i]}
			if sparse != nil {
				p.Sparse = sparse[i]
			}
			points[start+i] = p
		}
		logger.Debug("Embedded chunks %d-%d of %d", start+1, end, len(chunks))
	}
	return points, nil
}

// index replaces the paper's points. A failed or unconfirmed upsert has an
// unknown outcome, so it is undone by delete-by-paper and redone.
func (r *ingestRun) index(ctx context.Context, points []domain.Point) error {
	s := r.svc
	collectionID, paperID := r.rec.CollectionID, r.doc.PaperID

	for attempt := 1; ; attempt++ {
		r.rec.Attempts = attempt
		if err := ctx.Err(); err != nil {
			return err
		}

		r.deleted = true
		if err := s.index.DeleteByPaper(ctx, collectionID, paperID); err != nil {
			return fmt.Errorf("delete previous points: %w", err)
		}
		if len(points) == 0 {
			return nil
		}

		err := s.index.Upsert(ctx, collectionID, points)
		if err == nil {
			err = r.confirm(ctx, len(points))
		}
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !indeterminate(err) {
			return fmt.Errorf("upsert: %w", err)
		}

		logger.Warn("Index write for %s/%s attempt %d/%d indeterminate: %v",
			collectionID, paperID, attempt, s.opts.MaxIndexAttempts, err)
		if attempt >= s.opts.MaxIndexAttempts {
			return fmt.Errorf("%w: index write failed after %d attempts: %v",
				domain.ErrUpstreamUnavailable, attempt, err)
		}
		if err := r.advance(ctx, domain.IngestEmbedded); err != nil {
			return err
		}
	}
}

// confirm checks the index holds exactly the points just written.
func (r *ingestRun) confirm(ctx context.Context, want int) error {
	counts, err := r.svc.index.PaperCounts(ctx, r.rec.CollectionID)
	if err != nil {
		return fmt.Errorf("%w: count points: %w", domain.ErrIndeterminate, err)
	}
	if got := counts[r.doc.PaperID]; got != want {
		return fmt.Errorf("%w: index holds %d of %d points", domain.ErrIndeterminate, got, want)
	}
	return nil
}

// indeterminate reports whether a failed upsert may have been partly applied.
// Rejected input is deterministic and not worth redoing.
func indeterminate(err error) bool {
	if errors.Is(err, domain.ErrIndeterminate) {
		return true
	}
	return !errors.Is(err, domain.ErrInvalidInput) &&
		!errors.Is(err, domain.ErrInvalidConfig) &&
		!errors.Is(err, domain.ErrNotFound)
}

// advance moves the record to next and journals it.
func (r *ingestRun) advance(ctx context.Context, next domain.IngestState) error {
	if err := r.rec.Advance(next); err != nil {
		return err
	}
	logger.Debug("Paper %s: %s", r.doc.PaperID, next)
	r.journal(ctx)
	return nil
}

// fail records the failure and, when old points may have been removed,
// deletes whatever was written so the paper is absent rather than partial.
func (r *ingestRun) fail(ctx context.Context, cause error) {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if r.deleted {
		if err := r.svc.index.DeleteByPaper(detached, r.rec.CollectionID, r.doc.PaperID); err != nil {
			logger.Warn("Cleanup of %s/%s failed: %v", r.rec.CollectionID, r.doc.PaperID, err)
		}
	}

	r.rec.Error = cause.Error()
	if r.rec.State != "" && r.rec.State.CanTransition(domain.IngestFailed) {
		_ = r.rec.Advance(domain.IngestFailed)
	}
	r.journal(detached)
	logger.Warn("Ingest of %s into %s failed: %v", r.doc.PaperID, r.rec.CollectionID, cause)
}

func (r *ingestRun) journal(ctx context.Context) {
	if r.svc.journal == nil || r.rec.State == "" {
		return
	}
	if err := r.svc.journal.Record(ctx, r.rec); err != nil {
		logger.Warn("Journal write for %s failed: %v", r.doc.PaperID, err)
	}
}

// IngestBatch ingests documents with a bounded worker pool.
// workers <= 0 uses the configured default. Results keep input order.
func (s *IngestionService) IngestBatch(
	ctx context.Context, collectionID string, docs []*domain.Document, workers int,
) []domain.BatchResult {
	if workers <= 0 {
		workers = s.opts.Workers
	}
	results := make([]domain.BatchResult, len(docs))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, doc := range docs {
		if doc != nil {
			results[i].PaperID = doc.PaperID
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i].Err = ctx.Err()
			s.notify(results[i])
			continue
		}

		wg.Add(1)
		go func(i int, doc *domain.Document) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i].Report, results[i].Err = s.Ingest(ctx, collectionID, doc)
			s.notify(results[i])
		}(i, doc)
	}

	wg.Wait()
	return results
}

func (s *IngestionService) notify(result domain.BatchResult) {
	if s.opts.OnResult != nil {
		s.opts.OnResult(result)
	}
}

// Reindex re-ingests a paper from its stored record.
func (s *IngestionService) Reindex(ctx context.Context, collectionID, paperID string) (*domain.IngestReport, error) {
	doc, err := s.store.GetDocument(ctx, collectionID, paperID)
	if err != nil {
		return nil, &domain.OpError{Op: "reindex", CollectionID: collectionID, PaperID: paperID, Err: err}
	}
	return s.Ingest(ctx, collectionID, doc)
}

// Repair re-ingests every paper on disk that has no points in the index.
// A missing index collection is provisioned again first.
func (s *IngestionService) Repair(ctx context.Context, collectionID string) []domain.BatchResult {
	if err := s.restoreIndex(ctx, collectionID); err != nil {
		return []domain.BatchResult{{Err: &domain.OpError{Op: "repair", CollectionID: collectionID, Err: err}}}
	}
	missing, err := s.missingPapers(ctx, collectionID)
	if err != nil {
		return []domain.BatchResult{{Err: &domain.OpError{Op: "repair", CollectionID: collectionID, Err: err}}}
	}
	if len(missing) == 0 {
		return nil
	}
	logger.Info("Repairing %d paper(s) in %s", len(missing), collectionID)

	docs := make([]*domain.Document, 0, len(missing))
	var results []domain.BatchResult
	for _, paperID := range missing {
		doc, err := s.store.GetDocument(ctx, collectionID, paperID)
		if err != nil {
			results = append(results, domain.BatchResult{PaperID: paperID, Err: err})
			continue
		}
		docs = append(docs, doc)
	}
	return append(results, s.IngestBatch(ctx, collectionID, docs, 0)...)
}

// restoreIndex recreates the index collection from the collection's info
// record when the directory exists but the index collection does not.
func (s *IngestionService) restoreIndex(ctx context.Context, collectionID string) error {
	s.restoreMu.Lock()
	defer s.restoreMu.Unlock()

	present, err := s.index.Exists(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("check index collection: %w", err)
	}
	if present {
		return nil
	}

	info, err := s.store.Get(ctx, collectionID)
	if err != nil {
		return err
	}
	searchType := info.SearchType
	if searchType == "" {
		searchType = domain.SearchTypeHybrid
	}
	dim, err := s.embedder.Dimensions(ctx)
	if err != nil {
		return fmt.Errorf("probe embedding dimension: %w", err)
	}

	err = s.index.Create(ctx, collectionID, dim, searchType)
	if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return fmt.Errorf("restore index collection: %w", err)
	}
	logger.Info("Restored %s index collection %s (%d dimensions)", searchType, collectionID, dim)
	return nil
}

func (s *IngestionService) missingPapers(ctx context.Context, collectionID string) ([]string, error) {
	papers, err := s.store.ListDocuments(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	counts, err := s.index.PaperCounts(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, paperID := range papers {
		if counts[paperID] > 0 {
			continue
		}
		if s.journal != nil {
			if rec, err := s.journal.Get(ctx, collectionID, paperID); err == nil &&
				rec.State == domain.IngestVisible && rec.Chunks == 0 {
				continue
			}
		}
		missing = append(missing, paperID)
	}
	return missing, nil
}

// Remove deletes a paper's points, record and journal entry.
func (s *IngestionService) Remove(ctx context.Context, collectionID, paperID string) error {
	unlock := s.locks.lock(collectionID, paperID)
	defer unlock()

	opErr := func(err error) error {
		return &domain.OpError{Op: "remove paper", CollectionID: collectionID, PaperID: paperID, Err: err}
	}
	if err := s.index.DeleteByPaper(ctx, collectionID, paperID); err != nil {
		return opErr(err)
	}
	if err := s.store.DeleteDocument(ctx, collectionID, paperID); err != nil {
		return opErr(err)
	}
	if s.journal != nil {
		if err := s.journal.Delete(ctx, collectionID, paperID); err != nil {
			return opErr(err)
		}
	}
	logger.Info("Removed %s from %s", paperID, collectionID)
	return nil
}

// Status returns the journal record for a paper.
func (s *IngestionService) Status(ctx context.Context, collectionID, paperID string) (*domain.IngestRecord, error) {
	if s.journal == nil {
		return nil, &domain.OpError{Op: "ingest status", CollectionID: collectionID, PaperID: paperID,
			Err: fmt.Errorf("no journal: %w", domain.ErrNotFound)}
	}
	rec, err := s.journal.Get(ctx, collectionID, paperID)
	if err != nil {
		return nil, &domain.OpError{Op: "ingest status", CollectionID: collectionID, PaperID: paperID, Err: err}
	}
	return rec, nil
}
