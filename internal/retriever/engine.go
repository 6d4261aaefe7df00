package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mathmentor/mathrag/internal/config"
	"github.com/mathmentor/mathrag/internal/embed"
	"github.com/mathmentor/mathrag/internal/errors"
	"github.com/mathmentor/mathrag/internal/kb"
	"github.com/mathmentor/mathrag/internal/store"
)

// fetchFactor is how many candidates each index leg returns relative to
// topK. Fusion needs overlap between the legs to work with, so each leg
// over-fetches.
const fetchFactor = 2

// Engine is the hybrid retriever. It owns both index legs, the query
// normalizer, and the reranker. Concurrent Retrieve calls are safe;
// BuildIndex takes the write lock and swaps state atomically.
type Engine struct {
	mu         sync.RWMutex
	cfg        *config.Config
	embedder   embed.Embedder
	vector     *store.VectorIndex
	lexical    store.LexicalIndex
	normalizer *Normalizer
	reranker   *Reranker
	logger     *slog.Logger
	state      State
}

// NewEngine wires an engine from its dependencies. Extra normalizer rules
// are appended after the defaults.
func NewEngine(cfg *config.Config, embedder embed.Embedder, lexical store.LexicalIndex, logger *slog.Logger, extraRules ...Rule) (*Engine, error) {
	if cfg == nil || embedder == nil || lexical == nil {
		return nil, errors.ValidationError("engine requires config, embedder, and lexical index", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	vector, err := store.NewVectorIndex(embedder.Dimensions())
	if err != nil {
		return nil, err
	}

	rules := append(DefaultRules(), extraRules...)

	return &Engine{
		cfg:        cfg,
		embedder:   embedder,
		vector:     vector,
		lexical:    lexical,
		normalizer: NewNormalizer(rules...),
		reranker: NewReranker(cfg.Retrieval.FusedWeight, cfg.Retrieval.PriorWeight,
			cfg.Retrieval.TypePriorities),
		logger: logger,
		state:  StateEmpty,
	}, nil
}

// State reports whether the engine currently has an index.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Counts returns the number of chunks in each index leg.
func (e *Engine) Counts() (vector, lexical int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.vector.Count(), e.lexical.Count()
}

// BuildIndex embeds the chunk set and populates both index legs from
// scratch, then persists them under the configured index directory. Calling
// it again with the same chunks produces an equivalent index; previous
// contents are always cleared first.
func (e *Engine) BuildIndex(ctx context.Context, chunks []kb.Chunk) error {
	if len(chunks) == 0 {
		return errors.New(errors.ErrCodeKnowledgeBaseEmpty, "no chunks to index", nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.vector.Clear()
	e.state = StateEmpty

	batchSize := e.cfg.Embeddings.BatchSize
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}
		vectors, err := e.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return errors.New(errors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("embed chunks %d-%d", start, end-1), err)
		}
		if err := e.vector.Add(vectors, batch); err != nil {
			return err
		}
	}

	if err := e.lexical.Fit(chunks); err != nil {
		return err
	}

	buildID := NewBuildID()
	e.vector.SetBuildID(buildID)
	e.lexical.SetBuildID(buildID)
	e.state = StatePopulated

	e.logger.Info("index built",
		slog.Int("chunks", len(chunks)),
		slog.String("build_id", buildID))

	return e.persist(buildID, len(chunks))
}

// persist writes both legs and the manifest. Each file lands via
// write-then-rename, so readers never observe a half-written index.
func (e *Engine) persist(buildID string, chunkCount int) error {
	dir := e.cfg.Paths.IndexDir
	if dir == "" {
		return nil
	}

	if err := e.vector.Save(filepath.Join(dir, VectorFileName)); err != nil {
		return err
	}
	if err := e.lexical.Save(filepath.Join(dir, LexicalFileName)); err != nil {
		return err
	}
	return SaveManifest(dir, Manifest{
		Version:        ManifestVersion,
		BuildID:        buildID,
		CreatedAt:      nowUTC(),
		ChunkCount:     chunkCount,
		Dimensions:     e.embedder.Dimensions(),
		EmbedderModel:  e.embedder.ModelName(),
		LexicalBackend: e.cfg.BM25.Backend,
	})
}

// LoadPersisted restores a previously built index from the index directory.
// Both legs must deserialize and carry the manifest's build ID; any failure
// leaves the engine empty and returns the cause. An empty engine is still
// usable, it just retrieves nothing.
func (e *Engine) LoadPersisted() error {
	dir := e.cfg.Paths.IndexDir
	if dir == "" {
		return errors.ConfigError("no index directory configured", nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateEmpty

	manifest, err := LoadManifest(dir)
	if err != nil {
		e.logger.Warn("manifest load failed, starting empty",
			slog.String("dir", dir),
			slog.String("error", err.Error()))
		return err
	}

	if manifest.Dimensions != e.embedder.Dimensions() {
		err := errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("index built with %d dimensions, embedder %q produces %d",
				manifest.Dimensions, e.embedder.ModelName(), e.embedder.Dimensions()), nil).
			WithSuggestion("run 'mathrag index' to rebuild with the configured embedder")
		e.logger.Warn("persisted index unusable", slog.String("error", err.Error()))
		return err
	}

	vector, err := store.NewVectorIndex(manifest.Dimensions)
	if err != nil {
		return err
	}
	if err := vector.Load(filepath.Join(dir, VectorFileName)); err != nil {
		e.logger.Warn("vector leg load failed, starting empty",
			slog.String("error", err.Error()))
		return err
	}
	if err := e.lexical.Load(filepath.Join(dir, LexicalFileName)); err != nil {
		e.logger.Warn("lexical leg load failed, starting empty",
			slog.String("error", err.Error()))
		return err
	}

	if vector.BuildID() != manifest.BuildID || e.lexical.BuildID() != manifest.BuildID {
		err := errors.New(errors.ErrCodeCorruptIndex,
			"index legs belong to different builds", nil).
			WithDetail("manifest", manifest.BuildID).
			WithDetail("vector", vector.BuildID()).
			WithDetail("lexical", e.lexical.BuildID()).
			WithSuggestion("run 'mathrag index' to rebuild")
		e.logger.Warn("persisted index inconsistent, starting empty",
			slog.String("error", err.Error()))
		return err
	}

	e.vector = vector
	e.state = StatePopulated

	e.logger.Info("index loaded",
		slog.String("build_id", manifest.BuildID),
		slog.Int("chunks", manifest.ChunkCount))
	return nil
}

// Retrieve runs hybrid retrieval and returns up to topK results by
// decreasing score. An empty or unindexed engine returns an empty slice.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	results, _, err := e.retrieve(ctx, query, topK)
	return results, err
}

// RetrieveForProblem retrieves context for a parsed problem. Topic and
// subtopic hints join the statement in the query. The returned context
// always has non-nil slices; confidence is the mean of the final scores and
// zero when nothing was retrieved.
func (e *Engine) RetrieveForProblem(ctx context.Context, problem ParsedProblem) (*ProblemContext, error) {
	statement := strings.TrimSpace(problem.Statement)
	if statement == "" {
		return nil, errors.ValidationError("problem statement is empty", nil)
	}

	query := statement
	if problem.Topic != "" {
		query += " " + problem.Topic
	}
	if problem.Subtopic != "" {
		query += " " + problem.Subtopic
	}

	results, effective, err := e.retrieve(ctx, query, e.cfg.Retrieval.TopK)
	if err != nil {
		return nil, err
	}

	confidence := 0.0
	for _, r := range results {
		confidence += r.Score
	}
	if len(results) > 0 {
		confidence /= float64(len(results))
	}

	sources := make([]string, 0, len(results))
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		if !seen[r.Source] {
			seen[r.Source] = true
			sources = append(sources, r.Source)
		}
	}

	return &ProblemContext{
		Results:    results,
		Confidence: confidence,
		Sources:    sources,
		Query:      effective,
	}, nil
}

func (e *Engine) retrieve(ctx context.Context, query string, topK int) ([]Result, string, error) {
	if topK <= 0 {
		topK = e.cfg.Retrieval.TopK
	}
	effective := e.normalizer.Normalize(query)

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state == StateEmpty || effective == "" {
		return []Result{}, effective, nil
	}

	vecResults, lexResults, err := e.searchLegs(ctx, effective, topK*fetchFactor)
	if err != nil {
		return nil, effective, err
	}

	results := FuseRRF(vecResults, lexResults, e.cfg.Retrieval.RRFConstant)
	if len(results) > topK {
		results = results[:topK]
	}
	if e.cfg.Retrieval.TypeRerank {
		results = e.reranker.Rerank(results)
	}
	return results, effective, nil
}

// searchLegs queries both indexes concurrently. One failing leg degrades to
// the other with a logged warning; both failing is an error.
func (e *Engine) searchLegs(ctx context.Context, query string, fetch int) ([]store.VectorResult, []store.LexicalResult, error) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		vecResults []store.VectorResult
		lexResults []store.LexicalResult
		vecErr     error
		lexErr     error
	)

	g.Go(func() error {
		embedding, err := e.embedder.Embed(gctx, query)
		if err != nil {
			vecErr = errors.New(errors.ErrCodeEmbeddingFailed, "embed query", err)
			return nil
		}
		vecResults, vecErr = e.vector.Search(embedding, fetch)
		return nil
	})
	g.Go(func() error {
		lexResults, lexErr = e.lexical.Search(query, fetch)
		return nil
	})

	// The goroutines never return errors directly; Wait only propagates
	// context cancellation.
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if vecErr != nil && lexErr != nil {
		return nil, nil, errors.New(errors.ErrCodeInternal, "both retrieval legs failed", vecErr)
	}
	if vecErr != nil {
		e.logger.Warn("vector leg failed, using lexical only",
			slog.String("error", vecErr.Error()))
	}
	if lexErr != nil {
		e.logger.Warn("lexical leg failed, using vector only",
			slog.String("error", lexErr.Error()))
	}

	return vecResults, lexResults, nil
}

// Close releases the embedder and the lexical index.
func (e *Engine) Close() error {
	embedErr := e.embedder.Close()
	lexErr := e.lexical.Close()
	if embedErr != nil {
		return embedErr
	}
	return lexErr
}
