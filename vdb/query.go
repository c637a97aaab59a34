package vdb

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/latticedb/vdb/internal/filter"
	"github.com/latticedb/vdb/internal/types"
)

// batchFanOut bounds how many goroutines a batch operation over
// independent ids runs concurrently, per the teacher's unused
// BatchConfig.MaxConcurrency knob.
const batchFanOut = 8

// InsertItem is one vector in a batch insert/upsert request. A blank ID
// requests a freshly generated one.
type InsertItem struct {
	ID       string
	Vector   []float32
	Metadata map[string]interface{}
}

// SearchQuery is a single nearest-neighbor request, optionally filtered
// and paginated.
type SearchQuery struct {
	Vector []float32
	Filter filter.Condition
	Limit  int
	Offset int
}

// Insert adds one vector, generating an id when the caller doesn't supply
// one, and returns the id actually stored.
func (db *Database) Insert(ctx context.Context, collectionName, id string, vector []float32, metadata map[string]interface{}) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}
	uid, err := idOrErr(id)
	if err != nil {
		return "", err
	}
	if err := db.checkDimension(collectionName, vector); err != nil {
		return "", err
	}
	if err := db.engine.InsertVector(ctx, collectionName, uid, vector, metadata); err != nil {
		return "", NewError(KindInternal, "inserting vector").WithCause(err)
	}
	return id, nil
}

// checkDimension rejects a vector whose length doesn't match the
// collection's configured dimension before it reaches the engine, so a
// mismatch surfaces as errInvalidDimension rather than a generic storage
// error.
func (db *Database) checkDimension(collectionName string, vector []float32) error {
	cfg, err := db.engine.GetCollectionConfig(collectionName)
	if err != nil {
		return errCollectionNotFound(collectionName)
	}
	if len(vector) != cfg.Dimension {
		return errInvalidDimension(cfg.Dimension, len(vector))
	}
	return nil
}

// BatchInsert appends every item to storage and the index in one
// contiguous write, preserving input order (the HNSW layer-assignment
// draw is order-sensitive), and returns the id assigned to each item.
func (db *Database) BatchInsert(ctx context.Context, collectionName string, items []InsertItem) ([]string, error) {
	ids := make([]uuid.UUID, len(items))
	vectors := make([][]float32, len(items))
	metadatas := make([]map[string]interface{}, len(items))
	out := make([]string, len(items))

	for i, item := range items {
		raw := item.ID
		if raw == "" {
			raw = uuid.New().String()
		}
		uid, err := idOrErr(raw)
		if err != nil {
			return nil, err
		}
		if err := db.checkDimension(collectionName, item.Vector); err != nil {
			return nil, err
		}
		ids[i], vectors[i], metadatas[i] = uid, item.Vector, item.Metadata
		out[i] = raw
	}
	if err := db.engine.BatchInsert(ctx, collectionName, ids, vectors, metadatas); err != nil {
		return nil, NewError(KindInternal, "batch inserting vectors").WithCause(err)
	}
	return out, nil
}

// BatchUpsert deletes then re-inserts each item by id. Unlike BatchInsert,
// items are independent of one another and fan out across a bounded pool
// of goroutines.
func (db *Database) BatchUpsert(ctx context.Context, collectionName string, items []InsertItem) ([]string, error) {
	out := make([]string, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchFanOut)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			id := item.ID
			if id != "" {
				_ = db.engine.DeleteVector(gctx, collectionName, id)
			} else {
				id = uuid.New().String()
			}
			uid, err := idOrErr(id)
			if err != nil {
				return err
			}
			if err := db.checkDimension(collectionName, item.Vector); err != nil {
				return err
			}
			if err := db.engine.InsertVector(gctx, collectionName, uid, item.Vector, item.Metadata); err != nil {
				return err
			}
			out[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, NewError(KindInternal, "batch upsert").WithCause(err)
	}
	return out, nil
}

// BatchDelete removes every id, independently and concurrently.
func (db *Database) BatchDelete(ctx context.Context, collectionName string, ids []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchFanOut)
	for _, id := range ids {
		id := id
		g.Go(func() error { return db.engine.DeleteVector(gctx, collectionName, id) })
	}
	if err := g.Wait(); err != nil {
		return NewError(KindInternal, "batch delete").WithCause(err)
	}
	return nil
}

// Update replaces a vector's data and metadata in place: delete followed
// by insert under the same id.
func (db *Database) Update(ctx context.Context, collectionName, id string, vector []float32, metadata map[string]interface{}) error {
	_ = db.engine.DeleteVector(ctx, collectionName, id)
	uid, err := idOrErr(id)
	if err != nil {
		return err
	}
	if err := db.checkDimension(collectionName, vector); err != nil {
		return err
	}
	if err := db.engine.InsertVector(ctx, collectionName, uid, vector, metadata); err != nil {
		return NewError(KindInternal, "updating vector").WithCause(err)
	}
	return nil
}

// Get performs a point lookup by id.
func (db *Database) Get(collectionName, id string) (*types.Vector, error) {
	v, err := db.engine.GetVector(collectionName, id)
	if err != nil {
		return nil, errNotFound(fmt.Sprintf("vector %q in collection %q", id, collectionName))
	}
	return v, nil
}

// Delete removes a vector by id.
func (db *Database) Delete(ctx context.Context, collectionName, id string) error {
	if err := db.engine.DeleteVector(ctx, collectionName, id); err != nil {
		return errNotFound(fmt.Sprintf("vector %q in collection %q", id, collectionName)).WithCause(err)
	}
	return nil
}

// search runs the index search, over-fetching 3x when a filter is present
// so the post-filter pass still has enough candidates to fill k.
func (db *Database) search(ctx context.Context, collectionName string, vector []float32, k int, cond filter.Condition) ([]*types.ScoredPoint, error) {
	if k <= 0 {
		return nil, errInvalidInput("limit must be positive")
	}
	fetch := k
	if cond != nil {
		fetch = k * 3
	}
	raw, err := db.engine.Search(ctx, collectionName, vector, fetch)
	if err != nil {
		if db.metrics != nil {
			db.metrics.SearchErrors.Inc()
		}
		return nil, NewError(KindInternal, "searching index").WithCause(err)
	}
	if db.metrics != nil {
		db.metrics.SearchQueries.Inc()
	}

	out := make([]*types.ScoredPoint, 0, k)
	for _, r := range raw {
		if cond != nil && !filter.Evaluate(cond, r.Metadata) {
			continue
		}
		out = append(out, &types.ScoredPoint{ID: r.ID, Score: r.Score, Vector: r.Vector, Metadata: r.Metadata})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Query runs a single nearest-neighbor search, paginating by offset into
// an over-fetched limit+offset candidate set.
func (db *Database) Query(ctx context.Context, collectionName string, q SearchQuery) ([]*types.ScoredPoint, error) {
	if q.Limit <= 0 {
		return nil, errInvalidInput("limit must be positive")
	}
	results, err := db.search(ctx, collectionName, q.Vector, q.Limit+q.Offset, q.Filter)
	if err != nil {
		return nil, err
	}
	return paginate(results, q.Offset, q.Limit), nil
}

// BatchSearch runs every query against the same collection concurrently,
// preserving the input order in the returned slice.
func (db *Database) BatchSearch(ctx context.Context, collectionName string, queries []SearchQuery) ([][]*types.ScoredPoint, error) {
	results := make([][]*types.ScoredPoint, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchFanOut)

	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			r, err := db.Query(gctx, collectionName, q)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RecommendRequest resolves a pooled query vector from example ids: move
// toward positives, away from negatives.
type RecommendRequest struct {
	Positive []string
	Negative []string
	Filter   filter.Condition
	Limit    int
	Offset   int
}

// Recommend resolves a pooled query vector from positive and negative
// example ids (`q = 2*avg(P) - avg(N)` when negatives are present, else
// `avg(P)`) and runs a standard paginated query against it.
func (db *Database) Recommend(ctx context.Context, collectionName string, req RecommendRequest) ([]*types.ScoredPoint, error) {
	if len(req.Positive) == 0 {
		return nil, errInvalidInput("recommend requires at least one positive example")
	}
	posVectors, err := db.resolveVectors(collectionName, req.Positive)
	if err != nil {
		return nil, err
	}
	avgPos := averageVectors(posVectors)

	query := avgPos
	if len(req.Negative) > 0 {
		negVectors, err := db.resolveVectors(collectionName, req.Negative)
		if err != nil {
			return nil, err
		}
		avgNeg := averageVectors(negVectors)
		query = make([]float32, len(avgPos))
		for i := range query {
			query[i] = 2*avgPos[i] - avgNeg[i]
		}
	}

	results, err := db.search(ctx, collectionName, query, req.Limit+req.Offset, req.Filter)
	if err != nil {
		return nil, err
	}
	return paginate(results, req.Offset, req.Limit), nil
}

// ContextPair is one (positive, negative) example pair for Discover.
type ContextPair struct {
	Positive []float32
	Negative []float32
}

// DiscoverRequest resolves a query vector by nudging a target vector (or
// a target id's stored vector) along the average positive-minus-negative
// direction across a set of context pairs.
type DiscoverRequest struct {
	TargetVector []float32
	TargetID     string
	Contexts     []ContextPair
	Filter       filter.Condition
	Limit        int
	Offset       int
}

// Discover nudges a target vector toward the average direction implied by
// a set of (positive, negative) context pairs, then runs a standard
// paginated query against the nudged vector.
func (db *Database) Discover(ctx context.Context, collectionName string, req DiscoverRequest) ([]*types.ScoredPoint, error) {
	target := req.TargetVector
	if target == nil {
		if req.TargetID == "" {
			return nil, errInvalidInput("discover requires a target vector or target id")
		}
		v, err := db.Get(collectionName, req.TargetID)
		if err != nil {
			return nil, err
		}
		target = v.Data
	}

	query := target
	if len(req.Contexts) > 0 {
		avgDiff := make([]float32, len(target))
		for _, pair := range req.Contexts {
			for i := range avgDiff {
				avgDiff[i] += pair.Positive[i] - pair.Negative[i]
			}
		}
		n := float32(len(req.Contexts))
		query = make([]float32, len(target))
		for i := range query {
			query[i] = target[i] + avgDiff[i]/n
		}
	}

	results, err := db.search(ctx, collectionName, query, req.Limit+req.Offset, req.Filter)
	if err != nil {
		return nil, err
	}
	return paginate(results, req.Offset, req.Limit), nil
}

// ScrollResult is one page of an offset-paginated full scan.
type ScrollResult struct {
	Points     []*types.ScoredPoint
	NextOffset string // empty once exhausted
}

// Scroll paginates through every vector in a collection by integer offset
// encoded as a decimal string, applying an optional filter first. Scores
// are always 0 since scroll isn't a similarity search.
func (db *Database) Scroll(collectionName, offset string, limit int, cond filter.Condition) (*ScrollResult, error) {
	if limit <= 0 {
		return nil, errInvalidInput("limit must be positive")
	}
	start := 0
	if offset != "" {
		parsed, err := strconv.Atoi(offset)
		if err != nil || parsed < 0 {
			return nil, errInvalidInput(fmt.Sprintf("invalid scroll offset %q", offset))
		}
		start = parsed
	}

	all, err := db.engine.GetAllVectors(collectionName)
	if err != nil {
		return nil, errCollectionNotFound(collectionName)
	}

	matched := make([]*types.Vector, 0, len(all))
	for _, v := range all {
		if cond == nil || filter.Evaluate(cond, v.Metadata) {
			matched = append(matched, v)
		}
	}

	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	points := make([]*types.ScoredPoint, 0, end-start)
	for _, v := range matched[start:end] {
		points = append(points, &types.ScoredPoint{ID: v.ID, Score: 0, Vector: v.Data, Metadata: v.Metadata})
	}

	next := ""
	if end < len(matched) {
		next = strconv.Itoa(end)
	}
	return &ScrollResult{Points: points, NextOffset: next}, nil
}

// Count returns the number of vectors matching cond, or the collection's
// total vector count when cond is nil.
func (db *Database) Count(collectionName string, cond filter.Condition) (int, error) {
	if cond == nil {
		stats, err := db.engine.GetCollectionStats(collectionName)
		if err != nil {
			return 0, errCollectionNotFound(collectionName)
		}
		return stats.VectorCount, nil
	}

	all, err := db.engine.GetAllVectors(collectionName)
	if err != nil {
		return 0, errCollectionNotFound(collectionName)
	}
	count := 0
	for _, v := range all {
		if filter.Evaluate(cond, v.Metadata) {
			count++
		}
	}
	return count, nil
}

func (db *Database) resolveVectors(collectionName string, ids []string) ([][]float32, error) {
	out := make([][]float32, 0, len(ids))
	for _, id := range ids {
		v, err := db.engine.GetVector(collectionName, id)
		if err != nil {
			return nil, errNotFound(fmt.Sprintf("reference vector %q not found", id))
		}
		out = append(out, v.Data)
	}
	return out, nil
}

func averageVectors(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	avg := make([]float32, len(vectors[0]))
	for _, v := range vectors {
		for i, x := range v {
			avg[i] += x
		}
	}
	for i := range avg {
		avg[i] /= float32(len(vectors))
	}
	return avg
}

func paginate(points []*types.ScoredPoint, offset, limit int) []*types.ScoredPoint {
	if offset >= len(points) {
		return []*types.ScoredPoint{}
	}
	end := offset + limit
	if end > len(points) {
		end = len(points)
	}
	return points[offset:end]
}
