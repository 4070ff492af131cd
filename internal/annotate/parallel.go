package annotate

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/vcf-annotate/internal/hgvs"
	"github.com/inodb/vcf-annotate/internal/vcf"
)

// ErrWorkerPanic is returned when a worker panicked while annotating.
var ErrWorkerPanic = errors.New("annotation worker panicked")

const (
	defaultTimeout       = 30 * time.Second
	defaultRetryInterval = 200 * time.Millisecond
)

// WorkItem is a chunk of consecutive loci with its position in the input.
type WorkItem struct {
	Seq  int
	Loci []*vcf.Locus
}

// WorkResult holds the annotations of one chunk, in locus order.
type WorkResult struct {
	Seq     int
	Anns    []*VariantAnnotation
	Skipped int
}

// Stats summarizes a run.
type Stats struct {
	Loci    int
	Written int
	Skipped int
}

// Orchestrator annotates a VCF with a fixed pool of workers, each owning its
// own engine, and writes results in input order.
type Orchestrator struct {
	Workers       int           // 0 means runtime.NumCPU()
	ChunkSize     int           // loci per work item, at least 1
	Timeout       time.Duration // per-locus deadline
	Retries       int           // extra attempts for transient failures
	RetryInterval time.Duration // initial backoff interval

	Engine    EngineFactory
	Annotator *Annotator
	Logger    *zap.Logger
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Run reads src once, annotates every locus and hands the results to w in
// input order. A locus that keeps failing transiently, or whose data cannot
// be annotated, is skipped and counted. Provider failures, writer failures,
// worker panics and cancellation of ctx end the run with an error.
func (o *Orchestrator) Run(ctx context.Context, src vcf.LocusSource, w RecordWriter) (Stats, error) {
	if o.Engine == nil || o.Annotator == nil {
		return Stats{}, errors.New("orchestrator needs an engine factory and an annotator")
	}
	workers := o.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	chunk := max(o.ChunkSize, 1)

	if err := w.WriteHeader(); err != nil {
		return Stats{}, fmt.Errorf("write header: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	items := make(chan WorkItem, workers)
	results := make(chan WorkResult, 2*workers)

	var loci int
	g.Go(func() error {
		defer close(items)
		n, err := o.read(ctx, src, chunk, items)
		loci = n
		return err
	})

	var wg sync.WaitGroup
	wg.Add(workers)
	for id := range workers {
		g.Go(func() error {
			defer wg.Done()
			return o.work(ctx, id, items, results)
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var stats Stats
	collectErr := OrderedCollect(results, func(r WorkResult) error {
		stats.Skipped += r.Skipped
		for _, a := range r.Anns {
			if err := w.Write(a); err != nil {
				// Stop the reader and workers before the collector drains.
				cancel()
				return fmt.Errorf("write record: %w", err)
			}
			stats.Written++
		}
		return nil
	})
	err := g.Wait()
	stats.Loci = loci

	if collectErr != nil {
		return stats, collectErr
	}
	if err != nil {
		return stats, err
	}
	if err := w.Flush(); err != nil {
		return stats, fmt.Errorf("flush: %w", err)
	}

	o.logger().Info("annotation finished",
		zap.Int("loci", stats.Loci),
		zap.Int("written", stats.Written),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}

// read batches loci from src into work items. It returns the number of loci
// read.
func (o *Orchestrator) read(ctx context.Context, src vcf.LocusSource, chunk int, items chan<- WorkItem) (int, error) {
	n, seq := 0, 0
	batch := make([]*vcf.Locus, 0, chunk)
	send := func() error {
		select {
		case items <- WorkItem{Seq: seq, Loci: batch}:
		case <-ctx.Done():
			return ctx.Err()
		}
		seq++
		batch = make([]*vcf.Locus, 0, chunk)
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		l, err := src.Next()
		if err != nil {
			return n, fmt.Errorf("read locus: %w", err)
		}
		if l == nil {
			break
		}
		n++
		batch = append(batch, l)
		if len(batch) == chunk {
			if err := send(); err != nil {
				return n, err
			}
		}
	}
	if len(batch) > 0 {
		return n, send()
	}
	return n, nil
}

// work annotates items until the channel closes. The engine is opened on
// the first item and closed when the worker exits.
func (o *Orchestrator) work(ctx context.Context, id int, items <-chan WorkItem, results chan<- WorkResult) (err error) {
	log := o.logger().With(zap.Int("worker", id))

	var engine Engine
	defer func() {
		if r := recover(); r != nil {
			log.Error("worker panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
		}
		if engine != nil {
			if cerr := engine.Close(); cerr != nil {
				log.Warn("close engine", zap.Error(cerr))
			}
		}
	}()

	for {
		var item WorkItem
		var ok bool
		select {
		case item, ok = <-items:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		if engine == nil {
			if engine, err = o.Engine(ctx); err != nil {
				return fmt.Errorf("open engine: %w", err)
			}
		}

		res := WorkResult{Seq: item.Seq}
		for _, l := range item.Loci {
			ann, err := o.annotate(ctx, engine, l)
			if err == nil {
				res.Anns = append(res.Anns, ann)
				continue
			}
			if isFatal(ctx, err) {
				return err
			}
			res.Skipped++
			log.Warn("skipping locus",
				zap.String("chrom", l.Chrom),
				zap.Int64("pos", l.Pos),
				zap.Error(err))
		}

		select {
		case results <- res:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// annotate runs the annotator on one locus under a deadline, retrying
// transient failures with exponential backoff.
func (o *Orchestrator) annotate(ctx context.Context, engine Engine, l *vcf.Locus) (*VariantAnnotation, error) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = o.RetryInterval
	if exp.InitialInterval <= 0 {
		exp.InitialInterval = defaultRetryInterval
	}
	var b backoff.BackOff = &backoff.StopBackOff{}
	if o.Retries > 0 {
		b = backoff.WithMaxRetries(exp, uint64(o.Retries))
	}

	var ann *VariantAnnotation
	op := func() error {
		lctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		a, err := o.Annotator.AnnotateLocus(lctx, engine, l)
		if err != nil {
			if !isRetryable(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}
		ann = a
		return nil
	}
	notify := func(err error, wait time.Duration) {
		o.logger().Debug("retrying locus",
			zap.String("chrom", l.Chrom),
			zap.Int64("pos", l.Pos),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return ann, nil
}

// isFatal reports whether err must stop the run rather than skip a locus.
func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, hgvs.ErrDataProvider)
}

// isRetryable reports whether another attempt at the locus may succeed.
// Data errors about the locus itself are permanent.
func isRetryable(ctx context.Context, err error) bool {
	switch {
	case isFatal(ctx, err):
		return false
	case errors.Is(err, ErrZeroReferenceDepth), errors.Is(err, ErrNoAlternates):
		return false
	}
	return true
}

// OrderedCollect calls fn for each result in sequence-number order.
// Out-of-order results wait in a pending map until the next expected
// sequence number arrives. Blocks until the results channel is closed; a
// gap left by a failed worker leaves later results uncollected.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
