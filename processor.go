// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package swapfont

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/sassoftware/pdf-swapfont/logger"
)

// A Stream is one decoded content stream to rewrite, together with the
// font descriptors its resource dictionary resolves. The caller handles
// document plumbing (decompression, resource lookup); the processor only
// sees bytes and widths.
type Stream struct {
	ID      string
	Content []byte
	Fonts   map[string]*FontDescriptor
}

// Rewriter defines the contract for rewriting a batch of content streams.
type Rewriter interface {
	Rewrite(ctx context.Context, streams []Stream) ([]*StreamResult, error)
}

// RewriterStrategy defines how to rewrite a single stream.
// Different strategies handle errors differently (strict vs. best-effort).
type RewriterStrategy interface {
	RewriteStream(ctx context.Context, s Stream, rules []*ReplacementRule) (*StreamResult, error)
}

// StrictRewriter enforces strict parsing.
// If any stream fails, the entire batch fails.
type StrictRewriter struct{}

func (s *StrictRewriter) RewriteStream(ctx context.Context, st Stream, rules []*ReplacementRule) (*StreamResult, error) {
	res, err := RewriteStream(st.Content, st.Fonts, rules)
	res.ID = st.ID
	return res, err
}

// BestEffortRewriter tolerates errors.
// If a stream fails to parse, its original bytes pass through unchanged.
type BestEffortRewriter struct{}

func (b *BestEffortRewriter) RewriteStream(ctx context.Context, st Stream, rules []*ReplacementRule) (*StreamResult, error) {
	res, err := RewriteStream(st.Content, st.Fonts, rules)
	res.ID = st.ID
	if err != nil {
		// In best-effort mode, keep the original bytes and continue.
		logger.Debug("BestEffortRewriter: stream not rewritable, passing through", "stream", st.ID, "err", err, true)
		return res, nil
	}
	return res, nil
}

// processor manages stream rewriting with concurrency control
// and delegates stream-level work to the chosen RewriterStrategy.
type processor struct {
	cfg      *Config
	sem      *semaphore.Weighted
	rewriter RewriterStrategy
	rules    []*ReplacementRule
}

// NewProcessor validates the config, prepares the rules (compiles
// encoding maps, loads each distinct target font file once), and creates
// a new processor. A rule whose target font fails to load is disabled and
// reported per stream rather than failing construction; invalid
// configuration fails construction outright.
func NewProcessor(cfg *Config) (*processor, error) {
	//Select RewriterStrategy
	var rewriter RewriterStrategy
	switch cfg.ParsingMode {
	case Strict:
		rewriter = &StrictRewriter{}
	case BestEffort:
		rewriter = &BestEffortRewriter{}
	}

	//Validate the config object
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	//Set the logger function
	if cfg.Logger != nil {
		logger.SetLogger(cfg.Logger)
	}

	if err := prepareRules(cfg.Rules); err != nil {
		return nil, err
	}

	logger.Debug(fmt.Sprintf("Processor initialized: parsing_mode=%v, max_concurrent_batches=%d, max_stream_workers=%d, rules=%d",
		cfg.ParsingMode, cfg.MaxConcurrentBatches, cfg.MaxStreamWorkers, len(cfg.Rules)), true)

	return &processor{
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrentBatches)),
		rewriter: rewriter,
		rules:    cfg.Rules,
	}, nil
}

// prepareRules compiles each rule's encoding map and loads target font
// metrics, sharing one parse per distinct font file. Encoding errors are
// configuration errors and abort; font load failures only disable the
// rules that reference the failing file.
func prepareRules(rules []*ReplacementRule) error {
	loaded := make(map[string]*TargetFontMetrics)
	failed := make(map[string]error)
	for _, r := range rules {
		enc, err := compileEncodingMap(r.EncodingMap)
		if err != nil {
			if ce, ok := err.(*ConfigError); ok && ce.Rule == "" {
				ce.Rule = r.SourceFontName
			}
			return err
		}
		r.encoding = enc

		if err, bad := failed[r.TargetFontFile]; bad {
			logger.Error(fmt.Sprintf("rule %s disabled: %v", r.SourceFontName, err))
			continue
		}
		m, ok := loaded[r.TargetFontFile]
		if !ok {
			m, err = LoadTargetFont(r.TargetFontFile)
			if err != nil {
				failed[r.TargetFontFile] = err
				logger.Error(fmt.Sprintf("rule %s disabled: %v", r.SourceFontName, err))
				continue
			}
			loaded[r.TargetFontFile] = m
		}
		r.metrics = m
	}
	return nil
}

// Rewrite rewrites a batch of streams concurrently and returns the
// results in input order. In strict mode the first stream-level error
// fails the whole batch; in best-effort mode failing streams pass
// through unrewritten with diagnostics attached.
func (p *processor) Rewrite(ctx context.Context, streams []Stream) ([]*StreamResult, error) {
	logger.Debug(fmt.Sprintf("Starting rewrite: streams=%d", len(streams)), true)

	if err := p.acquireSlot(ctx); err != nil {
		logger.Debug(fmt.Sprintf("Failed to acquire slot: err=%v", err), true)
		return nil, err
	}
	defer p.sem.Release(1)
	logger.Debug("Slot acquired for rewrite", true)

	total := len(streams)
	if total == 0 {
		return nil, nil
	}

	numWorkers := p.adjustWorkerCount(p.cfg.MaxStreamWorkers)
	logger.Debug(fmt.Sprintf("Starting workers: count=%d", numWorkers), true)

	jobs, results := make(chan int, total), make(chan streamJobResult, total)

	var wg sync.WaitGroup
	p.startWorkers(ctx, streams, jobs, results, numWorkers, &wg)
	if err := p.feedJobs(ctx, total, jobs); err != nil {
		close(jobs)
		wg.Wait()
		return nil, err
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out, err := p.collectInOrder(results, total)
	if err != nil {
		return nil, err
	}

	logger.Debug(fmt.Sprintf("Rewrite completed: streams=%d", total), true)
	return out, nil
}

// collectInOrder drains the results channel into an input-ordered slice.
func (p *processor) collectInOrder(results chan streamJobResult, total int) ([]*StreamResult, error) {
	out := make([]*StreamResult, total)
	for res := range results {
		if res.err != nil && p.cfg.ParsingMode == Strict {
			logger.Debug(fmt.Sprintf("Strict mode error — stopping rewrite: stream=%d err=%v", res.index, res.err))
			return nil, fmt.Errorf("strict mode failed on stream %d: %w", res.index, res.err)
		}
		out[res.index] = res.result
	}
	return out, nil
}

func (p *processor) acquireSlot(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire slot: %w", err)
	}
	logger.Debug("Slot acquired successfully", true)
	return nil
}

func (p *processor) adjustWorkerCount(maxWorkers int) int {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if maxWorkers > runtime.NumCPU()/2 {
		maxWorkers = runtime.NumCPU()
	}
	logger.Debug(fmt.Sprintf("Adjusted worker count: workers=%d", maxWorkers), true)
	return maxWorkers
}

type streamJobResult struct {
	index  int
	result *StreamResult
	err    error
}

func (p *processor) startWorkers(ctx context.Context, streams []Stream, jobs <-chan int, results chan<- streamJobResult, numWorkers int, wg *sync.WaitGroup) {
	logger.Debug(fmt.Sprintf("Spawning workers: num_workers=%d", numWorkers), true)
	for w := 1; w <= numWorkers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			logger.Debug(fmt.Sprintf("Worker started: id=%d", id), true)
			for i := range jobs {
				res, err := p.rewriteWithTimeout(ctx, streams[i])
				results <- streamJobResult{i, res, err}
				if err != nil {
					logger.Debug(fmt.Sprintf("Worker: stream rewrite error: worker_id=%d stream=%d err=%v", id, i, err), true)
				} else {
					logger.Debug(fmt.Sprintf("Worker: stream rewritten: worker_id=%d stream=%d", id, i), true)
				}
			}
			logger.Debug(fmt.Sprintf("Worker finished: id=%d", id), true)
		}(w)
	}
}

// rewriteWithTimeout bounds one stream's rewrite by the worker timeout.
// Rewriting is deterministic so there is no retry: a stream that failed
// once fails the same way every time.
func (p *processor) rewriteWithTimeout(ctx context.Context, s Stream) (*StreamResult, error) {
	ctxStream, cancel := context.WithTimeout(ctx, p.cfg.WorkerTimeout)
	defer cancel()

	type rewriteOut struct {
		res *StreamResult
		err error
	}
	done := make(chan rewriteOut, 1)
	go func() {
		res, err := p.rewriter.RewriteStream(ctxStream, s, p.rules)
		done <- rewriteOut{res, err}
	}()

	select {
	case <-ctxStream.Done():
		return &StreamResult{ID: s.ID, Content: s.Content}, fmt.Errorf("stream %s: %w", s.ID, ctxStream.Err())
	case out := <-done:
		return out.res, out.err
	}
}

func (p *processor) feedJobs(ctx context.Context, total int, jobs chan<- int) error {
	for i := 0; i < total; i++ {
		select {
		case <-ctx.Done():
			logger.Debug("Context cancelled while feeding jobs", true)
			return ctx.Err()
		case jobs <- i:
			logger.Debug(fmt.Sprintf("Job queued: stream=%d", i), true)
		}
	}
	logger.Debug(fmt.Sprintf("All jobs queued: total_streams=%d", total), true)
	return nil
}
