package node

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/keyforge/keyforge/internal/corpus"
	"github.com/keyforge/keyforge/internal/search"
)

// ErrFatal marks a job that Node cannot run as described (its description
// does not parse, or no search engine can be built from it). assignmentLoop
// logs it like any other runJob error and keeps polling.
type ErrFatal struct {
	Reason string
	Err    error
}

func (e ErrFatal) Error() string { return fmt.Sprintf("fatal: %s: %v", e.Reason, e.Err) }
func (e ErrFatal) Unwrap() error { return e.Err }

// Worker runs spec.md §4.6's long-running loop: heartbeat, poll, sync,
// search, submit, repeat — never exiting on a transient error.
type Worker struct {
	cfg    Config
	client *Client
	loader *corpus.Loader
	logger *slog.Logger

	mu           sync.Mutex
	currentJobID string
	restartCount map[string]int

	cpuSignature string
	opsPerSec    atomic.Value // float64
}

// NewWorker builds a Worker from cfg.
func NewWorker(cfg Config, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		cfg:          cfg,
		client:       NewClient(cfg),
		loader:       corpus.NewLoader(cfg.DataDir),
		logger:       logger,
		restartCount: make(map[string]int),
		cpuSignature: fmt.Sprintf("%s/%d", runtime.GOARCH, runtime.NumCPU()),
	}
	w.opsPerSec.Store(0.0)
	return w
}

// Run drives the worker until ctx is cancelled. The heartbeat goroutine
// and the assignment loop form Node's compute/IO pool split (spec.md §5):
// heartbeat is pure IO on a fixed cadence, the assignment loop alternates
// IO (poll/sync/submit) with the Search Engine's CPU-bound compute.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.heartbeatLoop(ctx)
	})
	g.Go(func() error {
		return w.assignmentLoop(ctx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (w *Worker) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.mu.Lock()
			jobID := w.currentJobID
			w.mu.Unlock()
			ops, _ := w.opsPerSec.Load().(float64)
			if err := w.client.Heartbeat(ctx, w.cfg.NodeId, jobID, w.cpuSignature, runtime.NumCPU(), ops); err != nil {
				w.logger.Warn("heartbeat failed, will retry", "err", err)
			}
		}
	}
}

// assignmentLoop implements spec.md §4.6 steps 2-6: poll for an
// assignment, sleep IdlePollInterval when there is none, otherwise sync
// data, run a search, and submit the run's best layout once it ends (Hive
// accepts it only if it improves the job). After a failed poll the wait
// doubles, up to one minute; the backoff has no jitter.
func (w *Worker) assignmentLoop(ctx context.Context) error {
	backoff := w.cfg.IdlePollInterval

	for {
		if ctx.Err() != nil {
			return nil
		}

		job, err := w.client.GetActiveJob(ctx)
		if err != nil {
			w.logger.Warn("poll failed, backing off", "err", err, "backoff", backoff)
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			backoff = minDuration(backoff*2, time.Minute)
			continue
		}
		backoff = w.cfg.IdlePollInterval

		if job == nil {
			if !sleepCtx(ctx, w.cfg.IdlePollInterval) {
				return nil
			}
			continue
		}

		if err := w.runJob(ctx, job); err != nil {
			w.logger.Warn("job run failed", "job_id", job.JobId, "err", err)
		}
	}
}

func (w *Worker) runJob(ctx context.Context, job *ActiveJob) error {
	w.mu.Lock()
	w.currentJobID = job.JobId
	w.restartCount[job.JobId]++
	restart := w.restartCount[job.JobId]
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.currentJobID = ""
		w.mu.Unlock()
	}()

	jobDir := filepath.Join(w.cfg.DataDir, "jobs", job.JobId)
	geometryCache := filepath.Join(jobDir, "keyboard.json")

	spec, err := parseJobSpec(job.Description, geometryCache, writeFileJailed, 0)
	if err != nil {
		return ErrFatal{Reason: "parse job description", Err: err}
	}

	alphabet := corpus.DefaultAlphabet(spec.Geo.NumSlots())
	c, err := w.loader.Load(spec.CorpusName, spec.CostMatrixName, spec.Geo, alphabet, 50)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	params := spec.Params
	engine, err := search.NewEngine(spec.Geo, c, spec.Weights, spec.Pinned, params)
	if err != nil {
		return ErrFatal{Reason: "build search engine", Err: err}
	}

	seed := hashSeed(w.cfg.NodeId, job.JobId, restart)
	runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	start := time.Now()
	steps := 0
	sink := func(p search.Progress) {
		steps++
		elapsed := time.Since(start).Seconds()
		if elapsed > 0 {
			w.opsPerSec.Store(float64(steps) / elapsed)
		}
	}

	perm, score, err := engine.Optimize(runCtx, seed, sink)
	if err != nil {
		return fmt.Errorf("search engine: %w", err)
	}

	layout := perm.CanonicalString(c.Alphabet)
	accepted, err := w.client.SubmitResult(ctx, job.JobId, w.cfg.NodeId, layout, score.LayoutScore)
	if err != nil {
		return fmt.Errorf("submit result: %w", err)
	}
	if accepted {
		w.logger.Info("submitted improved layout", "job_id", job.JobId, "score", score.LayoutScore)
	}
	return nil
}

// hashSeed derives a deterministic rng seed from (node_id, job_id,
// restart_count), per spec.md §4.6, so each run of the same job within one
// worker process starts from a different seed. The count lives in memory
// only; a restarted process counts from 1 again.
func hashSeed(nodeId, jobId string, restart int) uint64 {
	h := uint64(14695981039346656037)
	for _, r := range nodeId + "|" + jobId + "|" + fmt.Sprint(restart) {
		h ^= uint64(r)
		h *= 1099511628211
	}
	return h
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// writeFileJailed writes data to path, creating parent directories. Node
// only ever calls it with paths it built itself under its own cache
// directory (spec.md §4.6: "refuses to write outside its cache directory").
func writeFileJailed(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
