// Package indexer implements the Indexer (§4.6): the central orchestrator
// that moves an IndexJob through pending → processing → (completed |
// failed | skipped), running the Scanner, AST Parser, and Extractors in
// between and writing their output to the Store in one transaction.
package indexer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"kotadb/internal/astparse"
	"kotadb/internal/kotaerr"
	"kotadb/internal/logging"
	"kotadb/internal/repoacq"
	"kotadb/internal/scanner"
	"kotadb/internal/storage"
)

// Options configures worker count and retry policy (§4.6).
type Options struct {
	Workers         int
	MaxRetries      int
	RetryBaseDelay  time.Duration
	ScratchRoot     string
	PollInterval    time.Duration
	AliasMap        map[string]string
}

func DefaultOptions() Options {
	return Options{
		Workers:        3,
		MaxRetries:     3,
		RetryBaseDelay: 60 * time.Second,
		PollInterval:   500 * time.Millisecond,
	}
}

// Indexer owns the worker pool and the Store handles it operates on.
type Indexer struct {
	db       *storage.DB
	repos    *storage.RepositoryRepo
	jobs     *storage.IndexJobRepo
	files    *storage.IndexedFileRepo
	symbols  *storage.SymbolRepo
	refs     *storage.ReferenceRepo
	edges    *storage.DependencyEdgeRepo

	acquirer *repoacq.Acquirer
	parser   *astparse.Parser
	logger   *logging.Logger
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(db *storage.DB, acquirer *repoacq.Acquirer, logger *logging.Logger, opts Options) *Indexer {
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultOptions().MaxRetries
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = DefaultOptions().RetryBaseDelay
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions().PollInterval
	}
	return &Indexer{
		db:       db,
		repos:    storage.NewRepositoryRepo(db),
		jobs:     storage.NewIndexJobRepo(db),
		files:    storage.NewIndexedFileRepo(db),
		symbols:  storage.NewSymbolRepo(db),
		refs:     storage.NewReferenceRepo(db),
		edges:    storage.NewDependencyEdgeRepo(db),
		acquirer: acquirer,
		parser:   astparse.New(),
		logger:   logger,
		opts:     opts,
	}
}

// Enqueue creates a pending IndexJob for a repository (§4.6 step 1).
func (ix *Indexer) Enqueue(repositoryID, ref string) (string, error) {
	job := &storage.IndexJob{
		ID:           uuid.NewString(),
		RepositoryID: repositoryID,
		Ref:          ref,
		Status:       "pending",
	}
	if err := ix.jobs.Create(job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// RunSync enqueues a job for repositoryID and runs it inline on the
// calling goroutine rather than handing it to the worker pool, for the
// CLI's `index` command (§6.1: "enqueues and runs a job synchronously in
// CLI mode"). It claims the job itself so it coexists with a running
// worker pool without being claimed twice.
func (ix *Indexer) RunSync(repositoryID, ref string) (*storage.IndexJob, error) {
	jobID, err := ix.Enqueue(repositoryID, ref)
	if err != nil {
		return nil, err
	}
	claimed, err := ix.jobs.ClaimPending(repositoryID)
	if err != nil {
		return nil, err
	}
	if claimed == "" {
		// Lost the race to a worker from an already-running pool; wait
		// isn't meaningful for a CLI invocation, so just report its state.
		return ix.jobs.Get(jobID)
	}
	if err := ix.runJob(jobID, repositoryID); err != nil {
		if ferr := ix.jobs.Finish(jobID, "failed", storage.JobStats{}, err); ferr != nil {
			return nil, ferr
		}
		return ix.jobs.Get(jobID)
	}
	return ix.jobs.Get(jobID)
}

// Start launches the N-worker pool (§4.6: "default three"), each
// consuming the shared job queue via an atomic claim.
func (ix *Indexer) Start(ctx context.Context) {
	ix.ctx, ix.cancel = context.WithCancel(ctx)
	for i := 0; i < ix.opts.Workers; i++ {
		ix.wg.Add(1)
		go ix.workerLoop(i)
	}
}

// Stop signals all workers to finish their current job and return.
func (ix *Indexer) Stop() {
	if ix.cancel != nil {
		ix.cancel()
	}
	ix.wg.Wait()
}

func (ix *Indexer) workerLoop(id int) {
	defer ix.wg.Done()
	ticker := time.NewTicker(ix.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ix.ctx.Done():
			return
		case <-ticker.C:
			ix.claimAndRun(id)
		}
	}
}

func (ix *Indexer) claimAndRun(workerID int) {
	jobID, repositoryID, err := ix.jobs.ClaimAnyPending()
	if err != nil {
		ix.logger.Error("claiming pending job failed", map[string]interface{}{"error": err.Error(), "worker": workerID})
		return
	}
	if jobID == "" {
		return
	}
	ix.logger.Info("claimed index job", map[string]interface{}{"job_id": jobID, "repository_id": repositoryID, "worker": workerID})
	ix.runWithRetry(jobID, repositoryID)
}

// runWithRetry runs a job and retries transient failures with exponential
// backoff up to opts.MaxRetries (§4.6). Permanent failures (ref_not_found,
// auth_denied at acquisition) fail the job outright.
func (ix *Indexer) runWithRetry(jobID, repositoryID string) {
	var lastErr error
	for attempt := 0; attempt <= ix.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := ix.opts.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ix.ctx.Done():
				return
			}
			ix.logger.Info("retrying index job", map[string]interface{}{"job_id": jobID, "attempt": attempt})
		}

		err := ix.runJob(jobID, repositoryID)
		if err == nil {
			return
		}
		lastErr = err
		if !kotaerr.Retryable(classify(err)) {
			ix.jobs.Finish(jobID, "failed", storage.JobStats{}, err)
			ix.logger.Error("index job failed permanently", map[string]interface{}{"job_id": jobID, "error": err.Error()})
			return
		}
		ix.logger.Warn("index job transient failure", map[string]interface{}{"job_id": jobID, "error": err.Error(), "attempt": attempt})
	}
	ix.jobs.Finish(jobID, "failed", storage.JobStats{}, lastErr)
}

func classify(err error) kotaerr.Kind {
	var kerr *kotaerr.Error
	if kotaerr.As(err, &kerr) {
		return kerr.Kind
	}
	return kotaerr.InternalError
}

// scanOptions builds the File Scanner's Options (§4.3) including any
// .kotadbignore rules present in the acquired tree.
func scanOptions(treePath string) scanner.Options {
	opts := scanner.DefaultOptions()
	rules, err := scanner.LoadIgnoreFile(treePath)
	if err == nil {
		opts.IgnoreRules = rules
	}
	return opts
}
