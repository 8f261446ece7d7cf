package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/source"
)

// Job names used by the daemon.
const (
	JobInbox = "inbox"
	JobSent  = "sent"
)

// SyncState represents the current state of a polling job.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus holds the state of a single job.
type SyncStatus struct {
	Job       string
	Schedule  string
	State     SyncState
	LastRun   time.Time
	NextRun   time.Time
	Stored    int
	Failures  int
	LastError string
}

// PollFunc polls one account and reports how many messages it stored.
type PollFunc func(ctx context.Context, account model.Account) (int, error)

// AccountLister supplies the accounts each cycle polls.
type AccountLister interface {
	GetAccounts(ctx context.Context, activeOnly bool) ([]model.Account, error)
}

// CycleResult summarizes one pass over every active account.
type CycleResult struct {
	Accounts int
	Stored   int
	Failed   map[string]error
}

// ErrCycleRunning is returned by Trigger while a cycle of the job is active.
var ErrCycleRunning = errors.New("cycle already running")

type job struct {
	name     string
	schedule string
	poll     PollFunc
	entry    cron.EntryID
	running  bool
	status   SyncStatus
}

// Scheduler runs polling jobs on cron schedules. Each cycle polls every
// active account concurrently, bounded by maxConcurrency, and a cycle that
// fires while the previous one is still active is skipped.
type Scheduler struct {
	cron           *cron.Cron
	accounts       AccountLister
	maxConcurrency int
	log            logrus.FieldLogger

	mu      gosync.Mutex
	jobs    map[string]*job
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     gosync.WaitGroup
}

// New creates a Scheduler. Schedules accept standard five-field cron
// expressions and descriptors such as "@every 60s".
func New(accounts AccountLister, maxConcurrency int, log logrus.FieldLogger) *Scheduler {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		accounts:       accounts,
		maxConcurrency: maxConcurrency,
		log:            log,
		jobs:           make(map[string]*job),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// AddJob registers poll under name with the given schedule, replacing any
// job of the same name.
func (s *Scheduler) AddJob(name, schedule string, poll PollFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old.entry)
	}

	j := &job{
		name:     name,
		schedule: schedule,
		poll:     poll,
		status:   SyncStatus{Job: name, Schedule: schedule},
	}
	entry, err := s.cron.AddFunc(schedule, func() {
		if s.begin(j) {
			s.runCycle(j)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, name, err)
	}
	j.entry = entry
	s.jobs[name] = j

	s.log.WithFields(logrus.Fields{
		"job":      name,
		"schedule": schedule,
	}).Info("job scheduled")
	return nil
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithField("jobs", len(s.jobs)).Info("scheduler started")
}

// Stop halts scheduling, cancels running cycles, and returns a context that
// is done once they have finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronCtx := s.cron.Stop()
	s.cancel()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronCtx.Done()
		s.wg.Wait()
		cancel()
	}()
	return ctx
}

// Trigger starts a cycle of the named job immediately, outside its schedule.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	stopped := s.stopped
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	if stopped {
		return fmt.Errorf("scheduler is stopped")
	}
	if !s.begin(j) {
		return fmt.Errorf("%s: %w", name, ErrCycleRunning)
	}
	go s.runCycle(j)
	return nil
}

// RunOnce runs one cycle of poll synchronously, without registering a job.
func (s *Scheduler) RunOnce(ctx context.Context, name string, poll PollFunc) (CycleResult, error) {
	return s.cycle(ctx, name, poll)
}

// Status returns a snapshot of every job.
func (s *Scheduler) Status() []SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SyncStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		st := j.status
		st.NextRun = s.cron.Entry(j.entry).Next
		out = append(out, st)
	}
	return out
}

// begin marks j running unless it already is or the scheduler stopped.
func (s *Scheduler) begin(j *job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if j.running {
		s.log.WithField("job", j.name).Debug("previous cycle still running, skipping")
		return false
	}
	j.running = true
	j.status.State = SyncRunning
	s.wg.Add(1)
	return true
}

// runCycle executes one cycle for j. The caller must have called begin.
func (s *Scheduler) runCycle(j *job) {
	defer s.wg.Done()

	result, err := s.cycle(s.ctx, j.name, j.poll)

	s.mu.Lock()
	defer s.mu.Unlock()
	j.running = false
	j.status.LastRun = time.Now()
	j.status.Stored += result.Stored
	j.status.State = SyncIdle
	j.status.LastError = ""
	if err != nil {
		j.status.State = SyncError
		j.status.LastError = err.Error()
	} else if len(result.Failed) > 0 {
		j.status.State = SyncError
		j.status.Failures += len(result.Failed)
		j.status.LastError = fmt.Sprintf("%d account(s) failed", len(result.Failed))
	}
}

// cycle polls every active account. A failing account never stops the
// others; its error is reported in CycleResult.Failed.
func (s *Scheduler) cycle(ctx context.Context, name string, poll PollFunc) (CycleResult, error) {
	log := s.log.WithField("job", name)
	start := time.Now()

	accounts, err := s.accounts.GetAccounts(ctx, true)
	if err != nil {
		log.WithError(err).Error("listing accounts")
		return CycleResult{}, fmt.Errorf("listing accounts: %w", err)
	}

	result := CycleResult{Accounts: len(accounts), Failed: make(map[string]error)}
	var mu gosync.Mutex

	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)
	for _, acct := range accounts {
		g.Go(func() error {
			n, err := poll(ctx, acct)

			mu.Lock()
			defer mu.Unlock()
			result.Stored += n

			entry := log.WithField("account", acct.Email)
			switch {
			case err == nil:
				if n > 0 {
					entry.WithField("stored", n).Info("account polled")
				}
			case source.IsConnectionError(err):
				result.Failed[acct.Email] = err
				entry.WithError(err).Warn("mailbox unreachable")
			default:
				result.Failed[acct.Email] = err
				entry.WithError(err).Error("polling account")
			}
			return nil
		})
	}
	_ = g.Wait()

	log.WithFields(logrus.Fields{
		"accounts": result.Accounts,
		"stored":   result.Stored,
		"failed":   len(result.Failed),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("cycle finished")
	return result, nil
}

// cronLogger routes cron's own diagnostics through logrus.
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(kvFields(keysAndValues)).Error(msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
