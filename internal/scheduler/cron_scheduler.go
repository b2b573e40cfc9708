package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// specParser accepts six-field expressions with a leading seconds field
var specParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// JobInfo describes a registered job
type JobInfo struct {
	Name        string     `json:"name"`
	Expression  string     `json:"expression"`
	LastRunTime *time.Time `json:"last_run_time,omitempty"`
	NextRunTime *time.Time `json:"next_run_time,omitempty"`
}

// CronScheduler runs named periodic jobs
type CronScheduler struct {
	logger *zap.Logger
	cron   *cron.Cron
	mu     sync.RWMutex
	jobs   map[string]*cronJob
}

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}

// NewCronScheduler creates a new scheduler
func NewCronScheduler(logger *zap.Logger) *CronScheduler {
	cronLogger := &cronLogger{logger: logger.Named("cron")}
	cronOptions := []cron.Option{
		cron.WithParser(specParser),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		cron.WithLogger(cronLogger),
	}

	return &CronScheduler{
		logger: logger.Named("scheduler"),
		cron:   cron.New(cronOptions...),
		jobs:   make(map[string]*cronJob),
	}
}

// Start starts running registered jobs in the background
func (s *CronScheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.Jobs())))
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *CronScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// AddJob registers fn to run on the given cron expression
func (s *CronScheduler) AddJob(name, expression string, fn func()) error {
	if _, err := specParser.Parse(expression); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidExpression, expression, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	job := &cronJob{
		scheduler:  s,
		name:       name,
		expression: expression,
		fn:         fn,
	}
	entryID, err := s.cron.AddJob(expression, job)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	job.entryID = entryID
	s.jobs[name] = job

	s.logger.Info("Added job",
		zap.String("name", name),
		zap.String("expression", expression))

	return nil
}

// RemoveJob unregisters a job
func (s *CronScheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	s.cron.Remove(job.entryID)
	delete(s.jobs, name)

	s.logger.Info("Removed job", zap.String("name", name))
	return nil
}

// Jobs lists registered jobs sorted by name
func (s *CronScheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]JobInfo, 0, len(s.jobs))
	for _, job := range s.jobs {
		info := JobInfo{
			Name:       job.name,
			Expression: job.expression,
		}
		if last := job.lastRun(); !last.IsZero() {
			info.LastRunTime = &last
		}
		if next := s.cron.Entry(job.entryID).Next; !next.IsZero() {
			info.NextRunTime = &next
		}
		jobs = append(jobs, info)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

// cronJob implements cron.Job interface
type cronJob struct {
	scheduler  *CronScheduler
	name       string
	expression string
	entryID    cron.EntryID
	fn         func()

	mu      sync.Mutex
	lastRan time.Time
}

// Run implements cron.Job
func (j *cronJob) Run() {
	now := time.Now()
	j.mu.Lock()
	j.lastRan = now
	j.mu.Unlock()

	j.fn()

	j.scheduler.logger.Debug("Executed job",
		zap.String("name", j.name),
		zap.Duration("took", time.Since(now)))
}

func (j *cronJob) lastRun() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastRan
}
