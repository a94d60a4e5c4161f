// Package scheduler fires the daily distribution and settlement jobs and
// exposes manual triggers for operators.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"YieldSentinel/internal/distribution"
	"YieldSentinel/internal/model"
	"YieldSentinel/internal/settlement"
)

// JobState is what a job is doing right now, tracked explicitly at job start
// and end rather than inferred from registration.
type JobState string

const (
	StateIdle    JobState = "idle"
	StateRunning JobState = "running"
)

// JobStatus is the operator-visible status of one scheduled job.
type JobStatus struct {
	Name       string    `json:"name"`
	Schedule   string    `json:"schedule"`
	CronExpr   string    `json:"cron_expr"`
	Registered bool      `json:"registered"`
	State      JobState  `json:"state"`
	LastRunAt  time.Time `json:"last_run_at"`
	LastError  string    `json:"last_error,omitempty"`
}

// Scheduler manages the two cron jobs. Jobs are inert until Start.
type Scheduler struct {
	cron         *cron.Cron
	distribution *distribution.Engine
	settlement   *settlement.Engine
	log          zerolog.Logger
	ctx          context.Context

	mu   sync.Mutex
	jobs map[string]*JobStatus
}

const (
	jobDistribution = "yield-distribution"
	jobSettlement   = "investment-settlement"
)

func New(ctx context.Context, dist *distribution.Engine, settle *settlement.Engine, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:         cron.New(cron.WithSeconds()),
		distribution: dist,
		settlement:   settle,
		log:          log,
		ctx:          ctx,
		jobs:         make(map[string]*JobStatus),
	}
}

// Register adds both jobs to the cron table. Default expressions put
// distribution at 02:00 and settlement at 03:00 local time daily.
func (s *Scheduler) Register(distributionCron, settlementCron string) error {
	if _, err := s.cron.AddFunc(distributionCron, s.runDistribution); err != nil {
		return fmt.Errorf("register distribution job: %w", err)
	}
	if _, err := s.cron.AddFunc(settlementCron, s.runSettlement); err != nil {
		return fmt.Errorf("register settlement job: %w", err)
	}

	s.mu.Lock()
	s.jobs[jobDistribution] = &JobStatus{
		Name:       jobDistribution,
		Schedule:   "daily yield distribution",
		CronExpr:   distributionCron,
		Registered: true,
		State:      StateIdle,
	}
	s.jobs[jobSettlement] = &JobStatus{
		Name:       jobSettlement,
		Schedule:   "daily settlement of matured investments",
		CronExpr:   settlementCron,
		Registered: true,
		State:      StateIdle,
	}
	s.mu.Unlock()
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info().Msg("scheduler stopped")
}

// TriggerDistributionNow runs a distribution pass synchronously (operator use).
func (s *Scheduler) TriggerDistributionNow() (*model.DistributionSummary, error) {
	s.markStart(jobDistribution)
	sum, err := s.distribution.DistributeAll()
	s.markEnd(jobDistribution, err)
	return sum, err
}

// TriggerSettlementNow runs a settlement pass synchronously (operator use).
func (s *Scheduler) TriggerSettlementNow() (*model.SettlementSummary, error) {
	s.markStart(jobSettlement)
	sum, err := s.settlement.SettleAllMatured(s.ctx)
	s.markEnd(jobSettlement, err)
	return sum, err
}

// Status returns the current status of every registered job.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, name := range []string{jobDistribution, jobSettlement} {
		if st, ok := s.jobs[name]; ok {
			out = append(out, *st)
		}
	}
	return out
}

// Each scheduled firing has its own failure boundary: a failure (or panic) is
// logged and the job fires again at its next scheduled time.
func (s *Scheduler) runDistribution() {
	defer s.recoverJob(jobDistribution)
	if _, err := s.TriggerDistributionNow(); err != nil {
		s.log.Error().Err(err).Msg("scheduled distribution run failed")
	}
}

func (s *Scheduler) runSettlement() {
	defer s.recoverJob(jobSettlement)
	if _, err := s.TriggerSettlementNow(); err != nil {
		s.log.Error().Err(err).Msg("scheduled settlement run failed")
	}
}

func (s *Scheduler) recoverJob(name string) {
	if r := recover(); r != nil {
		s.markEnd(name, fmt.Errorf("panic: %v", r))
		s.log.Error().Str("job", name).Interface("panic", r).Msg("job panicked")
	}
}

func (s *Scheduler) markStart(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.jobs[name]; ok {
		st.State = StateRunning
		st.LastRunAt = time.Now()
	}
}

func (s *Scheduler) markEnd(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.jobs[name]; ok {
		st.State = StateIdle
		if err != nil {
			st.LastError = err.Error()
		} else {
			st.LastError = ""
		}
	}
}
