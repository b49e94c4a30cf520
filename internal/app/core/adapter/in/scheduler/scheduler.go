package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Job 週期性維護工作 (WAL 壓縮、清理過期資料)
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler 包裝 gocron，工作不會重疊執行
type Scheduler struct {
	sched  gocron.Scheduler
	logger *zap.Logger
	jobs   map[string]gocron.Job
}

// New 建立 Scheduler，Interval <= 0 的工作會被略過
func New(ctx context.Context, logger *zap.Logger, jobs ...Job) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s := &Scheduler{
		sched:  sched,
		logger: logger,
		jobs:   make(map[string]gocron.Job, len(jobs)),
	}
	for _, job := range jobs {
		if job.Interval <= 0 {
			logger.Info("job disabled", zap.String("job", job.Name))
			continue
		}
		j, err := sched.NewJob(
			gocron.DurationJob(job.Interval),
			gocron.NewTask(s.task(ctx, job)),
			gocron.WithName(job.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			sched.Shutdown()
			return nil, fmt.Errorf("register job %s: %w", job.Name, err)
		}
		s.jobs[job.Name] = j
	}
	return s, nil
}

func (s *Scheduler) task(ctx context.Context, job Job) func() {
	return func() {
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			s.logger.Error("job failed", zap.String("job", job.Name), zap.Error(err))
			return
		}
		s.logger.Debug("job done", zap.String("job", job.Name), zap.Duration("elapsed", time.Since(start)))
	}
}

// Start 開始排程
func (s *Scheduler) Start() {
	s.sched.Start()
}

// RunNow 立即執行一次指定的工作
func (s *Scheduler) RunNow(name string) error {
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}
	return j.RunNow()
}

// Jobs 已註冊的工作名稱
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Shutdown 停止排程並等待執行中的工作
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
