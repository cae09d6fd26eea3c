package producer

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/xcp-ng/xcp-metrics-go/internal/xlog"
)

// Scheduler runs a set of Producers on independent tick intervals, mirroring
// cc-backend's gocron-based worker registration
// (internal/taskmanager/taskManager.go, internal/taskmanager/metricPullWorker.go).
type Scheduler struct {
	sched gocron.Scheduler
}

// NewScheduler constructs an idle scheduler; call Start to begin running
// registered jobs.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{sched: s}, nil
}

// Register schedules p.Tick to run every interval, starting immediately,
// until ctx is cancelled.
func (s *Scheduler) Register(ctx context.Context, p *Producer, interval time.Duration) error {
	job, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := p.Tick(ctx); err != nil {
				xlog.Errorf("scheduler: producer %s tick failed: %v", p.Name, err)
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = s.sched.RemoveJob(job.ID())
	}()
	return nil
}

// Start begins running all registered jobs.
func (s *Scheduler) Start() {
	s.sched.Start()
}

// Shutdown stops the scheduler and waits for in-flight jobs to finish.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
