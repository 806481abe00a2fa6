package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/satsub/satsub/internal/core/ports"
	"github.com/satsub/satsub/internal/infrastructure/esplora"
	log "github.com/sirupsen/logrus"
)

const defaultPollInterval = 5 * time.Second

type heightTask struct {
	target uint32
	fn     func()
}

// Height tasks live in memory only, they must be scheduled again on restart.
type service struct {
	scheduler      *gocron.Scheduler
	esploraService esplora.Service
	pollInterval   time.Duration
	mu             *sync.Mutex
	blockCancel    context.CancelFunc
	tasks          []*heightTask
}

func NewScheduler(esploraUrl string) ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	esploraService := esplora.NewService(esploraUrl)
	return &service{
		svc, esploraService, defaultPollInterval, &sync.Mutex{}, nil, nil,
	}
}

func (s *service) Start() {
	s.scheduler.StartAsync()

	s.mu.Lock()
	if s.blockCancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.blockCancel = cancel
	s.mu.Unlock()

	go func() {
		t := time.NewTicker(s.pollInterval)
		defer t.Stop()
		for {
			s.runHeightTasks(ctx)

			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
}

func (s *service) Stop() {
	s.scheduler.Stop()

	s.mu.Lock()
	if s.blockCancel != nil {
		s.blockCancel()
		s.blockCancel = nil
	}
	s.mu.Unlock()
}

// ScheduleEvery runs task every interval, starting one interval from now.
func (s *service) ScheduleEvery(interval time.Duration, task func()) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval: %s", interval)
	}
	_, err := s.scheduler.Every(interval).WaitForSchedule().SingletonMode().Do(task)
	return err
}

// ScheduleAtHeight runs task once the chain tip reaches target.
func (s *service) ScheduleAtHeight(target uint32, task func()) error {
	if target <= 0 {
		return fmt.Errorf("invalid height: %d", target)
	}
	tsk := &heightTask{target: target, fn: task}
	s.mu.Lock()
	s.tasks = append(s.tasks, tsk)
	s.mu.Unlock()
	return nil
}

func (s *service) PendingHeightTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *service) runHeightTasks(ctx context.Context) {
	s.mu.Lock()
	pending := len(s.tasks)
	s.mu.Unlock()
	if pending == 0 {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	h, err := s.esploraService.GetBlockHeight(callCtx)
	cancel()
	if err != nil {
		log.WithError(err).Warn("failed to get block height")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	keep := s.tasks[:0]
	for _, tsk := range s.tasks {
		if uint32(h) >= tsk.target {
			go tsk.fn()
			continue
		}
		keep = append(keep, tsk)
	}
	s.tasks = keep
}
