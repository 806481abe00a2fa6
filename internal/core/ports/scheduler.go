package ports

import (
	"time"
)

type SchedulerService interface {
	Start()
	Stop()
	ScheduleEvery(interval time.Duration, task func()) error
	ScheduleAtHeight(target uint32, task func()) error
	PendingHeightTasks() int
}
