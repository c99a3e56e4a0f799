package ports

import "time"

type SchedulerService interface {
	Start()
	Stop()

	// ScheduleTask runs task every interval until the returned function is
	// called.
	ScheduleTask(interval time.Duration, task func()) (func(), error)
	ScheduleTaskOnce(at time.Time, task func()) error
}
