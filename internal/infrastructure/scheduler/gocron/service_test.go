package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	scheduler "github.com/ark-network/coinjoin/internal/infrastructure/scheduler/gocron"
	"github.com/stretchr/testify/require"
)

func TestScheduler(t *testing.T) {
	svc := scheduler.NewScheduler()
	svc.Start()
	defer svc.Stop()

	t.Run("schedule task", func(t *testing.T) {
		var count atomic.Int32
		stop, err := svc.ScheduleTask(50*time.Millisecond, func() { count.Add(1) })
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return count.Load() >= 2
		}, 2*time.Second, 10*time.Millisecond)

		stop()
		time.Sleep(100 * time.Millisecond)
		stopped := count.Load()
		time.Sleep(200 * time.Millisecond)
		require.Equal(t, stopped, count.Load())
	})

	t.Run("schedule task once", func(t *testing.T) {
		var count atomic.Int32
		err := svc.ScheduleTaskOnce(time.Now().Add(50*time.Millisecond), func() {
			count.Add(1)
		})
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return count.Load() == 1
		}, 2*time.Second, 10*time.Millisecond)
		time.Sleep(200 * time.Millisecond)
		require.Equal(t, int32(1), count.Load())
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := svc.ScheduleTask(0, func() {})
		require.EqualError(t, err, "interval must be greater than 0")

		err = svc.ScheduleTaskOnce(time.Now().Add(-time.Minute), func() {})
		require.EqualError(t, err, "cannot schedule task in the past")
	})
}
