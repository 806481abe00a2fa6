package scheduler

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerService(t *testing.T) {
	t.Run("Schedule Every", func(t *testing.T) {
		svc := NewScheduler("")
		svc.Start()
		defer svc.Stop()

		var runs atomic.Int32
		err := svc.ScheduleEvery(100*time.Millisecond, func() {
			runs.Add(1)
		})
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return runs.Load() >= 2
		}, 2*time.Second, 10*time.Millisecond)

		err = svc.ScheduleEvery(0, func() {})
		require.Error(t, err)
	})

	t.Run("Schedule At Height", func(t *testing.T) {
		var height atomic.Int64
		height.Store(99)
		esplora := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strconv.FormatInt(height.Load(), 10)))
		}))
		defer esplora.Close()

		svc := NewScheduler(esplora.URL).(*service)
		svc.pollInterval = 10 * time.Millisecond

		done := make(chan bool, 1)
		err := svc.ScheduleAtHeight(100, func() {
			done <- true
		})
		require.NoError(t, err)
		require.Equal(t, 1, svc.PendingHeightTasks())

		svc.Start()
		defer svc.Stop()

		select {
		case <-done:
			require.Fail(t, "task executed before reaching height")
		case <-time.After(100 * time.Millisecond):
		}
		require.Equal(t, 1, svc.PendingHeightTasks())

		height.Store(100)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			require.Fail(t, "task did not execute within expected time")
		}
		require.Zero(t, svc.PendingHeightTasks())
	})

	t.Run("Schedule At Invalid Height", func(t *testing.T) {
		svc := NewScheduler("")
		err := svc.ScheduleAtHeight(0, func() {})
		require.Error(t, err)
		require.Zero(t, svc.PendingHeightTasks())
	})
}
