package points

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronerog/furia-app/internal/models"
)

type recordingAwarder struct {
	mu     sync.Mutex
	awards []int
	types  []models.ActivityType
}

func (r *recordingAwarder) AddPoints(_ context.Context, amount int, activityType models.ActivityType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.awards = append(r.awards, amount)
	r.types = append(r.types, activityType)
	return true
}

func (r *recordingAwarder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.awards)
}

func TestAccrualTicks(t *testing.T) {
	awarder := &recordingAwarder{}
	accrual := NewAccrual(awarder, AccrualConfig{Interval: time.Hour, Ticks: 300, Points: 5})
	require.NoError(t, accrual.Start())
	defer accrual.Stop()

	accrual.mu.Lock()
	run := accrual.run
	accrual.mu.Unlock()

	t.Run("no award before the threshold", func(t *testing.T) {
		for i := 0; i < 299; i++ {
			accrual.tick(run)
		}
		time.Sleep(10 * time.Millisecond)
		assert.Zero(t, awarder.count())
	})

	t.Run("award on every 300th tick", func(t *testing.T) {
		accrual.tick(run)
		for i := 0; i < 300; i++ {
			accrual.tick(run)
		}
		require.Eventually(t, func() bool { return awarder.count() == 2 }, time.Second, 5*time.Millisecond)

		awarder.mu.Lock()
		assert.Equal(t, []int{5, 5}, awarder.awards)
		assert.Equal(t, models.ActivityViewTime, awarder.types[0])
		awarder.mu.Unlock()
	})

	t.Run("stale run ticks are ignored", func(t *testing.T) {
		require.NoError(t, accrual.Start())
		assert.Zero(t, accrual.Ticks(), "fresh run starts at zero")

		for i := 0; i < 300; i++ {
			accrual.tick(run)
		}
		time.Sleep(10 * time.Millisecond)
		assert.Equal(t, 2, awarder.count())
		assert.Zero(t, accrual.Ticks())
	})
}

func TestAccrualScheduler(t *testing.T) {
	awarder := &recordingAwarder{}
	accrual := NewAccrual(awarder, AccrualConfig{Interval: 10 * time.Millisecond, Ticks: 3, Points: 5})

	require.NoError(t, accrual.Start())
	assert.True(t, accrual.Running())

	require.Eventually(t, func() bool { return awarder.count() >= 1 }, 2*time.Second, 10*time.Millisecond)

	accrual.Stop()
	assert.False(t, accrual.Running())

	stopped := awarder.count()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, stopped, awarder.count())

	accrual.Stop()
}

func TestDefaultAccrualConfig(t *testing.T) {
	cfg := DefaultAccrualConfig()
	assert.Equal(t, time.Second, cfg.Interval)
	assert.Equal(t, 300, cfg.Ticks)
	assert.Equal(t, 5, cfg.Points)
}
