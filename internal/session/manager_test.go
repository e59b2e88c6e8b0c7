package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"health-eligibility-engine/internal/models"
)

func TestManager_CreateAndGet(t *testing.T) {
	m := NewManager(30*time.Minute, 5*time.Minute)

	created := m.Create()
	assert.NotEmpty(t, created.ID)
	assert.NotNil(t, created.Responses)

	view, ok := m.Get(created.ID)
	assert.True(t, ok)
	assert.Equal(t, created.ID, view.ID)

	_, ok = m.Get("no-such-session")
	assert.False(t, ok)
}

func TestManager_UpdateAccumulatesResponses(t *testing.T) {
	m := NewManager(30*time.Minute, 5*time.Minute)
	created := m.Create()

	_, ok := m.Update(created.ID, models.Responses{
		"chronic_conditions": models.StringValue("diabetes"),
	})
	assert.True(t, ok)

	view, ok := m.Update(created.ID, models.Responses{
		"device_access": models.BoolValue(true),
	})
	assert.True(t, ok)

	assert.Equal(t, "diabetes", view.Responses["chronic_conditions"].Text(),
		"A later turn never wipes earlier answers")
	assert.True(t, view.Responses["device_access"].Truthy())
}

func TestManager_ViewsAreCopies(t *testing.T) {
	m := NewManager(30*time.Minute, 5*time.Minute)
	created := m.Create()

	view, ok := m.Update(created.ID, models.Responses{
		"chronic_conditions": models.StringValue("diabetes"),
	})
	assert.True(t, ok)

	// Mutating a returned view must not touch the live session.
	view.Responses["chronic_conditions"] = models.StringValue("tampered")
	view.Responses["injected"] = models.BoolValue(true)

	fresh, ok := m.Get(created.ID)
	assert.True(t, ok)
	assert.Equal(t, "diabetes", fresh.Responses["chronic_conditions"].Text())
	assert.NotContains(t, fresh.Responses, "injected")
}

func TestManager_WithLocksSessionState(t *testing.T) {
	m := NewManager(30*time.Minute, 5*time.Minute)
	created := m.Create()

	ok := m.With(created.ID, func(s *Session) {
		s.Responses["device_access"] = models.BoolValue(true)
		s.Asked.Mark("device_access")
	})
	assert.True(t, ok)

	view, _ := m.Get(created.ID)
	assert.True(t, view.Responses["device_access"].Truthy())

	assert.False(t, m.With("no-such-session", func(*Session) {}))
}

func TestManager_ConcurrentUpdateAndEvaluateRead(t *testing.T) {
	m := NewManager(time.Minute, time.Minute)
	created := m.Create()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, ok := m.Update(created.ID, models.Responses{
				fmt.Sprintf("field_%d", i): models.StringValue("chest tightness"),
			})
			assert.True(t, ok)
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			ok := m.With(created.ID, func(s *Session) {
				// Iterate the live map the way the engine does during
				// a screen, while the other goroutine keeps merging.
				_ = s.Responses.Haystack()
				s.Asked.Mark(fmt.Sprintf("asked_%d", i))
			})
			assert.True(t, ok)
		}
	}()

	wg.Wait()

	view, ok := m.Get(created.ID)
	assert.True(t, ok)
	assert.Len(t, view.Responses, 200)
}

func TestManager_ExpiryOnAccess(t *testing.T) {
	m := NewManager(10*time.Millisecond, time.Minute)
	created := m.Create()

	time.Sleep(20 * time.Millisecond)

	_, ok := m.Get(created.ID)
	assert.False(t, ok, "An idle session past the timeout is gone")

	stats := m.Stats()
	assert.Equal(t, 1, stats.TotalExpired)
	assert.Equal(t, 0, stats.ActiveCount)
}

func TestManager_ActivityExtendsSession(t *testing.T) {
	m := NewManager(50*time.Millisecond, time.Minute)
	created := m.Create()

	for i := 0; i < 3; i++ {
		time.Sleep(20 * time.Millisecond)
		_, ok := m.Get(created.ID)
		assert.True(t, ok, "Each access resets the idle clock")
	}
}

func TestManager_ExpireIdle(t *testing.T) {
	m := NewManager(10*time.Millisecond, time.Minute)
	m.Create()
	m.Create()

	time.Sleep(20 * time.Millisecond)
	keep := m.Create()

	expired := m.ExpireIdle()
	assert.Equal(t, 2, expired)

	_, ok := m.Get(keep.ID)
	assert.True(t, ok)
}

func TestManager_EndAndStats(t *testing.T) {
	m := NewManager(time.Minute, time.Minute)
	created := m.Create()

	assert.True(t, m.End(created.ID))
	assert.False(t, m.End(created.ID), "Ending twice reports not found")

	stats := m.Stats()
	assert.Equal(t, 1, stats.TotalCreated)
	assert.Equal(t, 1, stats.TotalEnded)
	assert.Equal(t, 0, stats.ActiveCount)
}
