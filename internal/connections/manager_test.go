package connections

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("open and close session", func(t *testing.T) {
		manager := NewManager(DefaultTimeouts)

		session := manager.Open(&websocket.Conn{})
		_, err := uuid.Parse(session.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, manager.Count())

		got, ok := manager.Get(session.ID)
		require.True(t, ok)
		assert.Same(t, session, got)

		manager.Close(session)
		_, ok = manager.Get(session.ID)
		assert.False(t, ok)
		assert.Equal(t, 0, manager.Count())

		manager.Close(session)
		assert.Equal(t, 0, manager.Count(), "closing twice must not go negative")
	})

	t.Run("session ids are unique", func(t *testing.T) {
		manager := NewManager(DefaultTimeouts)
		a := manager.Open(&websocket.Conn{})
		b := manager.Open(&websocket.Conn{})
		assert.NotEqual(t, a.ID, b.ID)
		assert.Equal(t, 2, manager.Count())
	})

	t.Run("concurrent session operations", func(t *testing.T) {
		manager := NewManager(DefaultTimeouts)
		concurrentOps := 100
		var wg sync.WaitGroup
		wg.Add(concurrentOps)

		sessions := make([]*Session, concurrentOps)
		for i := 0; i < concurrentOps; i++ {
			go func(i int) {
				defer wg.Done()
				sessions[i] = manager.Open(&websocket.Conn{})
			}(i)
		}

		waitCh := make(chan struct{})
		go func() {
			wg.Wait()
			close(waitCh)
		}()

		select {
		case <-ctx.Done():
			t.Fatal("Test timed out")
		case <-waitCh:
		}

		assert.Equal(t, concurrentOps, manager.Count())

		wg.Add(concurrentOps)
		for _, session := range sessions {
			go func(s *Session) {
				defer wg.Done()
				manager.Close(s)
			}(session)
		}
		wg.Wait()

		assert.Equal(t, 0, manager.Count())
	})

	t.Run("memory leak check", func(t *testing.T) {
		manager := NewManager(DefaultTimeouts)
		iterations := 1000

		var m1, m2 runtime.MemStats
		runtime.GC()
		runtime.ReadMemStats(&m1)

		for i := 0; i < iterations; i++ {
			manager.Close(manager.Open(&websocket.Conn{}))
		}

		runtime.GC()
		time.Sleep(100 * time.Millisecond)
		runtime.ReadMemStats(&m2)

		var memoryGrowth int64
		if m2.HeapAlloc >= m1.HeapAlloc {
			memoryGrowth = int64(m2.HeapAlloc - m1.HeapAlloc)
		} else {
			memoryGrowth = -int64(m1.HeapAlloc - m2.HeapAlloc)
		}

		maxAcceptableGrowth := int64(iterations * 1024) // 1KB per iteration
		assert.LessOrEqual(t, memoryGrowth, maxAcceptableGrowth, "possible memory leak")
	})

	t.Run("timeout configuration", func(t *testing.T) {
		customTimeouts := TimeoutConfig{
			PongWait:   1 * time.Minute,
			PingPeriod: 54 * time.Second,
			WriteWait:  20 * time.Second,
		}

		manager := NewManager(customTimeouts)
		assert.Equal(t, customTimeouts, manager.GetTimeouts())
		assert.Equal(t, customTimeouts, manager.Open(&websocket.Conn{}).timeouts)
	})
}
