package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-booking/internal/model"
)

func TestSeatServiceDefineAndAdjust(t *testing.T) {
	store := newMemEvents()
	svc := NewSeatService(store, nil)
	ctx := context.Background()

	e, err := svc.DefineEvent(ctx, model.Event{
		ID:       " e1 ",
		Title:    "Play",
		Date:     time.Date(2026, 5, 1, 18, 30, 0, 0, time.UTC),
		Capacity: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "e1", e.ID)
	assert.Equal(t, 3, e.AvailableSeats)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), e.Date)

	left, err := svc.AdjustSeats(ctx, "e1", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	_, err = svc.AdjustSeats(ctx, "e1", 2)
	assert.ErrorIs(t, err, model.ErrInsufficientCapacity)

	left, err = svc.AdjustSeats(ctx, "e1", -9)
	require.NoError(t, err)
	assert.Equal(t, 3, left)

	_, err = svc.AdjustSeats(ctx, "e1", 0)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.AdjustSeats(ctx, "missing", 1)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.DefineEvent(ctx, model.Event{ID: "bad", Title: "x", Capacity: 0})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	k := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("e1")
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)

	k.mu.Lock()
	assert.Empty(t, k.locks)
	k.mu.Unlock()
}
