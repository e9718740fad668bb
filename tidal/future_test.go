package tidal_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/tidal-mcp/tidal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginFuturePollDoesNotBlock(t *testing.T) {
	f := tidal.NewLoginFuture(nil)

	done, err := f.Poll()
	assert.False(t, done)
	assert.NoError(t, err)

	require.True(t, f.Resolve(nil))
	done, err = f.Poll()
	assert.True(t, done)
	assert.NoError(t, err)
}

func TestLoginFutureResolvesOnce(t *testing.T) {
	f := tidal.NewLoginFuture(nil)
	denied := errors.New("denied")

	var wg sync.WaitGroup
	wins := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 0 {
				wins <- f.Resolve(denied)
				return
			}
			wins <- f.Resolve(nil)
		}(i)
	}
	wg.Wait()
	close(wins)

	count := 0
	for w := range wins {
		if w {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.True(t, f.Resolve(nil) == false)
}

func TestLoginFutureWaitAndCancel(t *testing.T) {
	cancelled := false
	f := tidal.NewLoginFuture(func() { cancelled = true })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.Wait(ctx), context.DeadlineExceeded)

	f.Cancel()
	assert.True(t, cancelled)

	go f.Resolve(errors.New("boom"))
	assert.EqualError(t, f.Wait(context.Background()), "boom")
}
