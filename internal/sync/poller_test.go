package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-triage/internal/logging"
	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/source"
)

type staticAccounts struct {
	accounts []model.Account
	err      error
}

func (s staticAccounts) GetAccounts(context.Context, bool) ([]model.Account, error) {
	return s.accounts, s.err
}

func accounts(n int) staticAccounts {
	var out []model.Account
	for i := 0; i < n; i++ {
		out = append(out, model.Account{ID: fmt.Sprintf("a%d", i), Email: fmt.Sprintf("u%d@example.com", i), Active: true})
	}
	return staticAccounts{accounts: out}
}

func TestRunOnceIsolatesFailures(t *testing.T) {
	s := New(accounts(3), 2, logging.Discard())

	result, err := s.RunOnce(context.Background(), JobInbox, func(_ context.Context, a model.Account) (int, error) {
		switch a.Email {
		case "u0@example.com":
			return 0, &source.ConnectionError{Account: a.Email, Op: "login", Err: errors.New("denied")}
		case "u1@example.com":
			return 2, nil
		default:
			return 1, errors.New("boom")
		}
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Accounts)
	assert.Equal(t, 3, result.Stored)
	require.Len(t, result.Failed, 2)
	assert.True(t, source.IsConnectionError(result.Failed["u0@example.com"]))
	assert.EqualError(t, result.Failed["u2@example.com"], "boom")
}

func TestRunOnceBoundsConcurrency(t *testing.T) {
	s := New(accounts(8), 3, logging.Discard())

	var active, peak atomic.Int32
	_, err := s.RunOnce(context.Background(), JobInbox, func(context.Context, model.Account) (int, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return 0, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestRunOnceListingFailure(t *testing.T) {
	s := New(staticAccounts{err: errors.New("db locked")}, 1, logging.Discard())
	_, err := s.RunOnce(context.Background(), JobSent, func(context.Context, model.Account) (int, error) {
		t.Fatal("poll must not run")
		return 0, nil
	})
	assert.ErrorContains(t, err, "db locked")
}

func TestTriggerSkipsOverlappingCycle(t *testing.T) {
	s := New(accounts(1), 1, logging.Discard())

	release := make(chan struct{})
	started := make(chan struct{}, 4)
	var calls atomic.Int32
	require.NoError(t, s.AddJob(JobInbox, "@every 1h", func(ctx context.Context, _ model.Account) (int, error) {
		calls.Add(1)
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return 1, nil
	}))

	require.NoError(t, s.Trigger(JobInbox))
	<-started

	err := s.Trigger(JobInbox)
	assert.ErrorIs(t, err, ErrCycleRunning)

	close(release)
	<-s.Stop().Done()

	assert.Equal(t, int32(1), calls.Load())
	statuses := s.Status()
	require.Len(t, statuses, 1)
	assert.Equal(t, SyncIdle, statuses[0].State)
	assert.Equal(t, 1, statuses[0].Stored)
}

func TestTriggerUnknownJob(t *testing.T) {
	s := New(accounts(0), 1, logging.Discard())
	assert.Error(t, s.Trigger("nope"))
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(accounts(0), 1, logging.Discard())
	err := s.AddJob(JobInbox, "every minute please", func(context.Context, model.Account) (int, error) { return 0, nil })
	assert.Error(t, err)
}

func TestStopCancelsRunningCycle(t *testing.T) {
	s := New(accounts(2), 2, logging.Discard())

	var wg gosync.WaitGroup
	wg.Add(2)
	require.NoError(t, s.AddJob(JobSent, "@every 1h", func(ctx context.Context, _ model.Account) (int, error) {
		wg.Done()
		<-ctx.Done()
		return 0, ctx.Err()
	}))
	require.NoError(t, s.Trigger(JobSent))
	wg.Wait()

	select {
	case <-s.Stop().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not wait for the running cycle")
	}

	assert.Error(t, s.Trigger(JobSent))
	statuses := s.Status()
	require.Len(t, statuses, 1)
	assert.Equal(t, SyncError, statuses[0].State)
	assert.Equal(t, 2, statuses[0].Failures)
}
