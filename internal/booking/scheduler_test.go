package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rental-marketplace/backend/internal/logger"
)

type fakeExpirer struct {
	calls     int
	olderThan time.Duration
	err       error
}

func (f *fakeExpirer) ExpirePending(_ context.Context, olderThan time.Duration) (int, error) {
	f.calls++
	f.olderThan = olderThan
	return 2, f.err
}

func TestExpiryScheduler_RunOncePassesTTL(t *testing.T) {
	exp := &fakeExpirer{}
	s := NewExpiryScheduler(exp, "@every 1m", 30*time.Minute, logger.Discard())

	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if n != 2 || exp.calls != 1 || exp.olderThan != 30*time.Minute {
		t.Fatalf("unexpected call: n=%d calls=%d olderThan=%s", n, exp.calls, exp.olderThan)
	}

	exp.err = errors.New("db closed")
	s.runJob()
	if exp.calls != 2 {
		t.Fatalf("expected job to call the expirer")
	}
}

func TestExpiryScheduler_StartRejectsBadSchedule(t *testing.T) {
	s := NewExpiryScheduler(&fakeExpirer{}, "not a schedule", time.Minute, logger.Discard())
	if err := s.Start(); err == nil {
		t.Fatalf("expected invalid schedule to be rejected")
	}
}

func TestExpiryScheduler_StartStop(t *testing.T) {
	s := NewExpiryScheduler(&fakeExpirer{}, "@every 1h", time.Minute, logger.Discard())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()
}
