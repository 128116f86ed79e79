package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEvery_RejectsBadSchedule(t *testing.T) {
	s := New()
	if err := s.Every("every now and then", "bad", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if err := s.Every("", "disabled", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("empty schedule should disable, got %v", err)
	}
	if _, err := s.Trigger("disabled"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("disabled job err = %v, want ErrUnknownJob", err)
	}
}

func TestTrigger_RunsJobAndCounts(t *testing.T) {
	s := New()
	calls := 0
	if err := s.Every("@every 1h", "refresh", func(ctx context.Context) error {
		calls++
		if ctx.Err() != nil {
			t.Error("job context should be live")
		}
		return errors.New("upstream down")
	}); err != nil {
		t.Fatal(err)
	}

	var info JobInfo
	for i := 0; i < 2; i++ {
		var err error
		if info, err = s.Trigger("refresh"); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 2 || info.Runs != 2 {
		t.Errorf("calls = %d, runs = %d", calls, info.Runs)
	}
	if info.LastError != "upstream down" || info.Schedule != "@every 1h" || info.LastRun.IsZero() {
		t.Errorf("info = %+v", info)
	}
}

func TestStart_SchedulesNext(t *testing.T) {
	s := New()
	if err := s.Every("@every 1h", "prune", func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	next := func() time.Time {
		jobs := s.Jobs()
		if len(jobs) != 1 || jobs[0].Name != "prune" {
			t.Fatalf("jobs = %+v", jobs)
		}
		return jobs[0].Next
	}
	deadline := time.Now().Add(time.Second)
	for next().IsZero() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := next(); n.IsZero() || n.Before(time.Now().Add(59*time.Minute)) {
		t.Errorf("next run = %v", n)
	}
}

func TestEvery_ReplacesByName(t *testing.T) {
	s := New()
	first, second := 0, 0
	s.Every("@every 1h", "job", func(context.Context) error { first++; return nil })
	s.Every("@every 2h", "job", func(context.Context) error { second++; return nil })

	if _, err := s.Trigger("job"); err != nil {
		t.Fatal(err)
	}
	if first != 0 || second != 1 {
		t.Errorf("first = %d, second = %d", first, second)
	}
	if jobs := s.Jobs(); len(jobs) != 1 || jobs[0].Schedule != "@every 2h" {
		t.Errorf("jobs = %+v", jobs)
	}
}
