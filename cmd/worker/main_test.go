package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

type fakeGenerator struct {
	calls      int
	weeksAhead int
	err        error
}

func (f *fakeGenerator) GenerateAllActive(ctx context.Context, weeksAhead int) (int, error) {
	f.calls++
	f.weeksAhead = weeksAhead
	if f.err != nil {
		return 0, f.err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return 3, nil
}

func TestGenerateJobRuns(t *testing.T) {
	gen := &fakeGenerator{}
	job := &generateJob{series: gen, weeksAhead: 4, ctx: context.Background()}

	job.Run()
	job.Run()

	// without redis every run is claimed
	if gen.calls != 2 {
		t.Fatalf("expected 2 runs, got %d", gen.calls)
	}
	if gen.weeksAhead != 4 {
		t.Fatalf("weeks ahead not passed through: %d", gen.weeksAhead)
	}
}

func TestGenerateJobSurvivesErrors(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("db down")}
	job := &generateJob{series: gen, weeksAhead: 4, ctx: context.Background()}

	job.Run()
	if gen.calls != 1 {
		t.Fatalf("expected one attempt, got %d", gen.calls)
	}
}

func TestDefaultScheduleRunsNightlyUTC(t *testing.T) {
	sched, err := cron.ParseStandard("0 3 * * *")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	from := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	next := sched.Next(from)
	want := time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next run %s, want %s", next, want)
	}
}
