package janitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/skilldag/internal/domain"
	"github.com/shaiso/skilldag/internal/store"
	"github.com/shaiso/skilldag/internal/telemetry"
)

type countingPurger struct {
	calls  atomic.Int32
	purged int64
	err    error
}

func (p *countingPurger) PurgeExpired(ctx context.Context) (int64, error) {
	p.calls.Add(1)
	return p.purged, p.err
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"@every 10m", false},
		{"@hourly", false},
		{"*/5 * * * *", false},
		{"0 3 * * *", false},
		{"", true},
		{"every ten minutes", true},
		{"* * * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			_, err := ParseSchedule(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSchedule(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
		})
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoPurger) {
		t.Errorf("New() without purger error = %v, want ErrNoPurger", err)
	}

	if _, err := New(Config{Purger: &countingPurger{}, Schedule: "nonsense"}); err == nil {
		t.Error("New() with invalid schedule: expected error")
	}

	j, err := New(Config{Purger: &countingPurger{}, Logger: telemetry.Discard()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if j.spec != DefaultSchedule {
		t.Errorf("spec = %q, want %q", j.spec, DefaultSchedule)
	}

	from := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if got, want := j.Next(from), from.Add(10*time.Minute); !got.Equal(want) {
		t.Errorf("Next() = %v, want %v", got, want)
	}
}

func TestSweep(t *testing.T) {
	p := &countingPurger{purged: 3}
	j, err := New(Config{Purger: p, Logger: telemetry.Discard()})
	if err != nil {
		t.Fatal(err)
	}

	n, err := j.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Sweep() = %d, want 3", n)
	}
	if p.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", p.calls.Load())
	}

	p.err = errors.New("db down")
	if _, err := j.Sweep(context.Background()); err == nil {
		t.Error("Sweep() expected error")
	}
}

func TestSweep_MemoryStore(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	expired := domain.NewJob(domain.JobSpec{Nodes: []domain.NodeDef{{ID: "a", Prompt: "x"}}}, time.Hour)
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	live := domain.NewJob(domain.JobSpec{Nodes: []domain.NodeDef{{ID: "a", Prompt: "x"}}}, time.Hour)

	for _, job := range []*domain.Job{expired, live} {
		if err := st.Save(ctx, job); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	j, err := New(Config{Purger: st, Logger: telemetry.Discard()})
	if err != nil {
		t.Fatal(err)
	}

	n, err := j.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
	if st.Len() != 1 {
		t.Errorf("Len() = %d, want 1", st.Len())
	}
	if _, err := st.Get(ctx, live.ID); err != nil {
		t.Errorf("live job: %v", err)
	}
}

func TestStartStop(t *testing.T) {
	p := &countingPurger{}
	j, err := New(Config{Purger: p, Schedule: "@every 1h", Logger: telemetry.Discard()})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	j.Start(ctx)
	j.Start(ctx) // повторный Start ничего не делает

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for {
		j.mu.Lock()
		stopped := j.cron == nil
		j.mu.Unlock()
		if stopped {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("janitor did not stop after context cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}

	j.Stop() // повторный Stop безопасен

	if p.calls.Load() != 0 {
		t.Errorf("calls = %d, want 0 before first tick", p.calls.Load())
	}
}
