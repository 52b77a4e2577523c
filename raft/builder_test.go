package raft

import (
	"testing"

	"github.com/jathurchan/raftreplica/clock"
	"github.com/jathurchan/raftreplica/rand"
)

func echoHandler(key, entry []byte) ([]byte, error) { return entry, nil }

func TestBuilder_MissingCollaborators(t *testing.T) {
	cases := []struct {
		name  string
		build func() *Builder
	}{
		{"no id", func() *Builder {
			return NewBuilder("").
				WithLogStore(&fakeLogStore{}).
				WithTransport(&fakeTransport{}).
				WithCluster(newFakeCluster("n1")).
				WithCommitHandler(echoHandler)
		}},
		{"no log store", func() *Builder {
			return NewBuilder("n1").
				WithTransport(&fakeTransport{}).
				WithCluster(newFakeCluster("n1")).
				WithCommitHandler(echoHandler)
		}},
		{"no transport", func() *Builder {
			return NewBuilder("n1").
				WithLogStore(&fakeLogStore{}).
				WithCluster(newFakeCluster("n1")).
				WithCommitHandler(echoHandler)
		}},
		{"no cluster", func() *Builder {
			return NewBuilder("n1").
				WithLogStore(&fakeLogStore{}).
				WithTransport(&fakeTransport{}).
				WithCommitHandler(echoHandler)
		}},
		{"no commit handler", func() *Builder {
			return NewBuilder("n1").
				WithLogStore(&fakeLogStore{}).
				WithTransport(&fakeTransport{}).
				WithCluster(newFakeCluster("n1"))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.build().Build(); err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}

func TestBuilder_BuildAppliesDefaults(t *testing.T) {
	r, err := NewBuilder("n1").
		WithLogStore(&fakeLogStore{}).
		WithTransport(&fakeTransport{}).
		WithCluster(newFakeCluster("n1")).
		WithCommitHandler(echoHandler).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.ctx.logger == nil || r.ctx.clock == nil || r.ctx.rand == nil {
		t.Fatalf("expected default logger/clock/rand to be installed")
	}
	if r.ctx.opts.ElectionTimeout != DefaultElectionTimeout {
		t.Fatalf("expected default election timeout, got %v", r.ctx.opts.ElectionTimeout)
	}
}

func TestBuilder_InvalidOptionsRejected(t *testing.T) {
	opts := DefaultOptions().WithHeartbeatInterval(0)
	_, err := NewBuilder("n1").
		WithOptions(opts).
		WithLogStore(&fakeLogStore{}).
		WithTransport(&fakeTransport{}).
		WithCluster(newFakeCluster("n1")).
		WithCommitHandler(echoHandler).
		Build()
	if err == nil {
		t.Fatalf("expected validation error for zero heartbeat interval")
	}
}

func TestBuilder_WithClockAndRand(t *testing.T) {
	cl := clock.New()
	rd := rand.NewWithSeed(7)
	r, err := NewBuilder("n1").
		WithLogStore(&fakeLogStore{}).
		WithTransport(&fakeTransport{}).
		WithCluster(newFakeCluster("n1")).
		WithCommitHandler(echoHandler).
		WithClock(cl).
		WithRand(rd).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.ctx.clock != cl {
		t.Fatalf("expected injected clock to be installed")
	}
	if r.ctx.rand != rd {
		t.Fatalf("expected injected rand to be installed")
	}
}
