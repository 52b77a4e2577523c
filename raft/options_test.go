package raft

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultOptions_Valid(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Fatalf("DefaultOptions() should validate, got %v", err)
	}
}

func TestOptions_WithHelpers(t *testing.T) {
	o := DefaultOptions().
		WithElectionTimeout(200 * time.Millisecond).
		WithHeartbeatInterval(20 * time.Millisecond).
		WithMaxEntriesPerAppend(50)

	if o.ElectionTimeout != 200*time.Millisecond {
		t.Errorf("ElectionTimeout = %v", o.ElectionTimeout)
	}
	if o.HeartbeatInterval != 20*time.Millisecond {
		t.Errorf("HeartbeatInterval = %v", o.HeartbeatInterval)
	}
	if o.MaxEntriesPerAppend != 50 {
		t.Errorf("MaxEntriesPerAppend = %d", o.MaxEntriesPerAppend)
	}
}

func TestOptions_RPCDeadline(t *testing.T) {
	o := DefaultOptions().WithElectionTimeout(100 * time.Millisecond)
	if d := o.RPCDeadline(); d > o.ElectionTimeout/2+1 {
		t.Errorf("RPCDeadline() = %v, expected <= half of election timeout", d)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name string
		opt  Options
	}{
		{"zero election timeout", DefaultOptions().WithElectionTimeout(0)},
		{"zero heartbeat interval", DefaultOptions().WithHeartbeatInterval(0)},
		{"heartbeat not less than election timeout", DefaultOptions().WithElectionTimeout(10 * time.Millisecond).WithHeartbeatInterval(10 * time.Millisecond)},
		{"zero max entries", DefaultOptions().WithMaxEntriesPerAppend(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opt.Validate(); !errors.Is(err, ErrConfigValidation) {
				t.Errorf("Validate() = %v, expected ErrConfigValidation", err)
			}
		})
	}
}
