package raft

import (
	"errors"

	"github.com/jathurchan/raftreplica/clock"
	"github.com/jathurchan/raftreplica/logger"
	"github.com/jathurchan/raftreplica/rand"
	"github.com/jathurchan/raftreplica/types"
)

// Builder facilitates construction of a Replica with appropriate
// defaults for optional collaborators.
type Builder struct {
	id            types.NodeID
	opts          Options
	logStore      LogStore
	transport     Transport
	cluster       Cluster
	commitHandler func(key, entry []byte) ([]byte, error)
	logger        logger.Logger
	metrics       Metrics
	clock         clock.Clock
	rand          rand.Rand
}

// NewBuilder creates a new Builder for Replica construction.
func NewBuilder(id types.NodeID) *Builder {
	return &Builder{id: id, opts: DefaultOptions()}
}

// WithOptions sets the timing/batching options.
func (b *Builder) WithOptions(opts Options) *Builder {
	b.opts = opts
	return b
}

// WithLogStore sets the durable log storage collaborator.
func (b *Builder) WithLogStore(store LogStore) *Builder {
	b.logStore = store
	return b
}

// WithTransport sets the peer RPC / client-forwarding collaborator.
func (b *Builder) WithTransport(transport Transport) *Builder {
	b.transport = transport
	return b
}

// WithCluster sets the membership collaborator.
func (b *Builder) WithCluster(cluster Cluster) *Builder {
	b.cluster = cluster
	return b
}

// WithCommitHandler sets the state machine apply function invoked on the
// pump thread for every committed entry and every read.
func (b *Builder) WithCommitHandler(fn func(key, entry []byte) ([]byte, error)) *Builder {
	b.commitHandler = fn
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(l logger.Logger) *Builder {
	b.logger = l
	return b
}

// WithMetrics sets the metrics collector.
func (b *Builder) WithMetrics(m Metrics) *Builder {
	b.metrics = m
	return b
}

// WithClock sets the clock implementation, for deterministic tests.
func (b *Builder) WithClock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

// WithRand sets the random number generator, for deterministic tests.
func (b *Builder) WithRand(r rand.Rand) *Builder {
	b.rand = r
	return b
}

// Build constructs a Replica with the configured values, or returns an
// error if a required collaborator is missing or the options are invalid.
func (b *Builder) Build() (*Replica, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	b.setDefaults()
	deps := Dependencies{
		LogStore:      b.logStore,
		Transport:     b.transport,
		Cluster:       b.cluster,
		Logger:        b.logger,
		Metrics:       b.metrics,
		Clock:         b.clock,
		Rand:          b.rand,
		CommitHandler: b.commitHandler,
	}
	return New(b.id, b.opts, deps)
}

func (b *Builder) validate() error {
	if b.id == "" {
		return errors.New("replica: node id must be set")
	}
	if b.logStore == nil {
		return errors.New("replica: log store cannot be nil")
	}
	if b.transport == nil {
		return errors.New("replica: transport cannot be nil")
	}
	if b.cluster == nil {
		return errors.New("replica: cluster cannot be nil")
	}
	if b.commitHandler == nil {
		return errors.New("replica: commit handler cannot be nil")
	}
	return nil
}

func (b *Builder) setDefaults() {
	if b.logger == nil {
		b.logger = logger.NewNoOpLogger()
	}
	if b.metrics == nil {
		b.metrics = NewNoOpMetrics()
	}
	if b.clock == nil {
		b.clock = clock.New()
	}
	if b.rand == nil {
		b.rand = rand.New()
	}
}
