package raft

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jathurchan/raftreplica/types"
)

var prometheusRegisterOnce sync.Once

var (
	metricTerm = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "replica",
		Name:      "term",
		Help:      "Current election term observed by this replica.",
	})
	metricCommitIndex = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "replica",
		Name:      "commit_index",
		Help:      "Highest log index known committed.",
	})
	metricAppliedIndex = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "replica",
		Name:      "applied_index",
		Help:      "Highest log index applied to the state machine.",
	})
	metricRoleChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "replica",
		Name:      "role_changes_total",
		Help:      "Total role transitions, labeled by from/to role.",
	}, []string{"from", "to"})
	metricLeaderChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "replica",
		Name:      "leader_changes_total",
		Help:      "Total observed leader changes, labeled by new leader.",
	}, []string{"leader"})
	metricElectionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "replica",
		Name:      "elections_started_total",
		Help:      "Total elections started by this replica.",
	})
	metricVotesGranted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "replica",
		Name:      "votes_granted_total",
		Help:      "Total votes granted, labeled by candidate.",
	}, []string{"candidate"})
	metricHeartbeats = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "replica",
		Name:      "heartbeats_total",
		Help:      "Total heartbeat round-trips, labeled by peer and result.",
	}, []string{"peer", "success"})
	metricHeartbeatLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "replica",
		Name:      "heartbeat_latency_seconds",
		Help:      "Heartbeat round-trip latency, labeled by peer.",
	}, []string{"peer"})
	metricReplications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "replica",
		Name:      "replications_total",
		Help:      "Total AppendEntries replication attempts, labeled by peer and result.",
	}, []string{"peer", "success"})
	metricClientRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "replica",
		Name:      "client_requests_total",
		Help:      "Total client requests, labeled by op and result.",
	}, []string{"op", "success"})
	metricClientLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "replica",
		Name:      "client_request_latency_seconds",
		Help:      "Client request latency, labeled by op.",
	}, []string{"op"})
)

// registerPrometheusCollectors registers every collector exactly once,
// mirroring the reference corpus's Register()-guarded-by-sync.Once pattern.
func registerPrometheusCollectors() {
	prometheusRegisterOnce.Do(func() {
		prometheus.MustRegister(
			metricTerm,
			metricCommitIndex,
			metricAppliedIndex,
			metricRoleChanges,
			metricLeaderChanges,
			metricElectionsStarted,
			metricVotesGranted,
			metricHeartbeats,
			metricHeartbeatLatency,
			metricReplications,
			metricClientRequests,
			metricClientLatency,
		)
	})
}

// prometheusMetrics implements Metrics over client_golang collectors.
type prometheusMetrics struct{}

// NewPrometheusMetrics returns a Metrics implementation backed by
// prometheus/client_golang, registering its collectors with the default
// registry on first use.
func NewPrometheusMetrics() Metrics {
	registerPrometheusCollectors()
	return &prometheusMetrics{}
}

func (m *prometheusMetrics) ObserveTerm(term types.Term)           { metricTerm.Set(float64(term)) }
func (m *prometheusMetrics) ObserveCommitIndex(index types.Index) { metricCommitIndex.Set(float64(index)) }
func (m *prometheusMetrics) ObserveAppliedIndex(index types.Index) {
	metricAppliedIndex.Set(float64(index))
}

func (m *prometheusMetrics) ObserveRoleChange(from, to types.RoleKind, term types.Term) {
	metricRoleChanges.WithLabelValues(from.String(), to.String()).Inc()
}

func (m *prometheusMetrics) ObserveLeaderChange(leader types.NodeID, term types.Term) {
	metricLeaderChanges.WithLabelValues(string(leader)).Inc()
}

func (m *prometheusMetrics) ObserveElectionStarted(term types.Term) {
	metricElectionsStarted.Inc()
}

func (m *prometheusMetrics) ObserveVoteGranted(term types.Term, candidate types.NodeID) {
	metricVotesGranted.WithLabelValues(string(candidate)).Inc()
}

func (m *prometheusMetrics) ObserveHeartbeat(peer types.NodeID, success bool, latency time.Duration) {
	metricHeartbeats.WithLabelValues(string(peer), strconv.FormatBool(success)).Inc()
	metricHeartbeatLatency.WithLabelValues(string(peer)).Observe(latency.Seconds())
}

func (m *prometheusMetrics) ObserveReplication(peer types.NodeID, entries int, success bool) {
	metricReplications.WithLabelValues(string(peer), strconv.FormatBool(success)).Inc()
}

func (m *prometheusMetrics) ObserveClientRequest(op string, success bool, latency time.Duration) {
	metricClientRequests.WithLabelValues(op, strconv.FormatBool(success)).Inc()
	metricClientLatency.WithLabelValues(op).Observe(latency.Seconds())
}
