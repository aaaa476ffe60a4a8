package cassandra

import (
	"context"
	"regexp"
	"strings"

	"github.com/gocql/gocql"
	"github.com/prometheus/client_golang/prometheus"
)

var tablePattern = regexp.MustCompile(`(?i)\b(?:from|into|update|table(?:\s+if\s+not\s+exists)?)\s+([a-z_][a-z0-9_]*)`)

// Observer records query and batch latency. It implements gocql's
// QueryObserver and BatchObserver.
type Observer struct {
	queries *prometheus.HistogramVec
	batches *prometheus.HistogramVec
}

// NewObserver creates the collectors and registers them with reg.
func NewObserver(reg prometheus.Registerer) *Observer {
	o := &Observer{
		queries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "messenger",
			Subsystem: "cassandra",
			Name:      "query_duration_seconds",
			Help:      "Latency of Cassandra queries by verb, table and outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"verb", "table", "outcome"}),
		batches: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "messenger",
			Subsystem: "cassandra",
			Name:      "batch_duration_seconds",
			Help:      "Latency of Cassandra batches by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(o.queries, o.batches)
	}
	return o
}

func (o *Observer) ObserveQuery(_ context.Context, q gocql.ObservedQuery) {
	v, table := statementLabels(q.Statement)
	o.queries.WithLabelValues(v, table, outcome(q.Err)).Observe(q.End.Sub(q.Start).Seconds())
}

func (o *Observer) ObserveBatch(_ context.Context, b gocql.ObservedBatch) {
	o.batches.WithLabelValues(outcome(b.Err)).Observe(b.End.Sub(b.Start).Seconds())
}

func statementLabels(stmt string) (string, string) {
	table := "unknown"
	if m := tablePattern.FindStringSubmatch(stmt); m != nil {
		table = strings.ToLower(m[1])
	}
	return verb(stmt), table
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
