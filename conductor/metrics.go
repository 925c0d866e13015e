// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package conductor

import (
	"github.com/luxfi/metric"
)

// metrics holds the Prometheus collectors a Conductor updates as it
// commits, acknowledges, certifies, and reacts to epoch changes. It is
// optional: a Conductor built without a MultiGatherer runs with all of
// these as no-ops.
type metrics struct {
	commits        metric.Counter
	commitFailures metric.CounterVec
	acks           metric.Counter
	certifications metric.Counter
	epochChanges   metric.Counter
}

// newMetrics registers the conductor's collectors into gatherer under
// the "conductor" namespace. A nil gatherer yields a nil *metrics; the
// recordX helpers below check for nil and do nothing in that case.
func newMetrics(gatherer metric.MultiGatherer) (*metrics, error) {
	if gatherer == nil {
		return nil, nil
	}

	reg, err := metric.MakeAndRegister(gatherer, "conductor")
	if err != nil {
		return nil, err
	}

	m := &metrics{
		commits: metric.NewCounter(metric.CounterOpts{
			Name: "commits_total",
			Help: "Number of payloads successfully submitted by the sequencer.",
		}),
		commitFailures: metric.NewCounterVec(metric.CounterOpts{
			Name: "commit_failures_total",
			Help: "Number of Commit calls that failed, labeled by error kind.",
		}, []string{"kind"}),
		acks: metric.NewCounter(metric.CounterOpts{
			Name: "acknowledgments_total",
			Help: "Number of acknowledgments processed by the automaton.",
		}),
		certifications: metric.NewCounter(metric.CounterOpts{
			Name: "certifications_total",
			Help: "Number of payloads promoted to certified.",
		}),
		epochChanges: metric.NewCounter(metric.CounterOpts{
			Name: "epoch_changes_total",
			Help: "Number of epoch-change notifications handled.",
		}),
	}

	for _, c := range []metric.Collector{m.commits, m.commitFailures, m.acks, m.certifications, m.epochChanges} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *metrics) recordCommit() {
	if m != nil {
		m.commits.Inc()
	}
}

func (m *metrics) recordCommitFailure(kind string) {
	if m != nil {
		m.commitFailures.WithLabelValues(kind).Inc()
	}
}

func (m *metrics) recordAck() {
	if m != nil {
		m.acks.Inc()
	}
}

func (m *metrics) recordCertification() {
	if m != nil {
		m.certifications.Inc()
	}
}

func (m *metrics) recordEpochChange() {
	if m != nil {
		m.epochChanges.Inc()
	}
}
