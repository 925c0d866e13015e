// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package epoch

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/conductor/internal/clock"
)

// fakeProber lets tests control exactly which peers report healthy.
type fakeProber struct {
	healthy []string
	checks  int
}

func (f *fakeProber) CheckAllPeers() { f.checks++ }
func (f *fakeProber) HealthyPeers() []string {
	out := make([]string, len(f.healthy))
	copy(out, f.healthy)
	sort.Strings(out)
	return out
}

// S6 — health sort: self_url="http://b", healthy peers
// ["http://a","http://c"] ⇒ candidates ["a","b","c"] ⇒ leader "a",
// is_self=false.
func TestHealthSortedScenarioS6(t *testing.T) {
	require := require.New(t)

	prober := &fakeProber{healthy: []string{"http://a", "http://c"}}
	h := NewHealthSorted[string](
		"http://b", "key-b",
		[]string{"http://a", "http://c"}, []string{"key-a", "key-c"},
		time.Minute, 2, prober, clock.NewMock(time.Unix(0, 0)),
	)

	leader, ok := h.Sequencer(0)
	require.True(ok)
	require.Equal("key-a", leader)
	require.False(h.IsSequencer("key-b"))
}

func TestHealthSortedTickElectsNewLeaderOnChange(t *testing.T) {
	require := require.New(t)

	prober := &fakeProber{healthy: []string{"http://c"}}
	h := NewHealthSorted[string](
		"http://b", "key-b",
		[]string{"http://a", "http://c"}, []string{"key-a", "key-c"},
		time.Minute, 2, prober, clock.NewMock(time.Unix(0, 0)),
	)

	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	// Initially "a" is healthy-by-default and leads.
	leader, _ := h.Sequencer(0)
	require.Equal("key-a", leader)

	// "a" goes unhealthy; only "c" and self remain -> "b" sorts first.
	h.Tick()

	change := <-ch
	require.Equal(uint64(1), change.Epoch)
	require.True(change.IsSelf)
	require.Equal("key-b", change.Sequencer)

	leader, ok := h.Sequencer(change.Epoch)
	require.True(ok)
	require.Equal("key-b", leader)

	// Stale epoch queries return nothing: the policy has no memory of
	// past leaders.
	_, ok = h.Sequencer(0)
	require.False(ok)
}

func TestHealthSortedTickNoOpWhenLeaderUnchanged(t *testing.T) {
	require := require.New(t)

	prober := &fakeProber{healthy: []string{"http://a", "http://c"}}
	h := NewHealthSorted[string](
		"http://b", "key-b",
		[]string{"http://a", "http://c"}, []string{"key-a", "key-c"},
		time.Minute, 2, prober, clock.NewMock(time.Unix(0, 0)),
	)

	before := h.CurrentEpoch()
	h.Tick()
	require.Equal(before, h.CurrentEpoch())
}

func TestHealthSortedValidatorsIncludesSelf(t *testing.T) {
	require := require.New(t)

	prober := &fakeProber{healthy: []string{"http://a", "http://c"}}
	h := NewHealthSorted[string](
		"http://b", "key-b",
		[]string{"http://a", "http://c"}, []string{"key-a", "key-c"},
		time.Minute, 2, prober, clock.NewMock(time.Unix(0, 0)),
	)

	validators, ok := h.Validators(0)
	require.True(ok)
	require.ElementsMatch([]string{"key-a", "key-b", "key-c"}, validators)
}

func TestHealthSortedStopEndsRun(t *testing.T) {
	prober := &fakeProber{healthy: []string{"http://a", "http://c"}}
	h := NewHealthSorted[string](
		"http://b", "key-b",
		[]string{"http://a", "http://c"}, []string{"key-a", "key-c"},
		time.Millisecond, 2, prober, clock.Real{},
	)

	go h.Run(context.Background())

	done := make(chan struct{})
	go func() {
		h.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
