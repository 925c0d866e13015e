// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package epoch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/luxfi/conductor/internal/clock"
)

// HealthSorted is the health-driven sorted election policy: every
// tick it asks a Prober which peers are
// healthy, sorts the healthy set (including self) lexicographically by
// URL, and elects the first entry as leader. Ties are impossible
// because the sort is total and deterministic.
type HealthSorted[K comparable] struct {
	mu sync.RWMutex

	selfURL  string
	selfKey  K
	peerKeys map[string]K // peer URL -> key, as given at construction
	allURLs  []string     // sort(peerURLs + selfURL); fixed for the policy's lifetime

	interval  time.Duration
	threshold int

	prober Prober
	clock  clock.Clock

	currentEpoch  uint64
	currentLeader string
	// oldLeader is recorded before every update for logging only;
	// nothing else consumes it.
	oldLeader string

	bcast *broadcaster[K]

	stop chan struct{}
	done chan struct{}
}

// NewHealthSorted constructs a health-sorted policy. peerKeys must be
// in the same order as peerURLs. The initial leader is computed from
// the full, unprobed peer set (i.e. "everyone healthy") so the policy
// has a sequencer before the first tick runs.
func NewHealthSorted[K comparable](
	selfURL string,
	selfKey K,
	peerURLs []string,
	peerKeys []K,
	interval time.Duration,
	threshold int,
	prober Prober,
	clk clock.Clock,
) *HealthSorted[K] {
	keyByURL := make(map[string]K, len(peerURLs))
	for i, url := range peerURLs {
		if i < len(peerKeys) {
			keyByURL[url] = peerKeys[i]
		}
	}

	all := make([]string, 0, len(peerURLs)+1)
	all = append(all, peerURLs...)
	all = append(all, selfURL)
	sort.Strings(all)

	h := &HealthSorted[K]{
		selfURL:   selfURL,
		selfKey:   selfKey,
		peerKeys:  keyByURL,
		allURLs:   all,
		interval:  interval,
		threshold: threshold,
		prober:    prober,
		clock:     clk,
		bcast:     newBroadcaster[K](),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	h.currentLeader = all[0]
	return h
}

func (h *HealthSorted[K]) CurrentEpoch() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.currentEpoch
}

// Sequencer returns the public key of the current leader URL, but only
// when e matches the current epoch: the policy has no memory of past
// leaders.
func (h *HealthSorted[K]) Sequencer(e uint64) (K, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var zero K
	if e != h.currentEpoch {
		return zero, false
	}
	return h.keyForURLLocked(h.currentLeader)
}

func (h *HealthSorted[K]) IsSequencer(k K) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	self, ok := h.keyForURLLocked(h.currentLeader)
	return ok && self == k
}

func (h *HealthSorted[K]) Validators(e uint64) ([]K, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if e != h.currentEpoch {
		return nil, false
	}
	out := make([]K, 0, len(h.allURLs))
	for _, url := range h.allURLs {
		k, ok := h.keyForURLLocked(url)
		if ok {
			out = append(out, k)
		}
	}
	return out, true
}

func (h *HealthSorted[K]) QuorumThreshold(e uint64) (int, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if e != h.currentEpoch {
		return 0, false
	}
	return h.threshold, true
}

func (h *HealthSorted[K]) Subscribe() <-chan Change[K] {
	return h.bcast.subscribe()
}

func (h *HealthSorted[K]) Unsubscribe(ch <-chan Change[K]) {
	h.bcast.unsubscribe(ch)
}

// TransferLeader always fails: election is automatic, driven by peer
// health, with no voluntary handoff.
func (h *HealthSorted[K]) TransferLeader(ctx context.Context) error {
	return &TransferError{Err: ErrTransferNotSupported}
}

// keyForURLLocked maps a URL to its participant key: a URL outside the
// fixed, sorted allURLs has no key; selfURL maps to selfKey; any other
// URL maps to the key paired with it at construction (peerKeys[i] for
// peerURLs[i]).
func (h *HealthSorted[K]) keyForURLLocked(url string) (K, bool) {
	var zero K
	i := indexOf(h.allURLs, url)
	if i < 0 {
		return zero, false
	}
	if url == h.selfURL {
		return h.selfKey, true
	}
	k, ok := h.peerKeys[url]
	return k, ok
}

func indexOf(urls []string, url string) int {
	for i, u := range urls {
		if u == url {
			return i
		}
	}
	return -1
}

// Run drives the background health-check ticker until ctx is
// cancelled. Each tick calls Tick.
func (h *HealthSorted[K]) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case <-h.clock.After(h.interval):
			h.Tick()
		}
	}
}

// Stop signals Run to exit and waits for it to finish.
func (h *HealthSorted[K]) Stop() {
	close(h.stop)
	<-h.done
}

// Tick runs one round of the health-sorted election: probe peers,
// compute the sorted candidate set, and broadcast an EpochChange if
// the elected leader changed. Exported so tests can drive the policy
// without depending on wall-clock timing.
func (h *HealthSorted[K]) Tick() {
	h.prober.CheckAllPeers()
	healthy := h.prober.HealthyPeers()

	candidates := make([]string, 0, len(healthy)+1)
	candidates = append(candidates, healthy...)
	candidates = append(candidates, h.selfURL)
	sort.Strings(candidates)
	newLeader := candidates[0]

	h.mu.Lock()
	if newLeader == h.currentLeader {
		h.mu.Unlock()
		return
	}

	h.oldLeader = h.currentLeader
	h.currentLeader = newLeader
	h.currentEpoch++
	epoch := h.currentEpoch
	isSelf := newLeader == h.selfURL
	leaderKey, _ := h.keyForURLLocked(newLeader)
	h.mu.Unlock()

	h.bcast.publish(Change[K]{Epoch: epoch, Sequencer: leaderKey, IsSelf: isSelf})
}
