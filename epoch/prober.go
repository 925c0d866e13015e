// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package epoch

// Prober is the sole external collaborator the health-sorted policy
// depends on: something that can probe peer URLs and report
// which are currently healthy. The core never issues HTTP itself, and
// this module ships no concrete implementation.
type Prober interface {
	// CheckAllPeers runs a health probe against every known peer. It
	// has no return value: the prober records results internally and
	// HealthyPeers reads them back.
	CheckAllPeers()

	// HealthyPeers returns the sorted list of peer URLs currently
	// considered healthy.
	HealthyPeers() []string
}
