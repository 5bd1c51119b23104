// Package numa reports the host's NUMA node count for hw_info.for_slot
// responses (spec.md §4.5); it does not attempt allocation or scheduling
// decisions, which remain the driver shim's concern.
package numa

import "runtime"

// NodeCount estimates the number of NUMA nodes on the host, assuming 4
// cores per node as a rough heuristic when no topology information is
// otherwise available. Always returns at least 1.
func NodeCount() int {
	n := runtime.NumCPU() / 4
	if n < 1 {
		n = 1
	}
	return n
}
