package manager

import (
	"fmt"

	"github.com/cuddl-go/cuddl/internal/runtime/numa"
)

// DefaultHWInfo renders a driver-supplied hw_info string enriched with the
// host's NUMA node count, the way a real driver shim's hw_info would note
// which node its device's memory is local to.
func DefaultHWInfo(driverHWInfo string) string {
	nodes := numa.NodeCount()
	if driverHWInfo == "" {
		return fmt.Sprintf("numa_nodes=%d", nodes)
	}
	return fmt.Sprintf("%s numa_nodes=%d", driverHWInfo, nodes)
}
