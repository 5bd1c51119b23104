// Command cuddl-ctl is a diagnostic CLI over the client library: it dials a
// running cuddl-managerd and prints the version/limits/info surface of
// spec.md §4.8, the same information a driver-aware tool would use to
// sanity-check a manager before claiming anything against it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cuddl-go/cuddl/client"
)

func main() {
	var (
		controlAddr string
		janitorAddr string
	)
	flag.StringVar(&controlAddr, "control-addr", "127.0.0.1:7781", "control channel address")
	flag.StringVar(&janitorAddr, "janitor-addr", "127.0.0.1:7782", "janitor channel address")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := client.Open(ctx, client.Options{ControlAddr: controlAddr, JanitorAddr: janitorAddr})
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer c.Close()

	switch args[0] {
	case "version":
		runVersion(ctx, c)
	case "limits":
		runLimits(ctx, c)
	case "memregion-info":
		runMemRegionInfo(ctx, c, args[1:])
	case "eventsrc-info":
		runEventSrcInfo(ctx, c, args[1:])
	case "driver-info":
		runDriverInfo(ctx, c, args[1:])
	case "hw-info":
		runHWInfo(ctx, c, args[1:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: cuddl-ctl [-control-addr addr] [-janitor-addr addr] <command> [args]

commands:
  version
  limits
  memregion-info <group> <device> <resource> <instance>
  eventsrc-info  <group> <device> <resource> <instance>
  driver-info    <device-slot>
  hw-info        <device-slot>`)
}

func runVersion(ctx context.Context, c *client.Client) {
	code, err := c.VersionCode(ctx)
	if err != nil {
		fatal("version.code", err)
	}
	variant, err := c.VersionVariant(ctx)
	if err != nil {
		fatal("version.variant", err)
	}
	commit, err := c.VersionCommit(ctx)
	if err != nil {
		fatal("version.commit", err)
	}
	fmt.Printf("code=%s variant=%s commit=%s\n", code, variant, commit)
}

func runLimits(ctx context.Context, c *client.Client) {
	maxDevices, err := c.MaxDevices(ctx)
	if err != nil {
		fatal("limits.max_devices", err)
	}
	maxMem, err := c.MaxMem(ctx)
	if err != nil {
		fatal("limits.max_mem", err)
	}
	maxEvents, err := c.MaxEvents(ctx)
	if err != nil {
		fatal("limits.max_events", err)
	}
	fmt.Printf("max_devices=%d max_mem=%d max_events=%d\n", maxDevices, maxMem, maxEvents)
}

func runMemRegionInfo(ctx context.Context, c *client.Client, args []string) {
	group, device, resource, instance := parseIDArgs(args)
	info, err := c.MemRegionGetInfo(ctx, group, device, resource, instance)
	if err != nil {
		fatal("memregion.get_info", err)
	}
	fmt.Printf("len=%d pa_len=%d start_offset=%d flags=%d\n", info.Len, info.PALen, info.StartOffset, info.Flags)
}

func runEventSrcInfo(ctx context.Context, c *client.Client, args []string) {
	group, device, resource, instance := parseIDArgs(args)
	flags, err := c.EventSrcGetInfo(ctx, group, device, resource, instance)
	if err != nil {
		fatal("eventsrc.get_info", err)
	}
	fmt.Printf("flags=%d\n", flags)
}

func runDriverInfo(ctx context.Context, c *client.Client, args []string) {
	slot := parseSlotArg(args)
	info, err := c.DriverInfoForSlot(ctx, slot)
	if err != nil {
		fatal("driver_info.for_slot", err)
	}
	fmt.Println(info)
}

func runHWInfo(ctx context.Context, c *client.Client, args []string) {
	slot := parseSlotArg(args)
	info, err := c.HWInfoForSlot(ctx, slot)
	if err != nil {
		fatal("hw_info.for_slot", err)
	}
	fmt.Println(info)
}

func parseIDArgs(args []string) (group, device, resource string, instance int) {
	if len(args) != 4 {
		usage()
		os.Exit(2)
	}
	group, device, resource = args[0], args[1], args[2]
	if _, err := fmt.Sscanf(args[3], "%d", &instance); err != nil {
		fmt.Fprintln(os.Stderr, "invalid instance:", args[3])
		os.Exit(2)
	}
	return
}

func parseSlotArg(args []string) int {
	if len(args) != 1 {
		usage()
		os.Exit(2)
	}
	var slot int
	if _, err := fmt.Sscanf(args[0], "%d", &slot); err != nil {
		fmt.Fprintln(os.Stderr, "invalid slot:", args[0])
		os.Exit(2)
	}
	return slot
}

func fatal(op string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", op, err)
	os.Exit(1)
}
