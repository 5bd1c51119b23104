// Command cuddl-managerd is the device-mediation manager daemon of spec.md
// §4.4: it owns the registry, serves the control and janitor channels, and
// watches a device-descriptor directory for driver shims to register
// against (internal/devwatch's stand-in for the original's in-kernel
// registration call).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuddl-go/cuddl/internal/controlproto"
	"github.com/cuddl-go/cuddl/internal/devwatch"
	"github.com/cuddl-go/cuddl/internal/janitor"
	"github.com/cuddl-go/cuddl/internal/klog"
	"github.com/cuddl-go/cuddl/internal/manager"
	"github.com/cuddl-go/cuddl/internal/platform"
	"github.com/cuddl-go/cuddl/internal/version"
)

func main() {
	var (
		controlAddr               string
		janitorAddr               string
		deviceDir                 string
		variant                   string
		disableUDDOnXenomai       bool
		enableDebugPrint          bool
		enableIntrusiveDebugPrint bool
	)
	flag.StringVar(&controlAddr, "control-addr", "127.0.0.1:7781", "control channel listen address")
	flag.StringVar(&janitorAddr, "janitor-addr", "127.0.0.1:7782", "janitor channel listen address")
	flag.StringVar(&deviceDir, "device-dir", "/var/run/cuddl/devices", "directory watched for device-descriptor JSON files")
	flag.StringVar(&variant, "variant", "uio", "platform back-end: uio or realtime")
	flag.BoolVar(&disableUDDOnXenomai, "disable-udd-on-xenomai", false, "force the uio (non-real-time) back-end even when --variant=realtime")
	flag.BoolVar(&enableDebugPrint, "enable-debug-print", false, "enable verbose debug logging")
	flag.BoolVar(&enableIntrusiveDebugPrint, "enable-intrusive-debug-print", false, "enable debug logging (same effect as --enable-debug-print)")
	flag.Parse()

	klog.Debug = enableDebugPrint || enableIntrusiveDebugPrint

	backend, err := selectBackend(variant, disableUDDOnXenomai)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	version.Variant = backend.Variant()

	klog.Banner(
		fmt.Sprintf("cuddl-managerd %s", version.Current),
		fmt.Sprintf("variant: %s", backend.Variant()),
		fmt.Sprintf("commit: %s", version.Commit),
	)

	registry := manager.New(backend)

	watcher, err := devwatch.New(registry, deviceDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "device watcher:", err)
		os.Exit(1)
	}
	defer watcher.Close()

	handler := controlproto.New(registry, backend)
	ctlServer := controlproto.NewServer(handler)
	ctlBound, err := ctlServer.Start(controlAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "control channel:", err)
		os.Exit(1)
	}
	klog.Info("control channel listening on %s", ctlBound)

	janServer := janitor.NewServer(registry)
	janBound, err := janServer.Start(janitorAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "janitor channel:", err)
		os.Exit(1)
	}
	klog.Info("janitor channel listening on %s", janBound)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		klog.Info("shutting down")
	case err := <-ctlServer.Errors():
		klog.Error("control channel stopped: %v", err)
	case err := <-janServer.Errors():
		klog.Error("janitor channel stopped: %v", err)
	}

	_ = ctlServer.Stop()
	_ = janServer.Stop()
}

// selectBackend implements spec.md §6's variant selection: uio (Linux
// UIO/UDD) is the default; realtime (RTDM) is opt-in. --disable-udd-on-xenomai
// mirrors the original build option of the same name: it forces the uio
// (non-real-time) back-end even when --variant=realtime is given.
func selectBackend(variant string, disableUDDOnXenomai bool) (platform.Backend, error) {
	switch variant {
	case "uio":
		return platform.NewUIOBackend(), nil
	case "realtime":
		if disableUDDOnXenomai {
			return platform.NewUIOBackend(), nil
		}
		return platform.NewRealtimeBackend(), nil
	default:
		return nil, fmt.Errorf("selectBackend: unknown variant %q", variant)
	}
}
