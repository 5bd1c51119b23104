// Package klog is the manager's leveled log output, in the teacher's own
// boot-banner style (see cmd/orizon-kernel/main.go's KernelPrint banner
// and internal/runtime/kernel/hardware_real.go's KernelPrint): short,
// line-oriented, no structured-logging library. The teacher's own go.mod
// pulls in no logging package for this, so neither does this one — see
// DESIGN.md for that justification.
package klog

import (
	"fmt"
	"log"
	"os"
)

// Level selects verbosity.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
	LevelDebug
)

func (l Level) prefix() string {
	switch l {
	case LevelWarn:
		return "WARN "
	case LevelError:
		return "ERROR"
	case LevelDebug:
		return "DEBUG"
	default:
		return "INFO "
	}
}

var std = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)

// Debug gates LevelDebug output; off unless enable_debug_print is set (see
// cmd/cuddl-managerd's --enable-debug-print flag, mirroring spec.md §6's
// build-time option of the same name).
var Debug = false

func logf(l Level, format string, args ...any) {
	if l == LevelDebug && !Debug {
		return
	}
	std.Printf("%s %s", l.prefix(), fmt.Sprintf(format, args...))
}

func Info(format string, args ...any)  { logf(LevelInfo, format, args...) }
func Warn(format string, args ...any)  { logf(LevelWarn, format, args...) }
func Error(format string, args ...any) { logf(LevelError, format, args...) }
func Debugf(format string, args ...any) { logf(LevelDebug, format, args...) }

// Banner prints a multi-line boot banner the way cmd/orizon-kernel's
// kernelMain does.
func Banner(lines ...string) {
	fmt.Fprintln(os.Stderr, "========================================")
	for _, l := range lines {
		fmt.Fprintln(os.Stderr, l)
	}
	fmt.Fprintln(os.Stderr, "========================================")
}
