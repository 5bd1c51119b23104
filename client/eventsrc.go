package client

import (
	"context"

	"github.com/cuddl-go/cuddl/internal/controlproto"
	"github.com/cuddl-go/cuddl/internal/manager"
	"github.com/cuddl-go/cuddl/internal/platform"
)

// EventSrc is a claimed, optionally-opened eventsrc. The zero value is not
// usable; construct one through Client.EventSrcClaim.
type EventSrc struct {
	c     *Client
	token manager.Token
	flags manager.ResourceFlags

	devicePath string
	waker      manager.Waker

	// enabled records the outcome of the last successful Enable/Disable
	// call so Enabled() can answer locally between remote is_enabled polls,
	// mirroring the original library's is_enabled field
	// (original_source/user/include/cuddl/eventsrc.h).
	enabled bool
}

// Waker is re-exported so callers can name the interface without importing
// internal/manager directly.
type Waker = manager.Waker

// Flags returns the flags reported at claim time (spec.md §4.5:
// SHARED/WAITABLE/HAS_ENABLE/HAS_DISABLE/HAS_IS_ENABLED).
func (e *EventSrc) Flags() manager.ResourceFlags { return e.flags }

// EventSrcClaim implements eventsrc.claim: it resolves the eventsrc and
// records a ResourceRef, but does not open the wait channel — call Open
// separately, or use ClaimAndOpen.
func (c *Client) EventSrcClaim(ctx context.Context, group, device, resource string, instance int, hostile bool) (*EventSrc, error) {
	req := controlproto.ClaimRequest{
		VersionCode: currentVersion,
		PID:         c.pid,
		Options:     controlproto.ClaimOptions{Hostile: hostile},
		ID:          idWire(group, device, resource, instance),
	}
	var resp controlproto.ClaimResponse
	if err := c.call(ctx, controlproto.CmdEventSrcClaim, req, &resp); err != nil {
		return nil, err
	}
	return &EventSrc{c: c, token: resp.Token, flags: resp.Flags, devicePath: resp.DevicePath}, nil
}

// EventSrcGetInfo implements eventsrc.get_info.
func (c *Client) EventSrcGetInfo(ctx context.Context, group, device, resource string, instance int) (manager.ResourceFlags, error) {
	req := controlproto.GetInfoRequest{VersionCode: currentVersion, ID: idWire(group, device, resource, instance)}
	var resp controlproto.GetInfoResponse
	if err := c.call(ctx, controlproto.CmdEventSrcGetInfo, req, &resp); err != nil {
		return 0, err
	}
	return resp.Flags, nil
}

// Open opens this process's own wait primitive against the claimed
// eventsrc's device path (spec.md §4.7: the client process, not the
// manager, performs this). uioStyle selects the file-descriptor waker; the
// realtime variant uses a semaphore-style waker instead.
func (e *EventSrc) Open(uioStyle bool) error {
	if e.waker != nil {
		return nil
	}
	w, err := platform.OpenWaker(e.devicePath, uioStyle)
	if err != nil {
		return err
	}
	e.waker = w
	return nil
}

// Close shuts down the wait primitive without releasing the claim.
func (e *EventSrc) Close() error {
	if e.waker == nil {
		return nil
	}
	err := e.waker.Close()
	e.waker = nil
	return err
}

// Wait blocks for the next event, returning the cumulative count the
// platform reports.
func (e *EventSrc) Wait() (uint64, error) { return e.waker.Wait() }

// TimedWait blocks for at most sec/nsec.
func (e *EventSrc) TimedWait(sec, nsec int64) (uint64, error) { return e.waker.TimedWait(sec, nsec) }

// TryWait is a zero-timeout TimedWait (spec.md §4.7's non-blocking poll).
func (e *EventSrc) TryWait() (uint64, error) { return e.waker.TimedWait(0, 0) }

// Enable and Disable drive the platform waker's enable/disable primitive
// and update the local enabled cache; HasEnable/HasDisable on Flags()
// report whether the driver actually wired a callback behind this call.
func (e *EventSrc) Enable() error {
	if err := e.waker.Enable(); err != nil {
		return err
	}
	e.enabled = true
	return nil
}

func (e *EventSrc) Disable() error {
	if err := e.waker.Disable(); err != nil {
		return err
	}
	e.enabled = false
	return nil
}

// Enabled returns the local cache of the last Enable/Disable call. It does
// not poll the manager; call Client.EventSrcIsEnabled for the authoritative
// driver-reported state.
func (e *EventSrc) Enabled() bool { return e.enabled }

// EventSrcIsEnabled implements eventsrc.is_enabled: the authoritative,
// driver-reported enabled state (spec.md §4.5), as opposed to EventSrc's
// local Enabled() cache.
func (c *Client) EventSrcIsEnabled(ctx context.Context, e *EventSrc) (bool, error) {
	req := controlproto.IsEnabledRequest{VersionCode: currentVersion, Token: e.token}
	var resp controlproto.IsEnabledResponse
	if err := c.call(ctx, controlproto.CmdEventSrcIsEnabled, req, &resp); err != nil {
		return false, err
	}
	return resp.Enabled, nil
}

// Release implements eventsrc.release. Callers that opened the wait
// primitive should Close first; Release does not do it for them.
func (e *EventSrc) Release(ctx context.Context) error {
	req := controlproto.ReleaseRequest{VersionCode: currentVersion, PID: e.c.pid, Token: e.token}
	var resp controlproto.ReleaseResponse
	return e.c.call(ctx, controlproto.CmdEventSrcRelease, req, &resp)
}

// ClaimAndOpen combines EventSrcClaim and Open, releasing the claim again if
// opening the wait primitive fails.
func (c *Client) ClaimAndOpen(ctx context.Context, group, device, resource string, instance int, hostile, uioStyle bool) (*EventSrc, error) {
	e, err := c.EventSrcClaim(ctx, group, device, resource, instance, hostile)
	if err != nil {
		return nil, err
	}
	if err := e.Open(uioStyle); err != nil {
		_ = e.Release(ctx)
		return nil, err
	}
	return e, nil
}

// CloseAndRelease combines Close and Release, attempting the release even
// if Close fails, and reporting whichever error came first.
func (e *EventSrc) CloseAndRelease(ctx context.Context) error {
	cerr := e.Close()
	rerr := e.Release(ctx)
	if cerr != nil {
		return cerr
	}
	return rerr
}
