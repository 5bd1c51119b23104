package client

import (
	"context"

	"github.com/cuddl-go/cuddl/internal/controlproto"
	"github.com/cuddl-go/cuddl/internal/version"
)

// MemRegionGetRefCount and EventSrcGetRefCount implement
// memregion.get_ref_count / eventsrc.get_ref_count (spec.md §4.5).
func (c *Client) MemRegionGetRefCount(ctx context.Context, group, device, resource string, instance int) (int, error) {
	return c.getRefCount(ctx, controlproto.CmdMemRegionGetRefCount, group, device, resource, instance)
}

func (c *Client) EventSrcGetRefCount(ctx context.Context, group, device, resource string, instance int) (int, error) {
	return c.getRefCount(ctx, controlproto.CmdEventSrcGetRefCount, group, device, resource, instance)
}

func (c *Client) getRefCount(ctx context.Context, cmd controlproto.Command, group, device, resource string, instance int) (int, error) {
	req := controlproto.GetRefCountRequest{VersionCode: currentVersion, ID: idWire(group, device, resource, instance)}
	var resp controlproto.GetRefCountResponse
	if err := c.call(ctx, cmd, req, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// MemRegionDecrementRef and EventSrcDecrementRef implement the
// recovery-tool decrement of spec.md §4.5: it bypasses this process's own
// ref bookkeeping and decrements the record directly, for a resource whose
// owner died in a way the janitor missed.
func (c *Client) MemRegionDecrementRef(ctx context.Context, group, device, resource string, instance int) (int, error) {
	return c.decrementRef(ctx, controlproto.CmdMemRegionDecrementRef, group, device, resource, instance)
}

func (c *Client) EventSrcDecrementRef(ctx context.Context, group, device, resource string, instance int) (int, error) {
	return c.decrementRef(ctx, controlproto.CmdEventSrcDecrementRef, group, device, resource, instance)
}

func (c *Client) decrementRef(ctx context.Context, cmd controlproto.Command, group, device, resource string, instance int) (int, error) {
	req := controlproto.DecrementRefRequest{VersionCode: currentVersion, ID: idWire(group, device, resource, instance)}
	var resp controlproto.DecrementRefResponse
	if err := c.call(ctx, cmd, req, &resp); err != nil {
		return 0, err
	}
	return resp.NewCount, nil
}

// ResourceID mirrors resourceid.ID for callers that don't import
// internal/resourceid directly.
type ResourceID struct {
	Group    string
	Device   string
	Resource string
	Instance int
}

// MemRegionGetIDForSlot and EventSrcGetIDForSlot implement
// memregion.get_id_for_slot / eventsrc.get_id_for_slot (spec.md §4.5): they
// recover the full resource id naming a (device slot, resource slot) pair,
// the way a diagnostic tool enumerates every claimed resource by slot.
func (c *Client) MemRegionGetIDForSlot(ctx context.Context, deviceSlot, resourceSlot int) (ResourceID, error) {
	return c.getIDForSlot(ctx, controlproto.CmdMemRegionGetIDForSlot, deviceSlot, resourceSlot)
}

func (c *Client) EventSrcGetIDForSlot(ctx context.Context, deviceSlot, resourceSlot int) (ResourceID, error) {
	return c.getIDForSlot(ctx, controlproto.CmdEventSrcGetIDForSlot, deviceSlot, resourceSlot)
}

func (c *Client) getIDForSlot(ctx context.Context, cmd controlproto.Command, deviceSlot, resourceSlot int) (ResourceID, error) {
	req := controlproto.GetIDForSlotRequest{VersionCode: currentVersion, DeviceSlot: deviceSlot, ResourceSlot: resourceSlot}
	var resp controlproto.GetIDForSlotResponse
	if err := c.call(ctx, cmd, req, &resp); err != nil {
		return ResourceID{}, err
	}
	return ResourceID{Group: resp.ID.Group, Device: resp.ID.Device, Resource: resp.ID.Resource, Instance: resp.ID.Instance}, nil
}

// MaxDevices, MaxMem, and MaxEvents implement limits.max_devices /
// limits.max_mem / limits.max_events (spec.md §4.5/§4.8).
func (c *Client) MaxDevices(ctx context.Context) (int, error) { return c.limit(ctx, controlproto.CmdLimitsMaxDevices) }
func (c *Client) MaxMem(ctx context.Context) (int, error)     { return c.limit(ctx, controlproto.CmdLimitsMaxMem) }
func (c *Client) MaxEvents(ctx context.Context) (int, error)  { return c.limit(ctx, controlproto.CmdLimitsMaxEvents) }

func (c *Client) limit(ctx context.Context, cmd controlproto.Command) (int, error) {
	req := controlproto.LimitsRequest{VersionCode: currentVersion}
	var resp controlproto.LimitsResponse
	if err := c.call(ctx, cmd, req, &resp); err != nil {
		return 0, err
	}
	return resp.Value, nil
}

// DriverInfoForSlot and HWInfoForSlot implement driver_info.for_slot /
// hw_info.for_slot (spec.md §4.5): free-form diagnostic strings describing
// the driver shim and host hardware backing a managed device slot.
func (c *Client) DriverInfoForSlot(ctx context.Context, deviceSlot int) (string, error) {
	return c.stringForSlot(ctx, controlproto.CmdDriverInfoForSlot, deviceSlot)
}

func (c *Client) HWInfoForSlot(ctx context.Context, deviceSlot int) (string, error) {
	return c.stringForSlot(ctx, controlproto.CmdHWInfoForSlot, deviceSlot)
}

func (c *Client) stringForSlot(ctx context.Context, cmd controlproto.Command, deviceSlot int) (string, error) {
	req := controlproto.StringForSlotRequest{VersionCode: currentVersion, DeviceSlot: deviceSlot}
	var resp controlproto.StringForSlotResponse
	if err := c.call(ctx, cmd, req, &resp); err != nil {
		return "", err
	}
	return resp.Value, nil
}

// VersionCode, VersionVariant, and VersionCommit implement spec.md §4.8's
// version/info surface, reporting the manager's own build identity rather
// than this client library's.
func (c *Client) VersionCode(ctx context.Context) (version.Code, error) {
	req := controlproto.VersionRequest{VersionCode: currentVersion}
	var resp controlproto.VersionCodeResponse
	if err := c.call(ctx, controlproto.CmdVersionCode, req, &resp); err != nil {
		return 0, err
	}
	return resp.Code, nil
}

func (c *Client) VersionVariant(ctx context.Context) (string, error) {
	req := controlproto.VersionRequest{VersionCode: currentVersion}
	var resp controlproto.VersionVariantResponse
	if err := c.call(ctx, controlproto.CmdVersionVariant, req, &resp); err != nil {
		return "", err
	}
	return resp.Variant, nil
}

func (c *Client) VersionCommit(ctx context.Context) (string, error) {
	req := controlproto.VersionRequest{VersionCode: currentVersion}
	var resp controlproto.VersionCommitResponse
	if err := c.call(ctx, controlproto.CmdVersionCommit, req, &resp); err != nil {
		return "", err
	}
	return resp.Commit, nil
}
