package client

import (
	"context"

	"github.com/cuddl-go/cuddl/internal/controlproto"
	"github.com/cuddl-go/cuddl/internal/manager"
	"github.com/cuddl-go/cuddl/internal/platform"
)

// MemRegionInfo mirrors the read-only fields spec.md §4.7 documents on a
// memregion, whether reached via Claim or GetInfo.
type MemRegionInfo struct {
	Len         uintptr
	PALen       uintptr
	StartOffset uintptr
	Flags       manager.ResourceFlags
}

// MemRegion is a claimed memregion, optionally mapped into this process.
// The zero value is not usable; construct one through Client.MemRegionClaim.
type MemRegion struct {
	c     *Client
	token manager.Token
	info  MemRegionInfo

	devicePath    string
	mappingOffset int64

	addr  uintptr
	unmap func() error
}

// Info returns the region's length and flags as reported at claim time.
func (m *MemRegion) Info() MemRegionInfo { return m.info }

// MemRegionClaim implements memregion.claim (spec.md §4.5): it resolves
// group/device/resource/instance to a specific memregion and records a
// ResourceRef for this process, but does not map it — call Map separately,
// or use ClaimAndMap for both in one step.
func (c *Client) MemRegionClaim(ctx context.Context, group, device, resource string, instance int, hostile bool) (*MemRegion, error) {
	req := controlproto.ClaimRequest{
		VersionCode: currentVersion,
		PID:         c.pid,
		Options:     controlproto.ClaimOptions{Hostile: hostile},
		ID:          idWire(group, device, resource, instance),
	}
	var resp controlproto.ClaimResponse
	if err := c.call(ctx, controlproto.CmdMemRegionClaim, req, &resp); err != nil {
		return nil, err
	}
	return &MemRegion{
		c:     c,
		token: resp.Token,
		info: MemRegionInfo{
			Len: resp.Len, PALen: resp.PALen, StartOffset: resp.StartOffset, Flags: resp.Flags,
		},
		devicePath:    resp.DevicePath,
		mappingOffset: resp.MappingOffset,
	}, nil
}

// MemRegionGetInfo implements memregion.get_info: it resolves a memregion
// and reports its flags/length without claiming it.
func (c *Client) MemRegionGetInfo(ctx context.Context, group, device, resource string, instance int) (MemRegionInfo, error) {
	req := controlproto.GetInfoRequest{VersionCode: currentVersion, ID: idWire(group, device, resource, instance)}
	var resp controlproto.GetInfoResponse
	if err := c.call(ctx, controlproto.CmdMemRegionGetInfo, req, &resp); err != nil {
		return MemRegionInfo{}, err
	}
	return MemRegionInfo{Len: resp.Len, PALen: resp.PALen, StartOffset: resp.StartOffset, Flags: resp.Flags}, nil
}

// Map performs the real open+mmap of the region's device path, the step
// spec.md §4.7 places in the client process rather than the manager. If the
// region is already mapped it does nothing and returns the existing address
// with a nil error.
func (m *MemRegion) Map() (uintptr, error) {
	if m.unmap != nil {
		return m.addr, nil
	}
	length := m.info.PALen
	if length == 0 {
		length = m.info.Len
	}
	addr, unmap, err := platform.MapFile(m.devicePath, length, m.mappingOffset)
	if err != nil {
		return 0, err
	}
	m.addr, m.unmap = addr, unmap
	return addr, nil
}

// Addr returns the mapped address, or 0 if Map has not been called.
func (m *MemRegion) Addr() uintptr { return m.addr }

// Unmap tears down the mapping without releasing the claim. Calling it when
// the region is not mapped is a no-op.
func (m *MemRegion) Unmap() error {
	if m.unmap == nil {
		return nil
	}
	err := m.unmap()
	m.unmap, m.addr = nil, 0
	return err
}

// Release implements memregion.release: it drops this process's claim.
// Callers that mapped the region should Unmap first; Release does not do it
// for them, mirroring spec.md §4.7's Claim/Map/Unmap/Release as four
// separate steps.
func (m *MemRegion) Release(ctx context.Context) error {
	req := controlproto.ReleaseRequest{VersionCode: currentVersion, PID: m.c.pid, Token: m.token}
	var resp controlproto.ReleaseResponse
	return m.c.call(ctx, controlproto.CmdMemRegionRelease, req, &resp)
}

// ClaimAndMap combines MemRegionClaim and Map, releasing the claim again if
// the mapping step fails (spec.md §4.7's combined convenience call).
func (c *Client) ClaimAndMap(ctx context.Context, group, device, resource string, instance int, hostile bool) (*MemRegion, error) {
	m, err := c.MemRegionClaim(ctx, group, device, resource, instance, hostile)
	if err != nil {
		return nil, err
	}
	if _, err := m.Map(); err != nil {
		_ = m.Release(ctx)
		return nil, err
	}
	return m, nil
}

// UnmapAndRelease combines Unmap and Release, attempting the release even if
// Unmap fails, and reporting whichever error came first.
func (m *MemRegion) UnmapAndRelease(ctx context.Context) error {
	uerr := m.Unmap()
	rerr := m.Release(ctx)
	if uerr != nil {
		return uerr
	}
	return rerr
}

func idWire(group, device, resource string, instance int) controlproto.ResourceIDWire {
	return controlproto.ResourceIDWire{Group: group, Device: device, Resource: resource, Instance: instance}
}
