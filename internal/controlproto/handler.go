package controlproto

import (
	"github.com/cuddl-go/cuddl/internal/cuddlerr"
	"github.com/cuddl-go/cuddl/internal/klog"
	"github.com/cuddl-go/cuddl/internal/manager"
	"github.com/cuddl-go/cuddl/internal/platform"
	"github.com/cuddl-go/cuddl/internal/resourceid"
	"github.com/cuddl-go/cuddl/internal/version"
)

var errTooLong = cuddlerr.New("resource_id", cuddlerr.Invalid, "field exceeds MAX_STR_LEN")
var errUnknownCommand = cuddlerr.New("dispatch", cuddlerr.Invalid, "unknown command")
var errBadPayload = cuddlerr.New("dispatch", cuddlerr.TransportError, "malformed request payload")

// Handler implements every command in the table of spec.md §4.5 against one
// registry and one platform back-end. It holds no per-connection state:
// janitor registration lives in internal/janitor, not here.
type Handler struct {
	Registry *manager.Registry
	Backend  platform.Backend
}

// New builds a Handler bound to reg and backend.
func New(reg *manager.Registry, backend platform.Backend) *Handler {
	return &Handler{Registry: reg, Backend: backend}
}

// checkVersion implements spec.md §4.5's shared version-negotiation rule:
// every request's major version must be compatible with this build's.
func checkVersion(v version.Code) error {
	if !version.Compatible(version.Current, v) {
		return cuddlerr.New("version_check", cuddlerr.VersionMismatch, v.String())
	}
	return nil
}

func (h *Handler) MemRegionClaim(req ClaimRequest) (ClaimResponse, error) {
	return h.claim(req, resourceid.KindMemRegion)
}

func (h *Handler) EventSrcClaim(req ClaimRequest) (ClaimResponse, error) {
	return h.claim(req, resourceid.KindEventSrc)
}

func (h *Handler) claim(req ClaimRequest, kind resourceid.Kind) (ClaimResponse, error) {
	if err := checkVersion(req.VersionCode); err != nil {
		return ClaimResponse{}, err
	}
	if err := req.ID.validate(); err != nil {
		return ClaimResponse{}, err
	}
	id := req.ID.toID()
	tok, dev, _, resSlot, err := h.Registry.ClaimResource(id.Group, id.Device, id.Resource, id.Instance, kind, req.Options.Hostile, req.PID)
	if err != nil {
		return ClaimResponse{}, err
	}

	switch kind {
	case resourceid.KindMemRegion:
		rec := &dev.Mem[resSlot]
		return ClaimResponse{
			Token:         tok,
			Len:           rec.Len,
			PALen:         rec.PALen,
			StartOffset:   rec.StartOffset,
			Flags:         rec.Flags,
			DevicePath:    h.Backend.PathForRegion(dev, resSlot),
			MappingOffset: h.Backend.MmapOffset(resSlot),
		}, nil
	default:
		rec := &dev.Events[resSlot]
		path := h.Backend.PathForEvent(dev)
		waker, werr := h.Backend.OpenEventChannel(dev, path)
		if werr != nil {
			_, _ = h.Registry.ReleaseResource(tok, kind, req.PID)
			return ClaimResponse{}, cuddlerr.Wrap("eventsrc.claim", werr)
		}
		rec.Waker = waker
		return ClaimResponse{
			Token:      tok,
			Flags:      rec.ExportFlags(),
			DevicePath: path,
		}, nil
	}
}

func (h *Handler) MemRegionGetInfo(req GetInfoRequest) (GetInfoResponse, error) {
	return h.getInfo(req, resourceid.KindMemRegion)
}

func (h *Handler) EventSrcGetInfo(req GetInfoRequest) (GetInfoResponse, error) {
	return h.getInfo(req, resourceid.KindEventSrc)
}

func (h *Handler) getInfo(req GetInfoRequest, kind resourceid.Kind) (GetInfoResponse, error) {
	if err := checkVersion(req.VersionCode); err != nil {
		return GetInfoResponse{}, err
	}
	id := req.ID.toID()
	dev, info, err := h.Registry.GetInfo(id.Group, id.Device, id.Resource, id.Instance, kind)
	if err != nil {
		return GetInfoResponse{}, err
	}
	if kind == resourceid.KindMemRegion {
		return GetInfoResponse{
			Len:           info.Len,
			PALen:         info.PALen,
			StartOffset:   info.StartOffset,
			Flags:         info.Flags,
			DevicePath:    h.Backend.PathForRegion(dev, info.ResourceSlot),
			MappingOffset: h.Backend.MmapOffset(info.ResourceSlot),
		}, nil
	}
	return GetInfoResponse{
		Flags:      info.Flags,
		DevicePath: h.Backend.PathForEvent(dev),
	}, nil
}

func (h *Handler) MemRegionRelease(req ReleaseRequest) (ReleaseResponse, error) {
	return h.release(req, resourceid.KindMemRegion)
}

func (h *Handler) EventSrcRelease(req ReleaseRequest) (ReleaseResponse, error) {
	return h.release(req, resourceid.KindEventSrc)
}

func (h *Handler) release(req ReleaseRequest, kind resourceid.Kind) (ReleaseResponse, error) {
	if err := checkVersion(req.VersionCode); err != nil {
		return ReleaseResponse{}, err
	}
	// A regular release removes exactly one matching ref; if none matches,
	// the refcount is still decremented once and a warning is logged
	// (spec.md §4.6).
	matched, err := h.Registry.ReleaseResource(req.Token, kind, req.PID)
	if err != nil {
		return ReleaseResponse{}, err
	}
	if !matched {
		klog.Warn("controlproto: %s release of token %+v: no ref owned by pid %d", kind, req.Token, req.PID)
	}
	return ReleaseResponse{}, nil
}

func (h *Handler) MemRegionGetRefCount(req GetRefCountRequest) (GetRefCountResponse, error) {
	return h.getRefCount(req, resourceid.KindMemRegion)
}

func (h *Handler) EventSrcGetRefCount(req GetRefCountRequest) (GetRefCountResponse, error) {
	return h.getRefCount(req, resourceid.KindEventSrc)
}

func (h *Handler) getRefCount(req GetRefCountRequest, kind resourceid.Kind) (GetRefCountResponse, error) {
	if err := checkVersion(req.VersionCode); err != nil {
		return GetRefCountResponse{}, err
	}
	devSlot, resSlot, err := h.findSlot(req.ID, kind)
	if err != nil {
		return GetRefCountResponse{}, err
	}
	count, err := h.Registry.GetRefCount(devSlot, resSlot, kind)
	if err != nil {
		return GetRefCountResponse{}, err
	}
	return GetRefCountResponse{Count: count}, nil
}

func (h *Handler) MemRegionDecrementRef(req DecrementRefRequest) (DecrementRefResponse, error) {
	return h.decrementRef(req, resourceid.KindMemRegion)
}

func (h *Handler) EventSrcDecrementRef(req DecrementRefRequest) (DecrementRefResponse, error) {
	return h.decrementRef(req, resourceid.KindEventSrc)
}

func (h *Handler) decrementRef(req DecrementRefRequest, kind resourceid.Kind) (DecrementRefResponse, error) {
	if err := checkVersion(req.VersionCode); err != nil {
		return DecrementRefResponse{}, err
	}
	devSlot, resSlot, err := h.findSlot(req.ID, kind)
	if err != nil {
		return DecrementRefResponse{}, err
	}
	n, err := h.Registry.DecrementRef(devSlot, resSlot, kind)
	if err != nil {
		return DecrementRefResponse{}, err
	}
	return DecrementRefResponse{NewCount: n}, nil
}

// findSlot resolves a full resourceid to (device slot, resource slot) via
// the same matching rule a claim uses, for the commands that take an id
// rather than a slot pair directly.
func (h *Handler) findSlot(w ResourceIDWire, kind resourceid.Kind) (devSlot, resSlot int, err error) {
	id := w.toID()
	devSlot = resourceid.FindDeviceSlotMatching(h.Registry, id.Group, id.Device, id.Resource, id.Instance, kind, 0)
	if devSlot < 0 {
		return 0, 0, cuddlerr.New("find_slot", cuddlerr.NotFound, id.Resource)
	}
	dev := h.Registry.DeviceAt(devSlot)
	resSlot = dev.FindResourceSlot(id.Resource, kind)
	if resSlot < 0 {
		return 0, 0, cuddlerr.New("find_slot", cuddlerr.NotFound, id.Resource)
	}
	return devSlot, resSlot, nil
}

func (h *Handler) MemRegionGetIDForSlot(req GetIDForSlotRequest) (GetIDForSlotResponse, error) {
	return h.getIDForSlot(req, resourceid.KindMemRegion)
}

func (h *Handler) EventSrcGetIDForSlot(req GetIDForSlotRequest) (GetIDForSlotResponse, error) {
	return h.getIDForSlot(req, resourceid.KindEventSrc)
}

func (h *Handler) getIDForSlot(req GetIDForSlotRequest, kind resourceid.Kind) (GetIDForSlotResponse, error) {
	if err := checkVersion(req.VersionCode); err != nil {
		return GetIDForSlotResponse{}, err
	}
	id, err := h.Registry.GetIDForSlot(req.DeviceSlot, req.ResourceSlot, kind)
	if err != nil {
		return GetIDForSlotResponse{}, err
	}
	return GetIDForSlotResponse{ID: wireOfID(id)}, nil
}

// EventSrcIsEnabled reads the eventsrc's driver-reported enabled state. The
// token names the slot directly, so no matching lookup is needed.
func (h *Handler) EventSrcIsEnabled(req IsEnabledRequest) (IsEnabledResponse, error) {
	if err := checkVersion(req.VersionCode); err != nil {
		return IsEnabledResponse{}, err
	}
	dev := h.Registry.DeviceAt(int(req.Token.DeviceIndex))
	if dev == nil {
		return IsEnabledResponse{}, cuddlerr.New("eventsrc.is_enabled", cuddlerr.NotFound, "")
	}
	concrete, ok := dev.(*manager.Device)
	if !ok || int(req.Token.ResourceIndex) < 0 || int(req.Token.ResourceIndex) >= manager.MaxDevEvents {
		return IsEnabledResponse{}, cuddlerr.New("eventsrc.is_enabled", cuddlerr.Invalid, "")
	}
	return IsEnabledResponse{Enabled: concrete.Events[req.Token.ResourceIndex].IsEnabled()}, nil
}

func (h *Handler) LimitsMaxDevices(req LimitsRequest) (LimitsResponse, error) {
	if err := checkVersion(req.VersionCode); err != nil {
		return LimitsResponse{}, err
	}
	return LimitsResponse{Value: manager.MaxManagedDevices}, nil
}

func (h *Handler) LimitsMaxMem(req LimitsRequest) (LimitsResponse, error) {
	if err := checkVersion(req.VersionCode); err != nil {
		return LimitsResponse{}, err
	}
	return LimitsResponse{Value: manager.MaxDevMemRegions}, nil
}

func (h *Handler) LimitsMaxEvents(req LimitsRequest) (LimitsResponse, error) {
	if err := checkVersion(req.VersionCode); err != nil {
		return LimitsResponse{}, err
	}
	return LimitsResponse{Value: manager.MaxDevEvents}, nil
}

func (h *Handler) DriverInfoForSlot(req StringForSlotRequest) (StringForSlotResponse, error) {
	if err := checkVersion(req.VersionCode); err != nil {
		return StringForSlotResponse{}, err
	}
	v, err := h.Registry.DriverInfoForSlot(req.DeviceSlot)
	if err != nil {
		return StringForSlotResponse{}, err
	}
	return StringForSlotResponse{Value: v}, nil
}

func (h *Handler) HWInfoForSlot(req StringForSlotRequest) (StringForSlotResponse, error) {
	if err := checkVersion(req.VersionCode); err != nil {
		return StringForSlotResponse{}, err
	}
	v, err := h.Registry.HWInfoForSlot(req.DeviceSlot)
	if err != nil {
		return StringForSlotResponse{}, err
	}
	return StringForSlotResponse{Value: v}, nil
}

func (h *Handler) VersionCode(req VersionRequest) (VersionCodeResponse, error) {
	if err := checkVersion(req.VersionCode); err != nil {
		return VersionCodeResponse{}, err
	}
	return VersionCodeResponse{Code: version.Current}, nil
}

func (h *Handler) VersionVariant(req VersionRequest) (VersionVariantResponse, error) {
	if err := checkVersion(req.VersionCode); err != nil {
		return VersionVariantResponse{}, err
	}
	return VersionVariantResponse{Variant: version.Variant}, nil
}

func (h *Handler) VersionCommit(req VersionRequest) (VersionCommitResponse, error) {
	if err := checkVersion(req.VersionCode); err != nil {
		return VersionCommitResponse{}, err
	}
	return VersionCommitResponse{Commit: version.Commit}, nil
}
