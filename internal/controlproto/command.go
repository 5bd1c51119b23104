// Package controlproto implements the control channel of spec.md §4.5: the
// command set, its per-command wire request/response records, version
// negotiation, and the opaque token type reused from internal/manager. Each
// command is a distinct record type rather than one giant variant struct,
// the way internal/runtime/remote.Envelope carries a typed payload behind a
// single message-type tag instead of a union of every possible field.
package controlproto

import (
	"github.com/cuddl-go/cuddl/internal/manager"
	"github.com/cuddl-go/cuddl/internal/resourceid"
	"github.com/cuddl-go/cuddl/internal/version"
)

// Command tags which request/response pair a frame carries.
type Command uint8

const (
	CmdMemRegionClaim Command = iota + 1
	CmdMemRegionGetInfo
	CmdMemRegionRelease
	CmdMemRegionGetRefCount
	CmdMemRegionDecrementRef
	CmdMemRegionGetIDForSlot
	CmdEventSrcClaim
	CmdEventSrcGetInfo
	CmdEventSrcRelease
	CmdEventSrcGetRefCount
	CmdEventSrcDecrementRef
	CmdEventSrcGetIDForSlot
	CmdEventSrcIsEnabled
	CmdLimitsMaxDevices
	CmdLimitsMaxMem
	CmdLimitsMaxEvents
	CmdDriverInfoForSlot
	CmdHWInfoForSlot
	CmdVersionCode
	CmdVersionVariant
	CmdVersionCommit
)

func (c Command) String() string {
	switch c {
	case CmdMemRegionClaim:
		return "memregion.claim"
	case CmdMemRegionGetInfo:
		return "memregion.get_info"
	case CmdMemRegionRelease:
		return "memregion.release"
	case CmdMemRegionGetRefCount:
		return "memregion.get_ref_count"
	case CmdMemRegionDecrementRef:
		return "memregion.decrement_ref"
	case CmdMemRegionGetIDForSlot:
		return "memregion.get_id_for_slot"
	case CmdEventSrcClaim:
		return "eventsrc.claim"
	case CmdEventSrcGetInfo:
		return "eventsrc.get_info"
	case CmdEventSrcRelease:
		return "eventsrc.release"
	case CmdEventSrcGetRefCount:
		return "eventsrc.get_ref_count"
	case CmdEventSrcDecrementRef:
		return "eventsrc.decrement_ref"
	case CmdEventSrcGetIDForSlot:
		return "eventsrc.get_id_for_slot"
	case CmdEventSrcIsEnabled:
		return "eventsrc.is_enabled"
	case CmdLimitsMaxDevices:
		return "limits.max_devices"
	case CmdLimitsMaxMem:
		return "limits.max_mem"
	case CmdLimitsMaxEvents:
		return "limits.max_events"
	case CmdDriverInfoForSlot:
		return "driver_info.for_slot"
	case CmdHWInfoForSlot:
		return "hw_info.for_slot"
	case CmdVersionCode:
		return "version.code"
	case CmdVersionVariant:
		return "version.variant"
	case CmdVersionCommit:
		return "version.commit"
	default:
		return "unknown"
	}
}

// ResourceIDWire is resourceid.ID bounded to MaxStrLen on the wire (spec.md
// §6: "strings are fixed-size MAX_STR_LEN byte arrays, zero-padded" — here
// a plain Go string). The length ceiling is checked by validate, which only
// the claim handlers call; other commands accept longer strings unchecked.
type ResourceIDWire struct {
	Group    string `json:"group"`
	Device   string `json:"device"`
	Resource string `json:"resource"`
	Instance int    `json:"instance"`
}

func wireOfID(id resourceid.ID) ResourceIDWire {
	return ResourceIDWire{Group: id.Group, Device: id.Device, Resource: id.Resource, Instance: id.Instance}
}

func (w ResourceIDWire) toID() resourceid.ID {
	return resourceid.ID{Group: w.Group, Device: w.Device, Resource: w.Resource, Instance: w.Instance}
}

func (w ResourceIDWire) validate() error {
	for _, s := range []string{w.Group, w.Device, w.Resource} {
		if len(s) >= resourceid.MaxStrLen {
			return errTooLong
		}
	}
	return nil
}

// ClaimOptions is the claim command's options record, one bool field per
// option (spec.md §4.5: "claim options include HOSTILE").
type ClaimOptions struct {
	Hostile bool `json:"hostile"`
}

// ClaimRequest is shared by memregion.claim and eventsrc.claim.
type ClaimRequest struct {
	VersionCode version.Code   `json:"version_code"`
	PID         int32          `json:"pid"`
	Options     ClaimOptions   `json:"options"`
	ID          ResourceIDWire `json:"id"`
}

// ClaimResponse carries the mapping metadata spec.md §4.5 requires: token,
// length, exported flags, device path, and mapping offset.
type ClaimResponse struct {
	Token         manager.Token         `json:"token"`
	Len           uintptr               `json:"len"`
	PALen         uintptr               `json:"pa_len"`
	StartOffset   uintptr               `json:"start_offset"`
	Flags         manager.ResourceFlags `json:"flags"`
	DevicePath    string                `json:"device_path"`
	MappingOffset int64                 `json:"mapping_offset"`
}

// GetInfoRequest backs memregion.get_info / eventsrc.get_info.
type GetInfoRequest struct {
	VersionCode version.Code   `json:"version_code"`
	ID          ResourceIDWire `json:"id"`
}

// GetInfoResponse mirrors ClaimResponse minus the token: get_info never
// claims, so it never hands back something to release.
type GetInfoResponse struct {
	Len           uintptr               `json:"len"`
	PALen         uintptr               `json:"pa_len"`
	StartOffset   uintptr               `json:"start_offset"`
	Flags         manager.ResourceFlags `json:"flags"`
	DevicePath    string                `json:"device_path"`
	MappingOffset int64                 `json:"mapping_offset"`
}

// ReleaseRequest backs memregion.release / eventsrc.release.
type ReleaseRequest struct {
	VersionCode version.Code `json:"version_code"`
	PID         int32        `json:"pid"`
	Token       manager.Token `json:"token"`
}

// ReleaseResponse carries no fields beyond success; present for symmetry
// with every other command pair.
type ReleaseResponse struct{}

// GetRefCountRequest backs memregion.get_ref_count / eventsrc.get_ref_count.
type GetRefCountRequest struct {
	VersionCode version.Code   `json:"version_code"`
	ID          ResourceIDWire `json:"id"`
}

type GetRefCountResponse struct {
	Count int `json:"count"`
}

// DecrementRefRequest backs memregion.decrement_ref / eventsrc.decrement_ref,
// the emergency/recovery-tool decrement of spec.md §4.2's "hostile" note.
type DecrementRefRequest struct {
	VersionCode version.Code   `json:"version_code"`
	ID          ResourceIDWire `json:"id"`
}

type DecrementRefResponse struct {
	NewCount int `json:"new_count"`
}

// GetIDForSlotRequest backs memregion.get_id_for_slot / eventsrc.get_id_for_slot.
type GetIDForSlotRequest struct {
	VersionCode  version.Code `json:"version_code"`
	DeviceSlot   int          `json:"device_slot"`
	ResourceSlot int          `json:"resource_slot"`
}

type GetIDForSlotResponse struct {
	ID ResourceIDWire `json:"id"`
}

// IsEnabledRequest backs eventsrc.is_enabled.
type IsEnabledRequest struct {
	VersionCode version.Code  `json:"version_code"`
	Token       manager.Token `json:"token"`
}

type IsEnabledResponse struct {
	Enabled bool `json:"enabled"`
}

// LimitsRequest backs limits.max_devices / limits.max_mem / limits.max_events;
// it carries only the version prefix every request shares.
type LimitsRequest struct {
	VersionCode version.Code `json:"version_code"`
}

type LimitsResponse struct {
	Value int `json:"value"`
}

// StringForSlotRequest backs driver_info.for_slot / hw_info.for_slot.
type StringForSlotRequest struct {
	VersionCode version.Code `json:"version_code"`
	DeviceSlot  int          `json:"device_slot"`
}

type StringForSlotResponse struct {
	Value string `json:"value"`
}

// VersionRequest backs version.code / version.variant / version.commit.
type VersionRequest struct {
	VersionCode version.Code `json:"version_code"`
}

type VersionCodeResponse struct {
	Code version.Code `json:"code"`
}

type VersionVariantResponse struct {
	Variant string `json:"variant"`
}

type VersionCommitResponse struct {
	Commit string `json:"commit"`
}
