package controlproto

import "encoding/json"

// Dispatch decodes payload according to cmd, invokes the matching Handler
// method, and encodes the result. It is the typed-command-dispatch table of
// spec.md §9's design note ("from ioctl switch to a typed command
// dispatch"), realized as a plain Go switch rather than a reflection-driven
// registry, matching the teacher's internal/debug/gdbserver command switch.
func (h *Handler) Dispatch(cmd Command, payload []byte) ([]byte, error) {
	switch cmd {
	case CmdMemRegionClaim:
		return dispatch(payload, h.MemRegionClaim)
	case CmdEventSrcClaim:
		return dispatch(payload, h.EventSrcClaim)
	case CmdMemRegionGetInfo:
		return dispatch(payload, h.MemRegionGetInfo)
	case CmdEventSrcGetInfo:
		return dispatch(payload, h.EventSrcGetInfo)
	case CmdMemRegionRelease:
		return dispatch(payload, h.MemRegionRelease)
	case CmdEventSrcRelease:
		return dispatch(payload, h.EventSrcRelease)
	case CmdMemRegionGetRefCount:
		return dispatch(payload, h.MemRegionGetRefCount)
	case CmdEventSrcGetRefCount:
		return dispatch(payload, h.EventSrcGetRefCount)
	case CmdMemRegionDecrementRef:
		return dispatch(payload, h.MemRegionDecrementRef)
	case CmdEventSrcDecrementRef:
		return dispatch(payload, h.EventSrcDecrementRef)
	case CmdMemRegionGetIDForSlot:
		return dispatch(payload, h.MemRegionGetIDForSlot)
	case CmdEventSrcGetIDForSlot:
		return dispatch(payload, h.EventSrcGetIDForSlot)
	case CmdEventSrcIsEnabled:
		return dispatch(payload, h.EventSrcIsEnabled)
	case CmdLimitsMaxDevices:
		return dispatch(payload, h.LimitsMaxDevices)
	case CmdLimitsMaxMem:
		return dispatch(payload, h.LimitsMaxMem)
	case CmdLimitsMaxEvents:
		return dispatch(payload, h.LimitsMaxEvents)
	case CmdDriverInfoForSlot:
		return dispatch(payload, h.DriverInfoForSlot)
	case CmdHWInfoForSlot:
		return dispatch(payload, h.HWInfoForSlot)
	case CmdVersionCode:
		return dispatch(payload, h.VersionCode)
	case CmdVersionVariant:
		return dispatch(payload, h.VersionVariant)
	case CmdVersionCommit:
		return dispatch(payload, h.VersionCommit)
	default:
		return nil, errUnknownCommand
	}
}

// dispatch decodes payload into the request type fn expects, invokes fn, and
// re-encodes its response. Generic over the per-command (Req, Resp) pair so
// Dispatch's switch stays one line per command instead of one block.
func dispatch[Req, Resp any](payload []byte, fn func(Req) (Resp, error)) ([]byte, error) {
	var req Req
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, errBadPayload
		}
	}
	resp, err := fn(req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}
