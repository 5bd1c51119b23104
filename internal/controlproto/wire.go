package controlproto

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/cuddl-go/cuddl/internal/cuddlerr"
)

// maxFrameLen bounds a single wire frame; spec.md §6's "copy-in/copy-out
// failure or unreadable wire record" maps to TransportError, so a frame
// this large is treated as corrupt rather than read into memory.
const maxFrameLen = 1 << 20

// readMessage reads one length-prefixed frame: a 4-byte big-endian length
// followed by that many bytes.
func readMessage(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, cuddlerr.Wrap("transport.read", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameLen {
		return nil, cuddlerr.New("transport.read", cuddlerr.TransportError, "frame too large")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, cuddlerr.Wrap("transport.read", err)
	}
	return buf, nil
}

// writeMessage writes one length-prefixed frame.
func writeMessage(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return cuddlerr.Wrap("transport.write", err)
	}
	if _, err := w.Write(payload); err != nil {
		return cuddlerr.Wrap("transport.write", err)
	}
	return nil
}

// requestFrame is the envelope a client sends: a command tag plus its
// JSON-encoded typed request, mirroring internal/runtime/remote.Envelope's
// message-type-plus-payload shape.
type requestFrame struct {
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// responseFrame is the envelope a server returns: either a JSON-encoded
// typed response, or a non-empty Error on failure.
type responseFrame struct {
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

// wireError carries enough of cuddlerr.Error to reconstruct it client-side.
type wireError struct {
	Code   cuddlerr.Code `json:"code"`
	Op     string        `json:"op"`
	Detail string        `json:"detail"`
}

func toWireError(err error) *wireError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*cuddlerr.Error); ok {
		return &wireError{Code: ce.Code, Op: ce.Op, Detail: ce.Detail}
	}
	return &wireError{Code: cuddlerr.OsError, Op: "transport", Detail: err.Error()}
}

func (w *wireError) toError() error {
	if w == nil {
		return nil
	}
	return cuddlerr.New(w.Op, w.Code, w.Detail)
}

// sendRequest encodes and writes req under cmd, then reads and decodes the
// response into out (which may be nil for commands with no response body).
func sendRequest(w io.Writer, r io.Reader, cmd Command, req any, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return cuddlerr.Wrap("transport.encode", err)
	}
	frame, err := json.Marshal(requestFrame{Command: cmd, Payload: payload})
	if err != nil {
		return cuddlerr.Wrap("transport.encode", err)
	}
	if err := writeMessage(w, frame); err != nil {
		return err
	}

	raw, err := readMessage(r)
	if err != nil {
		return err
	}
	var resp responseFrame
	if err := json.Unmarshal(raw, &resp); err != nil {
		return cuddlerr.New("transport.decode", cuddlerr.TransportError, err.Error())
	}
	if resp.Error != nil {
		return resp.Error.toError()
	}
	if out == nil || len(resp.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Payload, out); err != nil {
		return cuddlerr.New("transport.decode", cuddlerr.TransportError, err.Error())
	}
	return nil
}
