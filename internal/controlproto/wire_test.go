package controlproto

import (
	"bytes"
	"testing"

	"github.com/cuddl-go/cuddl/internal/cuddlerr"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"hello":"world"}`)
	if err := writeMessage(&buf, payload); err != nil {
		t.Fatal(err)
	}
	got, err := readMessage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("readMessage = %q, want %q", got, payload)
	}
}

func TestReadMessageRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	oversized := make([]byte, maxFrameLen+1)
	if err := writeMessage(&buf, oversized); err != nil {
		t.Fatal(err)
	}
	if _, err := readMessage(&buf); err == nil {
		t.Fatal("expected oversized frame to be rejected")
	}
}

func TestSendRequestFailsOnEmptyReader(t *testing.T) {
	var wire bytes.Buffer
	req := LimitsRequest{VersionCode: 1}

	if err := sendRequest(&wire, bytes.NewReader(nil), CmdLimitsMaxDevices, req, nil); err == nil {
		t.Fatal("expected read failure against an empty reader")
	}
}

func TestToWireErrorRoundTrip(t *testing.T) {
	original := cuddlerr.New("claim", cuddlerr.Busy, "ctrl")
	wire := toWireError(original)
	if wire.Code != cuddlerr.Busy || wire.Op != "claim" || wire.Detail != "ctrl" {
		t.Fatalf("unexpected wire error %+v", wire)
	}
	back := wire.toError()
	ce, ok := back.(*cuddlerr.Error)
	if !ok {
		t.Fatalf("expected *cuddlerr.Error, got %T", back)
	}
	if ce.Code != cuddlerr.Busy {
		t.Fatalf("Code = %v, want Busy", ce.Code)
	}
}

func TestToWireErrorNil(t *testing.T) {
	if toWireError(nil) != nil {
		t.Fatal("expected nil wire error for nil err")
	}
}
