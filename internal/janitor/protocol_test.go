package janitor

import "testing"

func TestEncodeDecodeRegister(t *testing.T) {
	payload, err := encodeRegister(4242)
	if err != nil {
		t.Fatal(err)
	}
	pid, err := decodeRegister(payload)
	if err != nil {
		t.Fatal(err)
	}
	if pid != 4242 {
		t.Fatalf("pid = %d, want 4242", pid)
	}
}

func TestDecodeRegisterMalformed(t *testing.T) {
	if _, err := decodeRegister([]byte("not json")); err == nil {
		t.Fatal("expected decode error for malformed payload")
	}
}
