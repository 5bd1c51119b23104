package version

import "testing"

func TestPackUnpack(t *testing.T) {
	c := Pack(1, 2, 3)
	if c.Major() != 1 || c.Minor() != 2 || c.Revision() != 3 {
		t.Fatalf("unpacked (%d, %d, %d), want (1, 2, 3)", c.Major(), c.Minor(), c.Revision())
	}
	if c.String() != "1.2.3" {
		t.Fatalf("String() = %q, want 1.2.3", c.String())
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		a, b Code
		want bool
	}{
		{Pack(1, 0, 0), Pack(1, 5, 2), true},
		{Pack(0, 9, 0), Pack(1, 0, 0), true},
		{Pack(1, 0, 0), Pack(0, 1, 0), true},
		{Pack(1, 0, 0), Pack(2, 0, 0), false},
		{Pack(0, 0, 0), Pack(2, 0, 0), false},
	}
	for _, tt := range tests {
		if got := Compatible(tt.a, tt.b); got != tt.want {
			t.Errorf("Compatible(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestConstraintAcceptsOwnMajor(t *testing.T) {
	c := Pack(1, 0, 0)
	constraint, err := c.Constraint()
	if err != nil {
		t.Fatal(err)
	}
	peer := Pack(1, 4, 0).semverOf()
	if !constraint.Check(peer) {
		t.Fatal("expected same-major peer version to satisfy the constraint")
	}
	other := Pack(2, 0, 0).semverOf()
	if constraint.Check(other) {
		t.Fatal("expected a different major version to fail the constraint")
	}
}
