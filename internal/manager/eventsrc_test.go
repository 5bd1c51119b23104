package manager

import "testing"

func TestEventSrcEmpty(t *testing.T) {
	var e EventSrc
	e.Intr.IRQ = IRQNone
	if !e.Empty() {
		t.Fatal("expected IRQNone eventsrc to be Empty")
	}
	e.Intr.IRQ = IRQCustom
	if e.Empty() {
		t.Fatal("expected IRQCustom eventsrc to not be Empty")
	}
}

func TestEventSrcExportFlags(t *testing.T) {
	e := EventSrc{Flags: FlagShared}
	got := e.ExportFlags()
	if got&FlagWaitable == 0 {
		t.Error("expected FlagWaitable always set")
	}
	if got&FlagShared == 0 {
		t.Error("expected FlagShared carried through")
	}
	if got&FlagHasEnable != 0 || got&FlagHasDisable != 0 || got&FlagHasIsEnabled != 0 {
		t.Error("expected no HAS_* flags with no callbacks supplied")
	}

	e.Intr.Enable = func() {}
	e.Intr.Disable = func() {}
	e.Intr.IsEnabled = func() bool { return true }
	got = e.ExportFlags()
	if got&FlagHasEnable == 0 || got&FlagHasDisable == 0 || got&FlagHasIsEnabled == 0 {
		t.Error("expected all HAS_* flags set once callbacks supplied")
	}
}

func TestEventSrcIsEnabled(t *testing.T) {
	e := EventSrc{}
	if e.IsEnabled() {
		t.Fatal("expected false with no is-enabled callback")
	}
	e.Intr.IsEnabled = func() bool { return true }
	if !e.IsEnabled() {
		t.Fatal("expected true once callback reports true")
	}
}

func TestEventSrcClaimExclusiveAndHostile(t *testing.T) {
	e := &EventSrc{}
	if err := e.Claim(false); err != nil {
		t.Fatal(err)
	}
	if err := e.Claim(false); err == nil {
		t.Fatal("expected exclusive second claim to fail")
	}
	if err := e.Claim(true); err != nil {
		t.Fatalf("hostile claim should succeed: %v", err)
	}
}
