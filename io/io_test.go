package io

import "testing"

type recorder struct {
	lastIn  uint8
	lastOut uint8
}

func (r *recorder) In(port uint8) uint8 {
	r.lastIn = port
	return 0x5A
}
func (r *recorder) Out(port uint8, val uint8) { r.lastOut = val }

func TestRegisterAndDispatch(t *testing.T) {
	tbl := NewTable()
	dev := &recorder{}
	info := &IoInfo{Name: "sio", Base: 0x10, Span: 8, Handler: dev}
	if err := tbl.Register(info); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := tbl.In(0x12); got != 0x5A {
		t.Errorf("In(0x12) = 0x%02x, want 0x5A", got)
	}
	tbl.Out(0x13, 0x7E)
	if dev.lastOut != 0x7E {
		t.Errorf("Out did not reach handler: lastOut = 0x%02x", dev.lastOut)
	}
}

func TestUnboundPortUsesNullDevice(t *testing.T) {
	tbl := NewTable()
	if got := tbl.In(0xAA); got != 0xFF {
		t.Errorf("unbound In = 0x%02x, want 0xFF", got)
	}
}

func TestOverlappingRegistrationIsConfigError(t *testing.T) {
	tbl := NewTable()
	a := &IoInfo{Name: "a", Base: 0x10, Span: 4, Handler: &recorder{}}
	b := &IoInfo{Name: "b", Base: 0x12, Span: 4, Handler: &recorder{}}
	if err := tbl.Register(a); err != nil {
		t.Fatalf("Register(a): %v", err)
	}
	if err := tbl.Register(b); err == nil {
		t.Fatal("Register(b) over overlapping range succeeded, want ConfigError")
	}
}

func TestRegistrationIsIdempotent(t *testing.T) {
	tbl := NewTable()
	a := &IoInfo{Name: "a", Base: 0x10, Span: 4, Handler: &recorder{}}
	if err := tbl.Register(a); err != nil {
		t.Fatalf("Register(a) first: %v", err)
	}
	if err := tbl.Register(a); err != nil {
		t.Fatalf("Register(a) second (idempotent): %v", err)
	}
}

func TestDeregisterRemovesOnlyOwnEntries(t *testing.T) {
	tbl := NewTable()
	a := &IoInfo{Name: "a", Base: 0x10, Span: 4, Handler: &recorder{}}
	if err := tbl.Register(a); err != nil {
		t.Fatalf("Register: %v", err)
	}
	tbl.Deregister(a)
	if got := tbl.In(0x11); got != 0xFF {
		t.Errorf("In after Deregister = 0x%02x, want 0xFF (null device)", got)
	}
}
