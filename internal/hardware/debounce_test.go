package hardware_test

import (
	"testing"
	"time"

	"github.com/micro-nova/piblinker-go/internal/hardware"
)

func TestDebouncer_Window(t *testing.T) {
	now := time.Unix(0, 0)
	d := hardware.NewDebouncer(func() time.Time { return now })
	d.SetWindow(5, 300*time.Millisecond)

	tests := []struct {
		advance time.Duration
		want    bool
	}{
		{0, true},                       // first edge always accepted
		{100 * time.Millisecond, false}, // bounce
		{200 * time.Millisecond, false}, // exactly on the window edge
		{101 * time.Millisecond, true},  // 401ms after the accepted edge
		{299 * time.Millisecond, false},
		{2 * time.Millisecond, true},
	}
	for i, tc := range tests {
		now = now.Add(tc.advance)
		if got := d.Allow(5); got != tc.want {
			t.Errorf("step %d (+%v): Allow = %v, want %v", i, tc.advance, got, tc.want)
		}
	}
}

func TestDebouncer_PinsIndependent(t *testing.T) {
	now := time.Unix(0, 0)
	d := hardware.NewDebouncer(func() time.Time { return now })
	d.SetWindow(5, time.Second)
	d.SetWindow(6, time.Second)

	if !d.Allow(5) {
		t.Fatal("first edge on pin 5 rejected")
	}
	if !d.Allow(6) {
		t.Error("pin 6 should not be debounced by pin 5")
	}
	if d.Allow(5) {
		t.Error("second edge on pin 5 inside window accepted")
	}
}

func TestDebouncer_Forget(t *testing.T) {
	now := time.Unix(0, 0)
	d := hardware.NewDebouncer(func() time.Time { return now })
	d.SetWindow(5, time.Second)
	d.Allow(5)
	d.Forget(5)
	if !d.Allow(5) {
		t.Error("Allow after Forget = false, want true")
	}
}
