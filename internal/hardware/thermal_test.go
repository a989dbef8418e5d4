package hardware_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/micro-nova/piblinker-go/internal/hardware"
)

func TestReadCPUTemp(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	got, err := hardware.ReadCPUTemp(write("ok", "48312\n"))
	if err != nil {
		t.Fatalf("ReadCPUTemp() error = %v", err)
	}
	if got != 48.312 {
		t.Errorf("ReadCPUTemp() = %v, want 48.312", got)
	}

	if _, err := hardware.ReadCPUTemp(write("bad", "warm")); err == nil {
		t.Error("ReadCPUTemp(garbage): want error")
	}
	if _, err := hardware.ReadCPUTemp(filepath.Join(dir, "absent")); err == nil {
		t.Error("ReadCPUTemp(missing): want error")
	}
}
