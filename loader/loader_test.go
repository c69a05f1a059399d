package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/x86emu/x86emu/platform"
	"github.com/x86emu/x86emu/vm"
)

func newTestVM(t *testing.T) *vm.VM {
	t.Helper()
	mem := vm.NewMemory(64 * 1024)
	return vm.NewVM(mem, platform.New(1_000_000_000))
}

func TestLoadImageSetsEntryPoint(t *testing.T) {
	m := newTestVM(t)
	image := []byte{0x90, 0x90, 0x01, 0xD8} // NOP; NOP; ADD AX,BX

	if err := LoadImage(m, image, 0x7C00, 2); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if m.CPU.RIP != 2 {
		t.Errorf("RIP = %#x, want 2", m.CPU.RIP)
	}
	if m.CPU.Seg[vm.SegCS].Base != 0x7C00 {
		t.Errorf("CS base = %#x, want 0x7C00", m.CPU.Seg[vm.SegCS].Base)
	}
	b, err := m.Bus.ReadByte(0x7C00 + 2)
	if err != nil {
		t.Fatalf("ReadByte: %v", err)
	}
	if b != 0x01 {
		t.Errorf("byte at entry = %#x, want 0x01", b)
	}
}

func TestLoadImageRejectsEmptyImage(t *testing.T) {
	m := newTestVM(t)
	if err := LoadImage(m, nil, 0, 0); err == nil {
		t.Error("expected an error for an empty image")
	}
}

func TestLoadImageRejectsOutOfRangeEntry(t *testing.T) {
	m := newTestVM(t)
	if err := LoadImage(m, []byte{0x90}, 0, 5); err == nil {
		t.Error("expected an error for an entry offset past the image")
	}
}

func TestLoadImageFile(t *testing.T) {
	m := newTestVM(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")
	if err := os.WriteFile(path, []byte{0xF4}, 0o644); err != nil { // HLT
		t.Fatalf("WriteFile: %v", err)
	}

	if err := LoadImageFile(m, path, 0x1000, 0); err != nil {
		t.Fatalf("LoadImageFile: %v", err)
	}
	b, err := m.Bus.ReadByte(0x1000)
	if err != nil {
		t.Fatalf("ReadByte: %v", err)
	}
	if b != 0xF4 {
		t.Errorf("byte at base = %#x, want 0xF4", b)
	}
}
