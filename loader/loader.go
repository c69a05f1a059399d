// Package loader loads flat binary images into a VM's memory.
//
// Unlike the teacher's assembly-text loader, there is no assembler stage
// here: an image is just the raw bytes a BIOS or bootloader would have
// placed in RAM. LoadImage copies them in at a physical address and points
// the CPU at the entry point; LoadImageFile does the same from a path on
// disk.
package loader

import (
	"fmt"
	"os"

	"github.com/x86emu/x86emu/vm"
)

// MaxImageSize bounds how large a single flat image may be, guarding
// against accidentally loading something that isn't a raw binary.
const MaxImageSize = 16 * 1024 * 1024

// LoadImage copies image into machine's memory starting at physical address
// base, bootstraps the CPU with its CS base at base, then sets RIP to
// entryOffset so execution starts at image[entryOffset].
func LoadImage(machine *vm.VM, image []byte, base, entryOffset uint64) error {
	if len(image) == 0 {
		return fmt.Errorf("image is empty")
	}
	if len(image) > MaxImageSize {
		return fmt.Errorf("image too large: %d bytes (max %d)", len(image), MaxImageSize)
	}
	if entryOffset >= uint64(len(image)) {
		return fmt.Errorf("entry offset %#x is outside the %d-byte image", entryOffset, len(image))
	}

	for i, b := range image {
		if err := machine.Bus.WriteByte(base+uint64(i), b); err != nil {
			return fmt.Errorf("writing image byte at %#x: %w", base+uint64(i), err)
		}
	}

	machine.Bootstrap(base)
	machine.CPU.RIP = entryOffset
	return nil
}

// LoadImageFile reads path and loads it via LoadImage.
func LoadImageFile(machine *vm.VM, path string, base, entryOffset uint64) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading image %q: %w", path, err)
	}
	return LoadImage(machine, data, base, entryOffset)
}
