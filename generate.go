package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bshepherdson/hex16/disk"
	"github.com/bshepherdson/hex16/hex16"
)

const (
	testProgramFile = "test_program.bin"
	testDiskFile    = "test_disk.bin"
	testDiskWord    = 0xABCD
)

// testProgram loads mem[0x0A] into R0, doubles it and halts.
var testProgram = []uint16{
	hex16.EncodeLOD(0, 0x0A),
	0x2001, // ADD R0, R0
	hex16.EncodeHLT(),
}

// generate writes the sample program and a one-sector disk image into dir.
func generate(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	program, err := os.Create(filepath.Join(dir, testProgramFile))
	if err != nil {
		return fmt.Errorf("creating test program: %w", err)
	}
	defer program.Close()
	if err := hex16.WriteImage(program, testProgram); err != nil {
		return err
	}
	if err := program.Close(); err != nil {
		return fmt.Errorf("closing test program: %w", err)
	}

	image, err := os.Create(filepath.Join(dir, testDiskFile))
	if err != nil {
		return fmt.Errorf("creating test disk: %w", err)
	}
	defer image.Close()
	if err := disk.Fill(image, 1, testDiskWord); err != nil {
		return fmt.Errorf("writing test disk: %w", err)
	}
	return image.Close()
}
