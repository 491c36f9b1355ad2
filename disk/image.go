package disk

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Create writes a zero-filled image of the given number of sectors if path
// does not exist yet. An existing image is left alone and reported as not
// created.
func Create(path string, sectors int) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("checking disk image: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("creating disk image: %w", err)
	}
	defer file.Close()

	if err := file.Truncate(int64(sectors) * sectorSize); err != nil {
		return false, fmt.Errorf("sizing disk image: %w", err)
	}
	return true, nil
}

// Boot copies the start of the image into mem, at most BootWords words or the
// length of mem, whichever is smaller. Short images load what they hold.
func Boot(path string, mem []uint16) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer file.Close()

	limit := min(BootWords, len(mem))
	r := bufio.NewReader(io.LimitReader(file, int64(limit)*wordSize))
	scratch := make([]byte, wordSize)

	n := 0
	for n < limit {
		if _, err := io.ReadFull(r, scratch); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return n, fmt.Errorf("reading boot region: %w", err)
		}
		mem[n] = binary.LittleEndian.Uint16(scratch)
		n++
	}
	return n, nil
}

// Sectors returns the number of whole sectors stored in the image.
func Sectors(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return int(info.Size() / sectorSize), nil
}

// Fill writes sectors consecutive sectors of the given word to w.
func Fill(w io.Writer, sectors int, value uint16) error {
	sector := make([]uint16, SectorSize)
	for i := range sector {
		sector[i] = value
	}
	for range sectors {
		if err := binary.Write(w, binary.LittleEndian, sector); err != nil {
			return err
		}
	}
	return nil
}
