// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sparse

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"math"
	"os"
	"unsafe"
)

const (
	magicBytes    = "ALSOLVCG"
	layoutVersion = uint32(1)

	flagOrdered = uint32(1)
)

// fileHeader is the binary header.
type fileHeader struct {
	Magic      [8]byte
	Version    uint32
	Flags      uint32
	NumInput   uint32
	NumStates  uint32
	NumChoices uint32
	NumEdges   uint32
	MaxEnd     uint32
	MinEnd     uint32
}

// nativeLittleEndian selects the zero-copy path for slice I/O.
var nativeLittleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// WriteBinary serializes p to w.
//
// Layout: header, StateBounds, NondetBounds, Targets, Weights,
// InputToOutput, OutputToInput, ChoiceOrigin, then a CRC32 (IEEE) of all
// preceding bytes. All integers are little-endian.
func WriteBinary(w io.Writer, p *Partition) error {
	cw := &crc32Writer{w: w, hash: crc32.NewIEEE()}

	hdr := fileHeader{
		Version:    layoutVersion,
		NumInput:   uint32(len(p.InputToOutput)),
		NumStates:  uint32(p.NumStates()),
		NumChoices: uint32(p.NumChoices()),
		NumEdges:   uint32(p.NumEdges()),
		MaxEnd:     uint32(p.MaxEnd),
		MinEnd:     uint32(p.MinEnd),
	}
	if p.Ordered {
		hdr.Flags |= flagOrdered
	}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	blocks := []struct {
		name string
		data []int32
	}{
		{"StateBounds", p.StateBounds},
		{"NondetBounds", p.NondetBounds},
		{"Targets", p.Targets},
	}
	for _, b := range blocks {
		if err := writeInt32Slice(cw, b.data); err != nil {
			return fmt.Errorf("write %s: %w", b.name, err)
		}
	}
	if err := writeFloat64Slice(cw, p.Weights); err != nil {
		return fmt.Errorf("write Weights: %w", err)
	}
	if err := writeInt32Slice(cw, p.InputToOutput); err != nil {
		return fmt.Errorf("write InputToOutput: %w", err)
	}
	if err := writeInt32Slice(cw, p.OutputToInput); err != nil {
		return fmt.Errorf("write OutputToInput: %w", err)
	}
	if err := writeInt32Slice(cw, p.ChoiceOrigin); err != nil {
		return fmt.Errorf("write ChoiceOrigin: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, cw.hash.Sum32()); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}
	return nil
}

// ReadBinary deserializes a Partition written by WriteBinary and validates it.
func ReadBinary(r io.Reader) (*Partition, error) {
	cr := &crc32Reader{r: r, hash: crc32.NewIEEE()}

	var hdr fileHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, hdr.Magic)
	}
	if hdr.Version != layoutVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, hdr.Version)
	}
	for _, n := range []uint32{hdr.NumInput, hdr.NumStates, hdr.NumChoices, hdr.NumEdges} {
		if n >= math.MaxInt32 {
			return nil, &CapacityError{What: "entries", Need: int(n), Limit: math.MaxInt32 - 1}
		}
	}

	p := &Partition{
		Ordered: hdr.Flags&flagOrdered != 0,
		MaxEnd:  int(hdr.MaxEnd),
		MinEnd:  int(hdr.MinEnd),
	}
	var err error
	if p.StateBounds, err = readInt32Slice(cr, int(hdr.NumStates)+1); err != nil {
		return nil, fmt.Errorf("read StateBounds: %w", err)
	}
	if p.NondetBounds, err = readInt32Slice(cr, int(hdr.NumChoices)+1); err != nil {
		return nil, fmt.Errorf("read NondetBounds: %w", err)
	}
	if p.Targets, err = readInt32Slice(cr, int(hdr.NumEdges)); err != nil {
		return nil, fmt.Errorf("read Targets: %w", err)
	}
	if p.Weights, err = readFloat64Slice(cr, int(hdr.NumEdges)); err != nil {
		return nil, fmt.Errorf("read Weights: %w", err)
	}
	if p.InputToOutput, err = readInt32Slice(cr, int(hdr.NumInput)); err != nil {
		return nil, fmt.Errorf("read InputToOutput: %w", err)
	}
	if p.OutputToInput, err = readInt32Slice(cr, int(hdr.NumStates)); err != nil {
		return nil, fmt.Errorf("read OutputToInput: %w", err)
	}
	if p.ChoiceOrigin, err = readInt32Slice(cr, int(hdr.NumChoices)); err != nil {
		return nil, fmt.Errorf("read ChoiceOrigin: %w", err)
	}

	computed := cr.hash.Sum32()
	var stored uint32
	if err := binary.Read(r, binary.LittleEndian, &stored); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if stored != computed {
		return nil, fmt.Errorf("%w: stored=%08x computed=%08x", ErrChecksum, stored, computed)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// WriteFile writes p to path atomically via a temporary file and rename.
func WriteFile(path string, p *Partition) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // no-op after a successful rename
	}()

	if err := WriteBinary(f, p); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadFile reads a Partition from path.
func ReadFile(path string) (*Partition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return ReadBinary(f)
}

// Zero-copy slice I/O on little-endian hosts.

func writeInt32Slice(w io.Writer, s []int32) error {
	if len(s) == 0 {
		return nil
	}
	if !nativeLittleEndian {
		return binary.Write(w, binary.LittleEndian, s)
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeFloat64Slice(w io.Writer, s []float64) error {
	if len(s) == 0 {
		return nil
	}
	if !nativeLittleEndian {
		return binary.Write(w, binary.LittleEndian, s)
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func readInt32Slice(r io.Reader, n int) ([]int32, error) {
	s := make([]int32, n)
	if n == 0 {
		return s, nil
	}
	if !nativeLittleEndian {
		return s, binary.Read(r, binary.LittleEndian, s)
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readFloat64Slice(r io.Reader, n int) ([]float64, error) {
	s := make([]float64, n)
	if n == 0 {
		return s, nil
	}
	if !nativeLittleEndian {
		return s, binary.Read(r, binary.LittleEndian, s)
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

// CRC32 wrapping writers/readers.

type crc32Writer struct {
	w    io.Writer
	hash hash.Hash32
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash hash.Hash32
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
