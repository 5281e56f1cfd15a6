// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gpt

import (
	"fmt"

	"go.uber.org/zap"
)

// SectorsPerMiB is the number of 512-byte sectors in a mebibyte.
const SectorsPerMiB = 1024 * 1024 / DefaultSectorSize

type resizeKind uint8

const (
	resizeBySectors resizeKind = iota
	resizeToEndLBA
)

// ResizeOperation specifies the new size of a single partition.
//
// It is a tagged variant over a new size in sectors or a new (inclusive) end
// LBA; the unit helpers convert to the sectors variant at 512 bytes/sector.
type ResizeOperation struct {
	value uint64
	kind  resizeKind
}

// ResizeToSectors resizes the partition to the given number of sectors.
func ResizeToSectors(sectors uint64) ResizeOperation {
	return ResizeOperation{value: sectors, kind: resizeBySectors}
}

// ResizeToEndLBA moves the partition's inclusive end to the given LBA.
func ResizeToEndLBA(lba uint64) ResizeOperation {
	return ResizeOperation{value: lba, kind: resizeToEndLBA}
}

// ResizeToMiB resizes the partition to the given number of mebibytes.
func ResizeToMiB(mib uint64) ResizeOperation {
	return ResizeToSectors(mib * SectorsPerMiB)
}

// ResizeToGiB resizes the partition to the given number of gibibytes.
func ResizeToGiB(gib uint64) ResizeOperation {
	return ResizeToMiB(gib * 1024)
}

// ResizeConstraints bundle the validation policy for a resize.
type ResizeConstraints struct {
	// AllowShrink permits results smaller than the current size.
	AllowShrink bool

	// AllowMove is reserved; the starting LBA never moves.
	AllowMove bool

	// MinSizeSectors rejects results smaller than this (default 1).
	MinSizeSectors uint64

	// AlignmentSectors requires (new end + 1) to be a multiple of this (default 1).
	AlignmentSectors uint64
}

// DefaultResizeConstraints returns the default constraints: no shrinking, no
// moving, minimum one sector, no alignment requirement.
func DefaultResizeConstraints() ResizeConstraints {
	return ResizeConstraints{
		MinSizeSectors:   1,
		AlignmentSectors: 1,
	}
}

// Resize changes the end LBA of the partition at the given slot and commits
// the table.
//
// All validation happens before any on-disk write; a validation failure
// leaves both the context and the disk untouched.
func (t *Table) Resize(n int, op ResizeOperation, constraints ResizeConstraints) error {
	if t.primary == nil || !t.entriesLoaded {
		return ErrInvalidState
	}

	entry, err := t.GetPartition(n)
	if err != nil {
		return err
	}

	start, curEnd := entry.FirstLBA, entry.LastLBA
	curSize := entry.Length()

	var newEnd uint64

	switch op.kind {
	case resizeBySectors:
		if op.value == 0 {
			return fmt.Errorf("%w: zero sectors", ErrInvalidSize)
		}

		newEnd = start + op.value - 1
	case resizeToEndLBA:
		newEnd = op.value
	}

	if newEnd < start {
		return fmt.Errorf("%w: end LBA %d before start LBA %d", ErrInvalidSize, newEnd, start)
	}

	newSize := newEnd - start + 1

	minSize := constraints.MinSizeSectors
	if minSize == 0 {
		minSize = 1
	}

	if newSize < minSize {
		return fmt.Errorf("%w: %d sectors, minimum %d", ErrInvalidSize, newSize, minSize)
	}

	if !constraints.AllowShrink && newSize < curSize {
		return fmt.Errorf("%w: %d sectors, currently %d", ErrWouldShrink, newSize, curSize)
	}

	if align := constraints.AlignmentSectors; align > 1 && (newEnd+1)%align != 0 {
		return fmt.Errorf("%w: end LBA %d is not %d-sector aligned", ErrAlignment, newEnd, align)
	}

	if newEnd > t.primary.LastUsableLBA {
		return fmt.Errorf("%w: end LBA %d beyond last usable LBA %d", ErrNotEnoughSpace, newEnd, t.primary.LastUsableLBA)
	}

	for i, other := range t.entries {
		if i == n || other == nil {
			continue
		}

		// closed intervals intersect unless one ends before the other begins
		if !(newEnd < other.FirstLBA || start > other.LastLBA) {
			return fmt.Errorf("%w: %d..%d intersects slot %d (%d..%d)",
				ErrOverlapDetected, start, newEnd, i, other.FirstLBA, other.LastLBA)
		}
	}

	entry.LastLBA = newEnd

	t.logger.Debug("resizing partition",
		zap.Int("slot", n),
		zap.Uint64("start_lba", start),
		zap.Uint64("old_end_lba", curEnd),
		zap.Uint64("new_end_lba", newEnd),
	)

	return t.Save()
}

// MaxSize returns the largest size in sectors the partition can grow to
// without moving: up to the next partition's start, or the end of the usable
// range if no partition follows.
func (t *Table) MaxSize(n int) (uint64, error) {
	if t.primary == nil || !t.entriesLoaded {
		return 0, ErrInvalidState
	}

	entry, err := t.GetPartition(n)
	if err != nil {
		return 0, err
	}

	return t.nextStartAfter(n, entry) - entry.FirstLBA, nil
}

// ResizeToMax grows the partition to its maximum contiguous size with default
// constraints.
func (t *Table) ResizeToMax(n int) error {
	size, err := t.MaxSize(n)
	if err != nil {
		return err
	}

	if size == 0 {
		return fmt.Errorf("%w: no room to grow slot %d", ErrNotEnoughSpace, n)
	}

	return t.Resize(n, ResizeToSectors(size), DefaultResizeConstraints())
}
