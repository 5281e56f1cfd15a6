// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gpt

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

type allocatableRange struct {
	lowLBA  uint64
	highLBA uint64

	size uint64
}

type slotSpan struct {
	slot  int
	first uint64
	last  uint64
}

// usedSpans returns the non-empty slots ordered by starting LBA.
func (t *Table) usedSpans() []slotSpan {
	var spans []slotSpan

	for i, entry := range t.entries {
		if entry == nil {
			continue
		}

		spans = append(spans, slotSpan{slot: i, first: entry.FirstLBA, last: entry.LastLBA})
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].first < spans[j].first })

	return spans
}

// allocatableRanges returns the LBA ranges that are not allocated to any partition.
//
// Range start LBAs are aligned up to the table alignment.
func (t *Table) allocatableRanges() []allocatableRange {
	var ranges []allocatableRange

	lowLBA := t.primary.FirstUsableLBA

	spans := t.usedSpans()
	// sentinel just past the usable range
	spans = append(spans, slotSpan{first: t.primary.LastUsableLBA + 1})

	for _, span := range spans {
		aligned := (lowLBA + t.alignment - 1) / t.alignment * t.alignment

		if span.first > aligned {
			highLBA := span.first - 1

			ranges = append(ranges, allocatableRange{
				lowLBA:  aligned,
				highLBA: highLBA,
				size:    (highLBA - aligned + 1) * uint64(t.sectorSize),
			})
		}

		if span.last+1 > lowLBA {
			lowLBA = span.last + 1
		}
	}

	return ranges
}

// LargestContiguousAllocatable returns the size of the largest contiguous allocatable range.
func (t *Table) LargestContiguousAllocatable() uint64 {
	var largest uint64

	for _, r := range t.allocatableRanges() {
		if r.size > largest {
			largest = r.size
		}
	}

	return largest
}

// AllocatePartition adds a new partition to the table.
//
// Without WithOffset, the smallest fitting allocatable range is used. If
// successful, returns the slot index and the partition entry created. The
// table is not written until Save.
func (t *Table) AllocatePartition(size uint64, name string, partType uuid.UUID, opts ...PartitionOption) (int, Partition, error) {
	var options PartitionOptions

	for _, o := range opts {
		o(&options)
	}

	if t.primary == nil || !t.entriesLoaded {
		return 0, Partition{}, ErrInvalidState
	}

	if size < uint64(t.sectorSize) {
		return 0, Partition{}, fmt.Errorf("%w: %d bytes is smaller than a sector", ErrInvalidSize, size)
	}

	if options.UniqueGUID == uuid.Nil {
		options.UniqueGUID = uuid.New()
	}

	sectors := size / uint64(t.sectorSize)

	var start uint64

	if options.Offset != 0 {
		start = options.Offset / uint64(t.sectorSize)

		if err := t.checkPlacement(start, start+sectors-1); err != nil {
			return 0, Partition{}, err
		}
	} else {
		var smallestRange allocatableRange

		for _, r := range t.allocatableRanges() {
			if r.size >= size && (smallestRange.size == 0 || r.size < smallestRange.size) {
				smallestRange = r
			}
		}

		if smallestRange.size == 0 {
			return 0, Partition{}, fmt.Errorf("%w: no allocatable range of %d bytes", ErrNotEnoughSpace, size)
		}

		start = smallestRange.lowLBA
	}

	slot := -1

	for i, entry := range t.entries {
		if entry == nil {
			slot = i

			break
		}
	}

	if slot < 0 {
		return 0, Partition{}, ErrPartitionTableFull
	}

	entry := &Partition{
		Name:     name,
		TypeGUID: partType,
		PartGUID: options.UniqueGUID,
		FirstLBA: start,
		LastLBA:  start + sectors - 1,
		Flags:    options.Flags,
	}

	t.entries[slot] = entry

	return slot, *entry, nil
}

// checkPlacement verifies an exact-offset placement against the usable range
// and the existing entries.
func (t *Table) checkPlacement(first, last uint64) error {
	if first < t.primary.FirstUsableLBA || last > t.primary.LastUsableLBA {
		return fmt.Errorf("%w: %d..%d outside usable range %d..%d",
			ErrNotEnoughSpace, first, last, t.primary.FirstUsableLBA, t.primary.LastUsableLBA)
	}

	for i, entry := range t.entries {
		if entry == nil {
			continue
		}

		if last >= entry.FirstLBA && first <= entry.LastLBA {
			return fmt.Errorf("%w: %d..%d intersects slot %d", ErrOverlapDetected, first, last, i)
		}
	}

	return nil
}

// DeletePartition deletes a partition from the table.
func (t *Table) DeletePartition(n int) error {
	if !t.entriesLoaded {
		return ErrInvalidState
	}

	if n < 0 || n >= len(t.entries) {
		return fmt.Errorf("%w: slot %d", ErrPartitionNotFound, n)
	}

	t.entries[n] = nil

	return nil
}

// AvailablePartitionGrowth returns the number of bytes that can be added to the partition.
func (t *Table) AvailablePartitionGrowth(n int) (uint64, error) {
	entry, err := t.GetPartition(n)
	if err != nil {
		return 0, err
	}

	return (t.nextStartAfter(n, entry) - 1 - entry.LastLBA) * uint64(t.sectorSize), nil
}

// nextStartAfter returns the smallest starting LBA among the other non-empty
// entries past the partition's end, or one past the usable range.
func (t *Table) nextStartAfter(n int, entry *Partition) uint64 {
	nextStart := t.primary.LastUsableLBA + 1

	for i, other := range t.entries {
		if i == n || other == nil {
			continue
		}

		if other.FirstLBA > entry.LastLBA && other.FirstLBA < nextStart {
			nextStart = other.FirstLBA
		}
	}

	return nextStart
}
