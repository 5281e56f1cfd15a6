// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package gpt implements read, validation and resize support for GPT partition tables.
package gpt

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"slices"

	"github.com/google/uuid"
	"github.com/siderolabs/gen/xslices"
	"github.com/siderolabs/go-pointer"
	"go.uber.org/zap"

	"github.com/siderolabs/go-gptresize/internal/gptstructs"
	"github.com/siderolabs/go-gptresize/internal/gptutil"
	"github.com/siderolabs/go-gptresize/internal/ioutil"
)

// Device is an interface around the actual block device.
type Device interface {
	io.ReaderAt
	io.WriterAt

	GetSectorSize() uint
	GetSize() uint64
	GetIOSize() (uint, error)
	Sync() error
}

const primaryHeaderLBA = 1

// Table is a wrapper type around a GPT partition table.
//
// A Table is exclusively owned by its caller and is not safe for concurrent
// use; callers must serialize externally.
type Table struct {
	dev    Device
	logger *zap.Logger

	options Options

	primary *Header
	backup  *Header

	// partition entries are indexed with the raw slot index.
	//
	// if the slot is empty, its entry is `nil`.
	entries       []*Partition
	entriesLoaded bool

	lastLBA    uint64
	alignment  uint64
	sectorSize uint

	// fresh tables maintain the protective MBR on save; tables opened from
	// disk never touch LBA 0.
	fresh bool
}

// Open creates a table context over an existing partition table on the device.
//
// Nothing is read from the device until Load (or the granular Read* calls).
func Open(dev Device, opts ...Option) (*Table, error) {
	t, err := newTable(dev, opts)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// New creates a new (empty) partition table for a specified device.
func New(dev Device, opts ...Option) (*Table, error) {
	t, err := newTable(dev, opts)
	if err != nil {
		return nil, err
	}

	lbasForEntries := uint64((gptstructs.ENTRY_SIZE*gptstructs.NumEntries + t.sectorSize - 1) / t.sectorSize)

	entriesLBA := uint64(primaryHeaderLBA + 1)
	firstUsable := entriesLBA + lbasForEntries
	lastUsable := t.lastLBA - lbasForEntries - 1

	if lastUsable < firstUsable {
		return nil, errors.New("device too small for GPT")
	}

	diskGUID := t.options.DiskGUID
	if diskGUID == uuid.Nil {
		diskGUID = uuid.New()
	}

	t.primary = &Header{
		Revision:       0x00010000,
		Size:           gptstructs.HEADER_SIZE,
		CurrentLBA:     primaryHeaderLBA,
		BackupLBA:      t.lastLBA,
		FirstUsableLBA: firstUsable,
		LastUsableLBA:  lastUsable,
		DiskGUID:       diskGUID,
		EntriesLBA:     entriesLBA,
		NumEntries:     gptstructs.NumEntries,
		EntrySize:      gptstructs.ENTRY_SIZE,
	}

	t.entries = make([]*Partition, gptstructs.NumEntries)
	t.entriesLoaded = true
	t.fresh = true

	return t, nil
}

func newTable(dev Device, opts []Option) (*Table, error) {
	var options Options

	for _, opt := range opts {
		opt(&options)
	}

	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sectorSize := dev.GetSectorSize()
	if sectorSize != DefaultSectorSize {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSectorSize, sectorSize)
	}

	lastLBA, ok := gptutil.LastLBA(dev)
	if !ok {
		return nil, errors.New("failed to calculate last LBA (device too small?)")
	}

	if lastLBA < 33 {
		return nil, errors.New("device too small for GPT")
	}

	t := &Table{
		dev:        dev,
		logger:     logger,
		options:    options,
		lastLBA:    lastLBA,
		sectorSize: sectorSize,
	}

	ioSize, err := dev.GetIOSize()
	if err != nil {
		ioSize = sectorSize
	}

	alignmentSize := max(ioSize, 2048*DefaultSectorSize)
	t.alignment = uint64((alignmentSize + sectorSize - 1) / sectorSize)

	return t, nil
}

// DefaultSectorSize is the only sector size this table implementation supports.
const DefaultSectorSize = 512

// ReadPrimaryHeader reads and validates the primary header at LBA 1.
func (t *Table) ReadPrimaryHeader() error {
	hdr, err := t.readHeader(primaryHeaderLBA)
	if err != nil {
		return err
	}

	t.primary = hdr

	t.logger.Debug("read primary header",
		zap.Uint64("alternate_lba", hdr.BackupLBA),
		zap.Uint64("first_usable_lba", hdr.FirstUsableLBA),
		zap.Uint64("last_usable_lba", hdr.LastUsableLBA),
		zap.Stringer("disk_guid", hdr.DiskGUID),
	)

	return nil
}

// ReadBackupHeader reads and validates the backup header at the LBA the
// primary header points to.
func (t *Table) ReadBackupHeader() error {
	if t.primary == nil {
		return fmt.Errorf("%w: primary header", ErrInvalidState)
	}

	lba := t.primary.BackupLBA
	if lba <= primaryHeaderLBA || lba > t.lastLBA {
		return fmt.Errorf("%w: backup header LBA %d", ErrInvalidLBARange, lba)
	}

	hdr, err := t.readHeader(lba)
	if err != nil {
		return err
	}

	if hdr.BackupLBA != primaryHeaderLBA {
		return fmt.Errorf("%w: backup header alternate LBA %d", ErrInvalidLBARange, hdr.BackupLBA)
	}

	t.backup = hdr

	t.logger.Debug("read backup header", zap.Uint64("lba", lba))

	return nil
}

func (t *Table) readHeader(lba uint64) (*Header, error) {
	buf := make([]byte, t.sectorSize)

	if err := ioutil.ReadFullAt(t.dev, buf, int64(lba)*int64(t.sectorSize)); err != nil {
		return nil, err
	}

	return decodeHeader(buf, lba, t.lastLBA)
}

// ReadEntries reads the partition entry array referenced by the primary header
// and validates its checksum.
//
// Reading is a no-op if the entries are already loaded.
func (t *Table) ReadEntries() error {
	if t.primary == nil {
		return fmt.Errorf("%w: primary header", ErrInvalidState)
	}

	if t.entriesLoaded {
		return nil
	}

	entriesBuf := make([]byte, t.primary.NumEntries*t.primary.EntrySize)

	if err := ioutil.ReadFullAt(t.dev, entriesBuf, int64(t.primary.EntriesLBA)*int64(t.sectorSize)); err != nil {
		return err
	}

	if checksum := crc32.ChecksumIEEE(entriesBuf); checksum != t.primary.EntriesChecksum {
		return fmt.Errorf("%w: entry array checksum %08x, header says %08x", ErrInvalidChecksum, checksum, t.primary.EntriesChecksum)
	}

	entries := make([]*Partition, t.primary.NumEntries)

	for i := range entries {
		entry, err := decodeEntry(gptstructs.Entry(entriesBuf[i*gptstructs.ENTRY_SIZE : (i+1)*gptstructs.ENTRY_SIZE]))
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}

		entries[i] = entry
	}

	t.entries = entries
	t.entriesLoaded = true

	t.logger.Debug("read entry array", zap.Uint32("entries", t.primary.NumEntries))

	return nil
}

// Load reads the primary header and the partition entry array.
func (t *Table) Load() error {
	if err := t.ReadPrimaryHeader(); err != nil {
		return err
	}

	return t.ReadEntries()
}

// Save writes the entry array, the primary header, the backup copies and
// flushes the device.
//
// The write ordering is deliberate: entries first so that a crash before the
// header write leaves a header whose entry checksum no longer matches (and a
// load that fails loudly instead of trusting stale entries), headers last.
func (t *Table) Save() error {
	if t.primary == nil || !t.entriesLoaded {
		return ErrInvalidState
	}

	entriesBuf, err := t.encodeEntries()
	if err != nil {
		return err
	}

	t.primary.EntriesChecksum = crc32.ChecksumIEEE(entriesBuf[:t.primary.NumEntries*t.primary.EntrySize])

	if err = ioutil.WriteFullAt(t.dev, entriesBuf, int64(t.primary.EntriesLBA)*int64(t.sectorSize)); err != nil {
		return fmt.Errorf("failed to write primary entries: %w", err)
	}

	primaryBuf := t.primary.encode(t.sectorSize)

	if err = ioutil.WriteFullAt(t.dev, primaryBuf, int64(t.primary.CurrentLBA)*int64(t.sectorSize)); err != nil {
		return fmt.Errorf("failed to write primary header: %w", err)
	}

	// The backup header is synthesized from the primary: LBAs swapped, its own
	// entry array copy adjacent to it.
	entrySectors := uint64(len(entriesBuf)) / uint64(t.sectorSize)

	backup := *t.primary
	backup.CurrentLBA = t.primary.BackupLBA
	backup.BackupLBA = t.primary.CurrentLBA
	backup.EntriesLBA = backup.CurrentLBA - entrySectors

	if err = ioutil.WriteFullAt(t.dev, entriesBuf, int64(backup.EntriesLBA)*int64(t.sectorSize)); err != nil {
		return fmt.Errorf("failed to write backup entries: %w", err)
	}

	backupBuf := backup.encode(t.sectorSize)

	if err = ioutil.WriteFullAt(t.dev, backupBuf, int64(backup.CurrentLBA)*int64(t.sectorSize)); err != nil {
		return fmt.Errorf("failed to write backup header: %w", err)
	}

	t.backup = &backup

	if t.fresh && !t.options.SkipPMBR {
		if err = t.writePMBR(); err != nil {
			return err
		}
	}

	if err = t.dev.Sync(); err != nil {
		return fmt.Errorf("failed to sync device: %w", err)
	}

	t.logger.Debug("saved partition table",
		zap.Uint64("entries_lba", t.primary.EntriesLBA),
		zap.Uint64("backup_lba", backup.CurrentLBA),
	)

	return nil
}

// encodeEntries serializes the entry array into a zero-padded sector-aligned buffer.
func (t *Table) encodeEntries() ([]byte, error) {
	arrayLen := t.primary.NumEntries * t.primary.EntrySize
	paddedLen := (arrayLen + uint32(t.sectorSize) - 1) / uint32(t.sectorSize) * uint32(t.sectorSize)

	entriesBuf := make([]byte, paddedLen)

	for i, entry := range t.entries {
		if entry == nil {
			// zeroed entry
			continue
		}

		if err := entry.encodeEntry(gptstructs.Entry(entriesBuf[i*gptstructs.ENTRY_SIZE : (i+1)*gptstructs.ENTRY_SIZE])); err != nil {
			return nil, err
		}
	}

	return entriesBuf, nil
}

// GetPartition returns the partition at the given slot.
//
// Empty slots and out of range indexes fail with ErrPartitionNotFound.
func (t *Table) GetPartition(n int) (*Partition, error) {
	if !t.entriesLoaded {
		return nil, ErrInvalidState
	}

	if n < 0 || n >= len(t.entries) || t.entries[n] == nil {
		return nil, fmt.Errorf("%w: slot %d", ErrPartitionNotFound, n)
	}

	return t.entries[n], nil
}

// FindPartitionByName returns the slot index and entry of the first partition
// with the given name, or (-1, nil) if there is none.
func (t *Table) FindPartitionByName(name string) (int, *Partition) {
	for i, entry := range t.entries {
		if entry != nil && entry.Name == name {
			return i, entry
		}
	}

	return -1, nil
}

// Partitions returns the list of partition slots in the table.
//
// The returned list should not be modified; slots are zero-indexed and empty
// slots are nil.
func (t *Table) Partitions() []*Partition {
	return slices.Clone(t.entries)
}

// Header returns the loaded primary header, or nil.
func (t *Table) Header() *Header {
	return t.primary
}

// BackupHeader returns the loaded backup header, or nil.
func (t *Table) BackupHeader() *Header {
	return t.backup
}

// ListPartitions returns one PartitionInfo per non-empty slot, ordered by
// on-disk position.
func (t *Table) ListPartitions() []PartitionInfo {
	return xslices.Map(t.usedSpans(), func(s slotSpan) PartitionInfo {
		return t.partitionInfo(s.slot, t.entries[s.slot])
	})
}

// GetPartitionInfo returns the PartitionInfo for a single slot.
func (t *Table) GetPartitionInfo(n int) (*PartitionInfo, error) {
	entry, err := t.GetPartition(n)
	if err != nil {
		return nil, err
	}

	return pointer.To(t.partitionInfo(n, entry)), nil
}

func (t *Table) partitionInfo(n int, entry *Partition) PartitionInfo {
	return PartitionInfo{
		Index: n,

		TypeGUID: entry.TypeGUID,
		PartGUID: entry.PartGUID,

		FirstLBA: entry.FirstLBA,
		LastLBA:  entry.LastLBA,

		Sectors: entry.Length(),
		Size:    entry.Length() * uint64(t.sectorSize),

		Label: pointer.To(entry.Name),

		Attributes: entry.Flags,
	}
}
