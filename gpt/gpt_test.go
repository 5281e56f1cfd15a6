// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gpt_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/go-gptresize/block"
	"github.com/siderolabs/go-gptresize/gpt"
)

const (
	MiB = 1024 * 1024

	sectorSize = 512
)

var (
	efiType   = uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")
	linuxType = uuid.MustParse("0FC63DAF-8483-4772-8E79-3D69D8477DE4")
	swapType  = uuid.MustParse("0657FD6D-A4AB-43C4-84E5-0933C84B4F4F")
)

type testPart struct {
	name     string
	typ      uuid.UUID
	firstLBA uint64
	sectors  uint64
}

// makeImage builds a disk image with partitions at exact LBAs and returns its path.
func makeImage(t *testing.T, size uint64, parts ...testPart) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "image.raw")

	f, err := os.Create(path)
	require.NoError(t, err)

	require.NoError(t, f.Truncate(int64(size)))

	dev, err := block.NewFromFile(f)
	require.NoError(t, err)

	table, err := gpt.New(dev, gpt.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	for _, p := range parts {
		_, _, err = table.AllocatePartition(p.sectors*sectorSize, p.name, p.typ,
			gpt.WithOffset(p.firstLBA*sectorSize))
		require.NoError(t, err)
	}

	require.NoError(t, table.Save())
	require.NoError(t, f.Close())

	return path
}

// openImage opens and loads the partition table from an image.
func openImage(t *testing.T, path string) *gpt.Table {
	t.Helper()

	dev, err := block.NewFromPath(path)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, dev.Close())
	})

	table, err := gpt.Open(dev, gpt.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	require.NoError(t, table.Load())

	return table
}

// corruptByte flips one byte of the image at the given offset.
func corruptByte(t *testing.T, path string, offset int64) {
	t.Helper()

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)

	buf := make([]byte, 1)
	_, err = f.ReadAt(buf, offset)
	require.NoError(t, err)

	buf[0] ^= 0xff

	_, err = f.WriteAt(buf, offset)
	require.NoError(t, err)

	require.NoError(t, f.Close())
}

// assertTableInvariants checks pairwise non-overlap and usable-range containment.
func assertTableInvariants(t *testing.T, table *gpt.Table) {
	t.Helper()

	hdr := table.Header()
	require.NotNil(t, hdr)

	parts := table.Partitions()

	for i, p := range parts {
		if p == nil {
			continue
		}

		assert.LessOrEqual(t, hdr.FirstUsableLBA, p.FirstLBA, "slot %d", i)
		assert.LessOrEqual(t, p.FirstLBA, p.LastLBA, "slot %d", i)
		assert.LessOrEqual(t, p.LastLBA, hdr.LastUsableLBA, "slot %d", i)

		for j, q := range parts {
			if j <= i || q == nil {
				continue
			}

			overlap := !(p.LastLBA < q.FirstLBA || p.FirstLBA > q.LastLBA)
			assert.False(t, overlap, "slots %d and %d overlap", i, j)
		}
	}
}

func TestLoadBasic(t *testing.T) {
	path := makeImage(t, 10*MiB,
		testPart{"EFI System", efiType, 34, 1024},
		testPart{"Linux filesystem", linuxType, 2048, 16384},
	)

	table := openImage(t, path)

	infos := table.ListPartitions()
	require.Len(t, infos, 2)

	require.NotNil(t, infos[0].Label)
	assert.Equal(t, "EFI System", *infos[0].Label)
	assert.EqualValues(t, 34, infos[0].FirstLBA)
	assert.EqualValues(t, 1057, infos[0].LastLBA)
	assert.EqualValues(t, 1024, infos[0].Sectors)
	assert.EqualValues(t, 1024*sectorSize, infos[0].Size)
	assert.Equal(t, efiType, infos[0].TypeGUID)

	require.NotNil(t, infos[1].Label)
	assert.Equal(t, "Linux filesystem", *infos[1].Label)
	assert.EqualValues(t, 2048, infos[1].FirstLBA)
	assert.EqualValues(t, 18431, infos[1].LastLBA)

	assertTableInvariants(t, table)
}

func TestLoadIdempotent(t *testing.T) {
	path := makeImage(t, 10*MiB,
		testPart{"EFI System", efiType, 34, 1024},
	)

	table := openImage(t, path)

	hdr := *table.Header()
	parts := table.Partitions()

	require.NoError(t, table.Load())

	assert.Equal(t, hdr, *table.Header())
	assert.Equal(t, parts, table.Partitions())
}

func TestBackupHeader(t *testing.T) {
	path := makeImage(t, 10*MiB,
		testPart{"EFI System", efiType, 34, 1024},
	)

	table := openImage(t, path)

	require.NoError(t, table.ReadBackupHeader())

	primary := table.Header()
	backup := table.BackupHeader()
	require.NotNil(t, backup)

	lastLBA := uint64(10*MiB/sectorSize - 1)

	assert.EqualValues(t, lastLBA, backup.CurrentLBA)
	assert.EqualValues(t, 1, backup.BackupLBA)
	assert.EqualValues(t, lastLBA, primary.BackupLBA)
	assert.Equal(t, primary.FirstUsableLBA, backup.FirstUsableLBA)
	assert.Equal(t, primary.LastUsableLBA, backup.LastUsableLBA)
	assert.Equal(t, primary.DiskGUID, backup.DiskGUID)
	assert.Equal(t, primary.EntriesChecksum, backup.EntriesChecksum)

	// the backup entry array copy sits just below the backup header
	assert.EqualValues(t, lastLBA-32, backup.EntriesLBA)
}

func TestCorruptedHeaderDetected(t *testing.T) {
	path := makeImage(t, 10*MiB,
		testPart{"EFI System", efiType, 34, 1024},
	)

	// offset 528 is inside the primary header's checksummed region
	corruptByte(t, path, 528)

	dev, err := block.NewFromPath(path)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, dev.Close()) })

	table, err := gpt.Open(dev)
	require.NoError(t, err)

	assert.ErrorIs(t, table.Load(), gpt.ErrInvalidChecksum)
}

func TestInvalidSignatureDetected(t *testing.T) {
	path := makeImage(t, 10*MiB,
		testPart{"EFI System", efiType, 34, 1024},
	)

	// first byte of the signature at LBA 1
	corruptByte(t, path, 512)

	dev, err := block.NewFromPath(path)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, dev.Close()) })

	table, err := gpt.Open(dev)
	require.NoError(t, err)

	assert.ErrorIs(t, table.Load(), gpt.ErrInvalidSignature)
}

func TestCorruptedEntriesDetected(t *testing.T) {
	path := makeImage(t, 10*MiB,
		testPart{"EFI System", efiType, 34, 1024},
	)

	// inside the first partition entry at LBA 2
	corruptByte(t, path, 2*sectorSize+32)

	dev, err := block.NewFromPath(path)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, dev.Close()) })

	table, err := gpt.Open(dev)
	require.NoError(t, err)

	assert.ErrorIs(t, table.Load(), gpt.ErrInvalidChecksum)
}

func TestFindPartitionByName(t *testing.T) {
	path := makeImage(t, 50*MiB,
		testPart{"EFI System", efiType, 34, 1024},
		testPart{"root", linuxType, 2048, 8192},
	)

	table := openImage(t, path)

	idx, entry := table.FindPartitionByName("root")
	require.NotNil(t, entry)
	assert.Equal(t, 1, idx)
	assert.EqualValues(t, 2048, entry.FirstLBA)

	idx, entry = table.FindPartitionByName("nope")
	assert.Nil(t, entry)
	assert.Equal(t, -1, idx)
}

func TestGetPartition(t *testing.T) {
	path := makeImage(t, 50*MiB,
		testPart{"EFI System", efiType, 34, 1024},
	)

	table := openImage(t, path)

	entry, err := table.GetPartition(0)
	require.NoError(t, err)
	assert.EqualValues(t, 1024, entry.Length())

	_, err = table.GetPartition(1)
	assert.ErrorIs(t, err, gpt.ErrPartitionNotFound)

	_, err = table.GetPartition(-1)
	assert.ErrorIs(t, err, gpt.ErrPartitionNotFound)

	_, err = table.GetPartition(300)
	assert.ErrorIs(t, err, gpt.ErrPartitionNotFound)

	info, err := table.GetPartitionInfo(0)
	require.NoError(t, err)
	require.NotNil(t, info.Label)
	assert.Equal(t, "EFI System", *info.Label)

	_, err = table.GetPartitionInfo(5)
	assert.ErrorIs(t, err, gpt.ErrPartitionNotFound)
}

func TestInvalidState(t *testing.T) {
	path := makeImage(t, 10*MiB,
		testPart{"EFI System", efiType, 34, 1024},
	)

	dev, err := block.NewFromPath(path)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, dev.Close()) })

	table, err := gpt.Open(dev)
	require.NoError(t, err)

	assert.ErrorIs(t, table.ReadBackupHeader(), gpt.ErrInvalidState)
	assert.ErrorIs(t, table.ReadEntries(), gpt.ErrInvalidState)
	assert.ErrorIs(t, table.Save(), gpt.ErrInvalidState)

	_, err = table.GetPartition(0)
	assert.ErrorIs(t, err, gpt.ErrInvalidState)

	err = table.Resize(0, gpt.ResizeToSectors(1), gpt.DefaultResizeConstraints())
	assert.ErrorIs(t, err, gpt.ErrInvalidState)
}

func TestDeviceTooSmall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.raw")

	f, err := os.Create(path)
	require.NoError(t, err)

	require.NoError(t, f.Truncate(16*sectorSize))

	t.Cleanup(func() { assert.NoError(t, f.Close()) })

	dev, err := block.NewFromFile(f)
	require.NoError(t, err)

	_, err = gpt.Open(dev)
	assert.Error(t, err)

	_, err = gpt.New(dev)
	assert.Error(t, err)
}

func TestNameRoundTrip(t *testing.T) {
	path := makeImage(t, 10*MiB,
		testPart{"données-α", linuxType, 2048, 2048},
	)

	table := openImage(t, path)

	idx, entry := table.FindPartitionByName("données-α")
	assert.Equal(t, 0, idx)
	require.NotNil(t, entry)
	assert.Equal(t, "données-α", entry.Name)
}

func TestAllocatePlacement(t *testing.T) {
	path := makeImage(t, 50*MiB,
		testPart{"root", linuxType, 2048, 8192},
	)

	table := openImage(t, path)

	// overlapping exact placement
	_, _, err := table.AllocatePartition(1024*sectorSize, "bad", linuxType,
		gpt.WithOffset(4096*sectorSize))
	assert.ErrorIs(t, err, gpt.ErrOverlapDetected)

	// outside the usable range
	_, _, err = table.AllocatePartition(1024*sectorSize, "bad", linuxType,
		gpt.WithOffset(4*sectorSize))
	assert.ErrorIs(t, err, gpt.ErrNotEnoughSpace)

	// automatic placement lands in the smallest fitting gap, aligned
	slot, part, err := table.AllocatePartition(1*MiB, "data", linuxType)
	require.NoError(t, err)

	assert.Equal(t, 1, slot)
	assert.EqualValues(t, 0, (part.FirstLBA)%2048)
	assert.EqualValues(t, 2048, part.Length())

	assertTableInvariants(t, table)
}

func TestSaveReloadCycle(t *testing.T) {
	path := makeImage(t, 50*MiB,
		testPart{"EFI System", efiType, 34, 1024},
		testPart{"root", linuxType, 2048, 8192},
	)

	table := openImage(t, path)

	parts := table.Partitions()

	require.NoError(t, table.Save())

	reloaded := openImage(t, path)
	assert.Equal(t, parts, reloaded.Partitions())

	require.NoError(t, reloaded.ReadBackupHeader())
}
