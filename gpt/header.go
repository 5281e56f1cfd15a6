// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gpt

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/siderolabs/go-gptresize/internal/gptstructs"
	"github.com/siderolabs/go-gptresize/internal/gptutil"
)

// Header is the decoded GPT header.
type Header struct {
	Revision        uint32
	Size            uint32
	Checksum        uint32
	CurrentLBA      uint64
	BackupLBA       uint64
	FirstUsableLBA  uint64
	LastUsableLBA   uint64
	DiskGUID        uuid.UUID
	EntriesLBA      uint64
	NumEntries      uint32
	EntrySize       uint32
	EntriesChecksum uint32
}

// decodeHeader validates and decodes a header sector.
//
// Validation order matters: the signature and checksum must verify before any
// other field is trusted.
func decodeHeader(buf []byte, expectedLBA, lastLBA uint64) (*Header, error) {
	hdr := gptstructs.Header(buf)

	if hdr.Get_signature() != gptstructs.HeaderSignature {
		return nil, fmt.Errorf("%w: LBA %d", ErrInvalidSignature, expectedLBA)
	}

	size := hdr.Get_header_size()
	if size < gptstructs.HEADER_SIZE || int(size) > len(buf) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHeaderSize, size)
	}

	if hdr.Get_header_crc32() != hdr.CalculateChecksum() {
		return nil, fmt.Errorf("%w: header at LBA %d", ErrInvalidChecksum, expectedLBA)
	}

	if hdr.Get_sizeof_partition_entry() != gptstructs.ENTRY_SIZE {
		return nil, fmt.Errorf("%w: partition entry size %d", ErrInvalidHeaderSize, hdr.Get_sizeof_partition_entry())
	}

	numEntries := hdr.Get_num_partition_entries()
	if numEntries == 0 || numEntries > gptstructs.NumEntries {
		return nil, fmt.Errorf("%w: %d partition entries", ErrInvalidHeaderSize, numEntries)
	}

	if hdr.Get_my_lba() != expectedLBA {
		return nil, fmt.Errorf("%w: my_lba %d, expected %d", ErrInvalidLBARange, hdr.Get_my_lba(), expectedLBA)
	}

	firstUsable := hdr.Get_first_usable_lba()
	lastUsable := hdr.Get_last_usable_lba()

	if lastUsable < firstUsable || firstUsable > lastLBA || lastUsable > lastLBA {
		return nil, fmt.Errorf("%w: usable range %d..%d, last LBA %d", ErrInvalidLBARange, firstUsable, lastUsable, lastLBA)
	}

	diskGUID, err := uuid.FromBytes(gptutil.GUIDToUUID(hdr.Get_disk_guid()))
	if err != nil {
		return nil, fmt.Errorf("invalid disk GUID: %w", err)
	}

	return &Header{
		Revision:        hdr.Get_revision(),
		Size:            size,
		Checksum:        hdr.Get_header_crc32(),
		CurrentLBA:      hdr.Get_my_lba(),
		BackupLBA:       hdr.Get_alternate_lba(),
		FirstUsableLBA:  firstUsable,
		LastUsableLBA:   lastUsable,
		DiskGUID:        diskGUID,
		EntriesLBA:      hdr.Get_partition_entries_lba(),
		NumEntries:      numEntries,
		EntrySize:       hdr.Get_sizeof_partition_entry(),
		EntriesChecksum: hdr.Get_partition_entry_array_crc32(),
	}, nil
}

// encode serializes the header into a whole zero-padded sector, computing the
// header checksum last.
func (h *Header) encode(sectorSize uint) gptstructs.Header {
	buf := gptstructs.Header(make([]byte, sectorSize))

	buf.Put_signature(gptstructs.HeaderSignature)
	buf.Put_revision(h.Revision)
	buf.Put_header_size(h.Size)
	buf.Put_my_lba(h.CurrentLBA)
	buf.Put_alternate_lba(h.BackupLBA)
	buf.Put_first_usable_lba(h.FirstUsableLBA)
	buf.Put_last_usable_lba(h.LastUsableLBA)
	buf.Put_disk_guid(gptutil.UUIDToGUID(h.DiskGUID[:]))
	buf.Put_partition_entries_lba(h.EntriesLBA)
	buf.Put_num_partition_entries(h.NumEntries)
	buf.Put_sizeof_partition_entry(h.EntrySize)
	buf.Put_partition_entry_array_crc32(h.EntriesChecksum)

	h.Checksum = buf.CalculateChecksum()
	buf.Put_header_crc32(h.Checksum)

	return buf
}
