// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gptstructs_test

import (
	"encoding/binary"
	"hash/crc32"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/siderolabs/go-gptresize/internal/gptstructs"
)

func TestHeaderAccessors(t *testing.T) {
	hdr := gptstructs.Header(make([]byte, 512))

	hdr.Put_signature(gptstructs.HeaderSignature)
	hdr.Put_revision(0x00010000)
	hdr.Put_header_size(gptstructs.HEADER_SIZE)
	hdr.Put_my_lba(1)
	hdr.Put_alternate_lba(204799)
	hdr.Put_first_usable_lba(34)
	hdr.Put_last_usable_lba(204766)
	hdr.Put_partition_entries_lba(2)
	hdr.Put_num_partition_entries(128)
	hdr.Put_sizeof_partition_entry(128)
	hdr.Put_partition_entry_array_crc32(0xdeadbeef)

	// the signature is the ASCII bytes "EFI PART" read little-endian
	assert.Equal(t, []byte("EFI PART"), []byte(hdr[0:8]))

	assert.EqualValues(t, gptstructs.HeaderSignature, hdr.Get_signature())
	assert.EqualValues(t, 0x00010000, hdr.Get_revision())
	assert.EqualValues(t, 92, hdr.Get_header_size())
	assert.EqualValues(t, 1, hdr.Get_my_lba())
	assert.EqualValues(t, 204799, hdr.Get_alternate_lba())
	assert.EqualValues(t, 34, hdr.Get_first_usable_lba())
	assert.EqualValues(t, 204766, hdr.Get_last_usable_lba())
	assert.EqualValues(t, 2, hdr.Get_partition_entries_lba())
	assert.EqualValues(t, 128, hdr.Get_num_partition_entries())
	assert.EqualValues(t, 128, hdr.Get_sizeof_partition_entry())
	assert.EqualValues(t, 0xdeadbeef, hdr.Get_partition_entry_array_crc32())

	// all scalars are little-endian on disk
	assert.EqualValues(t, 1, binary.LittleEndian.Uint64(hdr[24:32]))
	assert.EqualValues(t, 34, binary.LittleEndian.Uint64(hdr[40:48]))
}

func TestCalculateChecksum(t *testing.T) {
	hdr := gptstructs.Header(make([]byte, 512))

	hdr.Put_signature(gptstructs.HeaderSignature)
	hdr.Put_header_size(gptstructs.HEADER_SIZE)
	hdr.Put_my_lba(1)
	hdr.Put_header_crc32(0x12345678)

	expected := slices.Clone(hdr[:gptstructs.HEADER_SIZE])
	expected[16], expected[17], expected[18], expected[19] = 0, 0, 0, 0

	// the checksum field itself is zeroed during calculation
	assert.Equal(t, crc32.ChecksumIEEE(expected), hdr.CalculateChecksum())

	before := hdr.CalculateChecksum()
	hdr.Put_header_crc32(before)
	assert.Equal(t, before, hdr.CalculateChecksum())
}

func TestEntryAccessors(t *testing.T) {
	entry := gptstructs.Entry(make([]byte, gptstructs.ENTRY_SIZE))

	typeGUID := []byte{0x28, 0x73, 0x2a, 0xc1, 0x1f, 0xf8, 0xd2, 0x11, 0xba, 0x4b, 0x00, 0xa0, 0xc9, 0x3e, 0xc9, 0x3b}

	entry.Put_partition_type_guid(typeGUID)
	entry.Put_starting_lba(2048)
	entry.Put_ending_lba(10239)
	entry.Put_attributes(1 << 2)

	assert.Equal(t, typeGUID, entry.Get_partition_type_guid())
	assert.EqualValues(t, 2048, entry.Get_starting_lba())
	assert.EqualValues(t, 10239, entry.Get_ending_lba())
	assert.EqualValues(t, 1<<2, entry.Get_attributes())
	assert.Len(t, entry.Get_partition_name(), gptstructs.ENTRY_NAME_SIZE)
}
