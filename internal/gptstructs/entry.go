// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gptstructs

import "encoding/binary"

// Entry is a byte view over an on-disk GPT partition entry.
type Entry []byte

// ENTRY_SIZE is the size of a partition entry.
const ENTRY_SIZE = 128

// ENTRY_NAME_SIZE is the size of the partition name field in bytes.
const ENTRY_NAME_SIZE = 72

// Get_partition_type_guid returns partition_type_guid.
func (s Entry) Get_partition_type_guid() []byte {
	return s[0:16]
}

// Put_partition_type_guid sets partition_type_guid.
func (s Entry) Put_partition_type_guid(v []byte) {
	copy(s[0:16], v)
}

// Get_unique_partition_guid returns unique_partition_guid.
func (s Entry) Get_unique_partition_guid() []byte {
	return s[16:32]
}

// Put_unique_partition_guid sets unique_partition_guid.
func (s Entry) Put_unique_partition_guid(v []byte) {
	copy(s[16:32], v)
}

// Get_starting_lba returns starting_lba.
func (s Entry) Get_starting_lba() uint64 {
	return binary.LittleEndian.Uint64(s[32:40])
}

// Put_starting_lba sets starting_lba.
func (s Entry) Put_starting_lba(v uint64) {
	binary.LittleEndian.PutUint64(s[32:40], v)
}

// Get_ending_lba returns ending_lba.
func (s Entry) Get_ending_lba() uint64 {
	return binary.LittleEndian.Uint64(s[40:48])
}

// Put_ending_lba sets ending_lba.
func (s Entry) Put_ending_lba(v uint64) {
	binary.LittleEndian.PutUint64(s[40:48], v)
}

// Get_attributes returns attributes.
func (s Entry) Get_attributes() uint64 {
	return binary.LittleEndian.Uint64(s[48:56])
}

// Put_attributes sets attributes.
func (s Entry) Put_attributes(v uint64) {
	binary.LittleEndian.PutUint64(s[48:56], v)
}

// Get_partition_name returns partition_name.
func (s Entry) Get_partition_name() []byte {
	return s[56:128]
}

// Put_partition_name sets partition_name.
func (s Entry) Put_partition_name(v []byte) {
	copy(s[56:128], v)
}
