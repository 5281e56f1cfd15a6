// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gpt

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"

	"github.com/siderolabs/go-gptresize/internal/gptstructs"
	"github.com/siderolabs/go-gptresize/internal/gptutil"
)

// Partition is a single partition entry in GPT.
type Partition struct {
	Name string

	TypeGUID uuid.UUID
	PartGUID uuid.UUID

	FirstLBA uint64
	LastLBA  uint64

	Flags uint64
}

// Length returns the partition's length in sectors.
//
// In GPT, LastLBA is inclusive.
func (p *Partition) Length() uint64 {
	if p.LastLBA < p.FirstLBA {
		return 0
	}

	return p.LastLBA - p.FirstLBA + 1
}

// PartitionInfo describes a single non-empty partition entry.
type PartitionInfo struct {
	// Index is the raw (zero-based) slot index of the entry.
	Index int

	TypeGUID uuid.UUID
	PartGUID uuid.UUID

	FirstLBA uint64
	LastLBA  uint64

	// Sectors is the partition length in sectors, Size in bytes.
	Sectors uint64
	Size    uint64

	Label *string

	Attributes uint64
}

var utf16 = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

var zeroGUID [16]byte

// decodeEntry decodes a single partition entry; empty slots decode as nil.
func decodeEntry(entry gptstructs.Entry) (*Partition, error) {
	if bytes.Equal(entry.Get_partition_type_guid(), zeroGUID[:]) {
		return nil, nil //nolint:nilnil
	}

	typeUUID, err := uuid.FromBytes(gptutil.GUIDToUUID(entry.Get_partition_type_guid()))
	if err != nil {
		return nil, fmt.Errorf("invalid partition type GUID: %w", err)
	}

	partUUID, err := uuid.FromBytes(gptutil.GUIDToUUID(entry.Get_unique_partition_guid()))
	if err != nil {
		return nil, fmt.Errorf("invalid partition GUID: %w", err)
	}

	name, err := utf16.NewDecoder().Bytes(entry.Get_partition_name())
	if err != nil {
		return nil, fmt.Errorf("failed to decode partition name: %w", err)
	}

	name = bytes.TrimRight(name, "\x00")

	return &Partition{
		Name: string(name),

		TypeGUID: typeUUID,
		PartGUID: partUUID,

		FirstLBA: entry.Get_starting_lba(),
		LastLBA:  entry.Get_ending_lba(),

		Flags: entry.Get_attributes(),
	}, nil
}

// encodeEntry serializes the partition into the entry byte view.
func (p *Partition) encodeEntry(entry gptstructs.Entry) error {
	entry.Put_partition_type_guid(gptutil.UUIDToGUID(p.TypeGUID[:]))
	entry.Put_unique_partition_guid(gptutil.UUIDToGUID(p.PartGUID[:]))
	entry.Put_starting_lba(p.FirstLBA)
	entry.Put_ending_lba(p.LastLBA)
	entry.Put_attributes(p.Flags)

	nameBuf, err := utf16.NewEncoder().Bytes([]byte(p.Name))
	if err != nil {
		return fmt.Errorf("failed to encode partition name: %w", err)
	}

	if len(nameBuf) > gptstructs.ENTRY_NAME_SIZE {
		return fmt.Errorf("partition name %q too long: %d bytes", p.Name, len(nameBuf))
	}

	entry.Put_partition_name(nameBuf)

	return nil
}
