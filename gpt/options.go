// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gpt

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options is a set of options for a partition table.
type Options struct {
	// Logger to use; defaults to a no-op logger.
	Logger *zap.Logger

	// DiskGUID is a GUID for the disk.
	//
	// If not set, on partition table creation, a new GUID is generated.
	DiskGUID uuid.UUID

	// SkipPMBR skips maintaining the protective MBR for freshly created tables.
	SkipPMBR bool

	// MarkPMBRBootable marks the protective MBR entry bootable.
	MarkPMBRBootable bool
}

// Option is a function that sets some option.
type Option func(*Options)

// WithLogger sets the logger for the table.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithDiskGUID is an option to set disk GUID.
func WithDiskGUID(guid uuid.UUID) Option {
	return func(o *Options) {
		o.DiskGUID = guid
	}
}

// WithSkipPMBR is an option to skip writing protective MBR.
func WithSkipPMBR() Option {
	return func(o *Options) {
		o.SkipPMBR = true
	}
}

// WithMarkPMBRBootable is an option to mark protective MBR bootable.
func WithMarkPMBRBootable() Option {
	return func(o *Options) {
		o.MarkPMBRBootable = true
	}
}

// PartitionOptions configure a partition.
type PartitionOptions struct {
	UniqueGUID uuid.UUID
	Flags      uint64

	// Offset places the partition at an exact byte offset instead of the
	// smallest fitting allocatable range.
	Offset uint64
}

// PartitionOption is a function that sets some option.
type PartitionOption func(*PartitionOptions)

// WithUniqueGUID is an option to set a unique GUID for the partition.
func WithUniqueGUID(guid uuid.UUID) PartitionOption {
	return func(o *PartitionOptions) {
		o.UniqueGUID = guid
	}
}

// WithLegacyBIOSBootableAttribute marks the partition as bootable.
func WithLegacyBIOSBootableAttribute(val bool) PartitionOption {
	return func(args *PartitionOptions) {
		if val {
			args.Flags |= (1 << 2)
		}
	}
}

// WithOffset is an option to place the partition at an exact byte offset.
func WithOffset(offset uint64) PartitionOption {
	return func(o *PartitionOptions) {
		o.Offset = offset
	}
}
