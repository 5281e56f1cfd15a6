// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup <device> <file>",
	Short: "Save a zstd-compressed copy of the partition table",
	Long: `Save a zstd-compressed copy of the protective MBR, the primary GPT header
and the partition entry array to a file.`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		table, dev, err := openTable(args[0])
		if err != nil {
			return err
		}

		defer dev.Close() //nolint:errcheck

		hdr := table.Header()
		sectorSize := uint64(dev.GetSectorSize())

		// protective MBR + primary header + entry array
		entryBytes := uint64(hdr.NumEntries) * uint64(hdr.EntrySize)
		end := hdr.EntriesLBA + (entryBytes+sectorSize-1)/sectorSize

		out, err := os.OpenFile(args[1], os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		if err != nil {
			return err
		}

		defer out.Close() //nolint:errcheck

		zw, err := zstd.NewWriter(out)
		if err != nil {
			return err
		}

		if _, err = io.Copy(zw, io.NewSectionReader(dev, 0, int64(end*sectorSize))); err != nil {
			zw.Close() //nolint:errcheck

			return fmt.Errorf("failed to dump partition table: %w", err)
		}

		if err = zw.Close(); err != nil {
			return err
		}

		if err = out.Sync(); err != nil {
			return err
		}

		fmt.Printf("saved %d sectors to %s\n", end, args[1])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
}
