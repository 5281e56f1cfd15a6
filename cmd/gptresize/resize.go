// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/siderolabs/go-gptresize/gpt"
)

var resizeCmd = &cobra.Command{
	Use:   "resize <device> <partition> <size-mib>",
	Short: "Resize a partition to an exact size in MiB",
	Args:  cobra.ExactArgs(3),
	RunE: func(_ *cobra.Command, args []string) error {
		slot, err := parsePartitionNumber(args[1])
		if err != nil {
			return err
		}

		mib, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil || mib == 0 {
			return fmt.Errorf("invalid size %q", args[2])
		}

		table, dev, err := openTable(args[0])
		if err != nil {
			return err
		}

		defer dev.Close() //nolint:errcheck

		if err = table.Resize(slot, gpt.ResizeToMiB(mib), gpt.DefaultResizeConstraints()); err != nil {
			return err
		}

		fmt.Printf("partition %s resized to %d MiB\n", args[1], mib)

		return nil
	},
}

var resizeMaxCmd = &cobra.Command{
	Use:   "resize-max <device> <partition>",
	Short: "Resize a partition to its maximum contiguous size",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		slot, err := parsePartitionNumber(args[1])
		if err != nil {
			return err
		}

		table, dev, err := openTable(args[0])
		if err != nil {
			return err
		}

		defer dev.Close() //nolint:errcheck

		if err = table.ResizeToMax(slot); err != nil {
			return err
		}

		entry, err := table.GetPartition(slot)
		if err != nil {
			return err
		}

		fmt.Printf("partition %s resized to %d sectors\n", args[1], entry.Length())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(resizeCmd, resizeMaxCmd)
}
