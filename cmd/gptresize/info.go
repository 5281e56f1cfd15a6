// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"errors"
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/siderolabs/go-gptresize/gpt"
	"github.com/siderolabs/go-gptresize/internal/gptutil"
)

var infoCmd = &cobra.Command{
	Use:   "info <device> <partition>",
	Short: "Show a single partition entry",
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

		info, err := table.GetPartitionInfo(slot)
		if err != nil {
			if errors.Is(err, gpt.ErrPartitionNotFound) {
				return fmt.Errorf("partition %s: not found", args[1])
			}

			return err
		}

		name := ""
		if info.Label != nil {
			name = *info.Label
		}

		fmt.Printf("Partition:      %d\n", info.Index+1)
		fmt.Printf("Name:           %s\n", name)
		fmt.Printf("Type GUID:      %s\n", gptutil.FormatGUID(info.TypeGUID))
		fmt.Printf("Partition GUID: %s\n", gptutil.FormatGUID(info.PartGUID))
		fmt.Printf("Start LBA:      %d\n", info.FirstLBA)
		fmt.Printf("End LBA:        %d\n", info.LastLBA)
		fmt.Printf("Sectors:        %d\n", info.Sectors)
		fmt.Printf("Size:           %s\n", units.HumanSize(float64(info.Size)))
		fmt.Printf("Attributes:     %#016x\n", info.Attributes)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
