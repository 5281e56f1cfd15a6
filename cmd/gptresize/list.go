// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/siderolabs/go-gptresize/internal/gptutil"
)

var listCmd = &cobra.Command{
	Use:   "list <device>",
	Short: "List the partitions on a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		table, dev, err := openTable(args[0])
		if err != nil {
			return err
		}

		defer dev.Close() //nolint:errcheck

		hdr := table.Header()

		fmt.Printf("Disk %s: %d sectors, %s\n", args[0],
			dev.GetSize()/uint64(dev.GetSectorSize()),
			units.HumanSize(float64(dev.GetSize())))
		fmt.Printf("Disk GUID: %s\n\n", gptutil.FormatGUID(hdr.DiskGUID))

		w := tabwriter.NewWriter(os.Stdout, 2, 8, 2, ' ', 0)
		fmt.Fprintln(w, "NUMBER\tSTART\tEND\tSECTORS\tSIZE\tNAME")

		for _, info := range table.ListPartitions() {
			name := ""
			if info.Label != nil {
				name = *info.Label
			}

			fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%s\t%s\n",
				info.Index+1, info.FirstLBA, info.LastLBA, info.Sectors,
				units.HumanSize(float64(info.Size)), name)
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
