// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siderolabs/go-gptresize/block"
	"github.com/siderolabs/go-gptresize/gpt"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "gptresize",
	Short:         "Inspect and resize GPT partition tables",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}

	return logger
}

// openTable opens the device and loads the partition table.
//
// The caller closes the returned device.
func openTable(path string) (*gpt.Table, *block.Device, error) {
	dev, err := block.NewFromPath(path)
	if err != nil {
		return nil, nil, err
	}

	table, err := gpt.Open(dev, gpt.WithLogger(newLogger()))
	if err != nil {
		dev.Close() //nolint:errcheck

		return nil, nil, err
	}

	if err = table.Load(); err != nil {
		dev.Close() //nolint:errcheck

		return nil, nil, err
	}

	return table, dev, nil
}

// parsePartitionNumber converts a user-facing 1-based partition number to the
// library's 0-based slot index.
func parsePartitionNumber(arg string) (int, error) {
	n, err := strconv.ParseUint(arg, 10, 31)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid partition number %q", arg)
	}

	return int(n) - 1, nil
}
