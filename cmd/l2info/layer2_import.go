// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newLayer2ImportCmd() *cobra.Command {
	layer2ImportCmd := &cobra.Command{
		Use:          "import",
		Short:        "Apply a layer2 JSON snapshot",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := cmd.Flags().GetString("file")
			if err != nil {
				return err
			}
			data, err := readSnapshot(file)
			if err != nil {
				return err
			}
			if err := apiClient.ImportLayer2(data); err != nil {
				return err
			}
			printSuccess(jsonFmt)
			return nil
		},
	}

	layer2ImportCmd.Flags().StringP("file", "f", "-", "snapshot file, - for stdin")
	return layer2ImportCmd
}

func readSnapshot(file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return data, nil
}

func printSuccess(jsonFlag bool) {
	if jsonFlag {
		fmt.Printf("{\"status\": \"success\"}\n")
	} else {
		fmt.Printf("success!\n")
	}
}
