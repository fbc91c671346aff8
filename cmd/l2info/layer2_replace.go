// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLayer2ReplaceCmd() *cobra.Command {
	layer2ReplaceCmd := &cobra.Command{
		Use:          "replace <origin>",
		Short:        "Replace all data of one origin with a snapshot",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("requires origin\nUsage: l2info layer2 replace <origin> [-f file]")
			}
			file, err := cmd.Flags().GetString("file")
			if err != nil {
				return err
			}
			data, err := readSnapshot(file)
			if err != nil {
				return err
			}
			if err := apiClient.ReplaceOrigin(args[0], data); err != nil {
				return err
			}
			printSuccess(jsonFmt)
			return nil
		},
	}

	layer2ReplaceCmd.Flags().StringP("file", "f", "-", "snapshot file, - for stdin")
	return layer2ReplaceCmd
}
