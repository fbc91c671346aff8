// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLayer2RemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "remove <origin>",
		Short:        "Remove all data of one origin",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("requires origin\nUsage: l2info layer2 remove <origin>")
			}
			if err := apiClient.RemoveOrigin(args[0]); err != nil {
				return err
			}
			printSuccess(jsonFmt)
			return nil
		},
	}
}
