// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package main

import (
	"github.com/spf13/cobra"
)

func newLayer2Cmd() *cobra.Command {

	layer2Cmd := &cobra.Command{
		Use:   "layer2",
		Short: "Export, import or remove layer2 data",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	layer2Cmd.AddCommand(newLayer2ExportCmd(), newLayer2ImportCmd(), newLayer2ReplaceCmd(), newLayer2RemoveCmd())
	return layer2Cmd
}
