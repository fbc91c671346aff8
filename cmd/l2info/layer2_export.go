// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newLayer2ExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "export",
		Short:        "Print the layer2 database as JSON",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return apiClient.ExportLayer2(os.Stdout)
		},
	}
}
