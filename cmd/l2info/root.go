// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package main

import (
	"github.com/spf13/cobra"

	"github.com/nttcom/l2info/cmd/l2info/client"
	"github.com/nttcom/l2info/internal/config"
)

var (
	apiClient *client.Client
	jsonFmt   bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "l2info",
	}
	rootCmd.PersistentFlags().BoolVarP(&jsonFmt, "json", "j", false, "output json format")
	rootCmd.PersistentFlags().String("host", config.DefaultAPIAddress, "l2infod connection address")
	rootCmd.PersistentFlags().StringP("port", "p", config.DefaultAPIPort, "l2infod connection port")

	rootCmd.AddCommand(newSessionCmd(), newLayer2Cmd())
	rootCmd.PersistentPreRunE = persistentPreRunE
	rootCmd.Run = runRootCmd

	return rootCmd
}

func persistentPreRunE(cmd *cobra.Command, args []string) error {
	apiClient = client.New(cmd.Flag("host").Value.String(), cmd.Flag("port").Value.String())
	return nil
}

func runRootCmd(cmd *cobra.Command, args []string) {
	cmd.HelpFunc()(cmd, args)
}
