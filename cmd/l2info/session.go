// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nttcom/l2info/pkg/server"
)

func newSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "session",
		Short:        "Show DLEP sessions",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := apiClient.GetSessions()
			if err != nil {
				return err
			}
			return showSession(os.Stdout, sessions, jsonFmt)
		},
	}
}

func showSession(w io.Writer, sessions []server.SessionInfo, jsonFlag bool) error {
	if jsonFlag {
		out, err := json.Marshal(map[string]any{"sessions": sessions})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n", out)
		return nil
	}

	//output user-friendly format
	for i, ss := range sessions {
		fmt.Fprintf(w, "session(%d): %s\n", i, ss.Peer)
		fmt.Fprintf(w, "  state: %s\n", ss.State)
		fmt.Fprintf(w, "  peerType: %s\n", ss.PeerType)
		fmt.Fprintf(w, "  heartbeat: %s\n", ss.Heartbeat)
		fmt.Fprintf(w, "  origin: %s\n", ss.Origin)
		fmt.Fprintf(w, "  extensions: %s\n", strings.Join(ss.Extensions, ","))
	}
	return nil
}
