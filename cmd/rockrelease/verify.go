package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/turbokube/rockrelease/pkg/multiarch"
	"github.com/turbokube/rockrelease/pkg/ocilayout"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify LAYOUT_DIR",
		Short: "Check digests and sizes in an OCI layout and list its platforms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogger(func() error {
				report, err := multiarch.Verify(ocilayout.NewOs(args[0]))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s\n", report.Root.Digest, report.RefName)
				for _, p := range report.Platforms {
					fmt.Fprintln(out, p.String())
				}
				return nil
			})
		},
	}
}
