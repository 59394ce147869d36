package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/turbokube/rockrelease/pkg/multiarch"
	"github.com/turbokube/rockrelease/pkg/ocilayout"
	"github.com/turbokube/rockrelease/pkg/release"
	"go.uber.org/zap"
)

func newInjectVariantCmd() *cobra.Command {
	var fix string
	c := &cobra.Command{
		Use:   "inject-variant LAYOUT_DIR",
		Short: "Set a variant on the image for an architecture in an OCI layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogger(func() error {
				f, err := release.ParseVariantFix(fix)
				if err != nil {
					return err
				}
				result, err := multiarch.InjectVariant(ocilayout.NewOs(args[0]), f.Architecture, f.Variant)
				if err != nil {
					return err
				}
				if !result.Applied {
					zap.L().Info("not applicable", zap.String("fix", f.String()))
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.Root.Digest)
				return nil
			})
		},
	}
	c.Flags().StringVar(&fix, "fix", "arm64=v8", "architecture=variant")
	return c
}
