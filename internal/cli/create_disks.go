package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mrz1836/autocompose/internal/constants"
	"github.com/mrz1836/autocompose/internal/diskimage"
	"github.com/mrz1836/autocompose/internal/process"
)

// AddCreateDisksCommand adds the hidden create-disks command that the
// scheduler launches as its default image builder.
func AddCreateDisksCommand(parent *cobra.Command) {
	var toolbox string
	cmd := &cobra.Command{
		Use:    constants.CreateDisksCommand + " REPO TASKDIR OSNAME REF REV NAME",
		Short:  "Create VM, cloud and vagrant disks for one revision",
		Hidden: true,
		Args:   cobra.ExactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateDisks(cmd.Context(), toolbox, diskimage.Request{
				RepoPath: args[0],
				TaskDir:  args[1],
				OSName:   args[2],
				Ref:      args[3],
				Revision: args[4],
				Name:     args[5],
			})
		},
	}
	cmd.Flags().StringVar(&toolbox, "toolbox", constants.DefaultToolboxBinary, "disk toolbox binary")
	parent.AddCommand(cmd)
}

func runCreateDisks(ctx context.Context, toolbox string, req diskimage.Request) error {
	if abs, err := filepath.Abs(req.TaskDir); err == nil {
		req.TaskDir = abs
	}
	logger := GetLogger().With().Str("component", "create-disks").Logger()
	builder := diskimage.New(logger,
		diskimage.WithRunner(&process.DefaultRunner{LiveOut: os.Stdout}),
		diskimage.WithToolbox(toolbox),
	)
	return builder.Build(ctx, req)
}
