package commands

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"tableflip.dev/jot/pkg/commands/options"
	"tableflip.dev/jot/pkg/entry"
	"tableflip.dev/jot/pkg/runner/status"
)

func addDone(topLevel *cobra.Command) {
	cancel := false

	cmd := &cobra.Command{
		Use:   "done [id]",
		Short: "Mark an entry completed",
		Example: `
jot done 42
jot done 42 --cancel
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return oo.HandleError(err)
			}
			g, _, err := loadEngine()
			if err != nil {
				return oo.HandleError(err)
			}
			defer g.Close()

			target := entry.StatusCompleted
			if cancel {
				target = entry.StatusCancelled
			}
			s := status.Status{
				ID:     id,
				Status: target,
				Engine: g,
			}
			return oo.HandleError(s.Do(context.Background()))
		},
	}

	cmd.Flags().BoolVar(&cancel, "cancel", false, "Mark cancelled instead of completed.")
	options.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}
