package commands

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tableflip.dev/jot/pkg/commands/options"
	"tableflip.dev/jot/pkg/runner/move"
)

func addMove(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "move [id] [collection]",
		Short: "Move an entry and its children to another collection",
		Example: `
jot move 42 work
`,
		Args: cobra.MinimumNArgs(2),
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

			s := move.Move{
				ID:         id,
				Collection: strings.Join(args[1:], " "),
				Engine:     g,
			}
			return oo.HandleError(s.Do(context.Background()))
		},
	}

	options.AddOutputArg(cmd, oo)
	topLevel.AddCommand(cmd)
}
