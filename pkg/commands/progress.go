package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tableflip.dev/jot/pkg/commands/options"
	"tableflip.dev/jot/pkg/runner/progress"
)

func addProgress(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "progress [id] [percent]",
		Short: "Set the percent-complete of a task",
		Example: `
jot progress 42 75
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return oo.HandleError(err)
			}
			pct, err := strconv.Atoi(args[1])
			if err != nil {
				return oo.HandleError(err)
			}
			if pct < 0 || pct > 100 {
				return oo.HandleError(fmt.Errorf("percent %d out of range", pct))
			}
			g, _, err := loadEngine()
			if err != nil {
				return oo.HandleError(err)
			}
			defer g.Close()

			s := progress.Progress{
				ID:      id,
				Percent: pct,
				Engine:  g,
			}
			return oo.HandleError(s.Do(context.Background()))
		},
	}

	options.AddOutputArg(cmd, oo)
	topLevel.AddCommand(cmd)
}
