package commands

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"tableflip.dev/jot/pkg/commands/options"
	"tableflip.dev/jot/pkg/runner/add"
)

func addAdd(topLevel *cobra.Command) {
	co := &options.CollectionOptions{}

	cmd := &cobra.Command{
		Use:   "add [module] [text]",
		Short: "Add a journal entry, note or task",
		Example: `
jot add note remember the milk #groceries
jot add task file the expense report --collection work
jot add journal long day, shipped the release
`,
		ValidArgs: options.ModuleNouns(),
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return errors.New("need a module and some text")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := options.ModuleForAlias(args[0])
			if err != nil {
				return oo.HandleError(err)
			}
			g, _, err := loadEngine()
			if err != nil {
				return oo.HandleError(err)
			}
			defer g.Close()

			s := add.Add{
				Module:     m,
				Collection: co.Collection,
				Text:       strings.Join(args[1:], " "),
				Engine:     g,
			}
			return oo.HandleError(s.Do(context.Background()))
		},
	}

	options.AddCollectionArgs(cmd, co)
	options.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}
