package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tableflip.dev/jot/pkg/commands/options"
	"tableflip.dev/jot/pkg/store"
	"tableflip.dev/jot/pkg/views"
)

func addViews(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "views",
		Short: "Manage saved views",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	addViewsList(cmd)
	addViewsSave(cmd)
	addViewsRm(cmd)

	topLevel.AddCommand(cmd)
}

func openViews() (*views.Views, error) {
	cfg, err := store.LoadConfig()
	if err != nil {
		return nil, err
	}
	return views.Open(cfg.ViewsPath())
}

func addViewsList(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "list [module]",
		Short: "List saved views for a module",
		Example: `
jot views list tasks
`,
		ValidArgs: options.ModuleNouns(),
		Args:      cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := options.ModuleForAlias(args[0])
			if err != nil {
				return oo.HandleError(err)
			}
			v, err := openViews()
			if err != nil {
				return oo.HandleError(err)
			}
			for _, name := range v.List(m) {
				_, _ = fmt.Fprintln(color.Output, name)
			}
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}

func addViewsSave(topLevel *cobra.Command) {
	fo := &options.FilterOptions{}

	cmd := &cobra.Command{
		Use:   "save [module] [name]",
		Short: "Save the given filter flags as a named view",
		Example: `
jot views save tasks triage --overdue --group-by status
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := options.ModuleForAlias(args[0])
			if err != nil {
				return oo.HandleError(err)
			}
			v, err := openViews()
			if err != nil {
				return oo.HandleError(err)
			}
			if err := v.Save(m, args[1], fo.Spec(m)); err != nil {
				return oo.HandleError(err)
			}
			fmt.Printf("saved view %q for %s\n", args[1], m)
			return nil
		},
	}

	options.AddFilterArgs(cmd, fo)
	topLevel.AddCommand(cmd)
}

func addViewsRm(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "rm [module] [name]",
		Short: "Delete a saved view",
		Example: `
jot views rm tasks triage
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := options.ModuleForAlias(args[0])
			if err != nil {
				return oo.HandleError(err)
			}
			v, err := openViews()
			if err != nil {
				return oo.HandleError(err)
			}
			return oo.HandleError(v.Delete(m, args[1]))
		},
	}
	topLevel.AddCommand(cmd)
}
