package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tableflip.dev/jot/pkg/commands/options"
	"tableflip.dev/jot/pkg/runner/get"
	"tableflip.dev/jot/pkg/views"
)

func addGet(topLevel *cobra.Command) {
	co := &options.CollectionOptions{}
	io := &options.IDOptions{}
	fo := &options.FilterOptions{}
	viewName := ""

	cmd := &cobra.Command{
		Use:   "get [module]",
		Short: "List entries for a module",
		Example: `
jot get tasks --overdue --group-by status
jot get notes --category groceries
jot get journals --search release
jot get tasks --view triage
`,
		ValidArgs: options.ModuleNouns(),
		Args:      cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := options.ModuleForAlias(args[0])
			if err != nil {
				return oo.HandleError(err)
			}
			g, cfg, err := loadEngine()
			if err != nil {
				return oo.HandleError(err)
			}
			defer g.Close()

			spec := fo.Spec(m)
			if viewName != "" {
				v, err := views.Open(cfg.ViewsPath())
				if err != nil {
					return oo.HandleError(err)
				}
				spec = v.Load(m, viewName)
			}
			if co.Collection != "" {
				colls, err := g.Store().ListCollections()
				if err != nil {
					return oo.HandleError(err)
				}
				found := false
				for _, c := range colls {
					if c.Name == co.Collection {
						spec.CollectionIDs = append(spec.CollectionIDs, c.ID)
						found = true
					}
				}
				if !found {
					return oo.HandleError(fmt.Errorf("unknown collection %q", co.Collection))
				}
			}

			s := get.Get{
				Spec:   spec,
				ShowID: io.ShowID,
				Engine: g,
			}
			return oo.HandleError(s.Do(context.Background()))
		},
	}

	options.AddFilterArgs(cmd, fo)
	options.AddCollectionArgs(cmd, co)
	options.AddShowIDArgs(cmd, io)
	options.AddOutputArg(cmd, oo)
	cmd.Flags().StringVar(&viewName, "view", "", "Load a saved view instead of building one from flags.")

	topLevel.AddCommand(cmd)
}
