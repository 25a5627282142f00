package options

import (
	"github.com/spf13/cobra"
)

// CollectionOptions
type CollectionOptions struct {
	Collection string
}

func AddCollectionArgs(cmd *cobra.Command, co *CollectionOptions) {
	cmd.Flags().StringVarP(&co.Collection, "collection", "c", "",
		"Collection to use.")
}
