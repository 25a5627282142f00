// Package add provides the runner logic for quick-adding entries.
package add

import (
	"context"
	"errors"
	"fmt"

	"tableflip.dev/jot/pkg/collection"
	"tableflip.dev/jot/pkg/engine"
	"tableflip.dev/jot/pkg/entry"
)

// Add inserts a quick entry into a collection.
type Add struct {
	Module     entry.Module
	Collection string
	Text       string
	Engine     *engine.Engine
}

// Do executes the add operation.
func (n *Add) Do(ctx context.Context) error {
	if n.Engine == nil {
		return errors.New("can not add, no engine")
	}
	if n.Text == "" {
		return errors.New("can not add an empty entry")
	}

	collID, err := n.resolveCollection(ctx)
	if err != nil {
		return err
	}

	e, err := n.Engine.InsertQuickEntry(ctx, n.Module, collID, n.Text)
	if err != nil {
		return err
	}
	fmt.Printf("added %s %q (%d)\n", e.Module, e.Summary, e.ID)
	return nil
}

// resolveCollection finds the named collection, or falls back to the first
// local one, creating an Inbox when the store is empty.
func (n *Add) resolveCollection(ctx context.Context) (int64, error) {
	st := n.Engine.Store()
	colls, err := st.ListCollections()
	if err != nil {
		return 0, err
	}
	if n.Collection != "" {
		for _, c := range colls {
			if c.Name == n.Collection {
				return c.ID, nil
			}
		}
		return 0, fmt.Errorf("unknown collection %q", n.Collection)
	}
	for _, c := range colls {
		if c.Local {
			return c.ID, nil
		}
	}
	inbox := collection.NewLocal("Inbox")
	if err := st.InsertCollection(&inbox); err != nil {
		return 0, err
	}
	return inbox.ID, nil
}
