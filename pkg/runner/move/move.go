// Package move provides the runner logic for collection moves.
package move

import (
	"context"
	"errors"
	"fmt"

	"tableflip.dev/jot/pkg/engine"
)

// Move relocates an entry and its children to another collection.
type Move struct {
	ID         int64
	Collection string
	Engine     *engine.Engine
}

// Do executes the move. When a remote collection is involved the subtree is
// copied and the reported root id is the new one.
func (n *Move) Do(ctx context.Context) error {
	if n.Engine == nil {
		return errors.New("can not move, no engine")
	}

	colls, err := n.Engine.Store().ListCollections()
	if err != nil {
		return err
	}
	var targetID int64
	for _, c := range colls {
		if c.Name == n.Collection {
			targetID = c.ID
			break
		}
	}
	if targetID == 0 {
		return fmt.Errorf("unknown collection %q", n.Collection)
	}

	newID, err := n.Engine.MoveCollection(ctx, n.ID, targetID)
	if err != nil {
		return err
	}
	if newID != n.ID {
		fmt.Printf("moved %d to %q as %d (original staged for sync removal)\n", n.ID, n.Collection, newID)
		return nil
	}
	fmt.Printf("moved %d to %q\n", n.ID, n.Collection)
	return nil
}
