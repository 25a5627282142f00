// Package del provides the runner logic for cascading deletes.
package del

import (
	"context"
	"errors"
	"fmt"

	"tableflip.dev/jot/pkg/engine"
)

// Del deletes an entry and everything reachable below it.
type Del struct {
	ID     int64
	Engine *engine.Engine
}

// Do executes the delete. Local rows disappear; remote rows are staged for
// the sync adapter and vanish from visible queries immediately.
func (n *Del) Do(ctx context.Context) error {
	if n.Engine == nil {
		return errors.New("can not delete, no engine")
	}
	if err := n.Engine.DeleteWithChildren(ctx, n.ID); err != nil {
		return err
	}
	fmt.Printf("deleted %d and children\n", n.ID)
	return nil
}
