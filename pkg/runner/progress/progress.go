// Package progress provides the runner logic for percent-complete changes.
package progress

import (
	"context"
	"errors"
	"fmt"

	"tableflip.dev/jot/pkg/engine"
)

// Progress sets the percent-complete of a task.
type Progress struct {
	ID      int64
	Percent int
	Engine  *engine.Engine
}

// Do executes the progress change.
func (n *Progress) Do(ctx context.Context) error {
	if n.Engine == nil {
		return errors.New("can not set progress, no engine")
	}
	id, err := n.Engine.UpdateProgress(ctx, n.ID, n.Percent)
	if err != nil {
		return err
	}
	fmt.Printf("entry %d at %d%%\n", id, n.Percent)
	return nil
}
