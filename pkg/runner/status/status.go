// Package status provides the runner logic for status changes.
package status

import (
	"context"
	"errors"
	"fmt"

	"tableflip.dev/jot/pkg/engine"
	"tableflip.dev/jot/pkg/entry"
)

// Status sets the status of an entry.
type Status struct {
	ID     int64
	Status entry.Status
	Engine *engine.Engine
}

// Do executes the status change. When the target is a live occurrence of a
// recurring series, the reported id is the freshly materialized exception.
func (n *Status) Do(ctx context.Context) error {
	if n.Engine == nil {
		return errors.New("can not set status, no engine")
	}
	id, err := n.Engine.UpdateStatus(ctx, n.ID, n.Status)
	if err != nil {
		return err
	}
	if id != n.ID {
		fmt.Printf("materialized occurrence %d as %d, status %s\n", n.ID, id, n.Status)
		return nil
	}
	fmt.Printf("entry %d status %s\n", id, n.Status)
	return nil
}
