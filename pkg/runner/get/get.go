// Package get provides the runner logic for listing entries.
package get

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tableflip.dev/jot/pkg/engine"
	"tableflip.dev/jot/pkg/filter"
	"tableflip.dev/jot/pkg/printers"
	"tableflip.dev/jot/pkg/query"
)

// Get compiles a filter spec and prints the result.
type Get struct {
	Spec   filter.Spec
	ShowID bool
	Engine *engine.Engine
}

// Do executes the list operation.
func (n *Get) Do(ctx context.Context) error {
	if n.Engine == nil {
		return errors.New("can not get, no engine")
	}

	res, err := query.Run(ctx, n.Engine.Store().DB(), n.Spec, time.Now())
	if err != nil {
		return err
	}

	pp := printers.PrettyPrint{ShowID: n.ShowID}
	fmt.Println("")
	pp.Title(string(n.Spec.Module))
	pp.Result(res)
	return nil
}
