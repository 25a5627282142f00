package engine

import (
	"context"

	"tableflip.dev/jot/pkg/entry"
)

// SyncState is the bookkeeping surface the external sync adapter drives.
// The adapter reads pending rows, transfers them, and confirms transfers
// and server-side deletions here; the engine itself never clears the flags
// it sets.
type SyncState struct {
	g *Engine
}

// Sync returns the sync bookkeeping surface.
func (g *Engine) Sync() *SyncState {
	return &SyncState{g: g}
}

// PendingUpload lists entries whose local changes have not been confirmed
// transferred: dirty rows, including those staged for deletion.
func (s *SyncState) PendingUpload(ctx context.Context) ([]*entry.Entry, error) {
	return s.g.st.PendingUpload()
}

// ConfirmTransfer clears the dirty/upload-pending flags after the adapter
// reports a successful transfer. Rows staged for deletion stay flagged
// deleted until ConfirmRemoteDelete.
func (s *SyncState) ConfirmTransfer(ctx context.Context, ids []int64) error {
	_, err := s.g.exec(ctx, func() (any, error) {
		return nil, s.g.st.ClearSyncFlags(ids)
	})
	return err
}

// ConfirmRemoteDelete physically removes rows previously staged as deleted,
// once the adapter confirms the server no longer has them. Rows not marked
// deleted are left alone.
func (s *SyncState) ConfirmRemoteDelete(ctx context.Context, ids []int64) error {
	_, err := s.g.exec(ctx, func() (any, error) {
		return nil, s.g.st.PurgeConfirmed(ids)
	})
	return err
}
