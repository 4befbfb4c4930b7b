package remote

import (
	"context"
	"fmt"

	"github.com/groveapp/grove/pkg/types"
)

// Store is the remote side of sync. Implementations classify every error
// as retryable (errdefs.ErrRemoteTransient) or terminal
// (errdefs.ErrRemoteTerminal); the queue worker keys its retry decision off
// that classification alone.
type Store interface {
	Create(ctx context.Context, entityType types.EntityType, id string, payload []byte) error
	Update(ctx context.Context, entityType types.EntityType, id string, payload []byte) error
	Delete(ctx context.Context, entityType types.EntityType, id string) error
}

// Apply dispatches a sync operation to the store.
func Apply(ctx context.Context, s Store, op *types.SyncOperation) error {
	switch op.Kind {
	case types.SyncCreate:
		return s.Create(ctx, op.EntityType, op.EntityID, op.Payload)
	case types.SyncUpdate:
		return s.Update(ctx, op.EntityType, op.EntityID, op.Payload)
	case types.SyncDelete:
		return s.Delete(ctx, op.EntityType, op.EntityID)
	default:
		return fmt.Errorf("unknown sync kind %q", op.Kind)
	}
}
