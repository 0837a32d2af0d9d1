package ledger

import (
	"context"
	"fmt"

	"github.com/s35indy-pixel/Finance-Bot/pkg/db"

	"github.com/go-pg/pg/v10"
)

// PushState records a dialog step awaiting the user's next message. Payload
// is an opaque JSON document owned by the caller.
func (m *Manager) PushState(ctx context.Context, contextType, contextID, externalUserID, kind, step, payload string) error {
	_, err := m.cr.AddDialogState(ctx, &db.DialogState{
		ContextType:    contextType,
		ContextID:      contextID,
		ExternalUserID: externalUserID,
		Kind:           kind,
		Step:           step,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("failed to push state: %w", err)
	}

	m.log.Print(ctx, "state pushed", "kind", kind, "step", step, "context_id", contextID)

	return nil
}

// PopLatestState consumes the newest dialog state of the user in the
// context. The read and the delete run in one transaction, so a state is
// consumed at most once; older rows of the same key are discarded with it.
// States beyond the validity window are dropped and nil is returned.
func (m *Manager) PopLatestState(ctx context.Context, contextType, contextID, externalUserID string) (*db.DialogState, error) {
	var state *db.DialogState

	err := m.db.RunInTransaction(ctx, func(tx *pg.Tx) error {
		cr := m.cr.WithTransaction(tx)

		search := &db.DialogStateSearch{
			ContextType:    &contextType,
			ContextID:      &contextID,
			ExternalUserID: &externalUserID,
		}

		row, err := cr.OneDialogState(ctx, search)
		if err != nil {
			return fmt.Errorf("failed to get state: %w", err)
		}
		if row == nil {
			return nil
		}

		search.MaxID = &row.ID
		deleted, err := cr.DeleteDialogStates(ctx, search)
		if err != nil {
			return fmt.Errorf("failed to delete states: %w", err)
		}
		// a concurrent pop already consumed this row
		if deleted == 0 {
			return nil
		}

		if row.CreatedAt.After(m.now().Add(-StateWindow)) {
			state = row
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}
