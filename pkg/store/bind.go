package store

import (
	"context"
	"fmt"
	"log"

	"github.com/vanderheijden86/conceptmap/pkg/debug"
	"github.com/vanderheijden86/conceptmap/pkg/mindmap"
	"github.com/vanderheijden86/conceptmap/pkg/model"
)

// Binding persists a controller's state whenever expansion or positions
// change. Save failures are logged and kept in LastErr; they never reach the
// controller.
type Binding struct {
	ctx   context.Context
	ctrl  *mindmap.Controller
	store Store
	mapID string

	Saves   int
	LastErr error
}

// Bind subscribes to ctrl's change notifications and writes state for mapID
// to st after each one.
func Bind(ctx context.Context, ctrl *mindmap.Controller, st Store, mapID string) *Binding {
	b := &Binding{ctx: ctx, ctrl: ctrl, store: st, mapID: mapID}
	ctrl.OnExpansionChange(func([]string) { b.save() })
	ctrl.OnPositionsChange(func(model.NodePositions) { b.save() })
	return b
}

// Follow re-keys the binding to the controller's current graph after it was
// replaced (regeneration, file reload). The new graph is stored under its own
// MapID, any state saved for that ID is restored, and later saves go there,
// so the previous map's state is left alone. It returns the new map ID, or ""
// when the controller holds no graph.
func (b *Binding) Follow() (string, error) {
	if b.ctrl.Phase() != mindmap.PhaseReady {
		return "", nil
	}
	g := b.ctrl.Graph()
	mapID := MapID(g)
	if mapID != b.mapID {
		debug.Log("binding: map %s replaced by %s", b.mapID, mapID)
	}
	b.mapID = mapID
	if err := b.store.SaveGraph(b.ctx, mapID, g); err != nil {
		return mapID, fmt.Errorf("saving graph %s: %w", mapID, err)
	}
	if _, err := RestoreInto(b.ctx, b.ctrl, b.store, mapID); err != nil {
		return mapID, fmt.Errorf("restoring state %s: %w", mapID, err)
	}
	return mapID, nil
}

// MapID returns the ID saves are written under.
func (b *Binding) MapID() string { return b.mapID }

func (b *Binding) save() {
	if b.mapID == "" {
		return
	}
	if err := b.store.Save(b.ctx, b.ctrl.State(b.mapID)); err != nil {
		log.Printf("warning: failed to save mind map state %s: %v", b.mapID, err)
		b.LastErr = err
		return
	}
	b.Saves++
	b.LastErr = nil
	debug.Log("saved state for %s (%d expanded)", b.mapID, len(b.ctrl.Expanded()))
}

// RestoreInto loads mapID's state and applies it to ctrl. It reports whether
// any state was found. A load failure leaves ctrl untouched.
func RestoreInto(ctx context.Context, ctrl *mindmap.Controller, st Store, mapID string) (bool, error) {
	state, err := st.Load(ctx, mapID)
	if err != nil {
		return false, err
	}
	if state == nil {
		return false, nil
	}
	ctrl.Restore(state)
	return true, nil
}
