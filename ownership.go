package borrowck

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownBinding = errors.New("unknown binding")
	ErrNotOwner       = errors.New("name is a reference, not an owner")
	ErrUseAfterMove   = errors.New("use after move")
	ErrUseAfterDrop   = errors.New("use after drop")
	ErrDoubleMove     = errors.New("value already moved")
)

// Tracker maps names to the resources they own and implements move, clone
// and shadowing semantics on top of the scope stack.
type Tracker struct {
	table  *ResourceTable
	scopes *ScopeStack
	owners map[ResourceID]*Binding
}

// NewTracker creates a tracker over the given table and scopes.
func NewTracker(table *ResourceTable, scopes *ScopeStack) *Tracker {
	return &Tracker{
		table:  table,
		scopes: scopes,
		owners: make(map[ResourceID]*Binding),
	}
}

// Bind installs a new binding in the current scope. An existing binding with
// the same name is shadowed, not modified.
func (t *Tracker) Bind(name string, id ResourceID, mutable bool, loc Location) *Binding {
	b := &Binding{
		Name:     name,
		Resource: id,
		Mutable:  mutable,
		Depth:    t.scopes.Depth(),
		Loc:      loc,
	}
	t.scopes.Declare(&Entry{Name: name, Binding: b})
	t.owners[id] = b
	return b
}

// Owner returns the binding that currently owns the resource.
func (t *Tracker) Owner(id ResourceID) (*Binding, bool) {
	b, ok := t.owners[id]
	return b, ok
}

// Resolve returns the owning binding visible under name.
func (t *Tracker) Resolve(name string) (*Binding, error) {
	e, ok := t.scopes.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBinding, name)
	}
	if e.IsRef() {
		return nil, fmt.Errorf("%w: %q", ErrNotOwner, name)
	}
	return e.Binding, nil
}

// checkLive maps a non-live state to its sentinel error.
func (t *Tracker) checkLive(b *Binding) error {
	switch t.table.State(b.Resource) {
	case StateLive:
		return nil
	case StateMoved:
		return fmt.Errorf("%w: %q", ErrUseAfterMove, b.Name)
	case StateDropped:
		return fmt.Errorf("%w: %q", ErrUseAfterDrop, b.Name)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidResource, b.Name)
	}
}

// Read returns the resource owned by name if it is live.
func (t *Tracker) Read(name string) (ResourceID, error) {
	b, err := t.Resolve(name)
	if err != nil {
		return 0, err
	}
	if err := t.checkLive(b); err != nil {
		return b.Resource, err
	}
	return b.Resource, nil
}

// MoveOut transfers the resource out of name and marks it moved. Copy
// resources are duplicated by the caller and stay live.
func (t *Tracker) MoveOut(name string) (ResourceID, error) {
	b, err := t.Resolve(name)
	if err != nil {
		return 0, err
	}
	switch t.table.State(b.Resource) {
	case StateLive:
	case StateMoved:
		return b.Resource, fmt.Errorf("%w: %q", ErrDoubleMove, name)
	default:
		return b.Resource, t.checkLive(b)
	}
	if t.table.IsCopy(b.Resource) {
		return b.Resource, nil
	}
	if err := t.table.MarkMoved(b.Resource); err != nil {
		return b.Resource, err
	}
	return b.Resource, nil
}

// CloneBinding allocates an independent resource with the same semantics as
// the one owned by name. No aliasing is established.
func (t *Tracker) CloneBinding(name string) (ResourceID, error) {
	id, err := t.Read(name)
	if err != nil {
		return id, err
	}
	return t.table.Allocate(t.table.IsCopy(id)), nil
}
