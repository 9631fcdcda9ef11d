package borrowck

import (
	"errors"
	"fmt"
)

var (
	ErrNotLive         = errors.New("resource is not live")
	ErrDoubleDrop      = errors.New("resource already dropped")
	ErrInvalidResource = errors.New("resource is invalid")
	ErrUnknownResource = errors.New("unknown resource")
)

// ResourceID identifies a resource inside a ResourceTable.
// The zero value means "no resource".
type ResourceID int

// IsValid reports whether the id refers to an allocated resource.
func (id ResourceID) IsValid() bool { return id > 0 }

func (id ResourceID) String() string {
	if !id.IsValid() {
		return "res#-"
	}
	return fmt.Sprintf("res#%d", int(id))
}

// ResourceState is the liveness state of a resource.
type ResourceState int

const (
	StateLive ResourceState = iota
	StateMoved
	StateDropped
	StateInvalid
)

func (s ResourceState) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateMoved:
		return "moved"
	case StateDropped:
		return "dropped"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

type resourceEntry struct {
	state ResourceState
	copy  bool
}

// ResourceTable holds the liveness state of every resource allocated during a
// pass. State transitions are monotonic: nothing ever returns to StateLive.
type ResourceTable struct {
	entries []resourceEntry
}

// NewResourceTable creates an empty table.
func NewResourceTable() *ResourceTable {
	return &ResourceTable{
		entries: make([]resourceEntry, 0, 16),
	}
}

// Allocate creates a new live resource and returns its id.
// Copy resources are duplicated instead of moved.
func (t *ResourceTable) Allocate(copyable bool) ResourceID {
	t.entries = append(t.entries, resourceEntry{state: StateLive, copy: copyable})
	return ResourceID(len(t.entries))
}

func (t *ResourceTable) entry(id ResourceID) (*resourceEntry, error) {
	if !id.IsValid() || int(id) > len(t.entries) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, id)
	}
	return &t.entries[id-1], nil
}

// State returns the state of the resource. Unknown ids report StateInvalid.
func (t *ResourceTable) State(id ResourceID) ResourceState {
	e, err := t.entry(id)
	if err != nil {
		return StateInvalid
	}
	return e.state
}

// IsLive reports whether the resource is usable.
func (t *ResourceTable) IsLive(id ResourceID) bool {
	return t.State(id) == StateLive
}

// IsCopy reports whether the resource has copy semantics.
func (t *ResourceTable) IsCopy(id ResourceID) bool {
	e, err := t.entry(id)
	if err != nil {
		return false
	}
	return e.copy
}

// MarkMoved transitions a live resource to StateMoved.
func (t *ResourceTable) MarkMoved(id ResourceID) error {
	e, err := t.entry(id)
	if err != nil {
		return err
	}
	if e.state != StateLive {
		return fmt.Errorf("%w: %s is %s", ErrNotLive, id, e.state)
	}
	e.state = StateMoved
	return nil
}

// MarkDropped transitions a live or moved resource to StateDropped.
func (t *ResourceTable) MarkDropped(id ResourceID) error {
	e, err := t.entry(id)
	if err != nil {
		return err
	}
	switch e.state {
	case StateLive, StateMoved:
		e.state = StateDropped
		return nil
	case StateDropped:
		return fmt.Errorf("%w: %s", ErrDoubleDrop, id)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidResource, id)
	}
}

// Invalidate forces the resource into StateInvalid.
func (t *ResourceTable) Invalidate(id ResourceID) {
	e, err := t.entry(id)
	if err != nil {
		return
	}
	e.state = StateInvalid
}

// Len returns the number of allocated resources.
func (t *ResourceTable) Len() int {
	return len(t.entries)
}
