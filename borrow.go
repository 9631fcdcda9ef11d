package borrowck

import (
	"errors"
	"fmt"
)

var (
	ErrSharedWhileExclusive   = errors.New("shared borrow while exclusively borrowed")
	ErrExclusiveWhileBorrowed = errors.New("exclusive borrow while already borrowed")
	ErrDanglingBorrow         = errors.New("borrow outlives its referent")
	ErrReborrowMutability     = errors.New("exclusive reborrow through a shared reference")
)

// BorrowKind is the aliasing mode of a borrow.
type BorrowKind int

const (
	SharedBorrow    BorrowKind = iota // &T
	ExclusiveBorrow                   // &mut T
)

func (k BorrowKind) String() string {
	switch k {
	case SharedBorrow:
		return "&"
	case ExclusiveBorrow:
		return "&mut"
	default:
		return "&unknown"
	}
}

// BorrowStatus tells whether a borrow still aliases its resource.
type BorrowStatus int

const (
	BorrowActive BorrowStatus = iota
	BorrowEnded
)

func (s BorrowStatus) String() string {
	if s == BorrowActive {
		return "active"
	}
	return "ended"
}

// BorrowID identifies a borrow. The zero value means "no borrow".
type BorrowID int

func (id BorrowID) String() string {
	return fmt.Sprintf("borrow#%d", int(id))
}

// Borrow is a temporary aliasing relation to a resource.
//
// A borrow taken through another reference is a reborrow: it records its
// Parent and rides on the parent's alias state instead of adding its own.
type Borrow struct {
	ID       BorrowID
	Parent   BorrowID
	Name     string
	Kind     BorrowKind
	Resource ResourceID
	Depth    int
	Status   BorrowStatus
	Loc      Location
}

// IsActive reports whether the borrow has not ended.
func (b *Borrow) IsActive() bool { return b.Status == BorrowActive }

// AliasState is the aggregate borrow state of one resource.
type AliasState struct {
	Shared    int
	Exclusive bool
}

// IsNone reports whether no borrow is active.
func (s AliasState) IsNone() bool { return s.Shared == 0 && !s.Exclusive }

func (s AliasState) String() string {
	switch {
	case s.Exclusive:
		return "exclusive"
	case s.Shared > 0:
		return fmt.Sprintf("shared(%d)", s.Shared)
	default:
		return "none"
	}
}

// BorrowTracker is the per-resource aliasing state machine:
// None -> Shared(n) -> None, or None -> Exclusive -> None.
type BorrowTracker struct {
	borrows []*Borrow
	states  map[ResourceID]AliasState
}

// NewBorrowTracker creates an empty tracker.
func NewBorrowTracker() *BorrowTracker {
	return &BorrowTracker{
		borrows: make([]*Borrow, 0, 8),
		states:  make(map[ResourceID]AliasState),
	}
}

func (bt *BorrowTracker) record(kind BorrowKind, id ResourceID, depth int, status BorrowStatus) *Borrow {
	b := &Borrow{
		ID:       BorrowID(len(bt.borrows) + 1),
		Kind:     kind,
		Resource: id,
		Depth:    depth,
		Status:   status,
	}
	bt.borrows = append(bt.borrows, b)
	return b
}

// RequestShared creates a shared borrow of the resource at the given creation
// depth. ownerDepth is the scope depth of the binding that owns the resource.
func (bt *BorrowTracker) RequestShared(id ResourceID, depth, ownerDepth int) (*Borrow, error) {
	if depth < ownerDepth {
		return nil, fmt.Errorf("%w: created at depth %d, owner at depth %d", ErrDanglingBorrow, depth, ownerDepth)
	}
	st := bt.states[id]
	if st.Exclusive {
		return nil, ErrSharedWhileExclusive
	}
	st.Shared++
	bt.states[id] = st
	return bt.record(SharedBorrow, id, depth, BorrowActive), nil
}

// RequestExclusive creates an exclusive borrow. It only succeeds when no other
// borrow of the resource is active.
func (bt *BorrowTracker) RequestExclusive(id ResourceID, depth, ownerDepth int) (*Borrow, error) {
	if depth < ownerDepth {
		return nil, fmt.Errorf("%w: created at depth %d, owner at depth %d", ErrDanglingBorrow, depth, ownerDepth)
	}
	st := bt.states[id]
	if !st.IsNone() {
		return nil, fmt.Errorf("%w: state is %s", ErrExclusiveWhileBorrowed, st)
	}
	bt.states[id] = AliasState{Exclusive: true}
	return bt.record(ExclusiveBorrow, id, depth, BorrowActive), nil
}

// Reborrow creates a borrow through the active reference parent. An exclusive
// reborrow requires an exclusive parent, and the reborrow may not be stored
// in a frame that outlives the parent.
func (bt *BorrowTracker) Reborrow(parent *Borrow, kind BorrowKind, depth int) (*Borrow, error) {
	if kind == ExclusiveBorrow && parent.Kind != ExclusiveBorrow {
		return nil, ErrReborrowMutability
	}
	if depth < parent.Depth {
		return nil, fmt.Errorf("%w: created at depth %d, parent at depth %d", ErrDanglingBorrow, depth, parent.Depth)
	}
	b := bt.record(kind, parent.Resource, depth, BorrowActive)
	b.Parent = parent.ID
	return b, nil
}

// Live reports whether the borrow and every borrow it was taken through are
// still active.
func (bt *BorrowTracker) Live(b *Borrow) bool {
	for b != nil {
		if !b.IsActive() {
			return false
		}
		if b.Parent == 0 {
			return true
		}
		b, _ = bt.Get(b.Parent)
	}
	return false
}

// Rejected records a borrow that was refused. It starts out ended so it never
// contributes to the alias state.
func (bt *BorrowTracker) Rejected(kind BorrowKind, id ResourceID, depth int) *Borrow {
	return bt.record(kind, id, depth, BorrowEnded)
}

// Get returns the borrow with the given id.
func (bt *BorrowTracker) Get(id BorrowID) (*Borrow, bool) {
	if id <= 0 || int(id) > len(bt.borrows) {
		return nil, false
	}
	return bt.borrows[id-1], true
}

// Release ends a borrow. Releasing an ended borrow is a no-op.
func (bt *BorrowTracker) Release(id BorrowID) {
	b, ok := bt.Get(id)
	if !ok || !b.IsActive() {
		return
	}
	b.Status = BorrowEnded
	if b.Parent != 0 {
		return
	}

	st := bt.states[b.Resource]
	switch b.Kind {
	case SharedBorrow:
		if st.Shared > 0 {
			st.Shared--
		}
	case ExclusiveBorrow:
		st.Exclusive = false
	}
	if st.IsNone() {
		delete(bt.states, b.Resource)
		return
	}
	bt.states[b.Resource] = st
}

// EndFrom force-ends every active borrow created at depth or deeper and
// returns their ids in creation order.
func (bt *BorrowTracker) EndFrom(depth int) []BorrowID {
	var ended []BorrowID
	for _, b := range bt.borrows {
		if b.IsActive() && b.Depth >= depth {
			bt.Release(b.ID)
			ended = append(ended, b.ID)
		}
	}
	return ended
}

// State returns the alias state of a resource.
func (bt *BorrowTracker) State(id ResourceID) AliasState {
	return bt.states[id]
}

// Active returns the active borrows of a resource in creation order.
func (bt *BorrowTracker) Active(id ResourceID) []*Borrow {
	var active []*Borrow
	for _, b := range bt.borrows {
		if b.Resource == id && b.IsActive() {
			active = append(active, b)
		}
	}
	return active
}
