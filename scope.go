package borrowck

import "errors"

var ErrRootScope = errors.New("cannot exit the root scope")

// Binding is a named, scope-local owner of a resource.
type Binding struct {
	Name     string
	Resource ResourceID
	Mutable  bool
	Depth    int
	Loc      Location
}

// Entry is a name declared in a scope. Exactly one of Binding and Ref is set.
type Entry struct {
	Name    string
	Binding *Binding
	Ref     *Borrow
}

// IsRef reports whether the entry names a borrow reference.
func (e *Entry) IsRef() bool { return e.Ref != nil }

// Scope is one lexical frame. Entries are kept in declaration order.
type Scope struct {
	parent  *Scope
	depth   int
	entries []*Entry
}

func (s *Scope) Parent() *Scope    { return s.parent }
func (s *Scope) Depth() int        { return s.depth }
func (s *Scope) Entries() []*Entry { return s.entries }

func (s *Scope) lookup(name string) (*Entry, bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Name == name {
			return s.entries[i], true
		}
	}
	return nil, false
}

// ScopeStack is the explicit stack of lexical frames of a pass. The root frame
// at depth 0 always exists.
type ScopeStack struct {
	top     *Scope
	table   *ResourceTable
	borrows *BorrowTracker
}

// NewScopeStack creates a stack holding only the root frame. Exiting a frame
// drops through table and ends borrows through borrows.
func NewScopeStack(table *ResourceTable, borrows *BorrowTracker) *ScopeStack {
	return &ScopeStack{
		top:     &Scope{},
		table:   table,
		borrows: borrows,
	}
}

// Current returns the innermost frame.
func (ss *ScopeStack) Current() *Scope { return ss.top }

// Depth returns the depth of the innermost frame.
func (ss *ScopeStack) Depth() int { return ss.top.depth }

// Enter pushes a new frame whose parent is the current top.
func (ss *ScopeStack) Enter() *Scope {
	ss.top = &Scope{parent: ss.top, depth: ss.top.depth + 1}
	return ss.top
}

// Exit pops the innermost frame. Bindings created directly in it that still
// own a live resource are dropped in reverse creation order, and borrows
// created at its depth or deeper are ended. The dropped resources are
// returned in drop order.
func (ss *ScopeStack) Exit() ([]ResourceID, error) {
	frame := ss.top
	if frame.parent == nil {
		return nil, ErrRootScope
	}
	dropped := ss.finalize(frame)
	ss.top = frame.parent
	return dropped, nil
}

// ExitRoot exits every open frame, innermost first, and finalizes the root
// at the end of a pass. The root stays on the stack, emptied. Resources are
// returned in drop order across all frames.
func (ss *ScopeStack) ExitRoot() []ResourceID {
	var dropped []ResourceID
	for ss.top.parent != nil {
		dropped = append(dropped, ss.finalize(ss.top)...)
		ss.top = ss.top.parent
	}
	dropped = append(dropped, ss.finalize(ss.top)...)
	ss.top.entries = nil
	return dropped
}

func (ss *ScopeStack) finalize(frame *Scope) []ResourceID {
	if ss.borrows != nil {
		ss.borrows.EndFrom(frame.depth)
	}

	var dropped []ResourceID
	for i := len(frame.entries) - 1; i >= 0; i-- {
		b := frame.entries[i].Binding
		if b == nil || !ss.table.IsLive(b.Resource) {
			continue
		}
		if err := ss.table.MarkDropped(b.Resource); err == nil {
			dropped = append(dropped, b.Resource)
		}
	}
	return dropped
}

// Frame returns the frame at the given depth on the current chain, clamped to
// the root.
func (ss *ScopeStack) Frame(depth int) *Scope {
	s := ss.top
	for s.parent != nil && s.depth > depth {
		s = s.parent
	}
	return s
}

// Declare adds an entry to the innermost frame.
func (ss *ScopeStack) Declare(e *Entry) {
	ss.top.entries = append(ss.top.entries, e)
}

// DeclareAt adds an entry to the frame at depth.
func (ss *ScopeStack) DeclareAt(depth int, e *Entry) *Scope {
	frame := ss.Frame(depth)
	frame.entries = append(frame.entries, e)
	return frame
}

// Lookup resolves name to the innermost visible entry.
func (ss *ScopeStack) Lookup(name string) (*Entry, bool) {
	for s := ss.top; s != nil; s = s.parent {
		if e, ok := s.lookup(name); ok {
			return e, true
		}
	}
	return nil, false
}
