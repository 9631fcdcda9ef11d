package borrowck

import (
	"fmt"
	"strings"
)

// Kind classifies a Diagnostic.
type Kind int

const (
	KindUseAfterMove Kind = iota
	KindUseAfterDrop
	KindDoubleMove
	KindDoubleDrop
	KindBorrowConflict
	KindDanglingBorrow
	KindUnknownBinding
	KindMutability
	KindExpiredBorrow
	KindUnbalancedScope
)

// Kinds lists every diagnostic kind in declaration order.
var Kinds = []Kind{
	KindUseAfterMove,
	KindUseAfterDrop,
	KindDoubleMove,
	KindDoubleDrop,
	KindBorrowConflict,
	KindDanglingBorrow,
	KindUnknownBinding,
	KindMutability,
	KindExpiredBorrow,
	KindUnbalancedScope,
}

func (k Kind) String() string {
	switch k {
	case KindUseAfterMove:
		return "use-after-move"
	case KindUseAfterDrop:
		return "use-after-drop"
	case KindDoubleMove:
		return "double-move"
	case KindDoubleDrop:
		return "double-drop"
	case KindBorrowConflict:
		return "borrow-conflict"
	case KindDanglingBorrow:
		return "dangling-borrow"
	case KindUnknownBinding:
		return "unknown-binding"
	case KindMutability:
		return "mutability"
	case KindExpiredBorrow:
		return "expired-borrow"
	case KindUnbalancedScope:
		return "unbalanced-scope"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Description returns a one-line explanation of the rule behind the kind.
func (k Kind) Description() string {
	switch k {
	case KindUseAfterMove:
		return "a binding is used after its value was moved out"
	case KindUseAfterDrop:
		return "a binding is used after its value was dropped"
	case KindDoubleMove:
		return "a value is moved out of a binding that was already moved"
	case KindDoubleDrop:
		return "a value is dropped twice"
	case KindBorrowConflict:
		return "an operation conflicts with an active shared or exclusive borrow"
	case KindDanglingBorrow:
		return "a reference outlives the value it points to"
	case KindUnknownBinding:
		return "a name is not visible in any enclosing scope"
	case KindMutability:
		return "a value is modified through an immutable binding or shared reference"
	case KindExpiredBorrow:
		return "a reference is used after its borrow ended"
	case KindUnbalancedScope:
		return "a scope exit has no matching scope entry"
	default:
		return ""
	}
}

// ParseKind converts a kind name back to a Kind.
func ParseKind(name string) (Kind, bool) {
	name = strings.TrimSpace(name)
	for _, k := range Kinds {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

// Conflict refines KindBorrowConflict.
type Conflict int

const (
	ConflictNone Conflict = iota
	ConflictExclusiveWhileBorrowed
	ConflictSharedWhileExclusive
	ConflictMoveWhileBorrowed
	ConflictMutateWhileBorrowed
	ConflictUseWhileExclusive
	ConflictMoveOutOfBorrow
)

func (c Conflict) String() string {
	switch c {
	case ConflictNone:
		return ""
	case ConflictExclusiveWhileBorrowed:
		return "exclusive_while_borrowed"
	case ConflictSharedWhileExclusive:
		return "shared_while_exclusive"
	case ConflictMoveWhileBorrowed:
		return "move_while_borrowed"
	case ConflictMutateWhileBorrowed:
		return "mutate_while_borrowed"
	case ConflictUseWhileExclusive:
		return "use_while_exclusive"
	case ConflictMoveOutOfBorrow:
		return "move_out_of_borrow"
	default:
		return fmt.Sprintf("conflict(%d)", int(c))
	}
}

// Diagnostic is one ownership violation found in a trace.
type Diagnostic struct {
	Kind     Kind
	Conflict Conflict
	Location Location
	Resource ResourceID
	Binding  string
	Message  string

	// Related points at the operation the violation conflicts with, such as
	// the earlier borrow or move. It is nil when there is none.
	Related *Location
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(d.Location.String())
	b.WriteString(": ")
	b.WriteString(d.Kind.String())
	if d.Conflict != ConflictNone {
		fmt.Fprintf(&b, "[%s]", d.Conflict)
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}
