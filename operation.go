package borrowck

import "fmt"

// Location is an opaque source tag attached to an operation. It is only used
// for reporting.
type Location struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// IsValid reports whether the location carries a line.
func (l Location) IsValid() bool { return l.Line > 0 }

func (l Location) String() string {
	switch {
	case !l.IsValid() && l.File == "":
		return "-"
	case !l.IsValid():
		return l.File
	case l.File == "":
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	default:
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
}

// OpKind is the kind of a trace operation.
type OpKind int

const (
	OpBind OpKind = iota
	OpMove
	OpClone
	OpBorrowShared
	OpBorrowExclusive
	OpEndBorrow
	OpUse
	OpEnterScope
	OpExitScope
	OpDrop
	OpMutate
)

var opKindNames = map[OpKind]string{
	OpBind:            "bind",
	OpMove:            "move",
	OpClone:           "clone",
	OpBorrowShared:    "borrow",
	OpBorrowExclusive: "borrow-mut",
	OpEndBorrow:       "end",
	OpUse:             "use",
	OpEnterScope:      "enter",
	OpExitScope:       "exit",
	OpDrop:            "drop",
	OpMutate:          "mutate",
}

func (k OpKind) String() string {
	if name, ok := opKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// ParseOpKind converts the name produced by OpKind.String back to a kind.
func ParseOpKind(name string) (OpKind, bool) {
	for k, n := range opKindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Operation is one step of a trace.
//
// Name is the operand: the binding created by Bind, the source of Move and
// Clone, the borrowed binding of a borrow, and the subject of EndBorrow, Use,
// Drop and Mutate. Target is the destination binding of Move and Clone and the
// reference name of a borrow.
type Operation struct {
	Kind    OpKind
	Name    string
	Target  string
	Mutable bool // Bind, and the destination of Move and Clone
	Copy    bool // Bind only
	Hoist   int  // borrows only: number of frames outward the reference is stored
	Loc     Location
}

func (op Operation) String() string {
	switch op.Kind {
	case OpEnterScope, OpExitScope:
		return op.Kind.String()
	case OpMove, OpClone:
		if op.Target == "" {
			return fmt.Sprintf("%s %s", op.Kind, op.Name)
		}
		return fmt.Sprintf("%s %s -> %s", op.Kind, op.Name, op.Target)
	case OpBorrowShared, OpBorrowExclusive:
		return fmt.Sprintf("%s %s as %s", op.Kind, op.Name, op.Target)
	default:
		return fmt.Sprintf("%s %s", op.Kind, op.Name)
	}
}

// At returns a copy of the operation tagged with loc.
func (op Operation) At(loc Location) Operation {
	op.Loc = loc
	return op
}

// Bind declares a new binding owning a fresh resource.
func Bind(name string, mutable bool) Operation {
	return Operation{Kind: OpBind, Name: name, Mutable: mutable}
}

// BindCopy declares a binding owning a copy-semantics resource.
func BindCopy(name string) Operation {
	return Operation{Kind: OpBind, Name: name, Copy: true}
}

// Move transfers ownership out of from. An empty to consumes the value.
func Move(from, to string) Operation {
	return Operation{Kind: OpMove, Name: from, Target: to}
}

// Clone binds to to an independent copy of from.
func Clone(from, to string) Operation {
	return Operation{Kind: OpClone, Name: from, Target: to}
}

// BorrowShared creates the shared reference ref to name.
func BorrowShared(name, ref string) Operation {
	return Operation{Kind: OpBorrowShared, Name: name, Target: ref}
}

// BorrowExclusive creates the exclusive reference ref to name.
func BorrowExclusive(name, ref string) Operation {
	return Operation{Kind: OpBorrowExclusive, Name: name, Target: ref}
}

// EndBorrow ends the borrow held by ref.
func EndBorrow(ref string) Operation {
	return Operation{Kind: OpEndBorrow, Name: ref}
}

// Use reads a binding or a reference.
func Use(name string) Operation {
	return Operation{Kind: OpUse, Name: name}
}

// Drop explicitly drops a binding.
func Drop(name string) Operation {
	return Operation{Kind: OpDrop, Name: name}
}

// Mutate modifies a binding, or its target through an exclusive reference.
func Mutate(name string) Operation {
	return Operation{Kind: OpMutate, Name: name}
}

// EnterScope opens a nested scope.
func EnterScope() Operation {
	return Operation{Kind: OpEnterScope}
}

// ExitScope closes the innermost scope.
func ExitScope() Operation {
	return Operation{Kind: OpExitScope}
}
