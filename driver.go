package borrowck

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Option configures a Driver.
type Option func(*Driver)

// WithLogger makes the driver log every operation and violation at debug
// level.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Driver replays a trace one operation at a time. It owns its resource table,
// scope stack and borrow state exclusively and is not safe for concurrent use.
type Driver struct {
	cfg    Config
	logger *zap.Logger

	table   *ResourceTable
	borrows *BorrowTracker
	scopes  *ScopeStack
	tracker *Tracker

	// index of the next operation, and every operation stepped so far.
	index   int
	history []Operation
	// last use of each borrow op, and the borrows to release after each op.
	lastUse map[int]int
	expiry  map[int][]BorrowID
	// active borrow created by each borrow op.
	borrowAt map[int]BorrowID

	// where each resource stopped being live.
	endedAt  map[ResourceID]Location
	poisoned map[BorrowID]bool

	diags    []Diagnostic
	halted   bool
	finished bool
}

// NewDriver creates a driver with a root scope and an empty resource table.
func NewDriver(cfg Config, opts ...Option) *Driver {
	table := NewResourceTable()
	borrows := NewBorrowTracker()
	scopes := NewScopeStack(table, borrows)

	d := &Driver{
		cfg:      cfg,
		logger:   zap.NewNop(),
		table:    table,
		borrows:  borrows,
		scopes:   scopes,
		tracker:  NewTracker(table, scopes),
		lastUse:  make(map[int]int),
		expiry:   make(map[int][]BorrowID),
		borrowAt: make(map[int]BorrowID),
		endedAt:  make(map[ResourceID]Location),
		poisoned: make(map[BorrowID]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Table() *ResourceTable     { return d.table }
func (d *Driver) Borrows() *BorrowTracker   { return d.borrows }
func (d *Driver) Scopes() *ScopeStack       { return d.scopes }
func (d *Driver) Tracker() *Tracker         { return d.tracker }
func (d *Driver) Diagnostics() []Diagnostic { return d.diags }

// Halted reports whether fail-fast stopped the pass.
func (d *Driver) Halted() bool { return d.halted }

// Run verifies ops and finishes the pass. Borrows end after their last use
// unless Config.LexicalBorrows is set.
//
// Operations applied earlier with Step are part of the analysis: a borrow they
// created ends at its last use in the combined stream, or right away when that
// use is already behind.
func (d *Driver) Run(ops []Operation) []Diagnostic {
	if !d.cfg.LexicalBorrows && !d.halted && !d.finished {
		d.planExpiry(ops)
	}
	for _, op := range ops {
		if d.halted {
			break
		}
		d.Step(op)
	}
	if !d.halted {
		d.Finish()
	}
	return d.diags
}

func (d *Driver) planExpiry(ops []Operation) {
	base := d.index
	all := make([]Operation, 0, len(d.history)+len(ops))
	all = append(append(all, d.history...), ops...)

	for borrowIdx, useIdx := range lastUses(all) {
		if _, known := d.lastUse[borrowIdx]; known {
			continue
		}
		d.lastUse[borrowIdx] = useIdx
		if borrowIdx >= base {
			continue
		}
		id, ok := d.borrowAt[borrowIdx]
		if !ok {
			continue
		}
		if useIdx < base {
			d.borrows.Release(id)
		} else {
			d.expiry[useIdx] = append(d.expiry[useIdx], id)
		}
	}
}

// Step applies one operation. It is a no-op once the pass halted or finished.
func (d *Driver) Step(op Operation) {
	if d.halted || d.finished {
		return
	}
	idx := d.index
	d.index++
	d.history = append(d.history, op)

	d.logger.Debug("step",
		zap.Int("index", idx),
		zap.Stringer("op", op),
		zap.Int("depth", d.scopes.Depth()),
	)

	switch op.Kind {
	case OpBind:
		d.bind(op)
	case OpMove:
		d.move(op)
	case OpClone:
		d.clone(op)
	case OpBorrowShared:
		d.borrow(op, idx, SharedBorrow)
	case OpBorrowExclusive:
		d.borrow(op, idx, ExclusiveBorrow)
	case OpEndBorrow:
		d.endBorrow(op)
	case OpUse:
		d.use(op)
	case OpDrop:
		d.drop(op)
	case OpMutate:
		d.mutate(op)
	case OpEnterScope:
		d.scopes.Enter()
	case OpExitScope:
		d.exitScope(op)
	default:
		d.logger.Warn("unknown operation kind", zap.Int("kind", int(op.Kind)))
	}

	for _, id := range d.expiry[idx] {
		d.borrows.Release(id)
	}
	delete(d.expiry, idx)
}

// Finish exits every open scope, the root included, and returns the resources
// dropped on the way out.
func (d *Driver) Finish() []ResourceID {
	if d.finished {
		return nil
	}
	d.finished = true
	return d.scopes.ExitRoot()
}

func (d *Driver) report(diag Diagnostic) {
	switch diag.Kind {
	case KindExpiredBorrow, KindUnknownBinding, KindUnbalancedScope:
	default:
		if diag.Resource.IsValid() {
			d.table.Invalidate(diag.Resource)
		}
	}
	d.diags = append(d.diags, diag)

	d.logger.Debug("violation",
		zap.Stringer("kind", diag.Kind),
		zap.Stringer("location", diag.Location),
		zap.String("binding", diag.Binding),
		zap.String("message", diag.Message),
	)
	if d.cfg.FailFast {
		d.halted = true
	}
}

func (d *Driver) lookup(op Operation) (*Entry, bool) {
	e, ok := d.scopes.Lookup(op.Name)
	if !ok {
		d.report(Diagnostic{
			Kind:     KindUnknownBinding,
			Location: op.Loc,
			Binding:  op.Name,
			Message:  fmt.Sprintf("cannot find `%s` in this scope", op.Name),
		})
	}
	return e, ok
}

func (d *Driver) related(id ResourceID) *Location {
	if loc, ok := d.endedAt[id]; ok {
		return &loc
	}
	return nil
}

// violation turns a tracker error into a diagnostic. Errors on invalid
// resources are swallowed so one root cause is reported once.
func (d *Driver) violation(op Operation, b *Binding, err error) {
	diag := Diagnostic{
		Location: op.Loc,
		Resource: b.Resource,
		Binding:  b.Name,
		Related:  d.related(b.Resource),
	}
	switch {
	case errors.Is(err, ErrInvalidResource):
		return
	case errors.Is(err, ErrUseAfterMove):
		diag.Kind = KindUseAfterMove
		diag.Message = fmt.Sprintf("`%s` used after its value was moved", b.Name)
	case errors.Is(err, ErrUseAfterDrop):
		diag.Kind = KindUseAfterDrop
		diag.Message = fmt.Sprintf("`%s` used after its value was dropped", b.Name)
	case errors.Is(err, ErrDoubleMove):
		diag.Kind = KindDoubleMove
		diag.Message = fmt.Sprintf("value of `%s` moved again after it was already moved", b.Name)
	case errors.Is(err, ErrDoubleDrop):
		diag.Kind = KindDoubleDrop
		diag.Message = fmt.Sprintf("value of `%s` dropped twice", b.Name)
	default:
		d.logger.Error("unexpected tracker error", zap.Error(err))
		return
	}
	d.report(diag)
}

func (d *Driver) conflict(op Operation, c Conflict, id ResourceID, name, msg string, with *Borrow) {
	diag := Diagnostic{
		Kind:     KindBorrowConflict,
		Conflict: c,
		Location: op.Loc,
		Resource: id,
		Binding:  name,
		Message:  msg,
	}
	if with != nil {
		loc := with.Loc
		diag.Related = &loc
	}
	d.report(diag)
}

func (d *Driver) exclusiveBorrow(id ResourceID) *Borrow {
	for _, b := range d.borrows.Active(id) {
		if b.Kind == ExclusiveBorrow && b.Parent == 0 {
			return b
		}
	}
	return nil
}

func (d *Driver) firstBorrow(id ResourceID) *Borrow {
	if active := d.borrows.Active(id); len(active) > 0 {
		return active[0]
	}
	return nil
}

// readOwner checks that the owner may be read: its value is live and not
// exclusively borrowed.
func (d *Driver) readOwner(op Operation, b *Binding) bool {
	if _, err := d.tracker.Read(b.Name); err != nil {
		d.violation(op, b, err)
		return false
	}
	if excl := d.exclusiveBorrow(b.Resource); excl != nil {
		d.conflict(op, ConflictUseWhileExclusive, b.Resource, b.Name,
			fmt.Sprintf("cannot use `%s` while it is mutably borrowed by `%s`", b.Name, excl.Name), excl)
		return false
	}
	return true
}

// useRef checks that a reference may be used: its borrow chain is active and
// the referent is live.
func (d *Driver) useRef(op Operation, ref *Borrow) bool {
	if d.table.State(ref.Resource) == StateInvalid {
		return false
	}
	if !d.borrows.Live(ref) {
		if d.poisoned[ref.ID] {
			return false
		}
		d.poisoned[ref.ID] = true
		loc := ref.Loc
		d.report(Diagnostic{
			Kind:     KindExpiredBorrow,
			Location: op.Loc,
			Resource: ref.Resource,
			Binding:  ref.Name,
			Message:  fmt.Sprintf("`%s` used after its borrow ended", ref.Name),
			Related:  &loc,
		})
		return false
	}
	if !d.table.IsLive(ref.Resource) {
		d.report(Diagnostic{
			Kind:     KindDanglingBorrow,
			Location: op.Loc,
			Resource: ref.Resource,
			Binding:  ref.Name,
			Message:  fmt.Sprintf("`%s` refers to a value that is no longer live", ref.Name),
			Related:  d.related(ref.Resource),
		})
		return false
	}
	return true
}

func (d *Driver) bind(op Operation) {
	id := d.table.Allocate(op.Copy)
	d.tracker.Bind(op.Name, id, op.Mutable, op.Loc)
}

// bindTarget gives the destination of a move or clone a fresh live value,
// whether or not the source operation succeeded.
func (d *Driver) bindTarget(op Operation, copyable bool) {
	if op.Target == "" {
		return
	}
	id := d.table.Allocate(copyable)
	d.tracker.Bind(op.Target, id, op.Mutable, op.Loc)
}

func (d *Driver) move(op Operation) {
	e, ok := d.lookup(op)
	if !ok {
		d.bindTarget(op, false)
		return
	}
	if e.IsRef() {
		ref := e.Ref
		if d.useRef(op, ref) {
			d.conflict(op, ConflictMoveOutOfBorrow, ref.Resource, ref.Name,
				fmt.Sprintf("cannot move out of `%s`, which is a %s reference", ref.Name, ref.Kind), ref)
		}
		d.bindTarget(op, d.table.IsCopy(ref.Resource))
		return
	}

	b := e.Binding
	copyable := d.table.IsCopy(b.Resource)
	d.moveOwner(op, b, copyable)
	d.bindTarget(op, copyable)
}

func (d *Driver) moveOwner(op Operation, b *Binding, copyable bool) {
	if copyable {
		d.readOwner(op, b)
		return
	}
	if d.table.IsLive(b.Resource) {
		if with := d.firstBorrow(b.Resource); with != nil {
			d.conflict(op, ConflictMoveWhileBorrowed, b.Resource, b.Name,
				fmt.Sprintf("cannot move out of `%s` because it is borrowed by `%s`", b.Name, with.Name), with)
			return
		}
	}
	if _, err := d.tracker.MoveOut(b.Name); err != nil {
		d.violation(op, b, err)
		return
	}
	d.endedAt[b.Resource] = op.Loc
}

func (d *Driver) clone(op Operation) {
	e, ok := d.lookup(op)
	if !ok {
		d.bindTarget(op, false)
		return
	}
	if e.IsRef() {
		d.useRef(op, e.Ref)
		d.bindTarget(op, d.table.IsCopy(e.Ref.Resource))
		return
	}

	b := e.Binding
	if !d.readOwner(op, b) {
		d.bindTarget(op, d.table.IsCopy(b.Resource))
		return
	}
	if op.Target == "" {
		return
	}
	id, err := d.tracker.CloneBinding(b.Name)
	if err != nil {
		d.violation(op, b, err)
		d.bindTarget(op, false)
		return
	}
	d.tracker.Bind(op.Target, id, op.Mutable, op.Loc)
}

func (d *Driver) borrow(op Operation, idx int, kind BorrowKind) {
	depth := hoistDepth(d.scopes.Depth(), op.Hoist)
	install := func(b *Borrow) {
		b.Name = op.Target
		b.Loc = op.Loc
		d.scopes.DeclareAt(depth, &Entry{Name: op.Target, Ref: b})
		if !b.IsActive() {
			return
		}
		d.borrowAt[idx] = b.ID
		if last, ok := d.lastUse[idx]; ok {
			d.expiry[last] = append(d.expiry[last], b.ID)
		}
	}

	e, ok := d.lookup(op)
	if !ok {
		install(d.borrows.Rejected(kind, 0, depth))
		return
	}
	if e.IsRef() {
		d.reborrow(op, e.Ref, kind, depth, install)
		return
	}

	b := e.Binding
	if _, err := d.tracker.Read(b.Name); err != nil {
		d.violation(op, b, err)
		install(d.borrows.Rejected(kind, b.Resource, depth))
		return
	}
	if kind == ExclusiveBorrow && d.cfg.StrictMutability && !b.Mutable {
		d.report(Diagnostic{
			Kind:     KindMutability,
			Location: op.Loc,
			Resource: b.Resource,
			Binding:  op.Target,
			Message:  fmt.Sprintf("cannot borrow `%s` as mutable, as it is not declared as mutable", b.Name),
			Related:  &b.Loc,
		})
		install(d.borrows.Rejected(kind, b.Resource, depth))
		return
	}

	var (
		granted *Borrow
		err     error
	)
	if kind == SharedBorrow {
		granted, err = d.borrows.RequestShared(b.Resource, depth, b.Depth)
	} else {
		granted, err = d.borrows.RequestExclusive(b.Resource, depth, b.Depth)
	}
	if err != nil {
		d.borrowError(op, b, kind, err)
		install(d.borrows.Rejected(kind, b.Resource, depth))
		return
	}
	install(granted)
}

func (d *Driver) borrowError(op Operation, b *Binding, kind BorrowKind, err error) {
	switch {
	case errors.Is(err, ErrDanglingBorrow):
		d.report(Diagnostic{
			Kind:     KindDanglingBorrow,
			Location: op.Loc,
			Resource: b.Resource,
			Binding:  op.Target,
			Message:  fmt.Sprintf("`%s` does not live long enough: `%s` would outlive it", b.Name, op.Target),
			Related:  &b.Loc,
		})
	case errors.Is(err, ErrSharedWhileExclusive):
		with := d.exclusiveBorrow(b.Resource)
		d.conflict(op, ConflictSharedWhileExclusive, b.Resource, op.Target,
			fmt.Sprintf("cannot borrow `%s` as shared because it is also borrowed as mutable", b.Name), with)
	case errors.Is(err, ErrExclusiveWhileBorrowed):
		with := d.firstBorrow(b.Resource)
		d.conflict(op, ConflictExclusiveWhileBorrowed, b.Resource, op.Target,
			fmt.Sprintf("cannot borrow `%s` as mutable more than once at a time", b.Name), with)
	default:
		d.logger.Error("unexpected borrow error", zap.Stringer("kind", kind), zap.Error(err))
	}
}

func (d *Driver) reborrow(op Operation, parent *Borrow, kind BorrowKind, depth int, install func(*Borrow)) {
	if !d.useRef(op, parent) {
		install(d.borrows.Rejected(kind, parent.Resource, depth))
		return
	}
	granted, err := d.borrows.Reborrow(parent, kind, depth)
	switch {
	case err == nil:
		install(granted)
		return
	case errors.Is(err, ErrReborrowMutability):
		d.report(Diagnostic{
			Kind:     KindMutability,
			Location: op.Loc,
			Resource: parent.Resource,
			Binding:  op.Target,
			Message:  fmt.Sprintf("cannot borrow as mutable through `%s`, which is a shared reference", parent.Name),
			Related:  &parent.Loc,
		})
	default:
		d.report(Diagnostic{
			Kind:     KindDanglingBorrow,
			Location: op.Loc,
			Resource: parent.Resource,
			Binding:  op.Target,
			Message:  fmt.Sprintf("`%s` does not live long enough: `%s` would outlive it", parent.Name, op.Target),
			Related:  &parent.Loc,
		})
	}
	install(d.borrows.Rejected(kind, parent.Resource, depth))
}

func (d *Driver) endBorrow(op Operation) {
	e, ok := d.lookup(op)
	if !ok {
		return
	}
	if !e.IsRef() {
		d.report(Diagnostic{
			Kind:     KindUnknownBinding,
			Location: op.Loc,
			Binding:  op.Name,
			Message:  fmt.Sprintf("`%s` is not a reference", op.Name),
		})
		return
	}
	d.borrows.Release(e.Ref.ID)
}

func (d *Driver) use(op Operation) {
	e, ok := d.lookup(op)
	if !ok {
		return
	}
	if e.IsRef() {
		d.useRef(op, e.Ref)
		return
	}
	d.readOwner(op, e.Binding)
}

func (d *Driver) drop(op Operation) {
	e, ok := d.lookup(op)
	if !ok {
		return
	}
	if e.IsRef() {
		d.useRef(op, e.Ref)
		d.borrows.Release(e.Ref.ID)
		return
	}

	b := e.Binding
	switch d.table.State(b.Resource) {
	case StateInvalid:
		return
	case StateMoved:
		d.violation(op, b, ErrUseAfterMove)
		return
	case StateLive:
		if with := d.firstBorrow(b.Resource); with != nil {
			d.conflict(op, ConflictMoveWhileBorrowed, b.Resource, b.Name,
				fmt.Sprintf("cannot drop `%s` because it is borrowed by `%s`", b.Name, with.Name), with)
			return
		}
	}
	if err := d.table.MarkDropped(b.Resource); err != nil {
		d.violation(op, b, err)
		return
	}
	d.endedAt[b.Resource] = op.Loc
}

func (d *Driver) mutate(op Operation) {
	e, ok := d.lookup(op)
	if !ok {
		return
	}
	if e.IsRef() {
		ref := e.Ref
		if !d.useRef(op, ref) {
			return
		}
		if ref.Kind != ExclusiveBorrow {
			loc := ref.Loc
			d.report(Diagnostic{
				Kind:     KindMutability,
				Location: op.Loc,
				Resource: ref.Resource,
				Binding:  ref.Name,
				Message:  fmt.Sprintf("cannot mutate through `%s`, which is a shared reference", ref.Name),
				Related:  &loc,
			})
		}
		return
	}

	b := e.Binding
	if _, err := d.tracker.Read(b.Name); err != nil {
		d.violation(op, b, err)
		return
	}
	if !b.Mutable {
		d.report(Diagnostic{
			Kind:     KindMutability,
			Location: op.Loc,
			Resource: b.Resource,
			Binding:  b.Name,
			Message:  fmt.Sprintf("cannot mutate immutable binding `%s`", b.Name),
			Related:  &b.Loc,
		})
		return
	}
	if with := d.firstBorrow(b.Resource); with != nil {
		d.conflict(op, ConflictMutateWhileBorrowed, b.Resource, b.Name,
			fmt.Sprintf("cannot mutate `%s` because it is borrowed by `%s`", b.Name, with.Name), with)
	}
}

func (d *Driver) exitScope(op Operation) {
	dropped, err := d.scopes.Exit()
	if err != nil {
		d.report(Diagnostic{
			Kind:     KindUnbalancedScope,
			Location: op.Loc,
			Message:  "scope exit without a matching scope entry",
		})
		return
	}
	for _, id := range dropped {
		d.endedAt[id] = op.Loc
	}
}
