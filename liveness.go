package borrowck

// hoistDepth returns the creation depth of a reference declared hoist frames
// outward from depth.
func hoistDepth(depth, hoist int) int {
	if hoist < 0 {
		hoist = 0
	}
	if hoist > depth {
		return 0
	}
	return depth - hoist
}

// lastUses maps the index of every borrow operation in ops to the index of
// the last operation that goes through the reference it creates. Borrows
// whose reference is never used are absent from the result.
//
// Name resolution mirrors the driver: one namespace per frame, later
// declarations shadow earlier ones, and references may be declared in an
// outer frame. Using a reborrow also uses every reference it was taken
// through.
func lastUses(ops []Operation) map[int]int {
	type decl struct {
		name   string
		borrow int // index of the creating borrow op, -1 for owners
	}
	frames := [][]decl{nil}

	declareAt := func(depth int, d decl) {
		frames[depth] = append(frames[depth], d)
	}
	resolve := func(name string) (decl, bool) {
		for f := len(frames) - 1; f >= 0; f-- {
			for i := len(frames[f]) - 1; i >= 0; i-- {
				if frames[f][i].name == name {
					return frames[f][i], true
				}
			}
		}
		return decl{}, false
	}

	last := make(map[int]int)
	parents := make(map[int]int)
	markUse := func(name string, idx int) {
		d, ok := resolve(name)
		if !ok {
			return
		}
		for b := d.borrow; b >= 0; {
			last[b] = idx
			p, ok := parents[b]
			if !ok {
				break
			}
			b = p
		}
	}

	for i, op := range ops {
		depth := len(frames) - 1
		switch op.Kind {
		case OpEnterScope:
			frames = append(frames, nil)
		case OpExitScope:
			if depth > 0 {
				frames = frames[:depth]
			}
		case OpBind:
			declareAt(depth, decl{name: op.Name, borrow: -1})
		case OpMove, OpClone:
			markUse(op.Name, i)
			if op.Target != "" {
				declareAt(depth, decl{name: op.Target, borrow: -1})
			}
		case OpBorrowShared, OpBorrowExclusive:
			markUse(op.Name, i)
			if d, ok := resolve(op.Name); ok && d.borrow >= 0 {
				parents[i] = d.borrow
			}
			declareAt(hoistDepth(depth, op.Hoist), decl{name: op.Target, borrow: i})
		case OpUse, OpDrop, OpMutate:
			markUse(op.Name, i)
		}
	}
	return last
}
