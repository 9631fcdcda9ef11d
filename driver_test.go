package borrowck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func loc(line int) Location {
	return Location{File: "trace.own", Line: line, Column: 1}
}

// at tags every op with its 1-based position as line number.
func at(ops ...Operation) []Operation {
	out := make([]Operation, len(ops))
	for i, op := range ops {
		out[i] = op.At(loc(i + 1))
	}
	return out
}

func hoisted(op Operation, frames int) Operation {
	op.Hoist = frames
	return op
}

func moveMut(from, to string) Operation {
	op := Move(from, to)
	op.Mutable = true
	return op
}

func kinds(diags []Diagnostic) []Kind {
	out := make([]Kind, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.Kind)
	}
	return out
}

func TestDriver_Scenarios(t *testing.T) {
	t.Parallel()

	t.Run("use after move", func(t *testing.T) {
		ok, diags := Verify(at(
			Bind("r1", false),
			Move("r1", "r2"),
			Use("r1"),
		), Config{})

		assert.False(t, ok)
		require.Len(t, diags, 1)
		assert.Equal(t, KindUseAfterMove, diags[0].Kind)
		assert.Equal(t, "r1", diags[0].Binding)
		assert.Equal(t, 3, diags[0].Location.Line)
		require.NotNil(t, diags[0].Related)
		assert.Equal(t, 2, diags[0].Related.Line)
	})

	t.Run("two shared borrows", func(t *testing.T) {
		d := NewDriver(Config{})
		for _, op := range at(
			Bind("r1", false),
			BorrowShared("r1", "b1"),
			BorrowShared("r1", "b2"),
		) {
			d.Step(op)
		}

		assert.Empty(t, d.Diagnostics())
		e, ok := d.Scopes().Lookup("r1")
		require.True(t, ok)
		active := d.Borrows().Active(e.Binding.Resource)
		require.Len(t, active, 2)
		assert.Equal(t, "b1", active[0].Name)
		assert.Equal(t, "b2", active[1].Name)
		assert.Equal(t, AliasState{Shared: 2}, d.Borrows().State(e.Binding.Resource))
	})

	t.Run("shared while exclusive", func(t *testing.T) {
		ok, diags := Verify(at(
			Bind("r1", false),
			BorrowExclusive("r1", "b1"),
			BorrowShared("r1", "b2"),
		), Config{})

		assert.False(t, ok)
		require.Len(t, diags, 1)
		assert.Equal(t, KindBorrowConflict, diags[0].Kind)
		assert.Equal(t, ConflictSharedWhileExclusive, diags[0].Conflict)
		assert.Equal(t, "b2", diags[0].Binding)
		require.NotNil(t, diags[0].Related)
		assert.Equal(t, 2, diags[0].Related.Line)
	})

	t.Run("use after scope exit", func(t *testing.T) {
		d := NewDriver(Config{})
		d.Step(EnterScope())
		d.Step(Bind("r1", false))
		e, _ := d.Scopes().Lookup("r1")
		id := e.Binding.Resource
		d.Step(ExitScope())
		assert.Equal(t, StateDropped, d.Table().State(id))

		d.Step(Use("r1").At(loc(4)))
		diags := d.Diagnostics()
		require.Len(t, diags, 1)
		assert.Equal(t, KindUnknownBinding, diags[0].Kind)
		assert.Equal(t, "r1", diags[0].Binding)
	})

	t.Run("clone survives move", func(t *testing.T) {
		ok, diags := Verify(at(
			Bind("r1", false),
			Clone("r1", "r2"),
			Move("r1", "r3"),
			Use("r2"),
		), Config{})

		assert.True(t, ok)
		assert.Empty(t, diags)
	})

	t.Run("sequential exclusive borrows", func(t *testing.T) {
		ok, diags := Verify(at(
			Bind("r1", false),
			BorrowExclusive("r1", "b1"),
			EndBorrow("b1"),
			BorrowExclusive("r1", "b2"),
		), Config{})

		assert.True(t, ok)
		assert.Empty(t, diags)
	})
}

func TestDriver_Violations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      Config
		ops      []Operation
		want     []Kind
		conflict Conflict
		binding  string
	}{
		{
			name:    "use after drop",
			ops:     []Operation{Bind("a", false), Drop("a"), Use("a")},
			want:    []Kind{KindUseAfterDrop},
			binding: "a",
		},
		{
			name:    "double drop",
			ops:     []Operation{Bind("a", false), Drop("a"), Drop("a")},
			want:    []Kind{KindDoubleDrop},
			binding: "a",
		},
		{
			name:    "double move",
			ops:     []Operation{Bind("a", false), Move("a", "b"), Move("a", "c")},
			want:    []Kind{KindDoubleMove},
			binding: "a",
		},
		{
			name:    "move after drop",
			ops:     []Operation{Bind("a", false), Drop("a"), Move("a", "b")},
			want:    []Kind{KindUseAfterDrop},
			binding: "a",
		},
		{
			name:    "drop after move",
			ops:     []Operation{Bind("a", false), Move("a", "b"), Drop("a")},
			want:    []Kind{KindUseAfterMove},
			binding: "a",
		},
		{
			name:    "borrow after move",
			ops:     []Operation{Bind("a", false), Move("a", "b"), BorrowShared("a", "r")},
			want:    []Kind{KindUseAfterMove},
			binding: "a",
		},
		{
			name:     "exclusive while shared",
			ops:      []Operation{Bind("a", true), BorrowShared("a", "r"), BorrowExclusive("a", "w"), Use("r")},
			want:     []Kind{KindBorrowConflict},
			conflict: ConflictExclusiveWhileBorrowed,
			binding:  "w",
		},
		{
			name:     "two exclusive",
			ops:      []Operation{Bind("a", true), BorrowExclusive("a", "r"), BorrowExclusive("a", "w"), Use("r")},
			want:     []Kind{KindBorrowConflict},
			conflict: ConflictExclusiveWhileBorrowed,
			binding:  "w",
		},
		{
			name:     "move while borrowed",
			ops:      []Operation{Bind("a", false), BorrowShared("a", "r"), Move("a", "b"), Use("r")},
			want:     []Kind{KindBorrowConflict},
			conflict: ConflictMoveWhileBorrowed,
			binding:  "a",
		},
		{
			name:     "drop while borrowed",
			ops:      []Operation{Bind("a", false), BorrowShared("a", "r"), Drop("a"), Use("r")},
			want:     []Kind{KindBorrowConflict},
			conflict: ConflictMoveWhileBorrowed,
			binding:  "a",
		},
		{
			name:     "use owner while exclusively borrowed",
			ops:      []Operation{Bind("a", true), BorrowExclusive("a", "w"), Use("a"), Use("w")},
			want:     []Kind{KindBorrowConflict},
			conflict: ConflictUseWhileExclusive,
			binding:  "a",
		},
		{
			name:     "clone while exclusively borrowed",
			ops:      []Operation{Bind("a", true), BorrowExclusive("a", "w"), Clone("a", "b"), Use("w")},
			want:     []Kind{KindBorrowConflict},
			conflict: ConflictUseWhileExclusive,
			binding:  "a",
		},
		{
			name:     "mutate while borrowed",
			ops:      []Operation{Bind("a", true), BorrowShared("a", "r"), Mutate("a"), Use("r")},
			want:     []Kind{KindBorrowConflict},
			conflict: ConflictMutateWhileBorrowed,
			binding:  "a",
		},
		{
			name:     "move out of borrow",
			ops:      []Operation{Bind("a", false), BorrowShared("a", "r"), Move("r", "b")},
			want:     []Kind{KindBorrowConflict},
			conflict: ConflictMoveOutOfBorrow,
			binding:  "r",
		},
		{
			name:    "mutate immutable binding",
			ops:     []Operation{Bind("a", false), Mutate("a")},
			want:    []Kind{KindMutability},
			binding: "a",
		},
		{
			name:    "mutate through shared reference",
			ops:     []Operation{Bind("a", true), BorrowShared("a", "r"), Mutate("r")},
			want:    []Kind{KindMutability},
			binding: "r",
		},
		{
			name:    "exclusive reborrow through shared reference",
			ops:     []Operation{Bind("a", true), BorrowShared("a", "r"), BorrowExclusive("r", "w")},
			want:    []Kind{KindMutability},
			binding: "w",
		},
		{
			name:    "strict mutability",
			cfg:     Config{StrictMutability: true},
			ops:     []Operation{Bind("a", false), BorrowExclusive("a", "w")},
			want:    []Kind{KindMutability},
			binding: "w",
		},
		{
			name:    "use after end",
			ops:     []Operation{Bind("a", false), BorrowShared("a", "r"), EndBorrow("r"), Use("r"), Use("r")},
			want:    []Kind{KindExpiredBorrow},
			binding: "r",
		},
		{
			name: "dangling hoisted reference",
			ops: []Operation{
				EnterScope(),
				Bind("a", false),
				hoisted(BorrowShared("a", "r"), 1),
				ExitScope(),
				Use("r"),
			},
			want:    []Kind{KindDanglingBorrow},
			binding: "r",
		},
		{
			name: "dangling reborrow",
			ops: []Operation{
				Bind("a", false),
				EnterScope(),
				BorrowShared("a", "r"),
				hoisted(BorrowShared("r", "s"), 1),
				ExitScope(),
			},
			want:    []Kind{KindDanglingBorrow},
			binding: "s",
		},
		{
			name:    "reborrow through ended reference",
			cfg:     Config{LexicalBorrows: true},
			ops:     []Operation{Bind("a", false), BorrowShared("a", "r"), EndBorrow("r"), Drop("a"), BorrowShared("r", "s")},
			want:    []Kind{KindExpiredBorrow},
			binding: "r",
		},
		{
			name:    "unknown binding",
			ops:     []Operation{Use("ghost")},
			want:    []Kind{KindUnknownBinding},
			binding: "ghost",
		},
		{
			name:    "end of an owner",
			ops:     []Operation{Bind("a", false), EndBorrow("a")},
			want:    []Kind{KindUnknownBinding},
			binding: "a",
		},
		{
			name: "unbalanced scope",
			ops:  []Operation{ExitScope()},
			want: []Kind{KindUnbalancedScope},
		},
		{
			name:     "lexical borrows keep shared alive",
			cfg:      Config{LexicalBorrows: true},
			ops:      []Operation{Bind("a", true), BorrowShared("a", "r"), Use("r"), Mutate("a")},
			want:     []Kind{KindBorrowConflict},
			conflict: ConflictMutateWhileBorrowed,
			binding:  "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, diags := Verify(at(tt.ops...), tt.cfg)

			assert.False(t, ok)
			require.Equal(t, tt.want, kinds(diags), "diagnostics: %v", diags)
			assert.Equal(t, tt.conflict, diags[0].Conflict)
			assert.Equal(t, tt.binding, diags[0].Binding)
			assert.NotEmpty(t, diags[0].Message)
		})
	}
}

func TestDriver_Accepted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		ops  []Operation
	}{
		{
			name: "borrow ends after last use",
			ops:  []Operation{Bind("a", true), BorrowShared("a", "r"), Use("r"), Mutate("a"), Move("a", "b")},
		},
		{
			name: "exclusive reference then owner",
			ops:  []Operation{Bind("a", true), BorrowExclusive("a", "w"), Mutate("w"), Use("a")},
		},
		{
			name: "copy values are not moved",
			ops:  []Operation{BindCopy("n"), Move("n", "m"), Use("n"), Use("m")},
		},
		{
			name: "rebinding a moved name",
			ops:  []Operation{Bind("s", false), Move("s", "t"), Bind("s", false), Use("s")},
		},
		{
			name: "moved into mutable binding",
			ops:  []Operation{Bind("s", false), moveMut("s", "t"), Mutate("t")},
		},
		{
			name: "shared reborrow of exclusive reference",
			ops:  []Operation{Bind("a", true), BorrowExclusive("a", "w"), BorrowShared("w", "s"), Use("s"), Mutate("w")},
		},
		{
			name: "hoisted reference to outer value",
			ops: []Operation{
				Bind("a", false),
				EnterScope(),
				hoisted(BorrowShared("a", "r"), 1),
				ExitScope(),
				Use("r"),
			},
		},
		{
			name: "inner borrow ends with its scope",
			cfg:  Config{LexicalBorrows: true},
			ops: []Operation{
				Bind("a", true),
				EnterScope(),
				BorrowExclusive("a", "w"),
				Mutate("w"),
				ExitScope(),
				Mutate("a"),
			},
		},
		{
			name: "dropping a reference ends it",
			cfg:  Config{LexicalBorrows: true},
			ops:  []Operation{Bind("a", true), BorrowExclusive("a", "w"), Drop("w"), Mutate("a")},
		},
		{
			name: "shadowed value stays owned",
			ops: []Operation{
				Bind("x", false),
				EnterScope(),
				Bind("x", false),
				Move("x", "y"),
				ExitScope(),
				Use("x"),
			},
		},
		{
			name: "unused exclusive borrow ends at scope exit",
			ops: []Operation{
				Bind("a", true),
				EnterScope(),
				BorrowExclusive("a", "w"),
				ExitScope(),
				BorrowShared("a", "r"),
				Use("r"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, diags := Verify(at(tt.ops...), tt.cfg)
			assert.True(t, ok, "diagnostics: %v", diags)
			assert.Empty(t, diags)
		})
	}
}

func TestDriver_NoCascade(t *testing.T) {
	t.Parallel()

	ok, diags := Verify(at(
		Bind("a", false),
		Move("a", "b"),
		Use("a"),
		Use("a"),
		BorrowShared("a", "r"),
		Use("r"),
		Drop("a"),
		Use("b"),
	), Config{})

	assert.False(t, ok)
	assert.Equal(t, []Kind{KindUseAfterMove}, kinds(diags))
}

func TestDriver_FailFast(t *testing.T) {
	t.Parallel()

	ops := at(
		Bind("a", false),
		Move("a", "b"),
		Use("a"),
		Use("ghost"),
		EnterScope(),
	)

	d := NewDriver(Config{FailFast: true})
	diags := d.Run(ops)
	require.Len(t, diags, 1)
	assert.Equal(t, KindUseAfterMove, diags[0].Kind)
	assert.True(t, d.Halted())

	// the rest of the pass is skipped, including implicit scope exits
	e, _ := d.Scopes().Lookup("b")
	assert.True(t, d.Table().IsLive(e.Binding.Resource))

	_, all := Verify(ops, Config{})
	assert.Len(t, all, 2)
}

func TestDriver_FinishDropsEverything(t *testing.T) {
	t.Parallel()

	d := NewDriver(Config{})
	diags := d.Run(at(
		Bind("a", false),
		Bind("b", false),
		EnterScope(),
		Bind("c", false),
	))
	require.Empty(t, diags)

	for id := ResourceID(1); int(id) <= d.Table().Len(); id++ {
		assert.Equal(t, StateDropped, d.Table().State(id), id.String())
	}
	assert.Equal(t, 0, d.Scopes().Depth())
	assert.Nil(t, d.Finish())

	// finished drivers ignore further input
	d.Step(Use("zzz"))
	assert.Empty(t, d.Diagnostics())
}

func TestDriver_StepWithoutRun(t *testing.T) {
	t.Parallel()

	// without the pre-pass borrows are lexical
	d := NewDriver(Config{})
	for _, op := range at(Bind("a", true), BorrowShared("a", "r"), Use("r"), Mutate("a")) {
		d.Step(op)
	}
	require.Len(t, d.Diagnostics(), 1)
	assert.Equal(t, ConflictMutateWhileBorrowed, d.Diagnostics()[0].Conflict)
}

func TestDriver_RunAfterStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		ops   []Operation
		steps []int
		want  []Conflict
	}{
		{
			name:  "borrow ends at its last use before run",
			ops:   at(Bind("a", false), BorrowExclusive("a", "m"), Use("m"), BorrowShared("a", "s")),
			steps: []int{0, 1, 2, 3},
		},
		{
			name: "stepped scope entry",
			ops: at(
				EnterScope(),
				Bind("a", true),
				BorrowShared("a", "r"),
				Use("r"),
				BorrowExclusive("a", "m"),
				Mutate("m"),
				ExitScope(),
			),
			steps: []int{0, 1, 2, 3, 4},
		},
		{
			name:  "conflict survives the split",
			ops:   at(Bind("a", false), BorrowExclusive("a", "m"), BorrowShared("a", "s"), Use("m")),
			steps: []int{0, 1, 2},
			want:  []Conflict{ConflictSharedWhileExclusive},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			_, whole := Verify(test.ops, Config{})
			require.Len(t, whole, len(test.want))

			for _, k := range test.steps {
				d := NewDriver(Config{})
				for _, op := range test.ops[:k] {
					d.Step(op)
				}
				got := d.Run(test.ops[k:])

				var conflicts []Conflict
				for _, diag := range got {
					conflicts = append(conflicts, diag.Conflict)
				}
				assert.Equal(t, test.want, conflicts, "stepped %d ops", k)
				assert.Equal(t, kinds(whole), kinds(got), "stepped %d ops", k)
			}
		})
	}
}

func TestDriver_Logger(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	Verify(at(Bind("a", false), Move("a", "b"), Use("a")), Config{}, WithLogger(zap.New(core)))

	assert.Equal(t, 3, logs.FilterMessage("step").Len())
	violations := logs.FilterMessage("violation").All()
	require.Len(t, violations, 1)
	assert.Equal(t, "use-after-move", violations[0].ContextMap()["kind"])
}
