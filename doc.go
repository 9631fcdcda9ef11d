// Package borrowck verifies resource ownership and borrowing over a linear
// operation trace.
//
// A trace is a finite, ordered slice of Operation values: bindings are created,
// moved, cloned, borrowed, used and dropped, and lexical scopes are entered and
// exited. Verify replays the trace against an explicit scope stack and reports
// every violation of the ownership rules as a Diagnostic:
//
//	ok, diags := borrowck.Verify([]borrowck.Operation{
//		borrowck.Bind("a", false),
//		borrowck.Move("a", "b"),
//		borrowck.Use("a"),
//	}, borrowck.Config{})
//	// ok == false, diags[0].Kind == borrowck.KindUseAfterMove
//
// A pass never stops on a violation unless Config.FailFast is set. After a
// violation the implicated resource is marked Invalid so that one root cause
// produces one diagnostic.
//
// A Driver owns all of its state. Independent traces may be verified
// concurrently with independent drivers.
package borrowck
