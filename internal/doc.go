// Package internal runs the ownership verifier over trace files.
//
// Engine loads a trace, verifies it and converts each diagnostic into an
// Issue through the rule set, where a rule is one diagnostic kind with a
// configurable severity. Issues silenced by nolint comments are dropped.
// Results may be reused across runs through Cache, and Watcher re-verifies
// trace files as they are written.
//
//	engine, err := internal.NewEngine(borrowck.DefaultConfig(), nil)
//	if err != nil {
//	    // handle error
//	}
//	issues, err := engine.Run("testdata/vec.own")
package internal
