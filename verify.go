package borrowck

// Config selects how a pass behaves.
type Config struct {
	// FailFast stops the pass at the first diagnostic.
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`
	// LexicalBorrows keeps every borrow alive until EndBorrow or scope exit
	// instead of ending it after its last use.
	LexicalBorrows bool `yaml:"lexical_borrows" json:"lexical_borrows"`
	// StrictMutability rejects exclusive borrows of bindings not declared mut.
	StrictMutability bool `yaml:"strict_mutability" json:"strict_mutability"`
}

// DefaultConfig collects every diagnostic and ends borrows at their last use.
func DefaultConfig() Config {
	return Config{}
}

// Verify runs one pass over ops with a fresh driver. It reports whether the
// trace is free of violations together with the diagnostics in trace order.
func Verify(ops []Operation, cfg Config, opts ...Option) (bool, []Diagnostic) {
	d := NewDriver(cfg, opts...)
	diags := d.Run(ops)
	return len(diags) == 0, diags
}
