package ir

// Version constants for the IR schema and compiler.
const (
	// IRVersion is the lin-op graph schema version.
	IRVersion = "1"

	// CompilerVersion is the cvxir compiler version.
	CompilerVersion = "0.1.0"
)
