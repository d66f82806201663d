// Package testutil holds deterministic fixtures shared by package tests.
package testutil

import (
	"io"
	"log/slog"

	"github.com/roach88/cvxir/internal/expr"
	"github.com/roach88/cvxir/internal/ident"
)

// NewArena returns an arena with its own id allocator. The first leaf gets
// id 1, so graphs built in it are reproducible across tests.
func NewArena() *expr.Arena {
	return expr.NewArena(expr.WithAllocator(ident.New()))
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// QuietCanonicalizer returns a canonicalizer that does not log.
func QuietCanonicalizer() *expr.Canonicalizer {
	return expr.NewCanonicalizer(expr.WithLogger(DiscardLogger()))
}
