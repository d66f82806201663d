package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepCopy_SharesRepeatedLeaf(t *testing.T) {
	f := newFixture(t)
	absX, err := Abs(f.x)
	require.NoError(t, err)
	e, err := Add(absX, f.x, f.y)
	require.NoError(t, err)

	c, err := e.DeepCopy(Memo{})
	require.NoError(t, err)

	vars := c.Variables()
	require.Len(t, vars, 2, "x cloned once, y cloned once")
	assert.NotEqual(t, f.x.ID(), vars[0].ID())
	assert.NotEqual(t, f.y.ID(), vars[1].ID())

	args := c.Args()
	assert.Same(t, args[0].Args()[0], args[1], "both x occurrences resolve to the same clone")
	assert.Equal(t, "abs(x) + x + y", c.Name())
}

func TestDeepCopy_Substitution(t *testing.T) {
	f := newFixture(t)
	absX, err := Abs(f.x)
	require.NoError(t, err)
	e, err := Add(absX, f.x, f.y)
	require.NoError(t, err)

	replacement, err := f.a.Parameter(2, 1, WithName("theta"))
	require.NoError(t, err)

	memo := Memo{f.x.ID(): replacement}
	c, err := e.DeepCopy(memo)
	require.NoError(t, err)

	assert.Equal(t, "abs(theta) + theta + y", c.Name())
	args := c.Args()
	assert.Same(t, replacement, args[0].Args()[0])
	assert.Same(t, replacement, args[1])
	assert.Equal(t, []*Expr{replacement}, c.Parameters())
	assert.Equal(t, e.Kind(), c.Kind())
	assert.Equal(t, e.Shape(), c.Shape())

	// The substituted tree is constant in theta, so abs(theta) is constant.
	assert.Equal(t, "constant", args[0].Curvature().String())
}

func TestDeepCopy_SharedAtomStaysShared(t *testing.T) {
	f := newFixture(t)
	absX, err := Abs(f.x)
	require.NoError(t, err)
	e, err := Add(absX, absX)
	require.NoError(t, err)

	c, err := e.DeepCopy(Memo{})
	require.NoError(t, err)
	args := c.Args()
	assert.Same(t, args[0], args[1])
	assert.NotSame(t, absX, args[0])
}

func TestDeepCopy_MemoReusedAcrossCalls(t *testing.T) {
	f := newFixture(t)
	e1, err := Abs(f.x)
	require.NoError(t, err)
	e2, err := Pos(f.x)
	require.NoError(t, err)

	memo := Memo{}
	c1, err := e1.DeepCopy(memo)
	require.NoError(t, err)
	c2, err := e2.DeepCopy(memo)
	require.NoError(t, err)
	assert.Same(t, c1.Args()[0], c2.Args()[0], "explicit shared memo shares clones")

	c3, err := e2.DeepCopy(Memo{})
	require.NoError(t, err)
	assert.NotSame(t, c1.Args()[0], c3.Args()[0], "fresh memo shares nothing")
}

func TestCopy_NilMemoRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.x.Copy(nil, nil)
	assert.True(t, IsConstructionError(err))

	absX, err := Abs(f.x)
	require.NoError(t, err)
	_, err = absX.DeepCopy(nil)
	assert.True(t, IsConstructionError(err))
}

func TestCopy_AtomWithNewArgs(t *testing.T) {
	f := newFixture(t)
	idx, err := At(f.x, 1, 0)
	require.NoError(t, err)

	c, err := idx.Copy([]*Expr{f.y}, Memo{})
	require.NoError(t, err)
	assert.Equal(t, idx.AtomData(), c.AtomData())
	assert.Same(t, f.y, c.Args()[0])

	// Shape rules run again on the new args.
	_, err = idx.Copy([]*Expr{f.s}, Memo{})
	assert.True(t, IsConstructionError(err))

	same, err := idx.Copy(nil, Memo{})
	require.NoError(t, err)
	assert.Same(t, f.x, same.Args()[0])
}

func TestCopy_LeafKeepsData(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pNeg.SetValue(-3.0))

	memo := Memo{}
	c, err := f.pNeg.Copy(nil, memo)
	require.NoError(t, err)
	assert.Equal(t, f.pNeg.Data(), c.Data())
	assert.Same(t, c, memo[f.pNeg.ID()])

	again, err := f.pNeg.Copy(nil, memo)
	require.NoError(t, err)
	assert.Same(t, c, again)

	// The clone's value is independent of the original's.
	require.NoError(t, f.pNeg.SetValue(-5.0))
	v, err := c.Value()
	require.NoError(t, err)
	assert.Equal(t, -3.0, v.Data[0])
}

func TestCopy_CanonicalizesLikeOriginal(t *testing.T) {
	f := newFixture(t)
	n, err := Norm1(f.x)
	require.NoError(t, err)
	c, err := n.DeepCopy(Memo{})
	require.NoError(t, err)

	orig, err := quietCanonicalizer().Canonicalize(n)
	require.NoError(t, err)
	cp, err := quietCanonicalizer().Canonicalize(c)
	require.NoError(t, err)
	assert.Len(t, cp.Constraints, len(orig.Constraints))
	assert.Equal(t, orig.Root.Kind, cp.Root.Kind)
}
