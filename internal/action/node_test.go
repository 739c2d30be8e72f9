package action

import (
	"encoding/json"
	"testing"

	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinglePerformMakesFinal(t *testing.T) {
	n := Single("roll")
	require.True(t, n.CanPerform("roll"))
	assert.False(t, n.IsFinal())

	require.NoError(t, n.Perform("roll"))
	assert.True(t, n.IsFinal())
	assert.Empty(t, n.PossibleKinds())

	err := n.Perform("roll")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCannotPerformAction))
}

func TestSingleRejectsOtherKindAndSkip(t *testing.T) {
	n := Single("roll")

	err := n.Perform("move")
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "move", e.Metadata["kind"])

	assert.False(t, n.CanSkip("roll"))
	err = n.Skip("roll")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCannotSkipAction))
}

func TestAnyOfPerformKeepsLegalSiblings(t *testing.T) {
	n := AnyOf(Single("a"), Single("b"), Single("c"))

	require.NoError(t, n.Perform("b"))
	assert.Equal(t, []Kind{"a", "c"}, n.PossibleKinds())
	assert.False(t, n.IsFinal())

	require.NoError(t, n.Perform("a"))
	require.NoError(t, n.Perform("c"))
	assert.True(t, n.IsFinal())
}

func TestAnyOfSkipCollapsesRepeats(t *testing.T) {
	n := AnyOf(Single("build"), Single("build"), Single("trade"))

	require.True(t, n.CanSkip("build"))
	require.NoError(t, n.Skip("build"))
	assert.Equal(t, []Kind{"trade"}, n.PossibleKinds())

	err := n.Skip("build")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCannotSkipAction))
}

func TestAnyOfRejectsUnknownKind(t *testing.T) {
	n := AnyOf(Single("a"))
	assert.False(t, n.CanPerform("z"))
	assert.Error(t, n.Perform("z"))
}

func TestChoiceDiscardsSiblingsOnPerform(t *testing.T) {
	n := Choice(AnyOf(Single("a"), Single("b")), Single("c"), Single("d"))

	require.NoError(t, n.Perform("a"))
	assert.Equal(t, []Kind{"b"}, n.PossibleKinds())
	assert.False(t, n.CanPerform("c"))
	assert.False(t, n.CanPerform("d"))
}

func TestChoiceFinalWhenSelectedBranchFinal(t *testing.T) {
	n := Choice(Single("a"), Single("b"))

	require.NoError(t, n.Perform("b"))
	assert.True(t, n.IsFinal())
	assert.Empty(t, n.PossibleKinds())
}

func TestChoiceSkipRequiresSkippableBranch(t *testing.T) {
	n := Choice(Single("a"), AnyOf(Single("b"), Single("x")))

	assert.False(t, n.CanSkip("a"))
	assert.Error(t, n.Skip("a"))
	// A rejected skip leaves all branches in place.
	assert.Equal(t, []Kind{"a", "b", "x"}, n.PossibleKinds())

	require.True(t, n.CanSkip("b"))
	require.NoError(t, n.Skip("b"))
	assert.Equal(t, []Kind{"x"}, n.PossibleKinds())
}

func TestAnyOfDropsNestedChoiceOnSkip(t *testing.T) {
	n := AnyOf(Choice(Single("a"), Single("b")), Single("c"))

	require.NoError(t, n.Skip("a"))
	assert.Equal(t, []Kind{"c"}, n.PossibleKinds())
}

func TestImmediateCopies(t *testing.T) {
	n := Single("a")
	i := Immediate(n)
	assert.True(t, i.IsImmediate())
	assert.False(t, n.IsImmediate())
	assert.False(t, n.Equal(i))
}

func TestNodeJSON(t *testing.T) {
	n := Immediate(Choice(AnyOf(Single("a"), Single("b")), Single("c")))
	require.NoError(t, n.Perform("a"))

	data, err := json.Marshal(n)
	require.NoError(t, err)

	var decoded Node
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, n.Equal(&decoded))
	assert.True(t, decoded.IsImmediate())
	assert.Equal(t, []Kind{"b"}, decoded.PossibleKinds())
}

func TestNodeJSONRejectsUnknownOp(t *testing.T) {
	var n Node
	assert.Error(t, json.Unmarshal([]byte(`{"op":"sometimes"}`), &n))
}
