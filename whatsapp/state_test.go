package whatsapp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateHolderIgnoresSupersededAttempts(t *testing.T) {
	h := NewStateHolder()

	first := h.beginLink(1, PendingLink{Candidate: Candidate{WabaID: "A"}})
	second := h.beginLink(1, PendingLink{Candidate: Candidate{WabaID: "B"}})

	assert.False(t, h.markLinked(1, first))
	assert.False(t, h.resetIf(1, first))
	assert.False(t, h.awaitPin(1, first))
	assert.Equal(t, PhaseLinking, h.Get(1).Phase)

	require.True(t, h.awaitPin(1, second))
	pending, gen, ok := h.held(1)
	require.True(t, ok)
	assert.Equal(t, second, gen)
	assert.Equal(t, "B", pending.Candidate.WabaID)
}

func TestStateHolderGetReturnsCopy(t *testing.T) {
	h := NewStateHolder()
	gen := h.beginLink(1, PendingLink{Candidate: Candidate{WabaID: "A"}})
	h.awaitPin(1, gen)

	state := h.Get(1)
	state.Pending.Candidate.WabaID = "mutated"

	pending, _, _ := h.held(1)
	assert.Equal(t, "A", pending.Candidate.WabaID)
}

func TestStateHolderTenantsAreIndependent(t *testing.T) {
	h := NewStateHolder()
	h.beginLink(1, PendingLink{Candidate: Candidate{WabaID: "A"}})

	assert.Equal(t, PhaseLinking, h.Get(1).Phase)
	assert.Equal(t, PhaseIdle, h.Get(2).Phase)
}

func TestLinkStateMarshalsPhaseName(t *testing.T) {
	b, err := json.Marshal(LinkState{Phase: PhaseAwaitingPin})
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"awaiting-pin"}`, string(b))
}
