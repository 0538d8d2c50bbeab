package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_String(t *testing.T) {
	assert.Equal(t, "INITIALISING", StateInitialising.String())
	assert.Equal(t, "SEARCHING", StateSearching.String())
	assert.Contains(t, State(999999).String(), "UNKNOWN")
}

func TestState_IsTerminal(t *testing.T) {
	assert.True(t, StateComplete.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.True(t, StateSplit.IsTerminal())
	assert.False(t, StateRouting.IsTerminal())
}

func TestCanTransition_PutPath(t *testing.T) {
	assert.True(t, CanTransition(StateInitialising, StateRouting))
	assert.True(t, CanTransition(StateRouting, StateSplitting))
	assert.True(t, CanTransition(StateSplitting, StateIndexing))
	assert.True(t, CanTransition(StateIndexing, StateCatalogPutting))
	assert.True(t, CanTransition(StateCatalogPutting, StateTransferPutting))
	assert.True(t, CanTransition(StateTransferPutting, StateComplete))
}

func TestCanTransition_ArchivePath(t *testing.T) {
	assert.True(t, CanTransition(StateArchiveInit, StateArchivePreparing))
	assert.True(t, CanTransition(StateArchivePreparing, StateArchivePutting))
	assert.True(t, CanTransition(StateArchivePutting, StateCatalogArchiveUpdating))
	assert.True(t, CanTransition(StateCatalogArchiveUpdating, StateComplete))
}

func TestCanTransition_RegressionToImmediatelyPriorStateAllowed(t *testing.T) {
	// rule 1: a sub-record may regress only to its immediately-prior state on retry.
	assert.True(t, CanTransition(StateSplitting, StateRouting))
}

func TestCanTransition_RejectsSkippingBackward(t *testing.T) {
	assert.False(t, CanTransition(StateTransferPutting, StateRouting))
}

func TestCanTransition_TerminalStatesNeverMove(t *testing.T) {
	assert.False(t, CanTransition(StateComplete, StateRouting))
	assert.False(t, CanTransition(StateFailed, StateComplete))
}

func TestParseState_LegacyAliases(t *testing.T) {
	// REDESIGN FLAG (a): frozen read-path translation, see DESIGN.md.
	s, err := ParseState("CATALOG_UPDATING")
	assert.NoError(t, err)
	assert.Equal(t, StateCatalogArchiveUpdating, s)

	s, err = ParseState("ARCHIVE_PREPARING")
	assert.NoError(t, err)
	assert.Equal(t, StateArchiveGetting, s)
}

func TestParseState_CurrentNames(t *testing.T) {
	s, err := ParseState("ARCHIVE_GETTING")
	assert.NoError(t, err)
	assert.Equal(t, StateArchiveGetting, s)
}

func TestParseState_Unrecognised(t *testing.T) {
	_, err := ParseState("NOT_A_STATE")
	assert.Error(t, err)
}
