// Package monitor implements the spec.md §4.2 state machine and the
// durable TransactionRecord/SubRecord/FailedFile store behind it, ported
// from the teacher's db/state_store.go raw-SQL pgxpool CRUD/transition
// style and generalized to NLDS's numeric state set.
package monitor

import "fmt"

// State is one of the numeric monitor states of spec.md §4.2. Numeric
// ordering is preserved so persisted comparisons (e.g. "has this
// sub-record progressed past X") remain meaningful.
type State int

const (
	StateInitialising State = -1
	StateRouting       State = 0

	StateSplitting      State = 1
	StateIndexing        State = 2
	StateCatalogPutting  State = 3
	StateTransferPutting State = 4

	StateCatalogGetting  State = 10
	StateArchiveGetting  State = 11
	StateTransferGetting State = 12
	StateTransferInit    State = 13

	StateArchiveInit     State = 20
	StateArchivePutting  State = 21
	StateArchivePreparing State = 22

	StateCatalogDeleting       State = 30
	StateCatalogArchiveUpdating State = 32
	StateCatalogRemoving       State = 33

	StateComplete             State = 100
	StateFailed               State = 101
	StateCompleteWithErrors   State = 102
	StateCompleteWithWarnings State = 103
	StateSplit                State = 110

	StateSearching State = 1000
)

var stateNames = map[State]string{
	StateInitialising: "INITIALISING", StateRouting: "ROUTING",
	StateSplitting: "SPLITTING", StateIndexing: "INDEXING",
	StateCatalogPutting: "CATALOG_PUTTING", StateTransferPutting: "TRANSFER_PUTTING",
	StateCatalogGetting: "CATALOG_GETTING", StateArchiveGetting: "ARCHIVE_GETTING",
	StateTransferGetting: "TRANSFER_GETTING", StateTransferInit: "TRANSFER_INIT",
	StateArchiveInit: "ARCHIVE_INIT", StateArchivePutting: "ARCHIVE_PUTTING",
	StateArchivePreparing: "ARCHIVE_PREPARING",
	StateCatalogDeleting: "CATALOG_DELETING", StateCatalogArchiveUpdating: "CATALOG_ARCHIVE_UPDATING",
	StateCatalogRemoving: "CATALOG_REMOVING",
	StateComplete: "COMPLETE", StateFailed: "FAILED",
	StateCompleteWithErrors: "COMPLETE_WITH_ERRORS", StateCompleteWithWarnings: "COMPLETE_WITH_WARNINGS",
	StateSplit: "SPLIT", StateSearching: "SEARCHING",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

// terminalStates are the states a SubRecord does not transition out of.
var terminalStates = map[State]bool{
	StateComplete: true, StateFailed: true,
	StateCompleteWithErrors: true, StateCompleteWithWarnings: true,
	StateSplit: true,
}

// IsTerminal reports whether s is one of {COMPLETE, FAILED,
// COMPLETE_WITH_ERRORS, COMPLETE_WITH_WARNINGS, SPLIT} (spec.md §3
// Lifecycle). SPLIT is terminal for the sub-record that split, though
// non-terminal for the parent transaction as a whole.
func (s State) IsTerminal() bool { return terminalStates[s] }

// legacyStateAliases is the REDESIGN FLAG (a) read-path translation
// table: records persisted under a prior schema version used
// CATALOG_UPDATING and ARCHIVE_PREPARING names that this schema renamed.
// This is a frozen decision (DESIGN.md Open Questions), not re-guessed:
// CATALOG_UPDATING is a historical alias for CATALOG_ARCHIVE_UPDATING,
// and old ARCHIVE_PREPARING rows map to ARCHIVE_GETTING on read. Never
// written back out under the legacy name.
var legacyStateAliases = map[string]State{
	"CATALOG_UPDATING":  StateCatalogArchiveUpdating,
	"ARCHIVE_PREPARING": StateArchiveGetting,
}

// ParseState resolves a state name as persisted in storage, applying the
// legacy alias table before falling back to the current name set.
func ParseState(name string) (State, error) {
	if s, ok := legacyStateAliases[name]; ok {
		return s, nil
	}
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unrecognised monitor state %q", name)
}

// allowedTransitions encodes the transition relation sketched in
// spec.md §4.2. It is intentionally permissive about the point a
// transaction enters a path (PUT vs GET vs ARCHIVE) but forbids
// skipping backward except to the immediately-prior state (rule 1).
var allowedTransitions = map[State][]State{
	StateInitialising: {StateRouting},
	StateRouting:       {StateSplitting, StateCatalogGetting, StateArchiveInit},

	StateSplitting:      {StateIndexing, StateSplit},
	StateIndexing:        {StateCatalogPutting, StateIndexing},
	StateCatalogPutting:  {StateTransferPutting},
	StateTransferPutting: {StateComplete, StateCompleteWithErrors, StateCompleteWithWarnings, StateFailed},

	StateCatalogGetting:  {StateArchiveGetting, StateTransferGetting},
	StateArchiveGetting:  {StateTransferInit},
	StateTransferInit:    {StateTransferGetting},
	StateTransferGetting: {StateComplete, StateCompleteWithErrors, StateCompleteWithWarnings, StateFailed},

	StateArchiveInit:      {StateArchivePreparing},
	StateArchivePreparing: {StateArchivePutting},
	StateArchivePutting:   {StateCatalogArchiveUpdating},
	StateCatalogArchiveUpdating: {StateComplete, StateCompleteWithErrors, StateFailed},

	StateCatalogDeleting: {StateCatalogRemoving},
	StateCatalogRemoving: {StateComplete, StateFailed},
}

// CanTransition reports whether the move from->to is permitted either as
// a forward step in allowedTransitions, or as a regression to the
// immediately-prior state on retry (rule 1 of spec.md §4.2). Terminal
// states never transition further.
func CanTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	// Regression to the immediately-prior state on retry.
	for _, next := range allowedTransitions[to] {
		if next == from {
			return true
		}
	}
	return false
}
