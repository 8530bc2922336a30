package parser

import "fmt"

// State is a step of DocumentParser.Parse. Errors returned by Parse are
// prefixed with the state that failed.
type State int

const (
	StateStart State = iota
	StateHeaderRead
	StateLinearizationChecked
	StateXRefLocated
	StateXRefRecoveryScan
	StateXRefChainParsed
	StateStructureParsed
	StateReferencesResolved
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateHeaderRead:
		return "header_read"
	case StateLinearizationChecked:
		return "linearization_checked"
	case StateXRefLocated:
		return "xref_located"
	case StateXRefRecoveryScan:
		return "xref_recovery_scan"
	case StateXRefChainParsed:
		return "xref_chain_parsed"
	case StateStructureParsed:
		return "structure_parsed"
	case StateReferencesResolved:
		return "references_resolved"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
