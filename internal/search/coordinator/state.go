package coordinator

import "idsearch/internal/identity/models"

// InputReason says why the query text changed.
type InputReason int

const (
	// ReasonInput is ordinary typing.
	ReasonInput InputReason = iota
	// ReasonClear is an explicit clear by the user (clear button, escape).
	ReasonClear
	// ReasonReset is the presentation layer rewriting the text itself,
	// typically to the label of the selected identity.
	ReasonReset
)

func (r InputReason) String() string {
	switch r {
	case ReasonClear:
		return "clear"
	case ReasonReset:
		return "reset"
	default:
		return "input"
	}
}

// ParseInputReason maps "input", "clear" and "reset" to a reason. Anything
// else is ordinary input.
func ParseInputReason(s string) InputReason {
	switch s {
	case "clear":
		return ReasonClear
	case "reset":
		return ReasonReset
	default:
		return ReasonInput
	}
}

// State is the visible state of a search box. Values handed out by the
// coordinator are copies; mutating them has no effect.
type State struct {
	Query         string
	Results       []models.Identity
	Loading       bool
	Selected      *models.Identity
	WalletMissing bool
	RequestID     uint64
}

func (s State) clone() State {
	out := s
	if s.Results != nil {
		out.Results = make([]models.Identity, len(s.Results))
		copy(out.Results, s.Results)
	}
	if s.Selected != nil {
		sel := *s.Selected
		out.Selected = &sel
	}
	return out
}

type actionKind int

const (
	actTyped actionKind = iota
	actEmptied
	actCacheHit
	actSuppressed
	actIssued
	actResolved
	actFailed
	actSelected
	actDismissWallet
)

type action struct {
	kind          actionKind
	query         string
	reason        InputReason
	results       []models.Identity
	identity      *models.Identity
	requestID     uint64
	walletMissing bool
	// pending is set when a newer query is still waiting out its debounce.
	pending bool
}

// reduce is the only place visible state changes. It never mutates s.
func reduce(s State, a action) State {
	next := s.clone()
	switch a.kind {
	case actTyped:
		next.Query = a.query
		next.Loading = true
		clearSelectionOnInput(&next, a.reason)
	case actEmptied:
		next.Query = a.query
		next.Loading = false
		if a.reason == ReasonClear {
			next.Results = nil
		}
		clearSelectionOnInput(&next, a.reason)
	case actCacheHit:
		next.Query = a.query
		next.Results = copyResults(a.results)
		next.Loading = false
		clearSelectionOnInput(&next, a.reason)
	case actSuppressed:
		next.Query = a.query
	case actIssued:
		next.RequestID = a.requestID
	case actResolved:
		next.Results = copyResults(a.results)
		next.Loading = a.pending
		next.WalletMissing = false
	case actFailed:
		next.Results = []models.Identity{}
		next.Loading = a.pending
		next.WalletMissing = next.WalletMissing || a.walletMissing
	case actSelected:
		next.Results = nil
		next.Loading = false
		next.Selected = nil
		if a.identity != nil {
			sel := *a.identity
			next.Selected = &sel
		}
	case actDismissWallet:
		next.WalletMissing = false
	}
	return next
}

// Typing replaces a previous choice; a reset only echoes it.
func clearSelectionOnInput(s *State, reason InputReason) {
	if reason != ReasonReset {
		s.Selected = nil
	}
}

func copyResults(results []models.Identity) []models.Identity {
	out := make([]models.Identity, len(results))
	copy(out, results)
	return out
}
