package widget

// State is the lookup orchestrator's position for one page load.
type State int

const (
	// StateIdle covers a widget that has not started or is disabled.
	StateIdle State = iota
	StateNoIDNoCache
	StateNoIDValidCache
	StateNoIDInvalidCache
	StateHasIDPending
	StateHasIDSuccess
	StateHasIDFailure
)

var stateNames = map[State]string{
	StateIdle:             "idle",
	StateNoIDNoCache:      "no_id_no_cache",
	StateNoIDValidCache:   "no_id_with_valid_cache",
	StateNoIDInvalidCache: "no_id_with_invalid_cache",
	StateHasIDPending:     "has_id_pending",
	StateHasIDSuccess:     "has_id_success",
	StateHasIDFailure:     "has_id_failure",
}

func (state State) String() string {
	if name, found := stateNames[state]; found {
		return name
	}
	return "unknown"
}

// Settled reports whether the orchestrator has nothing left in flight.
func (state State) Settled() bool {
	return state != StateIdle && state != StateHasIDPending
}
