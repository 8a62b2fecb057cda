package convert

// State enumerates the orchestrator's positions in a conversion run.
// Transitions only move forward; the attempt history is the associated
// payload (see Orchestrator.Convert).
type State int

const (
	StateInit State = iota
	StateCopied
	StateVerifiedCopy
	StateReencoding
	StateVerifiedReencode
	StateDoneOK
	StateDoneFail
)

var stateNames = map[State]string{
	StateInit:             "init",
	StateCopied:           "copied",
	StateVerifiedCopy:     "verified-copy",
	StateReencoding:       "reencoding",
	StateVerifiedReencode: "verified-reencode",
	StateDoneOK:           "done-ok",
	StateDoneFail:         "done-fail",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}
