package brain

// Linguistics marks the boundary of offline capability: language analysis
// needs the assistant and is never approximated locally.
type Linguistics struct{}

func (Linguistics) Name() string { return "LINGUISTICS" }
func (Linguistics) Voting() bool { return true }

func (b Linguistics) Run(Snapshot, Session) Result {
	return Result{
		Brain:  b.Name(),
		Voting: true,
		Lines: []string{
			"STATUS: OFFLINE - linguistic analysis is unavailable without the assistant",
			"RECOMMENDATION: escalate the sealed report to the assistant for linguistic review",
		},
	}
}

// Financial performs no ledger or spreadsheet parsing.
type Financial struct{}

func (Financial) Name() string { return "FINANCIAL" }
func (Financial) Voting() bool { return true }

func (b Financial) Run(Snapshot, Session) Result {
	return Result{
		Brain:  b.Name(),
		Voting: true,
		Lines:  []string{"STATUS: UNAVAILABLE OFFLINE - no ledger or spreadsheet parsing is performed"},
	}
}
