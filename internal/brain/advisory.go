package brain

// Advisory carries static research guidance. It is non-voting: its output
// never reaches the assessment.
type Advisory struct{}

func (Advisory) Name() string { return "R&D ADVISORY" }
func (Advisory) Voting() bool { return false }

func (b Advisory) Run(Snapshot, Session) Result {
	return Result{
		Brain:  b.Name(),
		Voting: false,
		Lines: []string{
			"ADVISORY: retain original capture devices and store the seal apart from the report",
			"NOTE: non-voting module; excluded from the overall confidence and verdict",
		},
	}
}
