package brain

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/user/custodian/internal/logging"
)

// Pipeline fans a snapshot out to its brains and collects the results in
// brain order.
type Pipeline struct {
	brains []Brain
}

// NewPipeline returns a pipeline over brains, or over Default() when none
// are given.
func NewPipeline(brains ...Brain) *Pipeline {
	if len(brains) == 0 {
		brains = Default()
	}
	return &Pipeline{brains: brains}
}

// Brains returns the brains in execution order.
func (p *Pipeline) Brains() []Brain {
	out := make([]Brain, len(p.brains))
	copy(out, p.brains)
	return out
}

// Run executes every brain concurrently over snap. Results are indexed from
// 1 and returned in brain order regardless of completion order. A brain
// that panics yields a fault result instead of failing the run. The only
// error returned is ctx's.
func (p *Pipeline) Run(ctx context.Context, snap Snapshot, sc Session) ([]Result, error) {
	log := logging.New("pipeline")
	results := make([]Result, len(p.brains))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range p.brains {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = runContained(b, snap, sc)
			results[i].Index = i + 1
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range results {
		r := &results[i]
		if r.Brain == "" {
			r.Brain = p.brains[i].Name()
		}
		for j := range r.Findings {
			kept := r.Findings[j].Anchors[:0:0]
			for _, anchor := range r.Findings[j].Anchors {
				if snap.Resolves(anchor) {
					kept = append(kept, anchor)
					continue
				}
				log.Warn("dropping unresolved anchor", "brain", r.Brain, "anchor", anchor)
			}
			r.Findings[j].Anchors = kept
		}
	}
	return results, nil
}

func runContained(b Brain, snap Snapshot, sc Session) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.New("pipeline").Error("brain panicked", "brain", b.Name(), "panic", rec)
			res = Result{
				Brain:  b.Name(),
				Voting: b.Voting(),
				Lines:  []string{fmt.Sprintf("MODULE FAULT: %v", rec)},
			}
		}
	}()
	return b.Run(snap, sc)
}
