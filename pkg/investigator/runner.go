package investigator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/loadwatch/loadwatch/pkg/models"
)

// Runner executes sub-investigators with a global parallelism bound.
// One runner per investigation; waves at increasing depth reuse it so
// children queue behind the same semaphore as their parents did.
type Runner struct {
	sem   *semaphore.Weighted
	namer *agentNamer
	deps  Deps
}

// NewRunner builds a runner bounded at deps.Cfg.MaxParallel.
func NewRunner(deps Deps) *Runner {
	return &Runner{
		sem:   semaphore.NewWeighted(int64(deps.Cfg.MaxParallel)),
		namer: newAgentNamer(),
		deps:  deps,
	}
}

// Spawn creates an agent for a hypothesis, assigning a readable unique id.
func (r *Runner) Spawn(hyp *models.Hypothesis, depth int) *Agent {
	return NewAgent(r.namer.name(hyp.Category), hyp, depth, r.deps)
}

// RunWave runs one depth level of agents concurrently and returns their
// results in completion order. It blocks until every agent in the wave
// has finished, even under cancellation: a cancelled agent still runs
// its (now fast-failing) loop to produce a terminal result.
func (r *Runner) RunWave(ctx context.Context, agents []*Agent) []Result {
	results := make(chan Result, len(agents))
	var wg sync.WaitGroup
	for _, agent := range agents {
		wg.Add(1)
		go func(agent *Agent) {
			defer wg.Done()
			if err := r.sem.Acquire(ctx, 1); err != nil {
				// Cancelled while queued; report without running the loop.
				results <- Result{
					AgentID:    agent.ID,
					Hypothesis: agent.Hyp,
					Reason:     models.ReasonFailed,
				}
				return
			}
			defer r.sem.Release(1)
			results <- agent.Run(ctx)
		}(agent)
	}
	wg.Wait()
	close(results)

	out := make([]Result, 0, len(agents))
	for res := range results {
		out = append(out, res)
	}
	return out
}

// agentNamer derives stable, readable agent ids from hypothesis
// categories, suffixing duplicates.
type agentNamer struct {
	mu     sync.Mutex
	counts map[string]int
}

func newAgentNamer() *agentNamer {
	return &agentNamer{counts: make(map[string]int)}
}

func (n *agentNamer) name(category models.Category) string {
	base := strings.ReplaceAll(string(category), "_", "-")
	if base == "" {
		base = "agent"
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counts[base]++
	if n.counts[base] == 1 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n.counts[base])
}
