// Package graph positions attack-flow chains for the node-graph view.
package graph

import (
	"fmt"

	"github.com/attacklens/attacklens/internal/artifact"
)

// Chain geometry: nodes run left to right at a fixed height.
const (
	OriginX     = 50.0
	NodeSpacing = 350.0
	DefaultY    = 100.0
)

// Node is one positioned attack-flow step.
type Node struct {
	ID          string  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	Tactic      string  `json:"tactic,omitempty"`
	Technique   string  `json:"technique,omitempty"`
}

// Edge points forward from one step to the next.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Layout is a positioned chain ready for rendering.
type Layout struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// ChainLayout positions an ordered list of flow steps as a linear chain:
// node i at x = OriginX + NodeSpacing*i, fixed y, one directed edge between
// consecutive nodes. The source data is always a linear narrative, so there
// is no branching and no failure mode.
func ChainLayout(steps []artifact.AttackFlowStep) Layout {
	layout := Layout{
		Nodes: make([]Node, 0, len(steps)),
	}
	if len(steps) > 1 {
		layout.Edges = make([]Edge, 0, len(steps)-1)
	}

	for i, step := range steps {
		id := fmt.Sprintf("step-%d", i)
		layout.Nodes = append(layout.Nodes, Node{
			ID:          id,
			X:           OriginX + NodeSpacing*float64(i),
			Y:           DefaultY,
			Label:       nodeLabel(step, i),
			Description: step.StepDescription,
			Tactic:      step.StepMitreTactic,
			Technique:   step.StepMitreTechnique,
		})
		if i > 0 {
			layout.Edges = append(layout.Edges, Edge{
				ID:     fmt.Sprintf("edge-%d", i-1),
				Source: fmt.Sprintf("step-%d", i-1),
				Target: id,
			})
		}
	}
	return layout
}

func nodeLabel(step artifact.AttackFlowStep, i int) string {
	if step.StepName != "" {
		return step.StepName
	}
	if step.StepDescription != "" {
		return step.StepDescription
	}
	return fmt.Sprintf("Step %d", i+1)
}
