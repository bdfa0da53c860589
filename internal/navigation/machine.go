// Package navigation implements the viewer's drill-down state machine and
// the per-session view state it drives.
//
// The drill-down is an explicit machine, not scattered nullable flags:
// matrix -> technique -> {finding, path-visualization}, back-transitions
// only. Returning to the matrix clears all downstream selection so
// independent drill-downs never leak state into each other.
package navigation

import (
	"errors"
	"fmt"
)

// State is one screen of the drill-down.
type State string

const (
	StateMatrix            State = "matrix"
	StateTechnique         State = "technique"
	StateFinding           State = "finding"
	StatePathVisualization State = "path-visualization"
)

// ErrInvalidTransition is returned when an event is not legal in the current
// state, e.g. "view in context" from the matrix.
var ErrInvalidTransition = errors.New("invalid navigation transition")

// Selection is the view state carried between screens.
type Selection struct {
	Tactic       string `json:"tactic,omitempty"`
	TechniqueKey string `json:"technique_key,omitempty"`
	// Scenario names the selected finding for the technique view.
	Scenario string `json:"scenario,omitempty"`
}

// Machine holds the current screen and selection. Not safe for concurrent
// use on its own; Session serializes access.
type Machine struct {
	state State
	sel   Selection
}

func NewMachine() *Machine {
	return &Machine{state: StateMatrix}
}

func (m *Machine) State() State         { return m.state }
func (m *Machine) Selection() Selection { return m.sel }

// Reset returns to the matrix and clears every downstream selection.
func (m *Machine) Reset() {
	m.state = StateMatrix
	m.sel = Selection{}
}

// SelectTechnique enters the technique view: from the matrix (cell click) or
// from the path visualization (step-node click).
func (m *Machine) SelectTechnique(tactic, techniqueKey, scenario string) error {
	switch m.state {
	case StateMatrix, StatePathVisualization:
		m.state = StateTechnique
		m.sel = Selection{Tactic: tactic, TechniqueKey: techniqueKey, Scenario: scenario}
		return nil
	default:
		return fmt.Errorf("%w: select technique from %s", ErrInvalidTransition, m.state)
	}
}

// SelectFinding switches the selected finding within the technique view.
// The state does not change; the view re-renders with the new finding.
func (m *Machine) SelectFinding(scenario string) error {
	if m.state != StateTechnique {
		return fmt.Errorf("%w: select finding from %s", ErrInvalidTransition, m.state)
	}
	m.sel.Scenario = scenario
	return nil
}

// OpenFinding drills from the technique view into the finding detail.
func (m *Machine) OpenFinding() error {
	if m.state != StateTechnique {
		return fmt.Errorf("%w: open finding from %s", ErrInvalidTransition, m.state)
	}
	if m.sel.Scenario == "" {
		return fmt.Errorf("%w: no finding selected", ErrInvalidTransition)
	}
	m.state = StateFinding
	return nil
}

// ViewInContext opens the path visualization for the selected finding.
func (m *Machine) ViewInContext() error {
	if m.state != StateTechnique {
		return fmt.Errorf("%w: view in context from %s", ErrInvalidTransition, m.state)
	}
	if m.sel.Scenario == "" {
		return fmt.Errorf("%w: no finding selected", ErrInvalidTransition)
	}
	m.state = StatePathVisualization
	return nil
}

// Back walks one step up the drill-down. At the matrix it is a no-op, so
// over-pressing back is harmless.
func (m *Machine) Back() error {
	switch m.state {
	case StateMatrix:
		return nil
	case StateTechnique:
		m.Reset()
		return nil
	case StateFinding, StatePathVisualization:
		m.state = StateTechnique
		return nil
	default:
		return fmt.Errorf("%w: back from %s", ErrInvalidTransition, m.state)
	}
}
