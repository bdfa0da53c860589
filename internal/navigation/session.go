package navigation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/attacklens/attacklens/internal/artifact"
	"github.com/attacklens/attacklens/internal/logger"
	"github.com/attacklens/attacklens/internal/reconcile"
)

// Loader is the slice of the artifact loader a session needs.
type Loader interface {
	Load(ctx context.Context, app string) (*artifact.Dataset, error)
}

// Session owns one viewer's state: the loaded dataset, its derived indices
// and the drill-down machine. Every navigation rebuilds the dataset and
// indices from scratch; nothing survives a navigation away.
type Session struct {
	ID string

	loader Loader
	log    *logger.Logger

	mu         sync.Mutex
	machine    *Machine
	app        string
	navID      string
	loading    bool
	dataset    *artifact.Dataset
	indexes    *reconcile.Indexes
	loadErr    error
	lastAccess time.Time
}

func NewSession(loader Loader, log *logger.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		ID:         id,
		loader:     loader,
		log:        log.WithComponent("session").WithSessionID(id),
		machine:    NewMachine(),
		lastAccess: time.Now(),
	}
}

// Navigate loads the application's dataset into the session. The view state
// clears immediately and the load is tagged with a fresh navigation
// identity; if a newer navigation starts before this one finishes, the late
// result is discarded instead of overwriting the newer view.
func (s *Session) Navigate(ctx context.Context, app string) error {
	ctx, span := s.log.StartSpan(ctx, "session.navigate")
	defer span.End()
	log := s.log.WithApplication(app)

	s.mu.Lock()
	nav := uuid.NewString()
	s.navID = nav
	s.app = app
	s.loading = true
	s.dataset = nil
	s.indexes = nil
	s.loadErr = nil
	s.machine.Reset()
	s.touchLocked()
	s.mu.Unlock()

	ds, err := s.loader.Load(ctx, app)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.navID != nav {
		log.Debugw("Discarding stale navigation result")
		return nil
	}
	s.loading = false
	if err != nil {
		s.loadErr = err
		return err
	}
	s.dataset = ds
	s.indexes = reconcile.BuildIndexes(ds)
	return nil
}

// View is a consistent snapshot of the session for rendering.
type View struct {
	Application string    `json:"application,omitempty"`
	State       State     `json:"state"`
	Selection   Selection `json:"selection"`
	Loading     bool      `json:"loading"`
	Unavailable bool      `json:"unavailable"`
	// Message carries the user-facing unavailable text, empty otherwise.
	Message string `json:"message,omitempty"`
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	v := View{
		Application: s.app,
		State:       s.machine.State(),
		Selection:   s.machine.Selection(),
		Loading:     s.loading,
	}
	if s.loadErr != nil {
		v.Unavailable = true
		v.Message = s.loadErr.Error()
	}
	return v
}

// Data returns the dataset and indices for read-only use. Both are nil while
// loading or unavailable.
func (s *Session) Data() (*artifact.Dataset, *reconcile.Indexes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.dataset, s.indexes
}

// SelectTechnique handles a matrix cell click (or a step-node click from the
// path view): the technique view opens with the first finding registered for
// the technique preselected.
func (s *Session) SelectTechnique(tactic, techniqueKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	scenario := ""
	if s.indexes != nil {
		if findings := s.indexes.FindingsFor(tactic, techniqueKey); len(findings) > 0 {
			scenario = findings[0].ScenarioName
		}
	}
	return s.machine.SelectTechnique(tactic, techniqueKey, scenario)
}

// SelectStepNode resolves a clicked path-visualization node back to a
// technique and jumps straight to its technique view, bypassing the finding
// state. An unresolvable node is a no-op on the machine and reports false.
func (s *Session) SelectStepNode(step artifact.AttackFlowStep) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	tactic, key, ok := s.resolveNodeLocked(step)
	if !ok {
		return false, nil
	}

	scenario := ""
	if s.indexes != nil {
		if findings := s.indexes.FindingsFor(tactic, key); len(findings) > 0 {
			scenario = findings[0].ScenarioName
		}
	}
	if err := s.machine.SelectTechnique(tactic, key, scenario); err != nil {
		return false, err
	}
	return true, nil
}

// resolveNodeLocked matches the node's tactic/technique text against the
// technique index: a registered STIX-id key first, then the synthesized
// attack-pattern key, with sub-technique ids equivalent to their parents.
func (s *Session) resolveNodeLocked(step artifact.AttackFlowStep) (tactic, key string, ok bool) {
	if s.indexes == nil {
		return "", "", false
	}
	tactic = step.StepMitreTactic
	perTactic := s.indexes.Techniques[tactic]
	if len(perTactic) == 0 {
		return "", "", false
	}

	for _, segment := range reconcile.SplitSegments(step.StepMitreTechnique) {
		for _, id := range reconcile.ExtractTechniqueIDs(segment) {
			if _, exists := perTactic[id]; exists {
				return tactic, id, true
			}
			synth := reconcile.SynthKey(id)
			if _, exists := perTactic[synth]; exists {
				return tactic, synth, true
			}
			for registered := range perTactic {
				if reconcile.IDsEquivalent(reconcile.IDFromKey(registered), id) {
					return tactic, registered, true
				}
			}
		}
	}
	return "", "", false
}

func (s *Session) SelectFinding(scenario string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.machine.SelectFinding(scenario)
}

func (s *Session) OpenFinding() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.machine.OpenFinding()
}

func (s *Session) ViewInContext() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.machine.ViewInContext()
}

func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.machine.Back()
}

// LastAccess supports idle-session expiry.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

func (s *Session) touchLocked() {
	s.lastAccess = time.Now()
}
