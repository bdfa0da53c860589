// Package artifact loads pre-generated security-analysis artifacts and
// normalizes their divergent JSON shapes into one in-memory model.
//
// Upstream artifacts are produced independently per application by a
// generative analysis pipeline and do not share a schema. Everything in this
// package exists to absorb that variance so the rest of the viewer can
// assume a single shape.
package artifact

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Technique identifies one MITRE ATT&CK-style technique. StixID follows the
// T#### or T####.### pattern when present; absent that, Name identifies it.
type Technique struct {
	StixID    string `json:"stix_id,omitempty"`
	Name      string `json:"name"`
	Rationale string `json:"rationale,omitempty"`
	Tactic    string `json:"tactic,omitempty"`
}

// Key returns the identity used to register this technique in an index:
// the STIX id when present, otherwise the display name. The key is stable
// for the lifetime of one loaded dataset.
func (t Technique) Key() string {
	if t.StixID != "" {
		return t.StixID
	}
	return t.Name
}

// FlexID absorbs step identifiers that upstream emits as either a JSON
// number or a string.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("step_id is neither string nor number: %w", err)
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

// MethodStep is one ordered step within an adversarial method.
type MethodStep struct {
	StepID       FlexID   `json:"step_id,omitempty"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities,omitempty"`
	Interfaces   []string `json:"interfaces,omitempty"`
	Data         []string `json:"data,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

// AdversarialMethod is one tactic's narrative within a finding.
type AdversarialMethod struct {
	TacticName         string       `json:"tactic_name"`
	SelectedTechniques []Technique  `json:"selected_techniques,omitempty"`
	MethodSteps        []MethodStep `json:"method_steps,omitempty"`

	// CanAchieve is a tri-state achievability flag: formats that omit it
	// are treated as achievable by default.
	CanAchieve *bool `json:"can_achieve,omitempty"`

	CapabilitiesUsed []string `json:"capabilities_used,omitempty"`
	InterfacesUsed   []string `json:"interfaces_used,omitempty"`
	DataUsed         []string `json:"data_used,omitempty"`
	Preconditions    []string `json:"preconditions,omitempty"`
	Constraints      []string `json:"constraints,omitempty"`
	EvasionNotes     []string `json:"evasion_notes,omitempty"`
	ResultingAccess  []string `json:"resulting_access,omitempty"`
	Comments         string   `json:"comments,omitempty"`
}

// Achievable reports whether this method counts toward the indices.
// An absent flag means achievable.
func (m *AdversarialMethod) Achievable() bool {
	return m.CanAchieve == nil || *m.CanAchieve
}

// AttackFlowStep is a rendering-oriented projection of one step in a chain.
// StepMitreTechnique is free text that may embed one or more T####
// identifiers, optionally separated by semicolons, optionally followed by
// " – <name>".
type AttackFlowStep struct {
	StepName           string `json:"step_name,omitempty"`
	StepDescription    string `json:"step_description,omitempty"`
	StepMitreTactic    string `json:"step_mitre_tactic,omitempty"`
	StepMitreTechnique string `json:"step_mitre_technique,omitempty"`
}

// Hypothesis frames one scenario.
type Hypothesis struct {
	AttackTarget         string           `json:"attack_target,omitempty"`
	Preconditions        string           `json:"preconditions,omitempty"`
	StartingTactic       string           `json:"starting_tactic,omitempty"`
	ObjectiveTactic      string           `json:"objective_tactic,omitempty"`
	AttackFlowHypothesis []AttackFlowStep `json:"attack_flow_hypothesis,omitempty"`
}

// Finding is one complete attack-scenario narrative.
type Finding struct {
	ScenarioName string              `json:"scenario_name"`
	Hypothesis   *Hypothesis         `json:"hypothesis,omitempty"`
	Methods      []AdversarialMethod `json:"adversarial_methods,omitempty"`

	// Method is set when the finding has been specialized to a single
	// technique for detail display.
	Method *AdversarialMethod `json:"method,omitempty"`
}

// FlowSteps returns the scenario's attack-flow steps, or nil when the
// finding carries no hypothesis.
func (f *Finding) FlowSteps() []AttackFlowStep {
	if f.Hypothesis == nil {
		return nil
	}
	return f.Hypothesis.AttackFlowHypothesis
}

// Dataset is the loader's normalized output: one application's findings
// regardless of which upstream shape produced them.
type Dataset struct {
	Application string    `json:"application"`
	Shape       Shape     `json:"shape"`
	Dialect     Dialect   `json:"dialect,omitempty"`
	AttackPaths []Finding `json:"attack_paths"`
}

// Dialect distinguishes the two structural sub-dialects of the direct
// attack-paths shape.
type Dialect string

const (
	// DialectTechniqueFirst marks documents whose methods carry
	// selected_techniques arrays.
	DialectTechniqueFirst Dialect = "technique-first"

	// DialectStepFirst marks documents whose methods carry free-text
	// method_steps and descriptive lists but no selected_techniques.
	DialectStepFirst Dialect = "step-first"
)

// TechniqueDisplay renders the "<stix_id> – <name>" form used in flow-step
// technique text when both parts are present, else whichever is present.
func TechniqueDisplay(stixID, name string) string {
	switch {
	case stixID != "" && name != "":
		return stixID + " – " + name
	case stixID != "":
		return stixID
	default:
		return name
	}
}

// DiscoveryEntry is one record of the collaborator discovery-vectors
// document, passed through untouched for display.
type DiscoveryEntry struct {
	InitialAccessVector string          `json:"initial_access_vector"`
	DiscoveryVectors    json.RawMessage `json:"discovery_vectors"`
}

// Breakdown is the collaborator capability-breakdown document, kept as raw
// sections keyed by capability area.
type Breakdown struct {
	ApplicationName string                     `json:"application_name,omitempty"`
	Sections        map[string]json.RawMessage `json:"-"`
}

func (b *Breakdown) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Sections = make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if k == "application_name" {
			var name string
			if err := json.Unmarshal(v, &name); err == nil {
				b.ApplicationName = name
				continue
			}
		}
		b.Sections[k] = v
	}
	return nil
}

func (b Breakdown) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(b.Sections)+1)
	for k, v := range b.Sections {
		out[k] = v
	}
	if b.ApplicationName != "" {
		name, err := json.Marshal(b.ApplicationName)
		if err != nil {
			return nil, err
		}
		out["application_name"] = name
	}
	return json.Marshal(out)
}

// scenarioNameFor derives a scenario name for findings synthesized from
// per-tactic vectors, preferring the technique name.
func scenarioNameFor(stixID, name string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return stixID
}
