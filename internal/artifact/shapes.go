package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// vector is the per-tactic unit shared by the comprehensive and
// initial-access shapes: one technique attempt with its own achievability
// and steps.
type vector struct {
	TechniqueStixID string       `json:"technique_stix_id,omitempty"`
	TechniqueName   string       `json:"technique_name,omitempty"`
	Rationale       string       `json:"rationale,omitempty"`
	CanAchieve      *bool        `json:"can_achieve,omitempty"`
	MethodSteps     []MethodStep `json:"method_steps,omitempty"`

	CapabilitiesUsed []string `json:"capabilities_used,omitempty"`
	InterfacesUsed   []string `json:"interfaces_used,omitempty"`
	DataUsed         []string `json:"data_used,omitempty"`
	Preconditions    []string `json:"preconditions,omitempty"`
	Constraints      []string `json:"constraints,omitempty"`
	EvasionNotes     []string `json:"evasion_notes,omitempty"`
	ResultingAccess  []string `json:"resulting_access,omitempty"`
	Comments         string   `json:"comments,omitempty"`
}

type comprehensiveStage struct {
	Vectors []vector `json:"vectors"`
}

type attackPathsDocument struct {
	AttackPaths []Finding `json:"attack_paths"`
}

type initialAccessDocument struct {
	ApplicationName      string   `json:"application_name,omitempty"`
	InitialAccessVectors []vector `json:"initial_access_vectors"`
}

func decodeStrictJSON(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// parseComprehensive validates and normalizes the twelve-tactic document.
// Detection is structural: at least one stage key must be present with an
// object value. One Finding is synthesized per vector whose can_achieve flag
// is present and true; this dialect carries the flag on every vector, so an
// absent flag is treated as not established rather than achievable.
func parseComprehensive(app string, data []byte) (*Dataset, error) {
	var raw map[string]json.RawMessage
	if err := decodeStrictJSON(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: comprehensive document is not a JSON object: %v", ErrShapeMismatch, err)
	}

	stagesSeen := 0
	var findings []Finding

	for _, stage := range TacticStages() {
		section, ok := raw[stage.Key]
		if !ok {
			continue
		}
		var parsed comprehensiveStage
		if err := decodeStrictJSON(section, &parsed); err != nil {
			return nil, fmt.Errorf("%w: stage %q is malformed: %v", ErrShapeMismatch, stage.Key, err)
		}
		stagesSeen++

		for _, vec := range parsed.Vectors {
			if vec.CanAchieve == nil || !*vec.CanAchieve {
				continue
			}
			findings = append(findings, findingFromVector(vec, stage.Name))
		}
	}

	if stagesSeen == 0 {
		return nil, fmt.Errorf("%w: no tactic stage keys present", ErrShapeMismatch)
	}
	// Every shape yields a non-empty finding list or falls through; a
	// document whose vectors are all unachievable carries nothing to view.
	if len(findings) == 0 {
		return nil, fmt.Errorf("%w: no achievable vectors in any stage", ErrShapeMismatch)
	}

	return &Dataset{
		Application: app,
		Shape:       ShapeComprehensive,
		AttackPaths: findings,
	}, nil
}

// parseAttackPaths validates the direct shape and detects its dialect
// structurally: any method carrying selected_techniques makes the document
// technique-first; otherwise it is step-first.
func parseAttackPaths(app string, data []byte) (*Dataset, error) {
	var doc attackPathsDocument
	if err := decodeStrictJSON(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: not an attack_paths document: %v", ErrShapeMismatch, err)
	}
	if doc.AttackPaths == nil {
		return nil, fmt.Errorf("%w: missing attack_paths field", ErrShapeMismatch)
	}
	if len(doc.AttackPaths) == 0 {
		return nil, fmt.Errorf("%w: attack_paths is empty", ErrShapeMismatch)
	}
	for i, f := range doc.AttackPaths {
		if f.ScenarioName == "" {
			return nil, fmt.Errorf("%w: attack_paths[%d] has no scenario_name", ErrShapeMismatch, i)
		}
	}

	dialect := DialectStepFirst
	for _, f := range doc.AttackPaths {
		for _, m := range f.Methods {
			if len(m.SelectedTechniques) > 0 {
				dialect = DialectTechniqueFirst
				break
			}
		}
		if dialect == DialectTechniqueFirst {
			break
		}
	}

	return &Dataset{
		Application: app,
		Shape:       ShapeAttackPaths,
		Dialect:     dialect,
		AttackPaths: doc.AttackPaths,
	}, nil
}

// parseInitialAccess normalizes the initial-access vectors document into
// single-tactic findings. Unlike the comprehensive shape, an absent
// can_achieve flag is treated as achievable here; only an explicit false
// excludes a vector.
func parseInitialAccess(app string, data []byte) (*Dataset, error) {
	var doc initialAccessDocument
	if err := decodeStrictJSON(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: not an initial_access_vectors document: %v", ErrShapeMismatch, err)
	}
	if doc.InitialAccessVectors == nil {
		return nil, fmt.Errorf("%w: missing initial_access_vectors field", ErrShapeMismatch)
	}

	const tacticName = "Initial Access"

	var findings []Finding
	for _, vec := range doc.InitialAccessVectors {
		if vec.CanAchieve != nil && !*vec.CanAchieve {
			continue
		}
		findings = append(findings, findingFromVector(vec, tacticName))
	}
	if len(findings) == 0 {
		return nil, fmt.Errorf("%w: no achievable initial-access vectors", ErrShapeMismatch)
	}

	return &Dataset{
		Application: app,
		Shape:       ShapeInitialAccess,
		AttackPaths: findings,
	}, nil
}

// findingFromVector synthesizes one finding from a per-tactic vector: a
// single-element selected_techniques list and a hypothesis whose flow steps
// project the method steps onto the owning tactic.
func findingFromVector(vec vector, tacticName string) Finding {
	technique := Technique{
		StixID:    vec.TechniqueStixID,
		Name:      vec.TechniqueName,
		Rationale: vec.Rationale,
		Tactic:    tacticName,
	}

	method := AdversarialMethod{
		TacticName:         tacticName,
		SelectedTechniques: []Technique{technique},
		MethodSteps:        vec.MethodSteps,
		CanAchieve:         vec.CanAchieve,
		CapabilitiesUsed:   vec.CapabilitiesUsed,
		InterfacesUsed:     vec.InterfacesUsed,
		DataUsed:           vec.DataUsed,
		Preconditions:      vec.Preconditions,
		Constraints:        vec.Constraints,
		EvasionNotes:       vec.EvasionNotes,
		ResultingAccess:    vec.ResultingAccess,
		Comments:           vec.Comments,
	}

	display := TechniqueDisplay(vec.TechniqueStixID, vec.TechniqueName)

	steps := make([]AttackFlowStep, 0, len(vec.MethodSteps))
	for _, ms := range vec.MethodSteps {
		name := ms.Description
		if ms.StepID != "" {
			name = fmt.Sprintf("Step %s", ms.StepID)
		}
		steps = append(steps, AttackFlowStep{
			StepName:           name,
			StepDescription:    ms.Description,
			StepMitreTactic:    tacticName,
			StepMitreTechnique: display,
		})
	}

	return Finding{
		ScenarioName: scenarioNameFor(vec.TechniqueStixID, vec.TechniqueName),
		Hypothesis: &Hypothesis{
			StartingTactic:       tacticName,
			ObjectiveTactic:      tacticName,
			AttackFlowHypothesis: steps,
		},
		Methods: []AdversarialMethod{method},
	}
}
