package reconcile

import (
	"github.com/attacklens/attacklens/internal/artifact"
)

// Target identifies the technique a user drilled into.
type Target struct {
	// Tactic filters methods to one tactic when non-empty.
	Tactic string
	// Key is the index key the technique was registered under.
	Key string
	// Name is the display name, used when the owning method carries no
	// selected_techniques and the technique must be synthesized.
	Name string
}

// Resolution is the answer to "which specific technique, inside which
// method, does this finding most specifically support". MatchedSteps carries
// the flow steps attributed to the technique; AllSteps keeps the full
// unfiltered chain for fallback display.
type Resolution struct {
	Method       *artifact.AdversarialMethod
	Technique    artifact.Technique
	Rationale    string
	MatchedSteps []artifact.AttackFlowStep
	AllSteps     []artifact.AttackFlowStep
}

// Resolve scans a finding's methods for the target technique. A nil result
// means no method/technique combination matched; callers render it as "no
// information available", never an error.
func Resolve(f *artifact.Finding, target Target) *Resolution {
	if f == nil {
		return nil
	}
	allSteps := f.FlowSteps()

	methodsPerTactic := make(map[string]int, len(f.Methods))
	for i := range f.Methods {
		methodsPerTactic[f.Methods[i].TacticName]++
	}

	for i := range f.Methods {
		method := &f.Methods[i]
		if target.Tactic != "" && method.TacticName != target.Tactic {
			continue
		}

		if len(method.SelectedTechniques) > 0 {
			if res := resolveSelected(method, target, allSteps, methodsPerTactic[method.TacticName] == 1); res != nil {
				return res
			}
			continue
		}

		if res := resolveDerived(method, target, allSteps); res != nil {
			return res
		}
	}
	return nil
}

func resolveSelected(method *artifact.AdversarialMethod, target Target, allSteps []artifact.AttackFlowStep, soleMethodForTactic bool) *Resolution {
	for _, tech := range method.SelectedTechniques {
		if tech.Key() != target.Key {
			continue
		}
		matched := MatchSteps(tech, target.Key, method.TacticName, allSteps, soleMethodForTactic)
		return &Resolution{
			Method:       method,
			Technique:    tech,
			Rationale:    tech.Rationale,
			MatchedSteps: matched,
			AllSteps:     allSteps,
		}
	}
	return nil
}

// resolveDerived handles methods without selected_techniques: steps are
// matched purely by tactic plus technique-id equality, sub-technique and
// parent ids considered equivalent in both directions. The technique itself
// is synthesized from the matching step text.
func resolveDerived(method *artifact.AdversarialMethod, target Target, allSteps []artifact.AttackFlowStep) *Resolution {
	targetID := IDFromKey(target.Key)
	if targetID == "" {
		return nil
	}

	var matched []artifact.AttackFlowStep
	name := target.Name

	for _, step := range allSteps {
		if step.StepMitreTactic != method.TacticName {
			continue
		}
		stepMatches := false
		for _, segment := range SplitSegments(step.StepMitreTechnique) {
			for _, id := range ExtractTechniqueIDs(segment) {
				if IDsEquivalent(id, targetID) {
					stepMatches = true
					if name == "" {
						name = DisplayName(segment)
					}
					break
				}
			}
			if stepMatches {
				break
			}
		}
		if stepMatches {
			matched = append(matched, step)
		}
	}

	if len(matched) == 0 {
		return nil
	}

	return &Resolution{
		Method: method,
		Technique: artifact.Technique{
			StixID: targetID,
			Name:   name,
			Tactic: method.TacticName,
		},
		MatchedSteps: matched,
		AllSteps:     allSteps,
	}
}

// Specialize returns a copy of the finding with its Method field set to the
// resolved method, the form detail views consume. Nil when nothing resolves.
func Specialize(f *artifact.Finding, target Target) *artifact.Finding {
	res := Resolve(f, target)
	if res == nil {
		return nil
	}
	specialized := *f
	specialized.Method = res.Method
	return &specialized
}
