package reconcile

import (
	"sort"

	"github.com/attacklens/attacklens/internal/artifact"
)

// TechniqueIndex maps tactic name -> technique key -> technique. Keys are
// either the technique's STIX id, its display name, or a synthesized
// attack-pattern key for techniques derived from step text; within one index
// a technique's key never changes.
type TechniqueIndex map[string]map[string]artifact.Technique

// FindingIndex maps "<tactic>::<techniqueKey>" -> the findings that exercise
// that technique, in first-seen order, deduplicated by scenario name.
type FindingIndex map[string][]artifact.Finding

// FindingKey builds the composite index key for a (tactic, technique) pair.
func FindingKey(tactic, techniqueKey string) string {
	return tactic + "::" + techniqueKey
}

// Indexes is the derived lookup structure built once per loaded dataset.
// The order slices make iteration deterministic: tactics in kill-chain
// order, techniques in first-seen order.
type Indexes struct {
	Techniques     TechniqueIndex
	Findings       FindingIndex
	TacticOrder    []string
	TechniqueOrder map[string][]string
}

// TechniquesFor returns the tactic's techniques in registration order.
func (ix *Indexes) TechniquesFor(tactic string) []artifact.Technique {
	keys := ix.TechniqueOrder[tactic]
	out := make([]artifact.Technique, 0, len(keys))
	for _, k := range keys {
		out = append(out, ix.Techniques[tactic][k])
	}
	return out
}

// FindingsFor returns the findings registered under a (tactic, technique)
// pair, in first-seen order.
func (ix *Indexes) FindingsFor(tactic, techniqueKey string) []artifact.Finding {
	return ix.Findings[FindingKey(tactic, techniqueKey)]
}

type indexBuilder struct {
	ix *Indexes
	// seenScenarios dedupes findings per composite key by scenario name.
	seenScenarios map[string]map[string]struct{}
	// seenTactics tracks first-seen tactic order before the kill-chain sort.
	seenTactics map[string]struct{}
}

// BuildIndexes derives the technique and finding indices from a normalized
// dataset in a single deterministic traversal. Methods whose achievability
// flag is present and false contribute nothing.
func BuildIndexes(ds *artifact.Dataset) *Indexes {
	b := &indexBuilder{
		ix: &Indexes{
			Techniques:     make(TechniqueIndex),
			Findings:       make(FindingIndex),
			TechniqueOrder: make(map[string][]string),
		},
		seenScenarios: make(map[string]map[string]struct{}),
		seenTactics:   make(map[string]struct{}),
	}

	for fi := range ds.AttackPaths {
		finding := &ds.AttackPaths[fi]

		// Derived-technique registration dedupes per finding+tactic so one
		// finding cannot register the same segment twice.
		seenDerived := make(map[string]map[string]struct{})

		for mi := range finding.Methods {
			method := &finding.Methods[mi]
			if !method.Achievable() {
				continue
			}
			if len(method.SelectedTechniques) > 0 {
				b.registerSelected(method, finding)
			} else {
				b.registerDerived(method, finding, seenDerived)
			}
		}
	}

	b.sortTactics()
	return b.ix
}

func (b *indexBuilder) registerSelected(method *artifact.AdversarialMethod, finding *artifact.Finding) {
	tactic := method.TacticName
	for _, tech := range method.SelectedTechniques {
		key := tech.Key()
		if key == "" {
			continue
		}
		if tech.Tactic == "" {
			tech.Tactic = tactic
		}
		b.register(tactic, key, tech, finding)
	}
}

// registerDerived synthesizes techniques from the flow steps matching the
// method's tactic: each semicolon-separated segment with a recognizable
// T#### pattern becomes one technique keyed attack-pattern--t####.
func (b *indexBuilder) registerDerived(method *artifact.AdversarialMethod, finding *artifact.Finding, seenDerived map[string]map[string]struct{}) {
	tactic := method.TacticName
	if seenDerived[tactic] == nil {
		seenDerived[tactic] = make(map[string]struct{})
	}

	for _, step := range finding.FlowSteps() {
		if step.StepMitreTactic != tactic {
			continue
		}
		for _, segment := range SplitSegments(step.StepMitreTechnique) {
			ids := ExtractTechniqueIDs(segment)
			if len(ids) == 0 {
				continue
			}
			id := ids[0]
			key := SynthKey(id)
			if _, dup := seenDerived[tactic][key]; dup {
				continue
			}
			seenDerived[tactic][key] = struct{}{}

			tech := artifact.Technique{
				StixID: id,
				Name:   DisplayName(segment),
				Tactic: tactic,
			}
			b.register(tactic, key, tech, finding)
		}
	}
}

func (b *indexBuilder) register(tactic, key string, tech artifact.Technique, finding *artifact.Finding) {
	if b.ix.Techniques[tactic] == nil {
		b.ix.Techniques[tactic] = make(map[string]artifact.Technique)
	}
	if _, exists := b.ix.Techniques[tactic][key]; !exists {
		b.ix.Techniques[tactic][key] = tech
		b.ix.TechniqueOrder[tactic] = append(b.ix.TechniqueOrder[tactic], key)
	}
	if _, seen := b.seenTactics[tactic]; !seen {
		b.seenTactics[tactic] = struct{}{}
		b.ix.TacticOrder = append(b.ix.TacticOrder, tactic)
	}

	composite := FindingKey(tactic, key)
	if b.seenScenarios[composite] == nil {
		b.seenScenarios[composite] = make(map[string]struct{})
	}
	if _, dup := b.seenScenarios[composite][finding.ScenarioName]; dup {
		return
	}
	b.seenScenarios[composite][finding.ScenarioName] = struct{}{}
	b.ix.Findings[composite] = append(b.ix.Findings[composite], *finding)
}

// sortTactics orders tactics by kill-chain position; names outside the
// taxonomy keep their first-seen order after the known ones.
func (b *indexBuilder) sortTactics() {
	sort.SliceStable(b.ix.TacticOrder, func(i, j int) bool {
		return artifact.TacticRank(b.ix.TacticOrder[i]) < artifact.TacticRank(b.ix.TacticOrder[j])
	})
}
