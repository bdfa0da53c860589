package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attacklens/attacklens/internal/artifact"
)

func boolPtr(b bool) *bool { return &b }

func techniqueFirstDataset() *artifact.Dataset {
	return &artifact.Dataset{
		Application: "payments-portal",
		Shape:       artifact.ShapeAttackPaths,
		Dialect:     artifact.DialectTechniqueFirst,
		AttackPaths: []artifact.Finding{
			{
				ScenarioName: "Credential theft via phishing",
				Methods: []artifact.AdversarialMethod{
					{
						TacticName: "Initial Access",
						SelectedTechniques: []artifact.Technique{
							{StixID: "T1566", Name: "Phishing"},
						},
					},
					{
						TacticName: "Persistence",
						SelectedTechniques: []artifact.Technique{
							{Name: "Scheduled Task Abuse"},
						},
					},
				},
			},
			{
				ScenarioName: "Session hijack",
				Methods: []artifact.AdversarialMethod{
					{
						TacticName: "Initial Access",
						SelectedTechniques: []artifact.Technique{
							{StixID: "T1566", Name: "Phishing"},
						},
					},
				},
			},
		},
	}
}

func TestBuildIndexes_SelectedTechniques(t *testing.T) {
	ix := BuildIndexes(techniqueFirstDataset())

	// STIX id keys a technique when present; the name keys it otherwise.
	require.Contains(t, ix.Techniques, "Initial Access")
	assert.Contains(t, ix.Techniques["Initial Access"], "T1566")
	require.Contains(t, ix.Techniques, "Persistence")
	assert.Contains(t, ix.Techniques["Persistence"], "Scheduled Task Abuse")

	// Both findings exercise the same technique.
	findings := ix.FindingsFor("Initial Access", "T1566")
	require.Len(t, findings, 2)
	assert.Equal(t, "Credential theft via phishing", findings[0].ScenarioName)
	assert.Equal(t, "Session hijack", findings[1].ScenarioName)
}

func TestBuildIndexes_AchievabilityFilter(t *testing.T) {
	ds := &artifact.Dataset{
		AttackPaths: []artifact.Finding{
			{
				ScenarioName: "Blocked path",
				Methods: []artifact.AdversarialMethod{
					{
						TacticName: "Initial Access",
						CanAchieve: boolPtr(false),
						SelectedTechniques: []artifact.Technique{
							{StixID: "T1190", Name: "Exploit Public-Facing Application"},
						},
					},
				},
			},
		},
	}

	ix := BuildIndexes(ds)

	// can_achieve: false contributes nothing; an absent flag would count.
	assert.Empty(t, ix.Findings)
	assert.Empty(t, ix.Techniques)
}

func TestBuildIndexes_AbsentFlagIsAchievable(t *testing.T) {
	ds := techniqueFirstDataset()
	ix := BuildIndexes(ds)
	assert.NotEmpty(t, ix.FindingsFor("Initial Access", "T1566"))
}

func TestBuildIndexes_DeduplicatesByScenarioName(t *testing.T) {
	ds := &artifact.Dataset{
		AttackPaths: []artifact.Finding{
			{
				ScenarioName: "Same scenario twice",
				Methods: []artifact.AdversarialMethod{
					{
						TacticName: "Execution",
						SelectedTechniques: []artifact.Technique{
							{StixID: "T1059", Name: "Command Interpreter"},
						},
					},
					{
						TacticName: "Execution",
						SelectedTechniques: []artifact.Technique{
							{StixID: "T1059", Name: "Command Interpreter"},
						},
					},
				},
			},
		},
	}

	ix := BuildIndexes(ds)
	assert.Len(t, ix.FindingsFor("Execution", "T1059"), 1)
}

func TestBuildIndexes_DerivedFromStepText(t *testing.T) {
	ds := &artifact.Dataset{
		AttackPaths: []artifact.Finding{
			{
				ScenarioName: "Step-first scenario",
				Hypothesis: &artifact.Hypothesis{
					AttackFlowHypothesis: []artifact.AttackFlowStep{
						{
							StepMitreTactic:    "Execution",
							StepMitreTechnique: "T1059 – Command Interpreter",
						},
					},
				},
				Methods: []artifact.AdversarialMethod{
					{TacticName: "Execution"},
				},
			},
		},
	}

	ix := BuildIndexes(ds)

	require.Contains(t, ix.Techniques, "Execution")
	tech, ok := ix.Techniques["Execution"]["attack-pattern--t1059"]
	require.True(t, ok, "derived technique keyed by synthesized attack-pattern key")
	assert.Equal(t, "Command Interpreter", tech.Name)
	assert.Equal(t, "T1059", tech.StixID)

	assert.Len(t, ix.FindingsFor("Execution", "attack-pattern--t1059"), 1)
}

func TestBuildIndexes_DerivedSegmentsDedupedPerFinding(t *testing.T) {
	ds := &artifact.Dataset{
		AttackPaths: []artifact.Finding{
			{
				ScenarioName: "Repeated segments",
				Hypothesis: &artifact.Hypothesis{
					AttackFlowHypothesis: []artifact.AttackFlowStep{
						{StepMitreTactic: "Discovery", StepMitreTechnique: "T1046 – Network Service Discovery"},
						{StepMitreTactic: "Discovery", StepMitreTechnique: "T1046 – Network Service Discovery; T1057 – Process Discovery"},
					},
				},
				Methods: []artifact.AdversarialMethod{
					{TacticName: "Discovery"},
				},
			},
		},
	}

	ix := BuildIndexes(ds)

	assert.Len(t, ix.TechniqueOrder["Discovery"], 2)
	assert.Len(t, ix.FindingsFor("Discovery", "attack-pattern--t1046"), 1)
	assert.Len(t, ix.FindingsFor("Discovery", "attack-pattern--t1057"), 1)
}

func TestBuildIndexes_Idempotent(t *testing.T) {
	ds := techniqueFirstDataset()

	first := BuildIndexes(ds)
	second := BuildIndexes(ds)

	assert.Equal(t, first.TacticOrder, second.TacticOrder)
	assert.Equal(t, first.TechniqueOrder, second.TechniqueOrder)
	require.Equal(t, len(first.Findings), len(second.Findings))
	for key, findings := range first.Findings {
		assert.Len(t, second.Findings[key], len(findings), "finding count for %s", key)
	}
}

func TestBuildIndexes_TacticOrderFollowsKillChain(t *testing.T) {
	ds := &artifact.Dataset{
		AttackPaths: []artifact.Finding{
			{
				ScenarioName: "Out of order registration",
				Methods: []artifact.AdversarialMethod{
					{
						TacticName:         "Impact",
						SelectedTechniques: []artifact.Technique{{StixID: "T1485", Name: "Data Destruction"}},
					},
					{
						TacticName:         "Initial Access",
						SelectedTechniques: []artifact.Technique{{StixID: "T1566", Name: "Phishing"}},
					},
				},
			},
		},
	}

	ix := BuildIndexes(ds)
	assert.Equal(t, []string{"Initial Access", "Impact"}, ix.TacticOrder)
}

func TestBuildIndexes_TechniqueKeyUniqueness(t *testing.T) {
	ix := BuildIndexes(techniqueFirstDataset())

	for tactic, order := range ix.TechniqueOrder {
		seen := make(map[string]struct{})
		for _, key := range order {
			_, dup := seen[key]
			assert.False(t, dup, "duplicate key %q under %q", key, tactic)
			seen[key] = struct{}{}
		}
	}
}
