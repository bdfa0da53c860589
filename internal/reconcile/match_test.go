package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/attacklens/attacklens/internal/artifact"
)

func TestExtractTechniqueIDs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single id", "T1566", []string{"T1566"}},
		{"sub-technique", "T1098.003 account manipulation", []string{"T1098.003"}},
		{"lowercase normalized", "t1059 command interpreter", []string{"T1059"}},
		{"multiple ids", "T1566; T1078 – Valid Accounts", []string{"T1566", "T1078"}},
		{"embedded in prose", "uses phishing (T1566.002) against staff", []string{"T1566.002"}},
		{"no id", "social engineering", nil},
		{"too short", "T156", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTechniqueIDs(tt.text))
		})
	}
}

func TestIDsEquivalent(t *testing.T) {
	// Sub-technique ids match their parent in both directions, case
	// insensitively.
	assert.True(t, IDsEquivalent("T1098.003", "T1098"))
	assert.True(t, IDsEquivalent("T1098", "T1098.003"))
	assert.True(t, IDsEquivalent("T1098", "T1098"))
	assert.True(t, IDsEquivalent("t1098.003", "T1098"))

	// Sibling sub-techniques stay distinct.
	assert.False(t, IDsEquivalent("T1098.003", "T1098.001"))

	assert.False(t, IDsEquivalent("T1098", "T1566"))
	assert.False(t, IDsEquivalent("", "T1566"))
	assert.False(t, IDsEquivalent("T1566", ""))
}

func TestSynthKey(t *testing.T) {
	assert.Equal(t, "attack-pattern--t1059", SynthKey("T1059"))
	assert.Equal(t, "attack-pattern--t1059-003", SynthKey("T1059.003"))
}

func TestIDFromKey(t *testing.T) {
	assert.Equal(t, "T1566", IDFromKey("T1566"))
	assert.Equal(t, "T1566.002", IDFromKey("T1566.002"))
	assert.Equal(t, "T1059", IDFromKey("attack-pattern--t1059"))
	assert.Equal(t, "T1059.003", IDFromKey("attack-pattern--t1059-003"))
	assert.Equal(t, "", IDFromKey("Valid Accounts"))
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		segment string
		want    string
	}{
		{"en dash", "T1059 – Command Interpreter", "Command Interpreter"},
		{"spaced hyphen", "T1059 - Command Interpreter", "Command Interpreter"},
		{"no delimiter falls back to segment", "T1059 Command Interpreter", "T1059 Command Interpreter"},
		{"bare id", "T1059", "T1059"},
		{"trims whitespace", "  T1566 – Phishing  ", "Phishing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.segment))
		})
	}
}

func TestSplitSegments(t *testing.T) {
	assert.Equal(t,
		[]string{"T1566 – Phishing", "T1078 – Valid Accounts"},
		SplitSegments("T1566 – Phishing; T1078 – Valid Accounts"))
	assert.Equal(t, []string{"T1566"}, SplitSegments("T1566;"))
	assert.Empty(t, SplitSegments(" ; "))
}

func TestSignificantKeywords(t *testing.T) {
	// Short words and stoplisted words drop out.
	assert.Equal(t, []string{"command", "scripting", "interpreter"},
		SignificantKeywords("Command and Scripting Interpreter"))
	assert.Equal(t, []string{"exfiltration", "channel"},
		SignificantKeywords("Exfiltration Over Other C2 Channel"))
	assert.Empty(t, SignificantKeywords("Via The Web"))
}

func TestMatchSteps_IDStrategyWinsOverKeyword(t *testing.T) {
	target := artifact.Technique{StixID: "T1566", Name: "Phishing"}
	steps := []artifact.AttackFlowStep{
		{StepMitreTactic: "Initial Access", StepMitreTechnique: "T1566 – Phishing"},
		{StepMitreTactic: "Initial Access", StepMitreTechnique: "phishing awareness evasion"},
	}

	matched := MatchSteps(target, "T1566", "Initial Access", steps, false)

	// The id strategy matches the first step, so the keyword pass never runs.
	assert.Len(t, matched, 1)
	assert.Equal(t, "T1566 – Phishing", matched[0].StepMitreTechnique)
}

func TestMatchSteps_KeywordFallback(t *testing.T) {
	target := artifact.Technique{StixID: "T1078", Name: "Valid Accounts"}
	steps := []artifact.AttackFlowStep{
		{StepMitreTactic: "Persistence", StepMitreTechnique: "reuse stolen accounts"},
		{StepMitreTactic: "Execution", StepMitreTechnique: "reuse stolen accounts"},
	}

	matched := MatchSteps(target, "T1078", "Persistence", steps, false)

	// Keyword containment only applies when the step sits in the method's
	// tactic; "accounts" is a significant word of the technique name.
	assert.Len(t, matched, 1)
	assert.Equal(t, "Persistence", matched[0].StepMitreTactic)
}

func TestMatchSteps_SoleMethodFallbackKeepsTacticSteps(t *testing.T) {
	target := artifact.Technique{StixID: "T1190", Name: "Exploit Public-Facing Application"}
	steps := []artifact.AttackFlowStep{
		{StepMitreTactic: "Initial Access", StepMitreTechnique: "no identifying text"},
		{StepMitreTactic: "Execution", StepMitreTechnique: "no identifying text"},
	}

	// Not the sole method: nothing matches, nothing is kept.
	assert.Empty(t, MatchSteps(target, "T1190", "Initial Access", steps, false))

	// Sole method for the tactic: all of that tactic's steps are kept.
	matched := MatchSteps(target, "T1190", "Initial Access", steps, true)
	assert.Len(t, matched, 1)
	assert.Equal(t, "Initial Access", matched[0].StepMitreTactic)
}

func TestMatchSteps_SubTechniqueEquivalence(t *testing.T) {
	target := artifact.Technique{StixID: "T1098.003", Name: "Additional Cloud Roles"}
	steps := []artifact.AttackFlowStep{
		{StepMitreTactic: "Persistence", StepMitreTechnique: "T1098 – Account Manipulation"},
	}

	matched := MatchSteps(target, "T1098.003", "Persistence", steps, false)
	assert.Len(t, matched, 1)

	// And the reverse direction: parent target, sub-technique in the text.
	parent := artifact.Technique{StixID: "T1098", Name: "Account Manipulation"}
	steps[0].StepMitreTechnique = "T1098.003 – Additional Cloud Roles"
	matched = MatchSteps(parent, "T1098", "Persistence", steps, false)
	assert.Len(t, matched, 1)
}
