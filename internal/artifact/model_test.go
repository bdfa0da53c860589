package artifact

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexID_AcceptsStringAndNumber(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"string id", `{"step_id": "2a", "description": "x"}`, "2a"},
		{"integer id", `{"step_id": 3, "description": "x"}`, "3"},
		{"float id", `{"step_id": 1.5, "description": "x"}`, "1.5"},
		{"null id", `{"step_id": null, "description": "x"}`, ""},
		{"absent id", `{"description": "x"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var step MethodStep
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &step))
			assert.Equal(t, tt.want, step.StepID.String())
		})
	}

	var step MethodStep
	assert.Error(t, json.Unmarshal([]byte(`{"step_id": {"nested": true}}`), &step))
}

func TestTechniqueKey(t *testing.T) {
	assert.Equal(t, "T1566", Technique{StixID: "T1566", Name: "Phishing"}.Key())
	assert.Equal(t, "Phishing", Technique{Name: "Phishing"}.Key())
}

func TestAchievable(t *testing.T) {
	yes, no := true, false
	assert.True(t, (&AdversarialMethod{}).Achievable())
	assert.True(t, (&AdversarialMethod{CanAchieve: &yes}).Achievable())
	assert.False(t, (&AdversarialMethod{CanAchieve: &no}).Achievable())
}

func TestTechniqueDisplay(t *testing.T) {
	assert.Equal(t, "T1566 – Phishing", TechniqueDisplay("T1566", "Phishing"))
	assert.Equal(t, "T1566", TechniqueDisplay("T1566", ""))
	assert.Equal(t, "Phishing", TechniqueDisplay("", "Phishing"))
}

func TestFindingFlowSteps(t *testing.T) {
	var f Finding
	assert.Nil(t, f.FlowSteps())

	f.Hypothesis = &Hypothesis{AttackFlowHypothesis: []AttackFlowStep{
		{StepName: "Step 1", StepMitreTechnique: "T1566 – Phishing"},
	}}
	require.Len(t, f.FlowSteps(), 1)
	assert.Equal(t, "T1566 – Phishing", f.FlowSteps()[0].StepMitreTechnique)
}

func TestBreakdown_RoundTrip(t *testing.T) {
	doc := `{"application_name": "demo", "capabilities": {"payments": true}, "interfaces": ["rest"]}`

	var b Breakdown
	require.NoError(t, json.Unmarshal([]byte(doc), &b))
	assert.Equal(t, "demo", b.ApplicationName)
	assert.Len(t, b.Sections, 2)
	assert.JSONEq(t, `{"payments": true}`, string(b.Sections["capabilities"]))

	out, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(out))
}
