package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_StartsAtMatrix(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, StateMatrix, m.State())
	assert.Equal(t, Selection{}, m.Selection())
}

func TestMachine_DrillDownToFinding(t *testing.T) {
	m := NewMachine()

	require.NoError(t, m.SelectTechnique("Initial Access", "T1566", "Phishing path"))
	assert.Equal(t, StateTechnique, m.State())
	assert.Equal(t, Selection{
		Tactic:       "Initial Access",
		TechniqueKey: "T1566",
		Scenario:     "Phishing path",
	}, m.Selection())

	require.NoError(t, m.OpenFinding())
	assert.Equal(t, StateFinding, m.State())
}

func TestMachine_ViewInContext(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.SelectTechnique("Execution", "T1059", "Interpreter path"))
	require.NoError(t, m.ViewInContext())
	assert.Equal(t, StatePathVisualization, m.State())

	// A step-node click jumps straight back into a technique view.
	require.NoError(t, m.SelectTechnique("Persistence", "T1098", "Account path"))
	assert.Equal(t, StateTechnique, m.State())
	assert.Equal(t, "Persistence", m.Selection().Tactic)
}

func TestMachine_SelectFindingStaysInTechniqueView(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.SelectTechnique("Initial Access", "T1566", "First path"))

	require.NoError(t, m.SelectFinding("Second path"))
	assert.Equal(t, StateTechnique, m.State())
	assert.Equal(t, "Second path", m.Selection().Scenario)
}

func TestMachine_InvalidTransitions(t *testing.T) {
	t.Run("open finding from matrix", func(t *testing.T) {
		m := NewMachine()
		assert.ErrorIs(t, m.OpenFinding(), ErrInvalidTransition)
	})

	t.Run("view in context from matrix", func(t *testing.T) {
		m := NewMachine()
		assert.ErrorIs(t, m.ViewInContext(), ErrInvalidTransition)
	})

	t.Run("select finding from matrix", func(t *testing.T) {
		m := NewMachine()
		assert.ErrorIs(t, m.SelectFinding("x"), ErrInvalidTransition)
	})

	t.Run("select technique from finding detail", func(t *testing.T) {
		m := NewMachine()
		require.NoError(t, m.SelectTechnique("Execution", "T1059", "path"))
		require.NoError(t, m.OpenFinding())
		assert.ErrorIs(t, m.SelectTechnique("Impact", "T1485", "other"), ErrInvalidTransition)
	})

	t.Run("open finding without selection", func(t *testing.T) {
		m := NewMachine()
		require.NoError(t, m.SelectTechnique("Execution", "T1059", ""))
		assert.ErrorIs(t, m.OpenFinding(), ErrInvalidTransition)
		assert.ErrorIs(t, m.ViewInContext(), ErrInvalidTransition)
	})
}

func TestMachine_Back(t *testing.T) {
	m := NewMachine()

	// At the matrix, back is a harmless no-op.
	require.NoError(t, m.Back())
	assert.Equal(t, StateMatrix, m.State())

	require.NoError(t, m.SelectTechnique("Initial Access", "T1566", "path"))
	require.NoError(t, m.OpenFinding())

	require.NoError(t, m.Back())
	assert.Equal(t, StateTechnique, m.State())
	assert.Equal(t, "T1566", m.Selection().TechniqueKey)

	require.NoError(t, m.Back())
	assert.Equal(t, StateMatrix, m.State())
	assert.Equal(t, Selection{}, m.Selection())

	// Pressing back repeatedly never errors.
	require.NoError(t, m.Back())
	assert.Equal(t, StateMatrix, m.State())
}

func TestMachine_BackFromPathVisualization(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.SelectTechnique("Execution", "T1059", "path"))
	require.NoError(t, m.ViewInContext())

	require.NoError(t, m.Back())
	assert.Equal(t, StateTechnique, m.State())
	// The selection survives the step back up.
	assert.Equal(t, "path", m.Selection().Scenario)
}

func TestMachine_ResetClearsSelection(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.SelectTechnique("Execution", "T1059", "path"))
	m.Reset()
	assert.Equal(t, StateMatrix, m.State())
	assert.Equal(t, Selection{}, m.Selection())
}
