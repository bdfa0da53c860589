package artifact

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed tactics.yaml
var tacticsYAML []byte

// TacticStage is one of the twelve kill-chain stages a comprehensive
// analysis document is keyed by.
type TacticStage struct {
	// Key is the document field name, e.g. "initial_access".
	Key string `yaml:"key"`
	// Name is the display name, e.g. "Initial Access".
	Name string `yaml:"name"`
}

var (
	tacticStages  []TacticStage
	tacticByKey   map[string]TacticStage
	tacticByName  map[string]TacticStage
	tacticNameSet map[string]struct{}
)

func init() {
	var doc struct {
		Tactics []TacticStage `yaml:"tactics"`
	}
	if err := yaml.Unmarshal(tacticsYAML, &doc); err != nil {
		panic(fmt.Sprintf("artifact: embedded tactics.yaml is invalid: %v", err))
	}
	tacticStages = doc.Tactics
	tacticByKey = make(map[string]TacticStage, len(tacticStages))
	tacticByName = make(map[string]TacticStage, len(tacticStages))
	tacticNameSet = make(map[string]struct{}, len(tacticStages))
	for _, s := range tacticStages {
		tacticByKey[s.Key] = s
		tacticByName[s.Name] = s
		tacticNameSet[s.Name] = struct{}{}
	}
}

// TacticStages returns the twelve stages in kill-chain order.
func TacticStages() []TacticStage {
	out := make([]TacticStage, len(tacticStages))
	copy(out, tacticStages)
	return out
}

// TacticNameForKey maps a document key such as "privilege_escalation" to its
// display name. The second result is false for unknown keys.
func TacticNameForKey(key string) (string, bool) {
	s, ok := tacticByKey[key]
	return s.Name, ok
}

// IsTacticName reports whether name is one of the twelve stage display names.
func IsTacticName(name string) bool {
	_, ok := tacticNameSet[name]
	return ok
}

// TacticRank returns the kill-chain position of a tactic display name, or
// len(stages) for names outside the taxonomy so they sort after known ones.
func TacticRank(name string) int {
	for i, s := range tacticStages {
		if s.Name == name {
			return i
		}
	}
	return len(tacticStages)
}
