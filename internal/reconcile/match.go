// Package reconcile maps the free-text, partially-identified technique
// references found in loaded findings back to canonical technique entries,
// and builds the lookup indices the viewer drills through.
//
// The matching here is heuristic by nature: upstream emits technique
// references as free text and the rules below are best effort, not provable.
// Callers must tolerate imprecise matches; a miss is a valid outcome.
package reconcile

import (
	"regexp"
	"strings"

	"github.com/attacklens/attacklens/internal/artifact"
)

var techniqueIDPattern = regexp.MustCompile(`[Tt]\d{4}(?:\.\d{3})?`)

// ExtractTechniqueIDs pulls every T####[.###] identifier out of free text,
// normalized to upper-case T.
func ExtractTechniqueIDs(text string) []string {
	raw := techniqueIDPattern.FindAllString(text, -1)
	if len(raw) == 0 {
		return nil
	}
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, "T"+id[1:])
	}
	return ids
}

// BaseID strips a sub-technique suffix: T1098.003 -> T1098.
func BaseID(id string) string {
	if dot := strings.IndexByte(id, '.'); dot >= 0 {
		return id[:dot]
	}
	return id
}

// IDsEquivalent reports whether two technique ids refer to the same
// technique for matching purposes. A sub-technique is equivalent to its
// parent in both directions: T1098.003 matches T1098 and vice versa.
// Sibling sub-techniques are distinct; T1098.003 never matches T1098.001.
func IDsEquivalent(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	a = strings.ToUpper(a)
	b = strings.ToUpper(b)
	return a == b || BaseID(a) == b || a == BaseID(b)
}

// SynthKey turns an extracted technique id into the synthesized index key
// used for techniques derived from step text: lower-cased, dots replaced
// with dashes, e.g. T1059.003 -> attack-pattern--t1059-003.
func SynthKey(id string) string {
	return "attack-pattern--" + strings.ReplaceAll(strings.ToLower(id), ".", "-")
}

// IDFromKey recovers a technique id from an index key, whether the key is a
// plain STIX id ("T1566.002") or a synthesized one
// ("attack-pattern--t1566-002"). Returns "" when the key carries no id.
func IDFromKey(key string) string {
	if rest, ok := strings.CutPrefix(key, "attack-pattern--"); ok {
		key = strings.ReplaceAll(rest, "-", ".")
	}
	ids := ExtractTechniqueIDs(key)
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// nameDelimiters are the separators upstream uses between a technique id and
// its display name inside one step segment. The en dash is the documented
// form; the spaced hyphen shows up in older runs.
var nameDelimiters = []string{" – ", " - "}

// DisplayName extracts the human-readable technique name from one step
// segment such as "T1059 – Command Interpreter". Falls back to the trimmed
// segment when no delimiter is present.
func DisplayName(segment string) string {
	for _, delim := range nameDelimiters {
		if idx := strings.Index(segment, delim); idx >= 0 {
			if name := strings.TrimSpace(segment[idx+len(delim):]); name != "" {
				return name
			}
		}
	}
	return strings.TrimSpace(segment)
}

// SplitSegments splits a step's technique text on semicolons; each segment
// references at most one technique.
func SplitSegments(text string) []string {
	parts := strings.Split(text, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// keywordStoplist holds words long enough to pass the length filter but too
// generic to identify a technique.
var keywordStoplist = map[string]struct{}{
	"with":    {},
	"from":    {},
	"into":    {},
	"over":    {},
	"this":    {},
	"that":    {},
	"through": {},
	"using":   {},
	"based":   {},
	"other":   {},
}

// SignificantKeywords reduces a technique name to the words worth matching
// on: longer than three characters and not on the stoplist.
func SignificantKeywords(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !isWordRune(r)
	})
	out := make([]string, 0, len(fields))
	for _, w := range fields {
		if len(w) <= 3 {
			continue
		}
		if _, stopped := keywordStoplist[w]; stopped {
			continue
		}
		out = append(out, w)
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '-' || r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// StepMatchInput is everything a step-matching strategy may consult.
type StepMatchInput struct {
	// Target is the technique the user drilled into.
	Target artifact.Technique
	// TargetKey is the index key the target was registered under.
	TargetKey string
	// Step is the flow step under consideration.
	Step artifact.AttackFlowStep
	// MethodTactic is the owning method's tactic name.
	MethodTactic string
}

// StepMatchStrategy is one rule in the ordered table that decides whether a
// flow step belongs to a technique. Keeping the rules in a table rather than
// an inline conditional chain lets each heuristic be tested and tuned on its
// own.
type StepMatchStrategy struct {
	Name  string
	Match func(in StepMatchInput) bool
}

// StepMatchStrategies is the rule table, in order of preference.
var StepMatchStrategies = []StepMatchStrategy{
	{
		// Direct identifier match: any T#### embedded in the step's
		// technique text equals the target's id, sub-technique and
		// parent considered equivalent.
		Name: "stix-id",
		Match: func(in StepMatchInput) bool {
			targetID := in.Target.StixID
			if targetID == "" {
				targetID = IDFromKey(in.TargetKey)
			}
			if targetID == "" {
				return false
			}
			for _, id := range ExtractTechniqueIDs(in.Step.StepMitreTechnique) {
				if IDsEquivalent(id, targetID) {
					return true
				}
			}
			return false
		},
	},
	{
		// Keyword containment: a significant word of the technique name
		// appears in the step's technique text, but only when the step
		// sits in the same tactic as the owning method.
		Name: "keyword",
		Match: func(in StepMatchInput) bool {
			if in.Step.StepMitreTactic != in.MethodTactic {
				return false
			}
			keywords := SignificantKeywords(in.Target.Name)
			if len(keywords) == 0 {
				return false
			}
			haystack := strings.ToLower(in.Step.StepMitreTechnique)
			for _, kw := range keywords {
				if strings.Contains(haystack, kw) {
					return true
				}
			}
			return false
		},
	},
}

// MatchSteps filters steps to those supporting the target technique, trying
// each strategy in the rule table. When no strategy matches any step and the
// owning method is the finding's only method for its tactic, every step of
// that tactic is kept instead.
func MatchSteps(target artifact.Technique, targetKey string, methodTactic string, steps []artifact.AttackFlowStep, soleMethodForTactic bool) []artifact.AttackFlowStep {
	var matched []artifact.AttackFlowStep
	for _, strategy := range StepMatchStrategies {
		for _, step := range steps {
			if strategy.Match(StepMatchInput{
				Target:       target,
				TargetKey:    targetKey,
				Step:         step,
				MethodTactic: methodTactic,
			}) {
				matched = append(matched, step)
			}
		}
		if len(matched) > 0 {
			return matched
		}
	}

	if soleMethodForTactic {
		for _, step := range steps {
			if step.StepMitreTactic == methodTactic {
				matched = append(matched, step)
			}
		}
	}
	return matched
}
