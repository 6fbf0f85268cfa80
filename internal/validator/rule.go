package validator

import (
	"github.com/rotisserie/eris"

	"github.com/rosterwatch/depthsync/internal/model"
)

// RuleType categorizes what aspect of a record a rule checks.
type RuleType string

const (
	RuleSchema      RuleType = "schema"
	RuleBusiness    RuleType = "business"
	RuleConsistency RuleType = "consistency"
	RuleAnomaly     RuleType = "anomaly"
)

// Severity ranks how serious a rule failure is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Weight returns the severity's contribution weight to the overall score.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 10
	case SeverityError:
		return 5
	case SeverityWarning:
		return 2
	default:
		return 1
	}
}

// Result is the outcome of one rule check.
type Result struct {
	Passed       bool    `json:"passed"`
	Score        float64 `json:"score"` // 0.0-1.0
	Message      string  `json:"message"`
	SuggestedFix string  `json:"suggested_fix,omitempty"`
}

// Context carries the historical data and benchmarks rules may consult.
// It is an explicit value passed into every check, so independent records
// can be validated concurrently.
type Context struct {
	Season             int
	Week               int
	Historical         []model.ResolvedRecord
	LeagueAverages     map[string]float64
	PositionBenchmarks map[string]map[string]float64
}

// Rule is one registered validation check. Checks are pure functions over a
// record and optional context; they must not mutate the record.
type Rule struct {
	ID          string
	Name        string
	Type        RuleType
	Severity    Severity
	Description string
	Check       func(rec *model.ResolvedRecord, ctx *Context) Result
}

// Registry is an open, ordered collection of validation rules. Built-ins are
// installed by NewRegistry; callers may register additional rules without
// touching the built-in set. Execution order follows registration order, so
// reports are deterministic.
type Registry struct {
	rules []Rule
	byID  map[string]int
}

// NewRegistry creates a registry pre-loaded with the built-in rules.
func NewRegistry() *Registry {
	r := &Registry{byID: make(map[string]int)}
	for _, rule := range builtinRules() {
		// Built-ins are well-formed by construction.
		_ = r.Register(rule)
	}
	return r
}

// Register adds a rule, replacing any existing rule with the same id in
// place (preserving its position in the execution order).
func (r *Registry) Register(rule Rule) error {
	if rule.ID == "" {
		return eris.New("validator: rule id is required")
	}
	if rule.Check == nil {
		return eris.Errorf("validator: rule %s has no check function", rule.ID)
	}
	if idx, ok := r.byID[rule.ID]; ok {
		r.rules[idx] = rule
		return nil
	}
	r.byID[rule.ID] = len(r.rules)
	r.rules = append(r.rules, rule)
	return nil
}

// Rules returns the registered rules in execution order.
func (r *Registry) Rules() []Rule {
	return r.rules
}

// Get returns a rule by id.
func (r *Registry) Get(id string) (Rule, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return Rule{}, false
	}
	return r.rules[idx], true
}
