// Package delta decides whether moving from one cluster manifest to another
// is allowed and whether it requires restarting the host service.
package delta

import (
	"fmt"

	"github.com/gobwas/glob"
	"github.com/maxpert/nodedeployer/manifest"
	"github.com/rs/zerolog/log"
)

// Outcome of a valid comparison.
type Outcome int

const (
	RestartNotRequired Outcome = iota
	RestartRequired
)

func (o Outcome) String() string {
	if o == RestartRequired {
		return "restart_required"
	}
	return "restart_not_required"
}

// ChangeKind tells how a parameter differs between the two manifests.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeModified
	ChangeRemoved
)

// SettingChange is one static parameter that differs. Value is the target
// value, empty for removed parameters.
type SettingChange struct {
	Section     string
	Parameter   string
	Value       string
	IsEncrypted bool
	Kind        ChangeKind
}

// Decision is the result of a valid comparison.
type Decision struct {
	Outcome Outcome
	Changes []SettingChange
	Seeds   SeedSetDelta
}

// Validator validates a cluster manifest.
type Validator interface {
	Validate(m *manifest.ClusterManifest) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(m *manifest.ClusterManifest) error

func (f ValidatorFunc) Validate(m *manifest.ClusterManifest) error {
	return f(m)
}

// Analyzer compares manifests. Parameters matching a dynamic pattern
// ("Section/Parameter" globs) are reloadable and never require a restart.
type Analyzer struct {
	validator Validator
	dynamic   []glob.Glob
}

// NewAnalyzer creates an analyzer. A nil validator uses manifest.Validate.
func NewAnalyzer(validator Validator, dynamicPatterns []string) (*Analyzer, error) {
	if validator == nil {
		validator = ValidatorFunc(manifest.Validate)
	}
	a := &Analyzer{
		validator: validator,
		dynamic:   make([]glob.Glob, 0, len(dynamicPatterns)),
	}
	for _, pattern := range dynamicPatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid dynamic parameter pattern %q: %w", pattern, err)
		}
		a.dynamic = append(a.dynamic, g)
	}
	return a, nil
}

// Compare uses the default analyzer, where every parameter is static.
func Compare(current, target *manifest.ClusterManifest) (Decision, error) {
	a, _ := NewAnalyzer(nil, nil)
	return a.Compare(current, target)
}

// Compare validates the move from current to target. An error means the
// update is invalid; otherwise the decision tells whether a restart is
// needed.
func (a *Analyzer) Compare(current, target *manifest.ClusterManifest) (Decision, error) {
	if current == nil || target == nil {
		return Decision{}, manifest.Errorf("both current and target manifests are required")
	}

	currentKind, targetKind := current.Kind(), target.Kind()
	if currentKind != targetKind {
		return Decision{}, manifest.Errorf("infrastructure type cannot change from %s to %s", currentKind, targetKind)
	}

	if err := a.validator.Validate(target); err != nil {
		return Decision{}, fmt.Errorf("target manifest validation failed: %w", err)
	}

	seeds := ComputeSeedSetDelta(SeedSetOf(current), SeedSetOf(target))
	if err := seeds.Check(); err != nil {
		return Decision{}, err
	}

	changes := a.staticChanges(current.FabricSettings, target.FabricSettings)
	decision := Decision{Outcome: RestartNotRequired, Changes: changes, Seeds: seeds}
	if len(changes) > 0 {
		decision.Outcome = RestartRequired
	}

	log.Debug().
		Str("outcome", decision.Outcome.String()).
		Int("changes", len(changes)).
		Int("seed_changes", len(seeds.SymmetricDifference())).
		Msg("Compared manifests")
	return decision, nil
}

func (a *Analyzer) isDynamic(section, parameter string) bool {
	key := section + "/" + parameter
	for _, g := range a.dynamic {
		if g.Match(key) {
			return true
		}
	}
	return false
}

func (a *Analyzer) staticChanges(current, target []manifest.Section) []SettingChange {
	before := indexParameters(current)
	after := indexParameters(target)
	var changes []SettingChange

	for _, s := range target {
		for _, p := range s.Parameters {
			if a.isDynamic(s.Name, p.Name) {
				continue
			}
			old, ok := before[settingKey{s.Name, p.Name}]
			switch {
			case !ok:
				changes = append(changes, change(s.Name, p, ChangeAdded))
			case old.Value != p.Value || old.IsEncrypted != p.IsEncrypted:
				changes = append(changes, change(s.Name, p, ChangeModified))
			}
		}
	}

	for _, s := range current {
		for _, p := range s.Parameters {
			if a.isDynamic(s.Name, p.Name) {
				continue
			}
			if _, ok := after[settingKey{s.Name, p.Name}]; !ok {
				changes = append(changes, SettingChange{
					Section:     s.Name,
					Parameter:   p.Name,
					IsEncrypted: p.IsEncrypted,
					Kind:        ChangeRemoved,
				})
			}
		}
	}
	return changes
}

type settingKey struct {
	section   string
	parameter string
}

func indexParameters(sections []manifest.Section) map[settingKey]manifest.Parameter {
	index := make(map[settingKey]manifest.Parameter)
	for _, s := range sections {
		for _, p := range s.Parameters {
			index[settingKey{s.Name, p.Name}] = p
		}
	}
	return index
}

func change(section string, p manifest.Parameter, kind ChangeKind) SettingChange {
	return SettingChange{
		Section:     section,
		Parameter:   p.Name,
		Value:       p.Value,
		IsEncrypted: p.IsEncrypted,
		Kind:        kind,
	}
}
