package classifier

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-form-reader/internal/form"
)

// Rule targets in a rules file
const (
	MatchLabel = "label"
	MatchName  = "name"
)

// RuleFile is the YAML shape of a custom rules file:
//
//	rules:
//	  - type: SALARY
//	    match: label
//	    patterns: ["desired pay", "期望工资"]
//	    section: compensation
type RuleFile struct {
	Rules []CustomRule `yaml:"rules"`
}

// CustomRule is one user-supplied rule. Match selects the label (default) or
// name/id view; Section optionally boosts the rule like the built-in themes.
type CustomRule struct {
	Type     string   `yaml:"type"`
	Match    string   `yaml:"match"`
	Patterns []string `yaml:"patterns"`
	Exclude  []string `yaml:"exclude"`
	Section  string   `yaml:"section"`
}

// LoadRules reads a YAML rules file and installs its rules ahead of the
// built-in tables
func (c *Classifier) LoadRules(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}
	return c.LoadRulesYAML(data)
}

// LoadRulesYAML installs rules from YAML held in memory
func (c *Classifier) LoadRulesYAML(data []byte) error {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse rules file: %w", err)
	}

	var labels, names []compiledRule
	for i, cr := range file.Rules {
		t, ok := form.ParseTaxonomy(cr.Type)
		if !ok || t == form.TaxonomyUnknown {
			return fmt.Errorf("rule %d: unknown type %q", i, cr.Type)
		}
		if len(cr.Patterns) == 0 {
			return fmt.Errorf("rule %d: no patterns", i)
		}
		compiled, err := compileRule(Rule{Type: t, Patterns: cr.Patterns, Exclude: cr.Exclude})
		if err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		if cr.Section != "" {
			if compiled.section, err = regexp.Compile(cr.Section); err != nil {
				return fmt.Errorf("rule %d: invalid section pattern: %w", i, err)
			}
		}

		switch strings.ToLower(strings.TrimSpace(cr.Match)) {
		case "", MatchLabel:
			labels = append(labels, compiled)
		case MatchName:
			names = append(names, compiled)
		default:
			return fmt.Errorf("rule %d: unknown match target %q", i, cr.Match)
		}
	}

	c.label.addCustom(labels...)
	c.name.addCustom(names...)
	c.logger.Info("custom rules loaded",
		zap.Int("label_rules", len(labels)),
		zap.Int("name_rules", len(names)))
	return nil
}
