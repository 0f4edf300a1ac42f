package plugins

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PublishStrategy decides whether a non-bundled plugin is recorded for the
// auto-upload plugin repository. Injected so the decision can be tested
// without filesystem access.
type PublishStrategy interface {
	ShouldAutoPublish(mainModule string) bool
}

// PublishRule matches a plugin main module, optionally narrowed to specific
// product codes.
type PublishRule struct {
	MainModule   string   `yaml:"mainModule"`
	ProductCodes []string `yaml:"productCodes"`
}

// PublishRules is the parsed allow/deny file. Deny wins over allow.
type PublishRules struct {
	Allow []PublishRule `yaml:"allow"`
	Deny  []PublishRule `yaml:"deny"`
}

// LoadPublishRules reads the allow/deny file.
func LoadPublishRules(path string) (*PublishRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading publish rules: %w", err)
	}
	var rules PublishRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing publish rules: %w", err)
	}
	return &rules, nil
}

// ruleStrategy is the PublishStrategy built once from the parsed rules file
// and the running product code.
type ruleStrategy struct {
	productCode string
	rules       *PublishRules
}

// NewRuleStrategy builds the strategy for productCode.
func NewRuleStrategy(rules *PublishRules, productCode string) PublishStrategy {
	return &ruleStrategy{productCode: productCode, rules: rules}
}

func (s *ruleStrategy) ShouldAutoPublish(mainModule string) bool {
	if matchRule(s.rules.Deny, mainModule, s.productCode) {
		return false
	}
	return matchRule(s.rules.Allow, mainModule, s.productCode)
}

func matchRule(rules []PublishRule, mainModule, productCode string) bool {
	for _, rule := range rules {
		if rule.MainModule != mainModule {
			continue
		}
		if len(rule.ProductCodes) == 0 {
			return true
		}
		for _, code := range rule.ProductCodes {
			if code == productCode {
				return true
			}
		}
	}
	return false
}
