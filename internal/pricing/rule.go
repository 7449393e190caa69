package pricing

import (
	"roza/backend/internal/domain"
)

// FindRule returns the first rule in original list order whose type equals
// scope and whose identifying fields match exactly. Brand and article
// comparisons are case-sensitive; values are normalized upstream. Returns nil
// for a nil rule set, an empty rule list, or no match.
func FindRule(ruleSet *domain.PricingRuleSet, scope string, brand string, articleID string, supplier string) *domain.PricingRule {
	if ruleSet == nil || len(ruleSet.Rules) == 0 {
		return nil
	}

	for i := range ruleSet.Rules {
		rule := &ruleSet.Rules[i]
		if rule.Type != scope {
			continue
		}
		switch scope {
		case domain.RuleTypeProduct:
			if rule.Brand == brand && rule.ArticleID == articleID {
				return rule
			}
		case domain.RuleTypeBrand:
			if rule.Brand == brand {
				return rule
			}
		case domain.RuleTypeSupplier:
			if rule.Supplier == supplier {
				return rule
			}
		}
	}
	return nil
}

// ResolveRule finds the single most specific matching rule for a (product,
// offer) pair: product scope, then brand scope, then supplier scope. The
// first non-nil result wins.
func ResolveRule(ruleSet *domain.PricingRuleSet, brand string, articleID string, supplier string) *domain.PricingRule {
	if rule := FindRule(ruleSet, domain.RuleTypeProduct, brand, articleID, supplier); rule != nil {
		return rule
	}
	if rule := FindRule(ruleSet, domain.RuleTypeBrand, brand, articleID, supplier); rule != nil {
		return rule
	}
	return FindRule(ruleSet, domain.RuleTypeSupplier, brand, articleID, supplier)
}
