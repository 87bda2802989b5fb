package rag

import (
	"fmt"
	"strings"
)

// IntentRule maps an intent to substring keywords.
type IntentRule struct {
	Intent   Intent
	Keywords []string
}

// DefaultIntentRules returns the built-in rule table in evaluation order.
func DefaultIntentRules() []IntentRule {
	return []IntentRule{
		{Intent: IntentStaffLookup, Keywords: []string{"hoca", "ofis", "mail", "iletişim", "kimdir", "başkan", "odası", "yeri"}},
		{Intent: IntentCourseInfo, Keywords: []string{"ders", "kredi", "ects", "akts", "önkoşul", "dönem"}},
		{Intent: IntentPolicyFAQ, Keywords: []string{"yönetmelik", "yönerge", "sınav", "staj", "mezuniyet", "çap", "yatay"}},
		{Intent: IntentRegistration, Keywords: []string{"kayıt", "dondurma", "harç"}},
	}
}

// IntentDetector labels a question with the first rule whose keyword occurs
// in it.
type IntentDetector struct {
	rules []IntentRule
}

// NewIntentDetector returns a detector over rules. Keywords are folded once.
func NewIntentDetector(rules []IntentRule) *IntentDetector {
	folded := make([]IntentRule, 0, len(rules))
	for _, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if k = Fold(strings.TrimSpace(k)); k != "" {
				kws = append(kws, k)
			}
		}
		folded = append(folded, IntentRule{Intent: r.Intent, Keywords: kws})
	}
	return &IntentDetector{rules: folded}
}

// Detect returns UNKNOWN for an empty or unmatched question. A rule naming
// an intent outside the closed set is skipped and reported in err alongside
// the fallback result.
func (d *IntentDetector) Detect(question string) (Intent, error) {
	q := Fold(strings.TrimSpace(question))
	if q == "" {
		return IntentUnknown, nil
	}
	var defect error
	for _, rule := range d.rules {
		if !matchesAny(q, rule.Keywords) {
			continue
		}
		intent, err := ParseIntent(string(rule.Intent))
		if err != nil {
			if defect == nil {
				defect = fmt.Errorf("intent rule skipped: %w", err)
			}
			continue
		}
		return intent, defect
	}
	return IntentUnknown, defect
}

func matchesAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
