package rag

import "testing"

func TestDetectDefaultRules(t *testing.T) {
	d := NewIntentDetector(DefaultIntentRules())
	cases := []struct {
		question string
		want     Intent
	}{
		{"Ahmet hocanın ofisi nerede?", IntentStaffLookup},
		{"CSE3063 kaç AKTS?", IntentCourseInfo},
		{"Staj kaç iş günü?", IntentPolicyFAQ},
		{"Kayıt dondurma nasıl yapılır?", IntentRegistration},
		{"Bölüm başkanı kimdir?", IntentStaffLookup},
		{"Merhaba", IntentUnknown},
		{"", IntentUnknown},
	}
	for _, tc := range cases {
		got, err := d.Detect(tc.question)
		if err != nil {
			t.Fatalf("Detect(%q) error: %v", tc.question, err)
		}
		if got != tc.want {
			t.Errorf("Detect(%q) = %s, want %s", tc.question, got, tc.want)
		}
	}
}

func TestDetectFirstRuleWins(t *testing.T) {
	d := NewIntentDetector([]IntentRule{
		{Intent: IntentRegistration, Keywords: []string{"ders"}},
		{Intent: IntentCourseInfo, Keywords: []string{"ders"}},
	})
	if got, _ := d.Detect("ders kaydı"); got != IntentRegistration {
		t.Fatalf("expected first matching rule, got %s", got)
	}
}

func TestDetectReportsUnknownIntentRule(t *testing.T) {
	d := NewIntentDetector([]IntentRule{
		{Intent: Intent("SMALL_TALK"), Keywords: []string{"merhaba"}},
		{Intent: IntentCourseInfo, Keywords: []string{"merhaba"}},
	})
	got, err := d.Detect("Merhaba")
	if err == nil {
		t.Fatalf("expected a defect error for the unknown rule")
	}
	if got != IntentCourseInfo {
		t.Fatalf("expected the next valid rule to match, got %s", got)
	}
}

func TestDetectFoldsTurkishCapitals(t *testing.T) {
	d := NewIntentDetector(DefaultIntentRules())
	if got, _ := d.Detect("İLETİŞİM BİLGİSİ"); got != IntentStaffLookup {
		t.Fatalf("expected STAFF_LOOKUP, got %s", got)
	}
}
