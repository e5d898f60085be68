package prompt

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"reelsmith/internal/campaign"
)

func TestResolvePersonaThenVariables(t *testing.T) {
	got := Resolve("{{persona_base}} wearing {{color}}", map[string]string{"color": "red"}, "a robot")
	if got != "a robot wearing red" {
		t.Fatalf("Resolve = %q", got)
	}
}

func TestResolveStripsLeftoverTokens(t *testing.T) {
	if got := Resolve("{{a}} {{b}}", map[string]string{"a": "x"}, ""); got != "x" {
		t.Fatalf("Resolve = %q", got)
	}
	if got := Resolve("{{persona_base}}, smiling", nil, ""); got != ", smiling" {
		t.Fatalf("Resolve without persona = %q", got)
	}
}

func TestResolveCollapsesWhitespace(t *testing.T) {
	got := Resolve("  hello   {{missing}}   world \n\n done ", nil, "")
	if got != "hello world done" {
		t.Fatalf("Resolve = %q", got)
	}
}

func TestResolveIsCaseSensitive(t *testing.T) {
	if got := Resolve("{{Name}} and {{name}}", map[string]string{"name": "ana"}, ""); got != "and ana" {
		t.Fatalf("Resolve = %q", got)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	vars := map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"}
	tmpl := "{{a}}-{{b}}-{{c}}-{{d}}-{{persona_base}}"
	first := Resolve(tmpl, vars, "p")
	for i := 0; i < 20; i++ {
		if got := Resolve(tmpl, vars, "p"); got != first {
			t.Fatalf("iteration %d: %q != %q", i, got, first)
		}
	}
}

func TestResolveDoesNotRescanValues(t *testing.T) {
	vars := map[string]string{"a": "{{b}}", "b": "x", "c": "1", "d": "{{persona_base}}"}
	for i := 0; i < 50; i++ {
		if got := Resolve("{{a}} wearing {{c}} {{d}}", vars, "robot"); got != "{{b}} wearing 1 {{persona_base}}" {
			t.Fatalf("iteration %d: Resolve = %q", i, got)
		}
	}
}

func TestResolveNarration(t *testing.T) {
	got := ResolveNarration("Hi! Today: {{product_name}}. {{call_to_action}}", map[string]string{"product_name": "Sneakers"})
	if got != "Hi! Today: Sneakers." {
		t.Fatalf("ResolveNarration = %q", got)
	}
}

func TestValidateVariables(t *testing.T) {
	declared := []campaign.TemplateVariable{
		{Name: "product_name", Label: "Product", Required: true, Type: campaign.VariableText},
		{Name: "mood", Label: "Mood", Type: campaign.VariableSelect, Options: []string{"relaxed", "cozy"}},
		{Name: "notes", Type: campaign.VariableTextarea},
	}

	got := ValidateVariables(declared, map[string]string{"product_name": "  ", "mood": "angry"})
	want := []string{`field "Product" is required`, `invalid value for "Mood"`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("problems mismatch (-want +got):\n%s", diff)
	}

	if got := ValidateVariables(declared, map[string]string{"product_name": "Lamp", "mood": "cozy"}); len(got) != 0 {
		t.Fatalf("expected no problems, got %v", got)
	}
}

func TestWithDefaults(t *testing.T) {
	declared := []campaign.TemplateVariable{
		{Name: "cta", DefaultValue: "Link in bio"},
		{Name: "mood", DefaultValue: "relaxed"},
	}
	got := WithDefaults(declared, map[string]string{"mood": "cozy", "extra": "x"})
	want := map[string]string{"cta": "Link in bio", "mood": "cozy", "extra": "x"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("{{persona_base}}, {{product}} in {{place}} with {{product}}")
	if diff := cmp.Diff([]string{"product", "place"}, got); diff != "" {
		t.Fatalf("placeholders mismatch:\n%s", diff)
	}
}
