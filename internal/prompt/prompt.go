// Package prompt resolves template placeholders into generation prompts and
// validates user supplied template variables.
package prompt

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"reelsmith/internal/campaign"
)

// PersonaToken is replaced with the persona's base description.
const PersonaToken = "{{persona_base}}"

var (
	leftoverToken = regexp.MustCompile(`\{\{[^}]+\}\}`)
	repeatedSpace = regexp.MustCompile(`\s{2,}`)
)

// Resolve fills {{persona_base}} with personaBase and each {{name}} with the
// matching variable in a single pass, strips unresolved tokens and collapses
// runs of whitespace. Substituted values are never scanned for further
// tokens. An empty personaBase leaves the token to be stripped.
func Resolve(template string, variables map[string]string, personaBase string) string {
	resolved := leftoverToken.ReplaceAllStringFunc(template, func(token string) string {
		if token == PersonaToken && personaBase != "" {
			return personaBase
		}
		name := strings.TrimSuffix(strings.TrimPrefix(token, "{{"), "}}")
		return variables[name]
	})
	resolved = repeatedSpace.ReplaceAllString(resolved, " ")
	return strings.TrimSpace(resolved)
}

// ResolveNarration resolves a narration template. Narration never references
// the persona token.
func ResolveNarration(template string, variables map[string]string) string {
	return Resolve(template, variables, "")
}

// ValidateVariables checks provided values against the declared variables and
// returns one message per problem.
func ValidateVariables(declared []campaign.TemplateVariable, provided map[string]string) []string {
	var problems []string
	for _, variable := range declared {
		value := provided[variable.Name]
		label := variable.Label
		if label == "" {
			label = variable.Name
		}
		if variable.Required && strings.TrimSpace(value) == "" {
			problems = append(problems, fmt.Sprintf("field %q is required", label))
		}
		if variable.Type == campaign.VariableSelect && len(variable.Options) > 0 && value != "" {
			if !slices.Contains(variable.Options, value) {
				problems = append(problems, fmt.Sprintf("invalid value for %q", label))
			}
		}
	}
	return problems
}

// WithDefaults returns a copy of provided with declared default values filled
// in for variables left empty.
func WithDefaults(declared []campaign.TemplateVariable, provided map[string]string) map[string]string {
	merged := make(map[string]string, len(provided)+len(declared))
	for name, value := range provided {
		merged[name] = value
	}
	for _, variable := range declared {
		if variable.DefaultValue == "" {
			continue
		}
		if strings.TrimSpace(merged[variable.Name]) == "" {
			merged[variable.Name] = variable.DefaultValue
		}
	}
	return merged
}

// Placeholders lists the distinct {{name}} tokens in template in order of
// first appearance, excluding the persona token.
func Placeholders(template string) []string {
	var names []string
	for _, match := range leftoverToken.FindAllString(template, -1) {
		if match == PersonaToken {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(match, "{{"), "}}")
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}
