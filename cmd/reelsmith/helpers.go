package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// titleCase renders identifiers like "lip_sync" as "Lip Sync".
func titleCase(value string) string {
	return titleCaser.String(strings.ReplaceAll(value, "_", " "))
}

// parseVariables turns repeated key=value flags into a variables map.
func parseVariables(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q (want name=value)", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

func formatTimestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatDuration(start, end *time.Time) string {
	if start == nil || end == nil || end.Before(*start) {
		return "-"
	}
	return end.Sub(*start).Round(100 * time.Millisecond).String()
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if max <= 0 || len(runes) <= max {
		return value
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func sortedKeys(values map[string]string) []string {
	return slices.Sorted(maps.Keys(values))
}
