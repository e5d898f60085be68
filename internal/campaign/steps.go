package campaign

import (
	"fmt"
	"strings"
)

// Step names one stage of the execution pipeline.
type Step string

const (
	StepImage    Step = "image"
	StepVideo    Step = "video"
	StepAudio    Step = "audio"
	StepLipSync  Step = "lip-sync"
	StepCompose  Step = "compose"
	StepCaptions Step = "captions"
)

var canonicalSteps = []Step{StepImage, StepVideo, StepAudio, StepLipSync, StepCompose, StepCaptions}

// CanonicalSteps returns every step in execution order.
func CanonicalSteps() []Step {
	out := make([]Step, len(canonicalSteps))
	copy(out, canonicalSteps)
	return out
}

// ParseStep validates a step name.
func ParseStep(value string) (Step, error) {
	normalized := Step(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "lipsync" || normalized == "lip_sync" {
		normalized = StepLipSync
	}
	for _, step := range canonicalSteps {
		if step == normalized {
			return step, nil
		}
	}
	return "", fmt.Errorf("unknown step %q", value)
}

// ParseSteps validates a list of step names, rejecting the first unknown name.
func ParseSteps(values []string) ([]Step, error) {
	steps := make([]Step, 0, len(values))
	for _, value := range values {
		step, err := ParseStep(value)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// OrderSteps returns the requested steps in canonical order with duplicates
// and unknown names dropped. An empty request selects every step.
func OrderSteps(requested []Step) []Step {
	if len(requested) == 0 {
		return CanonicalSteps()
	}
	wanted := make(map[Step]struct{}, len(requested))
	for _, step := range requested {
		wanted[step] = struct{}{}
	}
	ordered := make([]Step, 0, len(wanted))
	for _, step := range canonicalSteps {
		if _, ok := wanted[step]; ok {
			ordered = append(ordered, step)
		}
	}
	return ordered
}
