package captions

import "strings"

// Position controls the vertical placement of a caption track.
type Position string

const (
	PositionTop    Position = "top"
	PositionCenter Position = "center"
	PositionBottom Position = "bottom"
)

// Animation names the entrance effect applied to each caption segment.
type Animation string

const (
	AnimationFadeIn     Animation = "fade-in"
	AnimationSlideUp    Animation = "slide-up"
	AnimationPopScale   Animation = "pop-scale"
	AnimationTypewriter Animation = "typewriter"
	AnimationBounce     Animation = "bounce"
	AnimationNone       Animation = "none"
)

// TextTransform controls letter casing of rendered captions.
type TextTransform string

const (
	TransformNone       TextTransform = "none"
	TransformUppercase  TextTransform = "uppercase"
	TransformLowercase  TextTransform = "lowercase"
	TransformCapitalize TextTransform = "capitalize"
)

// Style is a fully resolved caption style.
type Style struct {
	FontFamily        string        `json:"fontFamily"`
	FontSize          int           `json:"fontSize"`
	FontWeight        int           `json:"fontWeight"`
	Color             string        `json:"color"`
	BackgroundColor   string        `json:"backgroundColor"`
	BackgroundOpacity float64       `json:"backgroundOpacity"`
	StrokeColor       string        `json:"strokeColor"`
	StrokeWidth       int           `json:"strokeWidth"`
	Position          Position      `json:"position"`
	Animation         Animation     `json:"animation"`
	AnimationDuration float64       `json:"animationDuration"`
	LetterSpacing     int           `json:"letterSpacing"`
	TextTransform     TextTransform `json:"textTransform"`
	BorderRadius      int           `json:"borderRadius"`
}

// StyleOverrides carries user supplied style fields. Nil fields fall back to
// the preset value.
type StyleOverrides struct {
	FontFamily        *string        `json:"fontFamily,omitempty"`
	FontSize          *int           `json:"fontSize,omitempty"`
	FontWeight        *int           `json:"fontWeight,omitempty"`
	Color             *string        `json:"color,omitempty"`
	BackgroundColor   *string        `json:"backgroundColor,omitempty"`
	BackgroundOpacity *float64       `json:"backgroundOpacity,omitempty"`
	StrokeColor       *string        `json:"strokeColor,omitempty"`
	StrokeWidth       *int           `json:"strokeWidth,omitempty"`
	Position          *Position      `json:"position,omitempty"`
	Animation         *Animation     `json:"animation,omitempty"`
	AnimationDuration *float64       `json:"animationDuration,omitempty"`
	LetterSpacing     *int           `json:"letterSpacing,omitempty"`
	TextTransform     *TextTransform `json:"textTransform,omitempty"`
	BorderRadius      *int           `json:"borderRadius,omitempty"`
}

// Preset is a named, ready-made caption style.
type Preset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Style       Style  `json:"style"`
}

// DefaultStyle returns the style used when no preset is selected.
func DefaultStyle() Style {
	return Style{
		FontFamily:        "Inter",
		FontSize:          32,
		FontWeight:        700,
		Color:             "#FFFFFF",
		BackgroundColor:   "#000000",
		BackgroundOpacity: 0.7,
		StrokeColor:       "#000000",
		StrokeWidth:       0,
		Position:          PositionBottom,
		Animation:         AnimationFadeIn,
		AnimationDuration: 0.3,
		LetterSpacing:     0,
		TextTransform:     TransformNone,
		BorderRadius:      8,
	}
}

var presets = []Preset{
	{
		ID:          "viral-pop",
		Name:        "Viral Pop",
		Description: "Short-form style with pop animation",
		Style: Style{
			FontFamily: "Inter", FontSize: 36, FontWeight: 900,
			Color: "#FFFFFF", BackgroundColor: "#FF0050", BackgroundOpacity: 0.9,
			StrokeColor: "#000000", StrokeWidth: 2, Position: PositionCenter,
			Animation: AnimationPopScale, AnimationDuration: 0.3, LetterSpacing: 1,
			TextTransform: TransformUppercase, BorderRadius: 12,
		},
	},
	{
		ID:          "elegant-minimal",
		Name:        "Elegant Minimal",
		Description: "Clean serif captions with a soft fade",
		Style: Style{
			FontFamily: "Georgia", FontSize: 28, FontWeight: 400,
			Color: "#FFFFFF", BackgroundColor: "#000000", BackgroundOpacity: 0.5,
			StrokeColor: "#000000", StrokeWidth: 0, Position: PositionBottom,
			Animation: AnimationFadeIn, AnimationDuration: 0.5, LetterSpacing: 2,
			TextTransform: TransformNone, BorderRadius: 4,
		},
	},
	{
		ID:          "bold-impact",
		Name:        "Bold Impact",
		Description: "Large high-contrast text that slides in",
		Style: Style{
			FontFamily: "Arial Black", FontSize: 42, FontWeight: 900,
			Color: "#FFD700", BackgroundColor: "#000000", BackgroundOpacity: 0.85,
			StrokeColor: "#FF4500", StrokeWidth: 3, Position: PositionCenter,
			Animation: AnimationSlideUp, AnimationDuration: 0.25, LetterSpacing: 0,
			TextTransform: TransformUppercase, BorderRadius: 0,
		},
	},
	{
		ID:          "neon-glow",
		Name:        "Neon Glow",
		Description: "Vivid neon colours with a bounce",
		Style: Style{
			FontFamily: "Courier New", FontSize: 30, FontWeight: 700,
			Color: "#00FF88", BackgroundColor: "#1A0033", BackgroundOpacity: 0.8,
			StrokeColor: "#FF00FF", StrokeWidth: 2, Position: PositionBottom,
			Animation: AnimationBounce, AnimationDuration: 0.4, LetterSpacing: 1,
			TextTransform: TransformNone, BorderRadius: 16,
		},
	},
	{
		ID:          "typewriter",
		Name:        "Typewriter",
		Description: "Retro typewriter reveal",
		Style: Style{
			FontFamily: "Courier New", FontSize: 26, FontWeight: 400,
			Color: "#00FF00", BackgroundColor: "#0D0D0D", BackgroundOpacity: 0.9,
			StrokeColor: "#000000", StrokeWidth: 0, Position: PositionBottom,
			Animation: AnimationTypewriter, AnimationDuration: 0.8, LetterSpacing: 3,
			TextTransform: TransformNone, BorderRadius: 0,
		},
	},
	{
		ID:          "karaoke",
		Name:        "Karaoke",
		Description: "Progressive highlight, one line at a time",
		Style: Style{
			FontFamily: "Inter", FontSize: 34, FontWeight: 800,
			Color: "#FFFFFF", BackgroundColor: "#6C2BD9", BackgroundOpacity: 0.85,
			StrokeColor: "#000000", StrokeWidth: 1, Position: PositionBottom,
			Animation: AnimationSlideUp, AnimationDuration: 0.2, LetterSpacing: 0,
			TextTransform: TransformNone, BorderRadius: 24,
		},
	},
}

// Presets returns a copy of the built-in presets in display order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// PresetByID looks up a preset by identifier.
func PresetByID(id string) (Preset, bool) {
	id = strings.TrimSpace(id)
	for _, preset := range presets {
		if preset.ID == id {
			return preset, true
		}
	}
	return Preset{}, false
}

// ResolveStyle merges overrides onto the named preset. Unknown or empty preset
// ids start from DefaultStyle.
func ResolveStyle(presetID string, overrides *StyleOverrides) Style {
	style := DefaultStyle()
	if preset, ok := PresetByID(presetID); ok {
		style = preset.Style
	}
	if overrides == nil {
		return style
	}
	if overrides.FontFamily != nil {
		style.FontFamily = *overrides.FontFamily
	}
	if overrides.FontSize != nil {
		style.FontSize = *overrides.FontSize
	}
	if overrides.FontWeight != nil {
		style.FontWeight = *overrides.FontWeight
	}
	if overrides.Color != nil {
		style.Color = *overrides.Color
	}
	if overrides.BackgroundColor != nil {
		style.BackgroundColor = *overrides.BackgroundColor
	}
	if overrides.BackgroundOpacity != nil {
		style.BackgroundOpacity = *overrides.BackgroundOpacity
	}
	if overrides.StrokeColor != nil {
		style.StrokeColor = *overrides.StrokeColor
	}
	if overrides.StrokeWidth != nil {
		style.StrokeWidth = *overrides.StrokeWidth
	}
	if overrides.Position != nil {
		style.Position = *overrides.Position
	}
	if overrides.Animation != nil {
		style.Animation = *overrides.Animation
	}
	if overrides.AnimationDuration != nil {
		style.AnimationDuration = *overrides.AnimationDuration
	}
	if overrides.LetterSpacing != nil {
		style.LetterSpacing = *overrides.LetterSpacing
	}
	if overrides.TextTransform != nil {
		style.TextTransform = *overrides.TextTransform
	}
	if overrides.BorderRadius != nil {
		style.BorderRadius = *overrides.BorderRadius
	}
	return style
}
