package captions

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	defaultVideoWidth  = 1080
	defaultVideoHeight = 1920
	slideDistance      = 40
)

// GenerateASS renders segments as an Advanced SubStation Alpha script using
// the supplied style. Width and height set the script resolution; zero values
// select a 1080x1920 portrait frame.
func GenerateASS(segments []Segment, style Style, width, height int) string {
	if width <= 0 {
		width = defaultVideoWidth
	}
	if height <= 0 {
		height = defaultVideoHeight
	}
	marginV := verticalMargin(style.Position, height)

	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", width)
	fmt.Fprintf(&b, "PlayResY: %d\n", height)
	b.WriteString("WrapStyle: 0\n")
	b.WriteString("ScaledBorderAndShadow: yes\n\n")

	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	borderStyle, outline, outlineColour := 1, style.StrokeWidth, assColour(style.StrokeColor, 1)
	if style.BackgroundOpacity > 0 {
		// Opaque box: OutlineColour paints the box and Outline pads it.
		borderStyle = 3
		outline = max(style.StrokeWidth, style.BorderRadius/2)
		outlineColour = assColour(style.BackgroundColor, style.BackgroundOpacity)
	}
	fmt.Fprintf(&b, "Style: Default,%s,%d,%s,%s,%s,%s,%d,0,0,0,100,100,%d,0,%d,%d,0,%d,40,40,%d,1\n\n",
		style.FontFamily,
		style.FontSize,
		assColour(style.Color, 1),
		assColour(style.Color, 1),
		outlineColour,
		assColour(style.BackgroundColor, style.BackgroundOpacity),
		assBold(style.FontWeight),
		style.LetterSpacing,
		borderStyle,
		outline,
		assAlignment(style.Position),
		marginV,
	)

	b.WriteString("[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, seg := range segments {
		text := escapeASSText(ApplyTransform(strings.TrimSpace(seg.Text), style.TextTransform))
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s%s\n",
			formatASSTimestamp(seg.StartTime),
			formatASSTimestamp(seg.EndTime),
			animationTags(style, seg, width, height, marginV),
			typewriterText(style, seg, text),
		)
	}
	return b.String()
}

func animationTags(style Style, seg Segment, width, height, marginV int) string {
	ms := int(math.Round(style.AnimationDuration * 1000))
	if ms <= 0 {
		return ""
	}
	switch style.Animation {
	case AnimationFadeIn:
		return fmt.Sprintf(`{\fad(%d,0)}`, ms)
	case AnimationSlideUp:
		x := width / 2
		y := anchorY(style.Position, height, marginV)
		return fmt.Sprintf(`{\move(%d,%d,%d,%d,0,%d)}`, x, y+slideDistance, x, y, ms)
	case AnimationPopScale:
		return fmt.Sprintf(`{\fscx80\fscy80\t(0,%d,\fscx100\fscy100)}`, ms)
	case AnimationBounce:
		half := ms / 2
		return fmt.Sprintf(`{\fscy120\t(0,%d,\fscy90)\t(%d,%d,\fscy100)}`, half, half, ms)
	default:
		return ""
	}
}

// typewriterText reveals words progressively with karaoke timing tags.
func typewriterText(style Style, seg Segment, text string) string {
	if style.Animation != AnimationTypewriter {
		return text
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}
	centis := int(math.Round((seg.EndTime - seg.StartTime) * 100 / float64(len(words))))
	var b strings.Builder
	for i, word := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, `{\k%d}%s`, centis, word)
	}
	return b.String()
}

func verticalMargin(position Position, height int) int {
	if position == PositionCenter {
		return 0
	}
	return height / 10
}

func anchorY(position Position, height, marginV int) int {
	switch position {
	case PositionTop:
		return marginV
	case PositionCenter:
		return height / 2
	default:
		return height - marginV
	}
}

func assAlignment(position Position) int {
	switch position {
	case PositionTop:
		return 8
	case PositionCenter:
		return 5
	default:
		return 2
	}
}

func assBold(weight int) int {
	if weight >= 600 {
		return -1
	}
	return 0
}

// assColour converts #RRGGBB plus opacity into &HAABBGGRR.
func assColour(hex string, opacity float64) string {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) == 8 {
		// #RRGGBBAA carries its own alpha.
		if a, err := strconv.ParseUint(hex[6:], 16, 8); err == nil {
			opacity = float64(a) / 255
		}
		hex = hex[:6]
	}
	if len(hex) != 6 {
		hex = "FFFFFF"
	}
	opacity = math.Min(math.Max(opacity, 0), 1)
	alpha := int(math.Round((1 - opacity) * 255))
	rr, gg, bb := strings.ToUpper(hex[0:2]), strings.ToUpper(hex[2:4]), strings.ToUpper(hex[4:6])
	return fmt.Sprintf("&H%02X%s%s%s", alpha, bb, gg, rr)
}

func formatASSTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	cs := int(math.Round(seconds * 100))
	hours := cs / 360_000
	cs %= 360_000
	minutes := cs / 6_000
	cs %= 6_000
	secs := cs / 100
	cs %= 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, cs)
}

func escapeASSText(text string) string {
	replacer := strings.NewReplacer("\r\n", `\N`, "\n", `\N`, "{", "(", "}", ")")
	return replacer.Replace(text)
}
