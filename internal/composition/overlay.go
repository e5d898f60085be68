package composition

import (
	"fmt"
	"strconv"
	"strings"

	"reelsmith/internal/campaign"
)

// Overlay defaults applied when the template leaves a field empty.
const (
	DefaultFontFamily      = "Arial"
	DefaultFontSize        = 32
	DefaultColor           = "#FFFFFF"
	DefaultBackgroundColor = "#00000080"
	DefaultOpacity         = 0.9
	DefaultPadding         = 16
)

// Gravity names the anchor point for an overlay position.
func Gravity(position campaign.OverlayPosition) string {
	switch position {
	case campaign.OverlayTopLeft:
		return "north_west"
	case campaign.OverlayTopCenter:
		return "north"
	case campaign.OverlayTopRight:
		return "north_east"
	case campaign.OverlayCenter:
		return "center"
	case campaign.OverlayBottomLeft:
		return "south_west"
	case campaign.OverlayBottomRight:
		return "south_east"
	default:
		return "south"
	}
}

// WithDefaults fills empty overlay fields.
func WithDefaults(cfg campaign.OverlayConfig) campaign.OverlayConfig {
	if strings.TrimSpace(cfg.FontFamily) == "" {
		cfg.FontFamily = DefaultFontFamily
	}
	if cfg.FontSize <= 0 {
		cfg.FontSize = DefaultFontSize
	}
	if strings.TrimSpace(cfg.Color) == "" {
		cfg.Color = DefaultColor
	}
	if strings.TrimSpace(cfg.BackgroundColor) == "" {
		cfg.BackgroundColor = DefaultBackgroundColor
	}
	if cfg.Opacity <= 0 || cfg.Opacity > 1 {
		cfg.Opacity = DefaultOpacity
	}
	if cfg.Padding < 0 {
		cfg.Padding = 0
	} else if cfg.Padding == 0 {
		cfg.Padding = DefaultPadding
	}
	if cfg.Position == "" {
		cfg.Position = campaign.OverlayBottomCenter
	}
	return cfg
}

// drawTextPosition returns drawtext x/y expressions for a gravity.
func drawTextPosition(gravity string, padding int) (string, string) {
	pad := strconv.Itoa(padding)
	x := "(w-text_w)/2"
	y := "(h-text_h)/2"
	switch {
	case strings.HasSuffix(gravity, "_west"):
		x = pad
	case strings.HasSuffix(gravity, "_east"):
		x = "w-text_w-" + pad
	}
	switch {
	case strings.HasPrefix(gravity, "north"):
		y = pad
	case strings.HasPrefix(gravity, "south"):
		y = "h-text_h-" + pad
	}
	return x, y
}

// DrawTextFilter builds the ffmpeg drawtext filter that renders the contents
// of textFile with overlay styling. fontFile takes precedence over the font
// family when set.
func DrawTextFilter(textFile string, overlay campaign.OverlayConfig, fontFile string) string {
	overlay = WithDefaults(overlay)
	x, y := drawTextPosition(Gravity(overlay.Position), overlay.Padding)

	opts := []string{"textfile='" + escapeFilterValue(textFile) + "'"}
	if fontFile = strings.TrimSpace(fontFile); fontFile != "" {
		opts = append(opts, "fontfile='"+escapeFilterValue(fontFile)+"'")
	} else {
		opts = append(opts, "font='"+escapeFilterValue(overlay.FontFamily)+"'")
	}
	opts = append(opts,
		"fontsize="+strconv.Itoa(overlay.FontSize),
		"fontcolor="+ffmpegColor(overlay.Color, overlay.Opacity),
		"box=1",
		"boxcolor="+ffmpegColor(overlay.BackgroundColor, 0),
		"boxborderw="+strconv.Itoa(overlay.Padding/2),
		"x="+x,
		"y="+y,
	)
	return "drawtext=" + strings.Join(opts, ":")
}

// ffmpegColor converts #RRGGBB or #RRGGBBAA into ffmpeg's 0xRRGGBB@alpha.
// A non-zero opacity overrides any alpha carried by the colour.
func ffmpegColor(color string, opacity float64) string {
	hex := strings.TrimPrefix(strings.TrimSpace(color), "#")
	alpha := 1.0
	switch len(hex) {
	case 8:
		if v, err := strconv.ParseUint(hex[6:], 16, 8); err == nil {
			alpha = float64(v) / 255
		}
		hex = hex[:6]
	case 6:
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	default:
		return color
	}
	if opacity > 0 {
		alpha = opacity
	}
	return fmt.Sprintf("0x%s@%s", strings.ToUpper(hex), strconv.FormatFloat(alpha, 'f', 2, 64))
}

// escapeFilterValue prepares value for use inside a single-quoted filter
// option, where only the quote itself needs breaking out.
func escapeFilterValue(value string) string {
	return strings.ReplaceAll(value, "'", `'\''`)
}
