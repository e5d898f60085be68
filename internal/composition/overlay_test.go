package composition

import (
	"strings"
	"testing"

	"reelsmith/internal/campaign"
)

func TestGravityMapping(t *testing.T) {
	cases := map[campaign.OverlayPosition]string{
		campaign.OverlayTopLeft:      "north_west",
		campaign.OverlayTopCenter:    "north",
		campaign.OverlayTopRight:     "north_east",
		campaign.OverlayCenter:       "center",
		campaign.OverlayBottomLeft:   "south_west",
		campaign.OverlayBottomCenter: "south",
		campaign.OverlayBottomRight:  "south_east",
		"":                           "south",
	}
	for position, want := range cases {
		if got := Gravity(position); got != want {
			t.Fatalf("Gravity(%q) = %q, want %q", position, got, want)
		}
	}
}

func TestDrawTextPosition(t *testing.T) {
	cases := []struct {
		gravity string
		x, y    string
	}{
		{"north_west", "16", "16"},
		{"north", "(w-text_w)/2", "16"},
		{"center", "(w-text_w)/2", "(h-text_h)/2"},
		{"south_east", "w-text_w-16", "h-text_h-16"},
		{"south", "(w-text_w)/2", "h-text_h-16"},
	}
	for _, tc := range cases {
		x, y := drawTextPosition(tc.gravity, 16)
		if x != tc.x || y != tc.y {
			t.Fatalf("drawTextPosition(%s) = %s,%s want %s,%s", tc.gravity, x, y, tc.x, tc.y)
		}
	}
}

func TestWithDefaults(t *testing.T) {
	got := WithDefaults(campaign.OverlayConfig{Enabled: true})
	if got.FontFamily != "Arial" || got.FontSize != 32 || got.Color != "#FFFFFF" ||
		got.BackgroundColor != "#00000080" || got.Opacity != 0.9 || got.Padding != 16 ||
		got.Position != campaign.OverlayBottomCenter {
		t.Fatalf("unexpected defaults %+v", got)
	}
	kept := WithDefaults(campaign.OverlayConfig{FontSize: 48, Color: "#FF0000", Padding: 4})
	if kept.FontSize != 48 || kept.Color != "#FF0000" || kept.Padding != 4 {
		t.Fatalf("explicit values overwritten: %+v", kept)
	}
}

func TestFFmpegColor(t *testing.T) {
	cases := []struct {
		in      string
		opacity float64
		want    string
	}{
		{"#ffffff", 0.9, "0xFFFFFF@0.90"},
		{"#00000080", 0, "0x000000@0.50"},
		{"#f00", 0, "0xFF0000@1.00"},
		{"white", 0, "white"},
	}
	for _, tc := range cases {
		if got := ffmpegColor(tc.in, tc.opacity); got != tc.want {
			t.Fatalf("ffmpegColor(%q, %v) = %q, want %q", tc.in, tc.opacity, got, tc.want)
		}
	}
}

func TestDrawTextFilterPrefersFontFile(t *testing.T) {
	filter := DrawTextFilter("/tmp/o.txt", campaign.OverlayConfig{}, "/fonts/Inter.ttf")
	if !strings.Contains(filter, "fontfile='/fonts/Inter.ttf'") || strings.Contains(filter, "font='") {
		t.Fatalf("unexpected filter %q", filter)
	}
	if !strings.HasPrefix(filter, "drawtext=textfile='/tmp/o.txt'") {
		t.Fatalf("unexpected filter prefix %q", filter)
	}
}
