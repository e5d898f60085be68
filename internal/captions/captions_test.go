package captions

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEstimateDuration(t *testing.T) {
	words150 := strings.TrimSpace(strings.Repeat("word ", 150))
	if got := EstimateDuration(words150); got != 60 {
		t.Fatalf("150 words: got %v, want 60", got)
	}
	if got := EstimateDuration("one two three four five six seven eight nine ten"); got != 5 {
		t.Fatalf("10 words: got %v, want floor of 5", got)
	}
	if got := EstimateDuration(""); got != 5 {
		t.Fatalf("empty: got %v, want 5", got)
	}
}

func TestGenerateSegmentsTimed(t *testing.T) {
	got := GenerateSegments("one two three four five", 10, ModeTimed)
	want := []Segment{
		{Index: 1, Text: "one two three", StartTime: 0, EndTime: 5},
		{Index: 2, Text: "four five", StartTime: 5, EndTime: 10},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("timed segments mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateSegmentsSentence(t *testing.T) {
	got := GenerateSegments("Hi there. How are you?", 5, ModeSentence)
	want := []Segment{
		{
			Index: 1, Text: "Hi there.", StartTime: 0, EndTime: 2,
			Words: []Word{{Text: "Hi", StartTime: 0, EndTime: 1}, {Text: "there.", StartTime: 1, EndTime: 2}},
		},
		{
			Index: 2, Text: "How are you?", StartTime: 2, EndTime: 5,
			Words: []Word{
				{Text: "How", StartTime: 2, EndTime: 3},
				{Text: "are", StartTime: 3, EndTime: 4},
				{Text: "you?", StartTime: 4, EndTime: 5},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sentence segments mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateSegmentsWord(t *testing.T) {
	got := GenerateSegments("a b", 5, ModeWord)
	want := []Segment{
		{Index: 1, Text: "a", StartTime: 0, EndTime: 2.5, Words: []Word{{Text: "a", StartTime: 0, EndTime: 2.5}}},
		{Index: 2, Text: "b", StartTime: 2.5, EndTime: 5, Words: []Word{{Text: "b", StartTime: 2.5, EndTime: 5}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("word segments mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateSegmentsEmptyText(t *testing.T) {
	if got := GenerateSegments("   ", 10, ModeTimed); len(got) != 0 {
		t.Fatalf("expected no segments, got %d", len(got))
	}
}

func TestParseMode(t *testing.T) {
	if mode, err := ParseMode(""); err != nil || mode != ModeTimed {
		t.Fatalf("empty mode: got %q, %v", mode, err)
	}
	if mode, err := ParseMode("Sentence"); err != nil || mode != ModeSentence {
		t.Fatalf("sentence: got %q, %v", mode, err)
	}
	if _, err := ParseMode("paragraph"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestGenerateSRTRoundTrip(t *testing.T) {
	segments := GenerateSegments("one two three four five", 10, ModeTimed)
	srt := GenerateSRT(segments)

	want := "1\n00:00:00,000 --> 00:00:05,000\none two three\n\n2\n00:00:05,000 --> 00:00:10,000\nfour five\n"
	if srt != want {
		t.Fatalf("unexpected srt:\n%s", srt)
	}

	parsed, err := ParseSRT(srt)
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if diff := cmp.Diff(segments, parsed); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	if issues := ValidateSRT(srt); len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
}

func TestValidateSRTReportsProblems(t *testing.T) {
	if issues := ValidateSRT(""); len(issues) != 1 || issues[0] != "empty_subtitle_file" {
		t.Fatalf("empty: %v", issues)
	}
	overlapping := "1\n00:00:00,000 --> 00:00:03,000\nfirst\n\n2\n00:00:02,000 --> 00:00:01,000\nsecond\n"
	issues := ValidateSRT(overlapping)
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %v", issues)
	}
	if issues := ValidateSRT("1\nnot a timing line\ntext\n"); len(issues) != 1 || !strings.HasPrefix(issues[0], "parse_error") {
		t.Fatalf("malformed: %v", issues)
	}
}

func TestResolveStyle(t *testing.T) {
	if diff := cmp.Diff(DefaultStyle(), ResolveStyle("", nil)); diff != "" {
		t.Fatalf("default style mismatch:\n%s", diff)
	}
	if diff := cmp.Diff(DefaultStyle(), ResolveStyle("does-not-exist", nil)); diff != "" {
		t.Fatalf("unknown preset should fall back to default:\n%s", diff)
	}

	size := 50
	position := PositionTop
	got := ResolveStyle("viral-pop", &StyleOverrides{FontSize: &size, Position: &position})
	preset, _ := PresetByID("viral-pop")
	want := preset.Style
	want.FontSize = 50
	want.Position = PositionTop
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("resolved style mismatch (-want +got):\n%s", diff)
	}
}

func TestPresetsAreComplete(t *testing.T) {
	ids := make([]string, 0, len(Presets()))
	for _, preset := range Presets() {
		ids = append(ids, preset.ID)
	}
	want := []string{"viral-pop", "elegant-minimal", "bold-impact", "neon-glow", "typewriter", "karaoke"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("preset ids mismatch:\n%s", diff)
	}
}

func TestAssColour(t *testing.T) {
	cases := map[string]struct {
		hex     string
		opacity float64
		want    string
	}{
		"opaque white":   {"#FFFFFF", 1, "&H00FFFFFF"},
		"half black":     {"#000000", 0.5, "&H80000000"},
		"channel order":  {"#112233", 1, "&H00332211"},
		"embedded alpha": {"#00000000", 1, "&HFF000000"},
	}
	for name, tc := range cases {
		if got := assColour(tc.hex, tc.opacity); got != tc.want {
			t.Fatalf("%s: assColour(%q, %v) = %q, want %q", name, tc.hex, tc.opacity, got, tc.want)
		}
	}
}

func TestGenerateASSAppliesStyle(t *testing.T) {
	segments := GenerateSegments("one two three", 5, ModeTimed)
	ass := GenerateASS(segments, ResolveStyle("viral-pop", nil), 0, 0)

	for _, want := range []string{
		"PlayResX: 1080",
		"PlayResY: 1920",
		"Style: Default,Inter,36,",
		`Dialogue: 0,0:00:00.00,0:00:05.00,Default,,0,0,0,,{\fscx80\fscy80\t(0,300,\fscx100\fscy100)}ONE TWO THREE`,
	} {
		if !strings.Contains(ass, want) {
			t.Fatalf("expected %q in ASS output:\n%s", want, ass)
		}
	}
}

func TestGenerateASSTypewriterUsesKaraokeTags(t *testing.T) {
	segments := []Segment{{Index: 1, Text: "hello world", StartTime: 0, EndTime: 2}}
	ass := GenerateASS(segments, ResolveStyle("typewriter", nil), 720, 1280)
	if !strings.Contains(ass, `{\k100}hello {\k100}world`) {
		t.Fatalf("expected karaoke tags in:\n%s", ass)
	}
	if !strings.Contains(ass, "PlayResX: 720") {
		t.Fatalf("expected custom resolution in:\n%s", ass)
	}
}

func TestApplyTransform(t *testing.T) {
	if got := ApplyTransform("hello world", TransformCapitalize); got != "Hello World" {
		t.Fatalf("capitalize: %q", got)
	}
	if got := ApplyTransform("Olá Mundo", TransformUppercase); got != "OLÁ MUNDO" {
		t.Fatalf("uppercase: %q", got)
	}
	if got := ApplyTransform("Keep", TransformNone); got != "Keep" {
		t.Fatalf("none: %q", got)
	}
}
