package captions

import (
	"fmt"
	"strconv"
	"strings"
)

// GenerateSRT renders segments as a SubRip document.
func GenerateSRT(segments []Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('\n')
		b.WriteString(formatSRTTimestamp(seg.StartTime))
		b.WriteString(" --> ")
		b.WriteString(formatSRTTimestamp(seg.EndTime))
		b.WriteByte('\n')
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteByte('\n')
	}
	return b.String()
}

// ParseSRT reads a SubRip document back into segments. Word timings are not
// recoverable from SRT and are left empty.
func ParseSRT(content string) ([]Segment, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}
	var segments []Segment
	for _, block := range strings.Split(content, "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			return nil, fmt.Errorf("cue %d: incomplete block", len(segments)+1)
		}
		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return nil, fmt.Errorf("cue %d: invalid index %q", len(segments)+1, lines[0])
		}
		parts := strings.Split(lines[1], "-->")
		if len(parts) != 2 {
			return nil, fmt.Errorf("cue %d: invalid timing line %q", index, lines[1])
		}
		start, err := parseSRTTimestamp(parts[0])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", index, err)
		}
		end, err := parseSRTTimestamp(parts[1])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", index, err)
		}
		segments = append(segments, Segment{
			Index:     index,
			Text:      strings.Join(lines[2:], "\n"),
			StartTime: start,
			EndTime:   end,
		})
	}
	return segments, nil
}

// ValidateSRT checks a SubRip document for format issues. An empty result
// means validation passed.
func ValidateSRT(content string) []string {
	segments, err := ParseSRT(content)
	if err != nil {
		return []string{fmt.Sprintf("parse_error: %v", err)}
	}
	if len(segments) == 0 {
		return []string{"empty_subtitle_file"}
	}
	var issues []string
	prevEnd := 0.0
	for i, seg := range segments {
		if seg.Index != i+1 {
			issues = append(issues, fmt.Sprintf("cue %d: index %d out of sequence", i+1, seg.Index))
		}
		if seg.EndTime <= seg.StartTime {
			issues = append(issues, fmt.Sprintf("cue %d: end before start", seg.Index))
		}
		if seg.StartTime < prevEnd {
			issues = append(issues, fmt.Sprintf("cue %d: overlaps previous cue", seg.Index))
		}
		if strings.TrimSpace(seg.Text) == "" {
			issues = append(issues, fmt.Sprintf("cue %d: empty text", seg.Index))
		}
		prevEnd = seg.EndTime
	}
	return issues
}

func formatSRTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	msTotal := int(seconds*1000 + 0.5)
	hours := msTotal / 3_600_000
	msTotal %= 3_600_000
	minutes := msTotal / 60_000
	msTotal %= 60_000
	secs := msTotal / 1_000
	millis := msTotal % 1_000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

func parseSRTTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// Some encoders emit a period before the milliseconds.
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}
