package captions

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Mode selects how narration text is split into segments.
type Mode string

const (
	ModeTimed    Mode = "timed"
	ModeSentence Mode = "sentence"
	ModeWord     Mode = "word"
)

const (
	wordsPerMinute      = 150
	minimumDuration     = 5.0
	timedChunkWordCount = 3
)

// ParseMode validates a segmentation mode. Empty input selects ModeTimed.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeTimed:
		return ModeTimed, nil
	case ModeSentence:
		return ModeSentence, nil
	case ModeWord:
		return ModeWord, nil
	default:
		return "", fmt.Errorf("unknown segmentation mode %q", value)
	}
}

// Word is the timing of a single word inside a segment.
type Word struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

// Segment is one caption cue. Times are in seconds.
type Segment struct {
	Index     int     `json:"index"`
	Text      string  `json:"text"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Words     []Word  `json:"words,omitempty"`
}

// WordCount returns the number of whitespace separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// EstimateDuration estimates spoken length in seconds at 150 words per minute,
// never returning less than five seconds.
func EstimateDuration(text string) float64 {
	seconds := float64(WordCount(text)) / wordsPerMinute * 60
	return math.Max(seconds, minimumDuration)
}

// GenerateSegments splits text into timed segments covering duration seconds.
func GenerateSegments(text string, duration float64, mode Mode) []Segment {
	words := strings.Fields(text)
	if len(words) == 0 || duration <= 0 {
		return nil
	}
	switch mode {
	case ModeSentence:
		return sentenceSegments(words, duration)
	case ModeWord:
		return wordSegments(words, duration)
	default:
		return timedSegments(words, duration)
	}
}

func timedSegments(words []string, duration float64) []Segment {
	count := (len(words) + timedChunkWordCount - 1) / timedChunkWordCount
	slot := duration / float64(count)
	segments := make([]Segment, 0, count)
	for i := 0; i < count; i++ {
		start := i * timedChunkWordCount
		end := min(start+timedChunkWordCount, len(words))
		segments = append(segments, Segment{
			Index:     i + 1,
			Text:      strings.Join(words[start:end], " "),
			StartTime: roundMillis(float64(i) * slot),
			EndTime:   roundMillis(float64(i+1) * slot),
		})
	}
	return segments
}

func wordSegments(words []string, duration float64) []Segment {
	slot := duration / float64(len(words))
	segments := make([]Segment, 0, len(words))
	for i, word := range words {
		start := roundMillis(float64(i) * slot)
		end := roundMillis(float64(i+1) * slot)
		segments = append(segments, Segment{
			Index:     i + 1,
			Text:      word,
			StartTime: start,
			EndTime:   end,
			Words:     []Word{{Text: word, StartTime: start, EndTime: end}},
		})
	}
	return segments
}

func sentenceSegments(words []string, duration float64) []Segment {
	var sentences [][]string
	var current []string
	for _, word := range words {
		current = append(current, word)
		if endsSentence(word) {
			sentences = append(sentences, current)
			current = nil
		}
	}
	if len(current) > 0 {
		sentences = append(sentences, current)
	}

	perWord := duration / float64(len(words))
	segments := make([]Segment, 0, len(sentences))
	consumed := 0
	for i, sentence := range sentences {
		start := float64(consumed) * perWord
		wordTimings := make([]Word, 0, len(sentence))
		for j, word := range sentence {
			wordTimings = append(wordTimings, Word{
				Text:      word,
				StartTime: roundMillis(start + float64(j)*perWord),
				EndTime:   roundMillis(start + float64(j+1)*perWord),
			})
		}
		consumed += len(sentence)
		segments = append(segments, Segment{
			Index:     i + 1,
			Text:      strings.Join(sentence, " "),
			StartTime: roundMillis(start),
			EndTime:   roundMillis(float64(consumed) * perWord),
			Words:     wordTimings,
		})
	}
	return segments
}

func endsSentence(word string) bool {
	trimmed := strings.TrimRightFunc(word, func(r rune) bool {
		return r == '"' || r == '\'' || r == ')' || r == '»' || unicode.Is(unicode.Pf, r)
	})
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

func roundMillis(value float64) float64 {
	return math.Round(value*1000) / 1000
}
