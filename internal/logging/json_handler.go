package logging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// newJSONHandler writes one object per line with short keys (ts, level, msg)
// and UTC timestamps. Secret-bearing attributes are masked.
func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: jsonReplaceAttr,
	})
}

func jsonReplaceAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch attr.Key {
		case slog.TimeKey:
			attr.Key = "ts"
			if attr.Value.Kind() == slog.KindTime {
				attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return attr
		case slog.LevelKey:
			attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			return attr
		case slog.SourceKey:
			if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
				attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
			}
			return attr
		}
	}
	return redactAttr(attr)
}

const redacted = "[redacted]"

// secretKeys are attribute keys whose values never reach a log sink.
var secretKeys = map[string]struct{}{
	"api_key":       {},
	"api_token":     {},
	"apikey":        {},
	"authorization": {},
	"token":         {},
	"password":      {},
}

func isSecretKey(key string) bool {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	_, ok := secretKeys[strings.ToLower(key)]
	return ok
}

// redactAttr masks non-empty values stored under secret keys.
func redactAttr(attr slog.Attr) slog.Attr {
	if !isSecretKey(attr.Key) {
		return attr
	}
	if v := attr.Value.Resolve(); v.Kind() == slog.KindString && v.String() == "" {
		return attr
	}
	return slog.String(attr.Key, redacted)
}
