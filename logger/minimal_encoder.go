package logger

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/teranos/chronograph/sym"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
)

type palette struct {
	time      string
	component string
	symbol    string
	key       string
	warn      string
	warnBg    string
	err       string
	errBg     string
}

var palettes = map[string]palette{
	"gruvbox": {
		time:      "\x1b[38;5;108m",
		component: "\x1b[38;5;208m",
		symbol:    "\x1b[38;5;142m",
		key:       "\x1b[38;5;245m",
		warn:      "\x1b[38;5;214m",
		warnBg:    "\x1b[48;5;58m",
		err:       "\x1b[38;5;167m",
		errBg:     "\x1b[48;5;88m",
	},
	"everforest": {
		time:      "\x1b[38;5;107m",
		component: "\x1b[38;5;108m",
		symbol:    "\x1b[38;5;108m",
		key:       "\x1b[38;5;245m",
		warn:      "\x1b[38;5;179m",
		warnBg:    "\x1b[48;5;58m",
		err:       "\x1b[38;5;167m",
		errBg:     "\x1b[48;5;52m",
	},
}

var currentTheme = "everforest"

// SetTheme configures the color scheme for console output.
// Unknown names are ignored.
func SetTheme(theme string) {
	if _, ok := palettes[theme]; ok {
		currentTheme = theme
	}
}

func colors() palette {
	return palettes[currentTheme]
}

var minimalPool = buffer.NewPool()

// minimalEncoder is a compact console encoder.
// Format: "13:04:35  s.runner  Claimed job  job_id=4 job_name=backup"
type minimalEncoder struct {
	*zapcore.MapObjectEncoder // fields added through With()
}

func newMinimalEncoder() *minimalEncoder {
	return &minimalEncoder{MapObjectEncoder: zapcore.NewMapObjectEncoder()}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	clone := zapcore.NewMapObjectEncoder()
	for k, v := range enc.Fields {
		clone.Fields[k] = v
	}
	return &minimalEncoder{MapObjectEncoder: clone}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	c := colors()
	final := minimalPool.Get()

	final.AppendString(c.time)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	if lvl := levelString(ent.Level, c); lvl != "" {
		final.AppendString("  ")
		final.AppendString(lvl)
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(c.component)
		final.AppendString(abbreviateName(ent.LoggerName))
		final.AppendString(colorReset)
	}

	final.AppendString("  ")
	final.AppendString(colorizeSymbols(ent.Message, c.symbol))

	all := zapcore.NewMapObjectEncoder()
	for k, v := range enc.Fields {
		all.Fields[k] = v
	}
	for _, f := range fields {
		f.AddTo(all)
	}
	if kv := formatFields(all.Fields, c); kv != "" {
		final.AppendString("  ")
		final.AppendString(kv)
	}

	final.AppendString("\n")
	return final, nil
}

// levelString renders WARN and above; info and debug stay unlabeled
func levelString(level zapcore.Level, c palette) string {
	switch {
	case level == zapcore.DebugLevel:
		return c.key + "debug" + colorReset
	case level == zapcore.WarnLevel:
		return colorBold + c.warnBg + c.warn + "WARN" + colorReset
	case level >= zapcore.ErrorLevel:
		return colorBold + c.errBg + c.err + level.CapitalString() + colorReset
	default:
		return ""
	}
}

// abbreviateName shortens component names: schedule.runner -> s.runner
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 && parts[0] != "" {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

func colorizeSymbols(text, color string) string {
	for _, s := range []string{sym.Cron, sym.Startup, sym.Done, sym.DB} {
		text = strings.ReplaceAll(text, s, color+s+colorReset)
	}
	return text
}

// formatFields renders key=value pairs sorted by key. The symbol field is
// shown bare and verbose error stacks are left to the JSON encoder.
func formatFields(fields map[string]interface{}, c palette) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if strings.HasSuffix(k, "Verbose") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == FieldSymbol {
			parts = append([]string{c.symbol + fmt.Sprint(fields[k]) + colorReset}, parts...)
			continue
		}
		parts = append(parts, c.key+k+"="+colorReset+fmt.Sprint(fields[k]))
	}
	return strings.Join(parts, " ")
}
