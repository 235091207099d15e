package schedule

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

// SplitArgs tokenizes a job's argument string with shell rules: whitespace
// separates tokens, quotes group, and \" and \\ escape. Input the grammar
// cannot parse (a trailing backslash, an unclosed quote) is repaired by
// keeping the offending characters literally; ambiguous reports that a
// repair happened so the caller can surface it.
func SplitArgs(raw string) (args []string, ambiguous bool) {
	candidate := raw
	for attempt := 0; attempt < 3; attempt++ {
		tokens, err := shellquote.Split(candidate)
		if err == nil {
			return tokens, attempt > 0
		}

		switch err {
		case shellquote.UnterminatedEscapeError:
			// the dangling backslash becomes a literal one
			candidate += `\`
		case shellquote.UnterminatedDoubleQuoteError:
			candidate += `"`
		case shellquote.UnterminatedSingleQuoteError:
			candidate += `'`
		default:
			return strings.Fields(raw), true
		}
	}
	return strings.Fields(raw), true
}

// JoinArgs quotes args so a shell splits them back into the same tokens
func JoinArgs(args []string) string {
	return shellquote.Join(args...)
}

// EscapeLegacyArgs converts an argument string written before shell-style
// parsing, where backslashes and double quotes were literal, into one
// that SplitArgs reads the same way.
func EscapeLegacyArgs(raw string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(raw)
}
