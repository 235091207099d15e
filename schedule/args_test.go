package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitArgs(t *testing.T) {
	raw := `arg1 option1=True option2="string with spaces" option3=escaped_backslash\\and_\"quote`

	args, ambiguous := SplitArgs(raw)

	assert.False(t, ambiguous)
	assert.Equal(t, []string{
		"arg1",
		"option1=True",
		"option2=string with spaces",
		`option3=escaped_backslash\and_"quote`,
	}, args)
}

func TestSplitArgsEmpty(t *testing.T) {
	args, ambiguous := SplitArgs("   ")
	assert.Empty(t, args)
	assert.False(t, ambiguous)
}

func TestSplitArgsRepairsAndFlags(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"trailing backslash", `path=C:\`, []string{`path=C:\`}},
		{"unclosed double quote", `msg="hello world`, []string{"msg=hello world"}},
		{"unclosed single quote", `name='o`, []string{"name=o"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, ambiguous := SplitArgs(tt.raw)
			assert.True(t, ambiguous)
			assert.Equal(t, tt.want, args)
		})
	}
}

func TestJoinArgsRoundTrip(t *testing.T) {
	in := []string{"plain", "with space", `quote"d`, `back\slash`, "it's"}
	out, ambiguous := SplitArgs(JoinArgs(in))
	assert.False(t, ambiguous)
	assert.Equal(t, in, out)
}

func TestEscapeLegacyArgs(t *testing.T) {
	legacy := `dir=C:\temp title=say"hi"`

	args, ambiguous := SplitArgs(EscapeLegacyArgs(legacy))

	assert.False(t, ambiguous)
	assert.Equal(t, []string{`dir=C:\temp`, `title=say"hi"`}, args)
}
