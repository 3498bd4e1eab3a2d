package glob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	testCases := []struct {
		name    string
		pattern string
		input   string
		want    bool
	}{
		{name: "literal match", pattern: "system.debug", input: "system.debug", want: true},
		{name: "literal mismatch", pattern: "system.debug", input: "system.trace", want: false},
		{name: "empty pattern empty input", pattern: "", input: "", want: true},
		{name: "empty pattern non-empty input", pattern: "", input: "a", want: false},
		{name: "star matches empty", pattern: "system.*", input: "system.", want: true},
		{name: "star matches run", pattern: "system.*", input: "system.mail.host", want: true},
		{name: "star requires prefix", pattern: "system.*", input: "mysystem.debug", want: false},
		{name: "leading star", pattern: "*.enabled", input: "feature.search.enabled", want: true},
		{name: "double underscore prefix", pattern: "__*", input: "__internal", want: true},
		{name: "double underscore prefix no match", pattern: "__*", input: "_internal", want: false},
		{name: "question mark single char", pattern: "env?", input: "env1", want: true},
		{name: "question mark needs a char", pattern: "env?", input: "env", want: false},
		{name: "question mark exactly one", pattern: "env?", input: "env12", want: false},
		{name: "star between literals", pattern: "a*c", input: "abbbc", want: true},
		{name: "star backtracking", pattern: "a*bc", input: "abbbc", want: true},
		{name: "multiple stars", pattern: "*a*b*", input: "xaybz", want: true},
		{name: "only star", pattern: "*", input: "anything.at.all", want: true},
		{name: "trailing star unconsumed", pattern: "abc*", input: "abc", want: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Match(tc.pattern, tc.input))
		})
	}
}

func TestMatchAny(t *testing.T) {
	patterns := []string{"__*", "system.*", "cache.*"}

	assert.True(t, MatchAny(patterns, "system.anything"))
	assert.True(t, MatchAny(patterns, "__hidden"))
	assert.False(t, MatchAny(patterns, "app.theme"))
	assert.False(t, MatchAny(nil, "app.theme"))
}

func TestFirst(t *testing.T) {
	patterns := []string{"email.*", "*.email", "*"}

	p, ok := First(patterns, "email.sender")
	assert.True(t, ok)
	assert.Equal(t, "email.*", p)

	p, ok = First(patterns, "admin.email")
	assert.True(t, ok)
	assert.Equal(t, "*.email", p)

	_, ok = First([]string{"a.*"}, "b.c")
	assert.False(t, ok)
}
