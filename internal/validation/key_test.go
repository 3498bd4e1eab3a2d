package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValidator(t *testing.T) {
	v := NewKeyValidator(0, "", DefaultReservedPatterns)

	testCases := []struct {
		name         string
		key          string
		expectedRule string
	}{
		{name: "plain key", key: "theme"},
		{name: "dotted key", key: "mail.smtp.host"},
		{name: "digits and punctuation", key: "feature-2024_q1.enabled"},
		{name: "empty", key: "", expectedRule: RuleKeyEmpty},
		{name: "too long", key: strings.Repeat("k", 256), expectedRule: RuleKeyTooLong},
		{name: "space", key: "my key", expectedRule: RuleKeyCharset},
		{name: "unicode", key: "thème", expectedRule: RuleKeyCharset},
		{name: "slash", key: "a/b", expectedRule: RuleKeyCharset},
		{name: "leading dot", key: ".theme", expectedRule: RuleKeyDots},
		{name: "trailing dot", key: "theme.", expectedRule: RuleKeyDots},
		{name: "consecutive dots", key: "a..b", expectedRule: RuleKeyDots},
		{name: "reserved prefix", key: "system.debug", expectedRule: RuleKeyReserved},
		{name: "reserved dunder", key: "__internal", expectedRule: RuleKeyReserved},
		{name: "reserved matches nested portion", key: "cache.ttl.default", expectedRule: RuleKeyReserved},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.key)

			if tc.expectedRule == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			require.ErrorIs(t, err, ErrInvalidKey)

			var keyErr *KeyError
			require.ErrorAs(t, err, &keyErr)
			assert.Equal(t, tc.expectedRule, keyErr.Rule)
		})
	}
}

func TestKeyValidatorReportsInvalidChars(t *testing.T) {
	v := NewKeyValidator(0, "", nil)

	err := v.Validate("a b!c b")
	require.Error(t, err)

	var keyErr *KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, RuleKeyCharset, keyErr.Rule)
	// Each invalid character is reported once, in order of first appearance.
	assert.Contains(t, keyErr.Detail, `" !"`)
}

func TestKeyValidatorCustomLimits(t *testing.T) {
	v := NewKeyValidator(5, "._-:", nil)

	assert.NoError(t, v.Validate("a:b"))
	assert.Error(t, v.Validate("toolong"))
}
