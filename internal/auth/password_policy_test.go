package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"accepts letters and digits", "abcd1234", true},
		{"accepts mixed symbols", "Passw0rd!", true},
		{"rejects too short", "abc1234", false},
		{"rejects digits only", "12345678", false},
		{"rejects letters only", "abcdefgh", false},
		{"rejects empty", "", false},
		{"rejects over max length", strings.Repeat("a1", 65), false},
		{"accepts max length", strings.Repeat("a1", 64), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.ok {
				require.NoError(t, err)
			} else {
				var policy *PolicyError
				require.ErrorAs(t, err, &policy)
			}
		})
	}
}
