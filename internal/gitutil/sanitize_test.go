package gitutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "github pat token",
			input: "fatal: authentication failed for token ghp_" + repeat("a", 36),
			want:  "fatal: authentication failed for token " + redacted,
		},
		{
			name:  "basic auth userinfo in url",
			input: "remote: https://x-access-token:ghs_" + repeat("b", 36) + "@github.com/acme/widgets.git",
			want:  "remote: https://" + redacted + "@github.com/acme/widgets.git",
		},
		{
			name:  "no credential present",
			input: "fatal: repository not found",
			want:  "fatal: repository not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.input)
			assert.NotContains(t, got, "ghp_")
			assert.NotContains(t, got, "ghs_")
			assert.Equal(t, tt.want, got)
		})
	}
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s[0])
	}
	return string(out)
}
