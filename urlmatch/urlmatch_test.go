package urlmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPattern_Match(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		url     string
		want    bool
	}{
		{"glob double star", "**/console/dashboard", "http://localhost:7322/console/dashboard", true},
		{"glob wrong path", "**/console/dashboard", "http://localhost:7322/console/login", false},
		{"glob single star stops at slash", "http://localhost:7322/*/dashboard", "http://localhost:7322/a/b/dashboard", false},
		{"glob single star", "http://localhost:7322/*/dashboard", "http://localhost:7322/console/dashboard", true},
		{"glob alternatives", "**/api/{CreateMachine,UpdateMachine}", "http://x/api/CreateMachine", true},
		{"substring", "/api/", "http://localhost:7322/api/StoredProcedure/GetCompanyMachines", true},
		{"substring miss", "/api/", "http://localhost:7322/console", false},
		{"regexp", `re:/api/.*Machine$`, "http://x/api/CreateMachine", true},
		{"regexp miss", `re:^https://`, "http://x/api", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Match(tt.url))
			assert.Equal(t, tt.pattern, p.String())
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile("  ")
	assert.ErrorIs(t, err, ErrEmptyPattern)

	_, err = Compile("re:(")
	assert.Error(t, err)

	assert.Panics(t, func() { MustCompile("") })
}
