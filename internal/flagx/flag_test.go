package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-s", "secret", "-x", "other"},
			allowed: []string{"-s"},
			want:    []string{"-s", "secret"},
		},
		{
			name:    "equals form",
			args:    []string{"-d=postgres://db", "-x=1"},
			allowed: []string{"-d"},
			want:    []string{"-d=postgres://db"},
		},
		{
			name:    "value that looks like a flag is not consumed",
			args:    []string{"-a", "-s", "secret"},
			allowed: []string{"-a", "-s"},
			want:    []string{"-a", "-s", "secret"},
		},
		{
			name:    "nothing allowed",
			args:    []string{"-a", "1"},
			allowed: nil,
			want:    []string{},
		},
		{
			name:    "trailing flag without value",
			args:    []string{"-t"},
			allowed: []string{"-t"},
			want:    []string{"-t"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigFile(t *testing.T) {
	assert.Equal(t, "conf.json", ConfigFile([]string{"-a", ":1", "-c", "conf.json"}))
	assert.Equal(t, "alt.json", ConfigFile([]string{"-config=alt.json"}))
	assert.Equal(t, "", ConfigFile([]string{"-a", ":1"}))
}
