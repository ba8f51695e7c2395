package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("LARDER_TEST_DIR", "/var/lib/larder")

	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "empty",
			path: "",
			want: "",
		},
		{
			name: "plain path untouched",
			path: "/tmp/larder.db",
			want: "/tmp/larder.db",
		},
		{
			name: "tilde prefix",
			path: "~/.local/share/larder/larder.db",
			want: filepath.Join(home, ".local", "share", "larder", "larder.db"),
		},
		{
			name: "bare tilde",
			path: "~",
			want: home,
		},
		{
			name: "env var",
			path: "$LARDER_TEST_DIR/larder.db",
			want: "/var/lib/larder/larder.db",
		},
		{
			name: "tilde in the middle stays literal",
			path: "/data/~backup/larder.db",
			want: "/data/~backup/larder.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.path))
		})
	}
}
