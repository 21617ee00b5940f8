package hostexec

import (
	"reflect"
	"testing"
)

func TestArgv(t *testing.T) {
	cases := []struct {
		name     string
		launcher Launcher
		expected []string
	}{
		{
			name:     "native",
			launcher: Launcher{},
			expected: []string{"/usr/libexec/apptop/apptop-kill", "TERM", "42"},
		},
		{
			name:     "sandboxed default proxy",
			launcher: Launcher{Sandboxed: true},
			expected: []string{"flatpak-spawn", "--host", "/usr/libexec/apptop/apptop-kill", "TERM", "42"},
		},
		{
			name:     "sandboxed custom proxy",
			launcher: Launcher{Sandboxed: true, Proxy: []string{"host-run"}},
			expected: []string{"host-run", "/usr/libexec/apptop/apptop-kill", "TERM", "42"},
		},
		{
			name:     "proxy ignored when not sandboxed",
			launcher: Launcher{Proxy: []string{"host-run"}},
			expected: []string{"/usr/libexec/apptop/apptop-kill", "TERM", "42"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.launcher.Argv("/usr/libexec/apptop/apptop-kill", "TERM", "42")
			if !reflect.DeepEqual(got, tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestCommandUsesProxyAsExecutable(t *testing.T) {
	cmd := Launcher{Sandboxed: true}.Command("/app/libexec/apptop/apptop-processes")
	if cmd.Args[0] != "flatpak-spawn" {
		t.Fatalf("expected proxy as argv[0], got %v", cmd.Args)
	}
	if cmd.Args[len(cmd.Args)-1] != "/app/libexec/apptop/apptop-processes" {
		t.Fatalf("collector path missing from %v", cmd.Args)
	}
}
