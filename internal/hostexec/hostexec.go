// Package hostexec builds commands that must run on the host even when the
// caller itself is confined to a sandbox.
package hostexec

import "os/exec"

// DefaultProxy is the host-execution proxy used inside a Flatpak sandbox.
var DefaultProxy = []string{"flatpak-spawn", "--host"}

// Launcher prefixes commands with Proxy when Sandboxed is set.
type Launcher struct {
	Sandboxed bool
	Proxy     []string
}

// Argv returns the full argument vector for running path with args.
func (l Launcher) Argv(path string, args ...string) []string {
	argv := make([]string, 0, len(l.Proxy)+1+len(args))
	if l.Sandboxed {
		proxy := l.Proxy
		if len(proxy) == 0 {
			proxy = DefaultProxy
		}
		argv = append(argv, proxy...)
	}
	argv = append(argv, path)
	return append(argv, args...)
}

func (l Launcher) Command(path string, args ...string) *exec.Cmd {
	argv := l.Argv(path, args...)
	return exec.Command(argv[0], argv[1:]...)
}
