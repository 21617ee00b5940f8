package process

import "strings"

// AppIDFromCgroup derives the application identity from a /proc/<pid>/cgroup
// listing. Desktop launchers place every application in its own systemd unit:
//
//	app-flatpak-org.mozilla.firefox-12345.scope
//	app-gnome-org.gnome.Nautilus-4242.scope
//	app-gnome-org.gnome.Terminal@0.service
//	snap.spotify.spotify-5a3e1f0c-....scope
//
// Processes outside such a unit have no identity and "" is returned.
func AppIDFromCgroup(cgroup string) string {
	for _, line := range strings.Split(strings.TrimSpace(cgroup), "\n") {
		// hierarchy-ID:controllers:path
		parts := strings.SplitN(line, ":", 3)
		path := parts[len(parts)-1]
		components := strings.Split(path, "/")
		for i := len(components) - 1; i >= 0; i-- {
			if id := appIDFromUnit(components[i]); id != "" {
				return id
			}
		}
	}
	return ""
}

func appIDFromUnit(unit string) string {
	switch {
	case strings.HasPrefix(unit, "snap.") && strings.HasSuffix(unit, ".scope"):
		name, _, _ := strings.Cut(strings.TrimPrefix(unit, "snap."), ".")
		return name

	case strings.HasPrefix(unit, "app-") && strings.HasSuffix(unit, ".scope"):
		rest := strings.TrimSuffix(strings.TrimPrefix(unit, "app-"), ".scope")
		if i := strings.LastIndexByte(rest, '-'); i > 0 && isInstanceSuffix(rest[i+1:]) {
			rest = rest[:i]
		}
		return launcherStripped(rest)

	case strings.HasPrefix(unit, "app-") && strings.HasSuffix(unit, ".service"):
		rest := strings.TrimSuffix(strings.TrimPrefix(unit, "app-"), ".service")
		rest, _, _ = strings.Cut(rest, "@")
		return launcherStripped(rest)
	}
	return ""
}

// launcherStripped drops the "<launcher>-" prefix and undoes systemd's
// escaping of dashes inside the identity.
func launcherStripped(rest string) string {
	if _, id, ok := strings.Cut(rest, "-"); ok {
		rest = id
	}
	return strings.ReplaceAll(rest, `\x2d`, "-")
}

func isInstanceSuffix(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
