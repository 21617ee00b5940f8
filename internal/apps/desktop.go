package apps

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Entry is the part of a freedesktop .desktop file shown to the user.
type Entry struct {
	Name string
	Icon string
}

// Metadata looks up display metadata for an application identity.
type Metadata interface {
	Lookup(id string) (Entry, bool)
}

// Catalog finds desktop entries by file name in a list of directories. Results,
// including misses, are cached for the lifetime of the catalog.
type Catalog struct {
	dirs []string

	mu    sync.Mutex
	cache map[string]*Entry
}

func NewCatalog(dirs ...string) *Catalog {
	return &Catalog{dirs: dirs, cache: make(map[string]*Entry)}
}

// DefaultDirs lists the applications/ directories of the XDG data dirs plus
// the Flatpak and Snap export locations, most specific first.
func DefaultDirs() []string {
	var data []string
	if home := os.Getenv("XDG_DATA_HOME"); home != "" {
		data = append(data, home)
	} else if home, err := os.UserHomeDir(); err == nil {
		data = append(data, filepath.Join(home, ".local", "share"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		data = append(data, filepath.Join(home, ".local", "share", "flatpak", "exports", "share"))
	}
	data = append(data, "/var/lib/flatpak/exports/share")

	xdgDirs := os.Getenv("XDG_DATA_DIRS")
	if xdgDirs == "" {
		xdgDirs = "/usr/local/share:/usr/share"
	}
	for _, d := range strings.Split(xdgDirs, ":") {
		if d != "" {
			data = append(data, d)
		}
	}

	dirs := make([]string, 0, len(data)+1)
	for _, d := range data {
		dirs = append(dirs, filepath.Join(d, "applications"))
	}
	return append(dirs, "/var/lib/snapd/desktop/applications")
}

// Lookup returns the entry for id. Snap packages install their entries as
// "<name>_<name>.desktop".
func (c *Catalog) Lookup(id string) (Entry, bool) {
	if id == "" {
		return Entry{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.cache[id]; ok {
		if e == nil {
			return Entry{}, false
		}
		return *e, true
	}

	var found *Entry
	for _, dir := range c.dirs {
		for _, name := range []string{id + ".desktop", id + "_" + id + ".desktop"} {
			if e, ok := readEntry(filepath.Join(dir, name)); ok {
				found = &e
				break
			}
		}
		if found != nil {
			break
		}
	}
	c.cache[id] = found
	if found == nil {
		return Entry{}, false
	}
	return *found, true
}

func readEntry(path string) (Entry, bool) {
	f, err := os.Open(path)
	if err != nil {
		return Entry{}, false
	}
	defer f.Close()
	return parseDesktopEntry(f)
}

// parseDesktopEntry reads the untranslated Name and Icon keys of the
// [Desktop Entry] group.
func parseDesktopEntry(r io.Reader) (Entry, bool) {
	var e Entry
	inGroup := false

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			inGroup = line == "[Desktop Entry]"
			continue
		}
		if !inGroup {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Name":
			e.Name = strings.TrimSpace(value)
		case "Icon":
			e.Icon = strings.TrimSpace(value)
		}
	}
	return e, e.Name != ""
}
