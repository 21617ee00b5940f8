package collector

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jeffypooo/apptop/internal/snapshot"
)

// drmClient is one DRM file descriptor's usage as reported in
// /proc/<pid>/fdinfo/<fd>.
type drmClient struct {
	pdev     string
	clientID string
	usage    snapshot.GPUUsage
}

// parseFDInfo reads one fdinfo file. ok is false for descriptors that do not
// belong to a DRM device.
//
// Engine counters are cumulative nanoseconds. Memory is taken from the
// drm-resident-* keys when present, otherwise from the older drm-memory-*.
func parseFDInfo(r io.Reader) (client drmClient, ok bool) {
	var resident, legacy uint64
	var sawResident bool

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, found := strings.Cut(sc.Text(), ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch {
		case key == "drm-pdev":
			client.pdev = value
		case key == "drm-client-id":
			client.clientID = value
		case strings.HasPrefix(key, "drm-engine-") && !strings.HasPrefix(key, "drm-engine-capacity-"):
			ns := parseQuantity(value)
			switch strings.TrimPrefix(key, "drm-engine-") {
			case "gfx", "render", "compute":
				client.usage.Gfx += ns
			case "enc", "video-enc", "enc_1":
				client.usage.Enc += ns
			case "dec", "video", "video-dec":
				client.usage.Dec += ns
			}
		case strings.HasPrefix(key, "drm-resident-"):
			resident += parseQuantity(value)
			sawResident = true
		case strings.HasPrefix(key, "drm-memory-"):
			legacy += parseQuantity(value)
		}
	}

	if client.pdev == "" {
		return drmClient{}, false
	}
	if sawResident {
		client.usage.Mem = resident
	} else {
		client.usage.Mem = legacy
	}
	return client, true
}

// parseQuantity parses "<n>", "<n> ns", "<n> KiB" or "<n> MiB" into a plain
// count (nanoseconds or bytes).
func parseQuantity(s string) uint64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0
	}
	if len(fields) > 1 {
		switch fields[1] {
		case "KiB":
			n <<= 10
		case "MiB":
			n <<= 20
		case "GiB":
			n <<= 30
		}
	}
	return n
}

// gpuUsage sums a process's DRM clients per device. Several descriptors may
// refer to the same client; each client is counted once.
func gpuUsage(procRoot string, pid int32) map[string]snapshot.GPUUsage {
	dir := filepath.Join(procRoot, strconv.Itoa(int(pid)), "fdinfo")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var usage map[string]snapshot.GPUUsage
	for _, entry := range entries {
		f, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		client, ok := parseFDInfo(f)
		f.Close()
		if !ok {
			continue
		}
		if client.clientID != "" {
			key := client.pdev + "/" + client.clientID
			if seen[key] {
				continue
			}
			seen[key] = true
		}

		if usage == nil {
			usage = make(map[string]snapshot.GPUUsage)
		}
		total := usage[client.pdev]
		total.Gfx += client.usage.Gfx
		total.Enc += client.usage.Enc
		total.Dec += client.usage.Dec
		total.Mem += client.usage.Mem
		usage[client.pdev] = total
	}
	return usage
}
