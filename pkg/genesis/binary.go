package genesis

import (
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// MinToolVersion is the oldest genesis tool release whose output layout this
// package understands.
const MinToolVersion = "1.15.0"

var versionPattern = regexp.MustCompile(`v?(\d+\.\d+\.\d+)`)

// FindTool resolves the ledger tool binary. An explicit path wins; otherwise
// the PATH is searched.
func FindTool(explicit string) (string, error) {
	if explicit != "" {
		return exec.LookPath(explicit)
	}
	return exec.LookPath("iota")
}

// ToolVersion runs `<tool> --version` and extracts the semantic version.
func ToolVersion(binary string) (string, error) {
	out, err := exec.Command(binary, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tool version check failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	m := versionPattern.FindStringSubmatch(string(out))
	if m == nil {
		return "", fmt.Errorf("could not parse version from %q", strings.TrimSpace(string(out)))
	}
	return m[1], nil
}

// CheckToolVersion verifies the binary meets the minimum supported version.
func CheckToolVersion(binary string) (string, error) {
	version, err := ToolVersion(binary)
	if err != nil {
		return "", err
	}
	if CompareVersions(version, MinToolVersion) < 0 {
		return version, fmt.Errorf("tool version %s is below minimum required %s", version, MinToolVersion)
	}
	return version, nil
}

// CompareVersions compares dotted numeric versions: -1, 0, or 1.
func CompareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}
	return 0
}
