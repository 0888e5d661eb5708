package narconet

import "fmt"

const (
	// VersionMajor represents the current major version of NarcoNet.
	VersionMajor = 1
	// VersionMinor represents the current minor version of NarcoNet.
	VersionMinor = 0
	// VersionPatch represents the current patch version of NarcoNet.
	VersionPatch = 0
)

// Version is the formatted major.minor.patch version string reported by the
// server's /version endpoint and compared against by clients.
var Version string

func init() {
	Version = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
}

// LegacyVersionTokens are narconet-version header values that cause the
// server to answer with fixed fallback payloads instead of dynamic data, per
// spec.md 4.7.
var LegacyVersionTokens = map[string]bool{
	"undefined": true,
	"0.8.0":     true,
}
