package buildconfig

// Set at build time via -ldflags "-X .../internal/buildconfig.version=..."
var (
	version = "dev"
	commit  = "unknown"
)

func Version() string { return version }

func Commit() string { return commit }

// VersionInfo bundles the build identifiers for the stats endpoint.
func VersionInfo() map[string]string {
	return map[string]string{
		"version": version,
		"commit":  commit,
	}
}
