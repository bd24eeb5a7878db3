package buildinfo

// These values are set via ldflags for release builds and default to
// empty for local builds, in which case the version command falls back
// to debug.ReadBuildInfo.
var (
	Version = ""
	Commit  = ""
	Date    = ""
)
