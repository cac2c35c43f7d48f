// Package version holds build information set with -ldflags.
package version

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the build information for `httping version`.
func String() string {
	return "httping " + Version + " (" + Commit + ") built " + Date
}
