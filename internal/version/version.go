package version

// Version is the current version of the gridcall CLI.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/mehtakaran9/gridcall/internal/version.Version=v1.0.0'"
var Version = "dev"
