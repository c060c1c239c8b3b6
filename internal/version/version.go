package version

// Version is overridden at build time:
//
//	go build -ldflags="-X 'github.com/GZancewicz/web-conference/internal/version.Version=v1.0.0'"
var Version = "dev"
