// Package buildinfo reports the version of the running binary.
package buildinfo

import (
	"runtime"
	"runtime/debug"
)

// version can be set at link time:
//
//	go build -ldflags "-X github.com/tsukumogami/aigene/internal/buildinfo.version=v1.2.0"
var version string

// Info is what the binary knows about its own build.
type Info struct {
	Version   string
	Revision  string // full VCS revision, empty if unknown
	Modified  bool
	GoVersion string
}

// Read returns the build info of the running binary.
func Read() Info {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Info{Version: orDefault(version, "unknown"), GoVersion: runtime.Version()}
	}
	return fromBuildInfo(info)
}

func fromBuildInfo(info *debug.BuildInfo) Info {
	out := Info{GoVersion: info.GoVersion}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Revision = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	switch {
	case version != "":
		out.Version = version
	case info.Main.Version != "" && info.Main.Version != "(devel)":
		out.Version = info.Main.Version
	case out.Revision != "":
		out.Version = "dev-" + shortRevision(out.Revision)
		if out.Modified {
			out.Version += "-dirty"
		}
	default:
		out.Version = "dev"
	}
	return out
}

// Version returns the release tag, or dev-<hash>[-dirty] for local builds.
func Version() string {
	return Read().Version
}

// UserAgent is sent with update requests.
func UserAgent() string {
	return "aigene/" + Version()
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
