package installer

import (
	"fmt"
	"strings"

	"github.com/tsukumogami/aigene/internal/scanner"
)

// SystemDep is a native library a package needs, with where to get it.
type SystemDep struct {
	Name string
	URL  string
}

// SpecialRule describes a package whose install commonly fails without
// help.
type SpecialRule struct {
	// Prerequisites are installed, best effort, before the package.
	Prerequisites []string

	// Remediation is shown once when the package fails on every mirror.
	Remediation string

	// SystemDeps must be installed outside pip.
	SystemDeps []SystemDep
}

const (
	urlVCRedist   = "https://learn.microsoft.com/cpp/windows/latest-supported-vc-redist"
	urlBuildTools = "https://visualstudio.microsoft.com/visual-cpp-build-tools/"
	urlCUDA       = "https://developer.nvidia.com/cuda-downloads"
	urlFFmpeg     = "https://ffmpeg.org/download.html"
	urlSDL        = "https://www.libsdl.org/download-2.0.php"
)

var specialRules = map[string]SpecialRule{
	"manim": {
		Prerequisites: []string{
			"numpy", "pillow", "scipy", "matplotlib", "tqdm", "colour", "pycairo",
			"cloup", "click", "moderngl", "moderngl_window", "mapbox-earcut",
			"networkx", "decorator",
		},
		Remediation: `manim failed to install. Possible causes:
  1. MiKTeX or FFmpeg is not on PATH
  2. The terminal must be restarted for PATH changes to apply
  3. Try installing by hand: pip install manim`,
		SystemDeps: []SystemDep{
			{"MiKTeX", "https://miktex.org/download"},
			{"FFmpeg", urlFFmpeg},
		},
	},
	"torch": {
		Prerequisites: []string{"numpy", "typing-extensions", "filelock", "sympy", "networkx", "jinja2"},
		Remediation: `torch failed to install. Possible causes:
  1. Unstable network connection; a nearby mirror helps
  2. GPU support needs CUDA installed first
  3. Pick a matching build at https://pytorch.org/`,
		SystemDeps: []SystemDep{
			{"CUDA (optional)", urlCUDA},
		},
	},
	"tensorflow": {
		Prerequisites: []string{
			"numpy", "six", "wheel", "packaging", "protobuf", "keras",
			"h5py", "wrapt", "opt-einsum", "astunparse", "gast",
		},
		Remediation: `tensorflow failed to install. Possible causes:
  1. Microsoft Visual C++ Redistributable is missing
  2. GPU support needs CUDA and cuDNN installed first
  3. Try the CPU build: pip install tensorflow-cpu`,
		SystemDeps: []SystemDep{
			{"CUDA (optional)", urlCUDA},
			{"cuDNN (optional)", "https://developer.nvidia.com/cudnn"},
		},
	},
	"opencv-python": {
		Prerequisites: []string{"numpy", "pillow"},
		Remediation: `opencv-python failed to install. Possible causes:
  1. Microsoft Visual C++ Redistributable is missing
  2. Try the headless build: pip install opencv-python-headless`,
		SystemDeps: []SystemDep{
			{"Visual C++ Redistributable", urlVCRedist},
		},
	},
	"pygame": {
		Prerequisites: []string{"numpy"},
		Remediation: `pygame failed to install. Possible causes:
  1. The SDL library is missing
  2. Microsoft Visual C++ Redistributable is missing
  3. Try a pre-release: pip install pygame --pre`,
		SystemDeps: []SystemDep{
			{"SDL", urlSDL},
			{"Visual C++ Redistributable", urlVCRedist},
		},
	},
	"kivy": {
		Prerequisites: []string{"docutils", "pygments", "kivy_deps.sdl2", "kivy_deps.glew"},
		Remediation: `kivy failed to install. Possible causes:
  1. Microsoft Visual C++ Build Tools are missing
  2. kivy's own dependencies are missing: pip install kivy_deps.sdl2 kivy_deps.glew
  3. Use the official wheel: pip install kivy[base] kivy_examples`,
		SystemDeps: []SystemDep{
			{"Visual C++ Build Tools", urlBuildTools},
			{"SDL2", urlSDL},
			{"GLEW", "http://glew.sourceforge.net/"},
		},
	},
	"mysqlclient": {
		SystemDeps: []SystemDep{
			{"MySQL", "https://dev.mysql.com/downloads/installer/"},
			{"Visual C++ Build Tools", urlBuildTools},
		},
	},
	"psycopg2": {
		SystemDeps: []SystemDep{
			{"PostgreSQL", "https://www.postgresql.org/download/"},
			{"Visual C++ Build Tools", urlBuildTools},
		},
	},
	"pycairo": {
		SystemDeps: []SystemDep{
			{"Cairo Graphics", "https://www.cairographics.org/download/"},
		},
	},
	"python-ldap": {
		SystemDeps: []SystemDep{
			{"OpenLDAP", "https://www.openldap.org/software/download/"},
			{"Visual C++ Build Tools", urlBuildTools},
		},
	},
	"pyaudio": {
		SystemDeps: []SystemDep{
			{"PortAudio", "http://www.portaudio.com/download.html"},
		},
	},
	"moviepy": {
		SystemDeps: []SystemDep{
			{"FFmpeg", urlFFmpeg},
		},
	},
}

// RuleFor returns the special rule for a package name.
func RuleFor(name string) (SpecialRule, bool) {
	r, ok := specialRules[strings.ToLower(name)]
	return r, ok
}

// prerequisites returns the parsed prerequisites of a rule.
func (r SpecialRule) prerequisites() []scanner.Requirement {
	return scanner.MustParseRequirements(r.Prerequisites...)
}

// SystemDepsGuide returns install guidance for every requirement that
// needs system libraries, or nil if none do.
func SystemDepsGuide(reqs []scanner.Requirement) []string {
	var lines []string
	for _, req := range reqs {
		rule, ok := RuleFor(req.Name)
		if !ok || len(rule.SystemDeps) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s needs these system libraries:", req.Name))
		for _, d := range rule.SystemDeps {
			lines = append(lines, fmt.Sprintf("  - %s: %s", d.Name, d.URL))
		}
	}
	return lines
}
