package pipeline

import (
	"fmt"
	"io"

	"github.com/accessful-ai/webrtc-audio-processing/config"
	"github.com/accessful-ai/webrtc-audio-processing/native"
	"github.com/accessful-ai/webrtc-audio-processing/wrapper"
)

// NativeLibraryName is the link name of the installed native library.
const NativeLibraryName = "webrtc_audio_processing"

// LinkDirectives returns the cargo build script lines that link the wrapper,
// the native library and the platform C++ runtime.
func LinkDirectives(target config.Target, paths native.BuildPaths, art *wrapper.Artifact) []string {
	out := []string{
		"cargo:rustc-link-search=native=" + paths.LibPath,
	}
	if art != nil {
		out = append(out,
			"cargo:rustc-link-search=native="+art.Dir,
			"cargo:rustc-link-lib=static="+art.Name,
		)
	}
	out = append(out,
		"cargo:rerun-if-env-changed="+config.EnvDeploymentTarget,
		"cargo:rustc-link-lib=static="+NativeLibraryName,
	)

	switch target.OS {
	case config.OSMacOS:
		out = append(out, "cargo:rustc-link-lib=dylib=c++")
	case config.OSLinux:
		out = append(out, "cargo:rustc-link-lib=dylib=stdc++")
	}
	return out
}

// WriteDirectives prints one directive per line.
func WriteDirectives(w io.Writer, directives []string) error {
	for _, d := range directives {
		if _, err := fmt.Fprintln(w, d); err != nil {
			return err
		}
	}
	return nil
}
