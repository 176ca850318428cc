package wrapper

import (
	"github.com/accessful-ai/webrtc-audio-processing/config"
	"github.com/accessful-ai/webrtc-audio-processing/errors"
)

// defaultDeploymentTargets are the oldest macOS releases supported per architecture.
var defaultDeploymentTargets = map[string]string{
	"x86_64":  "10.10",
	"aarch64": "11.0",
}

// DeploymentTarget returns the macOS minimum version for arch. A non-empty
// override wins and is passed through verbatim once it looks like a version.
func DeploymentTarget(arch, override string) (string, error) {
	if override != "" {
		if err := config.CheckDeploymentTarget(override); err != nil {
			return "", err
		}
		return override, nil
	}

	v, ok := defaultDeploymentTargets[arch]
	if !ok {
		return "", errors.UnsupportedArch(arch)
	}
	return v, nil
}
