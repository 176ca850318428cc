// Package config provides the single configuration value of the provisioning pipeline.
//
// The configuration is assembled exactly once per invocation, from built-in defaults,
// an optional TOML file, the process environment and finally command line flags, and
// is then passed explicitly into every component. Nothing in the pipeline reads the
// environment on its own.
//
// # Basic Usage
//
//	cfg, err := config.Load(config.LoadOptions{
//	    Path:   os.Getenv(config.EnvConfigFile),
//	    Lookup: os.LookupEnv,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if cfg.Target.IsWindows() {
//	    fmt.Println("prebuilt binaries will be downloaded")
//	}
package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"

	"github.com/Masterminds/semver/v3"
	"github.com/adrg/xdg"

	"github.com/accessful-ai/webrtc-audio-processing/errors"
)

// Environment variables consumed by ApplyEnv.
const (
	EnvOutDir           = "OUT_DIR"
	EnvDeploymentTarget = "MACOSX_DEPLOYMENT_TARGET"
	EnvTargetArch       = "CARGO_CFG_TARGET_ARCH"
	EnvTargetOS         = "CARGO_CFG_TARGET_OS"
	EnvDeriveSerde      = "CARGO_FEATURE_DERIVE_SERDE"
	EnvCXX              = "CXX"
	EnvAR               = "AR"
	EnvConfigFile       = "WEBRTC_PROVISION_CONFIG"
)

// Serde modes select how serialization derives reach the generated bindings.
const (
	// SerdeGenerator asks the binding generator to emit the derives itself.
	SerdeGenerator = "generator"

	// SerdeRewrite patches the generated text after the fact.
	SerdeRewrite = "rewrite"
)

// Target operating systems, using the consuming crate's naming.
const (
	OSLinux   = "linux"
	OSMacOS   = "macos"
	OSWindows = "windows"
)

// Target identifies the platform the native library is provisioned for.
type Target struct {
	OS   string `toml:"os"`
	Arch string `toml:"arch"`
}

// IsWindows reports whether the target is Windows.
func (t Target) IsWindows() bool { return t.OS == OSWindows }

// IsApple reports whether the target is macOS.
func (t Target) IsApple() bool { return t.OS == OSMacOS }

// String renders the target as os-arch.
func (t Target) String() string { return t.OS + "-" + t.Arch }

// HostTarget maps the running Go toolchain's platform onto target names.
func HostTarget() Target {
	osName := runtime.GOOS
	if osName == "darwin" {
		osName = OSMacOS
	}

	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "x86"
	}

	return Target{OS: osName, Arch: arch}
}

// Tools names the external programs the pipeline drives.
type Tools struct {
	Meson   string `toml:"meson"`
	Ninja   string `toml:"ninja"`
	CXX     string `toml:"cxx"`
	AR      string `toml:"ar"`
	Bindgen string `toml:"bindgen"`
}

// Release identifies the prebuilt release archive used on Windows.
type Release struct {
	Host  string `toml:"host"`
	Owner string `toml:"owner"`
	Repo  string `toml:"repo"`
	Tag   string `toml:"tag"`
	Asset string `toml:"asset"`
}

// Upstream locates the native library's own repository.
type Upstream struct {
	URL string `toml:"url"`
	Ref string `toml:"ref"`
}

// Logging controls the CLI logger.
type Logging struct {
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"
	Format string `toml:"format"` // "console" or "json"
}

// Config is the complete, explicit configuration of one invocation.
type Config struct {
	// OutDir is the build output directory; every artifact lands below it.
	OutDir string `toml:"out_dir"`

	// BundledSource is the checked-in native source tree (a git submodule).
	BundledSource string `toml:"bundled_source"`

	// WrapperSource and WrapperHeader locate the ABI shim.
	WrapperSource string `toml:"wrapper_source"`
	WrapperHeader string `toml:"wrapper_header"`

	// Target is the platform being provisioned for.
	Target Target `toml:"target"`

	// DeploymentTarget overrides the per-architecture macOS minimum version.
	DeploymentTarget string `toml:"deployment_target"`

	// DeriveSerde enables serialization derives on generated bindings.
	DeriveSerde bool `toml:"derive_serde"`

	// SerdeMode is SerdeGenerator or SerdeRewrite.
	SerdeMode string `toml:"serde_mode"`

	// Force ignores a matching build stamp and rebuilds.
	Force bool `toml:"force"`

	// Verbose mirrors subprocess output to the console.
	Verbose bool `toml:"verbose"`

	// DownloadDir receives downloaded release archives.
	DownloadDir string `toml:"download_dir"`

	Tools    Tools    `toml:"tools"`
	Release  Release  `toml:"release"`
	Upstream Upstream `toml:"upstream"`
	Logging  Logging  `toml:"logging"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		BundledSource: "webrtc-audio-processing",
		WrapperSource: filepath.Join("src", "wrapper.cpp"),
		WrapperHeader: filepath.Join("src", "wrapper.hpp"),
		Target:        HostTarget(),
		SerdeMode:     SerdeGenerator,
		DownloadDir:   filepath.Join(xdg.CacheHome, "webrtc-provision"),
		Tools: Tools{
			Meson:   "meson",
			Ninja:   "ninja",
			CXX:     "c++",
			AR:      "ar",
			Bindgen: "bindgen",
		},
		Release: Release{
			Host:  "github.com",
			Owner: "wuurrd",
			Repo:  "webrtc-audio-processing",
			Tag:   "v0.1.0",
			Asset: "webrtc-Windows.zip",
		},
		Upstream: Upstream{
			URL: "https://gitlab.freedesktop.org/pulseaudio/webrtc-audio-processing.git",
			Ref: "v1.3",
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the configuration and normalizes paths to absolute form.
// It returns an INVALID_CONFIGURATION error describing the first problem found.
func (c *Config) Validate() error {
	if c.OutDir == "" {
		return errors.InvalidConfig(EnvOutDir+" environment var not set", nil)
	}

	for _, p := range []*string{&c.OutDir, &c.BundledSource, &c.WrapperSource, &c.WrapperHeader, &c.DownloadDir} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return errors.InvalidConfig(fmt.Sprintf("cannot resolve path %q", *p), err)
		}
		*p = abs
	}

	if c.Target.OS == "" || c.Target.Arch == "" {
		return errors.InvalidConfig("target os and arch are required", nil)
	}

	switch c.SerdeMode {
	case SerdeGenerator, SerdeRewrite:
	default:
		return errors.InvalidConfig(fmt.Sprintf("unknown serde mode %q", c.SerdeMode), nil)
	}

	if c.DeploymentTarget != "" {
		if err := CheckDeploymentTarget(c.DeploymentTarget); err != nil {
			return err
		}
	}

	if _, err := semver.NewVersion(c.Release.Tag); err != nil {
		return errors.InvalidConfig(fmt.Sprintf("release tag %q is not a version", c.Release.Tag), err)
	}
	if c.Release.Host == "" || c.Release.Owner == "" || c.Release.Repo == "" || c.Release.Asset == "" {
		return errors.InvalidConfig("release host, owner, repo and asset are required", nil)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.InvalidConfig(fmt.Sprintf("unknown log level %q", c.Logging.Level), nil)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return errors.InvalidConfig(fmt.Sprintf("unknown log format %q", c.Logging.Format), nil)
	}

	return nil
}

// ProvisionedRoot is where the working copy of the native source lives.
func (c *Config) ProvisionedRoot() string {
	return filepath.Join(c.OutDir, filepath.Base(c.BundledSource))
}

// BindingFile is the generated bindings path.
func (c *Config) BindingFile() string {
	return filepath.Join(c.OutDir, "bindings.rs")
}

// StampFile is the marker recording the last successful native build.
func (c *Config) StampFile() string {
	return filepath.Join(c.OutDir, ".webrtc-provision.stamp")
}

var deploymentTargetPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)

// CheckDeploymentTarget accepts any dotted numeric macOS version, such as
// 11, 10.13 or 10.15.4.1; the compiler driver is the final judge.
func CheckDeploymentTarget(v string) error {
	if !deploymentTargetPattern.MatchString(v) {
		return errors.InvalidConfig(fmt.Sprintf("%s=%q is not a version", EnvDeploymentTarget, v), nil)
	}
	return nil
}
