package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessful-ai/webrtc-audio-processing/errors"
)

func TestLoad_DefaultsWithEnv(t *testing.T) {
	out := t.TempDir()

	cfg, err := Load(LoadOptions{
		Lookup: MapLookup(map[string]string{
			EnvOutDir:      out,
			EnvTargetOS:    "macos",
			EnvTargetArch:  "aarch64",
			EnvDeriveSerde: "1",
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, out, cfg.OutDir)
	assert.Equal(t, Target{OS: "macos", Arch: "aarch64"}, cfg.Target)
	assert.True(t, cfg.Target.IsApple())
	assert.True(t, cfg.DeriveSerde)
	assert.Equal(t, SerdeGenerator, cfg.SerdeMode)
	assert.Equal(t, "v0.1.0", cfg.Release.Tag)
	assert.Equal(t, filepath.Join(out, "webrtc-audio-processing"), cfg.ProvisionedRoot())
	assert.Equal(t, filepath.Join(out, "bindings.rs"), cfg.BindingFile())
}

func TestLoad_MissingOutDir(t *testing.T) {
	_, err := Load(LoadOptions{Lookup: MapLookup(nil)})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "OUT_DIR")
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "provision.toml")
	content := `
out_dir = "` + filepath.ToSlash(filepath.Join(dir, "from-file")) + `"
deployment_target = "10.13"
serde_mode = "rewrite"

[tools]
cxx = "clang++"

[release]
tag = "v0.2.0"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(LoadOptions{
		Path: path,
		Lookup: MapLookup(map[string]string{
			EnvOutDir: filepath.Join(dir, "from-env"),
		}),
	})
	require.NoError(t, err)

	// env beats file
	assert.Equal(t, filepath.Join(dir, "from-env"), cfg.OutDir)
	// file beats defaults
	assert.Equal(t, "10.13", cfg.DeploymentTarget)
	assert.Equal(t, SerdeRewrite, cfg.SerdeMode)
	assert.Equal(t, "clang++", cfg.Tools.CXX)
	assert.Equal(t, "v0.2.0", cfg.Release.Tag)
	// untouched defaults survive
	assert.Equal(t, "ninja", cfg.Tools.Ninja)
	assert.Equal(t, "webrtc-Windows.zip", cfg.Release.Asset)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provision.toml")
	require.NoError(t, os.WriteFile(path, []byte("outdir = \"x\"\n"), 0o644))

	_, err := Load(LoadOptions{Path: path})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "nope.toml")})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad serde mode", func(c *Config) { c.SerdeMode = "ast" }, "unknown serde mode"},
		{"bad deployment target", func(c *Config) { c.DeploymentTarget = "ventura" }, "is not a version"},
		{"four part deployment target", func(c *Config) { c.DeploymentTarget = "10.15.4.1" }, ""},
		{"major only deployment target", func(c *Config) { c.DeploymentTarget = "11" }, ""},
		{"bad release tag", func(c *Config) { c.Release.Tag = "latest" }, "release tag"},
		{"missing asset", func(c *Config) { c.Release.Asset = "" }, "asset are required"},
		{"missing arch", func(c *Config) { c.Target.Arch = "" }, "target os and arch"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "unknown log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "unknown log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.OutDir = t.TempDir()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.True(t, filepath.IsAbs(cfg.BundledSource))
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyEnv_DeriveSerdePresenceOnly(t *testing.T) {
	cfg := Defaults()
	cfg.ApplyEnv(MapLookup(map[string]string{EnvDeriveSerde: ""}))
	assert.True(t, cfg.DeriveSerde)

	cfg = Defaults()
	cfg.ApplyEnv(MapLookup(map[string]string{}))
	assert.False(t, cfg.DeriveSerde)
}

func TestHostTarget(t *testing.T) {
	target := HostTarget()
	assert.NotEmpty(t, target.OS)
	assert.NotEmpty(t, target.Arch)
	assert.NotEqual(t, "darwin", target.OS)
	assert.NotEqual(t, "amd64", target.Arch)
}

func TestCheckDeploymentTarget(t *testing.T) {
	for _, v := range []string{"11", "10.13", "12.3.1", "10.15.4.1"} {
		assert.NoError(t, CheckDeploymentTarget(v), v)
	}
	for _, v := range []string{"", "v11", "big sur", "10.", ".10", "10..1", "11.0-beta"} {
		err := CheckDeploymentTarget(v)
		assert.ErrorIs(t, err, errors.ErrInvalidConfig, v)
	}
}
