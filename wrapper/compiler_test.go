package wrapper

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessful-ai/webrtc-audio-processing/config"
	"github.com/accessful-ai/webrtc-audio-processing/errors"
	"github.com/accessful-ai/webrtc-audio-processing/executor"
	"github.com/accessful-ai/webrtc-audio-processing/executor/executortest"
	"github.com/accessful-ai/webrtc-audio-processing/native"
)

var testPaths = native.BuildPaths{
	IncludePath: "/out/webrtc-audio-processing",
	LibPath:     "/out/webrtc-audio-processing/lib",
}

func testConfig(osName, arch string) *config.Config {
	cfg := config.Defaults()
	cfg.OutDir = "/out"
	cfg.WrapperSource = "/crate/src/wrapper.cpp"
	cfg.Target = config.Target{OS: osName, Arch: arch}
	return cfg
}

// compileCall returns the one call that compiles the shim.
func compileCall(t *testing.T, rec *executortest.Recorder) executortest.Call {
	t.Helper()
	for _, c := range rec.Calls() {
		if c.Program == "c++" && !contains(c.Args, "-fsyntax-only") {
			return c
		}
	}
	t.Fatal("no compile call recorded")
	return executortest.Call{}
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func TestCompile_Linux(t *testing.T) {
	rec := &executortest.Recorder{}
	c := NewCompiler(testConfig(config.OSLinux, "x86_64"), rec)

	art, err := c.Compile(context.Background(), testPaths)
	require.NoError(t, err)
	assert.Equal(t, &Artifact{
		Library: filepath.Join("/out", "libwebrtc_audio_processing_wrapper.a"),
		Dir:     "/out",
		Name:    "webrtc_audio_processing_wrapper",
	}, art)

	cmds := rec.Commands()
	require.Len(t, cmds, 5, "three probes, one compile, one archive")
	for i, flag := range optionalFlags {
		assert.Equal(t, "c++ -x c++ -fsyntax-only -Werror "+flag+" -", cmds[i])
	}

	compile := compileCall(t, rec)
	assert.Equal(t, []string{
		"-Wno-unused-parameter",
		"-Wno-deprecated-declarations",
		"-std=c++11",
		"-fPIC",
		"-I/out/webrtc-audio-processing",
		"-c", "/crate/src/wrapper.cpp",
		"-o", filepath.Join("/out", "wrapper.o"),
	}, compile.Args)

	archive := rec.Calls()[4]
	assert.Equal(t, "ar", archive.Program)
	assert.Equal(t, []string{"crs", art.Library, filepath.Join("/out", "wrapper.o")}, archive.Args)
}

func TestCompile_UnsupportedFlagsDropped(t *testing.T) {
	rec := &executortest.Recorder{
		RunFunc: func(c executortest.Call) (*executor.Result, error) {
			if contains(c.Args, "-Wno-deprecated-declarations") {
				return executortest.Fail(1, "", "unknown warning option")
			}
			return &executor.Result{}, nil
		},
	}
	c := NewCompiler(testConfig(config.OSLinux, "aarch64"), rec)

	_, err := c.Compile(context.Background(), testPaths)
	require.NoError(t, err)

	args := compileCall(t, rec).Args
	assert.True(t, contains(args, "-Wno-unused-parameter"))
	assert.True(t, contains(args, "-std=c++11"))
	assert.False(t, contains(args, "-Wno-deprecated-declarations"))
}

func TestCompile_WindowsDefines(t *testing.T) {
	rec := &executortest.Recorder{}
	c := NewCompiler(testConfig(config.OSWindows, "x86_64"), rec)

	_, err := c.Compile(context.Background(), testPaths)
	require.NoError(t, err)

	args := compileCall(t, rec).Args
	for _, d := range []string{"WEBRTC_WIN", "_WIN32", "__STRICT_ANSI__", "_WINSOCKAPI_", "NOMINMAX", "_USE_MATH_DEFINES"} {
		assert.True(t, contains(args, "-D"+d), "missing define %s", d)
	}
	assert.False(t, contains(args, "-fPIC"))
	for _, a := range args {
		assert.False(t, strings.HasPrefix(a, "-mmacos-version-min"))
	}
}

func TestCompile_MacOS(t *testing.T) {
	tests := []struct {
		arch     string
		override string
		want     string
	}{
		{"x86_64", "", "-mmacos-version-min=10.10"},
		{"aarch64", "", "-mmacos-version-min=11.0"},
		{"aarch64", "12.3", "-mmacos-version-min=12.3"},
		{"powerpc", "10.15", "-mmacos-version-min=10.15"},
		{"x86_64", "10.15.4.1", "-mmacos-version-min=10.15.4.1"},
	}
	for _, tt := range tests {
		t.Run(tt.arch+"/"+tt.override, func(t *testing.T) {
			cfg := testConfig(config.OSMacOS, tt.arch)
			cfg.DeploymentTarget = tt.override
			rec := &executortest.Recorder{}

			_, err := NewCompiler(cfg, rec).Compile(context.Background(), testPaths)
			require.NoError(t, err)
			assert.Equal(t, tt.want, compileCall(t, rec).Args[0])
		})
	}
}

func TestCompile_UnsupportedArch(t *testing.T) {
	rec := &executortest.Recorder{}
	_, err := NewCompiler(testConfig(config.OSMacOS, "powerpc"), rec).Compile(context.Background(), testPaths)

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnsupportedArch)
	assert.Contains(t, err.Error(), "unknown arch: powerpc")
	assert.Empty(t, rec.Calls(), "nothing is compiled")
}

func TestCompile_Failure(t *testing.T) {
	rec := &executortest.Recorder{
		RunFunc: func(c executortest.Call) (*executor.Result, error) {
			if contains(c.Args, "-c") {
				return executortest.Fail(1, "", "wrapper.cpp:1: error: boom")
			}
			return &executor.Result{}, nil
		},
	}
	_, err := NewCompiler(testConfig(config.OSLinux, "x86_64"), rec).Compile(context.Background(), testPaths)

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBuildTool)
	assert.Contains(t, errors.Diagnostic(err), "wrapper.cpp:1: error: boom")
	for _, c := range rec.Calls() {
		assert.NotEqual(t, "ar", c.Program, "nothing is archived after a failed compile")
	}
}

func TestDeploymentTarget(t *testing.T) {
	v, err := DeploymentTarget("x86_64", "")
	require.NoError(t, err)
	assert.Equal(t, "10.10", v)

	v, err = DeploymentTarget("aarch64", "")
	require.NoError(t, err)
	assert.Equal(t, "11.0", v)

	_, err = DeploymentTarget("riscv64", "")
	assert.ErrorIs(t, err, errors.ErrUnsupportedArch)

	v, err = DeploymentTarget("aarch64", "13.0.1.2")
	require.NoError(t, err)
	assert.Equal(t, "13.0.1.2", v, "overrides are passed through verbatim")

	_, err = DeploymentTarget("x86_64", "big sur")
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}
