package test

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gruntwork-io/terratest/modules/docker"
	http_helper "github.com/gruntwork-io/terratest/modules/http-helper"
	"github.com/gruntwork-io/terratest/modules/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	repoRoot       = "../../.."
	dockerfilePath = "../Dockerfile"
	startScript    = "../start.sh"
)

// instruction is one Dockerfile instruction with its stage index.
type instruction struct {
	stage int
	cmd   string
	args  string
}

// parseDockerfile returns the instructions in order, joining continuation
// lines and dropping comments.
func parseDockerfile(t *testing.T) []instruction {
	t.Helper()

	f, err := os.Open(dockerfilePath)
	require.NoError(t, err)
	defer f.Close()

	var (
		out     []instruction
		stage   = -1
		pending strings.Builder
	)
	flush := func() {
		line := strings.TrimSpace(pending.String())
		pending.Reset()
		if line == "" {
			return
		}
		cmd, args, _ := strings.Cut(line, " ")
		cmd = strings.ToUpper(cmd)
		if cmd == "FROM" {
			stage++
		}
		out = append(out, instruction{stage: stage, cmd: cmd, args: strings.TrimSpace(args)})
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, "\\") {
			pending.WriteString(strings.TrimSuffix(line, "\\"))
			pending.WriteString(" ")
			continue
		}
		pending.WriteString(line)
		flush()
	}
	require.NoError(t, sc.Err())
	flush()
	return out
}

func indexOf(instrs []instruction, stage int, cmd, contains string) int {
	for i, in := range instrs {
		if in.stage == stage && in.cmd == cmd && strings.Contains(in.args, contains) {
			return i
		}
	}
	return -1
}

func lastStage(instrs []instruction) int {
	return instrs[len(instrs)-1].stage
}

func TestDockerfileBaseImages(t *testing.T) {
	instrs := parseDockerfile(t)

	require.Equal(t, "FROM", instrs[indexOf(instrs, 0, "FROM", "")].cmd)
	assert.NotEqual(t, -1, indexOf(instrs, 0, "FROM", "golang:"), "build stage must use the Go toolchain image")
	assert.NotEqual(t, -1, indexOf(instrs, lastStage(instrs), "FROM", "-slim"), "runtime stage must use a slim image")
}

func TestDockerfileDependencyLayerPrecedesSource(t *testing.T) {
	instrs := parseDockerfile(t)

	manifest := indexOf(instrs, 0, "COPY", "go.mod go.sum*")
	download := indexOf(instrs, 0, "RUN", "go mod download")
	source := indexOf(instrs, 0, "COPY", ". .")
	build := indexOf(instrs, 0, "RUN", "go build")

	require.NotEqual(t, -1, manifest, "manifest COPY missing")
	require.NotEqual(t, -1, download, "go mod download missing")
	require.NotEqual(t, -1, source, "source COPY missing")
	require.NotEqual(t, -1, build, "go build missing")

	assert.Less(t, manifest, download, "manifest must be copied before downloading modules")
	assert.Less(t, download, source, "modules must be downloaded before the source is copied")
	assert.Less(t, source, build)

	for i := manifest + 1; i < source; i++ {
		if instrs[i].cmd == "COPY" {
			t.Errorf("unexpected COPY between manifest and source layers: %s", instrs[i].args)
		}
	}
}

func TestDockerfileStampsVersion(t *testing.T) {
	instrs := parseDockerfile(t)

	arg := indexOf(instrs, 0, "ARG", "VERSION")
	build := indexOf(instrs, 0, "RUN", "go build")
	require.NotEqual(t, -1, arg, "VERSION build arg missing")
	require.NotEqual(t, -1, build, "go build missing")
	assert.Less(t, arg, build)
	assert.Contains(t, instrs[build].args, "-X main.version=${VERSION}")
}

func TestDockerfileOptionalFFmpegLayer(t *testing.T) {
	instrs := parseDockerfile(t)
	runtime := lastStage(instrs)

	arg := indexOf(instrs, runtime, "ARG", "INSTALL_FFMPEG")
	install := indexOf(instrs, runtime, "RUN", "ffmpeg")
	require.NotEqual(t, -1, arg, "INSTALL_FFMPEG build arg missing")
	require.NotEqual(t, -1, install, "ffmpeg install step missing")
	assert.Less(t, arg, install)

	run := instrs[install].args
	assert.Contains(t, run, "INSTALL_FFMPEG")
	assert.Contains(t, run, "rm -rf /var/lib/apt/lists/*", "package cache must be pruned in the same layer")
}

func TestDockerfileRuntimeLaunch(t *testing.T) {
	instrs := parseDockerfile(t)
	runtime := lastStage(instrs)

	assert.NotEqual(t, -1, indexOf(instrs, runtime, "EXPOSE", "8000"))
	assert.NotEqual(t, -1, indexOf(instrs, runtime, "ENV", "PORT=8000"))
	assert.NotEqual(t, -1, indexOf(instrs, runtime, "CMD", "start.sh"))
	assert.NotEqual(t, -1, indexOf(instrs, runtime, "COPY", "infrastructure/docker/start.sh"))
}

func TestStartScript(t *testing.T) {
	data, err := os.ReadFile(startScript)
	require.NoError(t, err)
	script := string(data)

	assert.True(t, strings.HasPrefix(script, "#!/bin/sh"))
	assert.Contains(t, script, `PORT="${PORT:-8000}"`)
	assert.Contains(t, script, "export PORT")
	assert.Contains(t, script, "exec /usr/local/bin/audio2srt-server")

	info, err := os.Stat(startScript)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o111, "start.sh must be executable")
}

// TestDockerImageServesHealth builds the image and checks that the server
// answers on the default port and on $PORT.
func TestDockerImageServesHealth(t *testing.T) {
	// Skip this test unless explicitly enabled with TERRATEST_ENABLED=1
	if os.Getenv("TERRATEST_ENABLED") != "1" {
		t.Skip("Skipping docker image tests. Set TERRATEST_ENABLED=1 to run")
	}

	root, err := filepath.Abs(repoRoot)
	require.NoError(t, err)

	tag := fmt.Sprintf("audio2srt-test:%s", strings.ToLower(random.UniqueId()))
	docker.Build(t, root, &docker.BuildOptions{
		Tags:         []string{tag},
		BuildArgs:    []string{"INSTALL_FFMPEG=false", "WHISPER_MODEL=tiny"},
		OtherOptions: []string{"-f", filepath.Join(root, "infrastructure", "docker", "Dockerfile")},
	})

	tests := []struct {
		name          string
		hostPort      int
		containerPort int
		env           []string
	}{
		{name: "default port", hostPort: 18000, containerPort: 8000},
		{name: "PORT override", hostPort: 18001, containerPort: 9100, env: []string{"-e", "PORT=9100"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := append([]string{"--rm", "-p", fmt.Sprintf("%d:%d", tc.hostPort, tc.containerPort)}, tc.env...)
			id := docker.RunAndGetID(t, tag, &docker.RunOptions{
				Detach:       true,
				OtherOptions: opts,
			})
			defer docker.Stop(t, []string{id}, &docker.StopOptions{})

			url := fmt.Sprintf("http://localhost:%d/health", tc.hostPort)
			http_helper.HttpGetWithRetryWithCustomValidation(t, url, nil, 30, 2*time.Second,
				func(status int, body string) bool {
					return status == 200 && strings.TrimSpace(body) == `{"status":"ok"}`
				})
		})
	}
}

// TestDockerBuildFailsWithoutManifest checks that a context with no go.mod
// fails at the manifest COPY.
func TestDockerBuildFailsWithoutManifest(t *testing.T) {
	if os.Getenv("TERRATEST_ENABLED") != "1" {
		t.Skip("Skipping docker image tests. Set TERRATEST_ENABLED=1 to run")
	}

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cmd", "server"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmd", "server", "main.go"), []byte("package main\nfunc main() {}\n"), 0o644))

	dockerfile, err := filepath.Abs(dockerfilePath)
	require.NoError(t, err)

	err = docker.BuildE(t, dir, &docker.BuildOptions{
		Tags:         []string{"audio2srt-test:no-manifest"},
		Target:       "build",
		OtherOptions: []string{"-f", dockerfile},
	})
	require.Error(t, err)
}
