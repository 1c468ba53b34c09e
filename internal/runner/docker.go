package runner

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// DockerConfig holds Docker evaluator configuration.
type DockerConfig struct {
	Image      string
	MemoryMB   int64
	CPULimit   float64
	NetworkOff bool
	Timeout    time.Duration
}

// DockerEvaluator runs each job in a fresh container with resource limits
// and, by default, no network.
type DockerEvaluator struct {
	client *client.Client
	cfg    DockerConfig
}

// NewDockerEvaluator creates a Docker evaluator and verifies the daemon is
// reachable.
func NewDockerEvaluator(cfg DockerConfig) (*DockerEvaluator, error) {
	if cfg.Image == "" {
		cfg.Image = "golang:1.25-alpine"
	}
	if cfg.MemoryMB == 0 {
		cfg.MemoryMB = 256
	}
	if cfg.CPULimit == 0 {
		cfg.CPULimit = 0.5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker not reachable: %w", err)
	}

	return &DockerEvaluator{client: cli, cfg: cfg}, nil
}

func (e *DockerEvaluator) Run(ctx context.Context, job Job) (*Result, error) {
	files, err := BuildHarness(job)
	if err != nil {
		return nil, fmt.Errorf("build harness: %w", err)
	}

	if err := e.ensureImage(ctx, e.cfg.Image); err != nil {
		return nil, fmt.Errorf("ensure image: %w", err)
	}

	id, err := e.createContainer(ctx)
	if err != nil {
		return nil, err
	}
	defer e.destroyContainer(id)

	if err := e.copyFiles(ctx, id, files); err != nil {
		return nil, fmt.Errorf("copy files: %w", err)
	}

	exitCode, stdout, stderr, err := e.exec(ctx, id, []string{"go", "run", "."})
	if err != nil {
		return nil, err
	}
	if exitCode != 0 {
		return &Result{Fail: failureDetail(stdout, stderr)}, nil
	}

	data, err := e.readFile(ctx, id, "/workspace/"+ResultFile)
	if err != nil {
		return nil, fmt.Errorf("read result envelope: %w", err)
	}
	return decodeEnvelopeBytes(data, stdout)
}

// Close closes the Docker client.
func (e *DockerEvaluator) Close() error { return e.client.Close() }

func (e *DockerEvaluator) createContainer(ctx context.Context) (string, error) {
	containerCfg := &container.Config{
		Image:           e.cfg.Image,
		Cmd:             []string{"sh", "-c", "while true; do sleep 3600; done"},
		WorkingDir:      "/workspace",
		NetworkDisabled: e.cfg.NetworkOff,
		Env:             []string{"GOFLAGS=-mod=mod", "GOPROXY=off", "HOME=/tmp"},
		Labels: map[string]string{
			"testbank.sandbox": "true",
		},
	}
	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:   e.cfg.MemoryMB * 1024 * 1024,
			NanoCPUs: int64(e.cfg.CPULimit * 1e9),
		},
	}

	resp, err := e.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	if err := e.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = e.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("start container: %w", err)
	}
	return resp.ID, nil
}

func (e *DockerEvaluator) destroyContainer(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	stop := 5
	_ = e.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &stop})
	_ = e.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
}

func (e *DockerEvaluator) copyFiles(ctx context.Context, id string, files map[string]string) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		header := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write tar header: %w", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return fmt.Errorf("write tar content: %w", err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	return e.client.CopyToContainer(ctx, id, "/workspace", &buf, container.CopyToContainerOptions{})
}

func (e *DockerEvaluator) exec(ctx context.Context, id string, cmd []string) (int, string, string, error) {
	execCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	execResp, err := e.client.ContainerExecCreate(execCtx, id, container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   "/workspace",
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return 0, "", "", fmt.Errorf("create exec: %w", err)
	}

	attachResp, err := e.client.ContainerExecAttach(execCtx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return 0, "", "", fmt.Errorf("attach exec: %w", err)
	}
	defer attachResp.Close()

	var outBuf bytes.Buffer
	if _, err := io.Copy(&outBuf, attachResp.Reader); err != nil && execCtx.Err() != nil {
		return 0, "", "", fmt.Errorf("evaluation: %w", execCtx.Err())
	}

	inspectResp, err := e.client.ContainerExecInspect(execCtx, execResp.ID)
	if err != nil {
		return 0, "", "", fmt.Errorf("inspect exec: %w", err)
	}

	stdout, stderr := demuxOutput(outBuf.Bytes())
	return inspectResp.ExitCode, stdout, stderr, nil
}

// readFile pulls a single file out of the container.
func (e *DockerEvaluator) readFile(ctx context.Context, id, path string) ([]byte, error) {
	reader, _, err := e.client.CopyFromContainer(ctx, id, path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	tr := tar.NewReader(reader)
	if _, err := tr.Next(); err != nil {
		return nil, fmt.Errorf("read tar: %w", err)
	}
	return io.ReadAll(tr)
}

func (e *DockerEvaluator) ensureImage(ctx context.Context, img string) error {
	if _, err := e.client.ImageInspect(ctx, img); err == nil {
		return nil
	}
	reader, err := e.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

// demuxOutput separates Docker's multiplexed stdout/stderr stream. The
// protocol prefixes each chunk with an 8-byte header: [type 0 0 0 s1 s2 s3 s4].
func demuxOutput(data []byte) (stdout, stderr string) {
	var outBuf, errBuf strings.Builder
	for len(data) >= 8 {
		streamType := data[0]
		size := int(data[4])<<24 | int(data[5])<<16 | int(data[6])<<8 | int(data[7])
		data = data[8:]
		if size > len(data) {
			size = len(data)
		}
		chunk := string(data[:size])
		data = data[size:]
		switch streamType {
		case 1:
			outBuf.WriteString(chunk)
		case 2:
			errBuf.WriteString(chunk)
		}
	}
	if outBuf.Len() == 0 && errBuf.Len() == 0 && len(data) > 0 {
		return string(data), ""
	}
	return outBuf.String(), errBuf.String()
}
