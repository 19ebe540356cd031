package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/kebairia/backman/internal/catalog"
	"github.com/kebairia/backman/internal/logger"
)

const (
	dockerBin = "docker"

	// helperImage is the throwaway container used to read the volume.
	helperImage = "alpine"
)

// Finisher is implemented by tar streams backed by a subprocess. The
// archive builder calls Finish after draining the stream and must treat a
// Finish error as a build failure: the bytes already copied cannot be
// trusted.
type Finisher interface {
	Finish() error
}

// DockerVolume stages a named docker volume by mounting it read-only into
// a helper container and streaming a tar of its contents.
type DockerVolume struct {
	name   string
	volume string
	log    logger.Logger
}

// NewDockerVolume returns a collector for the named volume.
func NewDockerVolume(name, volume string, log logger.Logger) *DockerVolume {
	return &DockerVolume{name: name, volume: volume, log: log}
}

func (d *DockerVolume) Name() string       { return d.name }
func (d *DockerVolume) Kind() catalog.Kind { return catalog.KindDockerVolume }

// Collect verifies the volume exists and starts the tar stream.
func (d *DockerVolume) Collect(ctx context.Context) (*Staged, error) {
	if _, err := exec.LookPath(dockerBin); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolMissing, dockerBin)
	}

	inspect := exec.CommandContext(ctx, dockerBin, "volume", "inspect", d.volume)
	inspect.Stdout = io.Discard
	inspect.Stderr = io.Discard
	if err := inspect.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrVolumeNotFound, d.volume)
	}

	cmd := exec.CommandContext(ctx, dockerBin,
		"run", "--rm",
		"-v", d.volume+":/src:ro",
		helperImage,
		"tar", "-cf", "-", "-C", "/src", ".",
	)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("volume %q: stdout pipe: %w", d.volume, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("volume %q: start helper: %w", d.volume, err)
	}

	d.log.Info("volume stream started", "source", d.name, "volume", d.volume)
	return &Staged{TarStream: &cmdStream{rc: stdout, cmd: cmd}}, nil
}

// cmdStream is a subprocess-backed tar stream.
type cmdStream struct {
	rc     io.ReadCloser
	cmd    *exec.Cmd
	waited bool
}

func (s *cmdStream) Read(p []byte) (int, error) { return s.rc.Read(p) }

// Finish waits for the helper and reports its exit status.
func (s *cmdStream) Finish() error {
	s.waited = true
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("volume helper: %w", err)
	}
	return nil
}

func (s *cmdStream) Close() error {
	err := s.rc.Close()
	if !s.waited {
		s.waited = true
		// Abandoned mid-stream: reap the helper, ignore its status.
		_ = s.cmd.Wait()
	}
	return err
}
