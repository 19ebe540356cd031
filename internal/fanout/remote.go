package fanout

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/kebairia/backman/internal/catalog"
)

const rsyncBin = "rsync"

// Remote syncs artifacts to an SSH target with rsync. rsync gives
// delta-resume on retried attempts for free.
type Remote struct {
	user string
	host string
	path string
}

// NewRemote returns a destination for user@host:path.
func NewRemote(user, host, path string) *Remote {
	return &Remote{user: user, host: host, path: path}
}

func (r *Remote) Ref() catalog.DestinationRef {
	return catalog.DestinationRef{
		Kind: catalog.DestRemote,
		User: r.user,
		Host: r.host,
		Path: r.path,
	}
}

func (r *Remote) target() string {
	return fmt.Sprintf("%s@%s:%s", r.user, r.host, r.path)
}

// Store rsyncs the artifact and sidecar to the target.
func (r *Remote) Store(ctx context.Context, artifactPath string) error {
	if _, err := exec.LookPath(rsyncBin); err != nil {
		return fmt.Errorf("%w: %s not installed", ErrDestinationUnreachable, rsyncBin)
	}

	args := []string{
		"-az",
		"--partial",
		"-e", "ssh -o BatchMode=yes",
		artifactPath,
		artifactPath + catalog.SidecarSuffix,
		r.target(),
	}
	cmd := exec.CommandContext(ctx, rsyncBin, args...)
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: rsync to %s: %v", ErrDestinationUnreachable, r.target(), err)
	}
	return nil
}
