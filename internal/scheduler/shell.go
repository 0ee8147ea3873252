package scheduler

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/alessio/shellescape"

	"fswatchd/internal/fsevent"
)

// NewShell builds a TaskScheduler whose job spawns an OS shell command
// built from cmd by substituting the {maskname}, {pathname}, and
// {src_pathname} placeholders with their POSIX-shell-quoted values, then
// running it through /bin/sh -c. Output is discarded; spawn and wait
// errors are reported as an OperationError-equivalent (a plain error
// returned from the job, logged by the engine at error level) rather
// than propagated, matching the non-interrupting failure model of the
// rest of the scheduler.
func NewShell(cmd string, opts ...Option) *TaskScheduler {
	job := func(ctx context.Context, e fsevent.Event, taskID string) error {
		resolved := substitutePlaceholders(cmd, e)

		proc := exec.CommandContext(ctx, "/bin/sh", "-c", resolved)
		if err := proc.Run(); err != nil {
			return fmt.Errorf("shell command failed: %w", err)
		}
		return nil
	}
	return New(job, opts...)
}

func substitutePlaceholders(cmd string, e fsevent.Event) string {
	r := strings.NewReplacer(
		"{maskname}", shellescape.Quote(e.PrimaryFlag()),
		"{pathname}", shellescape.Quote(e.Pathname),
		"{src_pathname}", shellescape.Quote(e.SrcPathname),
	)
	return r.Replace(cmd)
}
