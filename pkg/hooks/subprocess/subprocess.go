// Package subprocess implements hookdispatch.Notifier by executing an
// external program, Git-hooks style, modeled on the teacher's
// pkg/hooks/file package.
package subprocess

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/tusgate/tusgate/pkg/engine"
	"github.com/tusgate/tusgate/pkg/hookdispatch"
)

// Notifier runs an external program for each dispatched event, feeding it
// the JSON payload and the upload's id/size/offset as environment
// variables. Exactly one of Path or Directory should be set:
//
//   - Path names a single script invoked for every event, with the event
//     kind as argv[1] and the JSON payload as argv[2].
//   - Directory names a folder of per-event scripts, "<Directory>/<event
//     name>", fed the JSON payload on stdin.
//
// A missing script is not an error for a post-* event — that event is
// simply unhandled. Subprocess delivery is synchronous and blocking, so a
// missing script for a pre-* event is treated as a delivery failure and
// vetoes the transition.
type Notifier struct {
	Path      string
	Directory string
	Format    hookdispatch.Format
}

func (Notifier) Setup() error { return nil }

func (n Notifier) Invoke(ctx context.Context, kind engine.EventKind, snap engine.Snapshot) (hookdispatch.Result, error) {
	body, err := hookdispatch.Marshal(n.Format, kind, snap)
	if err != nil {
		return hookdispatch.Result{}, err
	}

	var cmd *exec.Cmd
	if n.Path != "" {
		cmd = exec.CommandContext(ctx, n.Path, string(kind), string(body))
	} else {
		hookPath := n.Directory + string(os.PathSeparator) + string(kind)
		cmd = exec.CommandContext(ctx, hookPath)
		cmd.Dir = n.Directory
		cmd.Stdin = bytes.NewReader(body)
	}

	env := os.Environ()
	env = append(env, "TUSGATE_ID="+snap.Upload.ID)
	env = append(env, "TUSGATE_SIZE="+strconv.FormatInt(snap.Upload.Length, 10))
	env = append(env, "TUSGATE_OFFSET="+strconv.FormatInt(snap.Upload.Offset, 10))
	cmd.Env = env
	cmd.Stderr = os.Stderr

	output, err := cmd.Output()
	if os.IsNotExist(err) {
		if isPreEvent(kind) {
			return hookdispatch.Result{}, fmt.Errorf("hook script for %s not found: %w", kind, err)
		}
		return hookdispatch.Result{}, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return hookdispatch.Result{}, fmt.Errorf("hook script exited %d: %s", exitErr.ProcessState.ExitCode(), string(output))
	}
	if err != nil {
		return hookdispatch.Result{}, err
	}

	if len(output) == 0 {
		return hookdispatch.Result{}, nil
	}
	var res hookdispatch.Response
	if err := json.Unmarshal(output, &res); err != nil {
		return hookdispatch.Result{}, fmt.Errorf("parsing hook script output: %w", err)
	}
	return res.ToResult(), nil
}

func isPreEvent(kind engine.EventKind) bool {
	return strings.HasPrefix(string(kind), "pre-")
}

var _ hookdispatch.Notifier = Notifier{}
