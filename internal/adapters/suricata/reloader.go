// Package suricata integrates with the detection engine's control socket.
package suricata

import (
	"context"
	"fmt"
	"os/exec"
)

// SocketReloader asks the engine to re-read its rule set through the
// suricatasc control client. Callers bound the call with a context deadline;
// a hung engine must never stall the blacklist.
type SocketReloader struct {
	Binary string
}

func NewSocketReloader(binary string) *SocketReloader {
	if binary == "" {
		binary = "suricatasc"
	}
	return &SocketReloader{Binary: binary}
}

func (r *SocketReloader) Reload(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, r.Binary, "-c", "reload-rules")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("suricatasc reload-rules: %w (output: %s)", err, out)
	}
	return nil
}
