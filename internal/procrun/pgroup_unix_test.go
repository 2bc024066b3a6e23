//go:build unix

package procrun

import (
	"os/exec"
	"testing"
)

func TestConfigureProcessGroup(t *testing.T) {
	cmd := exec.Command("true")
	configureProcessGroup(cmd)
	if cmd.SysProcAttr == nil || !cmd.SysProcAttr.Setpgid {
		t.Fatal("expected Setpgid")
	}
	if cmd.Cancel == nil {
		t.Fatal("expected Cancel hook")
	}
	if err := cmd.Cancel(); err != nil {
		t.Fatalf("Cancel before start must be a no-op: %v", err)
	}
}
