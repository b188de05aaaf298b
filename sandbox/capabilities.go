package sandbox

import (
	"os"
	"os/exec"
	"strings"
)

// Capabilities describes what the host offers for sandboxed execution.
type Capabilities struct {
	BwrapAvailable        bool   `yaml:"bwrap_available"`
	BwrapPath             string `yaml:"bwrap_path,omitempty"`
	BwrapVersion          string `yaml:"bwrap_version,omitempty"`
	UserNamespacesEnabled bool   `yaml:"user_namespaces_enabled"`
}

// DetectCapabilities checks the host for bwrap and working unprivileged
// user namespaces.
func DetectCapabilities(bwrap string) *Capabilities {
	caps := &Capabilities{}

	path, err := exec.LookPath(bwrap)
	if err != nil {
		return caps
	}
	caps.BwrapAvailable = true
	caps.BwrapPath = path

	if out, err := exec.Command(path, "--version").Output(); err == nil {
		caps.BwrapVersion = strings.TrimSpace(string(out))
	}

	caps.UserNamespacesEnabled = checkUserNamespaces(path)
	return caps
}

// CanRunSandbox reports whether isolated execution is possible.
func (c *Capabilities) CanRunSandbox() bool {
	return c.BwrapAvailable && c.UserNamespacesEnabled
}

// SkipReason returns why sandboxing is unavailable, or "" if it is available.
func (c *Capabilities) SkipReason() string {
	if !c.BwrapAvailable {
		return "bubblewrap not installed"
	}
	if !c.UserNamespacesEnabled {
		return "unprivileged user namespaces not enabled (set kernel.unprivileged_userns_clone=1)"
	}
	return ""
}

func checkUserNamespaces(bwrap string) bool {
	data, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone")
	if err == nil && strings.TrimSpace(string(data)) == "0" {
		return false
	}

	cmd := exec.Command(bwrap, "--unshare-user", "--ro-bind", "/", "/", "--", "true")
	return cmd.Run() == nil
}
