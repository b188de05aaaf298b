package sandbox

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/isdmx/coderun/config"
)

// Directive is one isolation instruction for the bwrap wrapper. Directives
// stay typed until the launcher flattens them into arguments.
type Directive interface {
	Args() []string
}

// ReadOnlyBind exposes a host path read-only at Guest. An Optional bind is
// skipped when Host does not exist.
type ReadOnlyBind struct {
	Host     string
	Guest    string
	Optional bool
}

func (d ReadOnlyBind) Args() []string {
	if d.Optional {
		return []string{"--ro-bind-try", d.Host, d.Guest}
	}
	return []string{"--ro-bind", d.Host, d.Guest}
}

// WritableBind exposes a host path read-write at Guest.
type WritableBind struct {
	Host  string
	Guest string
}

func (d WritableBind) Args() []string {
	return []string{"--bind", d.Host, d.Guest}
}

// Namespace names a kernel namespace the sandbox detaches from.
type Namespace string

// Namespaces
const (
	NamespaceUser Namespace = "user"
	NamespaceIPC  Namespace = "ipc"
	NamespacePID  Namespace = "pid"
	NamespaceUTS  Namespace = "uts"
	NamespaceNet  Namespace = "net"
)

// Unshare detaches the sandbox from one namespace.
type Unshare struct {
	Namespace Namespace
}

func (d Unshare) Args() []string {
	return []string{"--unshare-" + string(d.Namespace)}
}

// Identity sets the user and group the guest sees for itself inside the
// user namespace.
type Identity struct {
	UID int
	GID int
}

func (d Identity) Args() []string {
	return []string{"--uid", strconv.Itoa(d.UID), "--gid", strconv.Itoa(d.GID)}
}

// Proc mounts a fresh procfs.
type Proc struct {
	Path string
}

func (d Proc) Args() []string {
	return []string{"--proc", d.Path}
}

// DevNodes mounts a minimal device tree.
type DevNodes struct {
	Path string
}

func (d DevNodes) Args() []string {
	return []string{"--dev", d.Path}
}

// NewSession starts the guest in a new terminal session.
type NewSession struct{}

func (NewSession) Args() []string {
	return []string{"--new-session"}
}

// DieWithParent kills the sandbox when the launching process dies.
type DieWithParent struct{}

func (DieWithParent) Args() []string {
	return []string{"--die-with-parent"}
}

// ScratchDir creates an empty directory inside the sandbox.
type ScratchDir struct {
	Path string
}

func (d ScratchDir) Args() []string {
	return []string{"--dir", d.Path}
}

// Chdir sets the guest's working directory.
type Chdir struct {
	Path string
}

func (d Chdir) Args() []string {
	return []string{"--chdir", d.Path}
}

// Profile is the ordered isolation description for one execution.
type Profile struct {
	directives []Directive
}

// Directives returns a copy of the profile's directives.
func (p *Profile) Directives() []Directive {
	return slices.Clone(p.directives)
}

// Args flattens the profile into wrapper arguments, in order.
func (p *Profile) Args() []string {
	var args []string
	for _, d := range p.directives {
		args = append(args, d.Args()...)
	}
	return args
}

// ProfileOptions selects what the sandbox can see.
type ProfileOptions struct {
	SystemDirs         []string
	OptionalSystemDirs []string
	CacheDir           string
	CacheWritable      bool
	HomeDir            string
	Network            bool
}

// ProfileOptionsFromConfig reads the profile options from the sandbox configuration
func ProfileOptionsFromConfig(cfg *config.Config) ProfileOptions {
	return ProfileOptions{
		SystemDirs:         cfg.Sandbox.SystemDirs,
		OptionalSystemDirs: cfg.Sandbox.OptionalSystemDirs,
		CacheDir:           cfg.Sandbox.CacheDir,
		CacheWritable:      cfg.Sandbox.CacheMode != config.CacheModeRO,
		HomeDir:            cfg.Sandbox.HomeDir,
		Network:            cfg.Sandbox.NetworkEnabled,
	}
}

// ProfileBuilder produces profiles that differ only in their workspace.
type ProfileBuilder struct {
	base []Directive
}

// NewProfileBuilder computes the workspace-independent part of every profile.
func NewProfileBuilder(opts ProfileOptions) *ProfileBuilder {
	var base []Directive

	for _, dir := range opts.SystemDirs {
		base = append(base, ReadOnlyBind{Host: dir, Guest: dir})
	}
	for _, dir := range opts.OptionalSystemDirs {
		base = append(base, ReadOnlyBind{Host: dir, Guest: dir, Optional: true})
	}

	if opts.CacheDir != "" {
		if opts.CacheWritable {
			base = append(base, WritableBind{Host: opts.CacheDir, Guest: opts.CacheDir})
		} else {
			base = append(base, ReadOnlyBind{Host: opts.CacheDir, Guest: opts.CacheDir})
		}
	}

	base = append(base,
		Proc{Path: "/proc"},
		DevNodes{Path: "/dev"},
		Unshare{Namespace: NamespaceUser},
		Identity{UID: 0, GID: 0},
		Unshare{Namespace: NamespaceIPC},
		Unshare{Namespace: NamespacePID},
		Unshare{Namespace: NamespaceUTS},
	)
	if !opts.Network {
		base = append(base, Unshare{Namespace: NamespaceNet})
	}

	base = append(base,
		NewSession{},
		DieWithParent{},
		ScratchDir{Path: "/tmp"},
	)
	if opts.HomeDir != "" {
		base = append(base, ScratchDir{Path: opts.HomeDir})
	}

	return &ProfileBuilder{base: base}
}

// Build returns the profile for a workspace. The workspace is bound
// read-write at its host path and becomes the working directory.
func (b *ProfileBuilder) Build(ws *Workspace) (*Profile, error) {
	if ws == nil || !filepath.IsAbs(ws.Path) || filepath.Clean(ws.Path) == "/" {
		return nil, fmt.Errorf("invalid workspace path")
	}

	directives := make([]Directive, 0, len(b.base)+2)
	directives = append(directives, b.base...)
	directives = append(directives,
		WritableBind{Host: ws.Path, Guest: ws.Path},
		Chdir{Path: ws.Path},
	)

	return &Profile{directives: directives}, nil
}
