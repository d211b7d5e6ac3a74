// Package gameproc attaches to a running game client and reads its memory.
// It is the process layer under the pointer-chain resolver: fully external
// and read only, no code injection. Platform back ends live in
// proc_windows.go and proc_linux.go; the Linux path covers clients running
// under Proton.
package gameproc

import (
	"errors"
	"fmt"
)

var (
	// ErrProcessNotFound is returned when no running process matches the
	// requested executable name.
	ErrProcessNotFound = errors.New("process not found")
	// ErrModuleNotFound is returned when the process has no loaded module
	// with the requested name.
	ErrModuleNotFound = errors.New("module not found")
	// ErrVersionUnavailable is returned where the platform has no file
	// version resources; callers fall back to configuration.
	ErrVersionUnavailable = errors.New("file version unavailable")
)

// Process is an attached game client. The zero value is not usable; obtain
// one through Attach. Reads are safe for concurrent use.
type Process struct {
	pid  int
	name string
	os   osProcess
}

// Attach finds the first process whose executable name matches name,
// ignoring case, and opens it for reading.
func Attach(name string) (*Process, error) {
	pid, err := findPID(name)
	if err != nil {
		return nil, err
	}
	osp, err := openProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("open pid %d: %w", pid, err)
	}
	return &Process{pid: pid, name: name, os: osp}, nil
}

// Pid returns the attached process id.
func (p *Process) Pid() int { return p.pid }

// Name returns the executable name the process was attached by.
func (p *Process) Name() string { return p.name }

// ReadMemory copies len(buf) bytes from the target's address space starting
// at addr. It returns the number of bytes read; a short read comes back
// with an error.
func (p *Process) ReadMemory(addr uint64, buf []byte) (int, error) {
	return p.os.read(addr, buf)
}

// ModuleBase returns the load address of the named module, normally the
// game executable itself.
func (p *Process) ModuleBase(module string) (uint64, error) {
	return p.os.moduleBase(module)
}

// ExePath returns the filesystem path of the main executable.
func (p *Process) ExePath() (string, error) {
	return p.os.exePath()
}

// FileVersion returns the dotted version of the main executable as recorded
// in its version resource, such as "2.0.1.0".
func (p *Process) FileVersion() (string, error) {
	return p.os.fileVersion()
}

// Running reports whether the target process is still alive. It is a cheap
// probe meant for polling.
func (p *Process) Running() bool {
	return p.os.running()
}

// Close releases the platform handle. The Process must not be used after.
func (p *Process) Close() error {
	return p.os.close()
}
