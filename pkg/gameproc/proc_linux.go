//go:build linux
// +build linux

package gameproc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

type osProcess struct {
	pid int
	mem *os.File
}

// findPID walks /proc for the first process whose comm or argv[0] matches
// name. The kernel truncates comm to 15 bytes, so a prefix match covers
// longer executable names.
func findPID(name string) (int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, fmt.Errorf("read /proc: %w", err)
	}
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		if processMatches(pid, name) {
			return pid, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
}

func processMatches(pid int, name string) bool {
	comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err == nil && commMatches(strings.TrimSpace(string(comm)), name) {
		return true
	}
	argv0 := argv0Of(pid)
	return argv0 != "" && strings.EqualFold(windowsBase(argv0), name)
}

func commMatches(comm, name string) bool {
	if strings.EqualFold(comm, name) {
		return true
	}
	return len(comm) == 15 && len(name) > 15 && strings.EqualFold(comm, name[:15])
}

func argv0Of(pid int) string {
	cmdline, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil || len(cmdline) == 0 {
		return ""
	}
	argv0, _, _ := strings.Cut(string(cmdline), "\x00")
	return argv0
}

// windowsBase is filepath.Base over a path that may use Windows separators,
// the form Proton passes on the command line.
func windowsBase(path string) string {
	return filepath.Base(strings.ReplaceAll(path, `\`, "/"))
}

func openProcess(pid int) (osProcess, error) {
	mem, err := os.Open(fmt.Sprintf("/proc/%d/mem", pid))
	if err != nil {
		return osProcess{}, fmt.Errorf("open mem: %w", err)
	}
	return osProcess{pid: pid, mem: mem}, nil
}

func (o osProcess) read(addr uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := o.mem.ReadAt(buf, int64(addr))
	if err != nil {
		return n, fmt.Errorf("read %#x: %w", addr, err)
	}
	return n, nil
}

func (o osProcess) moduleBase(module string) (uint64, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", o.pid))
	if err != nil {
		return 0, fmt.Errorf("open maps: %w", err)
	}
	defer f.Close()

	base, ok := moduleBaseFromMaps(f, module)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrModuleNotFound, module)
	}
	return base, nil
}

// moduleBaseFromMaps scans a /proc/<pid>/maps listing for the lowest
// mapping backed by a file whose base name matches module.
func moduleBaseFromMaps(r io.Reader, module string) (uint64, bool) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}
		// mapped paths may themselves contain spaces
		path := strings.Join(fields[5:], " ")
		if !strings.EqualFold(filepath.Base(path), module) {
			continue
		}
		start, _, ok := strings.Cut(fields[0], "-")
		if !ok {
			continue
		}
		base, err := strconv.ParseUint(start, 16, 64)
		if err != nil {
			continue
		}
		return base, true
	}
	return 0, false
}

// exePath prefers argv[0] when it names a Windows binary; under Proton
// /proc/<pid>/exe points at the loader, not the game.
func (o osProcess) exePath() (string, error) {
	if argv0 := argv0Of(o.pid); strings.EqualFold(filepath.Ext(argv0), ".exe") {
		return argv0, nil
	}
	return os.Readlink(fmt.Sprintf("/proc/%d/exe", o.pid))
}

func (o osProcess) fileVersion() (string, error) {
	return "", ErrVersionUnavailable
}

func (o osProcess) running() bool {
	return unix.Kill(o.pid, 0) == nil
}

func (o osProcess) close() error {
	return o.mem.Close()
}
