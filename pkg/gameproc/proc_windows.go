//go:build windows
// +build windows

package gameproc

import (
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

type osProcess struct {
	pid    int
	handle windows.Handle
}

// findPID walks the toolhelp snapshot for the first process whose
// executable name matches.
func findPID(name string) (int, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return 0, fmt.Errorf("process snapshot: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	if err := windows.Process32First(snapshot, &entry); err != nil {
		return 0, fmt.Errorf("process snapshot walk: %w", err)
	}
	for {
		if strings.EqualFold(windows.UTF16ToString(entry.ExeFile[:]), name) {
			return int(entry.ProcessID), nil
		}
		if err := windows.Process32Next(snapshot, &entry); err != nil {
			break
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
}

func openProcess(pid int) (osProcess, error) {
	handle, err := windows.OpenProcess(
		windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ|windows.SYNCHRONIZE,
		false,
		uint32(pid),
	)
	if err != nil {
		return osProcess{}, err
	}
	return osProcess{pid: pid, handle: handle}, nil
}

func (o osProcess) read(addr uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	var done uintptr
	err := windows.ReadProcessMemory(o.handle, uintptr(addr), &buf[0], uintptr(len(buf)), &done)
	if err != nil {
		return int(done), fmt.Errorf("read %#x: %w", addr, err)
	}
	if int(done) != len(buf) {
		return int(done), fmt.Errorf("read %#x: short read %d of %d", addr, done, len(buf))
	}
	return int(done), nil
}

func (o osProcess) moduleBase(module string) (uint64, error) {
	entry, err := o.findModule(func(e *windows.ModuleEntry32) bool {
		return strings.EqualFold(windows.UTF16ToString(e.Module[:]), module)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrModuleNotFound, module)
	}
	return uint64(entry.ModBaseAddr), nil
}

// exePath reads the main module's path; the first snapshot entry is always
// the executable itself.
func (o osProcess) exePath() (string, error) {
	entry, err := o.findModule(func(*windows.ModuleEntry32) bool { return true })
	if err != nil {
		return "", err
	}
	return windows.UTF16ToString(entry.ExePath[:]), nil
}

func (o osProcess) findModule(match func(*windows.ModuleEntry32) bool) (windows.ModuleEntry32, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(
		windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32,
		uint32(o.pid),
	)
	if err != nil {
		return windows.ModuleEntry32{}, fmt.Errorf("module snapshot: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	if err := windows.Module32First(snapshot, &entry); err != nil {
		return windows.ModuleEntry32{}, fmt.Errorf("module snapshot walk: %w", err)
	}
	for {
		if match(&entry) {
			return entry, nil
		}
		if err := windows.Module32Next(snapshot, &entry); err != nil {
			return windows.ModuleEntry32{}, err
		}
	}
}

func (o osProcess) fileVersion() (string, error) {
	path, err := o.exePath()
	if err != nil {
		return "", err
	}
	return fileVersionOf(path)
}

// fileVersionOf reads the fixed version block of a PE file.
func fileVersionOf(path string) (string, error) {
	var zero windows.Handle
	size, err := windows.GetFileVersionInfoSize(path, &zero)
	if err != nil {
		return "", fmt.Errorf("version info size: %w", err)
	}
	block := make([]byte, size)
	if err := windows.GetFileVersionInfo(path, 0, size, unsafe.Pointer(&block[0])); err != nil {
		return "", fmt.Errorf("version info: %w", err)
	}
	var fixed *windows.VS_FIXEDFILEINFO
	var fixedLen uint32
	if err := windows.VerQueryValue(unsafe.Pointer(&block[0]), `\`, unsafe.Pointer(&fixed), &fixedLen); err != nil {
		return "", fmt.Errorf("version query: %w", err)
	}
	return fmt.Sprintf("%d.%d.%d.%d",
		fixed.FileVersionMS>>16, fixed.FileVersionMS&0xffff,
		fixed.FileVersionLS>>16, fixed.FileVersionLS&0xffff), nil
}

func (o osProcess) running() bool {
	event, err := windows.WaitForSingleObject(o.handle, 0)
	return err == nil && event == uint32(windows.WAIT_TIMEOUT)
}

func (o osProcess) close() error {
	return windows.CloseHandle(o.handle)
}
