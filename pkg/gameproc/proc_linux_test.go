//go:build linux
// +build linux

package gameproc

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unsafe"
)

func TestModuleBaseFromMaps(t *testing.T) {
	maps := strings.NewReader(
		"00400000-00452000 r-xp 00000000 08:02 173521 /usr/bin/dbus-daemon\n" +
			"7f1000000000-7f1000400000 r-xp 00000000 08:02 99 /games/ELDEN RING/Game/eldenring.exe\n" +
			"7f1000400000-7f1000800000 rw-p 00400000 08:02 99 /games/ELDEN RING/Game/eldenring.exe\n" +
			"7ffc04b0c000-7ffc04b2d000 rw-p 00000000 00:00 0 [stack]\n")

	base, ok := moduleBaseFromMaps(maps, "eldenring.exe")
	if !ok {
		t.Fatal("expected to find module")
	}
	if base != 0x7f1000000000 {
		t.Errorf("expected base 0x7f1000000000, got %#x", base)
	}
}

func TestModuleBaseFromMaps_CaseInsensitive(t *testing.T) {
	maps := strings.NewReader(
		"7f2000000000-7f2000001000 r--p 00000000 08:02 7 /tmp/ELDENRING.EXE\n")

	base, ok := moduleBaseFromMaps(maps, "eldenring.exe")
	if !ok {
		t.Fatal("expected to find module")
	}
	if base != 0x7f2000000000 {
		t.Errorf("expected base 0x7f2000000000, got %#x", base)
	}
}

func TestModuleBaseFromMaps_NotFound(t *testing.T) {
	maps := strings.NewReader(
		"00400000-00452000 r-xp 00000000 08:02 173521 /usr/bin/dbus-daemon\n")

	if _, ok := moduleBaseFromMaps(maps, "eldenring.exe"); ok {
		t.Error("expected module to be absent")
	}
}

func TestCommMatches(t *testing.T) {
	cases := []struct {
		comm string
		name string
		want bool
	}{
		{"eldenring.exe", "eldenring.exe", true},
		{"ELDENRING.EXE", "eldenring.exe", true},
		{"start_protected", "start_protected_game.exe", true},
		{"eldenring.exe", "sekiro.exe", false},
		{"bash", "eldenring.exe", false},
	}
	for _, c := range cases {
		if got := commMatches(c.comm, c.name); got != c.want {
			t.Errorf("commMatches(%q, %q) = %v, want %v", c.comm, c.name, got, c.want)
		}
	}
}

func TestWindowsBase(t *testing.T) {
	if got := windowsBase(`Z:\games\ELDEN RING\Game\eldenring.exe`); got != "eldenring.exe" {
		t.Errorf("expected eldenring.exe, got %q", got)
	}
	if got := windowsBase("/usr/bin/env"); got != "env" {
		t.Errorf("expected env, got %q", got)
	}
}

// probe is read back through the process layer in TestAttachSelf.
var probe = [8]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04}

func TestAttachSelf(t *testing.T) {
	name := filepath.Base(os.Args[0])
	p, err := Attach(name)
	if err != nil {
		t.Skipf("cannot attach to self: %v", err)
	}
	defer p.Close()

	if p.Pid() != os.Getpid() {
		t.Errorf("expected pid %d, got %d", os.Getpid(), p.Pid())
	}
	if !p.Running() {
		t.Error("expected own process to be running")
	}

	buf := make([]byte, len(probe))
	n, err := p.ReadMemory(uint64(uintptr(unsafe.Pointer(&probe))), buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(probe) {
		t.Fatalf("expected %d bytes, got %d", len(probe), n)
	}
	if !bytes.Equal(buf, probe[:]) {
		t.Errorf("expected %x, got %x", probe, buf)
	}
}
