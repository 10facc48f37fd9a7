package fileutil_test

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"meddoc/internal/fileutil"
)

func TestHashFileMatchesSHA256(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	content := make([]byte, 200*1024)
	for i := range content {
		content[i] = byte(i % 251)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	sum, size, err := fileutil.HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	want := sha256.Sum256(content)
	if sum != hex.EncodeToString(want[:]) {
		t.Fatalf("hash mismatch: got %s", sum)
	}
	if size != int64(len(content)) {
		t.Fatalf("size mismatch: got %d", size)
	}
}

func TestMoveFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.pdf")
	dst := filepath.Join(dir, "cat", "group", "device", "in.pdf")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fileutil.MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected source gone, err=%v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "data" {
		t.Fatalf("unexpected destination content %q err=%v", got, err)
	}
}

func TestMoveFileRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.pdf")
	dst := filepath.Join(dir, "b.pdf")
	for _, p := range []string{src, dst} {
		if err := os.WriteFile(p, []byte(p), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	err := fileutil.MoveFile(src, dst)
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected ErrExist, got %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source should remain after refused move: %v", err)
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte("verified content"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		t.Fatalf("CopyFileVerified: %v", err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected source mode preserved, got %v", info.Mode().Perm())
	}
}

func TestNextFreePath(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "scan.pdf")
	got, err := fileutil.NextFreePath(base)
	if err != nil || got != base {
		t.Fatalf("expected free base path, got %q err=%v", got, err)
	}
	if err := os.WriteFile(base, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = fileutil.NextFreePath(base)
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(dir, "scan-1.pdf") {
		t.Fatalf("unexpected next path %q", got)
	}
}

func TestIsWithin(t *testing.T) {
	cases := []struct {
		root, path string
		want       bool
	}{
		{"/root", "/root/a/b.pdf", true},
		{"/root", "/root", true},
		{"/root", "/root/../etc/passwd", false},
		{"/root", "/rootfs/x", false},
		{"/root", "/other", false},
	}
	for _, tc := range cases {
		if got := fileutil.IsWithin(tc.root, tc.path); got != tc.want {
			t.Fatalf("IsWithin(%q, %q) = %v, want %v", tc.root, tc.path, got, tc.want)
		}
	}
}

func TestIsStorageUnavailable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"share gone", &os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.ENOTCONN}, true},
		{"stale handle", &os.PathError{Op: "open", Path: "a", Err: syscall.ESTALE}, true},
		{"io error", syscall.EIO, true},
		{"permission", &os.PathError{Op: "open", Path: "a", Err: syscall.EACCES}, false},
		{"missing file", os.ErrNotExist, false},
	}
	for _, tc := range cases {
		if got := fileutil.IsStorageUnavailable(tc.err); got != tc.want {
			t.Fatalf("%s: IsStorageUnavailable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestResolveRootFollowsSymlink(t *testing.T) {
	base := t.TempDir()
	real := filepath.Join(base, "real")
	if err := os.Mkdir(real, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	link := filepath.Join(base, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	want, err := filepath.EvalSymlinks(real)
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	got, err := fileutil.ResolveRoot(link + string(filepath.Separator))
	if err != nil {
		t.Fatalf("ResolveRoot: %v", err)
	}
	if got != want {
		t.Fatalf("ResolveRoot = %q, want %q", got, want)
	}

	missing := filepath.Join(base, "not-yet")
	if got, err := fileutil.ResolveRoot(missing); err != nil || got != missing {
		t.Fatalf("missing root should stay as given: %q, %v", got, err)
	}
}
