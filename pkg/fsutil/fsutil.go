package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// OwnerConfig holds parsed UID/GID applied to created folders and records.
type OwnerConfig struct {
	UID int
	GID int
}

// ParseOwner parses "UID:GID" string. Returns nil if empty.
func ParseOwner(owner string) (*OwnerConfig, error) {
	if owner == "" {
		return nil, nil
	}

	uidStr, gidStr, ok := strings.Cut(owner, ":")
	if !ok {
		return nil, fmt.Errorf("invalid format %q, expected UID:GID", owner)
	}

	uid, err := strconv.Atoi(uidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UID %q: %w", uidStr, err)
	}

	gid, err := strconv.Atoi(gidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid GID %q: %w", gidStr, err)
	}

	return &OwnerConfig{UID: uid, GID: gid}, nil
}

// Chown sets ownership if owner is not nil. Best-effort, ignores errors.
func Chown(path string, owner *OwnerConfig) {
	if owner == nil {
		return
	}

	_ = os.Chown(path, owner.UID, owner.GID)
}

// Mkdir creates a single directory (the parent must exist) and sets
// ownership.
func Mkdir(path string, perm os.FileMode, owner *OwnerConfig) error {
	if err := os.Mkdir(path, perm); err != nil {
		return err
	}

	Chown(path, owner)

	return nil
}

// EnsureDir creates path unless it is already a directory.
func EnsureDir(path string, perm os.FileMode, owner *OwnerConfig) error {
	if IsDir(path) {
		return nil
	}

	return Mkdir(path, perm, owner)
}

// WriteFileExclusive creates path and writes data to it. It fails with an
// error matching fs.ErrExist when the path already exists, so an existing
// file is never truncated.
func WriteFileExclusive(path string, data []byte, perm os.FileMode, owner *OwnerConfig) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()

		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	Chown(path, owner)

	return nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}

// IsRegularFile reports whether path exists and is a regular file.
func IsRegularFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}

// Exists reports whether anything exists at path.
func Exists(path string) bool {
	_, err := os.Lstat(path)

	return !errors.Is(err, fs.ErrNotExist)
}
