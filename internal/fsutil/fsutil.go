package fsutil

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxFilenameLength caps output filenames; longer stems are truncated
// with the extension preserved.
const DefaultMaxFilenameLength = 80

// ErrDuplicateExists is returned by Place under PolicyThrowError when the
// destination already holds a file.
var ErrDuplicateExists = errors.New("destination file already exists")

// DuplicatePolicy selects how Place resolves filename collisions.
type DuplicatePolicy int

const (
	// PolicyFindValidFile appends a numeric suffix until the name is unique.
	PolicyFindValidFile DuplicatePolicy = iota
	// PolicyOverwrite deletes the existing file first.
	PolicyOverwrite
	// PolicyThrowError fails with ErrDuplicateExists.
	PolicyThrowError
	// PolicySkip keeps the existing file and discards the new one.
	PolicySkip
	// PolicyHashCompare reuses the existing file when contents are identical,
	// otherwise falls back to PolicyFindValidFile.
	PolicyHashCompare
)

// Characters Windows rejects in filenames, plus control characters. Stripped
// rather than escaped so titles stay readable.
const invalidFilenameChars = `"<>|:*?\/`

// SanitizeFilename removes characters that cannot appear in a filename.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(invalidFilenameChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SplitExt splits a filename into stem and extension (extension keeps its
// leading period, empty when absent).
func SplitExt(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// ShortenFilename truncates the filename component of path so that
// stem+ext fits within max bytes. The directory part is untouched.
func ShortenFilename(path string, max int) string {
	dir, name := filepath.Split(path)
	if len(name) <= max {
		return path
	}
	stem, ext := SplitExt(name)
	keep := max - len(ext)
	if keep < 1 {
		keep = 1
	}
	if len(stem) > keep {
		stem = stem[:keep]
	}
	return dir + stem + ext
}

// EnsureDir creates dir and parents when missing.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// SHA1File computes the content hash used by PolicyHashCompare.
func SHA1File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// NextAvailable appends " 1", " 2", ... to the stem until the path does not
// exist yet.
func NextAvailable(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	dir, name := filepath.Split(path)
	stem, ext := SplitExt(name)
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s %d%s", stem, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// Place moves a spooled file into its final location, resolving collisions
// per policy. It returns the path actually holding the content and whether
// an existing file was reused (the spooled file is removed in that case).
func Place(spool, dest string, policy DuplicatePolicy) (string, bool, error) {
	if err := EnsureDir(filepath.Dir(dest)); err != nil {
		return "", false, err
	}

	if _, err := os.Stat(dest); err == nil {
		switch policy {
		case PolicyThrowError:
			return "", false, fmt.Errorf("%w: %s", ErrDuplicateExists, dest)
		case PolicySkip:
			os.Remove(spool)
			return dest, true, nil
		case PolicyOverwrite:
			if err := os.Remove(dest); err != nil {
				return "", false, err
			}
		case PolicyHashCompare:
			oldHash, err := SHA1File(dest)
			if err != nil {
				return "", false, err
			}
			newHash, err := SHA1File(spool)
			if err != nil {
				return "", false, err
			}
			if oldHash == newHash {
				os.Remove(spool)
				return dest, true, nil
			}
			dest = NextAvailable(dest)
		default:
			dest = NextAvailable(dest)
		}
	}

	if err := moveFile(spool, dest); err != nil {
		return "", false, err
	}
	return dest, false, nil
}

// moveFile renames, falling back to copy+remove across filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// RelativePath expresses file relative to dir the way rewritten pages need
// it: "./" plus one "../" per unshared directory segment, then the unshared
// tail of file.
func RelativePath(file, dir string) string {
	file = filepath.ToSlash(file)
	dir = strings.TrimSuffix(filepath.ToSlash(dir), "/")

	dirParts := strings.Split(dir, "/")
	fileParts := strings.Split(file, "/")

	shared := 0
	for shared < len(dirParts) && shared < len(fileParts) && dirParts[shared] == fileParts[shared] {
		shared++
	}

	up := len(dirParts) - shared
	tail := strings.Join(fileParts[shared:], "/")
	return "./" + strings.Repeat("../", up) + tail
}
