package filestore

import (
	"path"
	"strings"
)

// Separator is the storage path separator. Every storage path starts with it.
const Separator = "/"

// IgnoreFileName is the conventional name of an archive ignore file. It is
// reserved so no upload can plant one in the storage tree.
const IgnoreFileName = ".filestoreignore"

// ValidatePath checks that p is a "/"-rooted storage path naming a file:
// no empty, "." or ".." segments, no trailing separator and no NUL bytes.
// Segments may not start with StagingPrefix or equal IgnoreFileName.
func ValidatePath(p string) error {
	if !strings.HasPrefix(p, Separator) {
		return invalidPath(p, "must start with "+Separator)
	}
	if p == Separator {
		return invalidPath(p, "names the storage root")
	}
	if strings.ContainsRune(p, 0) {
		return invalidPath(p, "contains a NUL byte")
	}
	for _, seg := range strings.Split(p[1:], Separator) {
		switch seg {
		case "":
			return invalidPath(p, "contains an empty segment")
		case ".", "..":
			return invalidPath(p, "contains a relative segment")
		case IgnoreFileName:
			return invalidPath(p, "uses the reserved name "+IgnoreFileName)
		}
		if strings.HasPrefix(seg, StagingPrefix) {
			return invalidPath(p, "uses the reserved prefix "+StagingPrefix)
		}
	}
	return nil
}

// CleanPath normalizes a path token to its canonical storage form.
func CleanPath(p string) string {
	if !strings.HasPrefix(p, Separator) {
		p = Separator + p
	}
	return path.Clean(p)
}

// ParentChain returns every directory between the storage root (exclusive)
// and the parent of the file at p, shallowest first.
//
//	ParentChain("/a/b/c.txt") == []string{"/a", "/a/b"}
func ParentChain(p string) []string {
	var chain []string
	for i := 1; i < len(p); i++ {
		if p[i] == '/' {
			chain = append(chain, p[:i])
		}
	}
	return chain
}

// UploadPath returns the storage path an uploaded file lands at.
// When the last segment of target equals filename, target is the file path;
// otherwise target names a directory and the file is placed inside it.
func UploadPath(target, filename string) string {
	trimmed := strings.TrimRight(target, Separator)
	if trimmed != "" && path.Base(trimmed) == filename {
		return trimmed
	}
	return trimmed + Separator + filename
}
