// Package paths confines every storage path to its {users root}/{email}/{app}
// subtree. Resolve must run before any filesystem access; it is the only
// barrier between tenants and between apps of the same tenant.
package paths

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/nosuite/internal/common"
)

// Resolved is a confinement-checked location.
type Resolved struct {
	Root    string // absolute {users root}/{email}/{app}
	Full    string // absolute path, equal to Root or below it
	Logical string // slash-separated path relative to Root, always starting with "/"
}

type Resolver struct {
	root string
}

func NewResolver(usersRoot string) (*Resolver, error) {
	abs, err := filepath.Abs(usersRoot)
	if err != nil {
		return nil, fmt.Errorf("users root: %w", err)
	}
	return &Resolver{root: filepath.Clean(abs)}, nil
}

// UsersRoot returns the absolute users root.
func (r *Resolver) UsersRoot() string {
	return r.root
}

// UserDir returns {users root}/{email}.
func (r *Resolver) UserDir(email string) (string, error) {
	if err := ValidSegment(email); err != nil {
		return "", err
	}
	return filepath.Join(r.root, email), nil
}

// Resolve maps logicalPath, possibly URL-encoded, under {email}/{appOrigin}.
// Decoding happens first so encoded traversal is seen by the checks. Any ".."
// segment is refused outright, even one that would normalize back inside.
func (r *Resolver) Resolve(email, appOrigin, logicalPath string) (Resolved, error) {
	if err := ValidSegment(email); err != nil {
		return Resolved{}, err
	}
	if err := ValidSegment(appOrigin); err != nil {
		return Resolved{}, err
	}

	decoded, err := url.PathUnescape(logicalPath)
	if err != nil {
		return Resolved{}, fmt.Errorf("decode path: %w", common.ErrForbidden)
	}
	return r.confine(email, appOrigin, decoded)
}

// ResolveDecoded is Resolve for a path that was already decoded, such as
// Resolved.Logical carried by a change event. No further unescaping happens,
// so a file named "100%.txt" or "%41" maps to itself.
func (r *Resolver) ResolveDecoded(email, appOrigin, logicalPath string) (Resolved, error) {
	if err := ValidSegment(email); err != nil {
		return Resolved{}, err
	}
	if err := ValidSegment(appOrigin); err != nil {
		return Resolved{}, err
	}
	return r.confine(email, appOrigin, logicalPath)
}

func (r *Resolver) confine(email, appOrigin, decoded string) (Resolved, error) {
	if strings.ContainsRune(decoded, 0) {
		return Resolved{}, common.ErrForbidden
	}

	decoded = strings.ReplaceAll(decoded, `\`, "/")
	for _, seg := range strings.Split(decoded, "/") {
		if seg == ".." {
			return Resolved{}, common.ErrForbidden
		}
	}

	root := filepath.Join(r.root, email, appOrigin)
	full := filepath.Join(root, filepath.FromSlash(decoded))

	if full != root && !strings.HasPrefix(full, root+string(os.PathSeparator)) {
		return Resolved{}, common.ErrForbidden
	}

	rel, err := filepath.Rel(root, full)
	if err != nil {
		return Resolved{}, common.ErrForbidden
	}
	logical := "/"
	if rel != "." {
		logical = "/" + filepath.ToSlash(rel)
	}

	return Resolved{Root: root, Full: full, Logical: logical}, nil
}

// Child resolves name directly below an already resolved directory.
func (r Resolved) Child(name string) (Resolved, error) {
	if err := ValidSegment(name); err != nil {
		return Resolved{}, err
	}
	return Resolved{
		Root:    r.Root,
		Full:    filepath.Join(r.Full, name),
		Logical: strings.TrimSuffix(r.Logical, "/") + "/" + name,
	}, nil
}

// ValidSegment accepts a single, non-traversing path element. Emails and app
// origins go through it before they become directory names.
func ValidSegment(s string) error {
	switch {
	case s == "", s == ".", s == "..":
		return common.ErrForbidden
	case strings.ContainsAny(s, `/\`), strings.ContainsRune(s, 0):
		return common.ErrForbidden
	}
	return nil
}
