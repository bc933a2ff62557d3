// Package resolver implements the namespace-to-registry-domain lookup (C4):
// given a package namespace, decide which registry domain owns it by
// consulting, in order, the default registry's operator log, an in-tree
// ".warg.json" override, and finally the client-wide namespace map. The
// precedence mirrors a compiler's include-path search, grounded on the
// teacher's own layered config resolution in cmd/monitor/main.go (flags
// override file config override defaults).
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wargproto/warg-go/storage"
)

// ErrorKind enumerates the ways namespace resolution can fail, matching the
// "concept-level" kinds spec.md §6 enumerates for this component.
type ErrorKind int

const (
	// ErrNoCurrentDirectory means the working directory could not be
	// determined to begin the .warg.json filesystem walk.
	ErrNoCurrentDirectory ErrorKind = iota
	// ErrNoNamespaceConfig means a .warg.json file was found but could
	// not be read.
	ErrNoNamespaceConfig
	// ErrInvalidLocalNamespaceConfig means a .warg.json file was read but
	// is not valid JSON, or is not a flat string-to-string mapping.
	ErrInvalidLocalNamespaceConfig
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNoCurrentDirectory:
		return "NoCurrentDirectory"
	case ErrNoNamespaceConfig:
		return "NoNamespaceConfig"
	case ErrInvalidLocalNamespaceConfig:
		return "InvalidLocalNamespaceConfig"
	default:
		return "Unknown"
	}
}

// Error is returned when namespace resolution cannot proceed. Kind
// identifies which step failed so callers (the client package's error
// taxonomy) can translate it without string matching.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("resolver: %s: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("resolver: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const localConfigName = ".warg.json"

// Deps bundles the stores PackageNamespaceDomain needs, so callers don't
// have to thread a growing parameter list as resolution grows tiers.
type Deps struct {
	Registry      storage.RegistryStorage
	NamespaceMap  storage.NamespaceMapStorage
	WorkspaceRoot string // defaults to the process's working directory
}

// PackageNamespaceDomain resolves the registry domain that owns namespace
// ns, following the three-tier precedence documented on the package. The
// second return value is false if no tier produced an answer.
func PackageNamespaceDomain(ctx context.Context, deps Deps, ns string) (string, bool, error) {
	var op *storage.OperatorInfo
	if deps.Registry != nil {
		loaded, err := deps.Registry.LoadOperator(ctx, "")
		if err != nil {
			return "", false, fmt.Errorf("resolver: load default operator log: %w", err)
		}
		op = loaded
	}

	if op != nil && op.State != nil {
		// The operator log is present: step 2 (.warg.json) is skipped
		// entirely, whether the namespace is Imported, merely Defined,
		// or undeclared. Step 2 only applies when the operator log
		// itself is absent.
		state := op.State.NamespaceState(ns)
		if state.Imported {
			return state.Registry, true, nil
		}
		return resolveFromNamespaceMap(ctx, deps, ns)
	}

	root := deps.WorkspaceRoot
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", false, &Error{Kind: ErrNoCurrentDirectory, Err: err}
		}
		root = wd
	}

	domain, found, err := resolveFromWorkspace(root, ns)
	if err != nil {
		return "", false, err
	}
	if found {
		return domain, true, nil
	}

	return resolveFromNamespaceMap(ctx, deps, ns)
}

// resolveFromNamespaceMap implements step 3: the client-wide namespace map.
func resolveFromNamespaceMap(ctx context.Context, deps Deps, ns string) (string, bool, error) {
	if deps.NamespaceMap == nil {
		return "", false, nil
	}
	m, err := deps.NamespaceMap.LoadNamespaceMap(ctx)
	if err != nil {
		return "", false, fmt.Errorf("resolver: load namespace map: %w", err)
	}
	if d, ok := m[ns]; ok {
		return d, true, nil
	}
	return "", false, nil
}

// resolveFromWorkspace implements step 2: find the deepest .warg.json under
// root and consult it.
func resolveFromWorkspace(root, ns string) (string, bool, error) {
	path, err := deepestLocalConfig(root)
	if err != nil {
		return "", false, err
	}
	if path == "" {
		return "", false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, &Error{Kind: ErrNoNamespaceConfig, Path: path, Err: err}
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return "", false, &Error{Kind: ErrInvalidLocalNamespaceConfig, Path: path, Err: err}
	}
	// json.Unmarshal into map[string]string already rejects nested
	// objects/arrays as values, enforcing "flat" for us.

	if d, ok := m[ns]; ok {
		return d, true, nil
	}
	return "", false, nil
}

// deepestLocalConfig walks root and its descendants, returning the path to
// the .warg.json with the greatest depth. Ties are broken by lexicographic
// path order, which filepath.WalkDir already visits in, making the choice
// deterministic.
func deepestLocalConfig(root string) (string, error) {
	var best string
	bestDepth := -1

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Skip unreadable subtrees rather than failing the whole
			// walk; a permission-denied sibling directory shouldn't
			// block resolution.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || d.Name() != localConfigName {
			return nil
		}
		depth := strings.Count(filepath.ToSlash(path), "/")
		if depth > bestDepth {
			bestDepth = depth
			best = path
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("resolver: walk %q: %w", root, err)
	}
	return best, nil
}
