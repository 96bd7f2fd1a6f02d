// Package migrations exposes the embedded authority schema so embedding
// applications can register it with their own migration runner. Each dialect
// gets its own filesystem; the sqlite tree mirrors the postgres one file for
// file.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	authority "github.com/voundbrand/go-authority"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// dialectLayouts maps each supported dialect to its subdirectory inside the
// migration tree. Postgres owns the root; sqlite mirrors it one level down.
var dialectLayouts = []struct {
	dialect string
	subdir  string
}{
	{DialectPostgres, "."},
	{DialectSQLite, "sqlite"},
}

// FilesystemSpec is one dialect's migration tree plus the path it resolved
// from, kept for error reporting.
type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// Registration records what Register resolved and handed to the runner.
type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

// RegisterFunc receives one dialect's filesystem. The embedding application
// decides what registration means; tests use it to feed the sqlite tree to
// an in-memory database.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

// WithDialectSourceLabel overrides the label migration runners display for
// rows originating from this module.
func WithDialectSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

// WithValidationTargets restricts registration to the given dialects.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if normalized := normalizeDialects(targets); len(normalized) > 0 {
			r.ValidationTargets = normalized
		}
	}
}

// WithFilesystems swaps in caller-provided migration trees, for embedders
// that extend the schema with their own SQL.
func WithFilesystems(filesystems ...FilesystemSpec) Option {
	return func(r *Registration) {
		kept := make([]FilesystemSpec, 0, len(filesystems))
		for _, spec := range filesystems {
			spec.Dialect = strings.TrimSpace(strings.ToLower(spec.Dialect))
			if spec.Dialect == "" || spec.FS == nil {
				continue
			}
			kept = append(kept, spec)
		}
		if len(kept) > 0 {
			r.Filesystems = kept
		}
	}
}

// Filesystems resolves the per-dialect migration trees, defaulting to the
// embedded authority schema when no source is given. Every tree must hold
// at least one up migration.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	root := authority.GetCoreMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}
	base, basePath, err := locateRoot(root)
	if err != nil {
		return nil, err
	}

	specs := make([]FilesystemSpec, 0, len(dialectLayouts))
	for _, layout := range dialectLayouts {
		dialectFS := base
		dialectPath := basePath
		if layout.subdir != "." {
			dialectFS, err = fs.Sub(base, layout.subdir)
			if err != nil {
				return nil, fmt.Errorf("migrations: resolve %s tree: %w", layout.dialect, err)
			}
			dialectPath = path.Join(basePath, layout.subdir)
		}
		matches, globErr := fs.Glob(dialectFS, "*.up.sql")
		if globErr != nil {
			return nil, fmt.Errorf("migrations: scan %s tree %q: %w", layout.dialect, dialectPath, globErr)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: no *.up.sql files in %s tree %q", layout.dialect, dialectPath)
		}
		specs = append(specs, FilesystemSpec{Dialect: layout.dialect, Path: dialectPath, FS: dialectFS})
	}
	return specs, nil
}

// Register calls registerFn once per validation-target dialect with that
// dialect's filesystem.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       "go-authority",
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if err := reg.validate(); err != nil {
		return reg, err
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	targets := normalizeDialects(reg.ValidationTargets)
	for _, spec := range reg.Filesystems {
		if !slices.Contains(targets, spec.Dialect) {
			continue
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", spec.Dialect, spec.Path, err)
		}
	}
	return reg, nil
}

func (r Registration) validate() error {
	if strings.TrimSpace(r.SourceLabel) == "" {
		return fmt.Errorf("migrations: source label is required")
	}
	if len(r.ValidationTargets) == 0 {
		return fmt.Errorf("migrations: at least one validation target is required")
	}
	if len(r.Filesystems) == 0 {
		return fmt.Errorf("migrations: at least one filesystem is required")
	}
	for _, spec := range r.Filesystems {
		if spec.FS == nil {
			return fmt.Errorf("migrations: filesystem for %s is nil", spec.Dialect)
		}
	}
	return nil
}

// locateRoot accepts either a module-shaped tree with SQL under
// data/sql/migrations or a filesystem already rooted at the SQL files.
func locateRoot(root fs.FS) (fs.FS, string, error) {
	const canonical = "data/sql/migrations"
	if _, err := fs.Stat(root, canonical); err == nil {
		sub, subErr := fs.Sub(root, canonical)
		if subErr != nil {
			return nil, "", fmt.Errorf("migrations: resolve %s: %w", canonical, subErr)
		}
		return sub, canonical, nil
	}

	entries, err := fs.ReadDir(root, ".")
	if err != nil {
		return nil, "", fmt.Errorf("migrations: read migration source: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			return root, ".", nil
		}
	}
	return nil, "", fmt.Errorf("migrations: no migration files under %q or the filesystem root", canonical)
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		dialect := strings.TrimSpace(strings.ToLower(value))
		if dialect == "" || slices.Contains(out, dialect) {
			continue
		}
		out = append(out, dialect)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
