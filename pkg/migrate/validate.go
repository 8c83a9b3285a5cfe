package migrate

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	annotationUp        = "-- +goose Up"
	annotationDown      = "-- +goose Down"
	annotationStmtBegin = "-- +goose StatementBegin"
	annotationStmtEnd   = "-- +goose StatementEnd"
)

// ValidateDir validates the migrations in a directory on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir), ".")
}

// ValidateEmbedded validates the migrations compiled into the binary.
func ValidateEmbedded() error {
	return ValidateFS(Migrations, EmbeddedDir)
}

// ValidateFS checks every .sql file under dir: the timestamped filename,
// unique versions, an Up section before the Down section and balanced
// StatementBegin/StatementEnd blocks. All problems are reported together.
func ValidateFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{}
	var errs error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			errs = multierr.Append(errs, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name))
			continue
		}
		if prev, ok := seen[m[1]]; ok {
			errs = multierr.Append(errs, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name))
			continue
		}
		seen[m[1]] = name

		content, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("read file %q: %w", name, err))
			continue
		}
		if err := checkAnnotations(content); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("migration %q: %w", name, err))
		}
	}
	return errs
}

func checkAnnotations(content []byte) error {
	var (
		upLine, downLine int
		openBlock        int
	)
	sc := bufio.NewScanner(bytes.NewReader(content))
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, annotationUp):
			upLine = n
		case strings.HasPrefix(line, annotationDown):
			downLine = n
		case strings.HasPrefix(line, annotationStmtBegin):
			if openBlock != 0 {
				return fmt.Errorf("line %d: StatementBegin inside an open block started on line %d", n, openBlock)
			}
			openBlock = n
		case strings.HasPrefix(line, annotationStmtEnd):
			if openBlock == 0 {
				return fmt.Errorf("line %d: StatementEnd without StatementBegin", n)
			}
			openBlock = 0
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	switch {
	case upLine == 0:
		return fmt.Errorf("missing %q", annotationUp)
	case downLine == 0:
		return fmt.Errorf("missing %q", annotationDown)
	case downLine < upLine:
		return fmt.Errorf("%q must come before %q", annotationUp, annotationDown)
	case openBlock != 0:
		return fmt.Errorf("StatementBegin on line %d is never closed", openBlock)
	}
	return nil
}
