package install

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type dependency struct {
	Path         string       `json:"path"`
	Dependencies []dependency `json:"dependencies"`
}

// DependencyPaths returns the paths of all packages in the output of
// "swift-package show-dependencies --format json", without duplicates.
func DependencyPaths(data []byte) ([]string, error) {
	var root dependency
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse dependencies: %w", err)
	}
	var paths []string
	seen := map[string]bool{}
	var walk func(d *dependency)
	walk = func(d *dependency) {
		if !seen[d.Path] {
			seen[d.Path] = true
			paths = append(paths, d.Path)
		}
		for i := range d.Dependencies {
			walk(&d.Dependencies[i])
		}
	}
	walk(&root)
	return paths, nil
}

func underAny(path string, dirs []string) bool {
	for _, dir := range dirs {
		if dir != "" && strings.HasPrefix(path, dir) {
			return true
		}
	}
	return false
}

func findBuildDB(binDir, pkgDir string) string {
	for _, path := range []string{
		filepath.Join(binDir, "..", "build.db"),
		filepath.Join(pkgDir, ".build", "build.db"),
	} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Build products found in the build database.
type buildFiles struct {
	modules    []string
	moduleMaps []string
}

// Keys in key_names carry a one-character kind prefix.
const selectKeys = `SELECT SUBSTR(key, 2) FROM key_names WHERE key LIKE ?`

// Queries the build database for module files and module maps that belong to
// one of the dependencies. The database indexes all products of the build, so
// unrelated files are filtered out.
func queryBuildDB(ctx context.Context, path string, depPaths []string) (*buildFiles, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	defer db.Close()
	var files buildFiles
	for _, q := range []struct {
		pattern string
		dst     *[]string
	}{
		{"%.swiftmodule", &files.modules},
		{"%/module.modulemap", &files.moduleMaps},
	} {
		keys, err := queryKeys(ctx, db, q.pattern)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			if underAny(key, depPaths) {
				*q.dst = append(*q.dst, key)
			}
		}
	}
	return &files, nil
}

func queryKeys(ctx context.Context, db *sql.DB, pattern string) ([]string, error) {
	rows, err := db.QueryContext(ctx, selectKeys, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func copyArtifacts(files *buildFiles, modules string, art *Artifacts) error {
	for _, src := range files.modules {
		dst := filepath.Join(modules, filepath.Base(src))
		if err := copyPath(src, dst); err != nil {
			return err
		}
		art.Modules = append(art.Modules, dst)
	}
	for i, src := range files.moduleMaps {
		dst, err := relocateModuleMap(src, modules, i)
		if err != nil {
			return err
		}
		art.ModuleMaps = append(art.ModuleMaps, dst)
	}
	return nil
}

// Copies a file, or a directory recursively.
func copyPath(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return copyFile(src, dst, fi.Mode().Perm())
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(src, path)
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

var (
	headerDecl = regexp.MustCompile(`header\s+"(.*?)"`)
	moduleDecl = regexp.MustCompile(`^module\s+(\S+)\s.*\{`)
)

// Copies a module map into its own directory named after the module it
// declares, because the compiler only looks for files named module.modulemap.
// Relative header paths are made absolute.
func relocateModuleMap(src, modules string, index int) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	content := RewriteHeaders(string(data), filepath.Dir(src))
	name := strconv.Itoa(index)
	if m := moduleDecl.FindStringSubmatch(content); m != nil {
		name = m[1]
	}
	dir := filepath.Join(modules, "modulemap-"+name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, filepath.Base(src))
	return dst, os.WriteFile(dst, []byte(content), 0o644)
}

// RewriteHeaders makes the relative header paths in a module map absolute,
// resolving them against dir.
func RewriteHeaders(content, dir string) string {
	return headerDecl.ReplaceAllStringFunc(content, func(decl string) string {
		path := headerDecl.FindStringSubmatch(decl)[1]
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
		}
		return `header "` + path + `"`
	})
}
