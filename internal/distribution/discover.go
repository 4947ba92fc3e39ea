package distribution

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tbxtools/tbx2cmake/internal/core"
)

// Repositories are the nested sub-repository folders searched for additional
// modules, and also the lookup roots for '#'-prefixed source paths.
var Repositories = []string{"cctbx_project"}

// Discover walks a module root and its sub-repository folders and returns a
// Distribution holding one module per subdirectory, with manifests loaded.
//
// Every direct subdirectory counts as a module as far as the legacy layout is
// concerned; modules without build scripts are filtered later.
func Discover(root string, log *core.Logger) (*Distribution, error) {
	dist := New(root)

	subdirs, err := listSubdirs(root)
	if err != nil {
		return nil, fmt.Errorf("scanning module root: %w", err)
	}

	repos := NewStringSet(Repositories...)
	var modulePaths []string
	for _, dir := range subdirs {
		if repos.Has(dir) {
			continue
		}
		modulePaths = append(modulePaths, dir)
	}
	for _, repo := range Repositories {
		nested, err := listSubdirs(filepath.Join(root, repo))
		if os.IsNotExist(err) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("scanning repository %s: %w", repo, err)
		}
		for _, dir := range nested {
			modulePaths = append(modulePaths, path.Join(repo, dir))
		}
	}

	for _, relpath := range modulePaths {
		m := NewModule(path.Base(relpath), relpath)
		if m.HasConfig(root) {
			if err := m.LoadManifest(filepath.Join(root, m.Path, "libtbx_config")); err != nil {
				return nil, err
			}
		}
		if err := dist.AddModule(m); err != nil {
			return nil, err
		}
		log.Debug("discovered module",
			core.ZapString("name", m.Name),
			core.ZapString("path", m.Path),
			core.ZapStrings("required", m.Required.Sorted()))
	}

	return dist, nil
}

// listSubdirs returns the names of root's direct subdirectories, skipping
// hidden ones, in lexical order.
func listSubdirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dirs = append(dirs, entry.Name())
	}
	sort.Strings(dirs)
	return dirs, nil
}
