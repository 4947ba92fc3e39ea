// Package postprocess repairs and normalizes the raw build graph the script
// emulation produced: pruning externally-provided targets, resolving name
// collisions, classifying Python extensions, collapsing shared sources,
// resolving repository-prefixed paths against the generated-file manifest and
// injecting the autogen-supplied dependencies and include paths.
//
// The steps run exactly once, in a fixed order, and every unresolved residue
// is fatal: a partial run must produce no output.
package postprocess

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tbxtools/tbx2cmake/internal/autogen"
	"github.com/tbxtools/tbx2cmake/internal/core"
	"github.com/tbxtools/tbx2cmake/internal/distribution"
)

// boostTargetNames are targets the emitted build provides externally.
var boostTargetNames = distribution.NewStringSet(
	"boost_thread", "boost_system", "boost_python", "boost_chrono",
)

// prunedModules hold broken cross-references in the legacy tree and are
// dropped wholesale.
var prunedModules = []string{"clipper", "clipper_adaptbx"}

// knownIgnorableShared is the whitelist of shared-source groups that are safe
// to collapse into per-target sources.
var knownIgnorableShared = [][]string{
	{"numpy_bridge.cpp"},
	{"lbfgs_fem.cpp"},
	{"boost_python/outlier_helpers.cc"},
	{"nanoBragg_ext.cpp", "nanoBragg.cpp"},
}

// UnknownSourcesError reports '#'-prefixed sources that matched neither the
// generated-file manifest nor any repository root.
type UnknownSourcesError struct {
	Sources []string
}

func (e *UnknownSourcesError) Error() string {
	return fmt.Sprintf("unknown repository-prefixed sources: %s", strings.Join(e.Sources, ", "))
}

// MissingSourceError reports a source that exists neither on disk nor in the
// generated-file manifest.
type MissingSourceError struct {
	Target string
	Source string
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("target %s: source %s does not exist and is not a known generated file", e.Target, e.Source)
}

// Options carries the external inputs of post-processing.
type Options struct {
	Autogen *autogen.Autogen
	Log     *core.Logger
}

// Apply runs every post-processing step over dist, in order, then asserts
// the model invariants the emitter relies on.
func Apply(dist *distribution.Distribution, opts Options) error {
	if opts.Autogen == nil {
		opts.Autogen = autogen.Empty()
	}
	log := opts.Log.WithComponent("postprocess")

	assignGeneratedSources(dist, opts.Autogen)

	if err := pruneBoostTargets(dist, log); err != nil {
		return err
	}
	pruneModules(dist, log)
	if err := deduplicateTargetNames(dist, log); err != nil {
		return err
	}
	classifyPythonExtensions(dist)
	if err := collapseSharedSources(dist); err != nil {
		return err
	}
	if err := resolveRepositorySources(dist, opts.Autogen); err != nil {
		return err
	}
	if err := checkSourceGaps(dist, opts.Autogen); err != nil {
		return err
	}
	injectForcedDependencies(dist, opts.Autogen, log)
	injectIncludePaths(dist, opts.Autogen, log)

	return assertInvariants(dist)
}

func assignGeneratedSources(dist *distribution.Distribution, ag *autogen.Autogen) {
	for name, paths := range ag.LibTBXRefresh {
		if m := dist.Module(name); m != nil {
			m.GeneratedSources = append(m.GeneratedSources, paths...)
		}
	}
}

func pruneBoostTargets(dist *distribution.Distribution, log *core.Logger) error {
	collection := dist.Targets()
	var doomed []*distribution.Target
	for _, t := range collection.All() {
		if boostTargetNames.Has(t.Name) {
			log.Info("removing externally-provided target",
				core.ZapString("target", t.Name),
				core.ZapString("module", t.Module.Name))
			doomed = append(doomed, t)
		}
	}
	return collection.RemoveAll(doomed)
}

func pruneModules(dist *distribution.Distribution, log *core.Logger) {
	for _, name := range prunedModules {
		if m := dist.Module(name); m != nil {
			log.Info("removing module",
				core.ZapString("module", name),
				core.ZapInt("targets", len(m.Targets)))
			dist.RemoveModule(name)
		}
	}
}

// deduplicateTargetNames renames any targets sharing a name to
// <name>_<module>. Two same-named targets within one module cannot be told
// apart and abort the run.
func deduplicateTargetNames(dist *distribution.Distribution, log *core.Logger) error {
	targets := dist.Targets().All()
	byName := make(map[string][]*distribution.Target)
	for _, t := range targets {
		byName[t.Name] = append(byName[t.Name], t)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		duped := byName[name]
		if len(duped) < 2 {
			continue
		}
		modules := distribution.NewStringSet()
		for _, t := range duped {
			modules.Add(t.Module.Name)
		}
		if modules.Len() != len(duped) {
			return fmt.Errorf("cannot disambiguate %d targets named %q within module set %v",
				len(duped), name, modules.Sorted())
		}
		for _, t := range duped {
			renamed := fmt.Sprintf("%s_%s", t.Name, t.Module.Name)
			log.Info("renaming duplicate target",
				core.ZapString("from", t.Name), core.ZapString("to", renamed))
			t.Name = renamed
		}
	}

	seen := distribution.NewStringSet()
	for _, t := range dist.Targets().All() {
		if seen.Has(t.Name) {
			return fmt.Errorf("deduplication failed: %q still collides", t.Name)
		}
		seen.Add(t.Name)
	}
	return nil
}

func classifyPythonExtensions(dist *distribution.Distribution) {
	for _, t := range dist.Targets().All() {
		if t.BoostPython && t.Prefix == "" {
			t.Type = distribution.ModuleType
		}
	}
}

func collapseSharedSources(dist *distribution.Distribution) error {
	for _, t := range dist.Targets().All() {
		if len(t.SharedSources) == 0 {
			continue
		}
		for _, group := range t.SharedSources {
			if !sharedGroupKnown(group) {
				return fmt.Errorf("target %s: shared sources %v are not in the known-safe set", t.Name, group)
			}
			t.Sources = append(t.Sources, group...)
		}
		t.SharedSources = nil
	}
	return nil
}

func sharedGroupKnown(group []string) bool {
	for _, known := range knownIgnorableShared {
		if len(known) != len(group) {
			continue
		}
		match := true
		for i := range known {
			if known[i] != group[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// repositoryRoots are the lookup prefixes tried, in order, for '#'-prefixed
// sources: the distribution root itself, then each sub-repository.
func repositoryRoots() []string {
	return append([]string{""}, distribution.Repositories...)
}

func resolveRepositorySources(dist *distribution.Distribution, ag *autogen.Autogen) error {
	generated := ag.GeneratedSet()
	unknown := distribution.NewStringSet()

	for _, t := range dist.Targets().All() {
		var kept []string
		for _, src := range t.Sources {
			if !strings.HasPrefix(src, "#") {
				kept = append(kept, src)
				continue
			}
			rest := strings.TrimLeft(src, "#/")

			if generated[rest] {
				t.GeneratedSources = append(t.GeneratedSources, rest)
				continue
			}

			resolved := false
			for _, root := range repositoryRoots() {
				candidate := filepath.Join(dist.ModulePath, filepath.FromSlash(root), filepath.FromSlash(rest))
				if _, err := os.Stat(candidate); err != nil {
					continue
				}
				rel, err := filepath.Rel(filepath.FromSlash(t.OriginPath), filepath.Join(filepath.FromSlash(root), filepath.FromSlash(rest)))
				if err != nil {
					return err
				}
				kept = append(kept, filepath.ToSlash(rel))
				resolved = true
				break
			}
			if !resolved {
				unknown.Add(src)
			}
		}
		t.Sources = kept
	}

	if unknown.Len() > 0 {
		return &UnknownSourcesError{Sources: unknown.Sorted()}
	}
	return nil
}

// checkSourceGaps verifies every remaining source exists on disk relative to
// its target's origin, or can be resolved as a generated file under
// <module>/<origin rel module>/<source>.
func checkSourceGaps(dist *distribution.Distribution, ag *autogen.Autogen) error {
	generated := ag.GeneratedSet()

	for _, t := range dist.Targets().All() {
		relInModule, err := filepath.Rel(filepath.FromSlash(t.Module.Path), filepath.FromSlash(t.OriginPath))
		if err != nil || relInModule == "." {
			relInModule = ""
		}
		var kept []string
		for _, src := range t.Sources {
			onDisk := filepath.Join(dist.ModulePath, filepath.FromSlash(t.OriginPath), filepath.FromSlash(src))
			if _, err := os.Stat(onDisk); err == nil {
				kept = append(kept, src)
				continue
			}
			key := path.Join(t.Module.Name, filepath.ToSlash(relInModule), src)
			if generated[key] {
				t.GeneratedSources = append(t.GeneratedSources, key)
				continue
			}
			return &MissingSourceError{Target: t.Name, Source: src}
		}
		t.Sources = kept
	}
	return nil
}

func injectForcedDependencies(dist *distribution.Distribution, ag *autogen.Autogen, log *core.Logger) {
	byName := targetsByName(dist)
	for name, deps := range ag.Dependencies {
		t, ok := byName[name]
		if !ok {
			log.Warn("autogen dependency entry names unknown target", core.ZapString("target", name))
			continue
		}
		t.ExtraLibs.Add(deps...)
	}
}

func injectIncludePaths(dist *distribution.Distribution, ag *autogen.Autogen, log *core.Logger) {
	byName := targetsByName(dist)
	for name, paths := range ag.TargetIncludes {
		if t, ok := byName[name]; ok {
			t.IncludePaths.Add(paths...)
			continue
		}
		if m := dist.Module(name); m != nil {
			m.IncludePaths.Add(paths...)
			continue
		}
		log.Warn("autogen include entry names unknown target or module", core.ZapString("name", name))
	}
}

func targetsByName(dist *distribution.Distribution) map[string]*distribution.Target {
	byName := make(map[string]*distribution.Target)
	for _, t := range dist.Targets().All() {
		byName[t.Name] = t
	}
	return byName
}

func assertInvariants(dist *distribution.Distribution) error {
	for _, t := range dist.Targets().All() {
		switch {
		case t.Module == nil:
			return fmt.Errorf("target %s does not belong to a module", t.Name)
		case (t.Type == distribution.Shared || t.Type == distribution.Static) && t.Prefix != "lib":
			return fmt.Errorf("library target %s has prefix %q, want \"lib\"", t.Name, t.Prefix)
		case t.Type == distribution.ModuleType && t.Prefix != "":
			return fmt.Errorf("python module target %s has prefix %q, want \"\"", t.Name, t.Prefix)
		case len(t.SharedSources) > 0:
			return fmt.Errorf("target %s still has shared sources after post-processing", t.Name)
		}
	}
	return nil
}
