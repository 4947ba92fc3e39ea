// Package convert wires the pipeline together: discovery, dependency
// ordering, script emulation, post-processing and emission.
package convert

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tbxtools/tbx2cmake/internal/autogen"
	"github.com/tbxtools/tbx2cmake/internal/cmake"
	"github.com/tbxtools/tbx2cmake/internal/core"
	"github.com/tbxtools/tbx2cmake/internal/distribution"
	"github.com/tbxtools/tbx2cmake/internal/postprocess"
	"github.com/tbxtools/tbx2cmake/internal/scons"
)

// ReadDistribution scans moduleDir, executes every build script in
// dependency order and returns the populated distribution together with the
// processing order used.
func ReadDistribution(moduleDir string, opts *scons.BuildOptions, log *core.Logger) (*distribution.Distribution, []*distribution.Module, error) {
	dist, err := distribution.Discover(moduleDir, log)
	if err != nil {
		return nil, nil, err
	}

	order, err := distribution.BuildOrder(dist, log)
	if err != nil {
		return nil, nil, err
	}
	logProcessingOrder(log, order)

	disp := scons.NewDispatcher(dist, opts, log)
	if err := disp.Run(order); err != nil {
		return nil, nil, err
	}

	logModuleTable(log, dist)
	log.Info("processing of build scripts done",
		core.ZapInt("targets", dist.Targets().Len()))
	return dist, order, nil
}

// ReadScons runs scan and emulation only and dumps diagnostics: the module
// table, the target count and the set of linked libraries.
func ReadScons(moduleDir string, opts *scons.BuildOptions, log *core.Logger) error {
	dist, _, err := ReadDistribution(moduleDir, opts, log)
	if err != nil {
		return err
	}

	allLibs := distribution.NewStringSet()
	targetNames := distribution.NewStringSet()
	for _, t := range dist.Targets().All() {
		targetNames.Add(t.Name)
		allLibs.Union(t.ExtraLibs)
	}
	external := distribution.NewStringSet()
	for _, lib := range allLibs.Sorted() {
		if !targetNames.Has(lib) {
			external.Add(lib)
		}
	}

	log.Info("all linked libraries", core.ZapString("libraries", strings.Join(allLibs.Sorted(), ", ")))
	log.Info("externally satisfied libraries", core.ZapString("libraries", strings.Join(external.Sorted(), ", ")))
	log.Info("scan complete",
		core.ZapInt("modules", len(dist.Modules())),
		core.ZapInt("targets", dist.Targets().Len()))
	return nil
}

// Convert runs the full pipeline and writes the CMakeLists tree under
// outputDir.
func Convert(moduleDir, autogenPath, outputDir string, opts *scons.BuildOptions, log *core.Logger) error {
	ag, err := autogen.Load(autogenPath)
	if err != nil {
		return err
	}

	dist, _, err := ReadDistribution(moduleDir, opts, log)
	if err != nil {
		return err
	}

	if err := postprocess.Apply(dist, postprocess.Options{Autogen: ag, Log: log}); err != nil {
		return err
	}
	log.Info("distribution processed",
		core.ZapInt("modules", len(dist.Modules())),
		core.ZapInt("targets", dist.Targets().Len()))

	root, err := cmake.BuildTree(dist)
	if err != nil {
		return err
	}
	log.Debug("emission tree:\n" + root.DrawTree())

	if err := cmake.WriteTree(root, outputDir, log); err != nil {
		return err
	}
	log.Info("wrote build files", core.ZapString("output", outputDir))
	return nil
}

func logProcessingOrder(log *core.Logger, order []*distribution.Module) {
	names := make([]string, len(order))
	for i, m := range order {
		names[i] = m.Name
	}
	log.Debug("dependency processing order", core.ZapStrings("order", names))
}

// logModuleTable lists the modules that carried build scripts, aligned the
// way the legacy tool printed them.
func logModuleTable(log *core.Logger, dist *distribution.Distribution) {
	modules := dist.Modules()
	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })

	maxLen := 0
	for _, m := range modules {
		if len(m.Name) > maxLen {
			maxLen = len(m.Name)
		}
	}
	for _, m := range modules {
		if !m.HasSConscript(dist.ModulePath) {
			continue
		}
		log.Debug(fmt.Sprintf("  %-*s  %s", maxLen, m.Name, m.Path))
	}
}
