// Package autogen loads the autogen metadata file: the external knowledge the
// build scripts cannot express, namely which sources are generated at build
// time by module refresh steps, plus forced dependencies and include paths to
// inject into targets.
package autogen

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"
)

// StringList accepts either a single YAML scalar or a sequence of scalars.
type StringList []string

func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*s = StringList{single}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*s = StringList(many)
		return nil
	}
	return fmt.Errorf("line %d: want string or list of strings", value.Line)
}

// Autogen is the schema of the autogen metadata file.
type Autogen struct {
	// LibTBXRefresh maps module name to the source paths that module's
	// refresh step generates under the build root.
	LibTBXRefresh map[string]StringList `yaml:"libtbx_refresh"`

	// OtherGenerated lists generated sources not owned by any refresh step.
	OtherGenerated StringList `yaml:"other_generated"`

	// Dependencies maps target name to extra link dependencies.
	Dependencies map[string]StringList `yaml:"dependencies"`

	// TargetIncludes maps a target or module name to include path entries.
	// Entries may start with '!' (private), '#base' (distribution root) or
	// '#build' (build root).
	TargetIncludes map[string]StringList `yaml:"target_includes"`
}

// Load reads and parses an autogen file.
func Load(path string) (*Autogen, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading autogen file: %w", err)
	}
	var ag Autogen
	if err := yaml.Unmarshal(data, &ag); err != nil {
		return nil, fmt.Errorf("parsing autogen file %s: %w", path, err)
	}
	return &ag, nil
}

// Empty returns an autogen structure with no entries, for runs without an
// autogen file.
func Empty() *Autogen {
	return &Autogen{}
}

// GeneratedSet returns every generated path known to the manifest, from all
// refresh steps and the other_generated list.
func (a *Autogen) GeneratedSet() map[string]bool {
	set := make(map[string]bool)
	for _, paths := range a.LibTBXRefresh {
		for _, p := range paths {
			set[p] = true
		}
	}
	for _, p := range a.OtherGenerated {
		set[p] = true
	}
	return set
}
