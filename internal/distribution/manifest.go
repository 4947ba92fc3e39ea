package distribution

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/tbxtools/tbx2cmake/internal/sandbox"
)

// moduleAliases maps manifest dependency names that don't correspond to a
// real module directory onto the adaptor module that stands in for them.
var moduleAliases = map[string]string{
	"boost":  "boost_adaptbx",
	"annlib": "annlib_adaptbx",
}

// LoadManifest reads a libtbx_config manifest (a single dictionary literal)
// and fills in the module's requirement sets. Duplicates collapse and aliased
// names are rewritten, so "boost" and "annlib" never survive into Required.
func (m *Module) LoadManifest(path string) error {
	value, err := sandbox.EvalExprFile(path)
	if err != nil {
		return fmt.Errorf("module %s: parsing manifest: %w", m.Name, err)
	}
	dict, ok := value.(*starlark.Dict)
	if !ok {
		return fmt.Errorf("module %s: manifest %s is %s, want a dict literal", m.Name, path, value.Type())
	}

	required, err := manifestNames(dict, "modules_required_for_build")
	if err != nil {
		return fmt.Errorf("module %s: %w", m.Name, err)
	}
	optional, err := manifestNames(dict, "optional_modules")
	if err != nil {
		return fmt.Errorf("module %s: %w", m.Name, err)
	}
	forUse, err := manifestNames(dict, "modules_required_for_use")
	if err != nil {
		return fmt.Errorf("module %s: %w", m.Name, err)
	}

	for _, name := range append(required, optional...) {
		if alias, ok := moduleAliases[name]; ok {
			name = alias
		}
		m.Required.Add(name)
	}
	m.RequiredForUse.Add(forUse...)
	return nil
}

func manifestNames(dict *starlark.Dict, key string) ([]string, error) {
	value, found, err := dict.Get(starlark.String(key))
	if err != nil || !found {
		return nil, err
	}
	seq, ok := value.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("manifest key %q is %s, want a list of strings", key, value.Type())
	}
	var names []string
	iter := seq.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		s, ok := starlark.AsString(item)
		if !ok {
			return nil, fmt.Errorf("manifest key %q contains %s, want strings", key, item.Type())
		}
		names = append(names, s)
	}
	return names, nil
}
