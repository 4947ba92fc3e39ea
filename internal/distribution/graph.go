package distribution

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/tbxtools/tbx2cmake/internal/core"
)

// RootModule is the foundational module every other module implicitly
// depends on.
const RootModule = "libtbx"

// repairEdges reflect implicit orderings of the legacy system that the
// manifests do not declare. Data, not policy: extend as more turn up.
var repairEdges = [][2]string{
	{"scitbx", "omptbx"},
}

// CycleError is reported when the module dependency graph is not a DAG.
type CycleError struct {
	Cycles [][]string
}

func (e *CycleError) Error() string {
	var cycles []string
	for _, cycle := range e.Cycles {
		cycles = append(cycles, strings.Join(cycle, " -> "))
	}
	return fmt.Sprintf("cycles found in dependency graph: %s", strings.Join(cycles, "; "))
}

// BuildOrder derives the order in which module scripts must execute: each
// module strictly after everything it requires, deterministically.
//
// Edges come from the manifests (module -> requirement), a synthetic edge
// from every non-root module to RootModule, and the repair edge set. An edge
// naming an unknown module is dropped with a warning; a cycle is fatal.
func BuildOrder(d *Distribution, log *core.Logger) ([]*Module, error) {
	modules := d.Modules()

	ids := make(map[string]int64, len(modules))
	names := make(map[int64]string, len(modules))
	g := simple.NewDirectedGraph()
	for i, m := range modules {
		id := int64(i)
		ids[m.Name] = id
		names[id] = m.Name
		g.AddNode(simple.Node(id))
	}

	addEdge := func(from, to string) {
		f, fok := ids[from]
		t, tok := ids[to]
		if !fok || !tok || f == t {
			return
		}
		g.SetEdge(g.NewEdge(simple.Node(f), simple.Node(t)))
	}

	for _, m := range modules {
		for _, req := range m.Required.Sorted() {
			if _, known := ids[req]; !known {
				log.Warn("module requires unknown module; edge dropped",
					core.ZapString("module", m.Name),
					core.ZapString("requires", req))
				continue
			}
			addEdge(m.Name, req)
		}
		if m.Name != RootModule {
			addEdge(m.Name, RootModule)
		}
	}
	for _, edge := range repairEdges {
		addEdge(edge[0], edge[1])
	}

	byName := func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool {
			return names[nodes[i].ID()] < names[nodes[j].ID()]
		})
	}

	sorted, err := topo.SortStabilized(g, byName)
	if err != nil {
		var unorderable topo.Unorderable
		if errors.As(err, &unorderable) {
			cerr := &CycleError{}
			for _, cycle := range unorderable {
				var cycleNames []string
				for _, n := range cycle {
					cycleNames = append(cycleNames, names[n.ID()])
				}
				sort.Strings(cycleNames)
				cerr.Cycles = append(cerr.Cycles, cycleNames)
			}
			return nil, cerr
		}
		return nil, err
	}

	// Topological order puts dependents before their requirements; scripts
	// must run requirements-first, so reverse.
	order := make([]*Module, 0, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		order = append(order, d.Module(names[sorted[i].ID()]))
	}
	return order, nil
}
