// Package cmake renders a processed distribution as a hierarchical set of
// CMakeLists files, one per node of the emission tree: the root, every module
// root, every target origin directory and the directories between them.
package cmake

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio"

	"github.com/tbxtools/tbx2cmake/internal/core"
	"github.com/tbxtools/tbx2cmake/internal/distribution"
)

// Node is one output directory in the emission tree.
type Node struct {
	Path           string // this node's own path segment
	Parent         *Node
	Subdirectories map[string]*Node

	IsModuleRoot bool
	Module       *distribution.Module // set on module roots
	Targets      []*distribution.Target
}

// NewRoot returns the tree root (the distribution root directory).
func NewRoot() *Node {
	return &Node{Subdirectories: make(map[string]*Node)}
}

// GetPath descends to the node for relpath, creating missing children.
// Absolute paths and parent references are rejected.
func (n *Node) GetPath(relpath string) (*Node, error) {
	if path.IsAbs(relpath) {
		return nil, fmt.Errorf("absolute path %q not allowed in emission tree", relpath)
	}
	parts := strings.Split(path.Clean(relpath), "/")
	node := n
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			return nil, fmt.Errorf("parent reference in %q not allowed in emission tree", relpath)
		}
		child, ok := node.Subdirectories[part]
		if !ok {
			child = &Node{Path: part, Parent: node, Subdirectories: make(map[string]*Node)}
			node.Subdirectories[part] = child
		}
		node = child
	}
	return node, nil
}

// FullPath is the node's path relative to the tree root.
func (n *Node) FullPath() string {
	if n.Parent == nil {
		return ""
	}
	return path.Join(n.Parent.FullPath(), n.Path)
}

// All returns the node and every descendant, parents first, children in
// lexical order.
func (n *Node) All() []*Node {
	nodes := []*Node{n}
	for _, name := range n.childNames() {
		nodes = append(nodes, n.Subdirectories[name].All()...)
	}
	return nodes
}

func (n *Node) childNames() []string {
	names := make([]string, 0, len(n.Subdirectories))
	for name := range n.Subdirectories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Owner is the module governing this directory: the module of the nearest
// ancestor-or-self that is a module root.
func (n *Node) Owner() *distribution.Module {
	for node := n; node != nil; node = node.Parent {
		if node.Module != nil {
			return node.Module
		}
	}
	return nil
}

// DrawTree renders the hierarchy for diagnostics.
func (n *Node) DrawTree() string {
	var sb strings.Builder
	n.drawTree(&sb, "", true, true)
	return strings.TrimRight(sb.String(), "\n")
}

func (n *Node) drawTree(sb *strings.Builder, indent string, last, root bool) {
	line := indent
	if !root {
		if last {
			line += " └"
			indent += "  "
		} else {
			line += " ├"
			indent += " │"
		}
	}
	name := n.Path
	if n.Parent == nil {
		name = "ROOT"
	}
	fmt.Fprintf(sb, "%s %s (%d targets)\n", line, name, len(n.Targets))
	names := n.childNames()
	for i, child := range names {
		n.Subdirectories[child].drawTree(sb, indent, i == len(names)-1, false)
	}
}

// BuildTree attaches every module at its root directory and every target at
// its origin directory.
func BuildTree(dist *distribution.Distribution) (*Node, error) {
	root := NewRoot()
	for _, m := range dist.Modules() {
		node, err := root.GetPath(m.Path)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", m.Name, err)
		}
		node.IsModuleRoot = true
		node.Module = m
	}
	for _, t := range dist.Targets().All() {
		node, err := root.GetPath(t.OriginPath)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", t.Name, err)
		}
		node.Targets = append(node.Targets, t)
	}
	return root, nil
}

// RootFilename is written at the tree root instead of CMakeLists.txt, so a
// hand-maintained root CMakeLists.txt can include it.
const RootFilename = "autogen_CMakeLists.txt"

// WriteTree renders every node under outputDir, creating directories as
// needed. Files are written atomically and overwrite existing ones.
func WriteTree(root *Node, outputDir string, log *core.Logger) error {
	for _, node := range root.All() {
		dir := filepath.Join(outputDir, filepath.FromSlash(node.FullPath()))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		filename := "CMakeLists.txt"
		if node.Parent == nil {
			filename = RootFilename
		}
		content := node.Render()
		if err := renameio.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", filepath.Join(dir, filename), err)
		}
		log.Debug("wrote build file",
			core.ZapString("path", filepath.Join(node.FullPath(), filename)),
			core.ZapInt("targets", len(node.Targets)))
	}
	return nil
}
