package output

import (
	"sort"
	"strings"

	"ghrest.dev/ghrest/internal/gitdata"
)

// TreeRenderOptions configures rendering behavior
type TreeRenderOptions struct {
	// ShowSHA appends the abbreviated object hash to every entry
	ShowSHA bool
	// NoStyle disables colors, for tests and plain output
	NoStyle bool
}

type treeNode struct {
	name     string
	entry    gitdata.TreeEntry
	children []*treeNode
}

// RenderTree renders a tree listing (as returned by a recursive tree read)
// under a root label, one line per entry with box-drawing guides.
func RenderTree(root string, entries []gitdata.TreeEntry, opts TreeRenderOptions) []string {
	sorted := append([]gitdata.TreeEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	rootNode := &treeNode{name: root}
	nodes := map[string]*treeNode{"": rootNode}

	var ensure func(path string) *treeNode
	ensure = func(path string) *treeNode {
		if n, ok := nodes[path]; ok {
			return n
		}
		parent, name := splitParent(path)
		n := &treeNode{name: name, entry: gitdata.TreeEntry{Path: path, Type: gitdata.TypeTree}}
		p := ensure(parent)
		p.children = append(p.children, n)
		nodes[path] = n
		return n
	}

	for _, e := range sorted {
		n := ensure(e.Path)
		n.entry = e
	}

	lines := []string{root}
	rootNode.render("", 0, opts, &lines)
	return lines
}

func splitParent(path string) (parent, name string) {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}

func (n *treeNode) render(prefix string, depth int, opts TreeRenderOptions, lines *[]string) {
	for i, child := range n.children {
		last := i == len(n.children)-1
		guide, next := "├── ", "│   "
		if last {
			guide, next = "└── ", "    "
		}

		label := child.name
		if child.entry.Type == gitdata.TypeTree {
			label += "/"
		}
		if !opts.NoStyle {
			guide = ColorDepth(guide, depth)
			if child.entry.Type == gitdata.TypeTree {
				label = ColorPath(label)
			}
		}
		line := prefix + guide + label
		if opts.ShowSHA && child.entry.SHA != "" {
			sha := child.entry.SHA
			if opts.NoStyle {
				if len(sha) > 7 {
					sha = sha[:7]
				}
			} else {
				sha = ColorSHA(sha)
			}
			line += " " + sha
		}
		*lines = append(*lines, line)

		nextPrefix := prefix + next
		if !opts.NoStyle {
			nextPrefix = prefix + ColorDepth(next, depth)
		}
		child.render(nextPrefix, depth+1, opts, lines)
	}
}
