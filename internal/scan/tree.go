package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// TreeNode is one entry of the snapshot file tree. Directories sort before
// files, both case-insensitively by name.
type TreeNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Type     string      `json:"type"` // "file" or "directory"
	FileType string      `json:"file_type,omitempty"`
	Size     int64       `json:"size,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Tree builds the file tree of a repository root. Ignored directories are
// pruned; MaxDepth > 0 stops descending below that depth.
func Tree(root string, opts Options) (*TreeNode, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	ignoreDirs := opts.IgnoreDirs
	if ignoreDirs == nil {
		ignoreDirs = DefaultIgnoreDirs
	}
	skip := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		skip[d] = true
	}

	var gi *ignore.GitIgnore
	if opts.Gitignore {
		if g, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
			gi = g
		}
	}

	node := &TreeNode{Name: filepath.Base(root), Path: ".", Type: "directory"}
	if !info.IsDir() {
		return nil, os.ErrInvalid
	}
	if err := fillTree(node, root, "", skip, gi, opts.MaxDepth, 1); err != nil {
		return nil, err
	}
	return node, nil
}

func fillTree(parent *TreeNode, root, rel string, skip map[string]bool, gi *ignore.GitIgnore, maxDepth, depth int) error {
	if maxDepth > 0 && depth > maxDepth {
		return nil
	}
	entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}
	for _, e := range entries {
		childRel := e.Name()
		if rel != "" {
			childRel = rel + "/" + e.Name()
		}
		if e.IsDir() {
			if skip[e.Name()] {
				continue
			}
			if gi != nil && gi.MatchesPath(childRel+"/") {
				continue
			}
			child := &TreeNode{Name: e.Name(), Path: childRel, Type: "directory"}
			if err := fillTree(child, root, childRel, skip, gi, maxDepth, depth+1); err != nil {
				return err
			}
			parent.Children = append(parent.Children, child)
			continue
		}
		if gi != nil && gi.MatchesPath(childRel) {
			continue
		}
		child := &TreeNode{
			Name:     e.Name(),
			Path:     childRel,
			Type:     "file",
			FileType: strings.ToLower(filepath.Ext(e.Name())),
		}
		if fi, err := e.Info(); err == nil {
			child.Size = fi.Size()
		}
		parent.Children = append(parent.Children, child)
	}
	sortChildren(parent.Children)
	return nil
}

func sortChildren(nodes []*TreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Type != nodes[j].Type {
			return nodes[i].Type == "directory"
		}
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})
}

// Counts returns the number of files and directories below this node, the
// node itself excluded.
func (n *TreeNode) Counts() (files, dirs int) {
	for _, c := range n.Children {
		if c.Type == "directory" {
			dirs++
			f, d := c.Counts()
			files += f
			dirs += d
		} else {
			files++
		}
	}
	return files, dirs
}

// Render converts the tree into a visual string.
// Example:
// ├── src
// │   └── main.py
// └── README.md
func (n *TreeNode) Render() string {
	var sb strings.Builder
	renderNodes(&sb, n.Children, "")
	return strings.TrimSuffix(sb.String(), "\n")
}

func renderNodes(sb *strings.Builder, nodes []*TreeNode, prefix string) {
	for i, c := range nodes {
		isLast := i == len(nodes)-1
		sb.WriteString(prefix)
		if isLast {
			sb.WriteString("└── ")
		} else {
			sb.WriteString("├── ")
		}
		sb.WriteString(c.Name)
		sb.WriteString("\n")

		if len(c.Children) > 0 {
			newPrefix := prefix
			if isLast {
				newPrefix += "    "
			} else {
				newPrefix += "│   "
			}
			renderNodes(sb, c.Children, newPrefix)
		}
	}
}
