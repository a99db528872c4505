package scan

import (
	"strings"
	"testing"

	"codeatlas/internal/tester"
)

func TestTree_DirsFirstAndSorted(t *testing.T) {
	root := t.TempDir()
	write(t, root, "zeta.py", "x = 1")
	write(t, root, "Alpha.md", "# a")
	write(t, root, "src/main.py", "y = 2")
	write(t, root, "src/util.py", "z = 3")
	write(t, root, ".git/config", "noise")

	tree, err := Tree(root, Options{})
	tester.NoErr(t, err)
	tester.Eq(t, tree.Type, "directory")
	tester.Len(t, tree.Children, 3)

	tester.Eq(t, tree.Children[0].Name, "src")
	tester.Eq(t, tree.Children[0].Type, "directory")
	tester.Eq(t, tree.Children[1].Name, "Alpha.md")
	tester.Eq(t, tree.Children[2].Name, "zeta.py")

	tester.Eq(t, tree.Children[2].FileType, ".py")
	tester.True(t, tree.Children[2].Size > 0)

	files, dirs := tree.Counts()
	tester.Eq(t, files, 4)
	tester.Eq(t, dirs, 1)
}

func TestTree_MaxDepthStopsDescent(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a/b/c.py", "x = 1")
	write(t, root, "top.py", "y = 2")

	tree, err := Tree(root, Options{MaxDepth: 1})
	tester.NoErr(t, err)

	var a *TreeNode
	for _, c := range tree.Children {
		if c.Name == "a" {
			a = c
		}
	}
	tester.True(t, a != nil, "dir a should be present")
	tester.Len(t, a.Children, 0, "children below MaxDepth are omitted")
}

func TestTree_Render(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/main.py", "x = 1")
	write(t, root, "README.md", "# hi")

	tree, err := Tree(root, Options{})
	tester.NoErr(t, err)

	got := tree.Render()
	want := strings.Join([]string{
		"├── src",
		"│   └── main.py",
		"└── README.md",
	}, "\n")
	tester.Eq(t, got, want)
}
