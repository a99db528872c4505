// Package render turns a repository snapshot and its code graph into the
// final markdown document.
package render

import (
	"fmt"
	"strings"
	"time"

	"codeatlas/internal/artifact"
	"codeatlas/internal/codegraph"
	"codeatlas/internal/scan"
)

const maxEdgeRows = 50

// Markdown renders the full document. Output is deterministic for a given
// input and timestamp.
func Markdown(in artifact.DocIn, generatedAt time.Time) string {
	var sb strings.Builder

	repo := in.Repo
	if repo == "" && in.Snapshot != nil && in.Snapshot.Tree != nil {
		repo = in.Snapshot.Tree.Name
	}
	if repo == "" {
		repo = "repository"
	}

	fmt.Fprintf(&sb, "# 🎯 %s Documentation\n\n", repo)
	sb.WriteString("*Generated by CodeAtlas*\n\n---\n\n")

	writeOverview(&sb, in, generatedAt)
	writeStructure(&sb, in.Snapshot)
	writeModules(&sb, in.Graph)
	writeGraph(&sb, in.Graph, in.Languages)
	writeNotes(&sb, in)

	return sb.String()
}

func writeOverview(sb *strings.Builder, in artifact.DocIn, generatedAt time.Time) {
	sb.WriteString("## 📖 Project Overview\n\n")
	summary := "No README summary available"
	if in.Snapshot != nil && in.Snapshot.Readme != "" {
		summary = in.Snapshot.Readme
	}
	sb.WriteString(summary)
	sb.WriteString("\n\n")

	if in.URL != "" {
		fmt.Fprintf(sb, "**Repository**: [%s](%s)  \n", in.URL, in.URL)
	}
	fmt.Fprintf(sb, "**Generated on**: %s  \n", generatedAt.Format("2006-01-02 15:04:05"))
	if in.Snapshot != nil {
		fmt.Fprintf(sb, "**Total files**: %d  \n", in.Snapshot.FileCount)
		fmt.Fprintf(sb, "**Total directories**: %d  \n", in.Snapshot.DirCount)
	}
	sb.WriteString("\n---\n\n")
}

func writeStructure(sb *strings.Builder, snap *artifact.Snapshot) {
	if snap == nil || snap.Tree == nil {
		return
	}
	sb.WriteString("## 📁 Repository Structure\n\n```\n")
	writeTreeNode(sb, snap.Tree, 0)
	sb.WriteString("```\n\n---\n\n")
}

func writeTreeNode(sb *strings.Builder, node *scan.TreeNode, depth int) {
	indent := strings.Repeat("  ", depth)
	if node.Type == "directory" {
		fmt.Fprintf(sb, "%s📁 %s/\n", indent, node.Name)
		for _, child := range node.Children {
			writeTreeNode(sb, child, depth+1)
		}
		return
	}
	fmt.Fprintf(sb, "%s%s %s\n", indent, fileEmoji(node.FileType), node.Name)
}

func fileEmoji(fileType string) string {
	switch fileType {
	case ".py":
		return "🐍"
	case ".jac":
		return "🎯"
	case ".md":
		return "📝"
	}
	return "📄"
}

// writeModules documents each source file's symbols, grouped by file in
// snapshot order.
func writeModules(sb *strings.Builder, g *artifact.Graph) {
	if g == nil || len(g.Symbols) == 0 {
		return
	}
	sb.WriteString("## 📦 Modules\n\n")

	var paths []string
	byPath := make(map[string][]codegraph.Symbol)
	for _, s := range g.Symbols {
		if _, seen := byPath[s.Path]; !seen {
			paths = append(paths, s.Path)
		}
		byPath[s.Path] = append(byPath[s.Path], s)
	}

	for _, path := range paths {
		fmt.Fprintf(sb, "### %s `%s`\n\n", fileEmoji(extOf(path)), path)
		sb.WriteString("| Symbol | Kind | Lines | Summary |\n")
		sb.WriteString("|--------|------|-------|--------|\n")
		for _, s := range byPath[path] {
			summary := s.Doc
			if summary == "" {
				summary = s.Signature
			}
			fmt.Fprintf(sb, "| `%s` | %s | %d–%d | %s |\n",
				s.Name, s.Kind, s.StartLine, s.EndLine, tableCell(summary))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("---\n\n")
}

func writeGraph(sb *strings.Builder, g *artifact.Graph, languages []artifact.LangCount) {
	if g == nil {
		return
	}
	sb.WriteString("## 🔗 Symbol Graph\n\n")
	fmt.Fprintf(sb, "**Symbols**: %d  \n", g.Stats.Symbols)
	fmt.Fprintf(sb, "**Relationships**: %d  \n", g.Stats.Edges)
	fmt.Fprintf(sb, "**Unresolved references**: %d  \n\n", g.Stats.Unresolved)
	if len(languages) > 0 {
		parts := make([]string, 0, len(languages))
		for _, lc := range languages {
			parts = append(parts, fmt.Sprintf("%s (%d)", lc.Language, lc.Count))
		}
		fmt.Fprintf(sb, "**Languages**: %s  \n\n", strings.Join(parts, ", "))
	}

	if len(g.Order) > 0 {
		sb.WriteString("### Processing Order\n\n")
		sb.WriteString("Symbols are listed so that what a symbol references comes before the symbol itself.\n\n")
		for i, id := range g.Order {
			if id < 0 || id >= len(g.Symbols) {
				continue
			}
			fmt.Fprintf(sb, "%d. `%s`\n", i+1, g.Symbols[id].Name)
		}
		sb.WriteString("\n")
	}

	writeEdgeKind(sb, g, codegraph.EdgeImports, "📥 Imports")
	writeEdgeKind(sb, g, codegraph.EdgeCalls, "📞 Calls")
	writeEdgeKind(sb, g, codegraph.EdgeInherits, "🧬 Inheritance")
	writeEdgeKind(sb, g, codegraph.EdgeReferences, "🔍 References")
	sb.WriteString("---\n\n")
}

func writeEdgeKind(sb *strings.Builder, g *artifact.Graph, kind codegraph.EdgeKind, title string) {
	var rows []string
	for _, e := range g.Edges {
		if e.Kind != kind {
			continue
		}
		if e.From < 0 || e.From >= len(g.Symbols) || e.To < 0 || e.To >= len(g.Symbols) {
			continue
		}
		rows = append(rows, fmt.Sprintf("- `%s` → `%s`", g.Symbols[e.From].Name, g.Symbols[e.To].Name))
	}
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(sb, "### %s\n\n", title)
	shown := rows
	if len(shown) > maxEdgeRows {
		shown = shown[:maxEdgeRows]
	}
	for _, row := range shown {
		sb.WriteString(row)
		sb.WriteString("\n")
	}
	if extra := len(rows) - len(shown); extra > 0 {
		fmt.Fprintf(sb, "- … and %d more\n", extra)
	}
	sb.WriteString("\n")
}

func writeNotes(sb *strings.Builder, in artifact.DocIn) {
	var notes []string

	for _, s := range in.Skipped {
		notes = append(notes, fmt.Sprintf("- ⚠️ `%s` could not be parsed: %s", s.Path, s.Reason))
	}
	if in.Graph != nil {
		unresolved := in.Graph.Unresolved
		if len(unresolved) > maxEdgeRows {
			unresolved = unresolved[:maxEdgeRows]
		}
		for _, u := range unresolved {
			from := "?"
			if u.From >= 0 && u.From < len(in.Graph.Symbols) {
				from = in.Graph.Symbols[u.From].Name
			}
			notes = append(notes, fmt.Sprintf("- 🔍 `%s` → `%s` dropped (%s)", from, u.Target, u.Reason))
		}
		if extra := len(in.Graph.Unresolved) - len(unresolved); extra > 0 {
			notes = append(notes, fmt.Sprintf("- 🔍 … and %d more unresolved references", extra))
		}
		for _, cb := range in.Graph.CycleBreaks {
			notes = append(notes, fmt.Sprintf("- 🔄 `%s` participates in a reference cycle; order was forced", cb.Name))
		}
	}
	if len(notes) == 0 {
		return
	}
	sb.WriteString("## ⚠️ Extraction Notes\n\n")
	for _, n := range notes {
		sb.WriteString(n)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

// ---- Helpers ----

func extOf(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return strings.ToLower(path[i:])
	}
	return ""
}

// tableCell flattens text into something safe for a one-line table cell.
func tableCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > 120 {
		s = string(r[:120]) + "…"
	}
	return s
}
