package scan

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

var readmeNames = []string{"README.md", "README.rst", "README.txt", "README"}

var (
	reImgMD   = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	reImgHTML = regexp.MustCompile(`(?is)<img[^>]*>`)
)

const (
	readmeMaxLines = 20
	readmeMaxChars = 1000
)

// FindReadme returns the file name of the first README present at the root.
func FindReadme(root string) (string, bool) {
	for _, name := range readmeNames {
		if fi, err := os.Stat(filepath.Join(root, name)); err == nil && !fi.IsDir() {
			return name, true
		}
	}
	return "", false
}

// SummarizeReadme returns the leading lines of the repository README, images
// stripped, capped at readmeMaxLines lines and readmeMaxChars characters.
func SummarizeReadme(root string) (string, bool) {
	name, ok := FindReadme(root)
	if !ok {
		return "", false
	}
	b, err := os.ReadFile(filepath.Join(root, name))
	if err != nil {
		return "", false
	}

	txt := string(b)
	txt = reImgMD.ReplaceAllString(txt, "")
	txt = reImgHTML.ReplaceAllString(txt, "")

	lines := strings.Split(txt, "\n")
	if len(lines) > readmeMaxLines {
		lines = lines[:readmeMaxLines]
	}
	summary := strings.TrimSpace(strings.Join(lines, "\n"))
	if len(summary) > readmeMaxChars {
		cut := readmeMaxChars
		// Back up to a rune boundary so the cut never splits a multi-byte
		// character.
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut] + "... (truncated)"
	}
	return summary, true
}
