// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace loads the markdown profile documents that shape an
// agent session: who the agent is, what tools it has, what it should
// remember. Assembly is deterministic — fixed profile order, then
// memory entries sorted by filename — so the same workspace always
// produces the same context document.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// profileFiles are loaded from the workspace root in this order.
// Missing files are skipped; an empty workspace is valid.
var profileFiles = []string{
	"AGENTS.md",
	"SOUL.md",
	"TOOLS.md",
	"IDENTITY.md",
	"USER.md",
	"BOOT.md",
	"BOOTSTRAP.md",
	"MEMORY.md",
}

// memoryDirectory holds dated memory entries, included after the
// profile documents.
const memoryDirectory = "memory"

// Document is one loaded markdown file.
type Document struct {
	// Name is the path relative to the workspace root.
	Name string
	// Title is the text of the document's first heading, or the
	// filename stem when it has none.
	Title string
	// Content is the raw markdown.
	Content string
}

// Workspace is the loaded profile of one workspace root.
type Workspace struct {
	Root      string
	Documents []Document
	Memory    []Document
}

// Load reads the profile documents under root. Only missing files are
// tolerated; an unreadable file is an error.
func Load(root string) (*Workspace, error) {
	w := &Workspace{Root: root}

	for _, name := range profileFiles {
		document, ok, err := readDocument(root, name)
		if err != nil {
			return nil, err
		}
		if ok {
			w.Documents = append(w.Documents, document)
		}
	}

	entries, err := os.ReadDir(filepath.Join(root, memoryDirectory))
	if err != nil {
		if os.IsNotExist(err) {
			return w, nil
		}
		return nil, fmt.Errorf("workspace: reading %s: %w", memoryDirectory, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		document, ok, err := readDocument(root, filepath.Join(memoryDirectory, name))
		if err != nil {
			return nil, err
		}
		if ok {
			w.Memory = append(w.Memory, document)
		}
	}
	return w, nil
}

// Context assembles the documents into a single prompt context. Each
// document appears under a header naming its title and source file.
func (w *Workspace) Context() string {
	var sb strings.Builder
	for _, document := range w.Documents {
		writeSection(&sb, document)
	}
	for _, document := range w.Memory {
		writeSection(&sb, document)
	}
	return sb.String()
}

// Empty reports whether the workspace contained no profile documents.
func (w *Workspace) Empty() bool {
	return len(w.Documents) == 0 && len(w.Memory) == 0
}

func writeSection(sb *strings.Builder, document Document) {
	fmt.Fprintf(sb, "<!-- %s -->\n# %s\n\n%s\n\n", document.Name, document.Title,
		strings.TrimSpace(document.Content))
}

func readDocument(root, name string) (Document, bool, error) {
	content, err := os.ReadFile(filepath.Join(root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, false, nil
		}
		return Document{}, false, fmt.Errorf("workspace: reading %s: %w", name, err)
	}
	title := extractTitle(content)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(name), ".md")
	}
	return Document{Name: name, Title: title, Content: string(content)}, true, nil
}

// extractTitle returns the text of the first heading in the document.
func extractTitle(source []byte) string {
	parser := goldmark.New().Parser()
	root := parser.Parse(text.NewReader(source))

	var title string
	ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		heading, ok := node.(*ast.Heading)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		var sb strings.Builder
		for child := heading.FirstChild(); child != nil; child = child.NextSibling() {
			if textNode, ok := child.(*ast.Text); ok {
				sb.Write(textNode.Segment.Value(source))
			}
		}
		title = strings.TrimSpace(sb.String())
		return ast.WalkStop, nil
	})
	return title
}
