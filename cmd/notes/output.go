package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"notes-go/internal/notes"
)

func printTree(tree []notes.TreeNode, activeID string) {
	writeTree(os.Stdout, tree, activeID)
}

// writeTree prints one folder per line, indented by depth. Collapsed
// folders with children get "+", expanded ones "-".
func writeTree(w io.Writer, tree []notes.TreeNode, activeID string) {
	for _, n := range tree {
		marker := " "
		if n.HasChildren {
			marker = "+"
			if n.Expanded {
				marker = "-"
			}
		}
		active := ""
		if n.Folder.ID == activeID {
			active = "  *"
		}
		def := ""
		if n.Folder.IsDefault {
			def = " (default)"
		}
		fmt.Fprintf(w, "%s%s %s%s  %s%s\n", strings.Repeat("  ", n.Depth), marker, n.Folder.Name, def, n.Folder.ID, active)
	}
}

// printObserver writes session updates to stdout for the watch command.
// It runs on the session's event goroutine.
type printObserver struct {
	w        io.Writer
	lastTree string
}

func (o *printObserver) out() io.Writer {
	if o.w == nil {
		return os.Stdout
	}
	return o.w
}

func (o *printObserver) StatusChanged(st notes.Status) {
	if st.Message == "" {
		return
	}
	fmt.Fprintf(o.out(), "%s [%s] %s\n", time.Now().Format("15:04:05"), st.Tone, st.Message)
}

func (o *printObserver) FoldersChanged(tree []notes.TreeNode, activeID string) {
	var b strings.Builder
	writeTree(&b, tree, activeID)
	if b.String() == o.lastTree {
		return
	}
	o.lastTree = b.String()
	fmt.Fprintf(o.out(), "Folders:\n%s", o.lastTree)
}

func (o *printObserver) NotesChanged(list []notes.Note, openID string) {
	fmt.Fprintf(o.out(), "Notes (%d):\n", len(list))
	for _, n := range list {
		open := ""
		if n.ID == openID {
			open = "  *"
		}
		fmt.Fprintf(o.out(), "  %s  %s%s\n", n.ID, n.Title, open)
	}
}

func (o *printObserver) EditorChanged(notes.EditorState) {}
