package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const statusLabelWidth = 28

// statusWriter prints aligned "label: [OK] detail" check lines, colored
// green or red when the destination is a terminal.
type statusWriter struct {
	out   io.Writer
	color bool
}

func newStatusWriter(out io.Writer) statusWriter {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return statusWriter{out: out, color: color}
}

func (w statusWriter) line(label string, ok bool, detail string) {
	tag, color := "[OK]", "\x1b[32m"
	if !ok {
		tag, color = "[ERROR]", "\x1b[31m"
	}
	if detail != "" {
		tag += " " + detail
	}
	text := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", tag)
	if w.color {
		text = color + text + "\x1b[0m"
	}
	fmt.Fprintln(w.out, text)
}
