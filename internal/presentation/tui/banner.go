package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the docbridge banner.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"     _            _          _     _            ", "#818cf8"},
		{"  __| | ___   ___| |__  _ __(_) __| | __ _  ___ ", "#a78bfa"},
		{" / _` |/ _ \\ / __| '_ \\| '__| |/ _` |/ _` |/ _ \\", "#c084fc"},
		{"| (_| | (_) | (__| |_) | |  | | (_| | (_| |  __/", "#e879f9"},
		{" \\__,_|\\___/ \\___|_.__/|_|  |_|\\__,_|\\__, |\\___|", "#f472b6"},
		{"                                     |___/      ", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Success formats a status line for a completed operation.
func Success(msg string) string {
	p := termenv.ColorProfile()
	return termenv.String("✔ " + msg).Foreground(p.Color("#22c55e")).String()
}

// Failure formats a status line for a failed operation.
func Failure(msg string) string {
	p := termenv.ColorProfile()
	return termenv.String("✘ " + msg).Foreground(p.Color("#ef4444")).Bold().String()
}
