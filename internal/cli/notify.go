package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	warnColor = color.New(color.FgYellow, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
)

// Notifier prints engine notifications to a terminal.
type Notifier struct {
	out io.Writer
}

// NewNotifier returns a Notifier writing to out.
func NewNotifier(out io.Writer) *Notifier {
	return &Notifier{out: out}
}

// Warning implements engine.Notifier.
func (n *Notifier) Warning(_ context.Context, msg string) {
	fmt.Fprintf(n.out, "%s %s\n", warnColor.Sprint("warning:"), msg)
}

// Failure implements engine.Notifier.
func (n *Notifier) Failure(_ context.Context, msg string, err error) {
	if err == nil {
		fmt.Fprintf(n.out, "%s %s\n", failColor.Sprint("error:"), msg)
		return
	}
	fmt.Fprintf(n.out, "%s %s: %v\n", failColor.Sprint("error:"), msg, err)
}
