package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/harrisonrobin/touchgrass/pkg/util"
	"golang.org/x/term"
)

// Prompter asks the user on the terminal. Without a terminal it never blocks:
// merge is assumed and edits are refused.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

func NewPrompter(in io.Reader, out io.Writer, interactive bool) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, interactive: interactive}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ConfirmMergeOrReplace returns true to merge local and cloud data.
func (p *Prompter) ConfirmMergeOrReplace(ctx context.Context) (bool, error) {
	if !p.interactive {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintln(p.out, "Found existing data in the cloud and on this device.")
	for {
		fmt.Fprint(p.out, "Merge them (keeping the larger value per day)? [Y/n, n = replace local with cloud]: ")
		answer, err := p.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "", "y", "yes", "m", "merge":
			return true, nil
		case "n", "no", "r", "replace":
			return false, nil
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
	}
}

// RequestEditValue asks for a new value for date. ok is false when the user
// enters nothing. Zero deletes the entry.
func (p *Prompter) RequestEditValue(date string, current float64) (hours float64, ok bool, err error) {
	if !p.interactive {
		return 0, false, fmt.Errorf("editing needs a terminal; use `touchgrass set %s HOURS` instead", date)
	}
	for {
		fmt.Fprintf(p.out, "Hours for %s (current %.2f, 0 deletes, empty cancels): ", date, current)
		answer, err := p.readLine()
		if err != nil {
			return 0, false, err
		}
		if answer == "" {
			return 0, false, nil
		}
		h, err := util.ParseHours(answer)
		if err == nil && h >= 0 {
			return h, true, nil
		}
		fmt.Fprintln(p.out, "Please enter a non-negative number of hours, e.g. 1.5 or 1h30m.")
	}
}
