// Package setup implements the interactive wizard that writes a MedTrack
// configuration file.
package setup

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Prompter asks questions on w and reads answers line by line from r.
type Prompter struct {
	scanner *bufio.Scanner
	w       io.Writer
}

// NewPrompter creates a Prompter wired to the given reader and writer.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(r), w: w}
}

func (p *Prompter) readLine() (string, bool) {
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.scanner.Text()), true
}

// String prompts for a text value. Pressing Enter returns defaultVal. With
// required set and no default, the prompt repeats until a value is given.
func (p *Prompter) String(label, defaultVal string, required bool) string {
	for {
		if defaultVal != "" {
			_, _ = fmt.Fprintf(p.w, "  %s [%s]: ", label, defaultVal)
		} else {
			_, _ = fmt.Fprintf(p.w, "  %s: ", label)
		}

		val, ok := p.readLine()
		if !ok {
			return defaultVal
		}
		if val != "" {
			return val
		}
		if defaultVal != "" || !required {
			return defaultVal
		}
		_, _ = fmt.Fprintf(p.w, "  (required, please enter a value)\n")
	}
}

// Secret prompts for a sensitive value such as an API key. The input is not
// masked. An empty answer keeps current; the hint shows only whether a value
// is already set.
func (p *Prompter) Secret(label, current string) string {
	hint := ""
	if current != "" {
		hint = " [keep current]"
	}
	_, _ = fmt.Fprintf(p.w, "  %s%s: ", label, hint)

	val, ok := p.readLine()
	if !ok || val == "" {
		return current
	}
	return val
}

// Confirm asks a yes/no question. defaultYes decides what an empty answer
// means.
func (p *Prompter) Confirm(label string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}
	_, _ = fmt.Fprintf(p.w, "  %s %s: ", label, hint)

	answer, ok := p.readLine()
	if !ok || answer == "" {
		return defaultYes
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

// Duration prompts for a duration within [lo, hi]. Invalid or out-of-range
// input repeats the prompt; end of input returns defaultVal.
func (p *Prompter) Duration(label string, defaultVal, lo, hi time.Duration) time.Duration {
	for {
		_, _ = fmt.Fprintf(p.w, "  %s (%s to %s) [%s]: ", label, lo, hi, defaultVal)

		val, ok := p.readLine()
		if !ok || val == "" {
			return defaultVal
		}
		d, err := time.ParseDuration(val)
		if err != nil || d < lo || d > hi {
			_, _ = fmt.Fprintf(p.w, "  (enter a duration such as 1.5s between %s and %s)\n", lo, hi)
			continue
		}
		return d
	}
}

// Select presents a numbered list and returns the zero-based index of the
// chosen option. An empty answer picks defaultIdx.
func (p *Prompter) Select(label string, options []string, defaultIdx int) (int, error) {
	if len(options) == 0 {
		return -1, fmt.Errorf("no options to select from")
	}

	_, _ = fmt.Fprintf(p.w, "  %s:\n", label)
	for i, opt := range options {
		_, _ = fmt.Fprintf(p.w, "    %d) %s\n", i+1, opt)
	}

	for {
		_, _ = fmt.Fprintf(p.w, "  Choice [%d]: ", defaultIdx+1)

		val, ok := p.readLine()
		if !ok {
			return -1, fmt.Errorf("no input")
		}
		if val == "" {
			return defaultIdx, nil
		}
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 || n > len(options) {
			_, _ = fmt.Fprintf(p.w, "  (enter a number between 1 and %d)\n", len(options))
			continue
		}
		return n - 1, nil
	}
}
