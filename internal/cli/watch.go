package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/njoerd114/medtrack/internal/connectivity"
	syncp "github.com/njoerd114/medtrack/internal/sync"
)

const watchHelp = `Commands (one per line, quote values containing spaces):
  hospitals list | hospitals add --name N --location L
  visits list|show|add|edit|delete|patients ...
  export | stats | status | insight --disease D --findings F
  offline | online   force the connectivity signal (stops automatic detection)
  sync               push pending changes now
  quit
`

func newWatchCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep one session open and read commands from stdin",
		Long: "Hydrate once, then read commands line by line from stdin. Changes are written " +
			"locally at once and pushed after the debounce interval; sync state changes are printed as they happen.\n\n" + watchHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, g)
		},
	}
}

// lockedWriter serializes writes from the command loop and from push
// callbacks running on timer goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func describeStatus(st syncp.Status) string {
	switch {
	case st.Saving:
		return "[sync] saving..."
	case st.RemoteSynced:
		return "[sync] synced"
	default:
		return "[sync] saved locally, not synced"
	}
}

func runWatch(cmd *cobra.Command, g *globals) error {
	out := &lockedWriter{w: cmd.OutOrStdout()}
	errOut := &lockedWriter{w: cmd.ErrOrStderr()}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	s, err := g.openSession(cmd, slog.LevelInfo, func(st syncp.Status) {
		fmt.Fprintln(out, describeStatus(st))
	})
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	stopWatcher := func() {}
	if !g.offline {
		wctx, wcancel := context.WithCancel(ctx)
		stopWatcher = wcancel
		go connectivity.NewInterfaceWatcher(s.monitor, g.interfaces, 0, s.log).Run(wctx)
	}
	unsub := s.monitor.Subscribe(func(online bool) {
		if online {
			fmt.Fprintln(out, "[net] online")
		} else {
			fmt.Fprintln(out, "[net] offline, changes stay on this machine")
		}
	})
	defer unsub()

	g.active = s
	defer func() { g.active = nil }()

	snap := s.records.Snapshot()
	fmt.Fprintf(out, "Loaded %d hospital(s) and %d visit(s) from the %s store. Type 'help' for commands.\n",
		len(snap.Hospitals), len(snap.Visits), s.source)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			args, err := splitArgs(line)
			if err != nil {
				fmt.Fprintf(errOut, "Error: %v\n", err)
				continue
			}
			if len(args) == 0 {
				continue
			}
			switch args[0] {
			case "quit", "exit":
				break loop
			case "help":
				fmt.Fprint(out, watchHelp)
				continue
			case "offline", "online":
				stopWatcher()
				s.monitor.SetOnline(args[0] == "online")
				continue
			case "sync":
				s.flush(ctx, errOut)
				continue
			}
			if err := execLine(g, args, out, errOut); err != nil {
				fmt.Fprintf(errOut, "Error: %v\n", err)
			}
		}
	}

	s.flush(cmd.Context(), errOut)
	return nil
}

// execLine runs one command line against the active session.
func execLine(g *globals, args []string, out, errOut io.Writer) error {
	shell := &cobra.Command{
		Use:           "medtrack",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	shell.AddCommand(
		newHospitalsCmd(g),
		newVisitsCmd(g),
		newExportCmd(g),
		newInsightCmd(g),
		newStatsCmd(g),
		newStatusCmd(g),
	)
	shell.SetOut(out)
	shell.SetErr(errOut)
	shell.SetArgs(args)

	c, _, err := shell.Find(args)
	if err != nil || c == shell {
		return fmt.Errorf("unknown command %q, type 'help'", args[0])
	}
	return shell.Execute()
}

// splitArgs splits a command line into words. Single and double quotes group
// words; a backslash escapes the next character outside single quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, nil
}
