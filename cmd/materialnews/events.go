package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// eventRecord mirrors otel.Event for decoding, so that logs written by
// older builds still read.
type eventRecord struct {
	Time    time.Time      `json:"t"`
	Level   string         `json:"level"`
	Kind    string         `json:"kind"`
	Comp    string         `json:"comp"`
	RunID   string         `json:"run_id"`
	EventID string         `json:"event_id"`
	Source  string         `json:"source"`
	URL     string         `json:"url"`
	DurMs   float64        `json:"dur_ms"`
	Count   int            `json:"count"`
	Err     string         `json:"err"`
	Msg     string         `json:"msg"`
	Extra   map[string]any `json:"extra"`
}

// levelRank orders levels for filtering; higher is more severe.
func levelRank(level string) int {
	switch level {
	case "info":
		return 1
	case "warn":
		return 2
	case "error":
		return 3
	default:
		return 0
	}
}

type eventFilter struct {
	kind  string
	level string
	comp  string
	run   string
}

func (f eventFilter) match(ev eventRecord) bool {
	if f.kind != "" && !strings.HasPrefix(ev.Kind, f.kind) {
		return false
	}
	if f.level != "" && levelRank(ev.Level) < levelRank(f.level) {
		return false
	}
	if f.comp != "" && ev.Comp != f.comp {
		return false
	}
	if f.run != "" && !strings.HasPrefix(ev.RunID, f.run) {
		return false
	}
	return true
}

func newEventsCmd(g *globals) *cobra.Command {
	var (
		filter  eventFilter
		tail    int
		follow  bool
		rawJSON bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "View the JSONL run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.cfg.EventLog
			if path == "" {
				return fmt.Errorf("event_log is not configured")
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("%w (run the pipeline first to generate events)", err)
			}
			defer f.Close()

			out := cmd.OutOrStdout()
			show := func(ev eventRecord, raw []byte) {
				if rawJSON {
					fmt.Fprintln(out, string(raw))
					return
				}
				fmt.Fprintln(out, formatRecord(ev))
			}
			for _, l := range readTailLines(f, tail, filter.match) {
				show(l.ev, l.raw)
			}
			if !follow {
				return nil
			}

			ctx := cmd.Context()
			reader := bufio.NewReader(f)
			for {
				line, err := reader.ReadBytes('\n')
				if err == io.EOF {
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(200 * time.Millisecond):
					}
					continue
				}
				if err != nil {
					return err
				}
				line = trimLine(line)
				var ev eventRecord
				if len(line) == 0 || json.Unmarshal(line, &ev) != nil {
					continue
				}
				if filter.match(ev) {
					show(ev, line)
				}
			}
		},
	}
	cmd.Flags().IntVarP(&tail, "tail", "n", 50, "number of recent events to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep reading new events")
	cmd.Flags().StringVar(&filter.kind, "kind", "", "event kind prefix (e.g. fetch)")
	cmd.Flags().StringVar(&filter.level, "level", "", "minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&filter.comp, "comp", "", "component name")
	cmd.Flags().StringVar(&filter.run, "run", "", "run id prefix")
	cmd.Flags().BoolVar(&rawJSON, "json", false, "print raw JSON lines")
	return cmd
}

func formatRecord(ev eventRecord) string {
	lvl := strings.ToUpper(ev.Level)
	if lvl == "" {
		lvl = "?"
	}
	switch ev.Level {
	case "warn":
		lvl = color.YellowString("%-5s", lvl)
	case "error":
		lvl = color.RedString("%-5s", lvl)
	default:
		lvl = fmt.Sprintf("%-5s", lvl)
	}
	parts := []string{fmt.Sprintf("%s %s [%-8s] %-16s", ev.Time.Format("15:04:05.000"), lvl, ev.Comp, ev.Kind)}
	if ev.Msg != "" {
		parts = append(parts, ev.Msg)
	}
	if ev.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(ev.DurMs), ev.DurMs))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.EventID != "" {
		parts = append(parts, "id="+ev.EventID)
	}
	if ev.Source != "" {
		parts = append(parts, "src="+ev.Source)
	}
	if ev.Err != "" {
		parts = append(parts, "err="+ev.Err)
	}
	return strings.Join(parts, " ")
}

type parsedLine struct {
	ev  eventRecord
	raw []byte
}

// readTailLines returns the last n lines of r that match.
func readTailLines(r io.Reader, n int, match func(eventRecord) bool) []parsedLine {
	if n <= 0 {
		return nil
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)

	ring := make([]parsedLine, 0, n)
	for scanner.Scan() {
		raw := scanner.Bytes()
		var ev eventRecord
		if len(raw) == 0 || json.Unmarshal(raw, &ev) != nil || !match(ev) {
			continue
		}
		line := parsedLine{ev: ev, raw: append([]byte(nil), raw...)}
		if len(ring) < n {
			ring = append(ring, line)
		} else {
			copy(ring, ring[1:])
			ring[n-1] = line
		}
	}
	return ring
}

func trimLine(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func durPrecision(ms float64) int {
	if ms >= 100 {
		return 0
	}
	if ms >= 1 {
		return 1
	}
	return 2
}
