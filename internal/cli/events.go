package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/store"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Stream string
	After  int64
	Limit  int
	Type   string
}

// LogEntry is one event of the events command's output.
type LogEntry struct {
	Seq           int64          `json:"seq"`
	Stream        string         `json:"stream"`
	Version       int64          `json:"version"`
	Type          string         `json:"type"`
	ID            string         `json:"id"`
	User          string         `json:"user,omitempty"`
	Command       string         `json:"command,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// EventsResult holds the events command's output.
type EventsResult struct {
	Events []LogEntry  `json:"events"`
	Stats  EventsStats `json:"stats"`
}

// EventsStats summarizes the listed events.
type EventsStats struct {
	Total    int            `json:"total"`
	Commands int            `json:"commands"`
	ByType   map[string]int `json:"by_type"`
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List the event log",
		Long: `List persisted events in sequence order, or one stream's events in
version order when --stream is given.

Events that carry the command which caused them are marked with the
command type; rebase and partial publish replay exactly those commands.

Examples:
  contentgraph events --db ./content.db
  contentgraph events --db ./content.db --stream Workspace:live
  contentgraph events --db ./content.db --after 120 --limit 20 --format json
  contentgraph events --db ./content.db --type NodePropertiesWereSet -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Stream, "stream", "", "only list events of this stream")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only list events after this sequence number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 = all)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "only list events of this type")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Env.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var stored []store.StoredEvent
	if opts.Stream != "" {
		stored, err = st.LoadStream(ctx, opts.Stream, 0)
	} else {
		stored, err = st.LoadAll(ctx, opts.After, opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load events", err)
	}

	entries, err := buildLog(stored, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to decode events", err)
	}
	result := EventsResult{
		Events: entries,
		Stats:  EventsStats{Total: len(entries), ByType: make(map[string]int)},
	}
	for _, e := range entries {
		result.Stats.ByType[e.Type]++
		if e.Command != "" {
			result.Stats.Commands++
		}
	}

	if formatter.IsJSON() {
		return formatter.JSON(result)
	}
	outputEventsText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

// buildLog decodes stored events into log entries, applying the filters
// the store query could not.
func buildLog(stored []store.StoredEvent, opts *EventsOptions) ([]LogEntry, error) {
	entries := make([]LogEntry, 0, len(stored))
	for _, se := range stored {
		if opts.Stream != "" && se.SequenceNumber <= opts.After {
			continue
		}
		if opts.Type != "" && se.Type != opts.Type {
			continue
		}
		meta, err := event.DecodeMetadata(se.Metadata)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", se.SequenceNumber, err)
		}
		var payload map[string]any
		if len(se.Payload) > 0 {
			if err := json.Unmarshal(se.Payload, &payload); err != nil {
				return nil, fmt.Errorf("event %d: decode payload: %w", se.SequenceNumber, err)
			}
		}
		entries = append(entries, LogEntry{
			Seq:           se.SequenceNumber,
			Stream:        se.Stream,
			Version:       se.Version,
			Type:          se.Type,
			ID:            se.ID,
			User:          string(meta.InitiatingUserID),
			Command:       meta.CommandType,
			CorrelationID: se.CorrelationID,
			Payload:       payload,
		})
		if opts.Stream != "" && opts.Limit > 0 && len(entries) == opts.Limit {
			break
		}
	}
	return entries, nil
}

func outputEventsText(w io.Writer, result EventsResult, verbose bool) {
	if len(result.Events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}
	for _, e := range result.Events {
		fmt.Fprintf(w, "[%d] %s@%d %s", e.Seq, e.Stream, e.Version, e.Type)
		if e.Command != "" {
			fmt.Fprintf(w, " <- %s", e.Command)
		}
		fmt.Fprintln(w)
		if verbose {
			fmt.Fprintf(w, "       ID: %s  User: %s\n", truncateID(e.ID), e.User)
			if len(e.Payload) > 0 {
				fmt.Fprintf(w, "       Payload: %s\n", formatArgs(e.Payload))
			}
		}
	}

	types := make([]string, 0, len(result.Stats.ByType))
	for t := range result.Stats.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	fmt.Fprintf(w, "\n%d event(s), %d with recorded command\n", result.Stats.Total, result.Stats.Commands)
	for _, t := range types {
		fmt.Fprintf(w, "  %-45s %d\n", t, result.Stats.ByType[t])
	}
}

// formatArgs renders a map with sorted keys.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID shortens long ids for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
