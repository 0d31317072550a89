package roles

import (
	"context"
	"fmt"
	"strings"
	"time"

	"presence/internal/social"
	"presence/internal/tools"
)

// timeLayouts are accepted for the history_read time arguments.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// registerHistoryTools wires the read-only lookups shared by every role.
func registerHistoryTools(reg *tools.Registry, target social.Target, deps Deps) {
	reg.MustRegister(&tools.Tool{
		Name:        "history_read",
		Description: "Search the raw chat history of the current chat for messages containing a query within a time window.",
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			start, err := timeArg(args, "start_time")
			if err != nil {
				return "", err
			}
			end, err := timeArg(args, "end_time")
			if err != nil {
				return "", err
			}
			msgs, err := deps.History.Search(target.ID, query, start, end)
			if err != nil {
				return "", err
			}
			if len(msgs) == 0 {
				return "(no matching messages)", nil
			}
			var b strings.Builder
			for _, m := range msgs {
				fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp.Format("2006-01-02 15:04"), m.SenderName, m.Content)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
		Schema: tools.ToolSchema{
			Required: []string{"query", "start_time"},
			Properties: map[string]tools.Property{
				"query":      {Type: "string", Description: "Text to search for."},
				"start_time": {Type: "string", Description: "Window start, e.g. 2026-08-29 or 2026-08-29 14:00."},
				"end_time":   {Type: "string", Description: "Window end. Defaults to now."},
			},
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "daily_read",
		Description: "Read the activity digest for one day across all chats.",
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			date, _ := args["date"].(string)
			if date == "" {
				date = time.Now().UTC().Format("2006-01-02")
			}
			return deps.History.DailyDigest(date)
		},
		Schema: tools.ToolSchema{
			Properties: map[string]tools.Property{
				"date": {Type: "string", Description: "Day to read, formatted 2006-01-02. Defaults to today."},
			},
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "daily_list",
		Description: "List the days that have any recorded chat activity.",
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			days, err := deps.History.DailyList()
			if err != nil {
				return "", err
			}
			if len(days) == 0 {
				return "(no recorded activity)", nil
			}
			return strings.Join(days, "\n"), nil
		},
		Schema: tools.ToolSchema{Properties: map[string]tools.Property{}},
	})
}

// timeArg parses an optional time argument. A missing or empty argument
// yields the zero time.
func timeArg(args map[string]any, key string) (time.Time, error) {
	raw, _ := args[key].(string)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q for %s", raw, key)
}

// intArg extracts an integer argument, tolerating the float64 values JSON
// decoding produces.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// stringSliceArg extracts a string array argument.
func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		// A single string is accepted as a one-element list.
		if s, sok := args[key].(string); sok && s != "" {
			return []string{s}
		}
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
