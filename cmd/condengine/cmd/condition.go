package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/solatis/condengine/internal/codec"
	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/core/db"
	"github.com/solatis/condengine/internal/query"
	"github.com/solatis/condengine/internal/types"
)

var (
	queryItemType string
	queryDialect  string
	countItemType string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <condition.json>",
	Short: "Resolve a condition tree and show the event types it can match",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, c, err := loadCondition(cmd, args[0])
		if err != nil {
			return err
		}
		defer rt.Close()

		resolved := rt.resolver.ResolveConditionType(c, "cli")
		tw := newTable(cmd.OutOrStdout(), "Field", "Value")
		tw.AppendRow([]any{"resolved", resolved})
		tw.AppendRow([]any{"condition types", joinOrDash(conditions.CollectTypeIDs(c))})
		tw.AppendRow([]any{"event types", joinOrDash(rt.resolver.EventTypeIDs(c))})
		tw.AppendRow([]any{"unresolved", joinOrDash(rt.resolver.Unresolved().IDs())})
		tw.Render()
		return nil
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval <condition.json> <items.json>",
	Short: "Evaluate a condition against items in memory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, c, err := loadCondition(cmd, args[0])
		if err != nil {
			return err
		}
		defer rt.Close()
		if !rt.resolver.ResolveConditionType(c, "cli") {
			return fmt.Errorf("%s: %w", args[0], types.ErrUnresolvedCondition)
		}

		data, err := readInput(cmd, args[1])
		if err != nil {
			return err
		}
		items, err := decodeItems(data)
		if err != nil {
			return err
		}

		tw := newTable(cmd.OutOrStdout(), "Item Type", "Item ID", "Matched")
		for _, item := range items {
			tw.AppendRow([]any{item.ItemType(), item.ItemID(), rt.evaluator.Eval(cmd.Context(), c, item)})
		}
		tw.Render()
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <condition.json>",
	Short: "Translate a condition into an index filter and its SQL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, c, err := loadCondition(cmd, args[0])
		if err != nil {
			return err
		}
		defer rt.Close()

		f, err := rt.queries.BuildFilter(cmd.Context(), c)
		if err != nil {
			return err
		}
		body, err := query.MarshalFilter(f)
		if err != nil {
			return err
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, body, "", "  "); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", pretty.Bytes())

		stmt, params, err := db.CompileFilter(queryDialect, f, queryItemType)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s\n", stmt)
		tw := newTable(out, "#", "Argument")
		for i, p := range params {
			tw.AppendRow([]any{strconv.Itoa(i + 1), fmt.Sprint(p)})
		}
		tw.Render()
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count <condition.json>",
	Short: "Count indexed items matching a condition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, c, err := loadCondition(cmd, args[0])
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.requireDatabase(); err != nil {
			return err
		}
		n, err := rt.items.QueryCount(cmd.Context(), c, countItemType)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryItemType, "item-type", types.ItemTypeProfile, "item type the SQL selects")
	queryCmd.Flags().StringVar(&queryDialect, "dialect", "sqlite3", "SQL dialect (sqlite3, postgres)")
	countCmd.Flags().StringVar(&countItemType, "item-type", types.ItemTypeProfile, "item type to count")

	rootCmd.AddCommand(resolveCmd, evalCmd, queryCmd, countCmd)
}

func loadCondition(cmd *cobra.Command, path string) (*runtime, *types.Condition, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, nil, err
	}
	c, err := codec.UnmarshalCondition(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return rt, c, nil
}

// decodeItems accepts a single item object or an array of items.
func decodeItems(data []byte) ([]types.Item, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		item, err := codec.UnmarshalItem(trimmed)
		if err != nil {
			return nil, err
		}
		return []types.Item{item}, nil
	}
	return codec.UnmarshalItems(data)
}
