package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/condengine/internal/codec"
	"github.com/solatis/condengine/internal/rules"
	"github.com/solatis/condengine/internal/types"
)

var rulesCmd = &cobra.Command{
	Use:   "rules <rules> <events.json>",
	Short: "Match events against rules",
	Long: `Loads rule definitions from a JSON file or a directory of them, compiles
them against the deployed types and lists the rules each event triggers
in priority order.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, err := loadRules(args[0])
		if err != nil {
			return err
		}
		data, err := readInput(cmd, args[1])
		if err != nil {
			return err
		}
		items, err := decodeItems(data)
		if err != nil {
			return err
		}

		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		engine := rules.NewEngine(rt.evaluator,
			rules.WithLogger(logger),
			rules.WithWorkers(cfg.RefreshWorkers))
		if _, err := engine.Refresh(cmd.Context(), defs); err != nil {
			return err
		}
		if invalid := engine.Invalid(); len(invalid) > 0 {
			logger.Warn("rules disabled", "rules", invalid)
		}

		tw := newTable(cmd.OutOrStdout(), "Event", "Event Type", "Rule", "Actions")
		for _, item := range items {
			ev, ok := item.(*types.Event)
			if !ok {
				logger.Warn("skipping non-event item", "item_type", item.ItemType(), "item_id", item.ItemID())
				continue
			}
			for _, m := range engine.MatchingRules(cmd.Context(), ev) {
				tw.AppendRow([]any{ev.ID, ev.EventType, m.RuleID, actionIDs(m.Actions)})
			}
		}
		tw.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}

// loadRules reads one rule file or every *.json rule below a directory.
func loadRules(path string) ([]*types.Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		r, err := readRule(path)
		if err != nil {
			return nil, err
		}
		return []*types.Rule{r}, nil
	}

	var out []*types.Rule
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".json") {
			return nil
		}
		r, err := readRule(p)
		if err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

func readRule(path string) (*types.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := codec.UnmarshalRule(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func actionIDs(actions []*types.Action) string {
	ids := make([]string, 0, len(actions))
	for _, a := range actions {
		ids = append(ids, a.TypeID)
	}
	return joinOrDash(ids)
}
