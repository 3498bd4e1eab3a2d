package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/settingsd/settingsd/internal/daemon"
	"github.com/settingsd/settingsd/internal/db/models"
	"github.com/settingsd/settingsd/internal/engine"
	"github.com/settingsd/settingsd/internal/scope"
)

var (
	ownerType string
	ownerID   string

	listPattern string
)

func init() { //nolint: gochecknoinits
	for _, cmd := range []*cobra.Command{getCmd, setCmd, forgetCmd, listCmd} {
		cmd.Flags().StringVar(&ownerType, "model-type", "", "Owner model type (empty = global scope)")
		cmd.Flags().StringVar(&ownerID, "model-id", "", "Owner model id")
	}

	listCmd.Flags().StringVar(&listPattern, "pattern", "", "Glob pattern to filter keys")

	rootCmd.AddCommand(getCmd, setCmd, forgetCmd, listCmd)
}

// openEngine builds a store-backed engine for one-shot CLI commands.
func openEngine() (*engine.Engine, error) {
	if err = loadConfig(); err != nil {
		return nil, err
	}

	db, err := daemon.OpenDB(&cfg)
	if err != nil {
		return nil, err
	}

	return daemon.BuildEngine(&cfg, db)
}

// cmdScope derives the addressed scope from the owner flags.
func cmdScope() scope.Scope {
	if ownerType == "" {
		return scope.Global()
	}

	return scope.Owned(ownerType, ownerID)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(out))

	return nil
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read a setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}

		sc := cmdScope()

		found, err := eng.Has(sc, args[0])
		if err != nil {
			return err
		}

		if !found {
			return fmt.Errorf("setting %q not found", args[0])
		}

		value, err := eng.Get(sc, args[0], nil)
		if err != nil {
			return err
		}

		return printJSON(value)
	},
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting value (JSON, or a plain string when not valid JSON)",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}

		var value any
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			value = args[1]
		}

		return eng.Set(cmdScope(), args[0], value)
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <key>",
	Short: "Remove a setting or a nested field of one",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}

		removed, err := eng.Forget(cmdScope(), args[0])
		if err != nil {
			return err
		}

		if !removed {
			return fmt.Errorf("setting %q not found", args[0])
		}

		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List settings, optionally filtered by scope and key pattern",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}

		var sc *scope.Scope
		if ownerType != "" {
			owned := scope.Owned(ownerType, ownerID)
			sc = &owned
		}

		var settings []models.Setting
		if listPattern != "" {
			settings, err = eng.Search(listPattern, sc)
		} else {
			settings, err = eng.All(sc)
		}

		if err != nil {
			return err
		}

		type row struct {
			Key       string          `json:"key"`
			Value     json.RawMessage `json:"value"`
			OwnerType string          `json:"owner_type,omitempty"`
			OwnerID   string          `json:"owner_id,omitempty"`
		}

		rows := make([]row, 0, len(settings))
		for _, s := range settings {
			rows = append(rows, row{
				Key:       s.Key,
				Value:     json.RawMessage(s.Value),
				OwnerType: s.OwnerType,
				OwnerID:   s.OwnerID,
			})
		}

		return printJSON(rows)
	},
}
