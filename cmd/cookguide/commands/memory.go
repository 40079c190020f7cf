package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/haivivi/cookguide/pkg/memlog"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Show, export and clear persisted session memory",
	Long: `Show, export and clear the memory log of a session.

Memory is read from the backend of session.yaml (memory, badger or
redis). With the in-memory backend nothing outlives a process, so these
commands are meant for badger and redis.

Examples:
  cookguide memory show --session pasta-night
  cookguide memory show --session pasta-night --jq '[.[] | select(.type == "conversation")] | length'
  cookguide memory export --session pasta-night --to ./pasta-night.json --force
  cookguide memory export --session pasta-night --to s3://cookguide/exports/pasta-night.json
  cookguide memory clear --session pasta-night`,
}

var (
	flagMemorySession string
	flagMemoryJQ      string
	flagMemoryTo      string
	flagMemoryForce   bool
)

// restoreMemory opens the backend and loads the log of --session.
func restoreMemory(cmd *cobra.Command) (*engine, *memlog.Log, error) {
	if flagMemorySession == "" {
		return nil, nil, errors.New("flag --session is required")
	}
	e, err := openEngine(cmd.Context(), engineOptions{Store: true})
	if err != nil {
		return nil, nil, err
	}
	log := e.memory(flagMemorySession)
	if _, err := log.Restore(cmd.Context()); err != nil {
		e.Close()
		return nil, nil, err
	}
	return e, log, nil
}

var memoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the memory of a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, log, err := restoreMemory(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		snap := log.Snapshot()
		if flagMemoryJQ == "" {
			return output(cmd, []memlog.Entry(snap))
		}
		results, err := queryJSON(cmd.Context(), flagMemoryJQ, []memlog.Entry(snap))
		if err != nil {
			return err
		}
		return outputResults(cmd, results)
	},
}

var memoryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the memory of a session as JSON to a file or S3",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagMemoryTo == "" {
			return errors.New("flag --to is required")
		}
		e, log, err := restoreMemory(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		fs, path, err := e.openLocation(flagMemoryTo)
		if err != nil {
			return err
		}
		snap := log.Snapshot()
		if err := memlog.Export(cmd.Context(), fs, path, snap, flagMemoryForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries of %s to %s\n", len(snap), flagMemorySession, flagMemoryTo)
		return nil
	},
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the memory of a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, log, err := restoreMemory(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		n := log.Len()
		if err := log.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries of %s\n", n, flagMemorySession)
		return nil
	},
}

// queryJSON runs a jq expression over v in its JSON form.
func queryJSON(ctx context.Context, expr string, v any) ([]any, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var input any
	if err := json.Unmarshal(b, &input); err != nil {
		return nil, err
	}
	var out []any
	it := q.RunWithContext(ctx, input)
	for {
		r, ok := it.Next()
		if !ok {
			return out, nil
		}
		if err, ok := r.(error); ok {
			return nil, fmt.Errorf("jq: %w", err)
		}
		out = append(out, r)
	}
}

func init() {
	for _, c := range []*cobra.Command{memoryShowCmd, memoryExportCmd, memoryClearCmd} {
		c.Flags().StringVar(&flagMemorySession, "session", "", "session id")
	}
	memoryShowCmd.Flags().StringVar(&flagMemoryJQ, "jq", "", "jq expression over the entries")
	memoryExportCmd.Flags().StringVar(&flagMemoryTo, "to", "", "destination: local path or s3://bucket/key")
	memoryExportCmd.Flags().BoolVar(&flagMemoryForce, "force", false, "replace an existing export")

	memoryCmd.AddCommand(memoryShowCmd)
	memoryCmd.AddCommand(memoryExportCmd)
	memoryCmd.AddCommand(memoryClearCmd)
	rootCmd.AddCommand(memoryCmd)
}
