package commands

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/haivivi/cookguide/cmd/cookguide/internal/config"
	"github.com/haivivi/cookguide/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage contexts and service configurations.

A context is a named directory holding per-service YAML config files:

  openai.yaml   OpenAI compatible models (reasoning, classifier)
  gemini.yaml   Gemini models (vision)
  session.yaml  timers, memory backend, model patterns, policy
  storage.yaml  S3 bucket for knowledge documents and exports

Examples:
  cookguide config list-contexts
  cookguide config add-context kitchen
  cookguide config use-context kitchen
  cookguide config current-context
  cookguide config set kitchen openai api_key sk-xxx
  cookguide config set kitchen session idle_timeout 90s
  cookguide config get kitchen openai api_key
  cookguide config edit kitchen session`,
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"ls"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		names, err := cfg.ListContexts()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(out, "No contexts configured.")
			fmt.Fprintln(out, "Create one with: cookguide config add-context <name>")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tSERVICES")
		for _, name := range names {
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			services, _ := config.ListServices(cfg.ContextDir(name))
			fmt.Fprintf(w, "%s\t%s\t%s\n", current, name, strings.Join(services, ", "))
		}
		return w.Flush()
	},
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Create a new context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		name := args[0]
		if err := cfg.AddContext(name); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Context %q created.\n", name)
		fmt.Fprintf(out, "Configure services with: cookguide config set %s <service> <key> <value>\n", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context and all its service configs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context %q deleted.\n", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q.\n", args[0])
		return nil
	},
}

var configCurrentContextCmd = &cobra.Command{
	Use:   "current-context",
	Short: "Display the current context name",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No current context set.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CurrentContext)
		return nil
	},
}

// serviceDir validates the names and returns an existing context directory.
func serviceDir(ctxName, service string) (string, error) {
	cfg, err := GetConfig()
	if err != nil {
		return "", err
	}
	if err := config.ValidateContextName(ctxName); err != nil {
		return "", err
	}
	if err := config.ValidateServiceName(service); err != nil {
		return "", err
	}
	dir := cfg.ContextDir(ctxName)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", fmt.Errorf("context %q not found", ctxName)
	}
	return dir, nil
}

var configSetCmd = &cobra.Command{
	Use:   "set <context> <service> <key> <value>",
	Short: "Set a service config value",
	Long: `Set a top-level key in a service's YAML config file.

Examples:
  cookguide config set dev openai api_key sk-xxxx
  cookguide config set dev gemini base_url https://proxy.example.com
  cookguide config set dev session scene_interval 3s
  cookguide config set dev storage bucket recipes`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctxName, service, key, value := args[0], args[1], args[2], args[3]
		dir, err := serviceDir(ctxName, service)
		if err != nil {
			return err
		}

		m, err := config.LoadServiceOr(dir, service, &map[string]any{})
		if err != nil {
			return fmt.Errorf("cannot read existing %s config: %w", service, err)
		}
		// An empty file unmarshals to a nil map.
		if *m == nil {
			*m = map[string]any{}
		}
		(*m)[key] = scalar(value)

		if err := config.SaveService(dir, service, m); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s.%s = %s (context: %s)\n", service, key, displayValue(key, value), ctxName)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <context> <service> <key>",
	Short: "Get a service config value",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctxName, service, key := args[0], args[1], args[2]
		dir, err := serviceDir(ctxName, service)
		if err != nil {
			return err
		}
		m, err := config.LoadService[map[string]any](dir, service)
		if err != nil {
			return err
		}
		if *m == nil {
			return fmt.Errorf("key %q not found in %s config (file is empty)", key, service)
		}
		val, ok := (*m)[key]
		if !ok {
			return fmt.Errorf("key %q not found in %s config", key, service)
		}
		fmt.Fprintln(cmd.OutOrStdout(), displayValue(key, fmt.Sprint(val)))
		return nil
	},
}

// scalar types value as YAML does, so "16" and "true" are not saved as
// strings.
func scalar(value string) any {
	var v any
	if err := yaml.Unmarshal([]byte(value), &v); err != nil || v == nil {
		return value
	}
	switch v.(type) {
	case map[string]any, []any:
		return value
	}
	return v
}

// displayValue masks secrets unless --verbose is set.
func displayValue(key, value string) string {
	if IsVerbose() {
		return value
	}
	switch key {
	case "api_key", "secret_access_key":
		return cli.MaskAPIKey(value)
	}
	return value
}

var configEditCmd = &cobra.Command{
	Use:   "edit <context> <service>",
	Short: "Open a service config in the default editor",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctxName, service := args[0], args[1]
		dir, err := serviceDir(ctxName, service)
		if err != nil {
			return err
		}

		path := config.ServicePath(dir, service)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte("# "+service+" configuration\n"), 0600); err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}
		}

		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}
		c := exec.CommandContext(cmd.Context(), editor, path)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

func init() {
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configCurrentContextCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configEditCmd)

	rootCmd.AddCommand(configCmd)
}
