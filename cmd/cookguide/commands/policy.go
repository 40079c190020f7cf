package commands

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/cookguide/pkg/assist"
	"github.com/haivivi/cookguide/pkg/dialogue"
	"github.com/haivivi/cookguide/pkg/genx"
	"github.com/haivivi/cookguide/pkg/memlog"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Check, dump and render the prompt policy",
	Long: `Check, dump and render the prompt policy.

A policy file overrides the built-in instructions of states and handlers,
the classifier descriptions of events, and optionally the transition
table. Every field is optional:

  states:
    fixing_problem:
      instruction: Suggest one fix at a time.
      memory_window: 3
  events:
    repeat:
      examples: ["say that again", "pardon?"]
  scene_window: 5

Without a file argument the policy of the session config (or the
built-in policy) is used.

Examples:
  cookguide policy dump > policy.yaml
  cookguide policy check policy.yaml
  cookguide policy prompt --state fixing_problem --event ask_how_to_fix \
      --utterance "it's sticking to the pan" --knowledge ./pasta.json`,
}

var policyCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a policy and its transition table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openPolicyEngine(cmd, args, "")
		if err != nil {
			return err
		}
		reachable := e.table.Reachable()
		names := make([]string, len(reachable))
		for i, s := range reachable {
			names[i] = s.String()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d transitions, reachable states: %s\n",
			len(e.table.Transitions()), strings.Join(names, ", "))
		return nil
	},
}

var policyDumpCmd = &cobra.Command{
	Use:   "dump [file]",
	Short: "Print the complete policy",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openPolicyEngine(cmd, args, "")
		if err != nil {
			return err
		}
		f := e.policy.File()
		if len(f.Transitions) == 0 {
			f.Transitions = e.table.Transitions()
		}
		return output(cmd, f)
	},
}

var (
	flagPromptState     string
	flagPromptEvent     string
	flagPromptUtterance string
	flagPromptKnowledge string
	flagPromptMemory    string
	flagPromptImage     string
	flagPromptScene     bool
)

var policyPromptCmd = &cobra.Command{
	Use:   "prompt [file]",
	Short: "Render the model context a handler would send",
	Long: `Render the model context a handler would send, without calling a model.

--state and --event select the transition; the handler bound to the event
(repeat, control_playback) or else to the state renders its context.
--scene renders the scene analysis instead. --memory reads a memory export
(see 'cookguide memory export').`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPolicyPrompt,
}

func init() {
	policyPromptCmd.Flags().StringVar(&flagPromptState, "state", dialogue.InitialState.String(), "destination state")
	policyPromptCmd.Flags().StringVar(&flagPromptEvent, "event", dialogue.EventAgree.String(), "event")
	policyPromptCmd.Flags().StringVar(&flagPromptUtterance, "utterance", "", "user utterance")
	policyPromptCmd.Flags().StringVar(&flagPromptKnowledge, "knowledge", "", "video knowledge document")
	policyPromptCmd.Flags().StringVar(&flagPromptMemory, "memory", "", "memory export file (local path or s3://)")
	policyPromptCmd.Flags().StringVar(&flagPromptImage, "image", "", "camera image file")
	policyPromptCmd.Flags().BoolVar(&flagPromptScene, "scene", false, "render the scene analysis context")

	policyCmd.AddCommand(policyCheckCmd)
	policyCmd.AddCommand(policyDumpCmd)
	policyCmd.AddCommand(policyPromptCmd)
	rootCmd.AddCommand(policyCmd)
}

// openPolicyEngine builds an engine without models or memory. The policy
// file argument overrides the session config.
func openPolicyEngine(cmd *cobra.Command, args []string, knowledge string) (*engine, error) {
	var policy string
	if len(args) > 0 {
		policy = args[0]
	}
	return openEngine(cmd.Context(), engineOptions{Policy: policy, Knowledge: knowledge})
}

func runPolicyPrompt(cmd *cobra.Command, args []string) error {
	e, err := openPolicyEngine(cmd, args, flagPromptKnowledge)
	if err != nil {
		return err
	}
	state, err := dialogue.ParseState(flagPromptState)
	if err != nil {
		return err
	}
	event, err := dialogue.ParseEvent(flagPromptEvent)
	if err != nil {
		return err
	}

	req := assist.Request{
		Knowledge: e.knowledge,
		Utterance: flagPromptUtterance,
	}
	if flagPromptMemory != "" {
		fs, path, err := e.openLocation(flagPromptMemory)
		if err != nil {
			return err
		}
		entries, err := memlog.Import(cmd.Context(), fs, path)
		if err != nil {
			return err
		}
		req.Memory = memlog.Snapshot(entries)
	}
	if flagPromptImage != "" {
		if req.Image, err = os.ReadFile(flagPromptImage); err != nil {
			return err
		}
		req.ImageType = mime.TypeByExtension(strings.ToLower(filepath.Ext(flagPromptImage)))
	}

	var mctx genx.ModelContext
	if flagPromptScene {
		req.State, req.Event = state, dialogue.EventSceneTick
		mctx, err = e.scene.ModelContext(req)
	} else {
		mctx, err = e.dispatcher.ModelContext(state, event, req)
	}
	if err != nil {
		return err
	}
	text, err := genx.InspectModelContext(mctx)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	return nil
}
