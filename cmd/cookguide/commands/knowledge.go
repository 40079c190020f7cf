package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Inspect and query video knowledge documents",
	Long: `Inspect and query video knowledge documents.

A document is a JSON array of video segments, each with its index, its
[start, end] span in milliseconds and the transcript and descriptions of
the clip. Sources are local paths, http(s) URLs or s3://bucket/key objects
(read with the credentials of storage.yaml).

Examples:
  cookguide knowledge inspect ./pasta.json
  cookguide knowledge inspect ./pasta.json --at 42000
  cookguide knowledge query s3://recipes/pasta.json '.[] | select(.index > 2) | .procedure_description'`,
}

var flagKnowledgeAt int64

var knowledgeInspectCmd = &cobra.Command{
	Use:   "inspect <source>",
	Short: "Validate a document and print its segments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd.Context(), engineOptions{Knowledge: args[0]})
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("at") {
			return output(cmd, e.knowledge.Segments())
		}
		seg, ok := e.knowledge.SegmentAt(flagKnowledgeAt)
		if !ok {
			return fmt.Errorf("no segment at %dms", flagKnowledgeAt)
		}
		return output(cmd, seg)
	},
}

var knowledgeQueryCmd = &cobra.Command{
	Use:   "query <source> <jq-expression>",
	Short: "Run a jq expression over the segments",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd.Context(), engineOptions{Knowledge: args[0]})
		if err != nil {
			return err
		}
		results, err := e.knowledge.Query(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		return outputResults(cmd, results)
	},
}

// outputResults prints a single jq result as is and several as a list.
func outputResults(cmd *cobra.Command, results []any) error {
	if len(results) == 1 {
		return output(cmd, results[0])
	}
	if results == nil {
		results = []any{}
	}
	return output(cmd, results)
}

func init() {
	knowledgeInspectCmd.Flags().Int64Var(&flagKnowledgeAt, "at", 0, "print only the segment playing at this time (ms)")

	knowledgeCmd.AddCommand(knowledgeInspectCmd)
	knowledgeCmd.AddCommand(knowledgeQueryCmd)
	rootCmd.AddCommand(knowledgeCmd)
}
