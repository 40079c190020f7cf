// Package cli holds the terminal helpers of the cookguide command:
// request file loading (YAML/JSON), output formatting, local data paths
// and the lipgloss frame the chat command prints its transcript in.
//
//	var pf assist.PolicyFile
//	if err := cli.LoadRequest("policy.yaml", &pf); err != nil {
//	    return err
//	}
//	cli.Output(pf, cli.OutputOptions{Format: cli.FormatJSON})
package cli
