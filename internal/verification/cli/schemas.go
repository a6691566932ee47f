package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docverify/internal/verification/domain/document"
)

func SchemasCmd() *cobra.Command {
	var showPrompts bool
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "List supported document types and their required fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := document.NewRegistry()
			out := cmd.OutOrStdout()
			for _, t := range registry.Types() {
				fmt.Fprintf(out, "%s\t%s\n", t, strings.Join(registry.RequiredFields(t), ", "))
				if showPrompts {
					prompt, _ := registry.ExtractionPrompt(t)
					for _, line := range strings.Split(prompt, "\n") {
						fmt.Fprintf(out, "    %s\n", line)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showPrompts, "prompts", false, "Also print each extraction instruction")
	return cmd
}
