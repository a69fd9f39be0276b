package main

import (
	"fmt"

	"github.com/spf13/cobra"

	appcompliance "github.com/bryanwahyu/automaton-compliance/internal/application/compliance"
)

func newClassifyCmd(flags *tableFlags) *cobra.Command {
	var file, metadata string
	cmd := &cobra.Command{
		Use:   "classify --file doc.txt",
		Short: "Print the disciplines a document is routed to and the features that matched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("'file' flag must be specified")
			}
			doc, err := readDocument(file, metadata, "", 0)
			if err != nil {
				return err
			}
			taxonomy, err := flags.taxonomy()
			if err != nil {
				return err
			}
			cls, err := appcompliance.NewKeywordClassifier(taxonomy, nil).Classify(cmd.Context(), doc)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), cls.Summary())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "extracted document text")
	cmd.Flags().StringVar(&metadata, "metadata", "", "building metadata JSON")
	return cmd
}
