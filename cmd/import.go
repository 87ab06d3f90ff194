package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"support-rag/internal/helper"
	"support-rag/internal/models"
	"support-rag/internal/parser"
)

func NewImportCmd(st *state) *cobra.Command {
	var file string
	var dryRun, reset bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Embed FAQs from a file and store them in the corpus",
		Long: `Parses an FAQ file (json, yaml, md, txt, docx, pptx, pdf, xlsx, xlsm) and upserts every entry by question.
When the file does not exist the built-in sample FAQs are imported instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if file == "" {
				file = st.cfg.Corpus.FAQFile
			}

			entries, err := loadEntries(file)
			if err != nil {
				return err
			}
			if dryRun {
				helper.PrettyPrint(cmd.OutOrStdout(), entries)
				return nil
			}

			a, err := newApp(ctx, st.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if reset {
				if err := a.faqs.DropFAQs(ctx); err != nil {
					return fmt.Errorf("reset corpus: %w", err)
				}
			}

			sum, err := a.importer().Import(ctx, entries)
			if err != nil {
				return err
			}
			helper.PrettyPrint(cmd.OutOrStdout(), sum)
			if sum.Imported == 0 && sum.Errors > 0 {
				return fmt.Errorf("no FAQs imported, %d errors", sum.Errors)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "FAQ file to import (defaults to corpus.faq_file)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and print the entries without embedding or storing them")
	cmd.Flags().BoolVar(&reset, "reset", false, "Remove all stored FAQs before importing")
	return cmd
}

func loadEntries(file string) ([]models.FAQEntry, error) {
	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("file", file).Msg("FAQ file not found, using sample FAQs")
		return models.SampleFAQs, nil
	}
	entries, err := parser.ParseFAQFile(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	log.Info().Str("file", file).Int("faqs", len(entries)).Msg("Parsed FAQ file")
	return entries, nil
}
