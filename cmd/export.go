package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewExportCmd(st *state) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a copy of the FAQ corpus or the bolt database",
		Long: `With the chromem corpus backend the FAQ collection is exported, encrypted when corpus.encryption_key is set.
With the bolt database driver a consistent copy of the database file is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), st.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			switch {
			case a.chromem != nil:
				if err := a.chromem.Export(output); err != nil {
					return err
				}
			case a.bolt != nil:
				if output == "" {
					return errors.New("--output is required for bolt backups")
				}
				if err := a.bolt.Backup(output); err != nil {
					return fmt.Errorf("backup: %w", err)
				}
			default:
				return errors.New("export needs corpus.backend chromem or database.driver bolt")
			}
			log.Info().Str("output", output).Msg("Export complete")
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file")
	return cmd
}
