package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"support-rag/internal/faq"
	"support-rag/internal/httpapi"
)

func NewServeCmd(st *state) *cobra.Command {
	var addr string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP chat API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := st.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("watch") {
				cfg.Corpus.Watch = watch
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.chatService(ctx)
			if err != nil {
				return err
			}

			if cfg.Corpus.Watch {
				w := faq.NewWatcher(cfg.Corpus.FAQFile, 0, func(ctx context.Context) error {
					sum, err := a.importFile(ctx, cfg.Corpus.FAQFile)
					if err != nil {
						return err
					}
					log.Info().Int("imported", sum.Imported).Int("errors", sum.Errors).Int("corpus", a.corpus.Len()).Msg("FAQ corpus refreshed")
					return nil
				})
				go func() {
					if err := w.Run(ctx); err != nil {
						log.Error().Err(err).Msg("FAQ watcher stopped")
					}
				}()
			}

			return httpapi.NewServer(svc, cfg.Server.Addr, cfg.Server.MaxMessageLength).Start(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-import the FAQ file when it changes")
	return cmd
}
