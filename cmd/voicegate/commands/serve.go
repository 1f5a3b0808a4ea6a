package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicegate/pkg/voicews"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline over websocket",
	Long: `Accept websocket clients on /ws. Each client streams int16 PCM and
receives the processed audio plus activity events; enrolled profiles are
shared by all clients. See package voicews for the message protocol.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if serveAddr == "" {
			serveAddr = cfg.Server.Addr
		}
		ctx := cmd.Context()

		p, err := openProfiles(ctx, cfg)
		if err != nil {
			return err
		}
		defer p.Close()
		log.Info("profiles loaded", "backend", cfg.Profiles.Backend, "count", p.Len(), "stale", len(p.Stale()))

		srv := voicews.NewServer(p.Store,
			voicews.WithLogger(log),
			voicews.WithTickInterval(cfg.Verify.Tick),
			voicews.WithProcessorOptions(processorOptions(cfg, p)...),
			voicews.WithSessionOptions(sessionOptions(cfg)...),
		)
		err = srv.ListenAndServe(ctx, serveAddr)
		if errors.Is(err, context.Canceled) {
			log.Info("server stopped")
			return nil
		}
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr from config)")
	rootCmd.AddCommand(serveCmd)
}
