package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ritzau/forcegraph/pkg/logging"
	"github.com/ritzau/forcegraph/pkg/pubsub"
	"github.com/ritzau/forcegraph/pkg/web"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live visualizer over HTTP",
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 8080, "port for the web server")
	cmd.Flags().Int("fps", 60, "frames per second")
	cmd.Flags().String("source", "", "open a visualizer on start: dependencies, depfiles or file")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	source, _ := cmd.Flags().GetString("source")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := web.NewServer(web.Options{Config: cfg})
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Serve(ctx, fmt.Sprintf(":%d", cfg.Port))
	})
	g.Go(func() error {
		return logStatus(ctx, srv.Publisher())
	})

	if source != "" {
		st, err := srv.Open(web.OpenRequest{Source: source})
		if err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("opening %s: %w", source, err)
		}
		logging.Info("opened startup visualizer", "instance", st.Instance, "source", source)
	}

	logging.Info("visualizer ready", "url", fmt.Sprintf("http://localhost:%d", cfg.Port))
	return g.Wait()
}

// logStatus mirrors status events on the console until ctx ends
func logStatus(ctx context.Context, pub pubsub.Publisher) error {
	sub, err := pub.Subscribe(ctx, pubsub.TopicStatus)
	if err != nil {
		return fmt.Errorf("subscribing to status: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			var st pubsub.Status
			if err := json.Unmarshal(ev.Data, &st); err != nil {
				logging.Debug("unreadable status event", "error", err)
				continue
			}
			if st.Error != "" {
				logging.Warn("feed error", "instance", st.Instance, "source", st.Source, "error", st.Error)
				continue
			}
			logging.Debug("visualizer state", "instance", st.Instance, "state", st.State)
		}
	}
}
