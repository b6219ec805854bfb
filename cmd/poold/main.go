package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poold/internal/app"
	"poold/internal/domain"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "poold:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "poold",
		Short:         "Resource pool daemon with capability-aware load balancing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newValidateCmd(),
		newStatusCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pool daemon until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return app.New(logger).Serve(ctx, app.ServeConfig{
				ConfigPath: configPath,
			})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "poold.yaml", "path to pool catalog file")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the pool catalog and print its normalized form",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Development logger: validation warnings (missing env vars,
			// inferred defaults) belong on the operator's terminal.
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return app.New(logger).Validate(cmd.Context(), app.ValidateConfig{
				ConfigPath: configPath,
			})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "poold.yaml", "path to pool catalog file")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var addr string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pool state from a running daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pools, err := fetchPoolStatus(cmd.Context(), addr, timeout)
			if err != nil {
				return err
			}
			return printPoolStatus(cmd.OutOrStdout(), pools)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9090", "observability address of the daemon")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

func fetchPoolStatus(ctx context.Context, addr string, timeout time.Duration) ([]domain.PoolInfo, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, fmt.Sprintf("http://%s/pools", addr), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query daemon at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon returned %s", resp.Status)
	}
	var pools []domain.PoolInfo
	if err := json.NewDecoder(resp.Body).Decode(&pools); err != nil {
		return nil, fmt.Errorf("decode pool status: %w", err)
	}
	return pools, nil
}

func printPoolStatus(w io.Writer, pools []domain.PoolInfo) error {
	if len(pools) == 0 {
		_, err := fmt.Fprintln(w, "no pools registered")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tALLOCATED\tAVAILABLE\tQUEUED\tCAPABILITIES")
	for _, p := range pools {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d\t%d\t%s\n",
			p.Name,
			p.State,
			p.Stats.Allocated,
			p.Stats.Max,
			p.Stats.Available,
			p.Stats.Queued,
			strings.Join(p.Capabilities, ","),
		)
	}
	return tw.Flush()
}
