package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campusfuel/healthos-engine/internal/rpc"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ProtocolEngine gRPC API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}

			srv := rpc.NewGRPCServer(rpc.NewServer(a.engine, a.logger.Named("rpc")))
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				a.logger.Info("shutting down")
				srv.GracefulStop()
			}()

			a.logger.Info("serving", zap.String("addr", lis.Addr().String()), zap.String("db", a.cfg.Storage.Path))
			fmt.Fprintf(cmd.OutOrStdout(), "%s listening on %s\n", rpc.ServiceName, lis.Addr())
			if err := srv.Serve(lis); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "gRPC bind address (overrides config)")
	return cmd
}
