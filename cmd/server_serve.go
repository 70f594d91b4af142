package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/ui"
	"github.com/PolarWolf314/kaitiaki/internal/workflows"

	"github.com/spf13/cobra"
)

func init() {
	ServerCmd.AddCommand(serverServeCmd)
}

var serverServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting server serve command")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err := workflows.Serve(ctx, workflows.ServeOptions{
			ConfigPath: serverConfigPath,
			Logger:     Logger,
			Ready: func(addr string) {
				fmt.Println(ui.Success.Sprint("✓") + " Listening on " + ui.Path.Sprint(addr))
			},
		})
		if err != nil {
			if errors.Is(err, kerrors.ErrServerKeyMissing) {
				fmt.Println(ui.Error.Sprint("✗") + " Server key pair could not be loaded\n" +
					ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("kaitiaki server keygen") + " and set " + ui.Code.Sprint("identity.private_key_path"))
			}
			return Logger.ErrorfAndReturn("server stopped: %v", err)
		}
		fmt.Println(ui.Info.Sprint("→") + " Server stopped")
		return nil
	},
}
