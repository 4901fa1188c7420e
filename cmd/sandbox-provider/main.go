// Command sandbox-provider emulates a hosted checkout for local development.
// Point the "sandbox" provider at it and pay by opening the returned link.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/paymcp/paymcp-go/logging"
)

func main() {
	var (
		addr      string
		publicURL string
		autoPay   time.Duration
		logLevel  string
	)
	rootCmd := &cobra.Command{
		Use:   "sandbox-provider",
		Short: "Local hosted-checkout emulator for the sandbox payment provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			if publicURL == "" {
				publicURL = "http://localhost" + addr
			}
			logger := logging.New(logging.Config{Level: logLevel, Format: "text"})
			s := newSandbox(publicURL, autoPay)
			e := s.routes()
			logger.Info("sandbox provider listening", "addr", addr, "public_url", publicURL, "auto_pay", autoPay)
			return e.Start(addr)
		},
	}
	rootCmd.Flags().StringVar(&addr, "addr", ":8402", "listen address")
	rootCmd.Flags().StringVar(&publicURL, "public-url", "", "base URL used in payment links")
	rootCmd.Flags().DurationVar(&autoPay, "auto-pay", 0, "mark payments paid automatically after this long (0 disables)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
