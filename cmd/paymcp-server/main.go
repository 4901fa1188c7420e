// Command paymcp-server runs an MCP server whose priced tools are gated by a
// payment provider.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "paymcp-server",
		Short:   "MCP server with payment-gated tools",
		Version: Version,
	}
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
