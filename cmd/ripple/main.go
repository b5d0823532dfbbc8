package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╦═╗┬┌─┐┌─┐┬  ┌─┐
  ╠╦╝│├─┘├─┘│  ├┤
  ╩╚═┴┴  ┴  ┴─┘└─┘
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "ripple",
		Short: "Reactive state toolkit for Go",
		Long: `Ripple is a reactive state propagation library for Go.

Atoms hold values, derived atoms track the cells they read
automatically, and effects run side effects whenever a dependency
changes. Async sources suspend instead of blocking. This CLI ships
the supporting tooling:

  • bench: propagation, batching and resolution benchmarks
  • serve: demo graph behind the inspection server
  • watch: tail cell events from a running server
  • dump:  print a server's cell table`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add commands
	rootCmd.AddCommand(
		benchCmd(),
		serveCmd(),
		watchCmd(),
		dumpCmd(),
		versionCmd(),
	)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// printBanner prints the Ripple ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
