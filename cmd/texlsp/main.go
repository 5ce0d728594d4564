package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"texlsp/internal/server"
)

// Version will be set during the build process using ldflags
var Version = "(dev) v0.0.0"

var (
	logfile   string
	verbosity int
	tcpAddr   string

	rootCmd = &cobra.Command{
		Use:   "texlsp",
		Short: "A language server for LaTeX and BibTeX",
		Long: `texlsp speaks the Language Server Protocol over stdio and answers
navigation, completion and diagnostics requests for LaTeX projects.`,
		SilenceUsage: true,
		RunE:         serve,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the language server (default)",
		RunE:  serve,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version of the program",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "texlsp version %s\n", Version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logfile, "logfile", "", "path to log file")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log more, repeat for debug output")
	serveCmd.Flags().StringVar(&tcpAddr, "tcp", "", "listen on this address instead of stdio")
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	rootCmd.AddCommand(serveCmd, checkCmd, versionCmd)
}

func configureLogging() {
	var path *string
	if logfile != "" {
		path = &logfile
	}
	// Logger used by glsp. Stdout belongs to the protocol.
	commonlog.Configure(verbosity, path)
}

func serve(cmd *cobra.Command, args []string) error {
	configureLogging()
	s := server.New(server.WithVersion(Version))
	if tcpAddr != "" {
		return s.RunTCP(tcpAddr)
	}
	return s.RunStdio()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
