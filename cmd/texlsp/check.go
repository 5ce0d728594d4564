package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"texlsp/internal/cache"
	"texlsp/internal/config"
	"texlsp/internal/document"
	"texlsp/internal/feature"
	"texlsp/internal/pipeline"
	"texlsp/internal/scanner"
	"texlsp/internal/scheduler"
	"texlsp/internal/workspace"
)

// errFindings makes check exit with status 1.
var errFindings = errors.New("errors found")

var (
	checkConfig  string
	checkTimeout time.Duration

	checkCmd = &cobra.Command{
		Use:   "check [path...]",
		Short: "Print the diagnostics of files and directories",
		Long: `Analyze the given files, or every TeX file below the given
directories, together with the files they include, and print the
diagnostics an editor would show.

Exits with status 1 if any diagnostic is an error.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging()
			cfg := config.Default()
			if checkConfig != "" {
				var err error
				if cfg, err = config.LoadFile(checkConfig); err != nil {
					return err
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()
			errs, err := runCheck(ctx, cmd.OutOrStdout(), cfg, args)
			if err != nil {
				return err
			}
			if errs > 0 {
				return errFindings
			}
			return nil
		},
	}
)

func init() {
	checkCmd.Flags().StringVar(&checkConfig, "config", "", "JSON or YAML configuration file")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", time.Minute, "give up after this long")
}

// runCheck loads paths into a fresh workspace, prints every diagnostic to
// out and returns the number of errors.
func runCheck(ctx context.Context, out io.Writer, cfg config.Config, paths []string) (int, error) {
	ws := workspace.New()
	c := cache.New(ws)
	sched := scheduler.New(cfg.Workers)
	sched.Start(ctx)
	defer sched.Stop()
	p := pipeline.New(pipeline.Config{
		Workspace: ws,
		Cache:     c,
		Scheduler: sched,
		FS:        pipeline.OSFileSystem{},
		Roots:     cfg.RootDirectories,
	})

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return 0, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return 0, err
		}
		if info.IsDir() {
			if _, err := scanner.Scan(ctx, abs, cfg.Workers, p); err != nil {
				return 0, err
			}
			continue
		}
		if err := p.Load(document.URIFromPath(abs)); err != nil {
			return 0, err
		}
	}
	if err := p.Flush(ctx); err != nil {
		return 0, err
	}

	engine := feature.New(ws, c, nil)
	all := engine.AllDiagnostics()
	uris := make([]string, 0, len(all))
	for uri := range all {
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	errs := 0
	for _, uri := range uris {
		name := uri
		if path, err := document.PathFromURI(uri); err == nil {
			name = path
		}
		for _, d := range all[uri] {
			if d.Severity == document.SeverityError {
				errs++
			}
			fmt.Fprintf(out, "%s:%d:%d: %s: %s [%d]\n",
				name, d.Range.Start.Line+1, d.Range.Start.Character+1,
				severityName(d.Severity), d.Message, d.Code)
		}
	}
	return errs, nil
}

func severityName(s document.Severity) string {
	switch s {
	case document.SeverityError:
		return "error"
	case document.SeverityWarning:
		return "warning"
	case document.SeverityInformation:
		return "info"
	}
	return "hint"
}
