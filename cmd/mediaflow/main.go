// mediaflow runs workflow files from the command line.
//
// Usage:
//
//	mediaflow run flow.json               # import and execute a workflow
//	mediaflow run --config cfg.yaml f.json
//	mediaflow list                        # list saved workflows
//	mediaflow export NAME                 # print a saved workflow as JSON
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	mediaflow "github.com/viceroymiami/chatgpt-media-flow"
	"github.com/viceroymiami/chatgpt-media-flow/config"
	"github.com/viceroymiami/chatgpt-media-flow/persist"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runCmd(args)
	case "list":
		err = listCmd(args)
	case "export":
		err = exportCmd(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mediaflow <run|list|export> [flags] [args]")
}

func newEditor(configPath string) (*mediaflow.Editor, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return mediaflow.New(cfg, mediaflow.WithLogger(logger))
}

func buildLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("bad log level %q: %w", level, err)
		}
		zcfg.Level = lvl
	}
	return zcfg.Build()
}

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("run expects exactly one flow file")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	ed, err := newEditor(*configPath)
	if err != nil {
		return err
	}
	defer ed.Close()

	if err := ed.Import(data); err != nil {
		return fmt.Errorf("import %s: %w", fs.Arg(0), err)
	}
	if err := ed.ExecuteFlow(context.Background()); err != nil {
		return err
	}

	for _, entry := range ed.History().Entries() {
		fmt.Printf("%s  %s\n", entry.Model, entry.Prompt)
		for _, out := range entry.Outputs {
			fmt.Printf("  %s\n", out)
		}
	}
	for _, rec := range ed.Errors().Records() {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", rec.Type, rec.Message)
	}
	return nil
}

func listCmd(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	fs.Parse(args)

	ed, err := newEditor(*configPath)
	if err != nil {
		return err
	}
	defer ed.Close()

	for _, w := range ed.Manager().SavedWorkflows(context.Background()) {
		fmt.Printf("%-30s  %d nodes  %d edges  saved %s\n", w.Name, w.NodeCount, w.EdgeCount, w.LastSaved)
	}
	return nil
}

func exportCmd(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("export expects a workflow name")
	}

	ed, err := newEditor(*configPath)
	if err != nil {
		return err
	}
	defer ed.Close()

	ctx := context.Background()
	for _, w := range ed.Manager().SavedWorkflows(ctx) {
		if w.Name == fs.Arg(0) || w.Key == persist.SnapshotKey(fs.Arg(0)) {
			ed.Manager().Load(w.Snapshot)
			out, err := ed.Export()
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}
	}
	return fmt.Errorf("no saved workflow named %q", fs.Arg(0))
}
