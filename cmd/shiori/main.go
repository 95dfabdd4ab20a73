package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/mizutanik/shiori/internal/config"
	"github.com/mizutanik/shiori/internal/domain"
	"github.com/mizutanik/shiori/internal/log"
	"github.com/mizutanik/shiori/internal/provider"
	"github.com/mizutanik/shiori/internal/service"
	"github.com/mizutanik/shiori/internal/store"
	"github.com/mizutanik/shiori/internal/workspace"
)

// Version is set at build time via -ldflags
var Version = "dev"

const usage = `usage: shiori [flags] <command>

commands:
  download <provider:id>   fetch a work into a raw workspace
  build <workspace-dir>    build an EPUB from a workspace
  sync <provider:id>       download then build
  check <provider:id>      report new/unchanged/changed without building
  list [query]             list built works, fuzzy-filtered by title

flags:
  -source <dir>   root of the local source tree (default "sources")
  -v, -version    print version
`

func main() {
	var showVersion bool
	var sourceRoot string
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&sourceRoot, "source", "sources", "root of the local source tree")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if showVersion {
		fmt.Printf("shiori %s\n", Version)
		return
	}

	if err := run(flag.Args(), sourceRoot); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, sourceRoot string) error {
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("missing command")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)
	logger.Info("starting shiori", "version", Version, "command", args[0])

	st, err := store.Open(cfg.Library.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := service.New(cfg, provider.NewFileFetcher(sourceRoot), st, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch args[0] {
	case "download":
		id, err := parseIdentity(args[1:])
		if err != nil {
			return err
		}
		ws, err := svc.Download(ctx, id)
		if err != nil {
			return err
		}
		fmt.Println(ws.Root)
		return nil

	case "build":
		if len(args) < 2 {
			return fmt.Errorf("build: missing workspace dir")
		}
		ws, err := workspace.Load(args[1])
		if err != nil {
			return err
		}
		return report(svc.Build(ctx, ws))

	case "sync":
		id, err := parseIdentity(args[1:])
		if err != nil {
			return err
		}
		ws, err := svc.Download(ctx, id)
		if err != nil {
			return err
		}
		return report(svc.Build(ctx, ws))

	case "check":
		id, err := parseIdentity(args[1:])
		if err != nil {
			return err
		}
		decision, err := svc.DiffCheck(ctx, id)
		if err != nil {
			return err
		}
		fmt.Println(decision)
		return nil

	case "list":
		query := ""
		if len(args) > 1 {
			query = strings.Join(args[1:], " ")
		}
		entries, err := svc.List(query)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%-24s  %s (%s)\n    %s\n", e.Identity.Key(), e.Title, e.Author, e.EpubPath)
		}
		return nil

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func report(res service.BuildResult, err error) error {
	if err != nil {
		return err
	}
	if res.Decision == domain.DecisionUnchanged {
		fmt.Printf("unchanged: %s\n", res.Path)
	} else {
		fmt.Printf("%s: %s\n", res.Decision, res.Path)
	}
	return nil
}

func parseIdentity(args []string) (domain.Identity, error) {
	if len(args) < 1 {
		return domain.Identity{}, fmt.Errorf("missing <provider:id> argument")
	}
	provider, sourceID, ok := strings.Cut(args[0], ":")
	if !ok || provider == "" || sourceID == "" {
		return domain.Identity{}, fmt.Errorf("invalid identity %q, want provider:id", args[0])
	}
	return domain.Identity{Provider: provider, SourceID: sourceID}, nil
}
