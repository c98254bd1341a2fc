package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/othala/internal"
	"github.com/starford/othala/internal/docservice"
	pkgconfig "github.com/starford/othala/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if cmd.IsSet("config") {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		return cfg, nil
	}
	// Default path: run on built-in defaults when the file is absent.
	if _, err := pkgconfig.LoadIfExists(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}
	if cmd.Bool("mcp") {
		opts = append(opts, internal.WithMCP())
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runArchive(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	numbers := cmd.Args().Slice()
	if len(numbers) == 0 {
		return fmt.Errorf("archive: at least one document number is required")
	}

	maxFileSize := cmd.Int("max-file-size")
	if maxFileSize == 0 {
		maxFileSize = cfg.Remote.MaxFileSize
	}

	report, err := internal.Archive(ctx, cfg, docservice.ArchiveRequest{
		Numbers:          numbers,
		Depth:            int(cmd.Int("depth")),
		FetchRelated:     !cmd.Bool("no-related"),
		FetchReferencing: cmd.Bool("referencing"),
		Files:            cmd.Bool("files"),
		MaxFileSize:      maxFileSize,
		SkipCategories:   cmd.StringSlice("skip-category"),
		Force:            cmd.Bool("force"),
		PreferLocal:      cmd.Bool("prefer-local"),
	})
	if err != nil {
		return fmt.Errorf("archive run error: %w", err)
	}

	fmt.Printf("archived: %d  ignored: %d  failed: %d  files: %d  skipped files: %d\n",
		len(report.Archived), len(report.Ignored), len(report.Failed),
		report.Files, report.SkippedFiles)
	for _, fail := range report.Failed {
		fmt.Fprintf(os.Stderr, "failed %s: %v\n", fail.Number, fail.Err)
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("archive: %d documents failed", len(report.Failed))
	}
	return nil
}

func runFetch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("fetch: exactly one document number is required")
	}

	record, err := internal.Fetch(ctx, cfg, cmd.Args().First(), docservice.FetchOptions{
		Force:       cmd.Bool("force"),
		PreferLocal: cmd.Bool("prefer-local"),
	})
	if err != nil {
		return fmt.Errorf("fetch error: %w", err)
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runList(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	items, total, err := internal.List(ctx, cfg, int(cmd.Int("limit")), 0, cmd.String("category"), cmd.String("sort"))
	if err != nil {
		return fmt.Errorf("list error: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", item.Number, item.UpdatedAt.Format("2006-01-02"), item.Title)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if total > len(items) {
		fmt.Printf("(%d of %d records)\n", len(items), total)
	}
	return nil
}

func newConfigFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "othala",
		Usage:  "Local archive and cache for a remote document management host",
		Action: runServe,
		Flags: []cli.Flag{
			newConfigFlag(),
			&cli.BoolFlag{
				Name:  "mcp",
				Usage: "Serve the MCP stdio transport instead of HTTP",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "archive",
				Usage:     "Archive documents and the documents they reference",
				ArgsUsage: "NUMBER [NUMBER...]",
				Action:    runArchive,
				Flags: []cli.Flag{
					newConfigFlag(),
					&cli.IntFlag{
						Name:  "depth",
						Usage: "How many reference hops to follow from the seeds",
					},
					&cli.BoolFlag{
						Name:  "no-related",
						Usage: "Do not follow related-document references",
					},
					&cli.BoolFlag{
						Name:  "referencing",
						Usage: "Also follow documents that reference the visited ones",
					},
					&cli.BoolFlag{
						Name:  "files",
						Usage: "Download attachments along with metadata",
					},
					&cli.IntFlag{
						Name:  "max-file-size",
						Usage: "Skip attachments larger than this many bytes (0 uses the config cap)",
					},
					&cli.StringSliceFlag{
						Name:  "skip-category",
						Usage: "Category letters to skip during traversal",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Refetch records already archived",
					},
					&cli.BoolFlag{
						Name:  "prefer-local",
						Usage: "Serve unversioned numbers from the archive when possible",
					},
				},
			},
			{
				Name:   "list",
				Usage:  "List archived records",
				Action: runList,
				Flags: []cli.Flag{
					newConfigFlag(),
					&cli.StringFlag{
						Name:  "category",
						Usage: "Filter by category letter",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum rows to print",
						Value: 100,
					},
					&cli.StringFlag{
						Name:  "sort",
						Usage: "Sort order: number, title or updated",
					},
				},
			},
			{
				Name:      "fetch",
				Usage:     "Fetch one record and print it as JSON",
				ArgsUsage: "NUMBER",
				Action:    runFetch,
				Flags: []cli.Flag{
					newConfigFlag(),
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Refetch even when archived locally",
					},
					&cli.BoolFlag{
						Name:  "prefer-local",
						Usage: "Serve unversioned numbers from the archive when possible",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
