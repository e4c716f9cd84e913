package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/symindex/internal/config"
	"github.com/standardbeagle/symindex/internal/debug"
	"github.com/standardbeagle/symindex/internal/version"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// shardFlag selects the merged shard the query commands load
func shardFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "shard",
		Aliases: []string{"s"},
		Usage:   "Merged shard file to query (default: merge.output from config)",
	}
}

func newApp(w io.Writer) *cli.App {
	return &cli.App{
		Name:                   "symindex",
		Usage:                  "In-memory symbol index over YAML index shards",
		Version:                version.Version,
		Writer:                 w,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-dir",
				Aliases: []string{"C"},
				Usage:   "Directory holding .symindex.kdl or .symindex.toml",
				Value:   ".",
			},
			&cli.BoolFlag{
				Name:  "debug-log",
				Usage: "Write debug output to a file in the temp dir (needs SYMINDEX_DEBUG=1)",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug-log") {
				path, err := debug.InitDebugLogFile()
				if err != nil {
					return fmt.Errorf("failed to open debug log: %w", err)
				}
				fmt.Fprintf(os.Stderr, "Debug log: %s\n", path)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			return debug.CloseDebugLog()
		},
		Commands: []*cli.Command{
			{
				Name:  "merge",
				Usage: "Merge every shard under a directory into one shard (first shard by path wins)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dir",
						Aliases:  []string{"d"},
						Usage:    "Directory of shard files",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Merged shard path (default: merge.output from config)",
					},
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "Shards parsed in parallel (0 = NumCPU)",
						Value:   -1,
					},
					&cli.StringFlag{
						Name:    "pattern",
						Aliases: []string{"p"},
						Usage:   "Doublestar pattern selecting shard files",
					},
					&cli.StringSliceFlag{
						Name:  "kind",
						Usage: "Keep only these reference kinds (declaration, definition, reference, all)",
					},
					&cli.StringFlag{
						Name:  "metrics-file",
						Usage: "Write merge metrics in Prometheus text format to this file",
					},
				},
				Action: mergeCommand,
			},
			{
				Name:      "find",
				Aliases:   []string{"f"},
				Usage:     "Fuzzy-find symbols; qualify the query with '::' to restrict the scope",
				ArgsUsage: "QUERY",
				Flags: []cli.Flag{
					shardFlag(),
					&cli.IntFlag{
						Name:    "max",
						Aliases: []string{"m"},
						Usage:   "Maximum results (default: index.max_results from config)",
					},
					&cli.StringSliceFlag{
						Name:  "scope",
						Usage: "Accept only these scopes (e.g. 'ns::'; '' for global)",
					},
					&cli.BoolFlag{
						Name:  "any-scope",
						Usage: "Ignore scope restrictions",
					},
					&cli.BoolFlag{
						Name:  "completion",
						Usage: "Only symbols indexed for code completion",
					},
				},
				Action: findCommand,
			},
			{
				Name:      "lookup",
				Aliases:   []string{"l"},
				Usage:     "Print symbols by id",
				ArgsUsage: "ID...",
				Flags:     []cli.Flag{shardFlag()},
				Action:    lookupCommand,
			},
			{
				Name:      "refs",
				Aliases:   []string{"r"},
				Usage:     "Print occurrences of symbols by id",
				ArgsUsage: "ID...",
				Flags: []cli.Flag{
					shardFlag(),
					&cli.StringSliceFlag{
						Name:  "kind",
						Usage: "Occurrence kinds (declaration, definition, reference, all)",
					},
				},
				Action: refsCommand,
			},
			{
				Name:  "stats",
				Usage: "Summarize a merged shard",
				Flags: []cli.Flag{
					shardFlag(),
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				},
				Action: statsCommand,
			},
			{
				Name:  "serve",
				Usage: "Watch a shard directory and serve the live index over MCP stdio",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dir",
						Aliases:  []string{"d"},
						Usage:    "Directory of shard files to watch",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Serve Prometheus metrics on this address (default: serve.metrics_addr from config)",
					},
				},
				Action: serveCommand,
			},
		},
	}
}

// loadConfig loads the configuration named by --config-dir
func loadConfig(c *cli.Context) (*config.Config, error) {
	dir := c.String("config-dir")
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", dir, err)
	}
	return cfg, nil
}
