package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/symindex/internal/config"
	"github.com/standardbeagle/symindex/internal/debug"
	"github.com/standardbeagle/symindex/internal/idcodec"
	"github.com/standardbeagle/symindex/internal/index"
	"github.com/standardbeagle/symindex/internal/metrics"
	"github.com/standardbeagle/symindex/internal/types"
)

// openIndex loads the merged shard into a fresh MemIndex
func openIndex(c *cli.Context) (*index.MemIndex, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	sh, err := loadShard(c, cfg.Merge.Output)
	if err != nil {
		return nil, nil, err
	}

	idx := index.NewMemIndex(index.WithQualityWeights(cfg.Ranking))
	if err := idx.Build(index.NewSymbolSnapshot(1, sh.Symbols), index.NewRefSnapshot(1, sh.Refs)); err != nil {
		return nil, nil, err
	}
	return idx, cfg, nil
}

func findCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("find requires exactly one QUERY argument")
	}
	idx, cfg, err := openIndex(c)
	if err != nil {
		return err
	}

	scope, name, qualified := index.SplitQualifiedQuery(c.Args().First())
	req := index.FuzzyFindRequest{
		Query:                     name,
		Scopes:                    c.StringSlice("scope"),
		AnyScope:                  c.Bool("any-scope"),
		RestrictForCodeCompletion: c.Bool("completion"),
		Limit:                     c.Int("max"),
	}
	if qualified && len(req.Scopes) == 0 {
		req.Scopes = []string{scope}
	}
	if req.Limit <= 0 {
		req.Limit = cfg.Index.MaxResults
	}
	debug.LogQuery("find %q scopes=%q limit=%d\n", name, req.Scopes, req.Limit)

	w := c.App.Writer
	n := 0
	more := idx.FuzzyFind(req, func(sym *types.Symbol) {
		printSymbol(w, sym)
		n++
	})
	if more {
		fmt.Fprintf(w, "... more results available (showing %d)\n", n)
	}
	return nil
}

func lookupCommand(c *cli.Context) error {
	ids, err := argIDs(c)
	if err != nil {
		return err
	}
	idx, _, err := openIndex(c)
	if err != nil {
		return err
	}

	idx.Lookup(index.LookupRequest{IDs: ids}, func(sym *types.Symbol) {
		printSymbol(c.App.Writer, sym)
	})
	return nil
}

func refsCommand(c *cli.Context) error {
	ids, err := argIDs(c)
	if err != nil {
		return err
	}
	filter, err := types.ParseRefKind(c.StringSlice("kind"))
	if err != nil {
		return err
	}
	idx, _, err := openIndex(c)
	if err != nil {
		return err
	}

	w := c.App.Writer
	idx.Refs(index.RefsRequest{IDs: ids, Filter: filter}, func(ref types.Ref) {
		fmt.Fprintf(w, "%s\t%s\n", ref.Location, ref.Kind)
	})
	return nil
}

func statsCommand(c *cli.Context) error {
	idx, _, err := openIndex(c)
	if err != nil {
		return err
	}

	stats := metrics.NewIndexStats()
	stats.CalculateFromGeneration(idx.Snapshot())

	w := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats.FormatAsJSON())
	}
	_, err = io.WriteString(w, stats.FormatAsText())
	return err
}

func argIDs(c *cli.Context) ([]types.SymbolID, error) {
	if c.NArg() == 0 {
		return nil, fmt.Errorf("at least one symbol ID is required")
	}
	return idcodec.DecodeList(c.Args().Slice())
}

// printSymbol writes one line per symbol: id, kind, qualified name and the
// definition (or declaration) location when known.
func printSymbol(w io.Writer, sym *types.Symbol) {
	loc := sym.Definition
	if loc.IsZero() {
		loc = sym.Declaration
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\t%s\t%s", idcodec.Encode(sym.ID), sym.Kind, sym.QualifiedName())
	if !loc.IsZero() {
		fmt.Fprintf(&sb, "\t%s", loc)
	}
	fmt.Fprintln(w, sb.String())
}
