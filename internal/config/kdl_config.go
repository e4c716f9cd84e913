package config

import (
	"fmt"
	"log"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	ierrors "github.com/standardbeagle/symindex/internal/errors"
)

// LoadKDL loads .symindex.kdl from dir. It returns nil, nil when the file
// does not exist.
func LoadKDL(dir string) (*Config, error) {
	path := configPath(dir, KDLFileName)
	content, err := readIfExists(path)
	if err != nil {
		return nil, ierrors.NewFileError("read", path, err)
	}
	if content == nil {
		return nil, nil
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, ierrors.NewConfigError(KDLFileName, path, err)
	}
	cfg.Source = path
	return cfg, nil
}

// parseKDL overlays the settings in content on the defaults.
//
//	index { max_results 50 }
//	ranking { reference_threshold 3; macro_penalty 0.8 }
//	merge { workers 4; pattern "**/*.yaml"; output "merged.yaml" }
//	watch { debounce_ms 200; pattern "**/*.yaml" }
//	serve { metrics_addr ":9090" }
func parseKDL(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "version":
			if v, ok := firstIntArg(n); ok {
				cfg.Version = v
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_results":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxResults = v
					}
				case "scope_separator":
					assignSimpleString(cn, "scope_separator", func(v string) { cfg.Index.ScopeSeparator = v })
				}
			}
		case "ranking":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "reference_threshold":
					if v, ok := firstIntArg(cn); ok {
						if v < 0 {
							return nil, fmt.Errorf("ranking.reference_threshold cannot be negative, got %d", v)
						}
						cfg.Ranking.ReferenceThreshold = uint32(v)
					}
				case "macro_penalty":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Ranking.MacroPenalty = v
					}
				case "deprecated_penalty":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Ranking.DeprecatedPenalty = v
					}
				case "implementation_detail_penalty":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Ranking.ImplementationDetailPenalty = v
					}
				case "dynamic_boost":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Ranking.DynamicBoost = v
					}
				}
			}
		case "merge":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Merge.Workers = v
					}
				case "pattern":
					assignSimpleString(cn, "pattern", func(v string) { cfg.Merge.Pattern = v })
				case "output":
					assignSimpleString(cn, "output", func(v string) { cfg.Merge.Output = v })
				}
			}
		case "watch":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watch.DebounceMs = v
					}
				case "pattern":
					assignSimpleString(cn, "pattern", func(v string) { cfg.Watch.Pattern = v })
				}
			}
		case "serve":
			for _, cn := range n.Children {
				assignSimpleString(cn, "metrics_addr", func(v string) { cfg.Serve.MetricsAddr = v })
			}
		default:
			log.Printf("WARNING: unknown section '%s' in %s ignored", nodeName(n), KDLFileName)
		}
	}

	return cfg, nil
}

// Helper functions leveraging the kdl-go document model
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		log.Printf("WARNING: invalid float value for '%s' in KDL config, expected number but got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
