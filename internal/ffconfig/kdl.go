package ffconfig

import (
	"fmt"
	"os"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDLFile reads an ffindex.kdl document from path and overlays it on
// top of Default(). A missing file is not an error: it simply yields the
// defaults so a fresh checkout with no config file still runs.
func LoadKDLFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseKDL(string(content))
}

// ParseKDL parses a KDL document into a Config, starting from Default()
// and overriding fields that are present.
func ParseKDL(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse kdl config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "roots":
			cfg.Roots = collectStringArgs(n)
		case "exclude-paths":
			cfg.ExcludedPaths = collectStringArgs(n)
		case "exclude-extensions":
			cfg.ExcludedExtensions = collectStringArgs(n)
		case "index":
			applyIndexSection(cfg, n)
		}
	}

	cfg.Normalize()
	return cfg, nil
}

func applyIndexSection(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "max-file-size":
			if v, ok := firstIntArg(cn); ok {
				cfg.MaxFileSize = int64(v)
			}
		case "include-hidden":
			if b, ok := firstBoolArg(cn); ok {
				cfg.IncludeHidden = b
			}
		case "include-system":
			if b, ok := firstBoolArg(cn); ok {
				cfg.IncludeSystem = b
			}
		case "skip-system-files":
			if b, ok := firstBoolArg(cn); ok {
				cfg.SkipSystemFiles = b
			}
		case "max-depth":
			if v, ok := firstIntArg(cn); ok {
				cfg.MaxDepth = v
			}
		case "batch-size":
			if v, ok := firstIntArg(cn); ok {
				cfg.BatchSize = v
			}
		case "parallel-workers":
			if v, ok := firstIntArg(cn); ok {
				cfg.ParallelWorkers = v
			}
		case "enable-monitoring":
			if b, ok := firstBoolArg(cn); ok {
				cfg.EnableMonitoring = b
			}
		case "watch-debounce-ms":
			if v, ok := firstIntArg(cn); ok {
				cfg.WatchDebounceMs = v
			}
		case "mft-buffer-bytes":
			if v, ok := firstIntArg(cn); ok {
				cfg.MFTBufferBytes = v
			}
		}
	}
}

// --- kdl-go document helpers ---

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

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
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
