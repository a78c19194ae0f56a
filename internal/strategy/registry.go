package strategy

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/pkg/types"
)

// Constructor builds a strategy from its JSON config. Constructors own
// config validation and fail fast on bad values.
type Constructor func(cfg json.RawMessage, logger *zap.Logger) (Strategy, error)

var registry = map[string]Constructor{
	NameNoop:     NewNoop,
	NameTakeBest: NewTakeBest,
	NameArbWatch: NewArbWatch,
}

// Register adds a constructor under name, replacing any existing entry.
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// Names returns the registered strategy names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named strategy from cfg.
func New(name string, cfg json.RawMessage, logger *zap.Logger) (Strategy, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)",
			types.ErrUnknownStrategy, name, strings.Join(Names(), ", "))
	}
	return ctor(cfg, logger)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadConfig resolves a strategy config argument. An empty argument means
// an empty config, an argument starting with "{" is taken as literal
// JSON, anything else is read as a UTF-8 file path (a leading byte order
// mark is stripped). The result must be a JSON object; its keys stay
// opaque until the strategy constructor sees them.
func LoadConfig(arg string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(arg)
	if trimmed == "" {
		return json.RawMessage("{}"), nil
	}

	raw := []byte(trimmed)
	if !strings.HasPrefix(trimmed, "{") {
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, fmt.Errorf("read strategy config %s: %w", arg, err)
		}
		raw = bytes.TrimPrefix(data, utf8BOM)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("parse strategy config: %w", err)
	}
	return json.RawMessage(raw), nil
}
