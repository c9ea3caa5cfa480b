package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// readTOML decodes a TOML file into a generic map. A missing file yields a
// nil map.
func readTOML(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var layer map[string]any
	if err := toml.Unmarshal(raw, &layer); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return layer, nil
}

// readEnv collects prefixed variables, dotenv values first so that the
// process environment wins.
func readEnv(envFile, prefix string) (map[string]string, error) {
	vars := make(map[string]string)
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			fileVars, err := godotenv.Read(envFile)
			if err != nil {
				return nil, &ParseError{Path: envFile, Err: err}
			}
			for k, v := range fileVars {
				if strings.HasPrefix(k, prefix) {
					vars[k] = v
				}
			}
		}
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, prefix) {
			vars[k] = v
		}
	}
	return vars, nil
}

// envLayer maps MANIVAULT_SECTION_KEY variables onto the settings present
// in defaults, typed like the default value. Variables naming no setting
// are returned in unknown.
func envLayer(vars map[string]string, prefix string, defaults map[string]any) (layer map[string]any, unknown []string, err error) {
	layer = make(map[string]any)
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		section, key, ok := settingOf(strings.ToLower(strings.TrimPrefix(name, prefix)), defaults)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		def := defaults[section].(map[string]any)[key]
		value, err := parseLike(def, vars[name])
		if err != nil {
			return nil, nil, &ValidationError{Path: section + "." + key, Value: vars[name], Message: err.Error()}
		}
		sub, _ := layer[section].(map[string]any)
		if sub == nil {
			sub = make(map[string]any)
			layer[section] = sub
		}
		sub[key] = value
	}
	return layer, unknown, nil
}

func settingOf(name string, defaults map[string]any) (section, key string, ok bool) {
	for section, v := range defaults {
		keys, isTable := v.(map[string]any)
		if !isTable {
			continue
		}
		rest, found := strings.CutPrefix(name, section+"_")
		if !found {
			continue
		}
		if _, known := keys[rest]; known {
			return section, rest, true
		}
	}
	return "", "", false
}

func parseLike(def any, s string) (any, error) {
	switch def.(type) {
	case bool:
		return strconv.ParseBool(s)
	case int64:
		return strconv.ParseInt(s, 10, 64)
	case float64:
		return strconv.ParseFloat(s, 64)
	case []any:
		var list []any
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				list = append(list, part)
			}
		}
		return list, nil
	default:
		return s, nil
	}
}

// toMap round-trips v through TOML so that defaults and file layers share
// one representation.
func toMap(v any) (map[string]any, error) {
	raw, err := toml.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := toml.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// deepMerge copies src over dst, merging nested tables.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		srcTable, srcIsTable := v.(map[string]any)
		dstTable, dstIsTable := dst[k].(map[string]any)
		if srcIsTable && dstIsTable {
			dst[k] = deepMerge(dstTable, srcTable)
			continue
		}
		dst[k] = v
	}
	return dst
}

func decodeConfig(m map[string]any) (*Config, error) {
	raw, err := toml.Marshal(m)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := toml.NewDecoder(bytes.NewReader(raw)).Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// build merges the layers over the defaults and validates the result.
func build(path, envFile, prefix string) (*Config, []string, error) {
	defaults, err := toMap(Default())
	if err != nil {
		return nil, nil, err
	}
	file, err := readTOML(path)
	if err != nil {
		return nil, nil, err
	}
	vars, err := readEnv(envFile, prefix)
	if err != nil {
		return nil, nil, err
	}
	env, unknown, err := envLayer(vars, prefix, defaults)
	if err != nil {
		return nil, nil, err
	}

	merged := deepMerge(deepMerge(defaults, file), env)
	cfg, err := decodeConfig(merged)
	if err != nil {
		return nil, nil, &ParseError{Path: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, unknown, nil
}
