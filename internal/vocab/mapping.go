// Package vocab translates event codes across coding vocabularies. The
// mapper walks the assembled timeline, replaces every event whose vocabulary
// has a configured source mapping with the codes the cross-mapping service
// returns (fan-out: one source event becomes zero or more output events),
// and maintains the per-table vocabulary registry as an explicit result.
package vocab

import (
	"context"
	"fmt"
	"sort"
)

// Target is one configured mapping destination: the target vocabulary plus
// optional option bags forwarded verbatim to the cross-mapping service.
type Target struct {
	Vocabulary   string
	SourceKwargs map[string]any
	TargetKwargs map[string]any
}

// Mapping is the code-mapping configuration: source vocabulary → target.
type Mapping map[string]Target

// ParseMapping converts the raw configuration form into a Mapping. Each value
// is either a bare target-vocabulary string or a map holding "target" plus an
// options bag restricted to the keys "source_kwargs" and "target_kwargs".
func ParseMapping(raw map[string]any) (Mapping, error) {
	m := make(Mapping, len(raw))
	for source, v := range raw {
		switch tv := v.(type) {
		case string:
			m[source] = Target{Vocabulary: tv}
		case map[string]any:
			t, err := parseTargetOptions(source, tv)
			if err != nil {
				return nil, err
			}
			m[source] = t
		default:
			return nil, fmt.Errorf("code mapping %s: target must be a vocabulary name or an options map, got %T", source, v)
		}
	}
	return m, nil
}

func parseTargetOptions(source string, opts map[string]any) (Target, error) {
	var t Target
	for key, val := range opts {
		switch key {
		case "target":
			name, ok := val.(string)
			if !ok {
				return t, fmt.Errorf("code mapping %s: target must be a string, got %T", source, val)
			}
			t.Vocabulary = name
		case "source_kwargs":
			kw, ok := val.(map[string]any)
			if !ok {
				return t, fmt.Errorf("code mapping %s: source_kwargs must be a map, got %T", source, val)
			}
			t.SourceKwargs = kw
		case "target_kwargs":
			kw, ok := val.(map[string]any)
			if !ok {
				return t, fmt.Errorf("code mapping %s: target_kwargs must be a map, got %T", source, val)
			}
			t.TargetKwargs = kw
		default:
			return t, fmt.Errorf("code mapping %s: unknown option %q (only source_kwargs and target_kwargs are allowed)", source, key)
		}
	}
	if t.Vocabulary == "" {
		return t, fmt.Errorf("code mapping %s: no target vocabulary", source)
	}
	return t, nil
}

// Entries renders the mapping as sorted "source>target" strings, the stable
// form the cache key hashes.
func (m Mapping) Entries() []string {
	out := make([]string, 0, len(m))
	for source, t := range m {
		e := source + ">" + t.Vocabulary
		for _, kw := range []map[string]any{t.SourceKwargs, t.TargetKwargs} {
			keys := make([]string, 0, len(kw))
			for k := range kw {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				e += fmt.Sprintf(";%s=%v", k, kw[k])
			}
		}
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// CrossMapper translates one code into an ordered list of zero or more codes
// in the target vocabulary. It is the boundary to the external cross-
// vocabulary mapping service; its lookup internals are opaque to this
// package.
type CrossMapper interface {
	Map(ctx context.Context, code string, sourceKwargs, targetKwargs map[string]any) ([]string, error)
}

// Service hands out a CrossMapper per (source, target) vocabulary pair.
type Service interface {
	CrossMap(source, target string) (CrossMapper, error)
}
