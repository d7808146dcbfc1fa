package vocab

// Registry tracks the vocabulary each table's events are currently coded in.
// It is returned as an explicit value from the mapping stage rather than
// kept as ambient shared state.
type Registry struct {
	// Active is the current vocabulary per table. When a table receives
	// heterogeneous source mappings, the last mapping applied wins; the
	// Transitions field keeps the full history for callers that care.
	Active map[string]string

	// Transitions is the vocabulary sequence each table moved through,
	// starting with the parser's vocabulary.
	Transitions map[string][]string
}

// NewRegistry seeds a registry from the parser vocabularies (table →
// vocabulary emitted by that table's parser).
func NewRegistry(parserVocabs map[string]string) Registry {
	r := Registry{
		Active:      make(map[string]string, len(parserVocabs)),
		Transitions: make(map[string][]string, len(parserVocabs)),
	}
	for table, v := range parserVocabs {
		r.Active[table] = v
		r.Transitions[table] = []string{v}
	}
	return r
}

// record notes that events of the given table were mapped into target.
func (r *Registry) record(table, target string) {
	if r.Active[table] == target {
		return
	}
	r.Active[table] = target
	r.Transitions[table] = append(r.Transitions[table], target)
}
