package bible

// MergeUpdates combines the deterministic local update with the AI
// extractor's update, if any. The AI takes priority where it
// disagrees with the local heuristic, but its absence — or its
// silence on a field — always falls back to the local value.
func MergeUpdates(local Update, extracted *Update) Update {
	if extracted == nil {
		return local
	}

	mergedGlossary := make(map[string]string, len(local.Glossary)+len(extracted.Glossary))
	for k, v := range local.Glossary {
		mergedGlossary[k] = v
	}
	for k, v := range extracted.Glossary {
		mergedGlossary[k] = v
	}

	mergedCharacters := make(map[string]string, len(local.Characters)+len(extracted.Characters))
	for k, v := range local.Characters {
		mergedCharacters[k] = v
	}
	for k, v := range extracted.Characters {
		mergedCharacters[k] = v
	}
	for _, rejected := range extracted.Rejected {
		delete(mergedCharacters, rejected)
	}

	var mergedDecisions []string
	seen := make(map[string]struct{})
	for _, decision := range append(append([]string{}, local.Decisions...), extracted.Decisions...) {
		if decision == "" {
			continue
		}
		if _, ok := seen[decision]; ok {
			continue
		}
		seen[decision] = struct{}{}
		mergedDecisions = append(mergedDecisions, decision)
	}

	voice := extracted.Voice
	if voice == "" {
		voice = local.Voice
	}
	lastScene := extracted.LastScene
	if lastScene == "" {
		lastScene = local.LastScene
	}

	return Update{
		Voice:      voice,
		Glossary:   mergedGlossary,
		Characters: mergedCharacters,
		Decisions:  mergedDecisions,
		LastScene:  lastScene,
		Rejected:   extracted.Rejected,
	}
}

// HasUnenrichedCandidates reports whether candidates contains names
// that are either new to the bible or still carry the local
// detector's generic placeholder description — i.e. names the AI
// extractor should be forced to look at this chunk.
func HasUnenrichedCandidates(candidates map[string]string, b Book) bool {
	for name := range candidates {
		description, exists := b.Characters[name]
		if !exists || description == PlaceholderDescription {
			return true
		}
	}
	return false
}
