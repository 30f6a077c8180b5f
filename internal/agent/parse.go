package agent

import (
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
)

// ParsedTurn is the decoded INTENT/RESPONSE contract.
type ParsedTurn struct {
	Intent   domain.IntentType
	Response string
}

// intentLabelMinLen is the minimum prefix length required to recognize an
// intent label — tolerates truncation like "CONV" or "DOMAIN_QUE" from a
// model that gets cut off or abbreviates (spec §5.2).
const intentLabelMinLen = 4

// ParseTurn leniently parses the model's two-line INTENT/RESPONSE contract.
// Matching is case-insensitive and tolerates a label recognized from only
// its first intentLabelMinLen characters, extra whitespace, and lines
// appearing in either order. If no INTENT line is found, the whole raw
// response is treated as a CONVERSATIONAL reply — the safest fallback when
// the model ignores the contract.
func ParseTurn(raw string) ParsedTurn {
	lines := strings.Split(strings.TrimSpace(raw), "\n")

	var intent *domain.IntentType
	var response string
	var responseFound bool

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if _, rest, ok := splitLabel(line, "INTENT"); ok {
			if parsed, ok := matchIntent(rest); ok {
				intent = &parsed
			}
			continue
		}

		if _, rest, ok := splitLabel(line, "RESPONSE"); ok {
			response = rest
			responseFound = true
			continue
		}

		// A line that isn't a recognized label: once RESPONSE has started,
		// treat it as a continuation (multi-line replies happen).
		if responseFound {
			response = strings.TrimSpace(response + "\n" + line)
		}
	}

	if intent == nil {
		conversational := domain.IntentConversational
		intent = &conversational
		if !responseFound {
			response = strings.TrimSpace(raw)
		}
	}

	return ParsedTurn{Intent: *intent, Response: response}
}

// splitLabel reports whether line starts with label (case-insensitive,
// comparing only its first intentLabelMinLen characters) and contains a ':',
// returning the text before the colon and the trimmed text after it.
func splitLabel(line, label string) (matchedPrefix string, rest string, ok bool) {
	upper := strings.ToUpper(line)
	labelUpper := strings.ToUpper(label)

	prefixLen := intentLabelMinLen
	if len(labelUpper) < prefixLen {
		prefixLen = len(labelUpper)
	}
	if len(upper) < prefixLen || upper[:prefixLen] != labelUpper[:prefixLen] {
		return "", "", false
	}

	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	return line[:idx], strings.TrimSpace(line[idx+1:]), true
}

func matchIntent(label string) (domain.IntentType, bool) {
	upper := strings.ToUpper(strings.TrimSpace(label))
	switch {
	case strings.HasPrefix("CONVERSATIONAL", upper) && len(upper) >= intentLabelMinLen:
		return domain.IntentConversational, true
	case strings.HasPrefix("DOMAIN_QUERY", upper) && len(upper) >= intentLabelMinLen:
		return domain.IntentDomainQuery, true
	case strings.HasPrefix("OUT_OF_SCOPE", upper) && len(upper) >= intentLabelMinLen:
		return domain.IntentOutOfScope, true
	default:
		return "", false
	}
}
