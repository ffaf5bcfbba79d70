// Package provenance attaches structured why-metadata to commits and
// reconstructs it from history.
//
// Metadata is embedded in the commit message itself (not a separate mutable
// ledger) so history remains reconstructible from a cloned repository alone.
package provenance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Block delimiters. The block sits after a blank line at the end of the
// commit message body, so tools that don't understand it render it as plain
// trailer text.
const (
	blockBegin = "---crew-provenance---"
	blockEnd   = "---end-crew-provenance---"
)

// Metadata records why a commit was made.
type Metadata struct {
	Prompt          string    `json:"prompt"`
	ExpectedOutcome string    `json:"expected_outcome"`
	ContextSummary  string    `json:"context_summary"`
	AgentID         string    `json:"agent_id"`
	SessionID       string    `json:"session_id"`
	Timestamp       time.Time `json:"timestamp"`

	// Extra preserves unknown fields written by newer versions.
	// They are re-emitted verbatim on encode.
	Extra map[string]string `json:"-"`
}

// knownKeys are the fields this version understands.
var knownKeys = map[string]bool{
	"prompt":           true,
	"expected_outcome": true,
	"context_summary":  true,
	"agent_id":         true,
	"session_id":       true,
	"timestamp":        true,
}

// encode serializes the metadata to a single-line JSON object.
func (m *Metadata) encode() (string, error) {
	payload := map[string]string{
		"prompt":           m.Prompt,
		"expected_outcome": m.ExpectedOutcome,
		"context_summary":  m.ContextSummary,
		"agent_id":         m.AgentID,
		"session_id":       m.SessionID,
		"timestamp":        m.Timestamp.UTC().Format(time.RFC3339),
	}
	for k, v := range m.Extra {
		if !knownKeys[k] {
			payload[k] = v
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding provenance metadata: %w", err)
	}
	return string(data), nil
}

// decodeMetadata parses the JSON payload of a provenance block.
// Unknown keys are retained in Extra rather than dropped.
func decodeMetadata(payload string) (*Metadata, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decoding provenance metadata: %w", err)
	}

	meta := &Metadata{}
	stringField := func(key string) string {
		v, ok := raw[key]
		if !ok {
			return ""
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ""
		}
		return s
	}

	meta.Prompt = stringField("prompt")
	meta.ExpectedOutcome = stringField("expected_outcome")
	meta.ContextSummary = stringField("context_summary")
	meta.AgentID = stringField("agent_id")
	meta.SessionID = stringField("session_id")

	if ts := stringField("timestamp"); ts != "" {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("decoding provenance timestamp %q: %w", ts, err)
		}
		meta.Timestamp = parsed
	}

	for k, v := range raw {
		if knownKeys[k] {
			continue
		}
		if meta.Extra == nil {
			meta.Extra = make(map[string]string)
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			meta.Extra[k] = s
		} else {
			meta.Extra[k] = string(v)
		}
	}

	return meta, nil
}

// appendBlock appends the provenance block to a commit message.
func appendBlock(message string, meta *Metadata) (string, error) {
	encoded, err := meta.encode()
	if err != nil {
		return "", err
	}
	trimmed := strings.TrimRight(message, "\n")
	return trimmed + "\n\n" + blockBegin + "\n" + encoded + "\n" + blockEnd + "\n", nil
}

// parseMessage splits a commit message into its human message and the
// provenance metadata, when present. Messages without a block return the
// message unchanged and nil metadata.
func parseMessage(message string) (string, *Metadata, error) {
	beginIdx := strings.Index(message, blockBegin)
	if beginIdx < 0 {
		return strings.TrimRight(message, "\n"), nil, nil
	}
	rest := message[beginIdx+len(blockBegin):]
	endIdx := strings.Index(rest, blockEnd)
	if endIdx < 0 {
		// Malformed block: treat the whole message as plain text.
		return strings.TrimRight(message, "\n"), nil, nil
	}

	payload := strings.TrimSpace(rest[:endIdx])
	meta, err := decodeMetadata(payload)
	if err != nil {
		return "", nil, err
	}

	clean := strings.TrimRight(message[:beginIdx], "\n")
	return clean, meta, nil
}
