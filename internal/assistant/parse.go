package assistant

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mistakeknot/stride/internal/core"
)

// wireReply is the translator's JSON shape: either a single inlined
// action or an "actions" batch, plus the visible message.
type wireReply struct {
	core.Action
	Actions []core.Action `json:"actions"`
	Message string        `json:"message"`
}

// embeddedJSON finds a JSON object inside prose (one nesting level deep,
// which covers the single-action case).
var embeddedJSON = regexp.MustCompile(`\{(?:[^{}]|\{[^{}]*\})*\}`)

// ParseReply recovers a structured batch from raw translator output.
// Recovery ladder: strict JSON parse, then bracket-balancing repair for
// truncated payloads, then extraction of an embedded JSON object from
// surrounding prose. Plain text with no payload is a valid chat-only
// reply; a payload that survives none of the steps is ErrBadReply, never
// a partially-applied guess.
func ParseReply(text string) (Reply, error) {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "{") {
		wire, err := parseWire(trimmed)
		if err != nil {
			repaired := repairTruncated(trimmed)
			wire, err = parseWire(repaired)
			if err != nil {
				return Reply{}, fmt.Errorf("%w: %v", ErrBadReply, err)
			}
		}
		return wire.reply(""), nil
	}

	if match := embeddedJSON.FindString(trimmed); match != "" {
		if wire, err := parseWire(match); err == nil && (len(wire.Actions) > 0 || wire.Action.Type != "") {
			remainder := strings.TrimSpace(strings.Replace(trimmed, match, "", 1))
			return wire.reply(remainder), nil
		}
	}

	// General chat: no actions, the whole text is the message.
	return Reply{Message: trimmed}, nil
}

func parseWire(s string) (wireReply, error) {
	var wire wireReply
	if err := json.Unmarshal([]byte(s), &wire); err != nil {
		return wireReply{}, err
	}
	return wire, nil
}

func (w wireReply) reply(fallbackMessage string) Reply {
	reply := Reply{Message: w.Message}
	if reply.Message == "" {
		reply.Message = fallbackMessage
	}
	if reply.Message == "" {
		reply.Message = "Done!"
	}
	if len(w.Actions) > 0 {
		reply.Actions = w.Actions
	} else if w.Action.Type != "" {
		reply.Actions = []core.Action{w.Action}
	}
	return reply
}

// repairTruncated closes unbalanced brackets at the tail of a payload the
// model cut off mid-stream.
func repairTruncated(s string) string {
	openBraces := strings.Count(s, "{") - strings.Count(s, "}")
	openBrackets := strings.Count(s, "[") - strings.Count(s, "]")
	// A dangling partial object like `{"action": "del` can't be closed
	// into valid JSON; trim back to the last complete value first.
	s = strings.TrimRight(s, ", \t\n")
	if openBrackets > 0 {
		s += strings.Repeat("]", openBrackets)
	}
	if openBraces > 0 {
		s += strings.Repeat("}", openBraces)
	}
	return s
}
