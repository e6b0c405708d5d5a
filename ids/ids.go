// Package ids renders and parses the gateway's public identifier form:
// a short type prefix followed by a 32-character lowercase hex UUID, e.g.
// "resp_3fa85f6457174562b3fc2c963f66afa6". Internally every id is a raw
// 128-bit uuid.UUID; the prefix exists only at the wire boundary.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// Prefixes for the entity kinds the gateway exposes publicly.
const (
	PrefixResponse     = "resp"
	PrefixConversation = "conv"
	PrefixFunctionCall = "fc"
	PrefixWebSearch    = "ws"
	PrefixFileSearch   = "fs"
	PrefixSession      = "s"
	PrefixApprovalReq  = "mcpr"
	PrefixMcpCall      = "mcpc"
	PrefixOrganization = "org"
	PrefixApiKey       = "sk"
)

// New returns a fresh random 128-bit id.
func New() uuid.UUID { return uuid.New() }

// Render renders id with the given prefix: "<prefix>_<32-hex>".
func Render(prefix string, id uuid.UUID) string {
	return prefix + "_" + strings.ReplaceAll(id.String(), "-", "")
}

// Parse accepts either the prefixed form ("resp_<hex>") or the bare 32-hex
// form and returns the underlying uuid.UUID. The prefix, if present, is not
// validated against an expected value by Parse itself — callers that care
// which kind of id they received should check the prefix before calling
// Parse, or use ParseExpect.
func Parse(s string) (uuid.UUID, bool) {
	hex := s
	if i := strings.IndexByte(s, '_'); i >= 0 {
		hex = s[i+1:]
	}
	hex = strings.ToLower(strings.TrimSpace(hex))
	if len(hex) != 32 {
		return uuid.UUID{}, false
	}
	dashed := hex[0:8] + "-" + hex[8:12] + "-" + hex[12:16] + "-" + hex[16:20] + "-" + hex[20:32]
	id, err := uuid.Parse(dashed)
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

// ParseExpect parses s and additionally verifies it carries the expected
// prefix when a prefix is present in the input. A bare hex id is accepted
// regardless of the expected prefix, matching the "parsers accept both
// prefixed and bare forms" rule.
func ParseExpect(s, prefix string) (uuid.UUID, bool) {
	if i := strings.IndexByte(s, '_'); i >= 0 {
		if s[:i] != prefix {
			return uuid.UUID{}, false
		}
	}
	return Parse(s)
}
