package content

import (
	"strconv"
	"strings"
)

// Store namespaces. A revision lives at cont:<id> and meta:<id>; a key's
// revision index at url:<key>.
const (
	ContentNS      = "cont:"
	MetaNS         = "meta:"
	URLNS          = "url:"
	SrcURLNS       = "srcurl:" // reserved for source revisions, unused
	IDCounterNS    = "id:"
	ContentIDField = "content"
	NamespacesKey  = "namespaces:"
	ServerKey      = "server:"
	ServerIDField  = "id"

	// KeyDelimiter separates host and path in a ContentKey. A reference
	// containing it is a key; anything else is a literal ContentID.
	KeyDelimiter = ":"
)

// ContentID identifies one stored revision. IDs come from a global counter
// and are never reused.
type ContentID int64

func (id ContentID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseContentID parses the decimal form stored in revision indexes.
func ParseContentID(s string) (ContentID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ContentID(n), nil
}

// CKey builds the ContentKey for host and path.
func CKey(host, path string) string {
	return host + KeyDelimiter + path
}

// IsKey reports whether ref is a ContentKey rather than a literal id.
func IsKey(ref string) bool {
	return strings.Contains(ref, KeyDelimiter)
}

func contentKey(id ContentID) string { return ContentNS + id.String() }
func metaKey(id ContentID) string    { return MetaNS + id.String() }
func indexKey(key string) string     { return URLNS + key }
