// Package access holds the administrative and keeper identities allowed to
// drive privileged operations.
package access

import "yield-agreement-backend/pkg/id"

type Policy struct {
	admins  map[string]struct{}
	keepers map[string]struct{}
}

func NewPolicy(admins, keepers []string) Policy {
	return Policy{admins: toSet(admins), keepers: toSet(keepers)}
}

func (p Policy) IsAdmin(caller string) bool {
	_, ok := p.admins[id.Normalize(caller)]
	return ok
}

// IsKeeper is true for keepers and admins.
func (p Policy) IsKeeper(caller string) bool {
	if p.IsAdmin(caller) {
		return true
	}
	_, ok := p.keepers[id.Normalize(caller)]
	return ok
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		if v := id.Normalize(raw); v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}
