package domain

import "strings"

// oidRegistry maps OIDs to their friendly names and vice versa.
// This is a pure domain component with no external dependencies.
var oidRegistry = map[string]string{
	// eduPerson attributes
	"urn:oid:1.3.6.1.4.1.5923.1.1.1.6": "eduPersonPrincipalName",
	"eduPersonPrincipalName":           "urn:oid:1.3.6.1.4.1.5923.1.1.1.6",
	"urn:oid:1.3.6.1.4.1.5923.1.1.1.7": "eduPersonEntitlement",
	"eduPersonEntitlement":             "urn:oid:1.3.6.1.4.1.5923.1.1.1.7",
	"urn:oid:1.3.6.1.4.1.5923.1.1.1.9": "eduPersonScopedAffiliation",
	"eduPersonScopedAffiliation":       "urn:oid:1.3.6.1.4.1.5923.1.1.1.9",

	// Standard LDAP attributes
	"urn:oid:0.9.2342.19200300.100.1.3": "mail",
	"mail":                              "urn:oid:0.9.2342.19200300.100.1.3",
	"urn:oid:2.5.4.42":                  "givenName",
	"givenName":                         "urn:oid:2.5.4.42",
	"urn:oid:2.5.4.4":                   "sn",
	"sn":                                "urn:oid:2.5.4.4",
	"urn:oid:2.16.840.1.113730.3.1.241": "displayName",
	"displayName":                       "urn:oid:2.16.840.1.113730.3.1.241",
}

// ResolveAttributeName resolves a SAML attribute name to both its OID and
// friendly name. Unknown names pass through unchanged for both.
//
// This is a pure function with no side effects or I/O.
func ResolveAttributeName(name string) (oid, friendlyName string) {
	if name == "" {
		return "", ""
	}
	if resolved, ok := oidRegistry[name]; ok {
		if strings.HasPrefix(name, "urn:oid:") {
			return name, resolved
		}
		return resolved, name
	}
	return name, name
}

// AttributeValues extracts an assertion's attribute statement as an ordered
// name to value-list mapping. Order follows the statement's document order.
// Both the raw name and the resolved friendly name are usable as lookup keys
// in the returned map; the Names slice preserves order of first appearance.
type AttributeValues struct {
	Names  []string
	values map[string][]string
}

// Get returns the values for an attribute name, OID or friendly.
func (a *AttributeValues) Get(name string) []string {
	if a == nil || a.values == nil {
		return nil
	}
	if vals, ok := a.values[name]; ok {
		return vals
	}
	oid, friendly := ResolveAttributeName(name)
	if vals, ok := a.values[oid]; ok {
		return vals
	}
	return a.values[friendly]
}

// First returns the first value for an attribute name, or empty string.
func (a *AttributeValues) First(name string) string {
	vals := a.Get(name)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// Map returns a flat copy keyed by the original statement names.
func (a *AttributeValues) Map() map[string][]string {
	if a == nil {
		return nil
	}
	out := make(map[string][]string, len(a.values))
	for k, v := range a.values {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// ExtractAttributes builds the ordered attribute mapping from an assertion's
// attribute statement. A nil statement yields an empty, usable result.
func ExtractAttributes(stmt *AttributeStatement) *AttributeValues {
	out := &AttributeValues{values: make(map[string][]string)}
	if stmt == nil {
		return out
	}
	for _, attr := range stmt.Attributes {
		name := attr.Name
		if name == "" {
			name = attr.FriendlyName
		}
		if name == "" {
			continue
		}
		if _, seen := out.values[name]; !seen {
			out.Names = append(out.Names, name)
		}
		out.values[name] = append(out.values[name], attr.Values...)
	}
	return out
}

// AttributeMapping is one row of the data-driven attribute mapping table:
// which source attribute feeds a target name, with an optional transform
// and default when the source is missing.
type AttributeMapping struct {
	// Source is the SAML attribute name or OID to read.
	Source string

	// Target is the local name the value is stored under.
	Target string

	// Transform is applied to each value: "", "lowercase" or "uppercase".
	Transform string

	// Default is used when the source attribute is absent. Empty means
	// the target is simply omitted.
	Default string
}

// ApplyMappings projects assertion attributes through a mapping table.
// Unknown transforms are treated as identity.
func ApplyMappings(attrs *AttributeValues, mappings []AttributeMapping) map[string][]string {
	out := make(map[string][]string, len(mappings))
	for _, m := range mappings {
		vals := attrs.Get(m.Source)
		if len(vals) == 0 {
			if m.Default != "" {
				out[m.Target] = []string{m.Default}
			}
			continue
		}
		mapped := make([]string, len(vals))
		for i, v := range vals {
			switch m.Transform {
			case "lowercase":
				mapped[i] = strings.ToLower(v)
			case "uppercase":
				mapped[i] = strings.ToUpper(v)
			default:
				mapped[i] = v
			}
		}
		out[m.Target] = mapped
	}
	return out
}
