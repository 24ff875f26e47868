//go:build unit

package domain

import (
	"reflect"
	"testing"
)

func TestResolveAttributeName_KnownOID(t *testing.T) {
	oid, friendly := ResolveAttributeName("urn:oid:0.9.2342.19200300.100.1.3")
	if oid != "urn:oid:0.9.2342.19200300.100.1.3" {
		t.Errorf("oid = %q", oid)
	}
	if friendly != "mail" {
		t.Errorf("friendly = %q, want mail", friendly)
	}
}

func TestResolveAttributeName_KnownFriendlyName(t *testing.T) {
	oid, friendly := ResolveAttributeName("eduPersonPrincipalName")
	if oid != "urn:oid:1.3.6.1.4.1.5923.1.1.1.6" {
		t.Errorf("oid = %q", oid)
	}
	if friendly != "eduPersonPrincipalName" {
		t.Errorf("friendly = %q", friendly)
	}
}

func TestResolveAttributeName_UnknownPassesThrough(t *testing.T) {
	oid, friendly := ResolveAttributeName("customAttribute")
	if oid != "customAttribute" || friendly != "customAttribute" {
		t.Errorf("unknown name should pass through, got (%q, %q)", oid, friendly)
	}
}

func TestExtractAttributes_OrderAndLookup(t *testing.T) {
	stmt := &AttributeStatement{
		Attributes: []Attribute{
			{Name: "urn:oid:0.9.2342.19200300.100.1.3", FriendlyName: "mail", Values: []string{"alice@example.com"}},
			{Name: "urn:oid:2.5.4.42", Values: []string{"Alice"}},
			{Name: "groups", Values: []string{"staff", "admin"}},
		},
	}

	attrs := ExtractAttributes(stmt)

	wantNames := []string{"urn:oid:0.9.2342.19200300.100.1.3", "urn:oid:2.5.4.42", "groups"}
	if !reflect.DeepEqual(attrs.Names, wantNames) {
		t.Errorf("Names = %v, want %v", attrs.Names, wantNames)
	}

	// Lookup works by raw name and by friendly name.
	if got := attrs.First("urn:oid:0.9.2342.19200300.100.1.3"); got != "alice@example.com" {
		t.Errorf("First(oid) = %q", got)
	}
	if got := attrs.First("mail"); got != "alice@example.com" {
		t.Errorf("First(mail) = %q", got)
	}
	if got := attrs.Get("groups"); !reflect.DeepEqual(got, []string{"staff", "admin"}) {
		t.Errorf("Get(groups) = %v", got)
	}
}

func TestExtractAttributes_NilStatement(t *testing.T) {
	attrs := ExtractAttributes(nil)
	if attrs == nil {
		t.Fatal("nil statement should yield a usable empty result")
	}
	if got := attrs.First("anything"); got != "" {
		t.Errorf("First on empty = %q, want empty", got)
	}
}

func TestApplyMappings(t *testing.T) {
	stmt := &AttributeStatement{
		Attributes: []Attribute{
			{Name: "urn:oid:0.9.2342.19200300.100.1.3", Values: []string{"Alice@Example.COM"}},
			{Name: "role", Values: []string{"admin", "user"}},
		},
	}
	attrs := ExtractAttributes(stmt)

	mappings := []AttributeMapping{
		{Source: "mail", Target: "email", Transform: "lowercase"},
		{Source: "role", Target: "roles", Transform: "uppercase"},
		{Source: "department", Target: "dept", Default: "unknown"},
		{Source: "missing", Target: "dropped"},
	}

	got := ApplyMappings(attrs, mappings)

	if !reflect.DeepEqual(got["email"], []string{"alice@example.com"}) {
		t.Errorf("email = %v", got["email"])
	}
	if !reflect.DeepEqual(got["roles"], []string{"ADMIN", "USER"}) {
		t.Errorf("roles = %v", got["roles"])
	}
	if !reflect.DeepEqual(got["dept"], []string{"unknown"}) {
		t.Errorf("dept = %v, want default applied", got["dept"])
	}
	if _, ok := got["dropped"]; ok {
		t.Error("missing source without default should omit the target")
	}
}

func TestApplyMappings_UnknownTransformIsIdentity(t *testing.T) {
	stmt := &AttributeStatement{
		Attributes: []Attribute{{Name: "x", Values: []string{"MiXeD"}}},
	}
	got := ApplyMappings(ExtractAttributes(stmt), []AttributeMapping{
		{Source: "x", Target: "y", Transform: "reverse"},
	})
	if !reflect.DeepEqual(got["y"], []string{"MiXeD"}) {
		t.Errorf("unknown transform should leave values unchanged, got %v", got["y"])
	}
}
