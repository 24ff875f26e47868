package samlengine

import (
	"github.com/philiph/saml-engine/internal/core/domain"
)

// Re-export domain message types
type AuthnRequest = domain.AuthnRequest
type Response = domain.Response
type Assertion = domain.Assertion
type LogoutRequest = domain.LogoutRequest
type LogoutResponse = domain.LogoutResponse
type NameIDPolicy = domain.NameIDPolicy
type Status = domain.Status

// Re-export trust and session types
type Entity = domain.Entity
type Endpoint = domain.Endpoint
type EntityCertificate = domain.EntityCertificate
type TrustHealth = domain.TrustHealth
type Session = domain.Session
type BindingContext = domain.BindingContext
type PendingRequest = domain.PendingRequest

// Re-export attribute handling
type AttributeValues = domain.AttributeValues
type AttributeMapping = domain.AttributeMapping

var (
	ExtractAttributes    = domain.ExtractAttributes
	ApplyMappings        = domain.ApplyMappings
	ResolveAttributeName = domain.ResolveAttributeName
	CertThumbprint       = domain.CertThumbprint
)

// Re-export binding URIs
const (
	BindingHTTPRedirect = domain.BindingHTTPRedirect
	BindingHTTPPost     = domain.BindingHTTPPost
	BindingSOAP         = domain.BindingSOAP
)

// Re-export NameID formats
const (
	NameIDFormatUnspecified = domain.NameIDFormatUnspecified
	NameIDFormatEmail       = domain.NameIDFormatEmail
	NameIDFormatPersistent  = domain.NameIDFormatPersistent
	NameIDFormatTransient   = domain.NameIDFormatTransient
)

// Re-export status values
const (
	StatusSuccess       = domain.StatusSuccess
	StatusRequester     = domain.StatusRequester
	StatusResponder     = domain.StatusResponder
	StatusAuthnFailed   = domain.StatusAuthnFailed
	StatusRequestDenied = domain.StatusRequestDenied
	StatusPartialLogout = domain.StatusPartialLogout
)
