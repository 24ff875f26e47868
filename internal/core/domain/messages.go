package domain

import (
	"encoding/xml"
	"time"
)

// SAML 2.0 namespace URIs.
const (
	NamespaceAssertion = "urn:oasis:names:tc:SAML:2.0:assertion"
	NamespaceProtocol  = "urn:oasis:names:tc:SAML:2.0:protocol"
	NamespaceMetadata  = "urn:oasis:names:tc:SAML:2.0:metadata"
	NamespaceDSig      = "http://www.w3.org/2000/09/xmldsig#"
)

// SAML 2.0 status code values.
const (
	StatusSuccess       = "urn:oasis:names:tc:SAML:2.0:status:Success"
	StatusRequester     = "urn:oasis:names:tc:SAML:2.0:status:Requester"
	StatusResponder     = "urn:oasis:names:tc:SAML:2.0:status:Responder"
	StatusAuthnFailed   = "urn:oasis:names:tc:SAML:2.0:status:AuthnFailed"
	StatusRequestDenied = "urn:oasis:names:tc:SAML:2.0:status:RequestDenied"
	StatusPartialLogout = "urn:oasis:names:tc:SAML:2.0:status:PartialLogout"
)

// SAML NameID format URIs.
const (
	NameIDFormatUnspecified = "urn:oasis:names:tc:SAML:1.1:nameid-format:unspecified"
	NameIDFormatEmail       = "urn:oasis:names:tc:SAML:1.1:nameid-format:emailAddress"
	NameIDFormatPersistent  = "urn:oasis:names:tc:SAML:2.0:nameid-format:persistent"
	NameIDFormatTransient   = "urn:oasis:names:tc:SAML:2.0:nameid-format:transient"
)

// SubjectConfirmationMethodBearer is the only confirmation method supported
// by the Web Browser SSO profile.
const SubjectConfirmationMethodBearer = "urn:oasis:names:tc:SAML:2.0:cm:bearer"

// SAMLVersion is the protocol version emitted on every message.
const SAMLVersion = "2.0"

// AuthnRequest is a request from an SP to authenticate a principal.
type AuthnRequest struct {
	XMLName                     xml.Name      `xml:"urn:oasis:names:tc:SAML:2.0:protocol AuthnRequest"`
	ID                          string        `xml:",attr"`
	Version                     string        `xml:",attr"`
	IssueInstant                time.Time     `xml:",attr"`
	Destination                 string        `xml:",attr"`
	AssertionConsumerServiceURL string        `xml:",attr"`
	ProtocolBinding             string        `xml:",attr,omitempty"`
	ForceAuthn                  bool          `xml:",attr,omitempty"`
	Issuer                      Issuer        `xml:"urn:oasis:names:tc:SAML:2.0:assertion Issuer"`
	NameIDPolicy                *NameIDPolicy `xml:"urn:oasis:names:tc:SAML:2.0:protocol NameIDPolicy,omitempty"`
	RequestedAuthnContext       *RequestedAuthnContext
}

// Issuer names the entity that produced a message or assertion.
type Issuer struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion Issuer"`
	Format  string   `xml:",attr,omitempty"`
	Value   string   `xml:",chardata"`
}

// NameIDPolicy constrains the NameID format the IdP may return.
type NameIDPolicy struct {
	XMLName     xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:protocol NameIDPolicy"`
	AllowCreate bool     `xml:",attr"`
	Format      string   `xml:"Format,attr,omitempty"`
}

// RequestedAuthnContext asks the IdP for a particular authentication context.
type RequestedAuthnContext struct {
	XMLName              xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:protocol RequestedAuthnContext"`
	Comparison           string   `xml:",attr,omitempty"`
	AuthnContextClassRef []string `xml:"urn:oasis:names:tc:SAML:2.0:assertion AuthnContextClassRef"`
}

// Response wraps one or more assertions returned by an IdP.
type Response struct {
	XMLName            xml.Name  `xml:"urn:oasis:names:tc:SAML:2.0:protocol Response"`
	ID                 string    `xml:",attr"`
	InResponseTo       string    `xml:",attr,omitempty"`
	Version            string    `xml:",attr"`
	IssueInstant       time.Time `xml:",attr"`
	Destination        string    `xml:",attr,omitempty"`
	Issuer             *Issuer   `xml:"urn:oasis:names:tc:SAML:2.0:assertion Issuer"`
	Status             Status    `xml:"urn:oasis:names:tc:SAML:2.0:protocol Status"`
	Assertion          *Assertion
	EncryptedAssertion *EncryptedAssertion
}

// Status carries the outcome of a request.
type Status struct {
	XMLName    xml.Name   `xml:"urn:oasis:names:tc:SAML:2.0:protocol Status"`
	StatusCode StatusCode `xml:"urn:oasis:names:tc:SAML:2.0:protocol StatusCode"`
}

// StatusCode holds the status value URI.
type StatusCode struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:protocol StatusCode"`
	Value   string   `xml:",attr"`
}

// Success reports whether the status is the SAML Success code.
func (s Status) Success() bool {
	return s.StatusCode.Value == StatusSuccess
}

// EncryptedAssertion holds an assertion encrypted for the recipient.
// The inner XML is an xmlenc EncryptedData structure.
type EncryptedAssertion struct {
	XMLName       xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion EncryptedAssertion"`
	EncryptedData []byte   `xml:",innerxml"`
}

// Assertion is a signed statement about a subject's authentication
// and attributes.
type Assertion struct {
	XMLName            xml.Name  `xml:"urn:oasis:names:tc:SAML:2.0:assertion Assertion"`
	ID                 string    `xml:",attr"`
	Version            string    `xml:",attr"`
	IssueInstant       time.Time `xml:",attr"`
	Issuer             Issuer    `xml:"urn:oasis:names:tc:SAML:2.0:assertion Issuer"`
	Subject            *Subject
	Conditions         *Conditions
	AuthnStatement     *AuthnStatement
	AttributeStatement *AttributeStatement
}

// Subject identifies the principal the assertion is about.
type Subject struct {
	XMLName              xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion Subject"`
	NameID               *NameID
	SubjectConfirmations []SubjectConfirmation `xml:"SubjectConfirmation"`
}

// NameID is the subject identifier.
type NameID struct {
	XMLName         xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion NameID"`
	Format          string   `xml:",attr,omitempty"`
	NameQualifier   string   `xml:",attr,omitempty"`
	SPNameQualifier string   `xml:",attr,omitempty"`
	Value           string   `xml:",chardata"`
}

// SubjectConfirmation states how the subject may be confirmed.
type SubjectConfirmation struct {
	XMLName                 xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion SubjectConfirmation"`
	Method                  string   `xml:",attr"`
	SubjectConfirmationData *SubjectConfirmationData
}

// SubjectConfirmationData carries the bearer confirmation constraints.
type SubjectConfirmationData struct {
	XMLName      xml.Name  `xml:"urn:oasis:names:tc:SAML:2.0:assertion SubjectConfirmationData"`
	InResponseTo string    `xml:",attr,omitempty"`
	NotOnOrAfter time.Time `xml:",attr"`
	Recipient    string    `xml:",attr,omitempty"`
	Address      string    `xml:",attr,omitempty"`
}

// Conditions bound the validity of an assertion.
type Conditions struct {
	XMLName              xml.Name              `xml:"urn:oasis:names:tc:SAML:2.0:assertion Conditions"`
	NotBefore            time.Time             `xml:",attr"`
	NotOnOrAfter         time.Time             `xml:",attr"`
	AudienceRestrictions []AudienceRestriction `xml:"AudienceRestriction"`
}

// AudienceRestriction limits which relying parties may consume the assertion.
type AudienceRestriction struct {
	XMLName   xml.Name   `xml:"urn:oasis:names:tc:SAML:2.0:assertion AudienceRestriction"`
	Audiences []Audience `xml:"Audience"`
}

// Audience is a single permitted relying party entity ID.
type Audience struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion Audience"`
	Value   string   `xml:",chardata"`
}

// AudienceValues flattens all audience restrictions into entity ID strings.
func (c *Conditions) AudienceValues() []string {
	var out []string
	for _, ar := range c.AudienceRestrictions {
		for _, a := range ar.Audiences {
			out = append(out, a.Value)
		}
	}
	return out
}

// AuthnStatement records the act of authentication at the IdP.
type AuthnStatement struct {
	XMLName      xml.Name  `xml:"urn:oasis:names:tc:SAML:2.0:assertion AuthnStatement"`
	AuthnInstant time.Time `xml:",attr"`
	SessionIndex string    `xml:",attr,omitempty"`
	AuthnContext AuthnContext
}

// AuthnContext describes how the principal was authenticated.
type AuthnContext struct {
	XMLName              xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion AuthnContext"`
	AuthnContextClassRef string   `xml:"AuthnContextClassRef"`
}

// AttributeStatement carries the subject's attributes in document order.
type AttributeStatement struct {
	XMLName    xml.Name    `xml:"urn:oasis:names:tc:SAML:2.0:assertion AttributeStatement"`
	Attributes []Attribute `xml:"Attribute"`
}

// Attribute is a named, multi-valued subject attribute.
type Attribute struct {
	XMLName      xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion Attribute"`
	Name         string   `xml:",attr"`
	NameFormat   string   `xml:",attr,omitempty"`
	FriendlyName string   `xml:",attr,omitempty"`
	Values       []string `xml:"AttributeValue"`
}

// LogoutRequest asks a session participant to terminate the subject's session.
type LogoutRequest struct {
	XMLName      xml.Name  `xml:"urn:oasis:names:tc:SAML:2.0:protocol LogoutRequest"`
	ID           string    `xml:",attr"`
	Version      string    `xml:",attr"`
	IssueInstant time.Time `xml:",attr"`
	Destination  string    `xml:",attr,omitempty"`
	Issuer       Issuer    `xml:"urn:oasis:names:tc:SAML:2.0:assertion Issuer"`
	NameID       NameID    `xml:"urn:oasis:names:tc:SAML:2.0:assertion NameID"`
	SessionIndex []string  `xml:"urn:oasis:names:tc:SAML:2.0:protocol SessionIndex"`
}

// LogoutResponse reports the outcome of a LogoutRequest.
type LogoutResponse struct {
	XMLName      xml.Name  `xml:"urn:oasis:names:tc:SAML:2.0:protocol LogoutResponse"`
	ID           string    `xml:",attr"`
	InResponseTo string    `xml:",attr,omitempty"`
	Version      string    `xml:",attr"`
	IssueInstant time.Time `xml:",attr"`
	Destination  string    `xml:",attr,omitempty"`
	Issuer       Issuer    `xml:"urn:oasis:names:tc:SAML:2.0:assertion Issuer"`
	Status       Status    `xml:"urn:oasis:names:tc:SAML:2.0:protocol Status"`
}

// PendingRequest tracks an issued AuthnRequest until its response arrives or
// it times out. Consumed at most once.
type PendingRequest struct {
	// RequestID is the AuthnRequest ID the response must reference.
	RequestID string

	// RelayState restores the caller's context after authentication.
	RelayState string

	// ResourceURL is the originally requested protected resource.
	ResourceURL string

	// IdPEntityID is the IdP the request was sent to.
	IdPEntityID string

	CreatedAt time.Time
	ExpiresAt time.Time
}
