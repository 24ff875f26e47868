package samlengine

import (
	"bytes"
	"compress/flate"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/philiph/saml-engine/internal/core/domain"
)

// maxBindingMessageSize bounds decoded SAML messages before any parsing.
const maxBindingMessageSize = 1 << 20 // 1 MiB

// sigAlgRSASHA256 is the signature algorithm URI for redirect-binding queries.
const sigAlgRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"

// RedirectBinding encodes and decodes messages for the HTTP-Redirect binding.
// Per SAML 2.0 Bindings 3.4.4.1 the message is DEFLATE-compressed, base64
// encoded and carried in a query parameter; the optional signature covers the
// ordered concatenation of SAMLRequest/SAMLResponse, RelayState and SigAlg.
type RedirectBinding struct {
	privateKey *rsa.PrivateKey
}

// NewRedirectBinding creates a redirect binding. A nil key disables query
// signing.
func NewRedirectBinding(privateKey *rsa.PrivateKey) *RedirectBinding {
	return &RedirectBinding{privateKey: privateKey}
}

// Encode serializes and deflate+base64 encodes a message.
func (b *RedirectBinding) Encode(message interface{}) (string, error) {
	xmlData, err := xml.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	// Raw deflate, no zlib header.
	var compressed bytes.Buffer
	writer, err := flate.NewWriter(&compressed, flate.BestCompression)
	if err != nil {
		return "", fmt.Errorf("create deflate writer: %w", err)
	}
	if _, err := writer.Write(xmlData); err != nil {
		writer.Close()
		return "", fmt.Errorf("compress message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("compress message: %w", err)
	}

	return base64.StdEncoding.EncodeToString(compressed.Bytes()), nil
}

// Decode reverses Encode, bounding the inflated size before returning.
func (b *RedirectBinding) Decode(encoded string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, domain.BadRequestError("message is not valid base64")
	}

	reader := flate.NewReader(bytes.NewReader(compressed))
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxBindingMessageSize+1))
	if err != nil {
		return nil, domain.BadRequestError("message failed to decompress")
	}
	if len(data) > maxBindingMessageSize {
		return nil, domain.BadRequestError("message exceeds size limit")
	}
	return data, nil
}

// BuildRedirectURL produces the full IdP redirect for a request or response,
// signing the query when a key is configured.
func (b *RedirectBinding) BuildRedirectURL(destination string, message interface{}, relayState string, isRequest bool) (string, error) {
	if err := validateDestinationURL(destination); err != nil {
		return "", err
	}

	encoded, err := b.Encode(message)
	if err != nil {
		return "", err
	}

	paramName := "SAMLResponse"
	if isRequest {
		paramName = "SAMLRequest"
	}

	// Signature input is the ordered concatenation of the encoded query
	// components, not the final URL encoding of the whole query.
	var signatureInput strings.Builder
	signatureInput.WriteString(paramName)
	signatureInput.WriteString("=")
	signatureInput.WriteString(url.QueryEscape(encoded))

	params := url.Values{}
	params.Set(paramName, encoded)

	if relayState != "" {
		signatureInput.WriteString("&RelayState=")
		signatureInput.WriteString(url.QueryEscape(relayState))
		params.Set("RelayState", relayState)
	}

	if b.privateKey != nil {
		signatureInput.WriteString("&SigAlg=")
		signatureInput.WriteString(url.QueryEscape(sigAlgRSASHA256))

		hash := sha256.Sum256([]byte(signatureInput.String()))
		signature, err := rsa.SignPKCS1v15(rand.Reader, b.privateKey, crypto.SHA256, hash[:])
		if err != nil {
			return "", &domain.AppError{
				Code:    domain.ErrCodeCryptoFailure,
				Message: "failed to sign redirect query",
				Cause:   err,
			}
		}

		params.Set("SigAlg", sigAlgRSASHA256)
		params.Set("Signature", base64.StdEncoding.EncodeToString(signature))
	}

	parsedURL, err := url.Parse(destination)
	if err != nil {
		return "", domain.BadRequestError("invalid destination URL")
	}
	parsedURL.RawQuery = params.Encode()
	return parsedURL.String(), nil
}

// VerifyRedirectQuery checks a signed redirect query against the sender's
// certificates. rawQuery is the query string as received, before any
// re-encoding. Returns an error when the query is unsigned.
func VerifyRedirectQuery(rawQuery string, certs []*x509.Certificate) error {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return domain.BadRequestError("malformed query string")
	}
	sigB64 := values.Get("Signature")
	sigAlg := values.Get("SigAlg")
	if sigB64 == "" || sigAlg == "" {
		return &domain.AppError{
			Code:    domain.ErrCodeSignatureInvalid,
			Message: "redirect query is not signed",
		}
	}
	if sigAlg != sigAlgRSASHA256 {
		return &domain.AppError{
			Code:    domain.ErrCodeSignatureInvalid,
			Message: fmt.Sprintf("unsupported signature algorithm %q", sigAlg),
		}
	}
	signature, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return &domain.AppError{
			Code:    domain.ErrCodeSignatureInvalid,
			Message: "signature is not valid base64",
		}
	}

	paramName := "SAMLRequest"
	if values.Get(paramName) == "" {
		paramName = "SAMLResponse"
	}
	var signatureInput strings.Builder
	signatureInput.WriteString(paramName)
	signatureInput.WriteString("=")
	signatureInput.WriteString(url.QueryEscape(values.Get(paramName)))
	if rs := values.Get("RelayState"); rs != "" {
		signatureInput.WriteString("&RelayState=")
		signatureInput.WriteString(url.QueryEscape(rs))
	}
	signatureInput.WriteString("&SigAlg=")
	signatureInput.WriteString(url.QueryEscape(sigAlg))

	hash := sha256.Sum256([]byte(signatureInput.String()))
	for _, cert := range certs {
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			continue
		}
		if rsa.VerifyPKCS1v15(pub, crypto.SHA256, hash[:], signature) == nil {
			return nil
		}
	}
	return &domain.AppError{
		Code:    domain.ErrCodeSignatureInvalid,
		Message: "redirect query signature verification failed",
	}
}

// PostBinding encodes and decodes messages for the HTTP-POST binding:
// base64-encoded XML carried in an auto-submitting form field.
type PostBinding struct{}

// NewPostBinding creates a POST binding.
func NewPostBinding() *PostBinding {
	return &PostBinding{}
}

// Encode serializes and base64 encodes a message. No compression.
func (b *PostBinding) Encode(message interface{}) (string, error) {
	xmlData, err := xml.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	return base64.StdEncoding.EncodeToString(xmlData), nil
}

// EncodeRaw base64 encodes already-serialized XML, preserving any signature.
func (b *PostBinding) EncodeRaw(xmlData []byte) string {
	return base64.StdEncoding.EncodeToString(xmlData)
}

// Decode reverses Encode. Form transports sometimes turn '+' into spaces.
func (b *PostBinding) Decode(encoded string) ([]byte, error) {
	decoded := strings.ReplaceAll(encoded, " ", "+")
	data, err := base64.StdEncoding.DecodeString(decoded)
	if err != nil {
		return nil, domain.BadRequestError("message is not valid base64")
	}
	if len(data) > maxBindingMessageSize {
		return nil, domain.BadRequestError("message exceeds size limit")
	}
	return data, nil
}

// maxRelayStateLen bounds relay state carried through the POST form.
const maxRelayStateLen = 1024

// GeneratePostForm produces the auto-submitting HTML form carrying the
// already-serialized message. The destination is validated and everything
// user-controlled is HTML-escaped.
func (b *PostBinding) GeneratePostForm(destination string, xmlData []byte, relayState string, isRequest bool) (string, error) {
	if err := validateDestinationURL(destination); err != nil {
		return "", err
	}

	paramName := "SAMLResponse"
	if isRequest {
		paramName = "SAMLRequest"
	}
	if len(relayState) > maxRelayStateLen {
		relayState = relayState[:maxRelayStateLen]
	}

	relayStateInput := ""
	if relayState != "" {
		relayStateInput = fmt.Sprintf(`<input type="hidden" name="RelayState" value="%s"/>`, escapeHTML(relayState))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Redirecting</title></head>
<body onload="document.forms[0].submit()">
<noscript><p>JavaScript is disabled. Click the button to continue.</p></noscript>
<form method="POST" action="%s">
<input type="hidden" name="%s" value="%s"/>
%s
<noscript><input type="submit" value="Continue"/></noscript>
</form>
</body>
</html>`, escapeHTML(destination), paramName, b.EncodeRaw(xmlData), relayStateInput), nil
}

// soapEnvelope wraps a message for the SOAP back-channel binding.
type soapEnvelope struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Body    soapBody `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body"`
}

type soapBody struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body"`
	Inner   []byte   `xml:",innerxml"`
}

// WrapSOAP wraps serialized message XML in a SOAP 1.1 envelope for
// back-channel exchanges such as logout propagation.
func WrapSOAP(xmlData []byte) ([]byte, error) {
	env := soapEnvelope{Body: soapBody{Inner: xmlData}}
	out, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal SOAP envelope: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// UnwrapSOAP extracts the body content from a SOAP envelope.
func UnwrapSOAP(data []byte) ([]byte, error) {
	if len(data) > maxBindingMessageSize {
		return nil, domain.BadRequestError("message exceeds size limit")
	}
	var env soapEnvelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, domain.BadRequestError("malformed SOAP envelope")
	}
	body := bytes.TrimSpace(env.Body.Inner)
	if len(body) == 0 {
		return nil, domain.BadRequestError("empty SOAP body")
	}
	return body, nil
}

// escapeHTML escapes HTML special characters for embedding in the POST form.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}

// validateDestinationURL rejects URLs unsafe as a form action or redirect
// target (script schemes, scheme-less absolute URLs).
func validateDestinationURL(dest string) error {
	if dest == "" {
		return domain.BadRequestError("empty destination URL")
	}
	parsed, err := url.Parse(dest)
	if err != nil {
		return domain.BadRequestError("malformed destination URL")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "" && scheme != "http" && scheme != "https" {
		return domain.BadRequestError(fmt.Sprintf("destination scheme %q not allowed", scheme))
	}
	if parsed.Host != "" && scheme == "" {
		return domain.BadRequestError("absolute destination URL missing scheme")
	}
	return nil
}
