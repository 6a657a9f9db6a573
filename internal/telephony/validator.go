package telephony

import (
	"log/slog"
	"net/http"
	"net/url"

	twilioclient "github.com/twilio/twilio-go/client"
)

// Validator checks that an inbound webhook request genuinely came from
// Twilio. Implementations must be safe for concurrent use.
type Validator interface {
	ValidateRequest(r *http.Request) bool
}

// SignatureValidator verifies the X-Twilio-Signature header against the
// account auth token.
type SignatureValidator struct {
	validator twilioclient.RequestValidator
	baseURL   string
}

// NewSignatureValidator creates a validator for webhooks delivered to
// baseURL (scheme and host as Twilio sees them, e.g. behind a proxy).
func NewSignatureValidator(authToken, baseURL string) *SignatureValidator {
	return &SignatureValidator{
		validator: twilioclient.NewRequestValidator(authToken),
		baseURL:   baseURL,
	}
}

// ValidateRequest checks the request signature over the full webhook URL and
// the POST form parameters.
func (v *SignatureValidator) ValidateRequest(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		slog.Warn("SignatureValidator.ValidateRequest: missing signature header", "path", r.URL.Path)
		return false
	}

	if err := r.ParseForm(); err != nil {
		slog.Warn("SignatureValidator.ValidateRequest: failed to parse form", "error", err, "path", r.URL.Path)
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		params[key] = r.PostForm.Get(key)
	}

	fullURL := v.baseURL + r.URL.RequestURI()
	if _, err := url.Parse(fullURL); err != nil {
		slog.Warn("SignatureValidator.ValidateRequest: invalid webhook URL", "error", err, "url", fullURL)
		return false
	}
	ok := v.validator.Validate(fullURL, params, signature)
	if !ok {
		slog.Warn("SignatureValidator.ValidateRequest: signature mismatch", "path", r.URL.Path)
	}
	return ok
}

// NoopValidator accepts every request. Used in development when no auth
// token is configured.
type NoopValidator struct{}

func (NoopValidator) ValidateRequest(*http.Request) bool { return true }
