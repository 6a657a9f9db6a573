package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
)

// twilioSignature computes the X-Twilio-Signature value the way Twilio does:
// HMAC-SHA1 over the full URL plus the sorted form parameters.
func twilioSignature(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	payload := fullURL
	for _, k := range keys {
		payload += k + params.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSignatureValidatorAcceptsSignedRequest(t *testing.T) {
	const authToken = "test-auth-token"
	const baseURL = "https://callpipe.example.com"

	form := url.Values{
		"From":         {"+911234567890"},
		"SpeechResult": {"मुझे नौकरी चाहिए"},
		"Confidence":   {"0.9"},
	}
	req := httptest.NewRequest("POST", "/voice/turn", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", twilioSignature(authToken, baseURL+"/voice/turn", form))

	v := NewSignatureValidator(authToken, baseURL)
	if !v.ValidateRequest(req) {
		t.Error("expected correctly signed request to validate")
	}
}

func TestSignatureValidatorRejectsBadSignature(t *testing.T) {
	form := url.Values{"From": {"+911234567890"}}
	req := httptest.NewRequest("POST", "/voice/turn", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", "bogus")

	v := NewSignatureValidator("test-auth-token", "https://callpipe.example.com")
	if v.ValidateRequest(req) {
		t.Error("expected tampered signature to be rejected")
	}
}

func TestSignatureValidatorRejectsMissingSignature(t *testing.T) {
	req := httptest.NewRequest("POST", "/voice/turn", nil)
	v := NewSignatureValidator("test-auth-token", "https://callpipe.example.com")
	if v.ValidateRequest(req) {
		t.Error("expected unsigned request to be rejected")
	}
}
