package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udyogsetu/messaging-core/config"
	"github.com/udyogsetu/messaging-core/models"
)

func newTestTwilioClient(baseURL string) *TwilioClient {
	return NewTwilioClient(config.TwilioConfig{
		AccountSID:     "AC00000000000000000000000000000000",
		AuthToken:      "auth-token",
		FromNumber:     "+14155550100",
		APIBaseURL:     baseURL,
		ContentBaseURL: baseURL,
	})
}

func twilioSign(authToken, requestURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	payload := requestURL
	for _, k := range keys {
		payload += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestTwilioVerifyWebhookSignature(t *testing.T) {
	client := newTestTwilioClient("")
	requestURL := "https://api.example.com/webhooks/twilio"
	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("MessageStatus", "delivered")

	valid := WebhookRequest{
		RequestURL: requestURL,
		Form:       form,
		Signature:  twilioSign("auth-token", requestURL, form),
	}
	assert.True(t, client.VerifyWebhookSignature(valid))

	// Tampered form field fails
	tamperedForm := url.Values{}
	tamperedForm.Set("MessageSid", "SM999")
	tamperedForm.Set("MessageStatus", "delivered")
	tampered := valid
	tampered.Form = tamperedForm
	assert.False(t, client.VerifyWebhookSignature(tampered))

	// Different URL fails
	wrongURL := valid
	wrongURL.RequestURL = "https://api.example.com/other"
	assert.False(t, client.VerifyWebhookSignature(wrongURL))

	// Missing signature or URL fails closed
	assert.False(t, client.VerifyWebhookSignature(WebhookRequest{RequestURL: requestURL, Form: form}))
	assert.False(t, client.VerifyWebhookSignature(WebhookRequest{Form: form, Signature: valid.Signature}))

	unconfigured := NewTwilioClient(config.TwilioConfig{})
	assert.False(t, unconfigured.VerifyWebhookSignature(valid))
}

func TestTwilioNormalizeStatusCallback(t *testing.T) {
	client := newTestTwilioClient("")

	cases := []struct {
		status string
		want   NormalizedEventType
	}{
		{"sent", EventMessageSent},
		{"sending", EventMessageSent},
		{"delivered", EventMessageDelivered},
		{"read", EventMessageRead},
		{"failed", EventMessageFailed},
		{"undelivered", EventMessageFailed},
		{"queued", EventUnknown},
	}
	for _, tc := range cases {
		form := url.Values{}
		form.Set("MessageSid", "SM123")
		form.Set("MessageStatus", tc.status)

		events := client.NormalizeWebhookEvents([]byte(form.Encode()))
		require.Len(t, events, 1, "status %s", tc.status)
		assert.Equal(t, tc.want, events[0].Type, "status %s", tc.status)
		assert.Equal(t, "SM123", events[0].ProviderMessageID)
	}
}

func TestTwilioNormalizeFailureCarriesErrorFields(t *testing.T) {
	client := newTestTwilioClient("")

	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("MessageStatus", "undelivered")
	form.Set("ErrorCode", "63016")
	form.Set("ErrorMessage", "Failed to send freeform message")

	events := client.NormalizeWebhookEvents([]byte(form.Encode()))
	require.Len(t, events, 1)
	assert.Equal(t, EventMessageFailed, events[0].Type)
	assert.Equal(t, "63016", events[0].ErrorCode)
	assert.Equal(t, "Failed to send freeform message", events[0].ErrorMessage)
}

func TestTwilioNormalizeMalformedPayload(t *testing.T) {
	client := newTestTwilioClient("")

	events := client.NormalizeWebhookEvents([]byte("MessageStatus=delivered"))
	require.Len(t, events, 1)
	assert.Equal(t, EventUnknown, events[0].Type)

	events = client.NormalizeWebhookEvents([]byte("%zz"))
	require.Len(t, events, 1)
	assert.Equal(t, EventUnknown, events[0].Type)
}

func TestTwilioSendTemplateMessage(t *testing.T) {
	var captured url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Accounts/AC00000000000000000000000000000000/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC00000000000000000000000000000000", user)
		assert.Equal(t, "auth-token", pass)
		require.NoError(t, r.ParseForm())
		captured = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM777","status":"queued"}`))
	}))
	defer srv.Close()

	client := newTestTwilioClient(srv.URL)
	result := client.SendTemplateMessage(context.Background(), SendTemplateInput{
		To:                 "+5511987654321",
		ProviderTemplateID: "HX0123",
		Params:             []string{"Paulo", "ORD-2"},
	})

	assert.True(t, result.Success)
	assert.Equal(t, "SM777", result.ProviderMessageID)
	// Queued acceptance stays pending until the status callback
	assert.Equal(t, models.MessageStatusPending, result.Status)

	assert.Equal(t, "whatsapp:+5511987654321", captured.Get("To"))
	assert.Equal(t, "whatsapp:+14155550100", captured.Get("From"))
	assert.Equal(t, "HX0123", captured.Get("ContentSid"))
	assert.JSONEq(t, `{"1":"Paulo","2":"ORD-2"}`, captured.Get("ContentVariables"))
}

func TestTwilioSendUsesMappingSenderNumber(t *testing.T) {
	var captured url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		captured = r.PostForm
		_, _ = w.Write([]byte(`{"sid":"SM778","status":"sent"}`))
	}))
	defer srv.Close()

	client := newTestTwilioClient(srv.URL)
	result := client.SendTextMessage(context.Background(), SendTextInput{
		To:           "+5215512345678",
		Text:         "hola",
		SenderNumber: "+5215500000001",
	})

	assert.True(t, result.Success)
	assert.Equal(t, models.MessageStatusSent, result.Status)
	assert.Equal(t, "whatsapp:+5215500000001", captured.Get("From"))
}

func TestTwilioSendErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' phone number"}`))
	}))
	defer srv.Close()

	client := newTestTwilioClient(srv.URL)
	result := client.SendTextMessage(context.Background(), SendTextInput{To: "+15005550001", Text: "hi"})

	assert.False(t, result.Success)
	assert.Equal(t, "21211", result.ErrorCode)
	assert.Equal(t, "Invalid 'To' phone number", result.ErrorMessage)
}

func TestTwilioSubmitTemplate(t *testing.T) {
	var contentCalls, approvalCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Content":
			contentCalls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"sid":"HX0456"}`))
		case "/Content/HX0456/ApprovalRequests/whatsapp":
			approvalCalls++
			_, _ = w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestTwilioClient(srv.URL)
	result := client.SubmitTemplate(context.Background(), TemplateSubmitParams{
		Name:             "order_update",
		Category:         models.TemplateCategoryUtility,
		Language:         "en",
		BodyText:         "Hi {{1}}, order {{2}} shipped.",
		PlaceholderCount: 2,
		SampleParams:     []string{"Paulo", "ORD-2"},
	})

	assert.True(t, result.Success)
	assert.Equal(t, "HX0456", result.ProviderTemplateID)
	// Twilio review always starts pending
	assert.Equal(t, models.TemplateStatusPending, result.Status)
	assert.Equal(t, 1, contentCalls)
	assert.Equal(t, 1, approvalCalls)
}

func TestTwilioGetTemplateStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Content/HX0456/ApprovalRequests", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"whatsapp":{"status":"approved"}}`))
	}))
	defer srv.Close()

	client := newTestTwilioClient(srv.URL)
	result := client.GetTemplateStatus(context.Background(), "HX0456")

	assert.True(t, result.Success)
	assert.Equal(t, models.TemplateStatusApproved, result.Status)
}
