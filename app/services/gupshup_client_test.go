package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udyogsetu/messaging-core/config"
	"github.com/udyogsetu/messaging-core/models"
)

func newTestGupshupClient(baseURL string) *GupshupClient {
	return NewGupshupClient(config.GupshupConfig{
		APIKey:        "api-key",
		AppID:         "app-42",
		AppName:       "udyogsetu",
		SourceNumber:  "919800000001",
		WebhookSecret: "hook-secret",
		BaseURL:       baseURL,
	})
}

func gupshupSign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestGupshupVerifyWebhookSignature(t *testing.T) {
	client := newTestGupshupClient("")
	body := []byte(`{"type":"message-event"}`)

	valid := WebhookRequest{RawBody: body, Signature: gupshupSign("hook-secret", body)}
	assert.True(t, client.VerifyWebhookSignature(valid))

	tampered := WebhookRequest{RawBody: []byte(`{"type":"evil"}`), Signature: valid.Signature}
	assert.False(t, client.VerifyWebhookSignature(tampered))

	assert.False(t, client.VerifyWebhookSignature(WebhookRequest{RawBody: body}))

	noSecret := NewGupshupClient(config.GupshupConfig{APIKey: "k", AppID: "a", SourceNumber: "s"})
	assert.False(t, noSecret.VerifyWebhookSignature(valid))
}

func TestGupshupNormalizeMessageEvent(t *testing.T) {
	client := newTestGupshupClient("")

	payload := []byte(`{
		"type": "message-event",
		"payload": {"id": "gbm-1", "gsId": "gs-1", "type": "delivered", "destination": "919812345678", "ts": 1724380800000}
	}`)
	events := client.NormalizeWebhookEvents(payload)
	require.Len(t, events, 1)
	assert.Equal(t, EventMessageDelivered, events[0].Type)
	// gsId matches the id returned at send time, so it wins over id
	assert.Equal(t, "gs-1", events[0].ProviderMessageID)
	require.NotNil(t, events[0].Timestamp)
	assert.Equal(t, time.Unix(1724380800, 0).UTC(), *events[0].Timestamp)

	// Without gsId the payload id is used; enqueued counts as sent
	payload = []byte(`{"type": "message-event", "payload": {"id": "gbm-2", "type": "enqueued"}}`)
	events = client.NormalizeWebhookEvents(payload)
	require.Len(t, events, 1)
	assert.Equal(t, EventMessageSent, events[0].Type)
	assert.Equal(t, "gbm-2", events[0].ProviderMessageID)
	assert.Nil(t, events[0].Timestamp)
}

func TestGupshupNormalizeFailedEvent(t *testing.T) {
	client := newTestGupshupClient("")

	payload := []byte(`{
		"type": "message-event",
		"payload": {"id": "gbm-3", "type": "failed", "payload": {"code": "1002", "reason": "Number does not exist on WhatsApp"}}
	}`)
	events := client.NormalizeWebhookEvents(payload)
	require.Len(t, events, 1)
	assert.Equal(t, EventMessageFailed, events[0].Type)
	assert.Equal(t, "1002", events[0].ErrorCode)
	assert.Equal(t, "Number does not exist on WhatsApp", events[0].ErrorMessage)
}

func TestGupshupNormalizeTemplateEvent(t *testing.T) {
	client := newTestGupshupClient("")

	approved := []byte(`{"type": "template-event", "payload": {"id": "tpl-9", "status": "APPROVED"}}`)
	events := client.NormalizeWebhookEvents(approved)
	require.Len(t, events, 1)
	assert.Equal(t, EventTemplateApproved, events[0].Type)
	assert.Equal(t, "tpl-9", events[0].ProviderTemplateID)

	rejected := []byte(`{"type": "template-event", "payload": {"id": "tpl-9", "status": "REJECTED", "reason": "promotional content"}}`)
	events = client.NormalizeWebhookEvents(rejected)
	require.Len(t, events, 1)
	assert.Equal(t, EventTemplateRejected, events[0].Type)
	assert.Equal(t, "promotional content", events[0].RejectionReason)
}

func TestGupshupNormalizeMalformedPayload(t *testing.T) {
	client := newTestGupshupClient("")

	for _, payload := range [][]byte{
		[]byte(`not json`),
		[]byte(`{"type":"user-event","payload":{}}`),
	} {
		events := client.NormalizeWebhookEvents(payload)
		require.Len(t, events, 1)
		assert.Equal(t, EventUnknown, events[0].Type)
	}
}

func TestGupshupSendStaysPendingUntilWebhook(t *testing.T) {
	var captured url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wa/api/v1/template/msg", r.URL.Path)
		assert.Equal(t, "api-key", r.Header.Get("apikey"))
		require.NoError(t, r.ParseForm())
		captured = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"submitted","messageId":"gs-msg-1"}`))
	}))
	defer srv.Close()

	client := newTestGupshupClient(srv.URL)
	result := client.SendTemplateMessage(context.Background(), SendTemplateInput{
		To:                 "+919812345678",
		ProviderTemplateID: "tpl-9",
		Params:             []string{"Asha"},
	})

	assert.True(t, result.Success)
	assert.Equal(t, "gs-msg-1", result.ProviderMessageID)
	// Gupshup only acknowledges submission; sent arrives on the webhook
	assert.Equal(t, models.MessageStatusPending, result.Status)

	assert.Equal(t, "whatsapp", captured.Get("channel"))
	assert.Equal(t, "919800000001", captured.Get("source"))
	assert.Equal(t, "919812345678", captured.Get("destination"))
	assert.JSONEq(t, `{"id":"tpl-9","params":["Asha"]}`, captured.Get("template"))
}

func TestGupshupSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","message":"Invalid Destination"}`))
	}))
	defer srv.Close()

	client := newTestGupshupClient(srv.URL)
	result := client.SendTextMessage(context.Background(), SendTextInput{To: "+919812345678", Text: "hi"})

	assert.False(t, result.Success)
	assert.Equal(t, models.MessageStatusFailed, result.Status)
	assert.Equal(t, "Invalid Destination", result.ErrorMessage)
}

func TestGupshupSubmitTemplate(t *testing.T) {
	var captured url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wa/app/app-42/template", r.URL.Path)
		require.NoError(t, r.ParseForm())
		captured = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","template":{"id":"tpl-10","status":"PENDING"}}`))
	}))
	defer srv.Close()

	client := newTestGupshupClient(srv.URL)
	result := client.SubmitTemplate(context.Background(), TemplateSubmitParams{
		Name:             "order_update",
		Category:         models.TemplateCategoryUtility,
		Language:         "en",
		BodyText:         "Hi {{1}}, order {{2}} shipped.",
		PlaceholderCount: 2,
		SampleParams:     []string{"Asha", "ORD-1"},
	})

	assert.True(t, result.Success)
	assert.Equal(t, "tpl-10", result.ProviderTemplateID)
	assert.Equal(t, models.TemplateStatusPending, result.Status)

	assert.Equal(t, "order_update", captured.Get("elementName"))
	assert.Equal(t, "UTILITY", captured.Get("category"))
	// Samples substituted in brackets per the vendor's example format
	assert.Equal(t, "Hi [Asha], order [ORD-1] shipped.", captured.Get("example"))
}

func TestGupshupGetTemplateStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wa/app/app-42/template/tpl-10", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","template":{"id":"tpl-10","status":"ENABLED"}}`))
	}))
	defer srv.Close()

	client := newTestGupshupClient(srv.URL)
	result := client.GetTemplateStatus(context.Background(), "tpl-10")

	assert.True(t, result.Success)
	assert.Equal(t, models.TemplateStatusApproved, result.Status)
}
