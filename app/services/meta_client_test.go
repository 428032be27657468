package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udyogsetu/messaging-core/config"
	"github.com/udyogsetu/messaging-core/models"
)

func newTestMetaClient(baseURL string) *MetaClient {
	return NewMetaClient(config.MetaConfig{
		AccessToken:       "test-token",
		PhoneNumberID:     "123456789",
		BusinessAccountID: "987654321",
		AppSecret:         "app-secret",
		VerifyToken:       "verify-me",
		BaseURL:           baseURL,
	})
}

func metaSign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestMetaVerifyWebhookSignature(t *testing.T) {
	client := newTestMetaClient("")
	body := []byte(`{"object":"whatsapp_business_account"}`)

	// Valid signature passes
	valid := WebhookRequest{RawBody: body, Signature: metaSign("app-secret", body)}
	assert.True(t, client.VerifyWebhookSignature(valid))

	// Tampered body fails
	tampered := WebhookRequest{RawBody: []byte(`{"object":"evil"}`), Signature: metaSign("app-secret", body)}
	assert.False(t, client.VerifyWebhookSignature(tampered))

	// Wrong secret fails
	wrongKey := WebhookRequest{RawBody: body, Signature: metaSign("other-secret", body)}
	assert.False(t, client.VerifyWebhookSignature(wrongKey))

	// Empty signature fails
	assert.False(t, client.VerifyWebhookSignature(WebhookRequest{RawBody: body}))

	// No configured secret fails closed
	unconfigured := NewMetaClient(config.MetaConfig{AccessToken: "t", PhoneNumberID: "p"})
	assert.False(t, unconfigured.VerifyWebhookSignature(valid))
}

func TestMetaVerifyChallengeToken(t *testing.T) {
	client := newTestMetaClient("")

	assert.True(t, client.VerifyChallengeToken("verify-me"))
	assert.False(t, client.VerifyChallengeToken("guess"))
	assert.False(t, client.VerifyChallengeToken(""))

	// An empty configured token never matches
	unconfigured := NewMetaClient(config.MetaConfig{})
	assert.False(t, unconfigured.VerifyChallengeToken(""))
}

func TestMetaNormalizeStatusCallback(t *testing.T) {
	client := newTestMetaClient("")

	payload := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "entry-1",
			"changes": [{
				"field": "messages",
				"value": {
					"statuses": [
						{"id": "wamid.AAA", "status": "delivered", "timestamp": "1724380800"},
						{"id": "wamid.BBB", "status": "failed", "timestamp": "1724380900",
						 "errors": [{"code": 131026, "title": "Undeliverable", "message": "Message undeliverable"}]}
					]
				}
			}]
		}]
	}`)

	events := client.NormalizeWebhookEvents(payload)
	require.Len(t, events, 2)

	assert.Equal(t, EventMessageDelivered, events[0].Type)
	assert.Equal(t, "wamid.AAA", events[0].ProviderMessageID)
	require.NotNil(t, events[0].Timestamp)
	assert.Equal(t, time.Unix(1724380800, 0).UTC(), *events[0].Timestamp)

	assert.Equal(t, EventMessageFailed, events[1].Type)
	assert.Equal(t, "131026", events[1].ErrorCode)
	assert.Equal(t, "Message undeliverable", events[1].ErrorMessage)
}

func TestMetaNormalizeFailedStatusFallsBackToTitle(t *testing.T) {
	client := newTestMetaClient("")

	payload := []byte(`{
		"entry": [{
			"changes": [{
				"field": "messages",
				"value": {"statuses": [{"id": "wamid.CCC", "status": "failed",
					"errors": [{"code": 470, "title": "Re-engagement message"}]}]}
			}]
		}]
	}`)

	events := client.NormalizeWebhookEvents(payload)
	require.Len(t, events, 1)
	assert.Equal(t, "Re-engagement message", events[0].ErrorMessage)
}

func TestMetaNormalizeTemplateStatusUpdate(t *testing.T) {
	client := newTestMetaClient("")

	approved := []byte(`{
		"entry": [{
			"changes": [{
				"field": "message_template_status_update",
				"value": {"event": "APPROVED", "message_template_id": 445566, "message_template_name": "order_update"}
			}]
		}]
	}`)
	events := client.NormalizeWebhookEvents(approved)
	require.Len(t, events, 1)
	assert.Equal(t, EventTemplateApproved, events[0].Type)
	assert.Equal(t, "445566", events[0].ProviderTemplateID)
	assert.Equal(t, "order_update", events[0].TemplateName)

	rejected := []byte(`{
		"entry": [{
			"changes": [{
				"field": "message_template_status_update",
				"value": {"event": "REJECTED", "message_template_id": 445567, "message_template_name": "promo_blast", "reason": "INVALID_FORMAT"}
			}]
		}]
	}`)
	events = client.NormalizeWebhookEvents(rejected)
	require.Len(t, events, 1)
	assert.Equal(t, EventTemplateRejected, events[0].Type)
	assert.Equal(t, "INVALID_FORMAT", events[0].RejectionReason)
}

func TestMetaNormalizeMalformedPayload(t *testing.T) {
	client := newTestMetaClient("")

	for _, payload := range [][]byte{
		[]byte(`not json`),
		[]byte(`{}`),
		[]byte(`{"entry":[{"changes":[{"field":"account_update","value":{}}]}]}`),
	} {
		events := client.NormalizeWebhookEvents(payload)
		require.Len(t, events, 1)
		assert.Equal(t, EventUnknown, events[0].Type)
	}
}

func TestMetaSendTemplateMessage(t *testing.T) {
	var captured metaSendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/123456789/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.SENT1"}]}`))
	}))
	defer srv.Close()

	client := newTestMetaClient(srv.URL)
	result := client.SendTemplateMessage(context.Background(), SendTemplateInput{
		To:           "+919812345678",
		TemplateName: "order_update",
		Params:       []string{"Asha", "ORD-1"},
		Language:     "en",
	})

	assert.True(t, result.Success)
	assert.Equal(t, "wamid.SENT1", result.ProviderMessageID)
	assert.Equal(t, models.MessageStatusSent, result.Status)

	// Plus prefix stripped, body params packed into one body component
	assert.Equal(t, "919812345678", captured.To)
	assert.Equal(t, "template", captured.Type)
	require.NotNil(t, captured.Template)
	assert.Equal(t, "order_update", captured.Template.Name)
	require.Len(t, captured.Template.Components, 1)
	assert.Equal(t, "body", captured.Template.Components[0].Type)
	require.Len(t, captured.Template.Components[0].Parameters, 2)
	assert.Equal(t, "Asha", captured.Template.Components[0].Parameters[0].Text)
}

func TestMetaSendErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":131026,"message":"Message undeliverable"}}`))
	}))
	defer srv.Close()

	client := newTestMetaClient(srv.URL)
	result := client.SendTextMessage(context.Background(), SendTextInput{To: "+919812345678", Text: "hi"})

	assert.False(t, result.Success)
	assert.Equal(t, models.MessageStatusFailed, result.Status)
	assert.Equal(t, "131026", result.ErrorCode)
	assert.Equal(t, "Message undeliverable", result.ErrorMessage)
}

func TestMetaSendNotConfigured(t *testing.T) {
	client := NewMetaClient(config.MetaConfig{})
	result := client.SendTextMessage(context.Background(), SendTextInput{To: "+919812345678", Text: "hi"})

	assert.False(t, result.Success)
	assert.Equal(t, "PROVIDER_NOT_CONFIGURED", result.ErrorCode)
}

func TestMetaSubmitTemplate(t *testing.T) {
	var captured metaTemplateSubmitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/987654321/message_templates", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"tpl-777","status":"PENDING"}`))
	}))
	defer srv.Close()

	client := newTestMetaClient(srv.URL)
	result := client.SubmitTemplate(context.Background(), TemplateSubmitParams{
		Name:             "order_update",
		Category:         models.TemplateCategoryUtility,
		Language:         "en",
		HeaderText:       "Order update",
		BodyText:         "Hi {{1}}, your order {{2}} shipped.",
		FooterText:       "Reply STOP to opt out",
		Buttons:          []models.TemplateButton{{Type: "url", Text: "Track", URL: "https://t.example.com"}},
		PlaceholderCount: 2,
		SampleParams:     []string{"Asha", "ORD-1"},
	})

	assert.True(t, result.Success)
	assert.Equal(t, "tpl-777", result.ProviderTemplateID)
	assert.Equal(t, models.TemplateStatusPending, result.Status)

	assert.Equal(t, "UTILITY", captured.Category)
	require.Len(t, captured.Components, 4)
	assert.Equal(t, "HEADER", captured.Components[0].Type)
	assert.Equal(t, "BODY", captured.Components[1].Type)
	require.NotNil(t, captured.Components[1].Example)
	assert.Equal(t, [][]string{{"Asha", "ORD-1"}}, captured.Components[1].Example.BodyText)
	assert.Equal(t, "FOOTER", captured.Components[2].Type)
	assert.Equal(t, "BUTTONS", captured.Components[3].Type)
	assert.Equal(t, "URL", captured.Components[3].Buttons[0].Type)
}

func TestMetaGetTemplateStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tpl-777", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"tpl-777","status":"REJECTED","rejected_reason":"INVALID_FORMAT"}`))
	}))
	defer srv.Close()

	client := newTestMetaClient(srv.URL)
	result := client.GetTemplateStatus(context.Background(), "tpl-777")

	assert.True(t, result.Success)
	assert.Equal(t, models.TemplateStatusRejected, result.Status)
	assert.Equal(t, "INVALID_FORMAT", result.RejectionReason)
}

func TestMetaHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/123456789", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"123456789"}`))
	}))
	defer srv.Close()

	client := newTestMetaClient(srv.URL)
	result := client.HealthCheck(context.Background())
	assert.True(t, result.Healthy)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	result = newTestMetaClient(down.URL).HealthCheck(context.Background())
	assert.False(t, result.Healthy)
	assert.Equal(t, "status 500", result.Error)
}
