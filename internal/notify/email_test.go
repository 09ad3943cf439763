package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/sms-email-bridge/internal/bridge"
)

var testEmail = bridge.OutboundEmail{
	To:      "alice@example.com",
	From:    "14155551213@sms.example.com",
	Subject: "Text message",
	Body:    "hello from sms\n",
}

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	if sender := NewSendGridSender(SendGridConfig{}, nil); sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestSendGridSender_SendEmail(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer SG.test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewSendGridSender(SendGridConfig{APIKey: "SG.test", Host: srv.URL}, nil)
	require.NotNil(t, sender)
	require.NoError(t, sender.SendEmail(context.Background(), testEmail))

	from := captured["from"].(map[string]any)
	assert.Equal(t, "14155551213@sms.example.com", from["email"])
	assert.Equal(t, "Text message", captured["subject"])
	personalizations := captured["personalizations"].([]any)
	to := personalizations[0].(map[string]any)["to"].([]any)[0].(map[string]any)
	assert.Equal(t, "alice@example.com", to["email"])
	content := captured["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "text/plain", content["type"])
	assert.Equal(t, "hello from sms\n", content["value"])
}

func TestSendGridSender_ConcurrentSendsKeepBodiesApart(t *testing.T) {
	var mu sync.Mutex
	mismatches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Personalizations []struct {
				To []struct {
					Email string `json:"email"`
				} `json:"to"`
			} `json:"personalizations"`
			Content []struct {
				Value string `json:"value"`
			} `json:"content"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil ||
			len(payload.Personalizations) == 0 || len(payload.Content) == 0 ||
			payload.Content[0].Value != "body for "+payload.Personalizations[0].To[0].Email {
			mu.Lock()
			mismatches++
			mu.Unlock()
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewSendGridSender(SendGridConfig{APIKey: "SG.test", Host: srv.URL}, nil)
	require.NotNil(t, sender)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := fmt.Sprintf("user%d@example.com", i)
			msg := bridge.OutboundEmail{To: to, From: testEmail.From, Subject: testEmail.Subject, Body: "body for " + to}
			assert.NoError(t, sender.SendEmail(context.Background(), msg))
		}(i)
	}
	wg.Wait()
	assert.Zero(t, mismatches)
}

func TestSendGridSender_RejectedReasons(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"Mocked reply","field":"from"}]}`))
	}))
	defer srv.Close()

	sender := NewSendGridSender(SendGridConfig{APIKey: "SG.test", Host: srv.URL}, nil)
	err := sender.SendEmail(context.Background(), testEmail)

	var perr *bridge.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "SendGrid", perr.Provider)
	assert.Equal(t, http.StatusBadRequest, perr.Status)
	assert.Equal(t, []string{"Mocked reply"}, perr.Reasons)
}

func TestSendGridReasons(t *testing.T) {
	assert.Nil(t, sendGridReasons(" "))
	assert.Equal(t, []string{"plain failure"}, sendGridReasons("plain failure"))
	assert.Equal(t, []string{"a", "b"}, sendGridReasons(`{"errors":[{"message":"a"},{"message":"b"}]}`))
}

func TestSendGridSender_NilClient(t *testing.T) {
	var sender *SendGridSender
	assert.Error(t, sender.SendEmail(context.Background(), testEmail))
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-123")}, nil
}

func TestSESSender_SendEmail(t *testing.T) {
	client := &fakeSES{}
	sender := NewSESSender(client, SESConfig{FromName: "SMS Bridge"}, nil)
	require.NotNil(t, sender)

	require.NoError(t, sender.SendEmail(context.Background(), testEmail))
	assert.Equal(t, "SMS Bridge <14155551213@sms.example.com>", aws.ToString(client.input.FromEmailAddress))
	assert.Equal(t, []string{"alice@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "hello from sms\n", aws.ToString(client.input.Content.Simple.Body.Text.Data))
}

func TestSESSender_Failure(t *testing.T) {
	sender := NewSESSender(&fakeSES{err: errors.New("MessageRejected: Email address is not verified")}, SESConfig{}, nil)

	err := sender.SendEmail(context.Background(), testEmail)
	var perr *bridge.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "SES", perr.Provider)
	assert.Contains(t, perr.Reason(), "not verified")
}

func TestNewSESSender_NilClient(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))
}

func TestBuildEmailSender(t *testing.T) {
	sender, reason := BuildEmailSender(ProviderSelectionConfig{SendGridAPIKey: "SG.test"}, nil)
	require.NotNil(t, sender)
	assert.Empty(t, reason)
	assert.Equal(t, "SendGrid", sender.Name())

	sender, reason = BuildEmailSender(ProviderSelectionConfig{Preference: "sendgrid"}, nil)
	assert.Nil(t, sender)
	assert.Equal(t, "SENDGRID_API_KEY missing", reason)

	sender, _ = BuildEmailSender(ProviderSelectionConfig{Preference: "SES", SESClient: &fakeSES{}}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "SES", sender.Name())

	sender, reason = BuildEmailSender(ProviderSelectionConfig{Preference: "ses"}, nil)
	assert.Nil(t, sender)
	assert.NotEmpty(t, reason)

	sender, _ = BuildEmailSender(ProviderSelectionConfig{Preference: "stub"}, nil)
	require.NotNil(t, sender)
	assert.NoError(t, sender.SendEmail(context.Background(), testEmail))

	_, reason = BuildEmailSender(ProviderSelectionConfig{Preference: "carrier-pigeon"}, nil)
	assert.Contains(t, reason, "unknown email provider")
}
