package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSinkDelivers(t *testing.T) {
	var (
		gotBody []byte
		gotSig  string
		gotType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Coachwise-Signature")
		gotType = r.Header.Get("X-Coachwise-Event")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "whsec_test")
	ev := Event{
		Type:        "dispute.created",
		RecipientID: "co_11223344",
		Metadata:    map[string]string{"ticketId": "dsp_abc"},
		OccurredAt:  time.Now().UTC(),
	}
	require.NoError(t, sink.Deliver(context.Background(), ev))

	assert.Equal(t, "dispute.created", gotType)
	assert.Contains(t, string(gotBody), "dsp_abc")

	mac := hmac.New(sha256.New, []byte("whsec_test"))
	mac.Write(gotBody)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSig)
}

func TestWebhookSinkNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "")
	err := sink.Deliver(context.Background(), Event{Type: "dispute.resolved"})
	assert.ErrorContains(t, err, "status 502")
}

func TestWebhookSinkUnreachableEndpoint(t *testing.T) {
	sink := NewWebhookSink("http://127.0.0.1:1/hooks", "")
	err := sink.Deliver(context.Background(), Event{Type: "dispute.escalated"})
	assert.Error(t, err)
}
