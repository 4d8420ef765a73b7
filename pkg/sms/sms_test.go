package sms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rohianon/multicurrency-checkout/pkg/config"
)

func TestNewClientBaseURL(t *testing.T) {
	assert.Equal(t, LiveBaseURL, NewClient(&Config{}).baseURL)
	assert.Equal(t, SandboxBaseURL, NewClient(&Config{Sandbox: true}).baseURL)
	assert.Equal(t, "http://localhost:9000", NewClient(&Config{BaseURL: "http://localhost:9000/"}).baseURL)
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.SMSConfig{APIKey: "k", Username: "sandbox", Sender: "SHOP", Sandbox: true})
	assert.Equal(t, "sandbox", cfg.Username)
	assert.True(t, cfg.Sandbox)
}

func TestSend(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/version1/messaging", r.URL.Path)
		require.Equal(t, "key-1", r.Header.Get("apiKey"))
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"username": r.PostForm.Get("username"),
			"to":       r.PostForm.Get("to"),
			"message":  r.PostForm.Get("message"),
			"from":     r.PostForm.Get("from"),
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"SMSMessageData":{"Message":"Sent to 1/1","Recipients":[{"statusCode":101,"number":"+254712345678","status":"Success","messageId":"ATX"}]}}`))
	}))
	defer srv.Close()

	c := NewClient(&Config{APIKey: "key-1", Username: "sandbox", Sender: "SHOP", BaseURL: srv.URL})
	require.NoError(t, c.Send(context.Background(), "+254712345678", "Paid KES 25.00"))

	assert.Equal(t, map[string]string{
		"username": "sandbox",
		"to":       "+254712345678",
		"message":  "Paid KES 25.00",
		"from":     "SHOP",
	}, form)
}

func TestSendFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "rejected recipient",
			status: http.StatusCreated,
			body:   `{"SMSMessageData":{"Recipients":[{"statusCode":403,"number":"+2547","status":"InvalidPhoneNumber"}]}}`,
			check: func(t *testing.T, err error) {
				var de *DeliveryError
				require.True(t, errors.As(err, &de))
				assert.Equal(t, "InvalidPhoneNumber", de.Status)
			},
		},
		{
			name:   "http error",
			status: http.StatusUnauthorized,
			body:   "The supplied authentication is invalid",
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "status 401")
			},
		},
		{
			name:   "bad json",
			status: http.StatusOK,
			body:   "<html>",
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "decode")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewClient(&Config{BaseURL: srv.URL}).Send(context.Background(), "+2547", "hi")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()
	require.NoError(t, m.Send(context.Background(), "+233241234567", "receipt"))
	assert.Equal(t, []MockMessage{{To: "+233241234567", Message: "receipt"}}, m.Messages())

	m.Err = errors.New("down")
	assert.Error(t, m.Send(context.Background(), "+233241234567", "again"))
	assert.Len(t, m.Messages(), 1)
}
