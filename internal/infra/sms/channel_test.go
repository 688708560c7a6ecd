package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental_expiry_monitor/internal/domain/notify"
	"rental_expiry_monitor/internal/infra/config"
)

func TestNormalizePhone(t *testing.T) {
	got, err := NormalizePhone("138 0013 8000", "CN")
	require.NoError(t, err)
	assert.Equal(t, "+8613800138000", got)

	got, err = NormalizePhone("+8613800138000", "US")
	require.NoError(t, err)
	assert.Equal(t, "+8613800138000", got)

	_, err = NormalizePhone("12345", "CN")
	assert.Error(t, err)
}

func TestNewChannelDropsInvalidRecipients(t *testing.T) {
	l, hook := test.NewNullLogger()
	ch, err := NewChannel(config.SMSConfig{
		Enabled: true,
		APIURL:  "https://sms.example.com/send",
		APIKey:  "k",
		Phones:  []string{"13800138000", "12345"},
		Region:  "CN",
	}, nil, logrus.NewEntry(l))
	require.NoError(t, err)
	assert.Equal(t, []string{"+8613800138000"}, ch.phones)
	assert.Len(t, hook.AllEntries(), 1)

	_, err = NewChannel(config.SMSConfig{Enabled: true, Phones: []string{"12345"}, Region: "CN"}, nil, logrus.NewEntry(l))
	assert.ErrorIs(t, err, ErrNoValidRecipients)

	_, err = NewChannel(config.SMSConfig{}, nil, logrus.NewEntry(l))
	assert.ErrorIs(t, err, notify.ErrChannelDisabled)
}

func TestSendPostsPerRecipient(t *testing.T) {
	var (
		mu   sync.Mutex
		reqs []sendRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		reqs = append(reqs, req)
		mu.Unlock()
		if req.Phone == "+8613900139000" {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	l, _ := test.NewNullLogger()
	ch, err := NewChannel(config.SMSConfig{
		Enabled: true,
		APIURL:  srv.URL,
		APIKey:  "key-1",
		Phones:  []string{"13800138000", "13900139000"},
		Region:  "CN",
	}, srv.Client(), logrus.NewEntry(l))
	require.NoError(t, err)

	err = ch.Send(context.Background(), notify.Message{Short: "【智能监控】1个到期，1个已重置。时间:2025-01-02"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "+8613900139000")
	assert.Contains(t, err.Error(), "HTTP 429")
	assert.NotContains(t, err.Error(), "+8613800138000")

	require.Len(t, reqs, 2)
	assert.Equal(t, sendRequest{APIKey: "key-1", Phone: "+8613800138000", Message: "【智能监控】1个到期，1个已重置。时间:2025-01-02"}, reqs[0])
}
