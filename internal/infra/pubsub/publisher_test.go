package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"rental_expiry_monitor/internal/domain/expiry"
	"rental_expiry_monitor/internal/domain/notify"
	"rental_expiry_monitor/internal/domain/record"
)

var sentAt = time.Date(2025, time.January, 2, 7, 0, 5, 0, time.UTC)

func expiryMessage() notify.Message {
	today := time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)
	return notify.Message{
		Kind:    notify.KindExpiry,
		Subject: "🚨 到期提醒: 1个项目已到期",
		Outcome: &expiry.Outcome{
			RunDate:   today,
			Strategy:  expiry.StrategyRecompute,
			Processed: 3,
			Expired: []expiry.ExpiryEvent{{
				RowIndex:  0,
				Label:     expiry.Label{Name: "旺角店", Address: "弥敦道1号"},
				TotalDays: 10,
				StartDate: today.AddDate(0, 0, -10),
			}},
			Resets: []expiry.ResetEvent{{RowIndex: 0, OldStart: today.AddDate(0, 0, -10), NewStart: today, TotalDays: 10}},
			Issues: []*expiry.DataIssue{{RowIndex: 2, Field: record.FieldTotal, Header: "总天数", Err: record.ErrBlankValue}},
		},
	}
}

func TestBuildPayload(t *testing.T) {
	p := BuildPayload(expiryMessage(), sentAt)

	assert.Equal(t, notify.KindExpiry, p.Kind)
	assert.Equal(t, "2025-01-02", p.RunDate)
	assert.Equal(t, expiry.StrategyRecompute, p.Strategy)
	assert.Equal(t, 3, p.Processed)
	require.Len(t, p.Expired, 1)
	assert.Equal(t, "旺角店", p.Expired[0].Label.Name)
	assert.Equal(t, []string{`row 3, column "总天数" (total_days): value is blank`}, p.Issues)
}

func TestBuildPayloadNominalHasEmptyArrays(t *testing.T) {
	p := BuildPayload(notify.Message{Kind: notify.KindNominal, Outcome: &expiry.Outcome{Processed: 4}}, sentAt)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"expired":[]`)
	assert.Contains(t, string(data), `"resets":[]`)
	assert.Contains(t, string(data), `"issues":[]`)
	assert.NotContains(t, string(data), "run_date")
}

func TestPublisherSend(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.Dial(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client, err := pubsub.NewClient(ctx, "rental-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	_, err = client.CreateTopic(ctx, "rental-runs")
	require.NoError(t, err)

	l, _ := test.NewNullLogger()
	p := NewPublisherWithClient(client, "rental-runs", logrus.NewEntry(l))
	p.now = func() time.Time { return sentAt }
	defer p.Close()

	require.NoError(t, p.Send(ctx, expiryMessage()))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]string{"kind": "expiry"}, msgs[0].Attributes)

	var got Payload
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "🚨 到期提醒: 1个项目已到期", got.Subject)
	assert.Equal(t, sentAt, got.SentAt)
}
