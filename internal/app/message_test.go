package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental_expiry_monitor/internal/domain/expiry"
	"rental_expiry_monitor/internal/domain/notify"
	"rental_expiry_monitor/internal/domain/record"
)

var renderTime = time.Date(2025, time.January, 2, 7, 0, 5, 0, time.UTC)

func TestRenderExpiryReport(t *testing.T) {
	r, err := NewMessageRenderer("", testLogger())
	require.NoError(t, err)

	outcome := expiredOutcome()
	outcome.Issues = []*expiry.DataIssue{{RowIndex: 4, Field: record.FieldTotal, Header: "总天数", Err: record.ErrBlankValue}}

	msg, err := r.Render(outcome, renderTime)
	require.NoError(t, err)

	assert.Equal(t, notify.KindExpiry, msg.Kind)
	assert.Equal(t, "🚨 到期提醒: 1个项目已到期", msg.Subject)
	assert.Contains(t, msg.Body, "时间: 2025-01-02 07:00:05")
	assert.Contains(t, msg.Body, "到期项目数量: 1")
	assert.Contains(t, msg.Body, "  行 1: 旺角店 - 弥敦道1号 - 10天")
	assert.Contains(t, msg.Body, "开始时间 2024-12-23 → 2025-01-02, 重置为10天")
	assert.Contains(t, msg.Body, `row 5, column "总天数" (total_days): value is blank`)
	assert.Contains(t, msg.Body, "请及时处理这些到期项目！")
	assert.Equal(t, "【智能监控】1个到期，1个已重置。时间:2025-01-02", msg.Short)
}

func TestRenderUnknownLabel(t *testing.T) {
	r, err := NewMessageRenderer(SMSTemplateSingleItem, testLogger())
	require.NoError(t, err)

	outcome := expiredOutcome()
	outcome.Expired[0].Label = expiry.Label{}

	msg, err := r.Render(outcome, renderTime)
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "行 1: 未知店铺 - 未知地址 - 10天")
	assert.Equal(t, "【到期提醒】未知店铺(未知地址)已到期，请及时处理！时间:2025-01-02", msg.Short)
}

func TestRenderSingleItemFallsBackForSeveralExpiries(t *testing.T) {
	r, err := NewMessageRenderer(SMSTemplateSingleItem, testLogger())
	require.NoError(t, err)

	outcome := expiredOutcome()
	outcome.Expired = append(outcome.Expired, outcome.Expired[0])

	msg, err := r.Render(outcome, renderTime)
	require.NoError(t, err)
	assert.Equal(t, "【到期提醒】2个项目已到期，请及时处理！时间:2025-01-02", msg.Short)
}

func TestRenderSimpleTemplate(t *testing.T) {
	r, err := NewMessageRenderer(SMSTemplateSimple, testLogger())
	require.NoError(t, err)

	msg, err := r.Render(expiredOutcome(), renderTime)
	require.NoError(t, err)
	assert.Equal(t, "有1个项目到期了，请查看Excel表格处理。", msg.Short)
}

func TestRenderNominal(t *testing.T) {
	r, err := NewMessageRenderer("", testLogger())
	require.NoError(t, err)

	msg, err := r.Render(&expiry.Outcome{Processed: 12}, renderTime)
	require.NoError(t, err)

	assert.Equal(t, notify.KindNominal, msg.Kind)
	assert.Equal(t, "🎉 恭喜！所有项目运行正常", msg.Subject)
	assert.Contains(t, msg.Body, "✅ 已检查 12 个项目")
	assert.NotContains(t, msg.Body, "数据问题")
	assert.Equal(t, "🎉恭喜！所有项目正常，无需处理。2025-01-02", msg.Short)
}

func TestNewMessageRendererRejectsUnknownTemplate(t *testing.T) {
	_, err := NewMessageRenderer("urgent", testLogger())
	assert.Error(t, err)
}
