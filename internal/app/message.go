// internal/app/message.go
package app

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"rental_expiry_monitor/internal/domain/expiry"
	"rental_expiry_monitor/internal/domain/notify"
)

// SMS template names accepted by SMS_TEMPLATE.
const (
	SMSTemplateSummary       = "summary"
	SMSTemplateSingleItem    = "single_item"
	SMSTemplateMultipleItems = "multiple_items"
	SMSTemplateSimple        = "simple"
)

// smsSoftLimit is the length of one SMS segment for CJK text.
const smsSoftLimit = 70

const reportTemplate = `智能监控报告 - 项目到期提醒

时间: {{.Now}}
更新策略: {{.Outcome.Strategy}}
到期项目数量: {{len .Outcome.Expired}}
重置项目数量: {{len .Outcome.Resets}}
{{- if .Outcome.Expired}}

🚨 到期项目详情:
{{- range .Outcome.Expired}}
  行 {{row .RowIndex}}: {{name .Label}} - {{address .Label}} - {{.TotalDays}}天
{{- end}}
{{- end}}
{{- if .Outcome.Resets}}

🔄 已重置项目:
{{- range .Outcome.Resets}}
  行 {{row .RowIndex}}: {{name .Label}} - {{address .Label}} - 开始时间 {{day .OldStart}} → {{day .NewStart}}, 重置为{{.TotalDays}}天
{{- end}}
{{- end}}
{{- template "issues" .}}

请及时处理这些到期项目！`

const nominalTemplate = `🎉 恭喜通知 - 项目状态良好

时间: {{.Now}}

🎊 好消息！今天检查发现所有项目都运行正常，没有到期的项目需要处理。

📊 项目状态:
✅ 已检查 {{.Outcome.Processed}} 个项目
✅ 所有项目都在有效期内
✅ 无需任何操作
{{- template "issues" .}}

祝您工作顺利！🎊`

const issuesTemplate = `{{define "issues"}}
{{- if .Issues}}

⚠️ 数据问题 ({{len .Issues}}), 以下行本次未处理:
{{- range .Issues}}
  - {{.}}
{{- end}}
{{- end}}
{{- end}}`

var smsTemplates = map[string]string{
	SMSTemplateSummary:       `【智能监控】{{len .Outcome.Expired}}个到期，{{len .Outcome.Resets}}个已重置。时间:{{.Date}}`,
	SMSTemplateSingleItem:    `【到期提醒】{{with index .Outcome.Expired 0}}{{name .Label}}({{address .Label}}){{end}}已到期，请及时处理！时间:{{.Date}}`,
	SMSTemplateMultipleItems: `【到期提醒】{{len .Outcome.Expired}}个项目已到期，请及时处理！时间:{{.Date}}`,
	SMSTemplateSimple:        `有{{len .Outcome.Expired}}个项目到期了，请查看Excel表格处理。`,
}

const nominalSMS = `🎉恭喜！所有项目正常，无需处理。{{.Date}}`

type messageData struct {
	Now     string
	Date    string
	Outcome *expiry.Outcome
	Issues  []string
}

// MessageRenderer builds the operator-facing text once per run for every channel.
type MessageRenderer struct {
	report     *template.Template
	nominal    *template.Template
	sms        *template.Template
	smsName    string
	nominalSMS *template.Template
	logger     *logrus.Entry
}

func NewMessageRenderer(smsTemplate string, logger *logrus.Entry) (*MessageRenderer, error) {
	if smsTemplate == "" {
		smsTemplate = SMSTemplateSummary
	}
	if _, ok := smsTemplates[smsTemplate]; !ok {
		return nil, fmt.Errorf("unknown SMS template %q", smsTemplate)
	}

	funcs := template.FuncMap{
		"row": func(i int) int { return i + 1 },
		"day": func(t time.Time) string { return t.Format("2006-01-02") },
		"name": func(l expiry.Label) string {
			if l.Name == "" {
				return "未知店铺"
			}
			return l.Name
		},
		"address": func(l expiry.Label) string {
			if l.Address == "" {
				return "未知地址"
			}
			return l.Address
		},
	}
	parse := func(name, text string) (*template.Template, error) {
		t := template.New(name).Funcs(funcs).Option("missingkey=zero")
		if _, err := t.Parse(issuesTemplate); err != nil {
			return nil, err
		}
		return t.Parse(text)
	}

	r := &MessageRenderer{smsName: smsTemplate, logger: logger}
	var err error
	if r.report, err = parse("report", reportTemplate); err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	if r.nominal, err = parse("nominal", nominalTemplate); err != nil {
		return nil, fmt.Errorf("parse nominal template: %w", err)
	}
	if r.sms, err = parse(smsTemplate, smsTemplates[smsTemplate]); err != nil {
		return nil, fmt.Errorf("parse SMS template: %w", err)
	}
	if r.nominalSMS, err = parse("nominal_sms", nominalSMS); err != nil {
		return nil, fmt.Errorf("parse nominal SMS template: %w", err)
	}
	// single_item only makes sense with exactly one expiry.
	if smsTemplate == SMSTemplateSingleItem {
		if _, err = r.sms.New(SMSTemplateMultipleItems).Parse(smsTemplates[SMSTemplateMultipleItems]); err != nil {
			return nil, fmt.Errorf("parse SMS template: %w", err)
		}
	}
	return r, nil
}

// Render produces the message for an outcome. now is the wall-clock time shown in the text.
func (r *MessageRenderer) Render(outcome *expiry.Outcome, now time.Time) (notify.Message, error) {
	data := messageData{
		Now:     now.Format("2006-01-02 15:04:05"),
		Date:    now.Format("2006-01-02"),
		Outcome: outcome,
		Issues:  outcome.IssueMessages(),
	}

	msg := notify.Message{Outcome: outcome}
	var err error
	if outcome.Nominal() {
		msg.Kind = notify.KindNominal
		msg.Subject = "🎉 恭喜！所有项目运行正常"
		if msg.Body, err = execute(r.nominal, "nominal", data); err != nil {
			return notify.Message{}, err
		}
		if msg.Short, err = execute(r.nominalSMS, "nominal_sms", data); err != nil {
			return notify.Message{}, err
		}
		return msg, nil
	}

	msg.Kind = notify.KindExpiry
	msg.Subject = fmt.Sprintf("🚨 到期提醒: %d个项目已到期", len(outcome.Expired))
	if msg.Body, err = execute(r.report, "report", data); err != nil {
		return notify.Message{}, err
	}
	smsName := r.smsName
	if smsName == SMSTemplateSingleItem && len(outcome.Expired) != 1 {
		smsName = SMSTemplateMultipleItems
	}
	if msg.Short, err = execute(r.sms, smsName, data); err != nil {
		return notify.Message{}, err
	}
	if n := utf8.RuneCountInString(msg.Short); n > smsSoftLimit {
		r.logger.WithFields(logrus.Fields{"length": n, "template": smsName}).
			Warn("SMS text exceeds one segment and may be split or truncated")
	}
	return msg, nil
}

func execute(t *template.Template, name string, data messageData) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s message: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
