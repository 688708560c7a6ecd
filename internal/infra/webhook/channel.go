// internal/infra/webhook/channel.go
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"rental_expiry_monitor/internal/domain/notify"
	"rental_expiry_monitor/internal/infra/config"
)

const (
	FlavorWeCom    = "wecom"
	FlavorDingTalk = "dingtalk"

	// maxContentBytes stays under the 2048 byte limit of WeCom text messages.
	maxContentBytes = 2000
)

var ErrMalformedResponse = errors.New("malformed webhook response")

// Channel posts the report to a WeCom or DingTalk group robot.
type Channel struct {
	url    string
	flavor string
	secret string
	client *http.Client
	logger *logrus.Entry
	now    func() time.Time
}

type textMessage struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

type robotResponse struct {
	ErrCode *int   `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func NewChannel(cfg config.WebhookConfig, client *http.Client, logger *logrus.Entry) (*Channel, error) {
	if !cfg.Enabled {
		return nil, notify.ErrChannelDisabled
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Channel{
		url:    cfg.URL,
		flavor: cfg.Flavor,
		secret: cfg.Secret,
		client: client,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (c *Channel) Name() string {
	return c.flavor
}

func (c *Channel) Send(ctx context.Context, msg notify.Message) error {
	var body textMessage
	body.MsgType = "text"
	body.Text.Content = truncate(msg.Body, maxContentBytes)
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	target, err := c.target()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read webhook response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned HTTP %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var rr robotResponse
	if err := json.Unmarshal(raw, &rr); err != nil || rr.ErrCode == nil {
		return fmt.Errorf("%w: %s", ErrMalformedResponse, truncate(string(raw), 200))
	}
	if *rr.ErrCode != 0 {
		return fmt.Errorf("webhook rejected message: errcode %d: %s", *rr.ErrCode, rr.ErrMsg)
	}

	c.logger.WithField("flavor", c.flavor).Debug("Webhook message accepted")
	return nil
}

// target appends the DingTalk signature when a secret is configured.
func (c *Channel) target() (string, error) {
	if c.flavor != FlavorDingTalk || c.secret == "" {
		return c.url, nil
	}
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("invalid webhook url: %w", err)
	}
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	q := u.Query()
	q.Set("timestamp", ts)
	q.Set("sign", sign(ts, c.secret))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sign is base64(HMAC-SHA256(key=secret, "timestamp\nsecret")).
func sign(timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "\n" + secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
