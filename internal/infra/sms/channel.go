package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ttacon/libphonenumber"

	"rental_expiry_monitor/internal/domain/notify"
	"rental_expiry_monitor/internal/infra/config"
)

var ErrNoValidRecipients = errors.New("no valid sms recipients")

// Channel posts the short-form report to an HTTP SMS gateway, one request per recipient.
type Channel struct {
	apiURL string
	apiKey string
	phones []string
	client *http.Client
	logger *logrus.Entry
}

type sendRequest struct {
	APIKey  string `json:"api_key"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// NewChannel normalises recipients to E.164. Invalid numbers are dropped with a warning.
func NewChannel(cfg config.SMSConfig, client *http.Client, logger *logrus.Entry) (*Channel, error) {
	if !cfg.Enabled {
		return nil, notify.ErrChannelDisabled
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	phones := make([]string, 0, len(cfg.Phones))
	for _, raw := range cfg.Phones {
		phone, err := NormalizePhone(raw, cfg.Region)
		if err != nil {
			logger.WithError(err).WithField("phone", raw).Warn("Skipping invalid SMS recipient")
			continue
		}
		phones = append(phones, phone)
	}
	if len(phones) == 0 {
		return nil, ErrNoValidRecipients
	}

	return &Channel{apiURL: cfg.APIURL, apiKey: cfg.APIKey, phones: phones, client: client, logger: logger}, nil
}

// NormalizePhone parses a number in the given default region and formats it as E.164.
func NormalizePhone(phone, region string) (string, error) {
	p, err := libphonenumber.Parse(phone, region)
	if err != nil {
		return "", fmt.Errorf("parse phone %q: %w", phone, err)
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("phone number %q is not valid", phone)
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

func (c *Channel) Name() string {
	return "sms"
}

// Send tries every recipient; failures are joined so one bad number does not hide the others.
func (c *Channel) Send(ctx context.Context, msg notify.Message) error {
	var errs []error
	for _, phone := range c.phones {
		if err := c.sendOne(ctx, phone, msg.Short); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", phone, err))
			continue
		}
		c.logger.WithField("phone", phone).Debug("SMS accepted")
	}
	return errors.Join(errs...)
}

func (c *Channel) sendOne(ctx context.Context, phone, text string) error {
	payload, err := json.Marshal(sendRequest{APIKey: c.apiKey, Phone: phone, Message: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
