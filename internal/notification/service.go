// Package notification delivers email digests about refresh outages. The
// delivery settings live in the history store so operators can change them
// without a restart.
package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/gopenny/gopenny/internal/alerting"
	"github.com/gopenny/gopenny/internal/history"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// emailConfigKey is the settings row holding the JSON-encoded EmailConfig.
const emailConfigKey = "email_config"

// EmailConfig describes one delivery channel.
type EmailConfig struct {
	Provider    string `json:"provider"` // smtp, gmail, sendgrid or resend
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	Encryption  string `json:"encryption,omitempty"` // ssl, tls or none
	FromName    string `json:"from_name,omitempty"`
	FromAddress string `json:"from_address"`
	APIKey      string `json:"api_key,omitempty"`
	Enabled     bool   `json:"enabled"`
}

type Service struct {
	store history.Store
}

func NewService(s history.Store) *Service {
	return &Service{store: s}
}

// GetConfig loads the delivery settings, or nil when none were saved yet.
func (s *Service) GetConfig(ctx context.Context) (*EmailConfig, error) {
	raw, err := s.store.GetSetting(ctx, emailConfigKey)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var cfg EmailConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("decode email config: %w", err)
	}
	return &cfg, nil
}

// SaveConfig persists the delivery settings.
func (s *Service) SaveConfig(ctx context.Context, cfg EmailConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.store.SetSetting(ctx, emailConfigKey, string(raw))
}

// SendOutageDigest mails a summary of a failed refresh run to the operator.
func (s *Service) SendOutageDigest(ctx context.Context, to string, alert alerting.RefreshAlert) error {
	var failures strings.Builder
	for _, f := range alert.Failures {
		failures.WriteString(fmt.Sprintf("<li><b>%s</b>: %s</li>", f.Pair, f.Error))
	}

	subject := fmt.Sprintf("Rate refresh outage: %d/%d pairs failed", alert.FailedCount, alert.TotalPairs)
	body := fmt.Sprintf(
		"<p>The %s job at %s failed for %d of %d currency pairs (duration %s).</p><ul>%s</ul>",
		alert.JobName,
		alert.Timestamp.Format(time.RFC3339),
		alert.FailedCount,
		alert.TotalPairs,
		alert.Duration.Round(time.Millisecond),
		failures.String(),
	)
	return s.SendEmail(ctx, to, subject, body)
}

func (s *Service) SendEmail(ctx context.Context, to, subject, body string) error {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return err
	}
	if cfg == nil || !cfg.Enabled {
		return errors.New("email not configured or disabled")
	}

	switch cfg.Provider {
	case "smtp", "gmail":
		return s.sendSMTP(cfg, to, subject, body)
	case "sendgrid":
		return s.sendSendgrid(cfg, to, subject, body)
	case "resend":
		return s.sendResend(cfg, to, subject, body)
	default:
		return fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// TestConfig sends a test message through the provided (unsaved) settings.
func (s *Service) TestConfig(ctx context.Context, cfg EmailConfig, to string) error {
	const subject = "Test Email"
	const body = "This is a test email from gopenny."
	switch cfg.Provider {
	case "smtp", "gmail":
		return s.sendSMTP(&cfg, to, subject, body)
	case "sendgrid":
		return s.sendSendgrid(&cfg, to, subject, body)
	case "resend":
		return s.sendResend(&cfg, to, subject, body)
	default:
		return fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

func (s *Service) sendSMTP(cfg *EmailConfig, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=\"UTF-8\"\r\n"+
		"\r\n"+
		"%s\r\n", to, subject, body))

	if cfg.Encryption == "ssl" {
		// SSL/TLS (Implicit)
		tlsConfig := &tls.Config{
			InsecureSkipVerify: false,
			ServerName:         cfg.Host,
		}
		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return err
		}
		defer conn.Close()

		c, err := smtp.NewClient(conn, cfg.Host)
		if err != nil {
			return err
		}
		defer c.Quit()

		if cfg.Username != "" && cfg.Password != "" {
			auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
			if err = c.Auth(auth); err != nil {
				return err
			}
		}

		return submit(c, cfg.FromAddress, to, msg)
	} else if cfg.Encryption == "tls" {
		// STARTTLS (Explicit)
		c, err := smtp.Dial(addr)
		if err != nil {
			return err
		}
		defer c.Quit()

		if ok, _ := c.Extension("STARTTLS"); ok {
			config := &tls.Config{ServerName: cfg.Host}
			if err = c.StartTLS(config); err != nil {
				return err
			}
		}

		if cfg.Username != "" && cfg.Password != "" {
			auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
			if err = c.Auth(auth); err != nil {
				return err
			}
		}

		return submit(c, cfg.FromAddress, to, msg)
	}

	// None / Plain
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	return smtp.SendMail(addr, auth, cfg.FromAddress, []string{to}, msg)
}

func submit(c *smtp.Client, from, to string, msg []byte) error {
	if err := c.Mail(from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

func (s *Service) sendSendgrid(cfg *EmailConfig, to, subject, body string) error {
	from := mail.NewEmail(cfg.FromName, cfg.FromAddress)
	toEmail := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, toEmail, body, body)
	client := sendgrid.NewSendClient(cfg.APIKey)
	resp, err := client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: %d %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (s *Service) sendResend(cfg *EmailConfig, to, subject, body string) error {
	url := "https://api.resend.com/emails"

	payload := map[string]string{
		"from":    fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress),
		"to":      to,
		"subject": subject,
		"html":    body,
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("resend error: %d %s", resp.StatusCode, string(bodyBytes))
	}

	return nil
}
