package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"

	"github.com/nholik/qlik-sentinel/internal/task"
	"github.com/rs/zerolog"
)

const emailBodyTemplate = `<html><head><style>
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #ddd; padding: 8px; }
    th { background-color: #f2f2f2; }
</style></head><body>
    <p>Hello {{ .Recipient }},</p>
    <p>This is an automated alert for failed Qlik Sense task(s):</p>
    <table>
        <tr><th>Task Name</th><th>Application</th><th>Stream</th><th>Status</th><th>Failure Time</th><th>Previous Failure</th><th>Execution Interval</th><th>Log Link</th></tr>
        {{- range .Failures }}
        <tr>
            <td>{{ .Name }}</td><td>{{ .AppName }}</td><td>{{ .Stream }}</td><td>{{ .Status }}</td>
            <td>{{ .FailedAtLabel }}</td><td>{{ .LastFailure }}</td><td>{{ .ExecutionInterval }}</td>
            <td><a href="{{ .LogURL }}">{{ .Name }}.log</a></td>
        </tr>
        {{- end }}
    </table>
    {{- if .Recovered }}
    <p>The following task(s) have recovered since the last check:</p>
    <ul>
        {{- range .Recovered }}
        <li>{{ . }}</li>
        {{- end }}
    </ul>
    {{- end }}
    <p>Regards,<br>Qlik Sentinel</p>
</body></html>`

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	Host     string
	Port     int
	Sender   string
	Username string
	Password string
}

type emailContext struct {
	Recipient string
	Failures  []task.Failure
	Recovered []string
}

// EmailNotifier groups failures by recipient and delivers one HTML mail
// per recipient over SMTP, attaching script logs when present on disk.
type EmailNotifier struct {
	logger   zerolog.Logger
	cfg      EmailConfig
	template *template.Template
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// EmailOption customizes EmailNotifier behavior.
type EmailOption func(*EmailNotifier)

// WithSendMail overrides SMTP delivery (for testing).
func WithSendMail(send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error) EmailOption {
	return func(n *EmailNotifier) {
		n.sendMail = send
	}
}

// NewEmailNotifier creates an email notifier, or a noop notifier when
// no SMTP host is configured.
func NewEmailNotifier(logger zerolog.Logger, cfg EmailConfig, opts ...EmailOption) (Notifier, error) {
	if cfg.Host == "" {
		return NewNoop(logger, "smtp server not configured; email notifications disabled"), nil
	}

	tmpl, err := template.New("email").Parse(emailBodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse email template: %w", err)
	}

	notifier := &EmailNotifier{
		logger:   logger,
		cfg:      cfg,
		template: tmpl,
		sendMail: smtp.SendMail,
	}
	for _, opt := range opts {
		opt(notifier)
	}
	return notifier, nil
}

// Notify implements Notifier.
func (n *EmailNotifier) Notify(ctx context.Context, site string, failures []task.Failure, recovered []string) error {
	if len(failures) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	grouped := map[string][]task.Failure{}
	for _, f := range failures {
		grouped[f.Recipient] = append(grouped[f.Recipient], f)
	}

	recipients := make([]string, 0, len(grouped))
	for recipient := range grouped {
		recipients = append(recipients, recipient)
	}
	sort.Strings(recipients)

	var firstErr error
	for _, recipient := range recipients {
		batch := grouped[recipient]
		subject := fmt.Sprintf("Qlik Sense Task Failure Alert (%d Task%s)", len(batch), plural(len(batch)))

		body, err := n.renderBody(recipient, batch, recovered)
		if err != nil {
			return err
		}

		message, attached := n.buildMessage(recipient, subject, body, batch)
		addr := net.JoinHostPort(n.cfg.Host, fmt.Sprintf("%d", n.cfg.Port))

		var auth smtp.Auth
		if n.cfg.Username != "" {
			auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
		}

		if err := n.sendMail(addr, auth, n.cfg.Sender, []string{recipient}, message); err != nil {
			n.logger.Error().Err(err).Str("site", site).Str("recipient", recipient).Msg("failed to send email")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		n.logger.Info().
			Str("site", site).
			Str("recipient", recipient).
			Int("tasks", len(batch)).
			Int("attachments", attached).
			Msg("email sent")
	}

	return firstErr
}

func (n *EmailNotifier) renderBody(recipient string, failures []task.Failure, recovered []string) ([]byte, error) {
	var buf bytes.Buffer
	err := n.template.Execute(&buf, emailContext{
		Recipient: recipient,
		Failures:  failures,
		Recovered: recovered,
	})
	if err != nil {
		return nil, fmt.Errorf("render email body: %w", err)
	}
	return buf.Bytes(), nil
}

// buildMessage assembles a multipart/mixed MIME message with the HTML
// body and any readable script log attachments. Missing log files are
// logged and skipped.
func (n *EmailNotifier) buildMessage(recipient, subject string, body []byte, failures []task.Failure) ([]byte, int) {
	var msg bytes.Buffer
	writer := multipart.NewWriter(&msg)

	fmt.Fprintf(&msg, "From: %s\r\n", n.cfg.Sender)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	htmlHeader := textproto.MIMEHeader{}
	htmlHeader.Set("Content-Type", "text/html; charset=utf-8")
	part, err := writer.CreatePart(htmlHeader)
	if err == nil {
		_, _ = part.Write(body)
	}

	attached := 0
	for _, f := range failures {
		if f.LogFilePath == "" {
			continue
		}
		content, err := os.ReadFile(f.LogFilePath)
		if err != nil {
			n.logger.Warn().Str("path", f.LogFilePath).Err(err).Msg("log file not attachable")
			continue
		}
		name := f.Name + ".log"
		if name == ".log" {
			name = filepath.Base(f.LogFilePath)
		}
		attachmentHeader := textproto.MIMEHeader{}
		attachmentHeader.Set("Content-Type", "application/octet-stream")
		attachmentHeader.Set("Content-Transfer-Encoding", "base64")
		attachmentHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		part, err := writer.CreatePart(attachmentHeader)
		if err != nil {
			continue
		}
		encoder := base64.NewEncoder(base64.StdEncoding, part)
		_, _ = encoder.Write(content)
		_ = encoder.Close()
		attached++
	}

	_ = writer.Close()
	return msg.Bytes(), attached
}

func plural(count int) string {
	if count == 1 {
		return ""
	}
	return "s"
}
