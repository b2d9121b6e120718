package notify

import (
	"bytes"
	"crypto/tls"
	"net/url"
	"strings"

	mail "github.com/go-mail/mail/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/example/buildco/backend/internal/config"
	"github.com/example/buildco/backend/internal/locale"
	"github.com/example/buildco/backend/internal/models"
)

// ErrNotConfigured is returned by SMTPSender when SMTP_HOST or SMTP_FROM is missing.
var ErrNotConfigured = errors.New("smtp not configured (SMTP_HOST/SMTP_FROM)")

// Sender delivers one HTML email.
type Sender interface {
	Send(to []string, subject, html string) error
}

// SMTPSender sends mail over SMTP with mandatory STARTTLS.
type SMTPSender struct {
	cfg config.SMTPConfig
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	if s.cfg.Host == "" || s.cfg.From == "" {
		return ErrNotConfigured
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Pass)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.SkipTLSVerify,
	}
	return d.DialAndSend(m)
}

// Mailer renders and sends the maintenance notification emails.
type Mailer struct {
	sender     Sender
	siteURL    string
	adminEmail string
	log        *log.Entry
}

// NewMailer builds a mailer. adminEmail may be empty to skip admin alerts.
func NewMailer(sender Sender, siteURL, adminEmail string, logger *log.Logger) *Mailer {
	return &Mailer{
		sender:     sender,
		siteURL:    strings.TrimRight(siteURL, "/"),
		adminEmail: adminEmail,
		log:        logger.WithField("component", "mailer"),
	}
}

var bilingual = []locale.Context{locale.New(locale.English), locale.New(locale.Arabic)}

func (m *Mailer) trackURL(ref string) string {
	return m.siteURL + "/maintenance/track?ref=" + url.QueryEscape(ref)
}

// RequestCreated sends the client confirmation and the admin alert. Both are
// attempted; the first error is returned.
func (m *Mailer) RequestCreated(req models.MaintenanceRequest) error {
	var firstErr error
	if err := m.sendConfirmation(req); err != nil {
		firstErr = errors.Wrap(err, "client confirmation")
	}
	if err := m.sendAdminAlert(req); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "admin alert")
	}
	return firstErr
}

func (m *Mailer) sendConfirmation(req models.MaintenanceRequest) error {
	if strings.TrimSpace(req.ClientEmail) == "" {
		return nil
	}
	data := clientMail{TrackURL: m.trackURL(req.ReferenceNumber)}
	subjects := make([]string, 0, len(bilingual))
	for _, lc := range bilingual {
		s := section{
			Lang:         string(lc.Language()),
			Dir:          lc.Dir(),
			ResponseTime: lc.ResponseTime(req.Priority),
			TrackLabel:   lc.T(locale.MsgMailTrackLabel),
			Greeting:     lc.T(locale.MsgMailGreeting, req.ClientName),
			Intro:        lc.T(locale.MsgMailConfirmIntro),
			Reference:    req.ReferenceNumber,
		}
		data.Sections = append(data.Sections, s)
		subjects = append(subjects, lc.T(locale.MsgConfirmSubject, req.ReferenceNumber))
	}
	var buf bytes.Buffer
	if err := clientTmpl.Execute(&buf, data); err != nil {
		return err
	}
	return m.sender.Send([]string{req.ClientEmail}, strings.Join(subjects, " | "), buf.String())
}

func (m *Mailer) sendAdminAlert(req models.MaintenanceRequest) error {
	if m.adminEmail == "" {
		return nil
	}
	data := adminMail{
		Reference:   req.ReferenceNumber,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
		ClientEmail: req.ClientEmail,
		Address:     req.ClientAddress,
		Type:        string(req.MaintenanceType),
		Category:    string(req.Category),
		Priority:    string(req.Priority),
		Description: req.Description,
		Preferred:   strings.TrimSpace(req.PreferredDate + " " + string(req.PreferredTime)),
		AdminURL:    m.siteURL + "/admin/maintenance",
	}
	var buf bytes.Buffer
	if err := adminTmpl.Execute(&buf, data); err != nil {
		return err
	}
	subject := locale.New(locale.English).T(locale.MsgAdminAlertSubject, req.ReferenceNumber, string(req.Priority))
	return m.sender.Send([]string{m.adminEmail}, subject, buf.String())
}

// StatusChanged tells the client their request moved to a new status.
func (m *Mailer) StatusChanged(req models.MaintenanceRequest) error {
	if strings.TrimSpace(req.ClientEmail) == "" {
		return nil
	}
	data := clientMail{TrackURL: m.trackURL(req.ReferenceNumber)}
	subjects := make([]string, 0, len(bilingual))
	for _, lc := range bilingual {
		status := lc.StatusLabel(req.Status)
		s := section{
			Lang:        string(lc.Language()),
			Dir:         lc.Dir(),
			Reference:   req.ReferenceNumber,
			StatusLabel: status,
			TrackLabel:  lc.T(locale.MsgMailTrackLabel),
			Greeting:    lc.T(locale.MsgMailGreeting, req.ClientName),
			Intro:       lc.T(locale.MsgMailStatusIntro),
		}
		data.Sections = append(data.Sections, s)
		subjects = append(subjects, lc.T(locale.MsgStatusSubject, req.ReferenceNumber, status))
	}
	var buf bytes.Buffer
	if err := clientTmpl.Execute(&buf, data); err != nil {
		return err
	}
	return m.sender.Send([]string{req.ClientEmail}, strings.Join(subjects, " | "), buf.String())
}
