package emailService

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"sync"
)

const (
	subjectSubscriptionConfirmation  = "Your subscription is active"
	templateSubscriptionConfirmation = "subscription_confirmation.html"

	queueSize = 100
)

//go:embed templates/*.html
var templatesFS embed.FS

type EmailData interface {
	TemplateFileName() string
	Subject() string
}

type EmailSender interface {
	QueueEmail(to string, data EmailData)
}

type SubscriptionConfirmationData struct {
	FirstName         string
	PlanName          string
	TxRef             string
	TemporaryPassword string
}

func (d SubscriptionConfirmationData) TemplateFileName() string {
	return templateSubscriptionConfirmation
}

func (d SubscriptionConfirmationData) Subject() string {
	return subjectSubscriptionConfirmation
}

type Config struct {
	From     string
	Password string
	SMTPHost string
	SMTPPort string
}

// Deliverer hands a rendered message to a transport.
type Deliverer interface {
	Deliver(to, subject, htmlBody string) error
}

type smtpDeliverer struct {
	cfg Config
}

func (d smtpDeliverer) Deliver(to, subject, htmlBody string) error {
	message := []byte("Subject: " + subject + "\r\n" +
		"MIME-version: 1.0;\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\";\r\n\r\n" +
		htmlBody)

	auth := smtp.PlainAuth("", d.cfg.From, d.cfg.Password, d.cfg.SMTPHost)
	if err := smtp.SendMail(d.cfg.SMTPHost+":"+d.cfg.SMTPPort, auth, d.cfg.From, []string{to}, message); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	return nil
}

// logDeliverer is used when no SMTP server is configured.
type logDeliverer struct{}

func (logDeliverer) Deliver(to, subject, htmlBody string) error {
	log.Printf("[Email] (not sent, SMTP disabled) to=%s subject=%q size=%d", to, subject, len(htmlBody))
	return nil
}

type EmailService struct {
	deliverer Deliverer
	templates *template.Template
	taskQueue chan EmailTask
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type EmailTask struct {
	to      string
	data    EmailData
	subject string
}

// NewEmailService starts the delivery worker. Mail goes over SMTP when cfg names a host and is
// only logged otherwise.
func NewEmailService(cfg Config) (*EmailService, error) {
	var deliverer Deliverer = logDeliverer{}
	if cfg.SMTPHost != "" {
		if cfg.From == "" {
			return nil, fmt.Errorf("EMAIL_ADDRESS is required when SMTP_HOST is set")
		}
		if cfg.SMTPPort == "" {
			cfg.SMTPPort = "587"
		}
		deliverer = smtpDeliverer{cfg: cfg}
	}
	return newEmailService(deliverer)
}

func newEmailService(deliverer Deliverer) (*EmailService, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("error parsing templates: %w", err)
	}
	s := &EmailService{
		deliverer: deliverer,
		templates: tmpl,
		taskQueue: make(chan EmailTask, queueSize),
	}
	s.wg.Add(1)
	go s.worker()
	return s, nil
}

func (s *EmailService) worker() {
	defer s.wg.Done()
	for task := range s.taskQueue {
		if err := s.sendTemplatedEmail(task.to, task.data, task.subject); err != nil {
			log.Printf("[Email] error sending email to %s: %v", task.to, err)
		}
	}
}

// QueueEmail never blocks the caller; when the queue is full the message is dropped and logged.
func (s *EmailService) QueueEmail(to string, data EmailData) {
	select {
	case s.taskQueue <- EmailTask{to: to, data: data, subject: data.Subject()}:
	default:
		log.Printf("[Email] queue full, dropping %q to %s", data.Subject(), to)
	}
}

// Close stops accepting mail and waits for the queue to drain.
func (s *EmailService) Close() {
	s.closeOnce.Do(func() {
		close(s.taskQueue)
	})
	s.wg.Wait()
}

func (s *EmailService) sendTemplatedEmail(to string, data EmailData, subject string) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, data.TemplateFileName(), data); err != nil {
		return fmt.Errorf("error executing template: %w", err)
	}
	return s.deliverer.Deliver(to, subject, body.String())
}
