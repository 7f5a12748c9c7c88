package emailService

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to, subject, body string
}

type recordingDeliverer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (d *recordingDeliverer) Deliver(to, subject, htmlBody string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentMail{to, subject, htmlBody})
	return nil
}

func TestQueueEmail_RendersSubscriptionConfirmation(t *testing.T) {
	deliverer := &recordingDeliverer{}
	svc, err := newEmailService(deliverer)
	require.NoError(t, err)

	svc.QueueEmail("abebe@example.com", SubscriptionConfirmationData{
		FirstName:         "Abebe",
		PlanName:          "Standard",
		TxRef:             "TX-1",
		TemporaryPassword: "temp-pass",
	})
	svc.QueueEmail("sara@example.com", SubscriptionConfirmationData{PlanName: "Basic", TxRef: "TX-2"})
	svc.Close()

	require.Len(t, deliverer.sent, 2)
	first := deliverer.sent[0]
	assert.Equal(t, "abebe@example.com", first.to)
	assert.Equal(t, subjectSubscriptionConfirmation, first.subject)
	assert.Contains(t, first.body, "Welcome, Abebe!")
	assert.Contains(t, first.body, "<strong>Standard</strong>")
	assert.Contains(t, first.body, "TX-1")
	assert.Contains(t, first.body, "temp-pass")

	assert.NotContains(t, deliverer.sent[1].body, "We created a password")
}

func TestNewEmailService_Transport(t *testing.T) {
	svc, err := NewEmailService(Config{})
	require.NoError(t, err)
	assert.IsType(t, logDeliverer{}, svc.deliverer)
	svc.Close()
	svc.Close()

	_, err = NewEmailService(Config{SMTPHost: "smtp.example.com"})
	assert.Error(t, err)

	svc, err = NewEmailService(Config{SMTPHost: "smtp.example.com", From: "billing@example.com"})
	require.NoError(t, err)
	smtp, ok := svc.deliverer.(smtpDeliverer)
	require.True(t, ok)
	assert.Equal(t, "587", smtp.cfg.SMTPPort)
	svc.Close()
}
