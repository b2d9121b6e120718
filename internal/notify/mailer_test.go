package notify

import (
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/example/buildco/backend/internal/config"
	"github.com/example/buildco/backend/internal/models"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(to []string, subject, html string) error {
	args := m.Called(to, subject, html)
	return args.Error(0)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func sampleRequest() models.MaintenanceRequest {
	return models.MaintenanceRequest{
		ReferenceNumber: "MR-2506011234",
		ClientName:      "Ahmed <Ali>",
		ClientEmail:     "a@b.com",
		ClientPhone:     "0100",
		Priority:        models.PriorityHigh,
		Status:          models.StatusInProgress,
		Description:     "Leak under sink",
	}
}

func TestRequestCreated_SendsConfirmationAndAlert(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", []string{"a@b.com"}, mock.MatchedBy(func(s string) bool {
		return containsAll(s, "MR-2506011234", "|")
	}), mock.MatchedBy(func(html string) bool {
		return containsAll(html, `dir="rtl"`, `dir="ltr"`, "4 hours", "Dear Ahmed &lt;Ali&gt;,", "ref=MR-2506011234",
			"Track your request", "تتبع طلبك", "Your reference number is:")
	})).Return(nil).Once()
	sender.On("Send", []string{"ops@buildco.test"}, "New maintenance request MR-2506011234 (high)", mock.Anything).Return(nil).Once()

	m := NewMailer(sender, "https://buildco.test/", "ops@buildco.test", quietLogger())
	require.NoError(t, m.RequestCreated(sampleRequest()))
	sender.AssertExpectations(t)
}

func TestRequestCreated_AttemptsBothAndReturnsFirstError(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", []string{"a@b.com"}, mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()
	sender.On("Send", []string{"ops@buildco.test"}, mock.Anything, mock.Anything).Return(nil).Once()

	m := NewMailer(sender, "https://buildco.test", "ops@buildco.test", quietLogger())
	err := m.RequestCreated(sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client confirmation")
	sender.AssertExpectations(t)
}

func TestRequestCreated_SkipsMissingAddresses(t *testing.T) {
	sender := new(MockSender)
	m := NewMailer(sender, "https://buildco.test", "", quietLogger())
	req := sampleRequest()
	req.ClientEmail = " "
	require.NoError(t, m.RequestCreated(req))
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestStatusChanged(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", []string{"a@b.com"}, "Maintenance request MR-2506011234 is now In progress | حالة طلب الصيانة MR-2506011234 أصبحت قيد التنفيذ",
		mock.MatchedBy(func(html string) bool {
			return containsAll(html, "In progress", "قيد التنفيذ", "has been updated", "تم تحديث حالة طلب الصيانة")
		})).Return(nil).Once()

	m := NewMailer(sender, "https://buildco.test", "", quietLogger())
	require.NoError(t, m.StatusChanged(sampleRequest()))
	sender.AssertExpectations(t)
}

func TestSMTPSender_NotConfigured(t *testing.T) {
	s := NewSMTPSender(config.SMTPConfig{})
	assert.NoError(t, s.Send(nil, "x", "y"))
	assert.ErrorIs(t, s.Send([]string{"a@b.com"}, "x", "y"), ErrNotConfigured)
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
