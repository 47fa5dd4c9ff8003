package emailsvc

import (
	"bytes"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core"
)

func TestSendgridService_prepare(t *testing.T) {
	conf := &core.Config{
		AppName:          "Alama",
		TestMode:         true,
		SendgridAPIKey:   "SG.test",
		DefaultFromEmail: mail.Address{Name: "Alama", Address: "noreply@localhost"},
	}
	svc := NewSendgridService(conf, new(nopLogger)).(*sendgridService)

	msg := core.EmailMessage{
		To:           []mail.Address{{Name: "Ama", Address: "ama@test.com"}},
		Bcc:          []mail.Address{{Address: "registrar@test.com"}},
		Subject:      "Result published: CS101",
		TemplateName: "result_published",
		TextContent:  "Grade: A",
		HTMLContent:  "<p>Grade: A</p>",
	}
	require.NoError(t, msg.Attach(bytes.NewBufferString("CS101,A"), "result.csv", "text/csv"))

	m := svc.prepare(msg)

	assert.Equal(t, "noreply@localhost", m.From.Address)
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Alama] Result published: CS101", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "ama@test.com", p.To[0].Address)
	require.Len(t, p.BCC, 1)
	assert.Equal(t, "registrar@test.com", p.BCC[0].Address)

	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "Grade: A", m.Content[0].Value)
	assert.Equal(t, "text/html", m.Content[1].Type)

	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "result.csv", m.Attachments[0].Filename)
	assert.Equal(t, "text/csv", m.Attachments[0].Type)

	assert.Equal(t, []string{"result_published"}, m.Categories)
	require.NotNil(t, m.MailSettings)
	require.NotNil(t, m.MailSettings.SandboxMode)
	assert.True(t, *m.MailSettings.SandboxMode.Enable)

	svc.sandbox = false
	assert.Nil(t, svc.prepare(core.EmailMessage{Subject: "plain"}).MailSettings)
}
