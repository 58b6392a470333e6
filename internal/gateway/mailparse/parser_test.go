package mailparse

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const multipartMessage = "From: Alice Example <a@x.com>\r\n" +
	"To: sales@example.com\r\n" +
	"Cc: b@y.org, Charlie <c@z.net>\r\n" +
	"Subject: Quote request\r\n" +
	"Date: Tue, 02 Jan 2024 03:04:05 +0000\r\n" +
	"Message-Id: <abc-123@x.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"frontier\"\r\n" +
	"\r\n" +
	"--frontier\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please send a quote.\r\n" +
	"--frontier\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"rfq.pdf\"\r\n" +
	"\r\n" +
	"%PDF-1.4 fake\r\n" +
	"--frontier--\r\n"

func TestParseMultipartMessage(t *testing.T) {
	msg, err := NewParser().Parse([]byte(multipartMessage))
	require.NoError(t, err)

	require.Equal(t, "Quote request", msg.Subject)
	require.Equal(t, "a@x.com", msg.From)
	require.Equal(t, "abc-123@x.com", msg.MessageID)
	require.NotNil(t, msg.Date)
	require.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), *msg.Date)
	require.Contains(t, msg.Body, "Please send a quote.")
	require.True(t, strings.HasPrefix(msg.ContentType, "text/plain"))

	require.Len(t, msg.Attachments, 1)
	require.Equal(t, "rfq.pdf", msg.Attachments[0].Name)
	require.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
	require.Contains(t, string(msg.Attachments[0].Content), "%PDF-1.4")
}

func TestParseAddressesPerField(t *testing.T) {
	msg, err := NewParser().Parse([]byte(multipartMessage))
	require.NoError(t, err)

	require.Equal(t, []string{"a@x.com"}, msg.Addresses("from"))
	require.Equal(t, []string{"sales@example.com"}, msg.Addresses("To"))
	require.Equal(t, []string{"b@y.org", "c@z.net"}, msg.Addresses("cc"))
	require.Empty(t, msg.Addresses("bcc"))
}

func TestParsePlainMessage(t *testing.T) {
	raw := "From: someone@example.org\r\n" +
		"Subject: hello\r\n" +
		"Message-Id: <plain@example.org>\r\n" +
		"\r\n" +
		"just text\r\n"
	msg, err := NewParser().Parse([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, "hello", msg.Subject)
	require.Equal(t, "someone@example.org", msg.From)
	require.Contains(t, msg.Body, "just text")
	require.Empty(t, msg.Attachments)
}

func TestParseEmptyPayloadFails(t *testing.T) {
	_, err := NewParser().Parse(nil)
	require.Error(t, err)
}

func TestParseBodyLimit(t *testing.T) {
	raw := "From: someone@example.org\r\n\r\n" + strings.Repeat("x", 4096)
	msg, err := NewParser(WithBodyLimit(16)).Parse([]byte(raw))
	require.NoError(t, err)
	require.LessOrEqual(t, len(msg.Body), 16)
}

func TestNormalizeMessageID(t *testing.T) {
	cases := map[string]string{
		"<abc@x>":      "abc@x",
		"  <abc@x>  ":  "abc@x",
		"\"abc@x\"":    "abc@x",
		"abc@x":        "abc@x",
		"":             "",
		"<  spaced@x>": "spaced@x",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeMessageID(in), "input %q", in)
	}
}
