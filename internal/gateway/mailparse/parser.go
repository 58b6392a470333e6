// Package mailparse turns raw RFC822 payloads into the structured form the
// matching engine works with.
package mailparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	stdmail "net/mail"
	"strings"
	"time"

	gomessage "github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
	htmlcharset "golang.org/x/net/html/charset"
)

func init() {
	gomessage.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return htmlcharset.NewReaderLabel(charset, input)
	}
}

const (
	defaultBodyLimit       = 128 * 1024
	defaultAttachmentLimit = 25 * 1024 * 1024
)

// ParsedMessage is the structured form of one fetched message.
type ParsedMessage struct {
	Subject     string
	From        string
	Date        *time.Time
	MessageID   string
	Body        string
	ContentType string
	Headers     map[string][]string
	Attachments []Attachment
}

// Attachment is one decoded file part.
type Attachment struct {
	Name        string
	ContentType string
	Content     []byte
}

// Addresses extracts the plain addresses from a header field such as "from",
// "to" or "cc". Unparsable values fall back to the trimmed raw value.
func (m *ParsedMessage) Addresses(field string) []string {
	if m == nil || len(m.Headers) == 0 {
		return nil
	}
	values := m.Headers[strings.ToLower(strings.TrimSpace(field))]
	var out []string
	for _, value := range values {
		addrs, err := stdmail.ParseAddressList(value)
		if err != nil {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				out = append(out, strings.ToLower(trimmed))
			}
			continue
		}
		for _, addr := range addrs {
			out = append(out, strings.ToLower(strings.TrimSpace(addr.Address)))
		}
	}
	return out
}

// ParserOption customizes a Parser.
type ParserOption func(*Parser)

// Parser decodes raw messages with configurable size limits.
type Parser struct {
	bodyLimit       int64
	attachmentLimit int64
	logger          *log.Logger
	decoder         *mime.WordDecoder
}

// NewParser returns a message parser with default limits (128KiB body,
// 25MiB per attachment).
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		bodyLimit:       defaultBodyLimit,
		attachmentLimit: defaultAttachmentLimit,
		logger:          log.New(log.Writer(), "[PARSE] ", log.LstdFlags),
		decoder:         &mime.WordDecoder{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// WithBodyLimit constrains how much body text is kept.
func WithBodyLimit(limit int64) ParserOption {
	return func(p *Parser) {
		if limit > 0 {
			p.bodyLimit = limit
		}
	}
}

// WithAttachmentLimit constrains how many attachment bytes are buffered.
func WithAttachmentLimit(limit int64) ParserOption {
	return func(p *Parser) {
		if limit > 0 {
			p.attachmentLimit = limit
		}
	}
}

// WithParserLogger overrides the diagnostics logger.
func WithParserLogger(logger *log.Logger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Parse decodes one raw message. Structured MIME parsing is attempted first;
// messages it cannot handle fall back to a plain header/body split so that a
// malformed message still yields something matchable.
func (p *Parser) Parse(raw []byte) (*ParsedMessage, error) {
	if len(raw) == 0 {
		return nil, errors.New("parse message: empty payload")
	}
	reader, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		p.logger.Printf("structured parse failed, using fallback: %v", err)
		return p.legacyParse(raw)
	}

	msg := &ParsedMessage{Headers: headerMap(reader.Header.Header)}
	msg.Subject = p.subject(&reader.Header)
	msg.From = p.fromAddress(&reader.Header)
	msg.MessageID = NormalizeMessageID(reader.Header.Get("Message-Id"))
	if date, err := reader.Header.Date(); err == nil && !date.IsZero() {
		d := date.UTC()
		msg.Date = &d
	}

	var plain, html *bodyCandidate
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.logger.Printf("read part failed: %v", err)
			break
		}
		switch header := part.Header.(type) {
		case *gomail.InlineHeader:
			candidate := p.inlineBody(part, header)
			if candidate == nil {
				continue
			}
			switch {
			case strings.HasPrefix(candidate.contentType, "text/plain"):
				if plain == nil {
					plain = candidate
				}
			case strings.HasPrefix(candidate.contentType, "text/html"):
				if html == nil {
					html = candidate
				}
			default:
				if plain == nil && html == nil {
					plain = candidate
				}
			}
		case *gomail.AttachmentHeader:
			if att := p.attachment(part, header); att != nil {
				msg.Attachments = append(msg.Attachments, *att)
			}
		}
	}
	if plain != nil {
		msg.Body = plain.body
		msg.ContentType = plain.contentType
	} else if html != nil {
		msg.Body = html.body
		msg.ContentType = html.contentType
	}
	if msg.Body == "" && len(msg.Attachments) == 0 {
		if legacy, err := p.legacyParse(raw); err == nil {
			if msg.Subject == "" {
				msg.Subject = legacy.Subject
			}
			if msg.From == "" {
				msg.From = legacy.From
			}
			msg.Body = legacy.Body
			if msg.ContentType == "" {
				msg.ContentType = legacy.ContentType
			}
		}
	}
	return msg, nil
}

type bodyCandidate struct {
	body        string
	contentType string
}

func (p *Parser) legacyParse(raw []byte) (*ParsedMessage, error) {
	reader, err := stdmail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	msg := &ParsedMessage{Headers: map[string][]string{}}
	for key, values := range reader.Header {
		msg.Headers[strings.ToLower(key)] = append([]string(nil), values...)
	}
	msg.Subject = p.decodeWord(reader.Header.Get("Subject"))
	if addr, err := stdmail.ParseAddress(reader.Header.Get("From")); err == nil {
		msg.From = strings.TrimSpace(addr.Address)
	} else {
		msg.From = strings.TrimSpace(reader.Header.Get("From"))
	}
	msg.MessageID = NormalizeMessageID(reader.Header.Get("Message-Id"))
	if date, err := reader.Header.Date(); err == nil && !date.IsZero() {
		d := date.UTC()
		msg.Date = &d
	}
	body, err := io.ReadAll(io.LimitReader(reader.Body, p.bodyLimit))
	if err != nil {
		return nil, fmt.Errorf("read message body: %w", err)
	}
	msg.Body = string(body)
	mediaType, _, err := mime.ParseMediaType(reader.Header.Get("Content-Type"))
	if err == nil && !strings.HasPrefix(mediaType, "multipart/") {
		msg.ContentType = strings.ToLower(mediaType)
	} else {
		msg.ContentType = "text/plain"
	}
	return msg, nil
}

func (p *Parser) inlineBody(part *gomail.Part, header *gomail.InlineHeader) *bodyCandidate {
	contentType, _, err := header.ContentType()
	if err != nil || contentType == "" {
		contentType = "text/plain"
	}
	body, err := io.ReadAll(io.LimitReader(part.Body, p.bodyLimit))
	if err != nil {
		p.logger.Printf("read inline body failed: %v", err)
		return nil
	}
	if len(body) == 0 {
		return nil
	}
	return &bodyCandidate{body: string(body), contentType: strings.ToLower(contentType)}
}

func (p *Parser) attachment(part *gomail.Part, header *gomail.AttachmentHeader) *Attachment {
	filename, err := header.Filename()
	if err != nil || strings.TrimSpace(filename) == "" {
		filename = fmt.Sprintf("attachment-%d.bin", time.Now().UnixNano())
	}
	contentType, _, err := header.ContentType()
	if err != nil || strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	content, err := io.ReadAll(io.LimitReader(part.Body, p.attachmentLimit))
	if err != nil {
		p.logger.Printf("read attachment failed: %v", err)
		return nil
	}
	if len(content) == 0 {
		return nil
	}
	return &Attachment{
		Name:        filename,
		ContentType: strings.ToLower(contentType),
		Content:     content,
	}
}

func (p *Parser) subject(header *gomail.Header) string {
	if subject, err := header.Subject(); err == nil {
		return subject
	}
	return p.decodeWord(header.Get("Subject"))
}

func (p *Parser) fromAddress(header *gomail.Header) string {
	if list, err := header.AddressList("From"); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0].Address)
	}
	return strings.TrimSpace(p.decodeWord(header.Get("From")))
}

func (p *Parser) decodeWord(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if decoded, err := p.decoder.DecodeHeader(value); err == nil {
		return decoded
	}
	return value
}

func headerMap(h gomessage.Header) map[string][]string {
	out := map[string][]string{}
	fields := h.Fields()
	for fields.Next() {
		key := strings.ToLower(fields.Key())
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		out[key] = append(out[key], value)
	}
	return out
}

// NormalizeMessageID strips angle brackets and quotes around a message-id.
func NormalizeMessageID(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, "<>")
	value = strings.Trim(value, "\"")
	return strings.TrimSpace(value)
}
