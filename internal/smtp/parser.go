package smtp

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/jhillyerd/enmime"
)

// ParsedEmail represents a parsed email message
type ParsedEmail struct {
	MessageID   string
	InReplyTo   string
	SenderEmail string
	SenderName  string
	To          string
	Cc          string
	Subject     string
	Date        time.Time
	Snippet     string
	BodyText    string
	BodyHTML    string
	Attachments []ParsedAttachment

	// MD5 is the hex digest of the raw message, used to detect redelivery
	MD5  string
	Size int64
}

// ParsedAttachment represents a parsed email attachment
type ParsedAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Size returns the attachment length in bytes
func (a ParsedAttachment) Size() int64 {
	return int64(len(a.Content))
}

const snippetLength = 255

var (
	fromPattern   = regexp.MustCompile(`^(?:"?([^"<]*)"?\s*)?<?([^<>]+@[^<>]+)>?$`)
	scriptPattern = regexp.MustCompile(`(?i)<(script|style)[^>]*>[\s\S]*?</(script|style)>`)
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
)

// ParseEmail parses a raw RFC 5322 message
func ParseEmail(r io.Reader) (*ParsedEmail, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	sum := md5.Sum(raw)
	parsed := &ParsedEmail{
		Subject:  env.GetHeader("Subject"),
		To:       env.GetHeader("To"),
		Cc:       env.GetHeader("Cc"),
		BodyText: env.Text,
		BodyHTML: env.HTML,
		MD5:      hex.EncodeToString(sum[:]),
		Size:     int64(len(raw)),
	}
	parsed.SenderName, parsed.SenderEmail = parseFromHeader(env.GetHeader("From"))
	parsed.Snippet = generateSnippet(parsed.BodyText, parsed.BodyHTML)

	if h, err := readHeader(raw); err == nil {
		parsed.MessageID, parsed.InReplyTo = threadIDs(h)
		if date, err := h.Date(); err == nil {
			parsed.Date = date.UTC()
		}
	}

	for _, att := range env.Attachments {
		parsed.Attachments = append(parsed.Attachments, ParsedAttachment{
			Filename:    attachmentName(att.FileName),
			ContentType: att.ContentType,
			Content:     att.Content,
		})
	}

	// Inline parts count only when they carry a file name
	for _, att := range env.Inlines {
		if att.FileName != "" {
			parsed.Attachments = append(parsed.Attachments, ParsedAttachment{
				Filename:    att.FileName,
				ContentType: att.ContentType,
				Content:     att.Content,
			})
		}
	}

	return parsed, nil
}

func readHeader(raw []byte) (gomail.Header, error) {
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return gomail.Header{}, err
	}
	return gomail.Header{Header: message.Header{Header: h}}, nil
}

// threadIDs returns the bracketed Message-ID and parent id. The parent is
// In-Reply-To, or the last References entry when In-Reply-To is absent.
func threadIDs(h gomail.Header) (id, parent string) {
	if v, err := h.MessageID(); err == nil && v != "" {
		id = "<" + v + ">"
	}
	if ids, err := h.MsgIDList("In-Reply-To"); err == nil && len(ids) > 0 {
		return id, "<" + ids[0] + ">"
	}
	if ids, err := h.MsgIDList("References"); err == nil && len(ids) > 0 {
		return id, "<" + ids[len(ids)-1] + ">"
	}
	return id, ""
}

func attachmentName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "attachment"
	}
	return name
}

// parseFromHeader extracts name and email from a From header
func parseFromHeader(from string) (name, email string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", ""
	}

	if addr, err := gomail.ParseAddress(from); err == nil {
		return addr.Name, addr.Address
	}

	matches := fromPattern.FindStringSubmatch(from)
	if len(matches) >= 3 {
		return strings.Trim(strings.TrimSpace(matches[1]), `"`), strings.TrimSpace(matches[2])
	}
	return "", from
}

// generateSnippet creates a preview snippet from email body
func generateSnippet(bodyText, bodyHTML string) string {
	text := bodyText
	if text == "" && bodyHTML != "" {
		text = stripHTMLTags(bodyHTML)
	}

	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > snippetLength {
		text = string(runes[:snippetLength-3]) + "..."
	}
	return text
}

// stripHTMLTags removes HTML tags from a string
func stripHTMLTags(html string) string {
	html = scriptPattern.ReplaceAllString(html, "")
	html = tagPattern.ReplaceAllString(html, " ")

	return strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	).Replace(html)
}
