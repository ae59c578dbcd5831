// Package filter evaluates user rules against message envelopes.
package filter

import (
	"strings"

	gomail "github.com/emersion/go-message/mail"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

// Envelope holds the message fields rules inspect
type Envelope struct {
	MessageID      uint
	MailboxID      uint
	Folder         models.Folder
	From           string
	To             string
	Cc             string
	Subject        string
	HasAttachments bool
}

// EnvelopeOf builds the envelope of a stored message
func EnvelopeOf(m *models.Message) Envelope {
	return Envelope{
		MessageID:      m.ID,
		MailboxID:      m.MailboxID,
		Folder:         m.Folder,
		From:           m.FromAddress,
		To:             m.ToAddress,
		Cc:             m.CcAddress,
		Subject:        m.Subject,
		HasAttachments: m.AttachmentCount > 0,
	}
}

// fieldValues returns the strings a condition key compares against.
// Address fields yield both the display name and the bare address of every entry.
func (e Envelope) fieldValues(key models.ConditionKey) []string {
	switch key {
	case models.ConditionFrom:
		return addressValues(e.From)
	case models.ConditionTo:
		return addressValues(e.To)
	case models.ConditionCc:
		return addressValues(e.Cc)
	case models.ConditionToOrCc:
		return append(addressValues(e.To), addressValues(e.Cc)...)
	case models.ConditionSubject:
		if e.Subject == "" {
			return nil
		}
		return []string{e.Subject}
	default:
		return nil
	}
}

// addressValues parses an address list header, falling back to comma
// splitting when the header is not RFC 5322 compliant.
func addressValues(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	var values []string
	addrs, err := gomail.ParseAddressList(header)
	if err != nil {
		for _, part := range strings.Split(header, ",") {
			if part = strings.TrimSpace(part); part != "" {
				values = append(values, strings.Trim(part, "<>"))
			}
		}
		return values
	}

	for _, a := range addrs {
		if a.Name != "" {
			values = append(values, a.Name)
		}
		if a.Address != "" {
			values = append(values, a.Address)
		}
	}
	return values
}
