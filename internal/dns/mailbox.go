package dns

import (
	"fmt"
	"strings"
)

// Mailbox re-encodes an RFC 822 mail address in domain-name form
// (RFC 1035 Section 8): the local part becomes the first label, with
// dots inside it escaped, and the mail domain supplies the remaining
// labels. "john.doe@example.com" is carried as the three-label name
// "john\.doe", "example", "com".
type Mailbox struct {
	Name
}

// ParseMailbox converts an RFC 822 address to its domain-name form.
// An embedded '@' in the local part must arrive escaped ("\@") and is
// preserved. An empty address yields the root name, rendered "<>".
func ParseMailbox(s string) (Mailbox, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "<>" {
		return Mailbox{}, nil
	}

	// Split local@domain on the first unescaped '@'.
	at := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '@':
			at = i
		}
		if at >= 0 {
			break
		}
	}

	var local, domain string
	if at < 0 {
		// Already in domain-name form ("john\.doe.example.com").
		n, err := NewName(s)
		return Mailbox{Name: n}, err
	}
	local, domain = s[:at], s[at+1:]
	if local == "" {
		return Mailbox{}, fmt.Errorf("%w: mailbox %q has empty local part", ErrMalformedWireData, s)
	}

	// Dots inside the local part are literal, not label separators.
	var b strings.Builder
	for i := 0; i < len(local); i++ {
		c := local[i]
		if c == '\\' && i+1 < len(local) {
			i++
			b.WriteByte('\\')
			b.WriteByte(local[i])
			continue
		}
		if c == '.' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	text := b.String()
	if domain != "" {
		text += "." + domain
	}
	n, err := NewName(text)
	return Mailbox{Name: n}, err
}

// Address renders the mailbox back in RFC 822 form: the first label is
// the local part (with its dots restored, and any literal '@' escaped),
// the remaining labels are the mail domain. A mailbox with no local
// part renders as "<>".
func (m Mailbox) Address() string {
	labels := m.Labels()
	if len(labels) == 0 {
		return "<>"
	}

	var b strings.Builder
	for i := 0; i < len(labels[0]); i++ {
		if labels[0][i] == '@' {
			b.WriteByte('\\')
		}
		b.WriteByte(labels[0][i])
	}
	if len(labels) == 1 {
		return b.String()
	}
	b.WriteByte('@')
	b.WriteString(Name{labels: labels[1:]}.String())
	return b.String()
}

// String renders the mailbox in RFC 822 form.
func (m Mailbox) String() string { return m.Address() }
