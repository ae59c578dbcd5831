package threading

import (
	"strings"
)

// NormalizeSubject reduces a subject to the form used to decide whether two
// messages may share a conversation: lowercased, whitespace collapsed, with
// reply and forward markers ("re:", "fw:", "fwd:", "[list]" tags, a trailing
// "(fwd)" and "[fwd: ...]" wrapping) removed.
func NormalizeSubject(subject string) string {
	s := collapseSpace(strings.ToLower(subject))

	for {
		// Trailing "(fwd)" markers and whitespace.
		for {
			prev := s
			s = strings.TrimRight(s, " ")
			s = strings.TrimSuffix(s, "(fwd)")
			if s == prev {
				break
			}
		}

		// Leading reply/forward prefixes and list tags.
		for {
			prev := s
			s = stripLeader(s)
			if ns := stripBlob(s); ns != "" {
				s = ns
			}
			if s == prev {
				break
			}
		}

		if strings.HasPrefix(s, "[fwd:") && strings.HasSuffix(s, "]") {
			s = s[len("[fwd:") : len(s)-1]
			continue
		}
		break
	}

	return strings.TrimSpace(s)
}

func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, c := range s {
		switch c {
		case '\r':
			continue
		case ' ', '\t', '\n':
			if !space {
				b.WriteByte(' ')
			}
			space = true
		default:
			b.WriteRune(c)
			space = false
		}
	}
	return b.String()
}

// stripBlob removes one leading "[...]" tag
func stripBlob(s string) string {
	if !strings.HasPrefix(s, "[") {
		return s
	}
	end := strings.IndexAny(s[1:], "[]")
	if end < 0 || s[1+end] != ']' {
		return s
	}
	return strings.TrimLeft(s[end+2:], " ")
}

// stripLeader removes one "re:", "fw:" or "fwd:" prefix, optionally preceded by list tags
func stripLeader(s string) string {
	orig := s
	s = strings.TrimLeft(s, " ")

	for {
		ns := stripBlob(s)
		if ns == s {
			break
		}
		s = ns
	}

	switch {
	case strings.HasPrefix(s, "re"):
		s = s[2:]
	case strings.HasPrefix(s, "fwd"):
		s = s[3:]
	case strings.HasPrefix(s, "fw"):
		s = s[2:]
	default:
		return orig
	}

	s = strings.TrimLeft(s, " ")
	s = stripBlob(s)
	if !strings.HasPrefix(s, ":") {
		return orig
	}
	return strings.TrimLeft(s[1:], " ")
}
