// Package mail provides the parsed email shape consumed by vendor
// processors, plus the plumbing that turns raw RFC 5322 bytes into it.
package mail

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// Attachment is a non-text MIME part of an email.
type Attachment struct {
	Filename string
	MimeType string
	Content  []byte
}

// Email is the parsed form of a received message.
type Email struct {
	// From is the sender address, without display name.
	From        string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// ParseRaw parses raw RFC 5322 message bytes into an Email, walking nested
// multipart bodies and decoding base64 or quoted-printable transfer
// encodings.
func ParseRaw(raw []byte) (*Email, error) {
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	email := &Email{Subject: decodeHeader(msg.Header.Get("Subject"))}

	if addr, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		email.From = addr.Address
	}

	contentType := msg.Header.Get("Content-Type")
	encoding := msg.Header.Get("Content-Transfer-Encoding")
	if err := walkPart(email, msg.Body, contentType, encoding, ""); err != nil {
		return nil, err
	}

	return email, nil
}

// walkPart consumes one MIME part, recursing into multipart bodies.
func walkPart(email *Email, body io.Reader, contentType, encoding, filename string) error {
	mediaType := "text/plain"
	var params map[string]string
	if contentType != "" {
		var err error
		mediaType, params, err = mime.ParseMediaType(contentType)
		if err != nil {
			return fmt.Errorf("failed to parse content type %q: %w", contentType, err)
		}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("multipart body with no boundary")
		}
		reader := multipart.NewReader(body, boundary)
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read multipart body: %w", err)
			}
			err = walkPart(email, part,
				part.Header.Get("Content-Type"),
				part.Header.Get("Content-Transfer-Encoding"),
				part.FileName())
			if err != nil {
				return err
			}
		}
	}

	content, err := io.ReadAll(decodeBody(body, encoding))
	if err != nil {
		return fmt.Errorf("failed to read part body: %w", err)
	}

	switch {
	case mediaType == "text/plain" && email.Text == "" && filename == "":
		email.Text = string(content)
	case mediaType == "text/html" && email.HTML == "" && filename == "":
		email.HTML = string(content)
	default:
		email.Attachments = append(email.Attachments, Attachment{
			Filename: filename,
			MimeType: mediaType,
			Content:  content,
		})
	}

	return nil
}

func decodeBody(body io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, newWhitespaceStripper(body))
	case "quoted-printable":
		return quotedprintable.NewReader(body)
	default:
		return body
	}
}

func decodeHeader(value string) string {
	decoder := mime.WordDecoder{}
	decoded, err := decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// whitespaceStripper removes line breaks from wrapped base64 bodies.
type whitespaceStripper struct {
	r io.Reader
}

func newWhitespaceStripper(r io.Reader) io.Reader {
	return &whitespaceStripper{r: r}
}

func (w *whitespaceStripper) Read(p []byte) (int, error) {
	buf := make([]byte, len(p))
	n, err := w.r.Read(buf)
	out := 0
	for _, b := range buf[:n] {
		if b == '\r' || b == '\n' || b == ' ' || b == '\t' {
			continue
		}
		p[out] = b
		out++
	}
	if out == 0 && err == nil && n > 0 {
		// Skipped a whitespace-only chunk; report zero bytes but no error so
		// the caller retries.
		return 0, nil
	}
	return out, err
}
