package messaging

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"tempguard/internal/types"
)

//go:embed templates/email.html
var templateFS embed.FS

// subjects maps a message kind to its email subject line.
var subjects = map[types.MessageKind]string{
	types.MessageAlert:        "Temperature Alert - Action Required",
	types.MessageWarning:      "Compliance Warning",
	types.MessageDailySummary: "Daily Temperature Summary",
}

// Subject returns the email subject for kind. Unknown kinds get the
// summary subject.
func Subject(kind types.MessageKind) string {
	if s, ok := subjects[kind]; ok {
		return s
	}
	return subjects[types.MessageDailySummary]
}

type emailData struct {
	Subject    string
	Paragraphs [][]string
	UploadURL  string
	SenderName string
}

// EmailRenderer wraps a stored plain-text message in the HTML layout.
type EmailRenderer struct {
	layout *template.Template
	from   types.SenderIdentity
	appURL string
}

// NewEmailRenderer parses the embedded layout.
func NewEmailRenderer(from types.SenderIdentity, appURL string) (*EmailRenderer, error) {
	raw, err := templateFS.ReadFile("templates/email.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read email.html: %w", err)
	}
	layout, err := template.New("email").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse email.html: %w", err)
	}
	return &EmailRenderer{layout: layout, from: from, appURL: strings.TrimRight(appURL, "/")}, nil
}

// Build turns a queued message into the provider input. The text body is
// the stored content verbatim.
func (r *EmailRenderer) Build(msg *types.DispatchedMessage, to string) (types.SendInput, error) {
	data := emailData{
		Subject:    Subject(msg.Kind),
		Paragraphs: paragraphs(msg.Content),
		SenderName: r.from.Name,
	}
	if msg.Kind.RequestsUpload() {
		data.UploadURL = UploadURL(r.appURL, msg.ID)
	}

	var buf bytes.Buffer
	if err := r.layout.Execute(&buf, data); err != nil {
		return types.SendInput{}, fmt.Errorf("renderer: failed to render email for %s: %w", msg.ID, err)
	}
	return types.SendInput{
		To:          to,
		From:        r.from,
		Subject:     data.Subject,
		BodyText:    msg.Content,
		BodyHTML:    buf.String(),
		ReferenceID: msg.ID,
	}, nil
}

func paragraphs(content string) [][]string {
	var out [][]string
	for _, block := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		out = append(out, strings.Split(block, "\n"))
	}
	return out
}

// UploadURL is the link a recipient follows to upload evidence for a
// message.
func UploadURL(appURL, messageID string) string {
	return fmt.Sprintf("%s/upload?token=%s", strings.TrimRight(appURL, "/"), messageID)
}
