package model

import (
	"fmt"
	"time"
)

// Attachment is a single file attached to a message. Size is always
// derived from the content length; implementations never carry an
// independent size field.
type Attachment interface {
	Filename() string
	ContentType() string
	Size() int
	Content() []byte
}

// Message is the canonical message shape: ingestion produces it and
// analysis consumes it. The read flag is owned by the message instance
// and changes only through MarkRead/MarkUnread.
type Message interface {
	ID() string
	From() string
	To() string
	Date() time.Time
	Subject() string
	Body() string
	Attachments() []Attachment
	IsRead() bool
	MarkRead()
	MarkUnread()
}

// FileAttachment is the concrete Attachment backed by an in-memory
// byte slice.
type FileAttachment struct {
	filename    string
	contentType string
	content     []byte
}

// NewAttachment creates an attachment from its filename, MIME type,
// and raw content.
func NewAttachment(filename, contentType string, content []byte) *FileAttachment {
	return &FileAttachment{
		filename:    filename,
		contentType: contentType,
		content:     content,
	}
}

func (a *FileAttachment) Filename() string    { return a.filename }
func (a *FileAttachment) ContentType() string { return a.contentType }
func (a *FileAttachment) Size() int           { return len(a.content) }
func (a *FileAttachment) Content() []byte     { return a.content }

// Email is the concrete Message implementation.
type Email struct {
	id          string
	from        string
	to          string
	date        time.Time
	subject     string
	body        string
	attachments []Attachment
	read        bool
}

// NewEmail creates a message from already-validated parts. The read
// flag starts false.
func NewEmail(
	id, from, to string,
	date time.Time,
	subject, body string,
	attachments []Attachment,
) *Email {
	return &Email{
		id:          id,
		from:        from,
		to:          to,
		date:        date,
		subject:     subject,
		body:        body,
		attachments: attachments,
	}
}

func (m *Email) ID() string                { return m.id }
func (m *Email) From() string              { return m.from }
func (m *Email) To() string                { return m.to }
func (m *Email) Date() time.Time           { return m.date }
func (m *Email) Subject() string           { return m.subject }
func (m *Email) Body() string              { return m.body }
func (m *Email) Attachments() []Attachment { return m.attachments }
func (m *Email) IsRead() bool              { return m.read }
func (m *Email) MarkRead()                 { m.read = true }
func (m *Email) MarkUnread()               { m.read = false }

// attachmentKeys are the fields every attachment construction map must
// carry, checked in this order so errors name the first missing key.
var attachmentKeys = []string{"filename", "content_type", "content"}

// NewMessage builds a canonical message from raw parts, validating
// each attachment map. Construction is all-or-nothing: one incomplete
// attachment entry fails the whole message with a ParseError naming
// the first missing key.
func NewMessage(
	id, from, to string,
	date time.Time,
	subject, body string,
	attachments []map[string]any,
) (*Email, error) {
	var list []Attachment

	for i, raw := range attachments {
		for _, key := range attachmentKeys {
			if _, ok := raw[key]; !ok {
				return nil, &ParseError{
					Reason: fmt.Sprintf("attachment %d missing %s", i, key),
				}
			}
		}

		filename, ok := raw["filename"].(string)
		if !ok {
			return nil, &ParseError{
				Reason: fmt.Sprintf("attachment %d: filename must be a string", i),
			}
		}
		contentType, ok := raw["content_type"].(string)
		if !ok {
			return nil, &ParseError{
				Reason: fmt.Sprintf("attachment %d: content_type must be a string", i),
			}
		}
		content, ok := raw["content"].([]byte)
		if !ok {
			return nil, &ParseError{
				Reason: fmt.Sprintf("attachment %d: content must be bytes", i),
			}
		}

		list = append(list, NewAttachment(filename, contentType, content))
	}

	return NewEmail(id, from, to, date, subject, body, list), nil
}

// AttachmentMeta is the persisted metadata of an attachment; content
// bytes stay in the mailbox source.
type AttachmentMeta struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// MessageRecord is the flattened, storable form of a canonical message
// used by the cache and the UI list.
type MessageRecord struct {
	// ID is the message id, unique within its source.
	ID string `json:"id"`

	// Folder is the mailbox folder the message came from.
	Folder string `json:"folder"`

	// From and To are the sender and recipient as displayed.
	From string `json:"from"`
	To   string `json:"to"`

	// Subject and Body are the decoded header and text content.
	Subject string `json:"subject"`
	Body    string `json:"body"`

	// Date is the message timestamp with timezone.
	Date time.Time `json:"date"`

	// Attachments holds attachment metadata only.
	Attachments []AttachmentMeta `json:"attachments,omitempty"`

	// Read mirrors the message read flag.
	Read bool `json:"read"`

	// FetchedAt is when this record was last ingested.
	FetchedAt time.Time `json:"fetched_at"`
}

// RecordFromMessage flattens a canonical message for storage.
func RecordFromMessage(folder string, msg Message) MessageRecord {
	rec := MessageRecord{
		ID:        msg.ID(),
		Folder:    folder,
		From:      msg.From(),
		To:        msg.To(),
		Subject:   msg.Subject(),
		Body:      msg.Body(),
		Date:      msg.Date(),
		Read:      msg.IsRead(),
		FetchedAt: time.Now(),
	}
	for _, att := range msg.Attachments() {
		rec.Attachments = append(rec.Attachments, AttachmentMeta{
			Filename:    att.Filename(),
			ContentType: att.ContentType(),
			Size:        att.Size(),
		})
	}
	return rec
}
