// Package local implements ingestion from a filesystem mailbox: a
// root directory with one subdirectory per folder, each file inside a
// folder being one RFC 822 message. The filename stem is the message id.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailscope/internal/ingest"
	"github.com/nhle/mailscope/internal/model"
)

// Mailbox reads messages from a local mailbox directory tree.
type Mailbox struct {
	root string
}

// New creates a filesystem ingestor rooted at dir.
func New(dir string) *Mailbox {
	return &Mailbox{root: dir}
}

var _ ingest.Ingestor = (*Mailbox)(nil)

// Messages lazily yields the messages in folder, one file at a time in
// name order. A missing folder subdirectory is a ConnectionError; a
// malformed file ends iteration with a ParseError naming the file.
func (m *Mailbox) Messages(ctx context.Context, folder string, limit int) (*ingest.Iter, error) {
	dir := filepath.Join(m.root, folder)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &ingest.ConnectionError{
			Source: folder,
			Err:    fmt.Errorf("folder not found in %s", m.root),
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ingest.ConnectionError{Source: folder, Err: err}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	idx := 0
	count := 0
	return ingest.NewIter(func() (model.Message, bool, error) {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		for idx < len(entries) {
			if limit > 0 && count >= limit {
				return nil, false, nil
			}
			entry := entries[idx]
			idx++
			if entry.IsDir() {
				continue
			}

			msg, err := parseFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil, false, err
			}
			count++
			return msg, true, nil
		}
		return nil, false, nil
	}), nil
}

// Search yields the folder's messages whose subject or body contains
// query, case-insensitively.
func (m *Mailbox) Search(ctx context.Context, folder, query string) (*ingest.Iter, error) {
	inner, err := m.Messages(ctx, folder, 0)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	return ingest.NewIter(func() (model.Message, bool, error) {
		for {
			msg, ok, err := inner.Next()
			if !ok || err != nil {
				return nil, false, err
			}
			if strings.Contains(strings.ToLower(msg.Subject()), needle) ||
				strings.Contains(strings.ToLower(msg.Body()), needle) {
				return msg, true, nil
			}
		}
	}), nil
}

// Folders lists the subdirectories of the mailbox root.
func (m *Mailbox) Folders(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, &ingest.ConnectionError{Source: m.root, Err: err}
	}

	var folders []string
	for _, entry := range entries {
		if entry.IsDir() {
			folders = append(folders, entry.Name())
		}
	}
	return folders, nil
}

// parseFile reads one RFC 822 file into a canonical message.
func parseFile(path string) (model.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &model.ParseError{File: filepath.Base(path), Reason: "opening message file", Err: err}
	}
	defer f.Close()

	mr, err := mail.CreateReader(f)
	if err != nil {
		return nil, &model.ParseError{File: filepath.Base(path), Reason: "reading message headers", Err: err}
	}
	defer mr.Close()

	header := mr.Header
	date, err := header.Date()
	if err != nil {
		return nil, &model.ParseError{File: filepath.Base(path), Reason: "message has no parseable date", Err: err}
	}
	subject, _ := header.Subject()
	from := addressText(&header, "From")
	to := addressText(&header, "To")

	var body string
	var plainFound bool
	var attachments []model.Attachment

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &model.ParseError{File: filepath.Base(path), Reason: "reading message part", Err: err}
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				return nil, &model.ParseError{File: filepath.Base(path), Reason: "decoding message body", Err: readErr}
			}
			// Prefer the first text/plain part; fall back to any inline text.
			if plain := strings.HasPrefix(contentType, "text/plain"); !plainFound && (plain || body == "") {
				body = string(data)
				plainFound = plain
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				return nil, &model.ParseError{File: filepath.Base(path), Reason: "decoding attachment", Err: readErr}
			}
			attachments = append(attachments, model.NewAttachment(filename, contentType, data))
		}
	}

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return model.NewEmail(id, from, to, date, subject, body, attachments), nil
}

// addressText renders an address header for display, falling back to
// the raw decoded value when the list does not parse.
func addressText(h *mail.Header, key string) string {
	addrs, err := h.AddressList(key)
	if err != nil || len(addrs) == 0 {
		v, _ := h.Text(key)
		return v
	}

	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.Name, a.Address))
		} else {
			parts = append(parts, a.Address)
		}
	}
	return strings.Join(parts, ", ")
}
