// Package imap implements ingestion from a remote IMAP mailbox,
// authenticating with the identity layer's OAuth access token via
// SASL OAUTHBEARER.
package imap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"

	"github.com/nhle/mailscope/internal/identity"
	"github.com/nhle/mailscope/internal/ingest"
	"github.com/nhle/mailscope/internal/model"
)

// TokenSource supplies a usable OAuth credential for the IMAP login.
// identity.Coordinator satisfies it.
type TokenSource interface {
	ValidToken() (identity.Token, bool)
	RefreshStoredToken(ctx context.Context) (identity.Token, bool)
}

// Mailbox reads messages from an IMAP server.
type Mailbox struct {
	host     string
	port     string
	username string
	tls      bool
	tokens   TokenSource
}

// New creates an IMAP ingestor for the given server and account. The
// token source is consulted on every connection; expired tokens are
// refreshed through it before dialing.
func New(host, port, username string, useTLS bool, tokens TokenSource) *Mailbox {
	return &Mailbox{
		host:     host,
		port:     port,
		username: username,
		tls:      useTLS,
		tokens:   tokens,
	}
}

var _ ingest.Ingestor = (*Mailbox)(nil)

// connect dials the server and authenticates with OAUTHBEARER. The
// caller is responsible for Logout on the returned client.
func (m *Mailbox) connect(ctx context.Context) (*imapclient.Client, error) {
	tok, ok := m.tokens.ValidToken()
	if !ok {
		tok, ok = m.tokens.RefreshStoredToken(ctx)
	}
	if !ok {
		return nil, &identity.AuthError{
			Op:  "imap-connect",
			Err: fmt.Errorf("no valid token for %s", m.username),
		}
	}

	addr := m.host + ":" + m.port

	var client *imapclient.Client
	var err error
	if m.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, &ingest.ConnectionError{
			Source: addr,
			Err:    fmt.Errorf("connecting to IMAP: %w", err),
		}
	}

	portNum, _ := strconv.Atoi(m.port)
	saslClient := sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
		Username: m.username,
		Token:    tok.AccessToken,
		Host:     m.host,
		Port:     portNum,
	})

	if err := client.Authenticate(saslClient); err != nil {
		_ = client.Logout().Wait()
		return nil, &identity.AuthError{
			Op:  "imap-connect",
			Err: fmt.Errorf("OAUTHBEARER rejected for %s: %w", m.username, err),
		}
	}

	return client, nil
}

// Messages lazily yields the folder's messages over one connection.
// The connection is held until the iterator is drained or fails.
func (m *Mailbox) Messages(ctx context.Context, folder string, limit int) (*ingest.Iter, error) {
	client, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &ingest.ConnectionError{
			Source: folder,
			Err:    fmt.Errorf("selecting mailbox: %w", err),
		}
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		_ = client.Logout().Wait()
		return nil, &ingest.ConnectionError{
			Source: folder,
			Err:    fmt.Errorf("searching mailbox: %w", err),
		}
	}

	uids := searchData.AllUIDs()
	if limit > 0 && len(uids) > limit {
		// Most recent UIDs sit at the end of the set.
		uids = uids[len(uids)-limit:]
	}

	if len(uids) == 0 {
		_ = client.Logout().Wait()
		return ingest.NewIter(func() (model.Message, bool, error) {
			return nil, false, nil
		}), nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})

	finish := func() {
		_ = fetchCmd.Close()
		_ = client.Logout().Wait()
	}

	return ingest.NewIter(func() (model.Message, bool, error) {
		if err := ctx.Err(); err != nil {
			finish()
			return nil, false, err
		}

		data := fetchCmd.Next()
		if data == nil {
			finish()
			return nil, false, nil
		}

		buf, err := data.Collect()
		if err != nil {
			finish()
			return nil, false, &ingest.ConnectionError{
				Source: folder,
				Err:    fmt.Errorf("collecting message: %w", err),
			}
		}

		msg, err := messageFromBuffer(buf, bodySection)
		if err != nil {
			finish()
			return nil, false, err
		}
		return msg, true, nil
	}), nil
}

// Search yields the folder's messages whose subject or body contains
// query, case-insensitively. Filtering is client-side so local and
// remote sources match on exactly the same contract.
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

// Folders lists the mailboxes available on the server.
func (m *Mailbox) Folders(ctx context.Context) ([]string, error) {
	client, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	boxes, err := client.List("", "*", nil).Collect()
	if err != nil {
		return nil, &ingest.ConnectionError{
			Source: m.host,
			Err:    fmt.Errorf("listing mailboxes: %w", err),
		}
	}

	folders := make([]string, 0, len(boxes))
	for _, box := range boxes {
		folders = append(folders, box.Mailbox)
	}
	return folders, nil
}

// messageFromBuffer turns a fetched message into the canonical shape.
func messageFromBuffer(
	buf *imapclient.FetchMessageBuffer,
	section *imap.FetchItemBodySection,
) (model.Message, error) {
	id := strconv.FormatUint(uint64(buf.UID), 10)

	var from, to, subject string
	var date = buf.InternalDate
	if buf.Envelope != nil {
		subject = buf.Envelope.Subject
		if !buf.Envelope.Date.IsZero() {
			date = buf.Envelope.Date
		}
		if buf.Envelope.MessageID != "" {
			id = buf.Envelope.MessageID
		}
		from = formatAddresses(buf.Envelope.From)
		to = formatAddresses(buf.Envelope.To)
	}

	body, attachments, err := parseRawBody(id, buf.FindBodySection(section))
	if err != nil {
		return nil, err
	}

	msg := model.NewEmail(id, from, to, date, subject, body, attachments)
	for _, flag := range buf.Flags {
		if flag == imap.FlagSeen {
			msg.MarkRead()
		}
	}
	return msg, nil
}

// parseRawBody decodes a raw RFC 822 body into text and attachments.
// An unparseable body falls back to plain text rather than failing,
// matching how the envelope alone is still a usable message.
func parseRawBody(id string, raw []byte) (string, []model.Attachment, error) {
	if len(raw) == 0 {
		return "", nil, nil
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw), nil, nil
	}
	defer mr.Close()

	var body string
	var plainFound bool
	var attachments []model.Attachment

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, &model.ParseError{
				File:   id,
				Reason: "reading message part",
				Err:    err,
			}
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			// First text/plain part wins; other inline text is only a fallback.
			if plain := strings.HasPrefix(contentType, "text/plain"); !plainFound && (plain || body == "") {
				body = string(data)
				plainFound = plain
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			attachments = append(attachments, model.NewAttachment(filename, contentType, data))
		}
	}

	return body, attachments, nil
}

// formatAddresses renders IMAP envelope addresses for display.
func formatAddresses(addrs []imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.Name, a.Addr()))
		} else {
			parts = append(parts, a.Addr())
		}
	}
	return strings.Join(parts, ", ")
}
