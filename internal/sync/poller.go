package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mailscope/internal/analyzer"
	"github.com/nhle/mailscope/internal/identity"
	"github.com/nhle/mailscope/internal/ingest"
	"github.com/nhle/mailscope/internal/model"
	"github.com/nhle/mailscope/internal/store"
)

// SyncState represents the current state of a mailbox sync operation.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the sync state of the watched folder.
type SyncStatus struct {
	Folder   string
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a sync operation completes.
type SyncResultMsg struct {
	Folder    string
	Messages  []model.MessageRecord
	NewCount  int
	Analyzed  int
	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg is a tea.Msg sent when the mailbox rejects our credentials.
type AuthErrorMsg struct {
	Message string
}

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// fetchLimit caps how many messages a single poll pulls from a folder.
const fetchLimit = 200

// Authenticator reports whether the session holds usable credentials.
// The identity coordinator satisfies it.
type Authenticator interface {
	IsAuthenticated(ctx context.Context) bool
}

// Poller ingests a mailbox folder on an interval, caches the messages,
// and runs the analyzer over anything it has not seen before.
type Poller struct {
	store    store.Store
	mailbox  ingest.Ingestor
	analyzer analyzer.Analyzer
	auth     Authenticator // nil for local mailboxes

	folder   string
	interval time.Duration

	status    SyncStatus
	resultCh  chan SyncResultMsg
	triggerCh chan string
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// New creates a Poller watching the given folder. auth may be nil when
// the mailbox needs no credentials, such as a local maildir.
func New(s store.Store, mailbox ingest.Ingestor, an analyzer.Analyzer, auth Authenticator, folder string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 120 * time.Second
	}
	return &Poller{
		store:     s,
		mailbox:   mailbox,
		analyzer:  an,
		auth:      auth,
		folder:    folder,
		interval:  interval,
		status:    SyncStatus{Folder: folder, State: SyncIdle},
		resultCh:  make(chan SyncResultMsg, 16),
		triggerCh: make(chan string, 16),
		stopCh:    make(chan struct{}),
	}
}

// Start returns a tea.Cmd that starts the polling goroutine and
// subscribes to results. The returned command waits on the result
// channel and returns SyncResultMsg messages to the Bubble Tea runtime.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.waitForResult()
}

// Stop halts the polling goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Refresh triggers an immediate poll of the given folder. An empty
// folder polls the watched one.
func (p *Poller) Refresh(folder string) tea.Cmd {
	if folder == "" {
		p.mu.Lock()
		folder = p.folder
		p.mu.Unlock()
	}
	select {
	case p.triggerCh <- folder:
	default:
		// Channel full; a poll is already pending.
	}
	return nil
}

// SetFolder changes the watched folder for subsequent polls.
func (p *Poller) SetFolder(folder string) {
	p.mu.Lock()
	p.folder = folder
	p.status.Folder = folder
	p.mu.Unlock()
}

// Status returns the current sync status.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// loop runs the polling loop until Stop is called.
func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Do an initial fetch immediately.
	p.mu.Lock()
	folder := p.folder
	p.mu.Unlock()
	p.fetchAndUpsert(folder)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.mu.Lock()
			folder := p.folder
			p.mu.Unlock()
			p.fetchAndUpsert(folder)
		case folder := <-p.triggerCh:
			p.fetchAndUpsert(folder)
		}
	}
}

// fetchAndUpsert performs a single ingest pass over a folder, caches the
// results, analyzes unseen messages, and sends a SyncResultMsg.
func (p *Poller) fetchAndUpsert(folder string) {
	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	// Remote mailboxes are only polled while the session is
	// authenticated; a poll must never trigger an implicit login.
	if p.auth != nil && !p.auth.IsAuthenticated(ctx) {
		err := fmt.Errorf("skipping poll of %s: not authenticated", folder)
		p.setStatus(SyncError, err)
		p.sendResult(SyncResultMsg{
			Folder: folder,
			Error:  err,
			AuthError: &AuthErrorMsg{
				Message: "authentication expired, press 'c' to reconnect",
			},
		})
		return
	}

	iter, err := p.mailbox.Messages(ctx, folder, fetchLimit)
	if err != nil {
		p.fail(folder, err)
		return
	}

	msgs, err := ingest.Collect(iter)
	if err != nil {
		p.fail(folder, err)
		return
	}

	records := make([]model.MessageRecord, 0, len(msgs))
	for _, msg := range msgs {
		records = append(records, model.RecordFromMessage(folder, msg))
	}

	// Anything not yet cached is new and gets analyzed below.
	existing, err := p.store.GetMessages(ctx, store.MessageFilter{Folder: &folder})
	if err != nil {
		p.fail(folder, err)
		return
	}
	existingIDs := make(map[string]bool, len(existing))
	for _, rec := range existing {
		existingIDs[rec.ID] = true
	}

	if len(records) > 0 {
		if err := p.store.UpsertMessages(ctx, records); err != nil {
			p.fail(folder, err)
			return
		}
	}

	newCount := 0
	analyzed := 0
	for _, msg := range msgs {
		if existingIDs[msg.ID()] {
			continue
		}
		newCount++

		result, err := p.analyzer.Analyze(msg)
		if err != nil {
			// Analysis is best effort; the message is already cached.
			continue
		}
		if err := p.store.SaveAnalysis(ctx, result); err != nil {
			continue
		}
		analyzed++
	}

	p.setStatus(SyncIdle, nil)
	p.sendResult(SyncResultMsg{
		Folder:   folder,
		Messages: records,
		NewCount: newCount,
		Analyzed: analyzed,
	})
}

// fail records a sync error and reports it, classifying credential
// problems so the UI can prompt for reconnection.
func (p *Poller) fail(folder string, err error) {
	p.setStatus(SyncError, err)

	if identity.IsAuthError(err) {
		p.sendResult(SyncResultMsg{
			Folder: folder,
			Error:  err,
			AuthError: &AuthErrorMsg{
				Message: "authentication expired, press 'c' to reconnect",
			},
		})
		return
	}

	p.sendResult(SyncResultMsg{Folder: folder, Error: err})
}

// setStatus updates the sync status.
func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle && err == nil {
		p.status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller.
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next sync result.
// Call it after processing a SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
