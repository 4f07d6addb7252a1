package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/mailscope/internal/model"
	"github.com/nhle/mailscope/internal/store"
	"github.com/nhle/mailscope/tests/testutil"
)

func testRecord(id, folder, subject string, date time.Time) model.MessageRecord {
	return model.MessageRecord{
		ID:        id,
		Folder:    folder,
		From:      "alice@example.com",
		To:        "bob@example.com",
		Subject:   subject,
		Body:      "body of " + id,
		Date:      date,
		FetchedAt: time.Now(),
	}
}

func TestUpsertAndGetMessages(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []model.MessageRecord{
		testRecord("m1", "inbox", "Budget report", base),
		testRecord("m2", "inbox", "Lunch plans", base.Add(time.Hour)),
		testRecord("m3", "archive", "Old thread", base.Add(-24*time.Hour)),
	}
	msgs[0].Attachments = []model.AttachmentMeta{
		{Filename: "report.pdf", ContentType: "application/pdf", Size: 1024},
	}

	if err := s.UpsertMessages(ctx, msgs); err != nil {
		t.Fatalf("UpsertMessages: %v", err)
	}

	got, err := s.GetMessages(ctx, store.MessageFilter{})
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}

	// Default sort is by date ascending.
	if got[0].ID != "m3" || got[1].ID != "m1" || got[2].ID != "m2" {
		t.Errorf("unexpected order: %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
	}

	m1, err := s.GetMessageByID(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMessageByID: %v", err)
	}
	if m1 == nil {
		t.Fatal("expected m1 to exist")
	}
	if len(m1.Attachments) != 1 || m1.Attachments[0].Filename != "report.pdf" {
		t.Errorf("attachments not round-tripped: %+v", m1.Attachments)
	}
	if m1.Attachments[0].Size != 1024 {
		t.Errorf("attachment size = %d, want 1024", m1.Attachments[0].Size)
	}
}

func TestGetMessageByIDMissing(t *testing.T) {
	s := testutil.NewTestStore(t)

	got, err := s.GetMessageByID(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("GetMessageByID: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing message, got %+v", got)
	}
}

func TestGetMessagesFilters(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []model.MessageRecord{
		testRecord("m1", "inbox", "Invoice for March", base),
		testRecord("m2", "inbox", "Team meeting", base.Add(time.Hour)),
		testRecord("m3", "archive", "Invoice for February", base.Add(2*time.Hour)),
	}
	msgs[1].Read = true
	testutil.SeedMessages(t, s, msgs...)

	folder := "inbox"
	got, err := s.GetMessages(ctx, store.MessageFilter{Folder: &folder})
	if err != nil {
		t.Fatalf("GetMessages(folder): %v", err)
	}
	if len(got) != 2 {
		t.Errorf("folder filter: expected 2 messages, got %d", len(got))
	}

	got, err = s.GetMessages(ctx, store.MessageFilter{UnreadOnly: true})
	if err != nil {
		t.Fatalf("GetMessages(unread): %v", err)
	}
	if len(got) != 2 {
		t.Errorf("unread filter: expected 2 messages, got %d", len(got))
	}
	for _, m := range got {
		if m.Read {
			t.Errorf("unread filter returned read message %s", m.ID)
		}
	}

	query := "invoice"
	got, err = s.GetMessages(ctx, store.MessageFilter{Query: &query})
	if err != nil {
		t.Fatalf("GetMessages(query): %v", err)
	}
	if len(got) != 2 {
		t.Errorf("query filter: expected 2 messages, got %d", len(got))
	}

	got, err = s.GetMessages(ctx, store.MessageFilter{SortBy: "date", SortDesc: true, Limit: 1})
	if err != nil {
		t.Fatalf("GetMessages(limit): %v", err)
	}
	if len(got) != 1 || got[0].ID != "m3" {
		t.Errorf("expected newest message m3, got %+v", got)
	}
}

func TestUpsertPreservesReadFlag(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	rec := testRecord("m1", "inbox", "Hello", time.Now())
	if err := s.UpsertMessages(ctx, []model.MessageRecord{rec}); err != nil {
		t.Fatalf("UpsertMessages: %v", err)
	}
	if err := s.SetRead(ctx, "m1", true); err != nil {
		t.Fatalf("SetRead: %v", err)
	}

	// Re-ingesting the same message as unread must not clear the flag.
	rec.Subject = "Hello (edited)"
	if err := s.UpsertMessages(ctx, []model.MessageRecord{rec}); err != nil {
		t.Fatalf("UpsertMessages again: %v", err)
	}

	got, err := s.GetMessageByID(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMessageByID: %v", err)
	}
	if got == nil {
		t.Fatal("expected m1 to exist")
	}
	if !got.Read {
		t.Error("read flag was reset by re-ingest")
	}
	if got.Subject != "Hello (edited)" {
		t.Errorf("subject not updated: %q", got.Subject)
	}
}

func TestSetRead(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	testutil.SeedMessages(t, s, testRecord("m1", "inbox", "Hello", time.Now()))

	if err := s.SetRead(ctx, "m1", true); err != nil {
		t.Fatalf("SetRead(true): %v", err)
	}
	got, _ := s.GetMessageByID(ctx, "m1")
	if got == nil || !got.Read {
		t.Fatal("expected m1 to be read")
	}

	if err := s.SetRead(ctx, "m1", false); err != nil {
		t.Fatalf("SetRead(false): %v", err)
	}
	got, _ = s.GetMessageByID(ctx, "m1")
	if got == nil || got.Read {
		t.Fatal("expected m1 to be unread")
	}
}

func TestListFolders(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Now()
	testutil.SeedMessages(t, s,
		testRecord("m1", "work", "a", base),
		testRecord("m2", "inbox", "b", base),
		testRecord("m3", "inbox", "c", base),
	)

	folders, err := s.ListFolders(ctx)
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if len(folders) != 2 || folders[0] != "inbox" || folders[1] != "work" {
		t.Errorf("unexpected folders: %v", folders)
	}
}

func TestSaveAndGetAnalyses(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	sentiment := 0.5
	a1 := model.Analysis{
		ID:           "a1",
		MessageID:    "m1",
		MessageCount: 1,
		Sentiment:    &sentiment,
		Topics:       []string{"finance", "project"},
		Entities:     []string{"Alice Smith"},
		Summary:      "short summary",
		Confidence:   0.85,
		AnalyzedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	a2 := model.Analysis{
		ID:           "a2",
		MessageID:    "m2",
		MessageCount: 3,
		Summary:      "thread summary",
		Confidence:   0.80,
		AnalyzedAt:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}

	if err := s.SaveAnalysis(ctx, a1); err != nil {
		t.Fatalf("SaveAnalysis a1: %v", err)
	}
	if err := s.SaveAnalysis(ctx, a2); err != nil {
		t.Fatalf("SaveAnalysis a2: %v", err)
	}

	all, err := s.GetAnalyses(ctx)
	if err != nil {
		t.Fatalf("GetAnalyses: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 analyses, got %d", len(all))
	}
	// Newest first.
	if all[0].ID != "a2" {
		t.Errorf("expected a2 first, got %s", all[0].ID)
	}

	got, err := s.GetAnalysisByMessageID(ctx, "m1")
	if err != nil {
		t.Fatalf("GetAnalysisByMessageID: %v", err)
	}
	if got == nil {
		t.Fatal("expected analysis for m1")
	}
	if got.Sentiment == nil || *got.Sentiment != 0.5 {
		t.Errorf("sentiment not round-tripped: %v", got.Sentiment)
	}
	if len(got.Topics) != 2 || got.Topics[0] != "finance" {
		t.Errorf("topics not round-tripped: %v", got.Topics)
	}

	// Nil sentiment stays nil.
	got, err = s.GetAnalysisByMessageID(ctx, "m2")
	if err != nil {
		t.Fatalf("GetAnalysisByMessageID m2: %v", err)
	}
	if got == nil {
		t.Fatal("expected analysis for m2")
	}
	if got.Sentiment != nil {
		t.Errorf("expected nil sentiment, got %v", got.Sentiment)
	}

	missing, err := s.GetAnalysisByMessageID(ctx, "m9")
	if err != nil {
		t.Fatalf("GetAnalysisByMessageID missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing analysis, got %+v", missing)
	}
}
