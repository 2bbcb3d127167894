package history

import (
	"context"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/ssrdiff/dbopen"
	"github.com/hazyhaar/ssrdiff/idgen"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	s := New(db)
	s.newID = idgen.Sequence("cmp_")
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i, url := range []string{"https://a.test/", "https://b.test/", "https://a.test/"} {
		e := &Entry{
			PageURL:   url,
			BaseURL:   url,
			Added:     i,
			Missing:   2 * i,
			Compared:  true,
			CreatedAt: int64(1000 + i),
		}
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
		if e.ID == "" {
			t.Fatal("ID not assigned")
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len: got %d, want 2", len(got))
	}
	if got[0].CreatedAt != 1002 || got[1].CreatedAt != 1001 {
		t.Errorf("order: %d, %d", got[0].CreatedAt, got[1].CreatedAt)
	}
	if got[0].Added != 2 || got[0].Missing != 4 || !got[0].Compared {
		t.Errorf("entry: %+v", got[0])
	}

	page, err := s.ForPage(ctx, "https://a.test/", 10)
	if err != nil {
		t.Fatalf("for page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("for page: got %d entries, want 2", len(page))
	}
}

func TestRecord_Errors(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	e := &Entry{
		PageURL:        "https://down.test/",
		ReferenceError: "HTTP 503",
		RenderedError:  "timed out waiting for rendered DOM",
		Shell:          true,
	}
	if err := s.Record(ctx, e); err != nil {
		t.Fatal(err)
	}
	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("len: %d", len(got))
	}
	if got[0].ReferenceError != "HTTP 503" || got[0].Compared || !got[0].Shell {
		t.Errorf("entry: %+v", got[0])
	}
	if got[0].CreatedAt == 0 {
		t.Error("CreatedAt not set")
	}
}

func TestRecord_DuplicateID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if err := s.Record(ctx, &Entry{ID: "x", PageURL: "u"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, &Entry{ID: "x", PageURL: "u"}); err == nil {
		t.Fatal("expected primary key violation")
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if err := s.Record(context.Background(), &Entry{PageURL: "https://a.test/"}); err != nil {
		t.Fatal(err)
	}
}
