package pagination

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

// stripMarker removes the trailing "(+N more …)" continuation marker.
func stripMarker(t *testing.T, content string) string {
	t.Helper()
	idx := strings.LastIndex(content, separator+"(+")
	if idx < 0 {
		return content
	}
	return content[:idx]
}

func makeBlocks(n, size int) []string {
	blocks := make([]string, n)
	for i := range blocks {
		blocks[i] = strings.Repeat(string(rune('a'+i%26)), size)
	}
	return blocks
}

// drain walks every page of a paginated reply.
func drain(t *testing.T, p *Paginator, kind, header string, blocks []string) []Page {
	t.Helper()
	ctx := context.Background()
	page, err := p.FirstPage(ctx, kind, header, blocks)
	if err != nil {
		t.Fatalf("FirstPage: %v", err)
	}
	pages := []Page{page}
	for page.CursorID != "" {
		page, err = p.NextPage(ctx, page.CursorID)
		if err != nil {
			t.Fatalf("NextPage: %v", err)
		}
		pages = append(pages, page)
	}
	return pages
}

func TestSmallContentSinglePage(t *testing.T) {
	p := New(NewMemoryStore(0))
	blocks := makeBlocks(3, 50)

	pages := drain(t, p, "results", "header", blocks)
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	want := "header" + separator + strings.Join(blocks, separator)
	if pages[0].Content != want {
		t.Fatalf("content mismatch:\n%q\n%q", pages[0].Content, want)
	}
}

func TestOverflowRoundTrip(t *testing.T) {
	// 26 blocks of 100 chars: 2625 chars joined, needs exactly 2 pages.
	p := New(NewMemoryStore(0))
	blocks := makeBlocks(26, 100)
	original := strings.Join(blocks, separator)

	pages := drain(t, p, "export", "", blocks)
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	for i, pg := range pages {
		if len(pg.Content) > Budget {
			t.Fatalf("page %d exceeds budget: %d", i, len(pg.Content))
		}
	}
	if pages[0].Remaining == 0 || pages[0].CursorID == "" {
		t.Fatalf("first page missing continuation: %+v", pages[0])
	}

	bodies := make([]string, len(pages))
	for i, pg := range pages {
		bodies[i] = stripMarker(t, pg.Content)
	}
	reassembled := strings.Join(bodies, separator)
	if reassembled != original {
		t.Fatalf("round trip broken: got %d chars, want %d", len(reassembled), len(original))
	}
}

func TestDeepOverflowMultiplePages(t *testing.T) {
	p := New(NewMemoryStore(0))
	blocks := makeBlocks(60, 100)
	original := strings.Join(blocks, separator)

	pages := drain(t, p, "results", "", blocks)
	if len(pages) < 3 {
		t.Fatalf("expected at least 3 pages for %d chars, got %d", len(original), len(pages))
	}
	if pages[len(pages)-1].CursorID != "" {
		t.Fatal("last page must not continue")
	}

	bodies := make([]string, len(pages))
	for i, pg := range pages {
		bodies[i] = stripMarker(t, pg.Content)
	}
	if strings.Join(bodies, separator) != original {
		t.Fatal("round trip broken across 3+ pages")
	}
}

func TestHeaderCarriedOnFollowUpCursor(t *testing.T) {
	store := NewMemoryStore(0)
	p := New(store)
	blocks := makeBlocks(26, 100)

	page, err := p.FirstPage(context.Background(), "results", "Availability · raid week", blocks)
	if err != nil {
		t.Fatalf("FirstPage: %v", err)
	}
	cur, err := store.Take(context.Background(), page.CursorID)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if cur.Header != "Availability · raid week" || cur.Kind != "results" {
		t.Fatalf("cursor lost metadata: %+v", cur)
	}
	if len(cur.Blocks) != page.Remaining {
		t.Fatalf("cursor holds %d blocks, marker said %d", len(cur.Blocks), page.Remaining)
	}
}

func TestSingleOversizedBlockTruncated(t *testing.T) {
	p := New(NewMemoryStore(0))
	huge := strings.Repeat("x", 2500)

	pages := drain(t, p, "results", "", []string{huge, "tail"})
	if len(pages[0].Content) > Budget {
		t.Fatalf("page exceeds budget: %d", len(pages[0].Content))
	}
	if !strings.Contains(pages[0].Content, truncatedMarker) {
		t.Fatal("expected explicit truncation marker")
	}
	// The tail block survives on the follow-up page.
	last := pages[len(pages)-1]
	if !strings.Contains(last.Content, "tail") {
		t.Fatal("tail block lost")
	}
}

func TestTruncatedMultibyteBlockStaysValidUTF8(t *testing.T) {
	p := New(NewMemoryStore(0))
	huge := strings.Repeat("voté ", 600)

	pages := drain(t, p, "results", "", []string{huge})
	if !utf8.ValidString(pages[0].Content) {
		t.Fatal("truncated page contains invalid UTF-8")
	}
	if len(pages[0].Content) > Budget {
		t.Fatalf("page exceeds budget: %d", len(pages[0].Content))
	}
	if !strings.Contains(pages[0].Content, truncatedMarker) {
		t.Fatal("expected explicit truncation marker")
	}
}

func TestHeaderRepeatsOnContinuationPages(t *testing.T) {
	p := New(NewMemoryStore(0))
	header := "📊 **Raid week**"
	blocks := makeBlocks(26, 100)

	pages := drain(t, p, "results", header, blocks)
	if len(pages) < 2 {
		t.Fatalf("expected overflow, got %d pages", len(pages))
	}
	for i, pg := range pages {
		if !strings.HasPrefix(pg.Content, header) {
			t.Fatalf("page %d dropped the header:\n%s", i, pg.Content)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp("short"); got != "short" {
		t.Fatalf("unexpected clamp: %q", got)
	}
	clamped := Clamp(strings.Repeat("y", 3000))
	if len(clamped) > hardClamp || len(clamped) > MessageLimit {
		t.Fatalf("clamp too long: %d", len(clamped))
	}
	if !strings.HasSuffix(clamped, truncatedMarker) {
		t.Fatal("clamp must mark the cut")
	}
}

func TestClampKeepsValidUTF8(t *testing.T) {
	clamped := Clamp(strings.Repeat("é", 2000))
	if len(clamped) > hardClamp {
		t.Fatalf("clamp too long: %d", len(clamped))
	}
	if !utf8.ValidString(clamped) {
		t.Fatal("clamp split a rune at the cut")
	}
	if !strings.HasSuffix(clamped, truncatedMarker) {
		t.Fatal("clamp must mark the cut")
	}
}

func TestCursorExpiresAfterOneHour(t *testing.T) {
	store := NewMemoryStore(CursorTTL)
	base := time.Now()
	store.now = func() time.Time { return base }

	err := store.Save(context.Background(), "c1", Cursor{Kind: "results", Blocks: []string{"b"}})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	store.now = func() time.Time { return base.Add(3601 * time.Second) }
	if _, err := store.Take(context.Background(), "c1"); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestCursorConsumedOnce(t *testing.T) {
	store := NewMemoryStore(0)
	if err := store.Save(context.Background(), "c1", Cursor{Blocks: []string{"b"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Take(context.Background(), "c1"); err != nil {
		t.Fatalf("first Take: %v", err)
	}
	if _, err := store.Take(context.Background(), "c1"); err != ErrExpired {
		t.Fatalf("expected ErrExpired on second take, got %v", err)
	}
}

func TestSweepDropsExpired(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	base := time.Now()
	store.now = func() time.Time { return base }

	store.Save(context.Background(), "a", Cursor{})
	store.Save(context.Background(), "b", Cursor{})
	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	store.sweep()
	if store.Len() != 0 {
		t.Fatalf("expected empty store after sweep, got %d", store.Len())
	}
}
