package pager_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"wrendb/pkg/config"
	"wrendb/pkg/pager"
)

func setupPager(t *testing.T) *pager.Pager {
	t.Helper()
	t.Parallel()
	p, err := pager.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal("Failed to create pager:", err)
	}
	return p
}

func TestPagerPageNumbering(t *testing.T) {
	p := setupPager(t)

	if got := p.GetNumPages(); got != 0 {
		t.Errorf("Fresh pager has %d pages, want 0", got)
	}
	if got := p.GetFreePN(); got != 1 {
		t.Errorf("Fresh pager's next pagenum is %d, want 1", got)
	}

	// Page numbers are handed out sequentially from 1.
	for want := int64(1); want <= 3; want++ {
		page, err := p.GetNewPage()
		if err != nil {
			t.Fatal("Failed to allocate page:", err)
		}
		if got := page.GetPageNum(); got != want {
			t.Errorf("Allocated pagenum %d, want %d", got, want)
		}
		p.PutPage(page)
	}

	// Pagenum 0 is the nil page and can never be fetched.
	if _, err := p.GetPage(pager.NoPage); err == nil {
		t.Error("GetPage(NoPage) succeeded, want error")
	}
	if _, err := p.GetPage(4); err == nil {
		t.Error("GetPage past the end succeeded, want error")
	}
	if err := p.Close(); err != nil {
		t.Error("Failed to close pager:", err)
	}
}

func TestPagerCloseWhilePinned(t *testing.T) {
	p := setupPager(t)

	page, err := p.GetNewPage()
	if err != nil {
		t.Fatal("Failed to allocate page:", err)
	}
	if err := p.Close(); err == nil {
		t.Error("Close with a pinned page succeeded, want error")
	}
	p.PutPage(page)
	if err := p.Close(); err != nil {
		t.Error("Close after unpinning failed:", err)
	}
}

func TestPagerEviction(t *testing.T) {
	p := setupPager(t)

	// Allocate twice the buffer's worth of pages, writing each page's
	// number into its bytes. Unpinned pages must be evictable without
	// losing data.
	numPages := int64(config.MaxPagesInBuffer * 2)
	for i := int64(1); i <= numPages; i++ {
		page, err := p.GetNewPage()
		if err != nil {
			t.Fatal("Failed to allocate page:", err)
		}
		page.Update([]byte{byte(i), byte(i >> 8)}, 0, 2)
		p.PutPage(page)
	}

	for i := int64(1); i <= numPages; i++ {
		page, err := p.GetPage(i)
		if err != nil {
			t.Fatalf("Failed to fetch page %d: %s", i, err)
		}
		if !bytes.Equal(page.GetData()[:2], []byte{byte(i), byte(i >> 8)}) {
			t.Fatalf("Page %d read back wrong bytes", i)
		}
		p.PutPage(page)
	}
	if err := p.Close(); err != nil {
		t.Error("Failed to close pager:", err)
	}
}

func TestPagerExhaustion(t *testing.T) {
	p := setupPager(t)

	// Pinning more pages than the buffer holds must fail cleanly.
	pinned := make([]*pager.Page, 0, config.MaxPagesInBuffer)
	for i := 0; i < config.MaxPagesInBuffer; i++ {
		page, err := p.GetNewPage()
		if err != nil {
			t.Fatal("Failed to allocate page within the buffer's capacity:", err)
		}
		pinned = append(pinned, page)
	}
	if _, err := p.GetNewPage(); err != pager.ErrRanOutOfPages {
		t.Errorf("Over-allocation returned err %v, want ErrRanOutOfPages", err)
	}
	for _, page := range pinned {
		p.PutPage(page)
	}
	if err := p.Close(); err != nil {
		t.Error("Failed to close pager:", err)
	}
}

func TestPagerPersistence(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := pager.New(path)
	if err != nil {
		t.Fatal("Failed to create pager:", err)
	}
	page, err := p.GetNewPage()
	if err != nil {
		t.Fatal("Failed to allocate page:", err)
	}
	payload := []byte("persist me")
	page.Update(payload, 100, int64(len(payload)))
	p.PutPage(page)
	if err := p.Close(); err != nil {
		t.Fatal("Failed to close pager:", err)
	}

	reopened, err := pager.New(path)
	if err != nil {
		t.Fatal("Failed to reopen pager:", err)
	}
	if got := reopened.GetNumPages(); got != 1 {
		t.Fatalf("Reopened pager has %d pages, want 1", got)
	}
	page, err = reopened.GetPage(1)
	if err != nil {
		t.Fatal("Failed to fetch page after reopen:", err)
	}
	if !bytes.Equal(page.GetData()[100:100+len(payload)], payload) {
		t.Error("Page read back wrong bytes after reopen")
	}
	reopened.PutPage(page)
	if err := reopened.Close(); err != nil {
		t.Error("Failed to close reopened pager:", err)
	}

	// Create truncates: the fresh pager must see an empty file.
	truncated, err := pager.Create(path)
	if err != nil {
		t.Fatal("Failed to re-create pager:", err)
	}
	defer truncated.Close()
	if got := truncated.GetNumPages(); got != 0 {
		t.Errorf("Re-created pager has %d pages, want 0", got)
	}
}
