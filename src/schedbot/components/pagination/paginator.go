package pagination

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MessageLimit is the platform hard ceiling on outbound content.
	MessageLimit = 2000
	// Budget is the working budget pages are packed against.
	Budget = 1950
	// hardClamp is the final safety limit applied before any send, covering
	// upstream formatting miscalculation.
	hardClamp = 1990

	separator       = "\n"
	truncatedMarker = " […truncated]"

	// markerReserve keeps room for the continuation marker on a full page.
	markerReserve = 40
)

// CursorTTL bounds how long a stored continuation stays valid.
const CursorTTL = time.Hour

// ErrExpired is returned for a consumed or expired continuation cursor.
var ErrExpired = errors.New("pagination: cursor expired or already consumed")

// Cursor references the unconsumed blocks of an oversized reply, together
// with the original header, awaiting a show-more follow-up.
type Cursor struct {
	Kind      string    `json:"kind"`
	Header    string    `json:"header"`
	Blocks    []string  `json:"blocks"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store keeps continuation cursors for up to CursorTTL. Take is single-shot:
// a cursor is never served twice.
type Store interface {
	Save(ctx context.Context, id string, cur Cursor) error
	Take(ctx context.Context, id string) (Cursor, error)
}

// Page is one transport-sized piece of a reply.
type Page struct {
	Content   string
	CursorID  string // non-empty when a continuation exists
	Remaining int
}

// Paginator splits formatted text blocks into pages that fit the message
// budget, parking the remainder in the store under a fresh cursor id.
type Paginator struct {
	store  Store
	budget int
	now    func() time.Time
}

func New(store Store) *Paginator {
	return &Paginator{store: store, budget: Budget, now: time.Now}
}

// FirstPage packs as many blocks as fit under the budget. When everything
// fits, the page carries no cursor. Otherwise the remainder is stored for one
// hour and the page ends with an "N more" marker.
func (p *Paginator) FirstPage(ctx context.Context, kind, header string, blocks []string) (Page, error) {
	return p.build(ctx, kind, header, blocks)
}

// NextPage consumes a continuation cursor and paginates what it held; an
// oversized remainder produces a further cursor. The stored header is
// rendered again on every continuation page, so pages read standalone and
// their concatenation repeats the header once per page.
func (p *Paginator) NextPage(ctx context.Context, id string) (Page, error) {
	cur, err := p.store.Take(ctx, id)
	if err != nil {
		return Page{}, err
	}
	return p.build(ctx, cur.Kind, cur.Header, cur.Blocks)
}

func (p *Paginator) build(ctx context.Context, kind, header string, blocks []string) (Page, error) {
	var b strings.Builder
	if header != "" {
		b.WriteString(header)
	}
	full := b.String()
	for _, blk := range blocks {
		if full != "" {
			full += separator
		}
		full += blk
	}
	if len(full) <= p.budget {
		return Page{Content: Clamp(full)}, nil
	}

	limit := p.budget - markerReserve
	taken := 0
	for _, blk := range blocks {
		need := len(blk)
		if b.Len() > 0 {
			need += len(separator)
		}
		if b.Len()+need > limit {
			if taken == 0 {
				// A single block over budget alone: hard-truncate it rather
				// than fail, and say so in the output.
				p.truncateInto(&b, blk, limit)
				taken = 1
			}
			break
		}
		if b.Len() > 0 {
			b.WriteString(separator)
		}
		b.WriteString(blk)
		taken++
	}

	rest := blocks[taken:]
	if len(rest) == 0 {
		return Page{Content: Clamp(b.String())}, nil
	}

	id := uuid.NewString()
	err := p.store.Save(ctx, id, Cursor{
		Kind:      kind,
		Header:    header,
		Blocks:    rest,
		CreatedAt: p.now(),
	})
	if err != nil {
		return Page{}, fmt.Errorf("store cursor: %w", err)
	}

	b.WriteString(separator)
	b.WriteString(fmt.Sprintf("(+%d more · tap Show more)", len(rest)))
	return Page{Content: Clamp(b.String()), CursorID: id, Remaining: len(rest)}, nil
}

func (p *Paginator) truncateInto(b *strings.Builder, blk string, limit int) {
	cut := limit - b.Len() - len(truncatedMarker)
	if b.Len() > 0 {
		cut -= len(separator)
	}
	if cut < 0 {
		cut = 0
	}
	kept := cutAtRune(blk, cut)
	log.Printf("pagination: block of %d chars exceeds budget, truncated to %d", len(blk), len(kept))
	if b.Len() > 0 {
		b.WriteString(separator)
	}
	b.WriteString(kept)
	b.WriteString(truncatedMarker)
}

// Clamp enforces the final outbound size limit on any content, marking the
// cut explicitly. Every reply path goes through this before sending.
func Clamp(s string) string {
	if len(s) <= hardClamp {
		return s
	}
	return cutAtRune(s, hardClamp-len(truncatedMarker)) + truncatedMarker
}

// cutAtRune shortens s to at most n bytes without splitting a rune; the
// platform rejects invalid UTF-8.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
