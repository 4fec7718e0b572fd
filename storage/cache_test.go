package storage

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"marqlet-monitor/domain"
)

type fakePublicationBackend struct {
	pubs      map[string][]domain.Publication
	listCalls int
}

func (f *fakePublicationBackend) ListPublicationsByCase(ctx context.Context, caseID string) ([]domain.Publication, error) {
	f.listCalls++
	return f.pubs[caseID], nil
}

func (f *fakePublicationBackend) InsertPublication(ctx context.Context, pub domain.Publication) (bool, error) {
	for _, existing := range f.pubs[pub.CaseID] {
		if existing.IdentityKey == pub.IdentityKey {
			return false, nil
		}
	}
	if f.pubs == nil {
		f.pubs = map[string][]domain.Publication{}
	}
	f.pubs[pub.CaseID] = append(f.pubs[pub.CaseID], pub)
	return true, nil
}

func (f *fakePublicationBackend) MarkPublicationRead(ctx context.Context, caseID, identityKey string) error {
	for i, existing := range f.pubs[caseID] {
		if existing.IdentityKey == identityKey {
			f.pubs[caseID][i].IsRead = true
			return nil
		}
	}
	return domain.ErrPublicationNotFound
}

func newTestCache(t *testing.T, base publicationBackend) *Cache {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})
	return NewCache(base, client, time.Minute)
}

func somePublication(caseID, key string) domain.Publication {
	return domain.Publication{
		CaseID:       caseID,
		UserID:       "user-1",
		Source:       domain.TribunalTJSP,
		MovementName: "Juntada",
		PublishedAt:  time.Date(2023, 9, 21, 12, 30, 0, 0, time.UTC),
		IdentityKey:  key,
	}
}

func TestCacheReadThrough(t *testing.T) {
	base := &fakePublicationBackend{pubs: map[string][]domain.Publication{
		"case-7": {somePublication("case-7", "k1")},
	}}
	cache := newTestCache(t, base)
	ctx := context.Background()

	first, err := cache.ListPublicationsByCase(ctx, "case-7")
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	second, err := cache.ListPublicationsByCase(ctx, "case-7")
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("unexpected list sizes %d/%d", len(first), len(second))
	}
	if base.listCalls != 1 {
		t.Fatalf("expected second read to come from cache, backend saw %d calls", base.listCalls)
	}
}

func TestCacheEvictionOnInsert(t *testing.T) {
	base := &fakePublicationBackend{pubs: map[string][]domain.Publication{
		"case-7": {somePublication("case-7", "k1")},
	}}
	cache := newTestCache(t, base)
	ctx := context.Background()

	if _, err := cache.ListPublicationsByCase(ctx, "case-7"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	created, err := cache.InsertPublication(ctx, somePublication("case-7", "k2"))
	if err != nil || !created {
		t.Fatalf("insert: created=%v err=%v", created, err)
	}

	pubs, err := cache.ListPublicationsByCase(ctx, "case-7")
	if err != nil {
		t.Fatalf("list after insert: %v", err)
	}
	if len(pubs) != 2 {
		t.Fatalf("expected eviction to surface the new row, got %d", len(pubs))
	}
}

func TestCacheDuplicateInsertKeepsCache(t *testing.T) {
	base := &fakePublicationBackend{pubs: map[string][]domain.Publication{
		"case-7": {somePublication("case-7", "k1")},
	}}
	cache := newTestCache(t, base)
	ctx := context.Background()

	if _, err := cache.ListPublicationsByCase(ctx, "case-7"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	created, err := cache.InsertPublication(ctx, somePublication("case-7", "k1"))
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if created {
		t.Fatal("expected duplicate insert to be a no-op")
	}
	if _, err := cache.ListPublicationsByCase(ctx, "case-7"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if base.listCalls != 1 {
		t.Fatalf("expected cache to survive a no-op insert, backend saw %d calls", base.listCalls)
	}
}

func TestCacheEvictionOnMarkRead(t *testing.T) {
	base := &fakePublicationBackend{pubs: map[string][]domain.Publication{
		"case-7": {somePublication("case-7", "k1")},
	}}
	cache := newTestCache(t, base)
	ctx := context.Background()

	if _, err := cache.ListPublicationsByCase(ctx, "case-7"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := cache.MarkPublicationRead(ctx, "case-7", "k1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	pubs, err := cache.ListPublicationsByCase(ctx, "case-7")
	if err != nil {
		t.Fatalf("list after mark read: %v", err)
	}
	if !pubs[0].IsRead {
		t.Fatal("expected read flag to be visible after eviction")
	}
}
