package monitor

import (
	"context"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"marqlet-monitor/domain"
)

func testLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeCaseStore struct {
	cases map[string]domain.Case
}

func (f *fakeCaseStore) GetCase(ctx context.Context, caseID string) (*domain.Case, error) {
	c, ok := f.cases[caseID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCaseStore) ListMonitoredCases(ctx context.Context) ([]domain.Case, error) {
	out := []domain.Case{}
	for _, c := range f.cases {
		if c.Monitored {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakePublicationStore struct {
	mu   sync.Mutex
	rows map[string]domain.Publication
	// dupKeys simulates a concurrent writer: inserts for these keys report
	// created=false even though the key is not in rows yet.
	dupKeys map[string]bool
}

func newFakePublicationStore() *fakePublicationStore {
	return &fakePublicationStore{rows: map[string]domain.Publication{}}
}

func (f *fakePublicationStore) KnownIdentityKeys(ctx context.Context, caseID string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := map[string]struct{}{}
	for key, pub := range f.rows {
		if pub.CaseID == caseID {
			keys[key] = struct{}{}
		}
	}
	return keys, nil
}

func (f *fakePublicationStore) InsertPublication(ctx context.Context, pub domain.Publication) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dupKeys[pub.IdentityKey] {
		return false, nil
	}
	if _, exists := f.rows[pub.IdentityKey]; exists {
		return false, nil
	}
	f.rows[pub.IdentityKey] = pub
	return true, nil
}

func (f *fakePublicationStore) ListPublicationsByCase(ctx context.Context, caseID string) ([]domain.Publication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Publication{}
	for _, pub := range f.rows {
		if pub.CaseID == caseID {
			out = append(out, pub)
		}
	}
	return out, nil
}

func (f *fakePublicationStore) ListPublicationsForUser(ctx context.Context, userID string) ([]domain.Publication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Publication{}
	for _, pub := range f.rows {
		if pub.UserID == userID {
			out = append(out, pub)
		}
	}
	return out, nil
}

func (f *fakePublicationStore) MarkPublicationRead(ctx context.Context, caseID, identityKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pub, ok := f.rows[identityKey]
	if !ok || pub.CaseID != caseID {
		return domain.ErrPublicationNotFound
	}
	pub.IsRead = true
	f.rows[identityKey] = pub
	return nil
}

type fakeFetcher struct {
	movements []domain.Movement
	calls     int
}

func (f *fakeFetcher) Movements(ctx context.Context, processNumber string, tribunal domain.Tribunal) []domain.Movement {
	f.calls++
	return f.movements
}

type recordedEvent struct {
	userID string
	caseID string
	count  int
}

type fakeNotifier struct {
	events []recordedEvent
}

func (f *fakeNotifier) NotifyNewPublications(ctx context.Context, userID, caseID string, count int) {
	f.events = append(f.events, recordedEvent{userID: userID, caseID: caseID, count: count})
}

// fakeTaskStore mimics the ETag-conditional reminder claim: any successful
// claim bumps the row's ETag, so a second claim with the old ETag loses.
type fakeTaskStore struct {
	mu     sync.Mutex
	tasks  map[string]domain.Task
	etags  map[string]string
	stamps map[string]time.Time
}

func newFakeTaskStore(tasks ...domain.Task) *fakeTaskStore {
	f := &fakeTaskStore{
		tasks:  map[string]domain.Task{},
		etags:  map[string]string{},
		stamps: map[string]time.Time{},
	}
	for _, t := range tasks {
		f.tasks[t.ID] = t
		f.etags[t.ID] = "etag-0"
	}
	return f
}

func (f *fakeTaskStore) FetchDueSoonCandidates(ctx context.Context, userID string, cutoff time.Time) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Task{}
	for _, t := range f.tasks {
		if t.UserID != userID {
			continue
		}
		if !t.ReminderEligible() {
			continue
		}
		if t.DueDate.After(cutoff) {
			continue
		}
		t.ETag = f.etags[t.ID]
		if stamp, ok := f.stamps[t.ID]; ok {
			s := stamp
			t.ReminderSentAt = &s
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTaskStore) ClaimReminder(ctx context.Context, userID, taskID, etag string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[taskID]; !ok {
		return domain.ErrTaskNotFound
	}
	if f.etags[taskID] != etag {
		return domain.ErrConcurrencyConflict
	}
	f.stamps[taskID] = at
	f.etags[taskID] = etag + "'"
	return nil
}

func (f *fakeTaskStore) stampCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stamps)
}

type fakeCredentialSource struct {
	cred  *domain.ChannelCredential
	phone string
}

func (f *fakeCredentialSource) GetChannelCredential(ctx context.Context, userID string) (*domain.ChannelCredential, error) {
	return f.cred, nil
}

func (f *fakeCredentialSource) GetRecipientPhone(ctx context.Context, userID string) (string, error) {
	return f.phone, nil
}

type sentMessage struct {
	cred domain.ChannelCredential
	to   string
	body string
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []sentMessage
	attempts int
	failWhen func(body string) error
}

func (f *fakeSender) SendText(ctx context.Context, cred domain.ChannelCredential, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failWhen != nil {
		if err := f.failWhen(body); err != nil {
			return err
		}
	}
	f.sent = append(f.sent, sentMessage{cred: cred, to: to, body: body})
	return nil
}

func (f *fakeSender) successCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeGuard struct {
	mu       sync.Mutex
	held     map[string]bool
	acquires int
	releases int
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{held: map[string]bool{}}
}

func (f *fakeGuard) Acquire(ctx context.Context, userID, taskID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquires++
	key := userID + ":" + taskID
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeGuard) Release(ctx context.Context, userID, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	delete(f.held, userID+":"+taskID)
	return nil
}
