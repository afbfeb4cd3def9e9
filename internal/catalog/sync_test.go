package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/beaconcoach/beacon/internal/db"
)

// mockSessionStore keeps sessions in memory, keyed the same way the
// real store is.
type mockSessionStore struct {
	mu        sync.Mutex
	sessions  []*db.RecordedSession
	insertErr error
}

func (m *mockSessionStore) GetByVideoURL(_ context.Context, videoURL string) (*db.RecordedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.VideoURL == videoURL {
			return s, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *mockSessionStore) GetByKajabiIDs(_ context.Context, productID, offeringID string) (*db.RecordedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.KajabiProductID != nil && *s.KajabiProductID == productID &&
			s.KajabiOfferingID != nil && *s.KajabiOfferingID == offeringID {
			return s, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *mockSessionStore) Insert(_ context.Context, sess *db.RecordedSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	copied := *sess
	m.sessions = append(m.sessions, &copied)
	return nil
}

func (m *mockSessionStore) Update(_ context.Context, sess *db.RecordedSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.sessions {
		if s.ID == sess.ID {
			copied := *sess
			m.sessions[i] = &copied
			return nil
		}
	}
	return errors.New("session not found")
}

func (m *mockSessionStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type mockFetcher struct {
	titles map[string]string
	err    error
}

func (m *mockFetcher) FetchTitle(_ context.Context, pageURL string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.titles[pageURL], nil
}

func newTestSyncer(store SessionStore, fetcher TitleFetcher) *Syncer {
	return NewSyncer(SyncerConfig{Store: store, Scraper: fetcher}, zap.NewNop())
}

func TestSyncSessions_CreatesThenUpdates(t *testing.T) {
	store := &mockSessionStore{}
	syncer := newTestSyncer(store, nil)

	inputs := []SessionInput{
		{Title: "Breathwork Basics", VideoURL: "https://cdn.example.com/v/1"},
		{Title: "Mobility Flow", VideoURL: "https://cdn.example.com/v/2"},
	}

	sum := syncer.SyncSessions(context.Background(), inputs)
	if sum.Created != 2 || sum.Updated != 0 || sum.Failed != 0 {
		t.Fatalf("first run: %+v", sum)
	}

	// Identical input again: same row count, rows updated not duplicated.
	inputs[0].Title = "Breathwork Basics (revised)"
	sum = syncer.SyncSessions(context.Background(), inputs)
	if sum.Created != 0 || sum.Updated != 2 || sum.Failed != 0 {
		t.Fatalf("second run: %+v", sum)
	}
	if store.count() != 2 {
		t.Fatalf("expected 2 rows, got %d", store.count())
	}

	sess, err := store.GetByVideoURL(context.Background(), "https://cdn.example.com/v/1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if sess.Title != "Breathwork Basics (revised)" {
		t.Errorf("title not updated: %q", sess.Title)
	}
}

func TestSyncSessions_MissingNaturalKeyFails(t *testing.T) {
	store := &mockSessionStore{}
	syncer := newTestSyncer(store, nil)

	sum := syncer.SyncSessions(context.Background(), []SessionInput{
		{Title: "No key at all"},
	})
	if sum.Failed != 1 || sum.Created != 0 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestSyncSessions_PerItemFailureContinues(t *testing.T) {
	store := &mockSessionStore{}
	syncer := newTestSyncer(store, nil)

	sum := syncer.SyncSessions(context.Background(), []SessionInput{
		{Title: "broken"},
		{Title: "fine", VideoURL: "https://cdn.example.com/v/9"},
	})
	if sum.Failed != 1 {
		t.Errorf("failed = %d, want 1", sum.Failed)
	}
	if sum.Created != 1 {
		t.Errorf("created = %d, want 1", sum.Created)
	}
}

func TestSyncURLs_ScrapesTitles(t *testing.T) {
	store := &mockSessionStore{}
	fetcher := &mockFetcher{titles: map[string]string{
		"https://courses.example.com/s/1": "Deep Rest",
	}}
	syncer := newTestSyncer(store, fetcher)

	sum := syncer.SyncURLs(context.Background(), []string{"https://courses.example.com/s/1"})
	if sum.Created != 1 || sum.Failed != 0 {
		t.Fatalf("summary: %+v", sum)
	}

	sess, err := store.GetByVideoURL(context.Background(), "https://courses.example.com/s/1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if sess.Title != "Deep Rest" {
		t.Errorf("title = %q", sess.Title)
	}
}

func TestSyncURLs_ScrapeFailureCounted(t *testing.T) {
	store := &mockSessionStore{}
	fetcher := &mockFetcher{err: errors.New("HTTP 503")}
	syncer := newTestSyncer(store, fetcher)

	sum := syncer.SyncURLs(context.Background(), []string{"https://courses.example.com/s/1"})
	if sum.Failed != 1 || sum.Created != 0 {
		t.Fatalf("summary: %+v", sum)
	}
	if store.count() != 0 {
		t.Errorf("no rows should have been written")
	}
}

func TestUpsertProduct_KeyedOnKajabiIDs(t *testing.T) {
	store := &mockSessionStore{}
	syncer := newTestSyncer(store, nil)

	p := Product{
		ID:    "prod_1",
		Title: "Mastermind Library",
		Offerings: []Offering{
			{ID: "off_1", Title: "Foundations"},
			{ID: "off_2", Title: "Advanced"},
		},
	}

	var sum Summary
	syncer.UpsertProduct(context.Background(), p, &sum)
	if sum.Created != 2 {
		t.Fatalf("created = %d, want 2", sum.Created)
	}

	// Re-running the same product updates both rows.
	sum = Summary{}
	syncer.UpsertProduct(context.Background(), p, &sum)
	if sum.Updated != 2 || sum.Created != 0 {
		t.Fatalf("second run: %+v", sum)
	}
	if store.count() != 2 {
		t.Fatalf("expected 2 rows, got %d", store.count())
	}
}

func TestUpsertProduct_NoOfferingsUsesProductID(t *testing.T) {
	store := &mockSessionStore{}
	syncer := newTestSyncer(store, nil)

	var sum Summary
	syncer.UpsertProduct(context.Background(), Product{ID: "prod_9", Title: "Solo"}, &sum)
	if sum.Created != 1 {
		t.Fatalf("created = %d, want 1", sum.Created)
	}

	sess, err := store.GetByKajabiIDs(context.Background(), "prod_9", "prod_9")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if sess.Title != "Solo" {
		t.Errorf("title = %q", sess.Title)
	}
}

func TestParseProductWebhook_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"wrapped", `{"product":{"id":"p1","title":"Wrapped"}}`, "p1"},
		{"data wrapped", `{"data":{"product":{"id":"p2","title":"Data"}}}`, "p2"},
		{"bare", `{"id":"p3","title":"Bare"}`, "p3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseProductWebhook([]byte(tt.body))
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if p.ID != tt.want {
				t.Errorf("id = %q, want %q", p.ID, tt.want)
			}
		})
	}
}

func TestParseProductWebhook_AttachesOffering(t *testing.T) {
	body := `{"product":{"id":"p1","title":"T"},"offering":{"id":"o1","title":"O"}}`
	p, err := ParseProductWebhook([]byte(body))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(p.Offerings) != 1 || p.Offerings[0].ID != "o1" {
		t.Fatalf("offerings = %+v", p.Offerings)
	}
}

func TestParseProductWebhook_MissingID(t *testing.T) {
	if _, err := ParseProductWebhook([]byte(`{"title":"no id"}`)); err == nil {
		t.Fatal("expected error for payload without product id")
	}
}

// mockContactSource feeds a fixed contact list.
type mockContactSource struct {
	contacts []Contact
}

func (m *mockContactSource) Products(context.Context) ([]Product, error) { return nil, nil }

func (m *mockContactSource) Contacts(context.Context) ([]Contact, error) {
	return m.contacts, nil
}

type mockAuthAdmin struct {
	mu        sync.Mutex
	created   []string
	links     []string
	createErr error
}

func (m *mockAuthAdmin) CreateUser(_ context.Context, email, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, email)
	return nil
}

func (m *mockAuthAdmin) GenerateRecoveryLink(_ context.Context, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, email)
	return "https://auth.example.com/recover?token=abc", nil
}

// mockUserDirectory keeps local user rows in memory, keyed by email.
type mockUserDirectory struct {
	users     map[string]*db.User
	createErr error
}

func (m *mockUserDirectory) GetByEmail(_ context.Context, email string) (*db.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, db.ErrNotFound
}

func (m *mockUserDirectory) Create(_ context.Context, u *db.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.users == nil {
		m.users = make(map[string]*db.User)
	}
	m.users[u.Email] = u
	return nil
}

func TestSyncContacts_OnlyTaggedContactsImported(t *testing.T) {
	source := &mockContactSource{contacts: []Contact{
		{ID: "c1", Email: "in@example.com", Name: "In", Tags: []string{"mastermind"}},
		{ID: "c2", Email: "out@example.com", Name: "Out", Tags: []string{"newsletter"}},
		{ID: "c3", Email: "", Name: "NoEmail", Tags: []string{"mastermind"}},
	}}
	auth := &mockAuthAdmin{}

	syncer := NewSyncer(SyncerConfig{
		Store:        &mockSessionStore{},
		Source:       source,
		Auth:         auth,
		ImportTag:    "mastermind",
		ContactDelay: time.Millisecond,
	}, zap.NewNop())

	sum, err := syncer.SyncContacts(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if sum.Created != 1 || sum.Skipped != 2 || sum.Failed != 0 {
		t.Fatalf("summary: %+v", sum)
	}
	if len(auth.created) != 1 || auth.created[0] != "in@example.com" {
		t.Errorf("created users: %v", auth.created)
	}
	if len(auth.links) != 1 {
		t.Errorf("recovery links: %v", auth.links)
	}
}

func TestSyncContacts_MirrorsLocalUsers(t *testing.T) {
	source := &mockContactSource{contacts: []Contact{
		{ID: "c1", Email: "new@example.com", Name: "New Member", Tags: []string{"mastermind"}},
		{ID: "c2", Email: "seen@example.com", Name: "Seen Before", Tags: []string{"mastermind"}},
	}}
	auth := &mockAuthAdmin{}
	users := &mockUserDirectory{users: map[string]*db.User{
		"seen@example.com": {Email: "seen@example.com"},
	}}

	syncer := NewSyncer(SyncerConfig{
		Store:     &mockSessionStore{},
		Source:    source,
		Auth:      auth,
		Users:     users,
		ImportTag: "mastermind",
	}, zap.NewNop())

	sum, err := syncer.SyncContacts(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if sum.Created != 1 || sum.Skipped != 1 || sum.Failed != 0 {
		t.Fatalf("summary: %+v", sum)
	}

	u, ok := users.users["new@example.com"]
	if !ok {
		t.Fatal("new contact should be mirrored into the local users table")
	}
	if u.FullName != "New Member" {
		t.Errorf("full name = %q", u.FullName)
	}
	if len(auth.created) != 1 || auth.created[0] != "new@example.com" {
		t.Errorf("already-imported contact should not get a second auth account: %v", auth.created)
	}
}

func TestSyncContacts_MirrorFailureCounted(t *testing.T) {
	source := &mockContactSource{contacts: []Contact{
		{ID: "c1", Email: "a@example.com", Name: "A", Tags: []string{"mastermind"}},
	}}
	auth := &mockAuthAdmin{}
	users := &mockUserDirectory{createErr: errors.New("connection reset")}

	syncer := NewSyncer(SyncerConfig{
		Store:     &mockSessionStore{},
		Source:    source,
		Auth:      auth,
		Users:     users,
		ImportTag: "mastermind",
	}, zap.NewNop())

	sum, err := syncer.SyncContacts(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if sum.Failed != 1 || sum.Created != 0 {
		t.Fatalf("summary: %+v", sum)
	}
	if len(auth.links) != 0 {
		t.Error("no recovery link should be issued when the mirror fails")
	}
}

func TestSyncContacts_CreateFailureCounted(t *testing.T) {
	source := &mockContactSource{contacts: []Contact{
		{ID: "c1", Email: "a@example.com", Tags: []string{"mastermind"}},
	}}
	auth := &mockAuthAdmin{createErr: errors.New("409 user exists")}

	syncer := NewSyncer(SyncerConfig{
		Store:     &mockSessionStore{},
		Source:    source,
		Auth:      auth,
		ImportTag: "mastermind",
	}, zap.NewNop())

	sum, err := syncer.SyncContacts(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if sum.Failed != 1 || sum.Created != 0 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestSyncContacts_NotConfigured(t *testing.T) {
	syncer := newTestSyncer(&mockSessionStore{}, nil)
	if _, err := syncer.SyncContacts(context.Background()); err == nil {
		t.Fatal("expected error when source/auth are not configured")
	}
}
