package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beaconcoach/beacon/internal/db"
	"github.com/beaconcoach/beacon/internal/metrics"
)

// SessionStore is the catalog persistence surface the syncer needs.
type SessionStore interface {
	GetByVideoURL(ctx context.Context, videoURL string) (*db.RecordedSession, error)
	GetByKajabiIDs(ctx context.Context, productID, offeringID string) (*db.RecordedSession, error)
	Insert(ctx context.Context, sess *db.RecordedSession) error
	Update(ctx context.Context, sess *db.RecordedSession) error
}

// TitleFetcher extracts a page title from a URL.
type TitleFetcher interface {
	FetchTitle(ctx context.Context, pageURL string) (string, error)
}

// ProductSource pulls products and contacts from the course platform.
type ProductSource interface {
	Products(ctx context.Context) ([]Product, error)
	Contacts(ctx context.Context) ([]Contact, error)
}

// AuthAdmin creates hosted-auth accounts for imported contacts.
type AuthAdmin interface {
	CreateUser(ctx context.Context, email, fullName string) error
	GenerateRecoveryLink(ctx context.Context, email string) (string, error)
}

// UserDirectory mirrors imported contacts into the local users table so
// reminders have a recipient row. Also used to skip contacts that were
// already imported.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	Create(ctx context.Context, u *db.User) error
}

// SessionInput is one session record supplied explicitly to a sync call.
type SessionInput struct {
	Title            string   `json:"title"`
	VideoURL         string   `json:"video_url"`
	Instructor       string   `json:"instructor"`
	Category         string   `json:"category"`
	Tags             []string `json:"tags"`
	DurationMinutes  int      `json:"duration_minutes"`
	KajabiProductID  string   `json:"kajabi_product_id,omitempty"`
	KajabiOfferingID string   `json:"kajabi_offering_id,omitempty"`
}

// Summary reports the outcome of one sync batch. Per-item failures are
// counted and the batch keeps going.
type Summary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// ContactSummary reports the outcome of one contact import.
type ContactSummary struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Syncer upserts catalog sessions by natural key, so re-running any
// sync with identical input updates rows instead of duplicating them.
type Syncer struct {
	store        SessionStore
	scraper      TitleFetcher
	source       ProductSource
	auth         AuthAdmin
	users        UserDirectory
	logger       *zap.Logger
	contactDelay time.Duration
	importTag    string
}

// SyncerConfig wires the syncer's collaborators. Source and Auth may be
// nil when the Kajabi pull or contact import is not configured.
type SyncerConfig struct {
	Store        SessionStore
	Scraper      TitleFetcher
	Source       ProductSource
	Auth         AuthAdmin
	Users        UserDirectory
	ContactDelay time.Duration
	ImportTag    string
}

// NewSyncer creates a Syncer.
func NewSyncer(cfg SyncerConfig, logger *zap.Logger) *Syncer {
	return &Syncer{
		store:        cfg.Store,
		scraper:      cfg.Scraper,
		source:       cfg.Source,
		auth:         cfg.Auth,
		users:        cfg.Users,
		logger:       logger,
		contactDelay: cfg.ContactDelay,
		importTag:    cfg.ImportTag,
	}
}

// SyncSessions upserts an explicit list of session records.
func (s *Syncer) SyncSessions(ctx context.Context, inputs []SessionInput) Summary {
	var sum Summary
	for _, in := range inputs {
		if err := s.upsert(ctx, in, &sum); err != nil {
			s.logger.Error("session upsert failed",
				zap.String("video_url", in.VideoURL),
				zap.Error(err),
			)
			sum.Failed++
			metrics.RecordCatalogUpsert("failed")
		}
	}
	return sum
}

// SyncURLs scrapes each URL for its title and upserts a session keyed
// on the URL.
func (s *Syncer) SyncURLs(ctx context.Context, urls []string) Summary {
	var sum Summary
	for _, u := range urls {
		title, err := s.scraper.FetchTitle(ctx, u)
		if err != nil {
			s.logger.Error("title scrape failed", zap.String("url", u), zap.Error(err))
			sum.Failed++
			metrics.RecordCatalogUpsert("failed")
			continue
		}

		in := SessionInput{Title: title, VideoURL: u}
		if err := s.upsert(ctx, in, &sum); err != nil {
			s.logger.Error("session upsert failed", zap.String("url", u), zap.Error(err))
			sum.Failed++
			metrics.RecordCatalogUpsert("failed")
		}
	}
	return sum
}

// SyncProducts pulls the full product list from the course platform and
// upserts one session per product offering.
func (s *Syncer) SyncProducts(ctx context.Context) (Summary, error) {
	if s.source == nil {
		return Summary{}, fmt.Errorf("product sync is not configured")
	}

	products, err := s.source.Products(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch products: %w", err)
	}

	var sum Summary
	for _, p := range products {
		s.UpsertProduct(ctx, p, &sum)
	}

	s.logger.Info("product sync complete",
		zap.Int("products", len(products)),
		zap.Int("created", sum.Created),
		zap.Int("updated", sum.Updated),
		zap.Int("failed", sum.Failed),
	)

	return sum, nil
}

// UpsertProduct upserts all sessions for one product. A product without
// offerings gets a single session keyed on the product ID alone.
func (s *Syncer) UpsertProduct(ctx context.Context, p Product, sum *Summary) {
	offerings := p.Offerings
	if len(offerings) == 0 {
		offerings = []Offering{{ID: p.ID, Title: p.Title}}
	}

	for _, off := range offerings {
		in := SessionInput{
			Title:            p.Title,
			VideoURL:         p.VideoURL,
			Instructor:       p.Instructor,
			Category:         p.Category,
			Tags:             p.Tags,
			KajabiProductID:  p.ID,
			KajabiOfferingID: off.ID,
		}
		if off.Title != "" && off.Title != p.Title {
			in.Title = fmt.Sprintf("%s: %s", p.Title, off.Title)
		}

		if err := s.upsert(ctx, in, sum); err != nil {
			s.logger.Error("product upsert failed",
				zap.String("product_id", p.ID),
				zap.String("offering_id", off.ID),
				zap.Error(err),
			)
			sum.Failed++
			metrics.RecordCatalogUpsert("failed")
		}
	}
}

// upsert finds an existing row by natural key and updates it, or
// inserts a new one. The Kajabi ID pair wins over the video URL when
// both are present.
func (s *Syncer) upsert(ctx context.Context, in SessionInput, sum *Summary) error {
	existing, err := s.lookup(ctx, in)
	if err != nil {
		return err
	}

	if existing != nil {
		applyInput(existing, in)
		if err := s.store.Update(ctx, existing); err != nil {
			return err
		}
		sum.Updated++
		metrics.RecordCatalogUpsert("updated")
		return nil
	}

	sess := &db.RecordedSession{ID: uuid.New()}
	applyInput(sess, in)
	if err := s.store.Insert(ctx, sess); err != nil {
		return err
	}
	sum.Created++
	metrics.RecordCatalogUpsert("created")
	return nil
}

func (s *Syncer) lookup(ctx context.Context, in SessionInput) (*db.RecordedSession, error) {
	if in.KajabiProductID != "" && in.KajabiOfferingID != "" {
		sess, err := s.store.GetByKajabiIDs(ctx, in.KajabiProductID, in.KajabiOfferingID)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
	}

	if in.VideoURL != "" {
		sess, err := s.store.GetByVideoURL(ctx, in.VideoURL)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
	}

	if in.KajabiProductID == "" && in.VideoURL == "" {
		return nil, fmt.Errorf("session has no natural key")
	}

	return nil, nil
}

func applyInput(sess *db.RecordedSession, in SessionInput) {
	if in.Title != "" {
		sess.Title = in.Title
	}
	if in.VideoURL != "" {
		sess.VideoURL = in.VideoURL
	}
	if in.Instructor != "" {
		sess.Instructor = in.Instructor
	}
	if in.Category != "" {
		sess.Category = in.Category
	}
	if in.Tags != nil {
		sess.Tags = in.Tags
	}
	if in.DurationMinutes > 0 {
		sess.DurationMinutes = in.DurationMinutes
	}
	if in.KajabiProductID != "" {
		sess.KajabiProductID = &in.KajabiProductID
	}
	if in.KajabiOfferingID != "" {
		sess.KajabiOfferingID = &in.KajabiOfferingID
	}
}

// SyncContacts pulls CRM contacts and creates hosted-auth accounts for
// the ones carrying the import tag, mirroring each into the local users
// table. Contacts already present locally are skipped, so re-runs are
// idempotent. Accounts get a recovery link, not a password, and a short
// fixed pause separates creation calls.
func (s *Syncer) SyncContacts(ctx context.Context) (ContactSummary, error) {
	if s.source == nil || s.auth == nil {
		return ContactSummary{}, fmt.Errorf("contact sync is not configured")
	}

	contacts, err := s.source.Contacts(ctx)
	if err != nil {
		return ContactSummary{}, fmt.Errorf("fetch contacts: %w", err)
	}

	var sum ContactSummary
	for i, c := range contacts {
		if !hasTag(c.Tags, s.importTag) {
			sum.Skipped++
			continue
		}
		if c.Email == "" {
			s.logger.Warn("contact has no email, skipping", zap.String("contact_id", c.ID))
			sum.Skipped++
			continue
		}

		if s.users != nil {
			_, err := s.users.GetByEmail(ctx, c.Email)
			if err == nil {
				sum.Skipped++
				continue
			}
			if !errors.Is(err, db.ErrNotFound) {
				s.logger.Error("contact lookup failed",
					zap.String("email", c.Email),
					zap.Error(err),
				)
				sum.Failed++
				continue
			}
		}

		if i > 0 && s.contactDelay > 0 {
			select {
			case <-time.After(s.contactDelay):
			case <-ctx.Done():
				return sum, ctx.Err()
			}
		}

		if err := s.auth.CreateUser(ctx, c.Email, c.Name); err != nil {
			s.logger.Error("contact user creation failed",
				zap.String("email", c.Email),
				zap.Error(err),
			)
			sum.Failed++
			continue
		}

		if s.users != nil {
			u := &db.User{ID: uuid.New(), Email: c.Email, FullName: c.Name}
			if err := s.users.Create(ctx, u); err != nil {
				s.logger.Error("local user mirror failed",
					zap.String("email", c.Email),
					zap.Error(err),
				)
				sum.Failed++
				continue
			}
		}

		link, err := s.auth.GenerateRecoveryLink(ctx, c.Email)
		if err != nil {
			s.logger.Error("recovery link generation failed",
				zap.String("email", c.Email),
				zap.Error(err),
			)
			sum.Failed++
			continue
		}

		s.logger.Info("contact imported",
			zap.String("email", c.Email),
			zap.Bool("recovery_link", link != ""),
		)
		sum.Created++
	}

	return sum, nil
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

// ParseProductWebhook decodes the inbound product webhook. The platform
// sends one of three shapes: {"product":{...}}, {"data":{"product":{...}}}
// or a bare product object, optionally alongside {"offering":{...}}.
func ParseProductWebhook(body []byte) (Product, error) {
	var envelope struct {
		Product *Product `json:"product"`
		Data    *struct {
			Product *Product `json:"product"`
		} `json:"data"`
		Offering *Offering `json:"offering"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Product{}, fmt.Errorf("decode webhook payload: %w", err)
	}

	var p Product
	switch {
	case envelope.Product != nil:
		p = *envelope.Product
	case envelope.Data != nil && envelope.Data.Product != nil:
		p = *envelope.Data.Product
	default:
		if err := json.Unmarshal(body, &p); err != nil {
			return Product{}, fmt.Errorf("decode bare product: %w", err)
		}
	}

	if p.ID == "" {
		return Product{}, fmt.Errorf("webhook payload has no product id")
	}

	if envelope.Offering != nil {
		p.Offerings = append(p.Offerings, *envelope.Offering)
	}

	return p, nil
}
