// Package intake – wizard state machine.
//
// This file implements the Manager, which holds one draft per sender and
// drives it through the SellSteps sequence. A draft lives entirely in memory:
// it is created by Start, advanced by Submit, and destroyed on the terminal
// transition (successful commit or Abandon). It survives any number of
// inbound messages from its sender, but not a process restart.
//
// Concurrency: the manager map is guarded by its own mutex, and each draft
// carries a per-sender mutex, so two messages from the same sender arriving
// near-simultaneously are serialized against each other without a global
// lock across senders. Lock order is manager mutex first, draft mutex second;
// no path takes the manager mutex while a draft mutex is held.
//
// The terminal commit opens one repo.Scope and performs the whole
// multi-entity write (User upsert, brand get-or-create, Ad insert, AdImage
// rows, pending Moderation record) inside it. A failure rolls everything
// back, keeps the draft, and rewinds it to the offending field so the sender
// can correct a single answer instead of restarting from step one.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/carbazar/go-car-market/internal/domain"
	"github.com/carbazar/go-car-market/internal/repo"
)

// Session lifecycle errors.
var (
	// ErrInProgress is returned by Start when the sender already has an
	// active wizard session. At most one session exists per sender.
	ErrInProgress = errors.New("listing wizard already in progress")

	// ErrNoSession is returned by Submit when the sender has no active
	// wizard session.
	ErrNoSession = errors.New("no listing wizard in progress")
)

// CommitError reports a failed terminal commit. Field names the step the
// sender should correct ("vin" for a duplicate VIN); it is empty when the
// failure is not attributable to a single answer. The draft survives the
// failure and is rewound to Field when set.
type CommitError struct {
	Field string
	Err   error
}

func (e *CommitError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("commit failed on %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("commit failed: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Result is the outcome of one accepted wizard input.
type Result struct {
	// Reply is the text to send back: the next prompt, a photo
	// acknowledgement, or the final confirmation.
	Reply string
	// Ad is the persisted listing; set only when this input completed the
	// wizard.
	Ad *domain.Ad
}

// draft accumulates one sender's answers until commit or abandonment.
type draft struct {
	mu        sync.Mutex
	stepIdx   int
	fields    map[string]string
	photos    []string
	touchedAt time.Time
}

// Manager owns all active wizard sessions and the commit path.
type Manager struct {
	// Coord supplies the transaction scope for the terminal commit.
	Coord *repo.Coordinator

	// MaxPhotos caps the photo step (default 3).
	MaxPhotos int
	// AdDays is the publication period granted to a new listing (default 7).
	AdDays int

	mu       sync.Mutex
	sessions map[string]*draft
	now      func() time.Time
}

// NewManager constructs a Manager with the default photo cap and publication
// period.
func NewManager(coord *repo.Coordinator) *Manager {
	return &Manager{
		Coord:     coord,
		MaxPhotos: 3,
		AdDays:    7,
		sessions:  make(map[string]*draft),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start opens a wizard session for sender and returns the first prompt.
// It fails with ErrInProgress when a session already exists; an existing
// draft is never silently overwritten.
func (m *Manager) Start(sender string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sender]; ok {
		return "", ErrInProgress
	}
	m.sessions[sender] = &draft{
		fields:    make(map[string]string),
		touchedAt: m.now(),
	}
	return m.prompt(0), nil
}

// Active reports whether sender has a wizard session in progress.
func (m *Manager) Active(sender string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[sender]
	return ok
}

// Abandon discards sender's draft, reporting whether one existed.
func (m *Manager) Abandon(sender string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sender]; !ok {
		return false
	}
	delete(m.sessions, sender)
	return true
}

// Prompt returns the active step's prompt for sender, or "" without a session.
func (m *Manager) Prompt(sender string) string {
	m.mu.Lock()
	d, ok := m.sessions[sender]
	m.mu.Unlock()
	if !ok {
		return ""
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return m.prompt(d.stepIdx)
}

// prompt renders the question of step i. The photo step's text carries the
// configured cap; every other step has a fixed prompt.
func (m *Manager) prompt(i int) string {
	if i < 0 || i >= len(SellSteps) {
		return ""
	}
	if SellSteps[i].Media {
		return fmt.Sprintf(SellSteps[i].Prompt, m.MaxPhotos)
	}
	return SellSteps[i].Prompt
}

// PhotoCount returns how many photos sender's draft has collected.
func (m *Manager) PhotoCount(sender string) int {
	m.mu.Lock()
	d, ok := m.sessions[sender]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.photos)
}

// Submit feeds one inbound message into sender's session. text carries the
// sender's answer; mediaRef carries an attachment reference when the message
// had one.
//
// Invalid input returns a *ValidationError and leaves the session where it
// was; one bad answer never abandons the wizard. Completing the final step
// triggers the atomic commit; a *CommitError keeps the draft and rewinds it
// to the offending field.
func (m *Manager) Submit(ctx context.Context, sender, text, mediaRef string) (*Result, error) {
	m.mu.Lock()
	d, ok := m.sessions[sender]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNoSession
	}

	d.mu.Lock()
	res, err := m.advance(ctx, sender, d, text, mediaRef)
	d.mu.Unlock()

	// The committed session is removed here, after the draft lock is
	// released; EvictStale holds the manager mutex while it takes draft
	// mutexes, so taking m.mu under d.mu would invert the lock order.
	if err == nil && res.Ad != nil {
		m.mu.Lock()
		delete(m.sessions, sender)
		m.mu.Unlock()
	}
	return res, err
}

// advance feeds one input into the draft. Called with the draft lock held.
func (m *Manager) advance(ctx context.Context, sender string, d *draft, text, mediaRef string) (*Result, error) {
	d.touchedAt = m.now()

	step := SellSteps[d.stepIdx]
	if step.Media {
		return m.submitPhoto(ctx, sender, d, text, mediaRef)
	}

	if mediaRef != "" {
		return nil, &ValidationError{Field: step.Key, Reason: "answer with text, not an attachment"}
	}
	value, err := step.Validate(text)
	if err != nil {
		return nil, err
	}
	d.fields[step.Key] = value
	d.stepIdx++
	return &Result{Reply: m.prompt(d.stepIdx)}, nil
}

// submitPhoto handles the media step: repeated attachments up to MaxPhotos,
// then a done-word to finish. Called with the draft lock held.
func (m *Manager) submitPhoto(ctx context.Context, sender string, d *draft, text, mediaRef string) (*Result, error) {
	switch {
	case mediaRef != "":
		if len(d.photos) >= m.MaxPhotos {
			return nil, &ValidationError{
				Field:  FieldPhotos,
				Reason: fmt.Sprintf("already have %d photos, write 'done' to finish", m.MaxPhotos),
			}
		}
		d.photos = append(d.photos, mediaRef)
		if len(d.photos) == m.MaxPhotos {
			return &Result{Reply: "That's enough photos. Write 'done' to finish."}, nil
		}
		return &Result{Reply: fmt.Sprintf("Photo saved (%d). Send another or write 'done'.", len(d.photos))}, nil

	case isDoneWord(text):
		if len(d.photos) == 0 {
			return nil, &ValidationError{Field: FieldPhotos, Reason: "add at least one photo before finishing"}
		}
		return m.commit(ctx, sender, d)

	default:
		return nil, &ValidationError{Field: FieldPhotos, Reason: "send a photo as an attachment, or write 'done'"}
	}
}

// commit performs the terminal multi-entity write in one transaction scope.
// Called with the draft lock held; the session itself is removed by Submit
// once the lock is released.
func (m *Manager) commit(ctx context.Context, sender string, d *draft) (*Result, error) {
	price, _ := strconv.ParseInt(d.fields[FieldPrice], 10, 64)
	year, _ := strconv.Atoi(d.fields[FieldYear])
	mileage, _ := strconv.ParseInt(d.fields[FieldMileage], 10, 64)

	scope, err := m.Coord.Begin(ctx)
	if err != nil {
		return nil, &CommitError{Err: err}
	}
	defer scope.Close()
	tx := scope.DB()

	if _, err := repo.UpsertUser(ctx, tx, sender, ""); err != nil {
		return nil, &CommitError{Err: err}
	}
	brand, err := repo.EnsureBrand(ctx, tx, d.fields[FieldBrand])
	if err != nil {
		return nil, &CommitError{Field: FieldBrand, Err: err}
	}

	ad := &domain.Ad{
		Sender:      sender,
		Title:       d.fields[FieldTitle],
		Description: d.fields[FieldDescription],
		Price:       price,
		Year:        year,
		CarBrandID:  brand.ID,
		Mileage:     mileage,
		VIN:         d.fields[FieldVIN],
		DayCount:    m.AdDays,
		IsActive:    true,
		CreatedAt:   m.now(),
	}
	if err := repo.CreateAd(ctx, tx, ad); err != nil {
		if errors.Is(err, repo.ErrDuplicateKey) {
			// Someone else listed this VIN first. Rewind so the sender can
			// correct that one answer and finish again.
			d.stepIdx = stepIndex(FieldVIN)
			return nil, &CommitError{Field: FieldVIN, Err: err}
		}
		return nil, &CommitError{Err: err}
	}
	for _, ref := range d.photos {
		if _, err := repo.AddAdImage(ctx, tx, ad.ID, ref); err != nil {
			return nil, &CommitError{Field: FieldPhotos, Err: err}
		}
	}
	if _, err := repo.CreateModeration(ctx, tx, ad.ID); err != nil {
		return nil, &CommitError{Err: err}
	}
	if err := scope.Commit(); err != nil {
		return nil, &CommitError{Err: err}
	}

	return &Result{
		Reply: fmt.Sprintf("Listing saved! ID: %d. A moderator will review it shortly.", ad.ID),
		Ad:    ad,
	}, nil
}

// EvictStale drops sessions idle for longer than maxAge and returns how many
// were removed. The wizard runs no timers of its own; unattended sessions
// linger until the caller sweeps them (see services.Sweeper).
func (m *Manager) EvictStale(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for sender, d := range m.sessions {
		d.mu.Lock()
		idle := d.touchedAt.Before(cutoff)
		d.mu.Unlock()
		if idle {
			delete(m.sessions, sender)
			removed++
		}
	}
	return removed
}
