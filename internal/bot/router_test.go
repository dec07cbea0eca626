package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/carbazar/go-car-market/internal/catalog"
	"github.com/carbazar/go-car-market/internal/domain"
	"github.com/carbazar/go-car-market/internal/intake"
	"github.com/carbazar/go-car-market/internal/repo"
	"github.com/carbazar/go-car-market/internal/services"
)

func newTestRouter(t *testing.T) (*Router, *repo.Coordinator) {
	t.Helper()
	dsn := fmt.Sprintf("file:bot_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	coord := repo.NewCoordinator(db)
	r := NewRouter(
		services.NewAccountService(coord),
		services.NewModerationService(coord),
		intake.NewManager(coord),
		catalog.NewBrowser(db),
		catalog.NewSessionStore(),
		nil, // no rate limit in tests
		zerolog.Nop(),
	)
	return r, coord
}

func text(sender, s string) IncomingMessage {
	return IncomingMessage{Sender: sender, Text: s, Kind: KindText}
}

func photo(sender, ref string) IncomingMessage {
	return IncomingMessage{Sender: sender, MediaRef: ref, Kind: KindMedia}
}

func TestRouter_HelpAndUnknown(t *testing.T) {
	r, _ := newTestRouter(t)
	ctx := context.Background()

	reply := r.Handle(ctx, text("s1", "/start"))
	if !strings.Contains(reply.Text, "/sell") {
		t.Fatalf("help missing commands: %q", reply.Text)
	}
	reply = r.Handle(ctx, text("s1", "/frobnicate"))
	if !strings.Contains(reply.Text, "Unknown command") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
}

func TestRouter_RegistersSenderOnFirstContact(t *testing.T) {
	r, coord := newTestRouter(t)
	r.Handle(context.Background(), IncomingMessage{Sender: "s1", Username: "alice", Text: "/help", Kind: KindText})

	u, err := repo.GetUser(context.Background(), coord.DB(), "s1")
	if err != nil {
		t.Fatalf("sender not registered: %v", err)
	}
	if u.Username != "alice" {
		t.Fatalf("username = %q", u.Username)
	}
}

func TestRouter_SellFlowEndToEnd(t *testing.T) {
	r, coord := newTestRouter(t)
	ctx := context.Background()
	sender := "79001112233"

	reply := r.Handle(ctx, text(sender, "/sell"))
	if !strings.Contains(reply.Text, "title") {
		t.Fatalf("first prompt: %q", reply.Text)
	}
	// While the wizard is active, plain text feeds the current step.
	for _, answer := range []string{"BMW 3", "BMW", "Good condition, one owner", "10000", "2010", "150000", "WBAX000000000001"} {
		reply = r.Handle(ctx, text(sender, answer))
	}
	reply = r.Handle(ctx, photo(sender, "photo-1"))
	if !strings.Contains(reply.Text, "done") {
		t.Fatalf("photo ack: %q", reply.Text)
	}
	reply = r.Handle(ctx, text(sender, "done"))
	if !strings.Contains(reply.Text, "Listing saved") {
		t.Fatalf("final reply: %q", reply.Text)
	}

	if _, err := repo.GetAdByVIN(ctx, coord.DB(), "WBAX000000000001"); err != nil {
		t.Fatalf("listing not persisted: %v", err)
	}
	// Listing again is allowed once the previous wizard finished.
	reply = r.Handle(ctx, text(sender, "/sell"))
	if !strings.Contains(reply.Text, "title") {
		t.Fatalf("restart prompt: %q", reply.Text)
	}
}

func TestRouter_InvalidWizardAnswerRepromptsSameStep(t *testing.T) {
	r, _ := newTestRouter(t)
	ctx := context.Background()

	r.Handle(ctx, text("s1", "/sell"))
	reply := r.Handle(ctx, text("s1", "ab")) // title too short
	if !strings.Contains(reply.Text, "title") {
		t.Fatalf("expected re-prompt, got %q", reply.Text)
	}
	if !r.Intake.Active("s1") {
		t.Fatal("session lost on invalid answer")
	}
}

func TestRouter_CancelEscapesWizard(t *testing.T) {
	r, _ := newTestRouter(t)
	ctx := context.Background()

	r.Handle(ctx, text("s1", "/sell"))
	reply := r.Handle(ctx, text("s1", "/cancel"))
	if !strings.Contains(reply.Text, "cancelled") {
		t.Fatalf("cancel reply: %q", reply.Text)
	}
	if r.Intake.Active("s1") {
		t.Fatal("session survived cancel")
	}
}

func TestRouter_BuyEmptyCatalog(t *testing.T) {
	r, _ := newTestRouter(t)
	reply := r.Handle(context.Background(), text("s1", "/buy"))
	if !strings.Contains(reply.Text, "No listings") {
		t.Fatalf("empty catalog reply: %q", reply.Text)
	}
}

func TestRouter_FilterParsing(t *testing.T) {
	r, coord := newTestRouter(t)
	ctx := context.Background()

	reply := r.Handle(ctx, text("s1", "/filter color=red"))
	if !strings.Contains(reply.Text, "Unknown filter") {
		t.Fatalf("bad key reply: %q", reply.Text)
	}
	reply = r.Handle(ctx, text("s1", "/filter brand=NoSuchBrand"))
	if !strings.Contains(reply.Text, "Unknown brand") {
		t.Fatalf("bad brand reply: %q", reply.Text)
	}
	// Once brands exist, the reply suggests them.
	if _, err := repo.CreateBrand(ctx, coord.DB(), "BMW"); err != nil {
		t.Fatalf("brand: %v", err)
	}
	reply = r.Handle(ctx, text("s1", "/filter brand=Audi"))
	if !strings.Contains(reply.Text, "known brands: BMW") {
		t.Fatalf("no brand hint: %q", reply.Text)
	}
	reply = r.Handle(ctx, text("s1", "/filter price=5000-20000 year=2015"))
	if !strings.Contains(reply.Text, "Filter set") {
		t.Fatalf("valid filter reply: %q", reply.Text)
	}
	f := r.Sessions.Filter("s1")
	if f.MinPrice == nil || *f.MinPrice != 5000 || f.Year == nil || *f.Year != 2015 {
		t.Fatalf("stored filter: %+v", f)
	}
}

func TestRouter_MyAdsShowsVerdictAndViews(t *testing.T) {
	r, coord := newTestRouter(t)
	ctx := context.Background()
	db := coord.DB()

	if _, err := repo.UpsertUser(ctx, db, "s1", ""); err != nil {
		t.Fatalf("user: %v", err)
	}
	brand, err := repo.EnsureBrand(ctx, db, "BMW")
	if err != nil {
		t.Fatalf("brand: %v", err)
	}
	ad := &domain.Ad{
		Sender: "s1", Title: "BMW 3", Description: "d", Price: 10000,
		Year: 2010, CarBrandID: brand.ID, VIN: "VIN-MYADS", DayCount: 7,
		IsActive: true, CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateAd(ctx, db, ad); err != nil {
		t.Fatalf("ad: %v", err)
	}
	if _, err := repo.CreateModeration(ctx, db, ad.ID); err != nil {
		t.Fatalf("moderation: %v", err)
	}
	mod, err := repo.CreateModerator(ctx, db, 100, "mod")
	if err != nil {
		t.Fatalf("moderator: %v", err)
	}
	if err := r.Moderation.Reject(ctx, ad.ID, mod.ID, "blurry photos"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	for _, viewer := range []string{"v1", "v2"} {
		if _, err := repo.LogView(ctx, db, ad.ID, viewer); err != nil {
			t.Fatalf("view: %v", err)
		}
	}

	reply := r.Handle(ctx, text("s1", "/myads"))
	if !strings.Contains(reply.Text, "rejected: blurry photos") {
		t.Fatalf("verdict not surfaced: %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "2 views") {
		t.Fatalf("views not surfaced: %q", reply.Text)
	}
}

func TestRouter_ModerationGate(t *testing.T) {
	r, coord := newTestRouter(t)
	ctx := context.Background()

	// Without a moderator account the commands look nonexistent.
	reply := r.Handle(ctx, IncomingMessage{Sender: "100", TelegramID: 100, Text: "/pending", Kind: KindText})
	if !strings.Contains(reply.Text, "Unknown command") {
		t.Fatalf("gate leaked: %q", reply.Text)
	}

	if _, err := repo.CreateModerator(ctx, coord.DB(), 100, "mod"); err != nil {
		t.Fatalf("moderator: %v", err)
	}
	reply = r.Handle(ctx, IncomingMessage{Sender: "100", TelegramID: 100, Text: "/pending", Kind: KindText})
	if !strings.Contains(reply.Text, "queue is empty") {
		t.Fatalf("pending reply: %q", reply.Text)
	}
}

func TestRouter_RateLimit(t *testing.T) {
	r, _ := newTestRouter(t)
	r.Limiter = NewRateLimiter(0, 1) // one message, never refilled
	ctx := context.Background()

	first := r.Handle(ctx, text("s1", "/help"))
	if strings.Contains(first.Text, "slow down") {
		t.Fatalf("first message limited: %q", first.Text)
	}
	second := r.Handle(ctx, text("s1", "/help"))
	if !strings.Contains(second.Text, "slow down") {
		t.Fatalf("second message not limited: %q", second.Text)
	}
}

func TestSplitCommand(t *testing.T) {
	cases := []struct{ in, cmd, args string }{
		{"/sell", "/sell", ""},
		{"/SELL", "/sell", ""},
		{"/reject 5 blurry photos", "/reject", "5 blurry photos"},
		{"/help@carbazar_bot", "/help", ""},
		{"plain text", "", "plain text"},
	}
	for _, tc := range cases {
		cmd, args := splitCommand(tc.in)
		if cmd != tc.cmd || args != tc.args {
			t.Fatalf("splitCommand(%q) = %q,%q", tc.in, cmd, args)
		}
	}
}
