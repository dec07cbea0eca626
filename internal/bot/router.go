// Package bot – message router.
//
// The router owns the conversation logic: it decides whether an inbound
// message belongs to an active listing wizard, a command, or nothing, and
// translates service errors into chat replies. It never talks to the Bot API
// directly; the telegram adapter does the transport work.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carbazar/go-car-market/internal/catalog"
	"github.com/carbazar/go-car-market/internal/domain"
	"github.com/carbazar/go-car-market/internal/intake"
	"github.com/carbazar/go-car-market/internal/repo"
	"github.com/carbazar/go-car-market/internal/search"
	"github.com/carbazar/go-car-market/internal/services"
)

// extendDays and extendCost govern the /extend command: one purchase buys
// extendDays extra publication days for extendCost balance units.
const (
	extendDays = 7
	extendCost = 100
)

const helpText = `Commands:
/sell - list a car for sale
/cancel - abandon the listing wizard
/buy - browse active listings
/next - next page of results
/filter brand=BMW price=5000-20000 year=2015 mileage=0-100000 - narrow results
/search <words> - keyword search over listings
/popular - most viewed listings
/myads - your listings
/fav <id> /unfav <id> /favorites - bookmarks
/balance /topup <amount> - your account
/extend <id> - buy 7 more days for a listing (costs 100)`

const moderatorHelpText = `Moderator commands:
/pending - listings awaiting review
/approve <id> - approve a listing
/reject <id> <comment> - reject a listing
/topspenders - biggest payers`

// Router dispatches inbound messages to the wizard and the services.
type Router struct {
	Accounts   *services.AccountService
	Moderation *services.ModerationService
	Intake     *intake.Manager
	Browser    *catalog.Browser
	Sessions   *catalog.SessionStore
	Limiter    *RateLimiter
	Log        zerolog.Logger
}

// NewRouter wires a Router from its collaborators.
func NewRouter(
	accounts *services.AccountService,
	moderation *services.ModerationService,
	m *intake.Manager,
	browser *catalog.Browser,
	sessions *catalog.SessionStore,
	limiter *RateLimiter,
	log zerolog.Logger,
) *Router {
	return &Router{
		Accounts:   accounts,
		Moderation: moderation,
		Intake:     m,
		Browser:    browser,
		Sessions:   sessions,
		Limiter:    limiter,
		Log:        log,
	}
}

// Handle processes one inbound message and returns the reply to send.
func (r *Router) Handle(ctx context.Context, msg IncomingMessage) OutgoingReply {
	if r.Limiter != nil && !r.Limiter.Allow(msg.Sender) {
		return OutgoingReply{Text: "Too many messages, slow down a little."}
	}

	if _, err := r.Accounts.EnsureUser(ctx, msg.Sender, msg.Username); err != nil {
		r.Log.Error().Err(err).Str("sender", msg.Sender).Msg("registering sender")
		return OutgoingReply{Text: "Something went wrong, try again later."}
	}

	text := strings.TrimSpace(msg.Text)
	cmd, args := splitCommand(text)

	// The wizard owns the conversation while a session is active; only
	// /cancel escapes it.
	if r.Intake.Active(msg.Sender) && cmd != "/cancel" {
		return r.handleWizard(ctx, msg)
	}

	switch cmd {
	case "/start", "/help", "/menu":
		return OutgoingReply{Text: helpText}
	case "/sell":
		return r.handleSell(msg.Sender)
	case "/cancel":
		return r.handleCancel(msg.Sender)
	case "/buy":
		return r.handleBuy(ctx, msg.Sender, args, true)
	case "/next":
		return r.handleBuy(ctx, msg.Sender, "", false)
	case "/filter":
		return r.handleFilter(ctx, msg.Sender, args)
	case "/search":
		return r.handleSearch(ctx, args)
	case "/popular":
		return r.handlePopular(ctx)
	case "/myads":
		return r.handleMyAds(ctx, msg.Sender)
	case "/fav":
		return r.handleFav(ctx, msg.Sender, args)
	case "/unfav":
		return r.handleUnfav(ctx, msg.Sender, args)
	case "/favorites":
		return r.handleFavorites(ctx, msg.Sender)
	case "/balance":
		return r.handleBalance(ctx, msg.Sender)
	case "/topup":
		return r.handleTopUp(ctx, msg.Sender, args)
	case "/extend":
		return r.handleExtend(ctx, msg.Sender, args)
	case "/pending", "/approve", "/reject", "/topspenders":
		return r.handleModeration(ctx, msg, cmd, args)
	default:
		return OutgoingReply{Text: "Unknown command. " + helpText}
	}
}

// splitCommand separates the leading command from its arguments. Non-command
// text yields an empty command.
func splitCommand(text string) (cmd, args string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	parts := strings.SplitN(text, " ", 2)
	cmd = strings.ToLower(parts[0])
	// Strip the @botname suffix telegram appends in group chats.
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	if len(parts) == 2 {
		args = strings.TrimSpace(parts[1])
	}
	return cmd, args
}

func (r *Router) handleSell(sender string) OutgoingReply {
	prompt, err := r.Intake.Start(sender)
	if errors.Is(err, intake.ErrInProgress) {
		return OutgoingReply{Text: "You already have a listing in progress. " + r.Intake.Prompt(sender)}
	}
	if err != nil {
		r.Log.Error().Err(err).Str("sender", sender).Msg("starting wizard")
		return OutgoingReply{Text: "Something went wrong, try again later."}
	}
	return OutgoingReply{Text: prompt}
}

func (r *Router) handleCancel(sender string) OutgoingReply {
	if r.Intake.Abandon(sender) {
		return OutgoingReply{Text: "Listing cancelled."}
	}
	return OutgoingReply{Text: "Nothing to cancel."}
}

func (r *Router) handleWizard(ctx context.Context, msg IncomingMessage) OutgoingReply {
	res, err := r.Intake.Submit(ctx, msg.Sender, msg.Text, msg.MediaRef)
	if err != nil {
		var verr *intake.ValidationError
		if errors.As(err, &verr) {
			return OutgoingReply{Text: fmt.Sprintf("%s. %s", capitalize(verr.Reason), r.Intake.Prompt(msg.Sender))}
		}
		var cerr *intake.CommitError
		if errors.As(err, &cerr) {
			if cerr.Field == intake.FieldVIN {
				return OutgoingReply{Text: "A listing with this VIN already exists. " + r.Intake.Prompt(msg.Sender)}
			}
			r.Log.Error().Err(err).Str("sender", msg.Sender).Msg("wizard commit failed")
			return OutgoingReply{Text: "Could not save the listing, try 'done' again in a moment."}
		}
		r.Log.Error().Err(err).Str("sender", msg.Sender).Msg("wizard submit failed")
		return OutgoingReply{Text: "Something went wrong, try again later."}
	}
	return OutgoingReply{Text: res.Reply}
}

// handleBuy shows a page of the catalog. When fresh is true the sender's
// offset is rewound (and an inline filter argument is applied); /next keeps
// the current filter and advances.
func (r *Router) handleBuy(ctx context.Context, sender, args string, fresh bool) OutgoingReply {
	if fresh {
		f := r.Sessions.Filter(sender)
		if args != "" {
			parsed, err := r.parseFilter(ctx, args)
			if err != nil {
				return OutgoingReply{Text: err.Error()}
			}
			f = parsed
		}
		r.Sessions.SetFilter(sender, f)
	}

	f := r.Sessions.Filter(sender)
	offset := r.Sessions.Offset(sender)
	page, err := r.Browser.Find(ctx, f, offset)
	if err != nil {
		r.Log.Error().Err(err).Str("sender", sender).Msg("catalog query failed")
		return OutgoingReply{Text: "Something went wrong, try again later."}
	}
	if len(page.Ads) == 0 {
		if offset > 0 {
			r.Sessions.Reset(sender)
			return OutgoingReply{Text: "No more listings. /buy starts over."}
		}
		return OutgoingReply{Text: "No listings match. Try /filter with wider criteria."}
	}

	ids := make([]uint, 0, len(page.Ads))
	for _, ad := range page.Ads {
		ids = append(ids, ad.ID)
	}
	images, err := repo.MapAdImages(ctx, r.Browser.DB, ids)
	if err != nil {
		r.Log.Error().Err(err).Msg("loading listing images")
		images = map[uint][]domain.AdImage{}
	}

	var b strings.Builder
	var attachments []string
	fmt.Fprintf(&b, "Listings %d-%d of %d:\n", offset+1, offset+len(page.Ads), page.Total)
	for _, ad := range page.Ads {
		b.WriteString(formatAd(&ad))
		for _, img := range images[ad.ID] {
			attachments = append(attachments, img.ImageURL)
		}
		if _, err := repo.LogView(ctx, r.Browser.DB, ad.ID, sender); err != nil {
			r.Log.Warn().Err(err).Uint("ad_id", ad.ID).Msg("logging view")
		}
	}
	if int64(offset+len(page.Ads)) < page.Total {
		b.WriteString("\n/next for more.")
		r.Sessions.Advance(sender, page.Limit)
	} else {
		r.Sessions.Reset(sender)
	}
	return OutgoingReply{Text: b.String(), Attachments: attachments}
}

// parseFilter turns "brand=BMW price=5000-20000 year=2015 mileage=0-100000"
// into an AdFilter. Unknown keys are rejected with a usage hint.
func (r *Router) parseFilter(ctx context.Context, args string) (repo.AdFilter, error) {
	var f repo.AdFilter
	for _, tok := range strings.Fields(args) {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return f, fmt.Errorf("could not read %q; use key=value, e.g. brand=BMW", tok)
		}
		switch strings.ToLower(key) {
		case "brand":
			brand, err := repo.GetBrandByName(ctx, r.Browser.DB, value)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return f, fmt.Errorf("unknown brand %q%s", value, r.knownBrandsHint(ctx))
				}
				return f, errors.New("something went wrong, try again later")
			}
			f.BrandID = &brand.ID
		case "price":
			lo, hi, err := parseRange(value)
			if err != nil {
				return f, fmt.Errorf("price must be a range like 5000-20000")
			}
			f.MinPrice, f.MaxPrice = lo, hi
		case "year":
			y, err := strconv.Atoi(value)
			if err != nil {
				return f, fmt.Errorf("year must be a number")
			}
			f.Year = &y
		case "mileage":
			lo, hi, err := parseRange(value)
			if err != nil {
				return f, fmt.Errorf("mileage must be a range like 0-100000")
			}
			f.MinMileage, f.MaxMileage = lo, hi
		default:
			return f, fmt.Errorf("unknown filter %q; use brand, price, year or mileage", key)
		}
	}
	return f, nil
}

// knownBrandsHint renders "; known brands: ..." for unknown-brand replies, or
// "" when the catalog has no brands to suggest.
func (r *Router) knownBrandsHint(ctx context.Context) string {
	brands, err := repo.ListBrands(ctx, r.Browser.DB)
	if err != nil || len(brands) == 0 {
		return ""
	}
	names := make([]string, 0, len(brands))
	for _, brand := range brands {
		names = append(names, brand.Name)
	}
	return "; known brands: " + strings.Join(names, ", ")
}

// parseRange reads "lo-hi"; either bound may be omitted ("5000-", "-20000").
func parseRange(s string) (lo, hi *int64, err error) {
	left, right, ok := strings.Cut(s, "-")
	if !ok {
		n, perr := strconv.ParseInt(s, 10, 64)
		if perr != nil {
			return nil, nil, perr
		}
		return &n, &n, nil
	}
	if left != "" {
		n, perr := strconv.ParseInt(left, 10, 64)
		if perr != nil {
			return nil, nil, perr
		}
		lo = &n
	}
	if right != "" {
		n, perr := strconv.ParseInt(right, 10, 64)
		if perr != nil {
			return nil, nil, perr
		}
		hi = &n
	}
	return lo, hi, nil
}

func (r *Router) handleFilter(ctx context.Context, sender, args string) OutgoingReply {
	if args == "" {
		r.Sessions.SetFilter(sender, repo.AdFilter{})
		return OutgoingReply{Text: "Filter cleared. /buy shows everything."}
	}
	f, err := r.parseFilter(ctx, args)
	if err != nil {
		return OutgoingReply{Text: capitalize(err.Error())}
	}
	r.Sessions.SetFilter(sender, f)
	return OutgoingReply{Text: "Filter set. /buy shows matching listings."}
}

// searchCorpusCap bounds how many listings one search snapshot indexes.
const searchCorpusCap = 500

// handleSearch runs a keyword search over a snapshot of active listings. The
// index is rebuilt per query; the corpus is small and the store stays the
// single source of truth.
func (r *Router) handleSearch(ctx context.Context, args string) OutgoingReply {
	query := strings.TrimSpace(args)
	if query == "" {
		return OutgoingReply{Text: "Usage: /search <words>, e.g. /search red BMW coupe"}
	}
	ads, err := repo.ListActiveAds(ctx, r.Browser.DB, repo.AdFilter{}, searchCorpusCap, 0)
	if err != nil {
		r.Log.Error().Err(err).Msg("loading search corpus")
		return OutgoingReply{Text: "Something went wrong, try again later."}
	}
	byID := make(map[uint]*domain.Ad, len(ads))
	listings := make([]search.Listing, 0, len(ads))
	for i := range ads {
		ad := &ads[i]
		byID[ad.ID] = ad
		listings = append(listings, search.Listing{
			ID:   ad.ID,
			Text: ad.Title + " " + ad.Description,
		})
	}
	results := search.NewIndex(listings).TopK(query, 5)
	if len(results) == 0 {
		return OutgoingReply{Text: "Nothing matched. Try different words or /buy to browse."}
	}
	var b strings.Builder
	b.WriteString("Best matches:\n")
	for _, res := range results {
		if ad, ok := byID[res.ID]; ok {
			b.WriteString(formatAd(ad))
		}
	}
	return OutgoingReply{Text: b.String()}
}

func (r *Router) handlePopular(ctx context.Context) OutgoingReply {
	stats, err := repo.PopularAds(ctx, r.Browser.DB, 5)
	if err != nil {
		r.Log.Error().Err(err).Msg("popularity query failed")
		return OutgoingReply{Text: "Something went wrong, try again later."}
	}
	if len(stats) == 0 {
		return OutgoingReply{Text: "No views recorded yet."}
	}
	var b strings.Builder
	b.WriteString("Most viewed listings:\n")
	for _, st := range stats {
		ad, err := repo.GetAd(ctx, r.Browser.DB, st.AdID)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "#%d %s (%d views)\n", ad.ID, ad.Title, st.Views)
	}
	return OutgoingReply{Text: b.String()}
}

func (r *Router) handleMyAds(ctx context.Context, sender string) OutgoingReply {
	profile, err := r.Accounts.Summary(ctx, sender)
	if err != nil {
		r.Log.Error().Err(err).Str("sender", sender).Msg("loading profile")
		return OutgoingReply{Text: "Something went wrong, try again later."}
	}
	if len(profile.Ads) == 0 {
		return OutgoingReply{Text: "You have no listings yet. /sell creates one."}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Your listings (%d active of %d):\n", profile.AdsActive, len(profile.Ads))
	for _, ad := range profile.Ads {
		state := "inactive"
		if ad.IsActive {
			state = fmt.Sprintf("%d days left", ad.DayCount)
		}
		// The review verdict is more useful to a seller than the bare flag.
		if rec, _, err := r.Moderation.Status(ctx, ad.ID); err == nil {
			switch rec.Status {
			case domain.ModerationPending:
				state = "awaiting review"
			case domain.ModerationRejected:
				state = "rejected: " + rec.Comment
			}
		}
		views, err := repo.ViewCount(ctx, r.Browser.DB, ad.ID)
		if err != nil {
			r.Log.Warn().Err(err).Uint("ad_id", ad.ID).Msg("counting views")
		}
		fmt.Fprintf(&b, "#%d %s, %d (%s, %d views)\n", ad.ID, ad.Title, ad.Price, state, views)
	}
	return OutgoingReply{Text: b.String()}
}

func (r *Router) handleFav(ctx context.Context, sender, args string) OutgoingReply {
	id, err := parseID(args)
	if err != nil {
		return OutgoingReply{Text: "Usage: /fav <listing id>"}
	}
	if _, err := r.Accounts.AddFavorite(ctx, sender, id); err != nil {
		if errors.Is(err, services.ErrAdNotFound) {
			return OutgoingReply{Text: "No such listing."}
		}
		r.Log.Error().Err(err).Str("sender", sender).Msg("adding favorite")
		return OutgoingReply{Text: "Something went wrong, try again later."}
	}
	return OutgoingReply{Text: fmt.Sprintf("Listing #%d added to favorites.", id)}
}

func (r *Router) handleUnfav(ctx context.Context, sender, args string) OutgoingReply {
	id, err := parseID(args)
	if err != nil {
		return OutgoingReply{Text: "Usage: /unfav <listing id>"}
	}
	removed, err := r.Accounts.RemoveFavorite(ctx, sender, id)
	if err != nil {
		r.Log.Error().Err(err).Str("sender", sender).Msg("removing favorite")
		return OutgoingReply{Text: "Something went wrong, try again later."}
	}
	if !removed {
		return OutgoingReply{Text: "That listing was not in your favorites."}
	}
	return OutgoingReply{Text: fmt.Sprintf("Listing #%d removed from favorites.", id)}
}

func (r *Router) handleFavorites(ctx context.Context, sender string) OutgoingReply {
	favs, err := r.Accounts.Favorites(ctx, sender)
	if err != nil {
		r.Log.Error().Err(err).Str("sender", sender).Msg("listing favorites")
		return OutgoingReply{Text: "Something went wrong, try again later."}
	}
	if len(favs) == 0 {
		return OutgoingReply{Text: "No favorites yet. /fav <id> bookmarks a listing."}
	}
	var b strings.Builder
	b.WriteString("Your favorites:\n")
	for _, fav := range favs {
		ad, err := repo.GetAd(ctx, r.Browser.DB, fav.AdID)
		if err != nil {
			fmt.Fprintf(&b, "#%d (listing removed)\n", fav.AdID)
			continue
		}
		fmt.Fprintf(&b, "#%d %s, %d\n", ad.ID, ad.Title, ad.Price)
	}
	return OutgoingReply{Text: b.String()}
}

func (r *Router) handleBalance(ctx context.Context, sender string) OutgoingReply {
	balance, err := r.Accounts.Balance(ctx, sender)
	if err != nil {
		r.Log.Error().Err(err).Str("sender", sender).Msg("reading balance")
		return OutgoingReply{Text: "Something went wrong, try again later."}
	}
	return OutgoingReply{Text: fmt.Sprintf("Your balance: %d", balance)}
}

func (r *Router) handleTopUp(ctx context.Context, sender, args string) OutgoingReply {
	amount, err := strconv.ParseInt(args, 10, 64)
	if err != nil || amount <= 0 {
		return OutgoingReply{Text: "Usage: /topup <amount>"}
	}
	if _, err := r.Accounts.TopUp(ctx, sender, amount, "manual top-up"); err != nil {
		r.Log.Error().Err(err).Str("sender", sender).Msg("top-up failed")
		return OutgoingReply{Text: "Something went wrong, try again later."}
	}
	balance, err := r.Accounts.Balance(ctx, sender)
	if err != nil {
		return OutgoingReply{Text: "Top-up recorded."}
	}
	return OutgoingReply{Text: fmt.Sprintf("Top-up recorded. Your balance: %d", balance)}
}

func (r *Router) handleExtend(ctx context.Context, sender, args string) OutgoingReply {
	id, err := parseID(args)
	if err != nil {
		return OutgoingReply{Text: "Usage: /extend <listing id>"}
	}
	err = r.Accounts.ExtendListing(ctx, sender, id, extendDays, extendCost)
	switch {
	case errors.Is(err, services.ErrAdNotFound):
		return OutgoingReply{Text: "No such listing of yours."}
	case errors.Is(err, services.ErrInsufficientBalance):
		return OutgoingReply{Text: fmt.Sprintf("Extending costs %d; your balance is too low. /topup first.", extendCost)}
	case err != nil:
		r.Log.Error().Err(err).Str("sender", sender).Msg("extending listing")
		return OutgoingReply{Text: "Something went wrong, try again later."}
	}
	return OutgoingReply{Text: fmt.Sprintf("Listing #%d extended by %d days.", id, extendDays)}
}

// handleModeration gates the review commands on an active moderator account.
func (r *Router) handleModeration(ctx context.Context, msg IncomingMessage, cmd, args string) OutgoingReply {
	mod, err := r.Moderation.ByTelegramID(ctx, msg.TelegramID)
	if err != nil {
		if errors.Is(err, services.ErrNotModerator) {
			return OutgoingReply{Text: "Unknown command. " + helpText}
		}
		r.Log.Error().Err(err).Str("sender", msg.Sender).Msg("resolving moderator")
		return OutgoingReply{Text: "Something went wrong, try again later."}
	}

	switch cmd {
	case "/pending":
		ads, err := r.Moderation.Pending(ctx)
		if err != nil {
			r.Log.Error().Err(err).Msg("listing pending ads")
			return OutgoingReply{Text: "Something went wrong, try again later."}
		}
		if len(ads) == 0 {
			return OutgoingReply{Text: "Review queue is empty."}
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d listings awaiting review:\n", len(ads))
		for _, ad := range ads {
			b.WriteString(formatAd(&ad))
		}
		b.WriteString("\n" + moderatorHelpText)
		return OutgoingReply{Text: b.String()}

	case "/approve":
		id, err := parseID(args)
		if err != nil {
			return OutgoingReply{Text: "Usage: /approve <listing id>"}
		}
		if err := r.Moderation.Approve(ctx, id, mod.ID); err != nil {
			return r.verdictError(id, err)
		}
		return OutgoingReply{Text: fmt.Sprintf("Listing #%d approved.", id)}

	case "/reject":
		idStr, comment, _ := strings.Cut(args, " ")
		id, err := parseID(idStr)
		if err != nil || strings.TrimSpace(comment) == "" {
			return OutgoingReply{Text: "Usage: /reject <listing id> <comment>"}
		}
		if err := r.Moderation.Reject(ctx, id, mod.ID, strings.TrimSpace(comment)); err != nil {
			return r.verdictError(id, err)
		}
		return OutgoingReply{Text: fmt.Sprintf("Listing #%d rejected.", id)}

	case "/topspenders":
		rows, err := repo.TopSpenders(ctx, r.Browser.DB, 10)
		if err != nil {
			r.Log.Error().Err(err).Msg("spending aggregation")
			return OutgoingReply{Text: "Something went wrong, try again later."}
		}
		if len(rows) == 0 {
			return OutgoingReply{Text: "No payments recorded yet."}
		}
		var b strings.Builder
		b.WriteString("Biggest payers:\n")
		for i, row := range rows {
			fmt.Fprintf(&b, "%d. %s - %d\n", i+1, row.Sender, row.Total)
		}
		return OutgoingReply{Text: b.String()}
	}
	return OutgoingReply{Text: moderatorHelpText}
}

func (r *Router) verdictError(adID uint, err error) OutgoingReply {
	if errors.Is(err, services.ErrModerationNotFound) || errors.Is(err, services.ErrAdNotFound) {
		return OutgoingReply{Text: fmt.Sprintf("Listing #%d has no review record.", adID)}
	}
	r.Log.Error().Err(err).Uint("ad_id", adID).Msg("recording verdict")
	return OutgoingReply{Text: "Something went wrong, try again later."}
}

// formatAd renders one listing as a catalog line block.
func formatAd(ad *domain.Ad) string {
	return fmt.Sprintf("#%d %s\n%s\nPrice: %d | Year: %d | Mileage: %d km | VIN: %s\n\n",
		ad.ID, ad.Title, ad.Description, ad.Price, ad.Year, ad.Mileage, ad.VIN)
}

func parseID(s string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("bad id %q", s)
	}
	return uint(n), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
