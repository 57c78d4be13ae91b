package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/repositories"
)

const (
	cartOwnerUserPrefix  = "user:"
	cartOwnerGuestPrefix = "guest:"
	maxCartOwnerLength   = 160
	maxCartLines         = 100
)

var (
	// ErrCartInvalidInput signals malformed owners, ids or quantities.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartArtworkNotFound indicates the artwork being added does not exist.
	ErrCartArtworkNotFound = errors.New("cart: artwork not found")
	// ErrCartItemNotFound indicates the cart has no line for the artwork.
	ErrCartItemNotFound = errors.New("cart: item not found")
)

// UserCartOwner returns the owner key for a signed-in customer.
func UserCartOwner(uid string) CartOwner {
	return CartOwner(cartOwnerUserPrefix + strings.TrimSpace(uid))
}

// GuestCartOwner returns the owner key for an anonymous cart token.
func GuestCartOwner(token string) CartOwner {
	return CartOwner(cartOwnerGuestPrefix + strings.TrimSpace(token))
}

// IsGuest reports whether the owner is an anonymous cart.
func (o CartOwner) IsGuest() bool {
	return strings.HasPrefix(string(o), cartOwnerGuestPrefix)
}

// Validate checks the owner has a known prefix and a non-empty id.
func (o CartOwner) Validate() error {
	value := string(o)
	if len(value) > maxCartOwnerLength {
		return fmt.Errorf("%w: cart owner too long", ErrCartInvalidInput)
	}
	for _, prefix := range []string{cartOwnerUserPrefix, cartOwnerGuestPrefix} {
		if id, ok := strings.CutPrefix(value, prefix); ok && strings.TrimSpace(id) != "" {
			return nil
		}
	}
	return fmt.Errorf("%w: cart owner must be user:<id> or guest:<token>", ErrCartInvalidInput)
}

// QuantityNotice returns the customer-facing message shown when a line hits its ceiling.
func QuantityNotice(artwork Artwork) CartNotice {
	limit := domain.MaxQuantity(artwork)
	message := fmt.Sprintf("Only %d available", limit)
	if artwork.Type == domain.ArtworkTypeOriginal {
		message = "This is a one-of-a-kind original piece"
	}
	return CartNotice{
		ArtworkID:   artwork.ID,
		Title:       artwork.Title,
		Message:     message,
		MaxQuantity: limit,
	}
}

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Artworks repositories.ArtworkRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts    repositories.CartRepository
	artworks repositories.ArtworkRepository
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Artworks == nil {
		return nil, errors.New("cart service: artwork repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &cartService{
		carts:    deps.Carts,
		artworks: deps.Artworks,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *cartService) Load(ctx context.Context, owner CartOwner) (CartView, error) {
	cart, err := s.load(ctx, owner)
	if err != nil {
		return CartView{}, err
	}
	return s.view(ctx, cart, nil)
}

// Save replaces the cart contents. Duplicate lines are combined, unknown or sold-out artworks
// dropped and quantities clamped to availability; the first clamp is reported as the notice.
func (s *cartService) Save(ctx context.Context, owner CartOwner, lines []CartLine) (CartView, error) {
	if err := owner.Validate(); err != nil {
		return CartView{}, err
	}
	if len(lines) > maxCartLines {
		return CartView{}, fmt.Errorf("%w: cart holds at most %d lines", ErrCartInvalidInput, maxCartLines)
	}

	merged, notice, err := s.combine(ctx, nil, lines)
	if err != nil {
		return CartView{}, err
	}
	cart := Cart{Owner: string(owner), Lines: merged}
	if err := s.persist(ctx, &cart); err != nil {
		return CartView{}, err
	}
	return s.view(ctx, cart, notice)
}

func (s *cartService) AddItem(ctx context.Context, owner CartOwner, artworkID string, quantity int) (CartView, error) {
	artworkID = strings.TrimSpace(artworkID)
	if artworkID == "" {
		return CartView{}, fmt.Errorf("%w: artwork id is required", ErrCartInvalidInput)
	}
	if quantity <= 0 {
		quantity = 1
	}
	cart, err := s.load(ctx, owner)
	if err != nil {
		return CartView{}, err
	}
	artwork, err := s.artwork(ctx, artworkID)
	if err != nil {
		return CartView{}, err
	}
	if artwork.SoldOut {
		return s.view(ctx, cart, nil)
	}

	limit := domain.MaxQuantity(artwork)
	idx := lineIndex(cart.Lines, artworkID)
	current := 0
	if idx >= 0 {
		current = cart.Lines[idx].Quantity
	}
	if quantity > limit-current {
		notice := QuantityNotice(artwork)
		return s.view(ctx, cart, &notice)
	}
	if idx >= 0 {
		cart.Lines[idx].Quantity = current + quantity
	} else {
		if len(cart.Lines) >= maxCartLines {
			return CartView{}, fmt.Errorf("%w: cart holds at most %d lines", ErrCartInvalidInput, maxCartLines)
		}
		cart.Lines = append(cart.Lines, CartLine{ArtworkID: artworkID, Quantity: quantity})
	}
	if err := s.persist(ctx, &cart); err != nil {
		return CartView{}, err
	}
	return s.view(ctx, cart, nil)
}

func (s *cartService) UpdateQuantity(ctx context.Context, owner CartOwner, artworkID string, quantity int) (CartView, error) {
	artworkID = strings.TrimSpace(artworkID)
	cart, err := s.load(ctx, owner)
	if err != nil {
		return CartView{}, err
	}
	if quantity < 1 {
		return s.view(ctx, cart, nil)
	}
	idx := lineIndex(cart.Lines, artworkID)
	if idx < 0 {
		return CartView{}, fmt.Errorf("%w: %s", ErrCartItemNotFound, artworkID)
	}
	artwork, err := s.artwork(ctx, artworkID)
	if err != nil {
		return CartView{}, err
	}
	if quantity > domain.MaxQuantity(artwork) {
		notice := QuantityNotice(artwork)
		return s.view(ctx, cart, &notice)
	}
	cart.Lines[idx].Quantity = quantity
	if err := s.persist(ctx, &cart); err != nil {
		return CartView{}, err
	}
	return s.view(ctx, cart, nil)
}

func (s *cartService) RemoveItem(ctx context.Context, owner CartOwner, artworkID string) (CartView, error) {
	cart, err := s.load(ctx, owner)
	if err != nil {
		return CartView{}, err
	}
	idx := lineIndex(cart.Lines, strings.TrimSpace(artworkID))
	if idx < 0 {
		return s.view(ctx, cart, nil)
	}
	cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)
	if err := s.persist(ctx, &cart); err != nil {
		return CartView{}, err
	}
	return s.view(ctx, cart, nil)
}

func (s *cartService) Clear(ctx context.Context, owner CartOwner) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	if err := s.carts.Delete(ctx, string(owner)); err != nil && !isNotFound(err) {
		return fmt.Errorf("cart: delete %s: %w", owner, err)
	}
	return nil
}

// Merge folds a guest cart into the user's cart after sign-in, clamping combined quantities to
// availability, and removes the guest cart.
func (s *cartService) Merge(ctx context.Context, guest CartOwner, user CartOwner) (CartView, error) {
	if !guest.IsGuest() {
		return CartView{}, fmt.Errorf("%w: merge source must be a guest cart", ErrCartInvalidInput)
	}
	if user.IsGuest() {
		return CartView{}, fmt.Errorf("%w: merge target must be a user cart", ErrCartInvalidInput)
	}
	guestCart, err := s.load(ctx, guest)
	if err != nil {
		return CartView{}, err
	}
	userCart, err := s.load(ctx, user)
	if err != nil {
		return CartView{}, err
	}
	if len(guestCart.Lines) == 0 {
		return s.view(ctx, userCart, nil)
	}

	merged, notice, err := s.combine(ctx, userCart.Lines, guestCart.Lines)
	if err != nil {
		return CartView{}, err
	}
	userCart.Lines = merged
	if err := s.persist(ctx, &userCart); err != nil {
		return CartView{}, err
	}
	if err := s.carts.Delete(ctx, string(guest)); err != nil && !isNotFound(err) {
		s.logger(ctx, "cart.merge.guest_delete_failed", map[string]any{
			"owner": string(guest),
			"error": err,
		})
	}
	s.logger(ctx, "cart.merged", map[string]any{
		"lines": len(merged),
	})
	return s.view(ctx, userCart, notice)
}

// combine adds extra onto base, skipping unusable artworks and clamping to availability.
func (s *cartService) combine(ctx context.Context, base, extra []CartLine) ([]CartLine, *CartNotice, error) {
	out := make([]CartLine, 0, len(base)+len(extra))
	out = append(out, base...)

	ids := make([]string, 0, len(extra))
	for _, line := range extra {
		id := strings.TrimSpace(line.ArtworkID)
		if id != "" && line.Quantity > 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return out, nil, nil
	}
	artworks, err := s.artworkMap(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	var notice *CartNotice
	for _, line := range extra {
		id := strings.TrimSpace(line.ArtworkID)
		artwork, ok := artworks[id]
		if !ok || line.Quantity <= 0 || artwork.SoldOut {
			continue
		}
		limit := domain.MaxQuantity(artwork)
		idx := lineIndex(out, id)
		current := 0
		if idx >= 0 {
			current = out[idx].Quantity
		}
		want := limit
		if line.Quantity <= limit-current {
			want = current + line.Quantity
		} else if notice == nil {
			n := QuantityNotice(artwork)
			notice = &n
		}
		if want <= 0 {
			continue
		}
		if idx >= 0 {
			out[idx].Quantity = want
		} else {
			out = append(out, CartLine{ArtworkID: id, Quantity: want})
		}
	}
	return out, notice, nil
}

func (s *cartService) load(ctx context.Context, owner CartOwner) (Cart, error) {
	if err := owner.Validate(); err != nil {
		return Cart{}, err
	}
	cart, err := s.carts.Load(ctx, string(owner))
	if err != nil {
		if isNotFound(err) {
			return Cart{Owner: string(owner)}, nil
		}
		return Cart{}, fmt.Errorf("cart: load %s: %w", owner, err)
	}
	cart.Owner = string(owner)
	return cart, nil
}

func (s *cartService) persist(ctx context.Context, cart *Cart) error {
	cart.UpdatedAt = s.clock()
	if err := s.carts.Save(ctx, *cart); err != nil {
		return fmt.Errorf("cart: save %s: %w", cart.Owner, err)
	}
	return nil
}

func (s *cartService) artwork(ctx context.Context, artworkID string) (Artwork, error) {
	artwork, err := s.artworks.Get(ctx, artworkID)
	if err != nil {
		if isNotFound(err) {
			return Artwork{}, fmt.Errorf("%w: %s", ErrCartArtworkNotFound, artworkID)
		}
		return Artwork{}, fmt.Errorf("cart: load artwork %s: %w", artworkID, err)
	}
	return artwork, nil
}

func (s *cartService) artworkMap(ctx context.Context, ids []string) (map[string]Artwork, error) {
	artworks, err := s.artworks.List(ctx, domain.ArtworkFilter{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("cart: load artworks: %w", err)
	}
	out := make(map[string]Artwork, len(artworks))
	for _, artwork := range artworks {
		out[artwork.ID] = artwork
	}
	return out, nil
}

// view decorates lines with artwork snapshots. Lines whose artwork disappeared are hidden.
func (s *cartService) view(ctx context.Context, cart Cart, notice *CartNotice) (CartView, error) {
	view := CartView{
		Owner:     CartOwner(cart.Owner),
		Lines:     make([]CartLineView, 0, len(cart.Lines)),
		Notice:    notice,
		UpdatedAt: cart.UpdatedAt,
	}
	if len(cart.Lines) == 0 {
		return view, nil
	}
	ids := make([]string, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		ids = append(ids, line.ArtworkID)
	}
	artworks, err := s.artworkMap(ctx, ids)
	if err != nil {
		return CartView{}, err
	}
	for _, line := range cart.Lines {
		artwork, ok := artworks[line.ArtworkID]
		if !ok {
			continue
		}
		limit := domain.MaxQuantity(artwork)
		view.Lines = append(view.Lines, CartLineView{
			ArtworkID:   line.ArtworkID,
			Quantity:    line.Quantity,
			MaxQuantity: limit,
			Artwork:     &ArtworkView{Artwork: artwork, MaxQuantity: limit},
		})
		view.ItemCount += line.Quantity
		view.Subtotal += artwork.Price * int64(line.Quantity)
	}
	return view, nil
}

func lineIndex(lines []CartLine, artworkID string) int {
	for i, line := range lines {
		if line.ArtworkID == artworkID {
			return i
		}
	}
	return -1
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
