package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/sakif/listings-portal/internal/apperror"
	"github.com/sakif/listings-portal/internal/auth"
	"github.com/sakif/listings-portal/internal/model"
	"github.com/sakif/listings-portal/internal/repository"
)

// MaxImageBytes caps a single uploaded photo.
const MaxImageBytes = 10 << 20

// ListingService holds the listing, image and closing rules.
//
// Ownership checks all go through auth.CanModify so the rule lives in one
// place.
type ListingService struct {
	listings repository.ListingRepository
	images   repository.ImageRepository
	users    repository.UserRepository
	activity repository.ActivityRepository
	logger   *slog.Logger
}

func NewListingService(
	listings repository.ListingRepository,
	images repository.ImageRepository,
	users repository.UserRepository,
	activity repository.ActivityRepository,
	logger *slog.Logger,
) *ListingService {
	return &ListingService{
		listings: listings,
		images:   images,
		users:    users,
		activity: activity,
		logger:   logger,
	}
}

// ListingQuery is the public search form. Values arrive as text and may be
// formatted ("$549,000").
type ListingQuery struct {
	MinPrice     string
	MaxPrice     string
	Beds         string
	Baths        string
	PropertyType string
}

// ListingInput is the create form. Numbers are text so both "549000" and
// "$549,000" are accepted.
type ListingInput struct {
	Title        string `json:"title"        validate:"max=200"`
	Price        string `json:"price"`
	Address      string `json:"address"      validate:"max=300"`
	Beds         string `json:"beds"`
	Baths        string `json:"baths"`
	Sqft         string `json:"sqft"`
	PropertyType string `json:"propertyType"`
	Description  string `json:"description"  validate:"max=5000"`
}

// ListingPatch is a partial update. Nil means "leave unchanged".
type ListingPatch struct {
	Title        *string
	Price        *string
	Address      *string
	Beds         *string
	Baths        *string
	Sqft         *string
	PropertyType *string
	Description  *string
}

// ImageUpload is one uploaded file. MimeType is what the client claimed;
// the stored type comes from sniffing Data.
type ImageUpload struct {
	Data     []byte
	MimeType string
}

// CloseInput records the sale of a listing.
type CloseInput struct {
	ClosingDate     string `json:"closingDate"     validate:"required,datetime=2006-01-02"`
	SellingPrice    string `json:"sellingPrice"`
	SellingAgentID  string `json:"sellingAgentId"  validate:"required"`
	BuyingAgentID   string `json:"buyingAgentId"   validate:"required"`
	SellingAgentFee string `json:"sellingAgentFee"`
	BuyingAgentFee  string `json:"buyingAgentFee"`
	Notes           string `json:"notes"           validate:"max=2000"`
}

// =========================================================================
// QUERIES
// =========================================================================

// List returns active listings matching q, newest first.
func (s *ListingService) List(ctx context.Context, q ListingQuery) ([]model.Listing, error) {
	f := repository.ListingFilter{Status: model.StatusActive}

	var err error
	if f.MinPrice, err = optionalAmount("minPrice", q.MinPrice); err != nil {
		return nil, err
	}
	if f.MaxPrice, err = optionalAmount("maxPrice", q.MaxPrice); err != nil {
		return nil, err
	}
	if f.MinBaths, err = optionalAmount("baths", q.Baths); err != nil {
		return nil, err
	}
	beds, err := optionalAmount("beds", q.Beds)
	if err != nil {
		return nil, err
	}
	if beds != nil {
		if *beds > maxBeds {
			return nil, tooLarge("beds")
		}
		n := int(math.Ceil(*beds))
		f.MinBeds = &n
	}

	if pt := strings.ToLower(strings.TrimSpace(q.PropertyType)); pt != "" && pt != "any" {
		f.PropertyType = model.PropertyType(pt)
	}

	return s.listings.List(ctx, f)
}

// Get returns one listing of any status.
func (s *ListingService) Get(ctx context.Context, id string) (*model.Listing, error) {
	return s.listings.GetByID(ctx, id)
}

// GetClosing returns the sale record of a closed listing.
func (s *ListingService) GetClosing(ctx context.Context, listingID string) (*model.Closing, error) {
	if _, err := s.listings.GetByID(ctx, listingID); err != nil {
		return nil, err
	}
	return s.listings.GetClosing(ctx, listingID)
}

// =========================================================================
// MUTATIONS
// =========================================================================

// Create validates and stores a listing together with up to
// model.MaxImagesPerListing photos. Only agents and managers may create.
func (s *ListingService) Create(ctx context.Context, id *model.Identity, in ListingInput, uploads []ImageUpload) (*model.Listing, error) {
	if !id.HasRole(model.RoleAgent, model.RoleManager) {
		return nil, apperror.Forbidden("Only agents and managers can create listings")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	l := &model.Listing{
		Title:       strings.TrimSpace(in.Title),
		Address:     strings.TrimSpace(in.Address),
		Description: strings.TrimSpace(in.Description),
		UserID:      id.UserID,
		Status:      model.StatusActive,
	}
	if l.Address == "" {
		return nil, apperror.ValidationFailed("address", "address is required")
	}

	var err error
	if l.Price, err = requiredWhole("price", in.Price); err != nil {
		return nil, err
	}
	if l.Sqft, err = requiredWhole("sqft", in.Sqft); err != nil {
		return nil, err
	}
	if l.Beds, err = parseBeds(in.Beds); err != nil {
		return nil, err
	}
	if l.Baths, err = parseBaths(in.Baths); err != nil {
		return nil, err
	}
	if l.PropertyType, err = parsePropertyType(in.PropertyType); err != nil {
		return nil, err
	}

	if len(uploads) > model.MaxImagesPerListing {
		return nil, apperror.ValidationFailed("images",
			fmt.Sprintf("Maximum of %d images allowed per listing", model.MaxImagesPerListing))
	}
	images := make([]model.ListingImage, 0, len(uploads))
	for _, u := range uploads {
		img, err := sniffImage(u)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	if err := s.listings.CreateWithImages(ctx, l, images); err != nil {
		s.logger.Error("failed to create listing",
			slog.String("userID", id.UserID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/listing: creating listing: %w", err)
	}

	s.logger.Info("listing created",
		slog.String("id", l.ID),
		slog.String("userID", id.UserID),
		slog.Int("images", len(images)),
	)
	s.record(ctx, id.UserID, model.ActivityListingCreated, "Created listing: "+l.Address)

	return l, nil
}

// Update applies a partial update. Owner or manager only.
func (s *ListingService) Update(ctx context.Context, id *model.Identity, listingID string, p ListingPatch) (*model.Listing, error) {
	if _, err := s.authorize(ctx, id, listingID, auth.ActionUpdate); err != nil {
		return nil, err
	}

	var (
		u   model.ListingUpdate
		err error
	)

	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if len(t) > 200 {
			return nil, apperror.ValidationFailed("title", "title must be at most 200 characters")
		}
		u.Title = &t
	}
	if p.Address != nil {
		a := strings.TrimSpace(*p.Address)
		if a == "" {
			return nil, apperror.ValidationFailed("address", "address cannot be empty")
		}
		u.Address = &a
	}
	if p.Description != nil {
		d := strings.TrimSpace(*p.Description)
		u.Description = &d
	}
	if p.Price != nil {
		v, err := requiredWhole("price", *p.Price)
		if err != nil {
			return nil, err
		}
		u.Price = &v
	}
	if p.Sqft != nil {
		v, err := requiredWhole("sqft", *p.Sqft)
		if err != nil {
			return nil, err
		}
		u.Sqft = &v
	}
	if p.Beds != nil {
		v, err := parseBeds(*p.Beds)
		if err != nil {
			return nil, err
		}
		u.Beds = &v
	}
	if p.Baths != nil {
		v, err := parseBaths(*p.Baths)
		if err != nil {
			return nil, err
		}
		u.Baths = &v
	}
	if p.PropertyType != nil {
		var pt model.PropertyType
		if pt, err = parsePropertyType(*p.PropertyType); err != nil {
			return nil, err
		}
		u.PropertyType = &pt
	}

	updated, err := s.listings.Update(ctx, listingID, u)
	if err != nil {
		return nil, err
	}
	s.logger.Info("listing updated", slog.String("id", listingID), slog.String("by", id.UserID))
	return updated, nil
}

// SetStatus toggles a listing between active and inactive. Closed is
// terminal and only reachable through Close.
func (s *ListingService) SetStatus(ctx context.Context, id *model.Identity, listingID, status string) (*model.Listing, error) {
	st := model.ListingStatus(strings.TrimSpace(status))
	if st != model.StatusActive && st != model.StatusInactive {
		return nil, apperror.ValidationFailed("status", "Status must be either active or inactive")
	}

	l, err := s.authorize(ctx, id, listingID, auth.ActionSetStatus)
	if err != nil {
		return nil, err
	}
	if l.Status == model.StatusClosed {
		return nil, apperror.ValidationFailed("status", "A closed listing cannot change status")
	}

	return s.listings.SetStatus(ctx, listingID, st)
}

// Delete removes a listing and everything hanging off it. Owner only.
func (s *ListingService) Delete(ctx context.Context, id *model.Identity, listingID string) error {
	if _, err := s.authorize(ctx, id, listingID, auth.ActionDelete); err != nil {
		return err
	}
	if err := s.listings.Delete(ctx, listingID); err != nil {
		return err
	}
	s.logger.Info("listing deleted", slog.String("id", listingID), slog.String("by", id.UserID))
	return nil
}

// Close records the sale and moves the listing to the closed state.
//
// Both agents must be existing agent or manager accounts; commissions are
// derived from the selling price and each fee percentage.
func (s *ListingService) Close(ctx context.Context, id *model.Identity, listingID string, in CloseInput) (*model.Closing, error) {
	l, err := s.authorize(ctx, id, listingID, auth.ActionClose)
	if err != nil {
		return nil, err
	}
	if l.Status == model.StatusClosed {
		return nil, apperror.ValidationFailed("status", "Listing is already closed")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	price, err := requiredWhole("sellingPrice", in.SellingPrice)
	if err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, apperror.ValidationFailed("sellingPrice", "sellingPrice must be greater than 0")
	}
	sellFee, err := parseFee("sellingAgentFee", in.SellingAgentFee)
	if err != nil {
		return nil, err
	}
	buyFee, err := parseFee("buyingAgentFee", in.BuyingAgentFee)
	if err != nil {
		return nil, err
	}

	if err := s.requireAgent(ctx, "sellingAgentId", in.SellingAgentID); err != nil {
		return nil, err
	}
	if err := s.requireAgent(ctx, "buyingAgentId", in.BuyingAgentID); err != nil {
		return nil, err
	}

	c := &model.Closing{
		ListingID:              listingID,
		ClosingDate:            in.ClosingDate,
		SellingPrice:           price,
		SellingAgentID:         in.SellingAgentID,
		BuyingAgentID:          in.BuyingAgentID,
		SellingAgentFee:        sellFee,
		BuyingAgentFee:         buyFee,
		SellingAgentCommission: model.Commission(price, sellFee),
		BuyingAgentCommission:  model.Commission(price, buyFee),
		Notes:                  strings.TrimSpace(in.Notes),
		ClosedBy:               id.UserID,
	}
	if err := s.listings.Close(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("listing closed",
		slog.String("id", listingID),
		slog.String("by", id.UserID),
		slog.Int64("sellingPrice", price),
	)
	s.record(ctx, id.UserID, model.ActivityListingClosed,
		fmt.Sprintf("Closed listing: %s for %s", l.Address, model.FormatPrice(price)))

	return c, nil
}

// =========================================================================
// IMAGES
// =========================================================================

// ListImages returns photo metadata in display order.
func (s *ListingService) ListImages(ctx context.Context, listingID string) ([]model.ListingImage, error) {
	if _, err := s.listings.GetByID(ctx, listingID); err != nil {
		return nil, err
	}
	return s.images.ListImages(ctx, listingID)
}

// GetImage returns one photo with its bytes.
func (s *ListingService) GetImage(ctx context.Context, listingID, imageID string) (*model.ListingImage, error) {
	return s.images.GetImage(ctx, listingID, imageID)
}

// PrimaryImage returns the cover photo with its bytes.
func (s *ListingService) PrimaryImage(ctx context.Context, listingID string) (*model.ListingImage, error) {
	return s.images.PrimaryImage(ctx, listingID)
}

// AddImage appends a photo. Owner or manager only.
func (s *ListingService) AddImage(ctx context.Context, id *model.Identity, listingID string, u ImageUpload) (*model.ListingImage, error) {
	if _, err := s.authorize(ctx, id, listingID, auth.ActionManageImages); err != nil {
		return nil, err
	}

	img, err := sniffImage(u)
	if err != nil {
		return nil, err
	}
	img.ListingID = listingID

	if err := s.images.AddImage(ctx, &img, model.MaxImagesPerListing); err != nil {
		return nil, err
	}
	img.Data = nil
	return &img, nil
}

// SetPrimary makes imageID the cover photo. Owner or manager only.
func (s *ListingService) SetPrimary(ctx context.Context, id *model.Identity, listingID, imageID string) error {
	if _, err := s.authorize(ctx, id, listingID, auth.ActionManageImages); err != nil {
		return err
	}
	return s.images.SetPrimary(ctx, listingID, imageID)
}

// DeleteImage removes a photo. The last photo of a listing cannot be
// removed. Owner or manager only.
func (s *ListingService) DeleteImage(ctx context.Context, id *model.Identity, listingID, imageID string) error {
	if _, err := s.authorize(ctx, id, listingID, auth.ActionManageImages); err != nil {
		return err
	}
	return s.images.DeleteImage(ctx, listingID, imageID)
}

// =========================================================================
// HELPERS
// =========================================================================

// authorize loads the listing and applies the ownership policy.
func (s *ListingService) authorize(ctx context.Context, id *model.Identity, listingID string, action auth.Action) (*model.Listing, error) {
	if id == nil {
		return nil, apperror.Unauthorized("User not authenticated")
	}
	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !auth.CanModify(id, l, action) {
		return nil, apperror.Forbidden("You do not have permission to modify this listing")
	}
	return l, nil
}

func (s *ListingService) requireAgent(ctx context.Context, field, userID string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed(field, fmt.Sprintf("%s does not match any user", field))
		}
		return err
	}
	if u.Role != model.RoleAgent && u.Role != model.RoleManager {
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be an agent or manager", field))
	}
	return nil
}

// record writes an activity entry; failures are logged, never returned.
func (s *ListingService) record(ctx context.Context, userID string, typ model.ActivityType, desc string) {
	err := s.activity.Record(ctx, &model.Activity{UserID: userID, Type: typ, Description: desc})
	if err != nil {
		s.logger.Warn("failed to record activity",
			slog.String("type", string(typ)),
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}
}

func sniffImage(u ImageUpload) (model.ListingImage, error) {
	if len(u.Data) == 0 {
		return model.ListingImage{}, apperror.ValidationFailed("images", "Image file is empty")
	}
	if len(u.Data) > MaxImageBytes {
		return model.ListingImage{}, apperror.ValidationFailed("images",
			fmt.Sprintf("Image must be at most %d MB", MaxImageBytes>>20))
	}

	mt := mimetype.Detect(u.Data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return model.ListingImage{}, apperror.ValidationFailed("images",
			fmt.Sprintf("Only image files are allowed (got %s)", mt.String()))
	}
	return model.ListingImage{Data: u.Data, MimeType: mt.String()}, nil
}

func optionalAmount(field, s string) (*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := model.ParseAmount(s)
	if err != nil {
		return nil, apperror.ValidationFailed(field, fmt.Sprintf("%s must be a number", field))
	}
	return &v, nil
}

func requiredAmount(field, s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, apperror.ValidationFailed(field, fmt.Sprintf("%s is required", field))
	}
	v, err := model.ParseAmount(s)
	if err != nil {
		return 0, apperror.ValidationFailed(field, fmt.Sprintf("%s must be a number", field))
	}
	return v, nil
}

func requiredWhole(field, s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, apperror.ValidationFailed(field, fmt.Sprintf("%s is required", field))
	}
	v, err := model.ParseWhole(s)
	switch {
	case errors.Is(err, model.ErrTooLarge):
		return 0, tooLarge(field)
	case err != nil:
		return 0, apperror.ValidationFailed(field, fmt.Sprintf("%s must be a number", field))
	}
	return v, nil
}

// maxBeds keeps bed counts inside the int range on every platform.
const maxBeds = math.MaxInt32

func parseBeds(s string) (int, error) {
	v, err := requiredAmount("beds", s)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, apperror.ValidationFailed("beds", "beds must be a whole number")
	}
	if v > maxBeds {
		return 0, tooLarge("beds")
	}
	return int(v), nil
}

func tooLarge(field string) error {
	return apperror.ValidationFailed(field, fmt.Sprintf("%s is too large", field))
}

func parseBaths(s string) (float64, error) {
	v, err := requiredAmount("baths", s)
	if err != nil {
		return 0, err
	}
	if v*2 != math.Trunc(v*2) {
		return 0, apperror.ValidationFailed("baths", "baths must be a whole or half number")
	}
	if v > maxBeds {
		return 0, tooLarge("baths")
	}
	return v, nil
}

func parseFee(field, s string) (float64, error) {
	v, err := requiredAmount(field, strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return 0, err
	}
	if v > 100 {
		return 0, apperror.ValidationFailed(field, fmt.Sprintf("%s must be between 0 and 100", field))
	}
	return v, nil
}

func parsePropertyType(s string) (model.PropertyType, error) {
	pt := model.PropertyType(strings.ToLower(strings.TrimSpace(s)))
	if pt == "" {
		return "", apperror.ValidationFailed("propertyType", "propertyType is required")
	}
	if !pt.Valid() {
		return "", apperror.ValidationFailed("propertyType",
			"propertyType must be one of: house, condo, townhouse, apartment")
	}
	return pt, nil
}
