package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zombor/receipt-ocr/internal/normalize"
	"github.com/zombor/receipt-ocr/internal/scanning"
)

// ErrScanFailed is returned when OCR produced no usable result
var ErrScanFailed = errors.New("scan failed")

// Scanner turns image bytes into a normalized OCR result
type Scanner interface {
	Scan(ctx context.Context, data []byte, contentType string) *scanning.Result
}

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles receipt operations
type Service struct {
	db          DB
	scanner     Scanner
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner Scanner, storage Storage) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	// Phone cameras produce long names
	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// ScanReceipt stores the image and runs OCR on it. The returned receipt is
// not persisted; pass it to CreateReceipt once the caller confirms it.
func (s *Service) ScanReceipt(ctx context.Context, userID, filename string, data []byte, contentType string) (*Receipt, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	result := s.scanner.Scan(ctx, data, contentType)
	if !result.Success {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", result.ErrorMessage,
		)
		if err := s.storage.Delete(savedPath); err != nil {
			slog.Warn("Failed to delete file", "filename", savedPath, "error", err)
		}
		return nil, fmt.Errorf("%w: %s", ErrScanFailed, result.ErrorMessage)
	}

	items := result.Items
	if items == nil {
		items = []normalize.LineItem{}
	}

	method := result.PaymentMethod
	if result.Summary.PaymentMethod != nil {
		method = *result.Summary.PaymentMethod
	}

	return &Receipt{
		ID:            id,
		UserID:        userID,
		Filename:      savedPath,
		ContentType:   contentType,
		StoreName:     result.Summary.StoreName,
		Date:          result.Summary.Date,
		ReceiptNumber: result.Summary.ReceiptNumber,
		Total:         result.Summary.Total,
		PaymentMethod: method,
		Items:         items,
		RawText:       result.RawText,
		Confidence:    result.Confidence,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CreateReceipt persists a scanned receipt. Saving an ID that already exists
// returns the stored receipt unchanged.
func (s *Service) CreateReceipt(receipt *Receipt) (*Receipt, error) {
	if receipt == nil || receipt.ID == "" {
		return nil, fmt.Errorf("receipt id is required")
	}

	existing, err := s.db.GetReceipt(receipt.ID)
	if err == nil {
		slog.Info("Receipt already saved", "id", receipt.ID)
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("checking existing receipt: %w", err)
	}

	if err := s.verifyStoredFile(receipt); err != nil {
		return nil, err
	}

	now := s.timeSource.Now()
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = now
	}
	receipt.UpdatedAt = now
	if receipt.Items == nil {
		receipt.Items = []normalize.LineItem{}
	}

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}
	return receipt, nil
}

// servableContentTypes are the upload types the file endpoint may echo back
var servableContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/heic":      true,
	"image/heif":      true,
	"image/tiff":      true,
	"image/webp":      true,
	"application/pdf": true,
}

// verifyStoredFile checks that a receipt submitted for saving points at the
// image stored for it by ScanReceipt. The filename must be the bare
// "<id>_..." name ScanReceipt produced and the file must exist. An unknown
// content type is replaced by one sniffed from the stored bytes.
func (s *Service) verifyStoredFile(receipt *Receipt) error {
	name := receipt.Filename
	if name == "" || filepath.Base(name) != name || !filepath.IsLocal(name) || !strings.HasPrefix(name, receipt.ID+"_") {
		return fmt.Errorf("%w: filename %q does not belong to receipt %s", ErrInvalidPath, name, receipt.ID)
	}

	data, err := s.storage.Get(name)
	if err != nil {
		return fmt.Errorf("receipt %s has no stored file: %w", receipt.ID, err)
	}

	if !servableContentTypes[receipt.ContentType] {
		receipt.ContentType = http.DetectContentType(data)
	}
	return nil
}

// ProcessReceipt uploads a receipt, scans it, and saves it
func (s *Service) ProcessReceipt(ctx context.Context, userID, filename string, data []byte, contentType string) (*Receipt, error) {
	receipt, err := s.ScanReceipt(ctx, userID, filename, data, contentType)
	if err != nil {
		return nil, err
	}

	saved, err := s.CreateReceipt(receipt)
	if err != nil {
		if delErr := s.storage.Delete(receipt.Filename); delErr != nil {
			slog.Warn("Failed to delete file", "filename", receipt.Filename, "error", delErr)
		}
		return nil, err
	}
	return saved, nil
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns the receipts matching filter, newest first
func (s *Service) ListReceipts(filter Filter) ([]*Receipt, error) {
	all, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	receipts := make([]*Receipt, 0, len(all))
	for _, r := range all {
		if filter.Matches(r) {
			receipts = append(receipts, r)
		}
	}

	sort.SliceStable(receipts, func(i, j int) bool {
		if receipts[i].CreatedAt.Equal(receipts[j].CreatedAt) {
			return receipts[i].ID > receipts[j].ID
		}
		return receipts[i].CreatedAt.After(receipts[j].CreatedAt)
	})
	return receipts, nil
}

// Matches reports whether a receipt passes every criterion of the filter
func (f Filter) Matches(r *Receipt) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}

	if len(f.PaymentMethods) > 0 {
		found := false
		for _, m := range f.PaymentMethods {
			if r.PaymentMethod == m {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.StoreName != "" {
		if r.StoreName == nil || !strings.Contains(strings.ToLower(*r.StoreName), strings.ToLower(f.StoreName)) {
			return false
		}
	}

	if f.From != "" || f.To != "" {
		// Dates that could not be normalized cannot be ranged
		if r.Date == nil || !normalize.IsISODate(*r.Date) {
			return false
		}
		if f.From != "" && *r.Date < f.From {
			return false
		}
		if f.To != "" && *r.Date > f.To {
			return false
		}
	}

	return true
}

// DeleteReceipt removes a receipt and its file
func (s *Service) DeleteReceipt(id string) error {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	if err := s.storage.Delete(receipt.Filename); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete file", "filename", receipt.Filename, "error", err)
	}

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// DeleteLastReceipt removes the most recently created receipt of a user
func (s *Service) DeleteLastReceipt(userID string) (*Receipt, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	receipts, err := s.ListReceipts(Filter{UserID: userID})
	if err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		return nil, fmt.Errorf("%w: no receipts for user %s", ErrNotFound, userID)
	}

	latest := receipts[0]
	if err := s.DeleteReceipt(latest.ID); err != nil {
		return nil, err
	}
	return latest, nil
}

// GetReceiptFile retrieves the file data for a receipt
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(receipt.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	return data, receipt.ContentType, nil
}

// Totals aggregates the receipts matching filter
func (s *Service) Totals(filter Filter) (*Totals, error) {
	receipts, err := s.ListReceipts(filter)
	if err != nil {
		return nil, err
	}
	return aggregate(receipts), nil
}

func aggregate(receipts []*Receipt) *Totals {
	totals := &Totals{
		Count:           len(receipts),
		Total:           decimal.Zero,
		ByPaymentMethod: make(map[normalize.PaymentMethod]decimal.Decimal),
		Stores:          []string{},
	}

	stores := make(map[string]struct{})
	for _, r := range receipts {
		if r.Total != nil {
			method := r.PaymentMethod
			if method == "" {
				method = normalize.PaymentOther
			}
			totals.Total = totals.Total.Add(*r.Total)
			totals.ByPaymentMethod[method] = totals.ByPaymentMethod[method].Add(*r.Total)
		}
		if r.StoreName != nil {
			if name := strings.TrimSpace(*r.StoreName); name != "" {
				stores[name] = struct{}{}
			}
		}
	}

	for name := range stores {
		totals.Stores = append(totals.Stores, name)
	}
	sort.Strings(totals.Stores)
	return totals
}
