package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sakif/listings-portal/internal/apperror"
	"github.com/sakif/listings-portal/internal/model"
	"github.com/sakif/listings-portal/internal/repository"
)

// reportTimeFormat is the timestamp embedded in report filenames.
const reportTimeFormat = "2006-01-02_15-04-05"

// reportHeader is the fixed first row of every export.
var reportHeader = []string{"ID", "Price", "Address", "Beds", "Baths", "Square Feet", "Status", "Created Date"}

// safeReportName is checked before any filesystem access: no separators,
// no dots other than the extension, so "../" can never reach os.Open.
var safeReportName = regexp.MustCompile(`^[a-zA-Z0-9_-]+\.csv$`)

// ReportService writes listing exports to a directory and serves them back.
//
// Reports are immutable once written: a same-second collision gets a -N
// suffix instead of overwriting the earlier file.
type ReportService struct {
	listings  repository.ListingRepository
	dir       string
	logger    *slog.Logger
	now       func() time.Time
	generated *prometheus.CounterVec
}

// NewReportService creates a ReportService writing into dir. The
// listings_reports_generated_total counter is registered on reg; a nil reg
// leaves it unregistered.
func NewReportService(listings repository.ListingRepository, dir string, reg prometheus.Registerer, logger *slog.Logger) *ReportService {
	return &ReportService{
		listings: listings,
		dir:      dir,
		logger:   logger,
		now:      time.Now,
		generated: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "listings_reports_generated_total",
			Help: "CSV reports generated, by type.",
		}, []string{"type"}),
	}
}

// Generate exports open (active) or closed (everything else) listings to a
// new CSV file.
func (s *ReportService) Generate(ctx context.Context, typ string) (*model.Report, error) {
	rt := model.ReportType(strings.ToLower(strings.TrimSpace(typ)))

	f := repository.ListingFilter{}
	switch rt {
	case model.ReportOpen:
		f.Status = model.StatusActive
	case model.ReportClosed:
		f.NotStatus = model.StatusActive
	default:
		return nil, apperror.ValidationFailed("type", "Valid report type required (open or closed)")
	}

	listings, err := s.listings.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("service/report: loading listings: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("service/report: creating reports dir: %w", err)
	}

	file, name, err := s.createUnique(fmt.Sprintf("%s_listings_%s", rt, s.now().UTC().Format(reportTimeFormat)))
	if err != nil {
		return nil, err
	}

	if err := writeReport(file, listings); err != nil {
		file.Close()
		_ = os.Remove(file.Name())
		return nil, fmt.Errorf("service/report: writing %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("service/report: closing %s: %w", name, err)
	}

	s.generated.WithLabelValues(string(rt)).Inc()
	s.logger.Info("report generated",
		slog.String("type", string(rt)),
		slog.String("filename", name),
		slog.Int("count", len(listings)),
	)

	return &model.Report{Filename: name, Path: file.Name(), Count: len(listings)}, nil
}

// createUnique opens base.csv exclusively, falling back to base-1.csv,
// base-2.csv, ... if a file with that name already exists.
func (s *ReportService) createUnique(base string) (*os.File, string, error) {
	for i := 0; i < 100; i++ {
		name := base + ".csv"
		if i > 0 {
			name = fmt.Sprintf("%s-%d.csv", base, i)
		}

		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("service/report: creating %s: %w", name, err)
		}
	}
	return nil, "", fmt.Errorf("service/report: too many reports named %s", base)
}

func writeReport(f *os.File, listings []model.Listing) error {
	w := csv.NewWriter(f)
	if err := w.Write(reportHeader); err != nil {
		return err
	}
	for _, l := range listings {
		err := w.Write([]string{
			l.ID,
			model.FormatPrice(l.Price),
			l.Address,
			strconv.Itoa(l.Beds),
			strconv.FormatFloat(l.Baths, 'f', -1, 64),
			model.FormatSqft(l.Sqft),
			string(l.Status),
			l.CreatedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns the exports on disk, newest first. A missing directory is an
// empty list.
func (s *ReportService) List(_ context.Context) ([]model.ReportFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.ReportFile{}, nil
		}
		return nil, fmt.Errorf("service/report: reading reports dir: %w", err)
	}

	reports := make([]model.ReportFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}

		typ := model.ReportClosed
		if strings.HasPrefix(e.Name(), "open_") {
			typ = model.ReportOpen
		}

		reports = append(reports, model.ReportFile{
			Filename:  e.Name(),
			Type:      typ,
			Size:      info.Size(),
			SizeHuman: humanize.Bytes(uint64(info.Size())),
			CreatedAt: info.ModTime().UTC(),
		})
	}

	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].CreatedAt.Equal(reports[j].CreatedAt) {
			return reports[i].Filename > reports[j].Filename
		}
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	return reports, nil
}

// Open validates filename and opens the report for streaming. The caller
// closes the file.
func (s *ReportService) Open(_ context.Context, filename string) (*os.File, error) {
	if !safeReportName.MatchString(filename) {
		return nil, apperror.ValidationFailed("filename", "Invalid filename")
	}

	f, err := os.Open(filepath.Join(s.dir, filename))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "Report not found"}
		}
		return nil, fmt.Errorf("service/report: opening %s: %w", filename, err)
	}
	return f, nil
}
