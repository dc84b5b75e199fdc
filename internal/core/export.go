package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"admissions/internal/blob"
	"admissions/pkg/domain"
)

const (
	BackupPrefix = "backups/"
	ReportPrefix = "reports/"

	backupBase = "shs-admission-backup-"
	rosterBase = "shs-admission-roster-"

	contentTypeJSON = "application/json"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	rosterSheet = "Roster"
)

// Export describes one written archive object.
type Export struct {
	Info     blob.Info `json:"info"`
	URL      string    `json:"url,omitempty"`
	Students int       `json:"students"`
}

// Exporter writes backups and roster reports to a blob store and restores
// backups through the service.
type Exporter struct {
	service       *Service
	store         blob.Store
	clock         Clock
	logger        zerolog.Logger
	presignExpiry time.Duration
}

// ExporterOption customises an Exporter.
type ExporterOption func(*Exporter)

// WithExportClock overrides the clock used to date archive keys.
func WithExportClock(c Clock) ExporterOption {
	return func(e *Exporter) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithExportLogger sets the exporter logger.
func WithExportLogger(logger zerolog.Logger) ExporterOption {
	return func(e *Exporter) { e.logger = logger }
}

// WithPresignExpiry sets the lifetime of download URLs.
func WithPresignExpiry(d time.Duration) ExporterOption {
	return func(e *Exporter) {
		if d > 0 {
			e.presignExpiry = d
		}
	}
}

// NewExporter binds an exporter to a service and an archive store.
func NewExporter(service *Service, store blob.Store, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		service:       service,
		store:         store,
		clock:         systemClock{},
		logger:        zerolog.Nop(),
		presignExpiry: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the archive backend.
func (e *Exporter) Store() blob.Store { return e.store }

// EncodeSnapshot renders the aggregate as the indented backup document.
func EncodeSnapshot(state AppState) ([]byte, error) {
	if state.Students == nil {
		state.Students = []Student{}
	}
	return json.MarshalIndent(state, "", "  ")
}

// DecodeSnapshot parses a backup document. The students list is required.
func DecodeSnapshot(payload []byte) (AppState, error) {
	var raw struct {
		Students      *[]Student `json:"students"`
		FormInventory int        `json:"formInventory"`
		TotalRevenue  float64    `json:"totalRevenue"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return AppState{}, ValidationError{Field: "snapshot", Message: "is not valid JSON: " + err.Error()}
	}
	if raw.Students == nil {
		return AppState{}, ValidationError{Field: "students", Message: "is required"}
	}
	return AppState{Students: *raw.Students, FormInventory: raw.FormInventory, TotalRevenue: raw.TotalRevenue}, nil
}

// ExportSnapshot writes the current aggregate as a dated JSON backup.
func (e *Exporter) ExportSnapshot(ctx context.Context) (Export, error) {
	start := e.clock.Now()
	state := e.service.State()
	payload, err := EncodeSnapshot(state)
	if err != nil {
		return Export{}, fmt.Errorf("encode snapshot: %w", err)
	}
	out, err := e.write(ctx, BackupPrefix+backupBase, ".json", payload, blob.PutOptions{
		ContentType: contentTypeJSON,
		Metadata:    map[string]string{"students": strconv.Itoa(len(state.Students))},
	})
	e.service.metrics.Observe(ctx, "export_snapshot", err == nil, e.clock.Now().Sub(start))
	if err != nil {
		return Export{}, err
	}
	out.Students = len(state.Students)
	e.logger.Info().Str("key", out.Info.Key).Int("students", out.Students).Msg("admission backup written")
	return out, nil
}

// ExportRoster writes a spreadsheet with one row per student.
func (e *Exporter) ExportRoster(ctx context.Context) (Export, error) {
	start := e.clock.Now()
	state := e.service.State()
	payload, err := RenderRoster(state.Students)
	if err != nil {
		return Export{}, err
	}
	out, err := e.write(ctx, ReportPrefix+rosterBase, ".xlsx", payload, blob.PutOptions{ContentType: contentTypeXLSX})
	e.service.metrics.Observe(ctx, "export_roster", err == nil, e.clock.Now().Sub(start))
	if err != nil {
		return Export{}, err
	}
	out.Students = len(state.Students)
	e.logger.Info().Str("key", out.Info.Key).Int("students", out.Students).Msg("admission roster written")
	return out, nil
}

// ImportSnapshot restores a backup stored under key.
func (e *Exporter) ImportSnapshot(ctx context.Context, key string) (AppState, error) {
	_, rc, err := e.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return AppState{}, ErrNotFound{Entity: "backup", ID: key}
		}
		return AppState{}, fmt.Errorf("read backup %s: %w", key, err)
	}
	defer rc.Close()
	payload, err := io.ReadAll(rc)
	if err != nil {
		return AppState{}, fmt.Errorf("read backup %s: %w", key, err)
	}
	state, err := DecodeSnapshot(payload)
	if err != nil {
		return AppState{}, err
	}
	if err := e.service.Import(ctx, state); err != nil {
		return AppState{}, err
	}
	return e.service.State(), nil
}

// Backups lists stored backups, newest first. A dated key sorts before the
// same day's time-suffixed keys.
func (e *Exporter) Backups(ctx context.Context) ([]blob.Info, error) {
	infos, err := e.store.List(ctx, BackupPrefix)
	if err != nil {
		return nil, err
	}
	stem := func(key string) string { return strings.TrimSuffix(key, path.Ext(key)) }
	sort.SliceStable(infos, func(i, j int) bool { return stem(infos[i].Key) > stem(infos[j].Key) })
	return infos, nil
}

// PruneBackups deletes all but the keep newest backups and returns how many
// were removed. keep <= 0 disables pruning.
func (e *Exporter) PruneBackups(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	infos, err := e.Backups(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := keep; i < len(infos); i++ {
		ok, err := e.store.Delete(ctx, infos[i].Key)
		if err != nil {
			return removed, fmt.Errorf("delete %s: %w", infos[i].Key, err)
		}
		if ok {
			removed++
		}
	}
	if removed > 0 {
		e.logger.Info().Int("removed", removed).Int("kept", keep).Msg("old admission backups pruned")
	}
	return removed, nil
}

// write stores payload under base+date+ext, adding a time suffix when the
// dated key is taken.
func (e *Exporter) write(ctx context.Context, base, ext string, payload []byte, opts blob.PutOptions) (Export, error) {
	now := e.clock.Now().UTC()
	keys := []string{
		base + now.Format("2006-01-02") + ext,
		base + now.Format("2006-01-02-150405") + ext,
	}
	var info blob.Info
	var err error
	for _, key := range keys {
		info, err = e.store.Put(ctx, key, bytes.NewReader(payload), opts)
		if !errors.Is(err, blob.ErrExists) {
			break
		}
	}
	if err != nil {
		return Export{}, fmt.Errorf("store export: %w", err)
	}
	out := Export{Info: info}
	url, err := e.store.PresignURL(ctx, info.Key, blob.SignedURLOptions{Method: "GET", Expiry: e.presignExpiry})
	switch {
	case err == nil:
		out.URL = url
	case errors.Is(err, blob.ErrUnsupported):
	default:
		e.logger.Warn().Err(err).Str("key", info.Key).Msg("presign export url")
	}
	return out, nil
}

// RosterHeader is the first row of the roster sheet.
func RosterHeader() []string {
	return []string{
		"Name", "Class", "Gender", "Cheat Number",
		"Cheat", "Form", "Payment", "Bio Data", "Transcript", "Rector Review",
		"Progress", "Amount Paid",
	}
}

// RenderRoster builds the roster workbook in creation order.
func RenderRoster(students []Student) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", rosterSheet); err != nil {
		return nil, fmt.Errorf("roster sheet: %w", err)
	}
	header := RosterHeader()
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("roster style: %w", err)
	}
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := f.SetSheetRow(rosterSheet, "A1", &row); err != nil {
		return nil, fmt.Errorf("roster header: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetCellStyle(rosterSheet, "A1", last+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("roster header style: %w", err)
	}
	_ = f.SetColWidth(rosterSheet, "A", "B", 24)
	_ = f.SetColWidth(rosterSheet, "C", last, 14)

	for i, st := range students {
		values := []any{st.Name, st.Class, string(st.Gender), st.CheatNumber}
		for _, stage := range domain.Stages() {
			values = append(values, string(st.StageStatus(stage)))
		}
		values = append(values, ProgressLabel(st.CompletedStages()))
		if st.AmountPaid != nil {
			values = append(values, *st.AmountPaid)
		} else {
			values = append(values, "")
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(rosterSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("roster row %d: %w", i+2, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("roster write: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadRoster parses a roster workbook back into rows, header included.
func ReadRoster(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	rows, err := f.GetRows(rosterSheet)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	for i := range rows {
		for j := range rows[i] {
			rows[i][j] = strings.TrimSpace(rows[i][j])
		}
	}
	return rows, nil
}
