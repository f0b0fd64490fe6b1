package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/aodgrid/internal/combine"
	"github.com/wonny/aodgrid/internal/export"
	"github.com/wonny/aodgrid/internal/external/laads"
	"github.com/wonny/aodgrid/internal/gridding"
	"github.com/wonny/aodgrid/internal/manifest"
	"github.com/wonny/aodgrid/internal/metrics"
	"github.com/wonny/aodgrid/internal/runconfig"
	"github.com/wonny/aodgrid/internal/swath"
	"github.com/wonny/aodgrid/pkg/logger"
	"github.com/wonny/aodgrid/pkg/redis"
)

// ErrDayLocked is returned when another process is gridding the same day
var ErrDayLocked = errors.New("day is being processed elsewhere")

// lockTTL bounds how long a crashed process can block a day
const lockTTL = 2 * time.Hour

// Locker hands out exclusive per-day leases
type Locker interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (release func(), ok bool, err error)
}

// Deps are the collaborators of a Processor. Nil optional fields get no-op defaults.
type Deps struct {
	Catalog laads.Catalog
	Fetcher Fetcher
	Reader  swath.Reader
	Store   manifest.Store
	Writers []export.Writer

	Metrics metrics.Publisher // optional
	Locker  Locker            // optional
	Events  EventSink         // optional

	// KeepDownloads leaves fetched granules on disk after gridding
	KeepDownloads bool
}

// ProductOutcome is the result of one product for one day
type ProductOutcome struct {
	Product string
	Result  *gridding.DailyResult // nil when the product could not be listed or was cancelled
	Record  *manifest.Record
}

// DayResult is the result of one day
type DayResult struct {
	Date     time.Time
	Products []ProductOutcome
	Outputs  []string
	Err      error
}

// Failed reports whether the day counts as failed: a day-level error, or
// every product failed
func (d *DayResult) Failed() bool {
	if d.Err != nil {
		return true
	}
	if len(d.Products) == 0 {
		return false
	}
	for _, p := range d.Products {
		if p.Record == nil || p.Record.Status != manifest.StatusFailed {
			return false
		}
	}
	return true
}

// Processor grids one day at a time: list → fetch → read → grid → combine → export → record
// ⭐ SSOT: 일별 처리 흐름은 이 구조체에서만
type Processor struct {
	cfg        *runconfig.Config
	configHash string
	spec       gridding.Spec
	deps       Deps
	logger     *logger.Logger
	owner      string
	now        func() time.Time
}

// NewProcessor validates the job configuration and wires the collaborators
func NewProcessor(cfg *runconfig.Config, deps Deps, log *logger.Logger) (*Processor, error) {
	spec, err := cfg.Spec()
	if err != nil {
		return nil, err
	}
	hash, err := runconfig.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash config: %w", err)
	}
	if deps.Catalog == nil || deps.Fetcher == nil || deps.Reader == nil || deps.Store == nil {
		return nil, &gridding.ConfigurationError{Field: "pipeline", Message: "catalog, fetcher, reader and store are required"}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NopPublisher{}
	}
	if deps.Events == nil {
		deps.Events = nopSink{}
	}

	return &Processor{
		cfg:        cfg,
		configHash: hash,
		spec:       spec,
		deps:       deps,
		logger:     log.WithField("module", "pipeline"),
		owner:      uuid.NewString(),
		now:        time.Now,
	}, nil
}

// ConfigHash returns the hash recorded with every run
func (p *Processor) ConfigHash() string { return p.configHash }

// ProcessDay grids every configured product for one day and writes the granule.
// Per-file and per-product failures are recorded, not returned; the returned
// error is reserved for cancellation, locking and output failures.
func (p *Processor) ProcessDay(ctx context.Context, date time.Time) (*DayResult, error) {
	start := p.now()
	dateStr := date.Format(runconfig.DateLayout)
	log := p.logger.WithField("date", dateStr)
	day := &DayResult{Date: date}

	if p.deps.Locker != nil {
		release, ok, err := p.deps.Locker.Acquire(ctx, redis.LockKey(dateStr), p.owner, lockTTL)
		if err != nil {
			day.Err = err
			return day, err
		}
		if !ok {
			day.Err = ErrDayLocked
			return day, ErrDayLocked
		}
		defer release()
	}

	p.deps.Events.Publish(Event{Type: EventDayStarted, Date: dateStr, Time: p.now()})
	log.Info("Day processing started")

	for _, pc := range p.cfg.Products {
		out, err := p.processProduct(ctx, date, pc)
		day.Products = append(day.Products, out)
		if err != nil {
			return p.abort(ctx, day, err)
		}
	}

	// === 결합 + 출력 ===
	if p.anySucceeded(day) {
		outputs, err := p.export(ctx, date, day)
		if err != nil {
			return p.abort(ctx, day, err)
		}
		day.Outputs = outputs
	}

	finished := p.now()
	for _, po := range day.Products {
		if po.Result != nil {
			output := ""
			if manifest.StatusFor(po.Result).Succeeded() {
				output = firstOr(day.Outputs, "")
			}
			po.Record.Finish(po.Result, output, finished)
		}
		p.save(ctx, po.Record)
		p.publishMetrics(ctx, date, po, finished.Sub(start))
		p.deps.Events.Publish(Event{
			Type:    EventProductDone,
			Date:    dateStr,
			Product: po.Product,
			Status:  string(po.Record.Status),
			Error:   po.Record.Error,
			Time:    finished,
		})
	}

	status := "ok"
	if day.Failed() {
		status = "failed"
	}
	p.deps.Events.Publish(Event{Type: EventDayDone, Date: dateStr, Status: status, Time: finished})
	log.WithFields(map[string]interface{}{
		"status":   status,
		"outputs":  len(day.Outputs),
		"duration": finished.Sub(start),
	}).Info("Day processing finished")

	return day, nil
}

// abort marks every unfinished record failed and ends the day with err
func (p *Processor) abort(ctx context.Context, day *DayResult, err error) (*DayResult, error) {
	saveCtx := context.WithoutCancel(ctx)
	for _, po := range day.Products {
		if po.Record.Status == manifest.StatusRunning {
			po.Record.Abort(err, p.now())
			p.save(saveCtx, po.Record)
		}
	}
	day.Err = err
	p.logger.WithError(err).WithField("date", day.Date.Format(runconfig.DateLayout)).Error("Day processing aborted")
	return day, err
}

// processProduct lists, fetches and grids one product. A returned error means
// the day must stop (cancellation); everything else is recorded in the outcome.
func (p *Processor) processProduct(ctx context.Context, date time.Time, pc runconfig.ProductConfig) (ProductOutcome, error) {
	dateStr := date.Format(runconfig.DateLayout)
	archive := pc.ArchiveName(p.cfg.Satellite)
	log := p.logger.ForDay(date, pc.Name)

	rec := manifest.NewRecord(date, pc.Name, p.configHash, p.now())
	p.save(ctx, rec)
	out := ProductOutcome{Product: pc.Name, Record: rec}

	files, err := p.deps.Catalog.ListFiles(ctx, archive, date)
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		log.WithError(err).Error("Listing failed")
		rec.Abort(fmt.Errorf("list %s: %w", archive, err), p.now())
		return out, nil
	}
	if len(files) == 0 {
		log.Warn("No granules for this day")
	}

	vars := swath.Variables{
		Value:          pc.Value,
		Latitude:       pc.Latitude,
		Longitude:      pc.Longitude,
		Zenith:         pc.Zenith,
		Quality:        pc.Quality,
		DefaultQuality: pc.DefaultQuality,
	}

	units := make([]gridding.Unit, len(files))
	for i, file := range files {
		file := file
		units[i] = gridding.Unit{
			Source: file,
			Load: func(ctx context.Context) (*gridding.Swath, error) {
				path, err := p.deps.Fetcher.Fetch(ctx, archive, date, file)
				if err != nil {
					return nil, err
				}
				if !p.deps.KeepDownloads {
					defer os.Remove(path)
				}
				return p.deps.Reader.Read(ctx, path, vars)
			},
		}
	}

	var done atomic.Int32
	run, err := gridding.NewRun(p.spec, pc.Filter(), gridding.RunOptions{
		Workers:    p.cfg.Workers.Files,
		MinSamples: p.cfg.Aggregation.MinSamples,
		OnUnit: func(r gridding.UnitResult) {
			n := int(done.Add(1))
			ev := Event{
				Type:    EventFileDone,
				Date:    dateStr,
				Product: pc.Name,
				Source:  r.Source,
				Done:    n,
				Total:   len(units),
				Time:    p.now(),
			}
			if r.Err != nil {
				ev.Error = r.Err.Error()
				log.WithError(r.Err).WithField("source", r.Source).Warn("Granule skipped")
			} else {
				log.WithFields(map[string]interface{}{
					"source":   r.Source,
					"accepted": r.Stats.Accepted,
					"duration": r.Duration,
				}).Debug("Granule gridded")
			}
			p.deps.Events.Publish(ev)
		},
	})
	if err != nil {
		return out, err
	}

	if err := run.Process(ctx, units); err != nil {
		return out, err
	}

	res, err := run.Finalize(date)
	if err != nil {
		return out, err
	}
	out.Result = res

	fields := map[string]interface{}{
		"files_ok":     len(res.Manifest.Succeeded),
		"files_failed": len(res.Manifest.Failed),
		"accepted":     res.Manifest.Stats.Accepted,
		"cells_filled": res.FilledCells,
		"outcome":      res.Manifest.Outcome(),
	}
	if res.Empty() && len(res.Manifest.Succeeded) > 0 {
		log.WithFields(fields).Warn("No cell reached the minimum sample count")
	} else {
		log.WithFields(fields).Info("Product gridded")
	}
	return out, nil
}

func (p *Processor) anySucceeded(day *DayResult) bool {
	for _, po := range day.Products {
		if po.Result != nil && manifest.StatusFor(po.Result).Succeeded() {
			return true
		}
	}
	return false
}

// export blends and writes the day in every configured format
func (p *Processor) export(ctx context.Context, date time.Time, day *DayResult) ([]string, error) {
	results := make(map[string]*gridding.DailyResult, len(day.Products))
	products := make([]export.ProductResult, 0, len(day.Products))
	for _, po := range day.Products {
		res := po.Result
		if res != nil && !manifest.StatusFor(res).Succeeded() {
			res = nil
		}
		results[po.Product] = res
		pc, _ := p.cfg.Product(po.Product)
		products = append(products, export.ProductResult{
			Name:     po.Product,
			Result:   res,
			ValidMin: pc.ValidMin,
			ValidMax: pc.ValidMax,
		})
	}

	var blend *combine.Layers
	c := p.cfg.Combine
	if c.Enabled && (results[c.Primary] != nil || results[c.Second] != nil) {
		layers, err := combine.FromResults(results[c.Primary], results[c.Second])
		if err != nil {
			return nil, fmt.Errorf("combine: %w", err)
		}
		blend = &layers
	}

	meta := export.Metadata{
		ShortName:  p.cfg.Output.ShortName,
		Satellite:  p.cfg.Satellite,
		Version:    p.cfg.Output.Version,
		Produced:   p.now().UTC(),
		ConfigHash: p.configHash,
	}
	ds := export.NewDataset(date, p.spec, products, blend, c.Primary, c.Second, meta)
	return export.WriteAll(ctx, p.cfg.Output.Dir, ds, p.deps.Writers, p.logger)
}

func (p *Processor) save(ctx context.Context, rec *manifest.Record) {
	if err := p.deps.Store.Save(ctx, rec); err != nil {
		p.logger.WithError(err).WithFields(map[string]interface{}{
			"date":    rec.RunDate.Format(runconfig.DateLayout),
			"product": rec.Product,
		}).Error("Failed to save run record")
	}
}

func (p *Processor) publishMetrics(ctx context.Context, date time.Time, po ProductOutcome, d time.Duration) {
	m := metrics.DayMetrics{Product: po.Product, Date: date, Duration: d}
	if po.Result != nil {
		m.FilesOK = len(po.Result.Manifest.Succeeded)
		m.FilesFailed = len(po.Result.Manifest.Failed)
		m.PixelsAccepted = int64(po.Result.Manifest.Stats.Accepted)
		m.CellsFilled = po.Result.FilledCells
	}
	if err := p.deps.Metrics.PublishDay(ctx, m); err != nil {
		p.logger.WithError(err).Warn("Failed to publish metrics")
	}
}

func firstOr(s []string, def string) string {
	if len(s) == 0 {
		return def
	}
	return s[0]
}
