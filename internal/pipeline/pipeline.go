// Package pipeline orchestrates the five ingestion stages over a worker
// pool of partitioned writers.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/keirinlab/keirin-cli/internal/model"
	"github.com/keirinlab/keirin-cli/internal/source"
	"github.com/keirinlab/keirin-cli/internal/stage"
	"github.com/keirinlab/keirin-cli/internal/store"
)

// Orchestrator wires the sources, the status tracker, and the partition
// pool into runnable update rounds. Stages run strictly in order with a
// barrier between them: resolution for stage N reads what earlier stages
// wrote across every partition, and no partition has an active writer while
// that read happens.
type Orchestrator struct {
	API     source.API
	Scraper source.Scraper
	Aliases *source.VenueAliases
	Tracker *store.StatusTracker

	DataDir      string
	Workers      int
	HistoryStart string

	// now is the run clock; tests pin it.
	Now func() time.Time
}

// StageSummary is the outcome of one stage within a run.
type StageSummary struct {
	Stage   stage.Stage `json:"stage"`
	Done    int         `json:"done"`
	Failed  int         `json:"failed"`
	Skipped int         `json:"skipped"`
	Planned int         `json:"planned,omitempty"` // dry-run only
}

// Summary is the outcome of a whole run.
type Summary struct {
	RunID  string         `json:"run_id,omitempty"`
	From   string         `json:"from"`
	To     string         `json:"to"`
	DryRun bool           `json:"dry_run,omitempty"`
	Stages []StageSummary `json:"stages"`
}

// Failed reports the total permanently failed scopes across stages.
func (s *Summary) Failed() int {
	n := 0
	for _, st := range s.Stages {
		n += st.Failed
	}
	return n
}

func (s *Summary) String() string {
	parts := make([]string, 0, len(s.Stages))
	for _, st := range s.Stages {
		parts = append(parts, fmt.Sprintf("%s done=%d failed=%d skipped=%d",
			st.Stage, st.Done, st.Failed, st.Skipped))
	}
	return strings.Join(parts, "; ")
}

// workItem is one unit of stage work. scopes lists every status scope the
// item completes; a discovery item covers all pending days of a month while
// the later stages map one scope per item.
type workItem struct {
	label  string
	scopes []string
	fn     func(ctx context.Context, p *store.Partition) error
}

// Run executes the selected stages over the resolved date range.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Summary, error) {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	from, to, err := opts.DateRange(now(), o.HistoryStart)
	if err != nil {
		return nil, err
	}
	stages := opts.Stages
	if len(stages) == 0 {
		stages = stage.AllStages
	}
	workers := o.Workers
	if workers < 1 {
		workers = 1
	}

	summary := &Summary{From: from, To: to, DryRun: opts.DryRun}

	var runID string
	if !opts.DryRun {
		runID, err = o.Tracker.StartRun(ctx, string(opts.Mode), stageList(stages))
		if err != nil {
			return nil, err
		}
		summary.RunID = runID
	}

	zap.L().Info("update run starting",
		zap.String("mode", string(opts.Mode)),
		zap.String("from", from), zap.String("to", to),
		zap.String("stages", stageList(stages)),
		zap.Bool("force", opts.Force), zap.Bool("dry_run", opts.DryRun),
		zap.Int("workers", workers))

	for _, st := range stages {
		items, skipped, err := o.resolve(ctx, st, opts, from, to)
		if err != nil {
			return summary, err
		}

		ss := StageSummary{Stage: st, Skipped: skipped}
		if opts.DryRun {
			for _, it := range items {
				ss.Planned += len(it.scopes)
				zap.L().Info("would process",
					zap.String("stage", st.String()), zap.String("item", it.label))
			}
		} else {
			done, failed, err := o.runPool(ctx, st, runID, items, workers)
			ss.Done, ss.Failed = done, failed
			if err != nil {
				summary.Stages = append(summary.Stages, ss)
				return summary, err
			}
		}
		summary.Stages = append(summary.Stages, ss)

		zap.L().Info("stage complete",
			zap.String("stage", st.String()),
			zap.Int("done", ss.Done), zap.Int("failed", ss.Failed),
			zap.Int("skipped", ss.Skipped), zap.Int("planned", ss.Planned))
	}

	if !opts.DryRun {
		if err := o.Tracker.CompleteRun(ctx, runID, summary.String()); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// runPool drains the stage's items through a fixed pool of workers, each
// writing to its own partition. A storage failure aborts the run; fetch and
// parse failures only mark their scopes and let the pool continue.
func (o *Orchestrator) runPool(ctx context.Context, st stage.Stage, runID string, items []workItem, workers int) (int, int, error) {
	if len(items) == 0 {
		return 0, 0, nil
	}
	if workers > len(items) {
		workers = len(items)
	}

	parts := make([]*store.Partition, workers)
	for i := range parts {
		p, err := store.OpenPartition(o.DataDir, i)
		if err != nil {
			for _, open := range parts[:i] {
				open.Close()
			}
			return 0, 0, err
		}
		parts[i] = p
	}
	defer func() {
		for _, p := range parts {
			p.Close()
		}
	}()

	var done, failed atomic.Int64
	queue := make(chan workItem)

	g, gctx := errgroup.WithContext(ctx)
	for _, part := range parts {
		g.Go(func() error {
			for it := range queue {
				if err := o.processItem(gctx, st, runID, part, it, &done, &failed); err != nil {
					return err
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(queue)
		for _, it := range items {
			select {
			case queue <- it:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	err := g.Wait()
	return int(done.Load()), int(failed.Load()), err
}

func (o *Orchestrator) processItem(ctx context.Context, st stage.Stage, runID string, part *store.Partition, it workItem, done, failed *atomic.Int64) error {
	err := it.fn(ctx, part)
	if err == nil {
		for _, scope := range it.scopes {
			if err := o.Tracker.MarkDone(ctx, scope, int(st), runID); err != nil {
				return err
			}
		}
		done.Add(int64(len(it.scopes)))
		return nil
	}

	if eris.Is(err, store.ErrStorage) {
		// A broken partition makes further progress meaningless.
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	retryable := source.Retryable(err) || eris.Is(err, store.ErrConstraint)
	zap.L().Warn("item failed",
		zap.String("stage", st.String()), zap.String("item", it.label),
		zap.Bool("retryable", retryable), zap.Error(err))

	for _, scope := range it.scopes {
		var markErr error
		if retryable {
			markErr = o.Tracker.MarkPending(ctx, scope, int(st), runID, err.Error())
		} else {
			markErr = o.Tracker.MarkFailed(ctx, scope, int(st), runID, err.Error())
		}
		if markErr != nil {
			return markErr
		}
	}
	failed.Add(int64(len(it.scopes)))
	return nil
}

// resolve builds the stage's work items from the date range, the status
// tracker, and what earlier stages have already stored. Resolution never
// calls a source, so a dry run plans exactly what a real run would process.
func (o *Orchestrator) resolve(ctx context.Context, st stage.Stage, opts Options, from, to string) ([]workItem, int, error) {
	switch st {
	case stage.StageDiscovery:
		return o.resolveDiscovery(ctx, opts, from, to)
	case stage.StageCupDetail:
		return o.resolveCups(ctx, opts, from, to)
	case stage.StageRaceDetail, stage.StageOdds, stage.StageResult:
		return o.resolveRaces(ctx, st, opts, from, to)
	default:
		return nil, 0, eris.Errorf("pipeline: unknown stage %d", st)
	}
}

func (o *Orchestrator) resolveDiscovery(ctx context.Context, opts Options, from, to string) ([]workItem, int, error) {
	byMonth := make(map[string][]string)
	var months []string
	for _, date := range datesBetween(from, to) {
		m := monthOf(date)
		if _, ok := byMonth[m]; !ok {
			months = append(months, m)
		}
		byMonth[m] = append(byMonth[m], date)
	}
	sort.Strings(months)

	var items []workItem
	skipped := 0
	for _, m := range months {
		dates := byMonth[m]
		pending := dates
		if !opts.Force {
			var err error
			pending, err = o.Tracker.FilterDone(ctx, dates, int(stage.StageDiscovery))
			if err != nil {
				return nil, 0, err
			}
		}
		skipped += len(dates) - len(pending)
		if len(pending) == 0 {
			continue
		}

		anchor := pending[0]
		items = append(items, workItem{
			label:  "month " + m,
			scopes: pending,
			fn: func(ctx context.Context, p *store.Partition) error {
				resp, err := o.API.FetchMonthlyCups(ctx, anchor)
				if err != nil {
					return err
				}
				_, err = p.ApplyAll(ctx, stage.NormalizeMonth(resp))
				return err
			},
		})
	}
	return items, skipped, nil
}

func (o *Orchestrator) resolveCups(ctx context.Context, opts Options, from, to string) ([]workItem, int, error) {
	cups, err := o.cupsInScope(ctx, opts, from, to)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]string, len(cups))
	for i, c := range cups {
		ids[i] = c.ID
	}
	pending := ids
	if !opts.Force {
		pending, err = o.Tracker.FilterDone(ctx, ids, int(stage.StageCupDetail))
		if err != nil {
			return nil, 0, err
		}
	}

	var items []workItem
	for _, id := range pending {
		cupID := id
		items = append(items, workItem{
			label:  "cup " + cupID,
			scopes: []string{cupID},
			fn: func(ctx context.Context, p *store.Partition) error {
				resp, err := o.API.FetchCupDetail(ctx, cupID)
				if err != nil {
					return err
				}
				rs, err := stage.NormalizeCupDetail(resp)
				if err != nil {
					return err
				}
				_, err = p.ApplyAll(ctx, rs)
				return err
			},
		})
	}
	return items, len(ids) - len(pending), nil
}

func (o *Orchestrator) resolveRaces(ctx context.Context, st stage.Stage, opts Options, from, to string) ([]workItem, int, error) {
	cups, err := o.cupsInScope(ctx, opts, from, to)
	if err != nil {
		return nil, 0, err
	}
	cupIDs := make([]string, len(cups))
	for i, c := range cups {
		cupIDs[i] = c.ID
	}

	cat, err := store.OpenCatalog(o.DataDir)
	if err != nil {
		return nil, 0, err
	}
	defer cat.Close()

	races, err := cat.RacesForCups(ctx, cupIDs, from, to)
	if err != nil {
		return nil, 0, err
	}

	var finalOdds map[string]bool
	if st == stage.StageOdds && !opts.Force {
		finalOdds, err = cat.FinalOdds(ctx)
		if err != nil {
			return nil, 0, err
		}
	}

	var items []workItem
	skipped := 0
	for _, r := range races {
		switch st {
		case stage.StageOdds:
			if finalOdds[r.ID] {
				skipped++
				continue
			}
		case stage.StageResult:
			// Results only exist once the source declares the race decided.
			// Cancelled races never get a result page and count as skipped
			// so the run report accounts for them.
			if model.RaceStatus(r.Status) != model.RaceDecided {
				skipped++
				continue
			}
		}

		if !opts.Force {
			isDone, err := o.Tracker.IsDone(ctx, r.ID, int(st))
			if err != nil {
				return nil, 0, err
			}
			if isDone {
				skipped++
				continue
			}
		}

		items = append(items, o.raceItem(st, r))
	}
	return items, skipped, nil
}

// cupsInScope reads the cups overlapping the range across all partitions
// and applies the venue filter.
func (o *Orchestrator) cupsInScope(ctx context.Context, opts Options, from, to string) ([]store.CupRef, error) {
	cat, err := store.OpenCatalog(o.DataDir)
	if err != nil {
		return nil, err
	}
	defer cat.Close()

	cups, err := cat.CupsInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(opts.Venues) == 0 {
		return cups, nil
	}

	wanted := make(map[string]bool, len(opts.Venues))
	for _, v := range opts.Venues {
		wanted[v] = true
	}
	var out []store.CupRef
	for _, c := range cups {
		code, _ := o.Aliases.Code(c.VenueID)
		if wanted[c.VenueID] || (code != "" && wanted[code]) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (o *Orchestrator) raceItem(st stage.Stage, r store.RaceRef) workItem {
	item := workItem{
		label:  fmt.Sprintf("race %s", r.ID),
		scopes: []string{r.ID},
	}

	switch st {
	case stage.StageRaceDetail:
		item.fn = func(ctx context.Context, p *store.Partition) error {
			resp, err := o.API.FetchRaceDetail(ctx, r.CupID, r.ScheduleIndex, r.Number)
			if err != nil {
				return err
			}
			rs, err := stage.NormalizeRaceDetail(r.CupID, resp)
			if err != nil {
				return err
			}
			_, err = p.ApplyAll(ctx, rs)
			return err
		}

	case stage.StageOdds:
		item.fn = func(ctx context.Context, p *store.Partition) error {
			resp, err := o.API.FetchOdds(ctx, r.CupID, r.ScheduleIndex, r.Number)
			if err != nil {
				return err
			}
			_, err = p.ApplyAll(ctx, stage.NormalizeOdds(r.ID, resp))
			return err
		}

	case stage.StageResult:
		item.fn = func(ctx context.Context, p *store.Partition) error {
			// A venue with no JKA code mapping fails only this race, not
			// its siblings; the scope is marked failed like a not-found.
			code, ok := o.Aliases.Code(r.VenueID)
			if !ok {
				return eris.Errorf("pipeline: no venue code for %s (race %s)", r.VenueID, r.ID)
			}
			key := source.ResultKey{
				VenueCode:    code,
				CupStartDate: r.CupStartDate,
				RaceDate:     r.Date,
				RaceNumber:   r.Number,
			}
			page, err := o.Scraper.FetchRaceResult(ctx, key)
			if err != nil {
				return err
			}
			rs, err := stage.NormalizeResult(r.ID, model.RaceStatus(r.Status), page)
			if err != nil {
				return err
			}
			_, err = p.ApplyAll(ctx, rs)
			return err
		}
	}
	return item
}

func stageList(stages []stage.Stage) string {
	parts := make([]string, len(stages))
	for i, st := range stages {
		parts[i] = fmt.Sprintf("%d", st)
	}
	return strings.Join(parts, ",")
}
