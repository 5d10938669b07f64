package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/GaneshTappiti/notes-to-material/internal/genclient"
	"github.com/GaneshTappiti/notes-to-material/internal/grounding"
	"github.com/GaneshTappiti/notes-to-material/internal/item"
	"github.com/GaneshTappiti/notes-to-material/internal/prompt"
	"github.com/GaneshTappiti/notes-to-material/internal/retrieval"
	"golang.org/x/sync/errgroup"
)

// Store persists jobs and their generated items.
type Store interface {
	SaveItem(ctx context.Context, it item.GeneratedItem) error
	LoadItems(ctx context.Context, jobID string) ([]item.GeneratedItem, error)
	GetItem(ctx context.Context, jobID, itemID string) (item.GeneratedItem, error)
	GetJob(ctx context.Context, jobID string) (item.Job, error)
	UpdateJob(ctx context.Context, job item.Job) error
}

// Config bounds one pipeline's budgets.
type Config struct {
	TopK               int
	MaxAttempts        int
	MaxRepairAttempts  int
	RetrievalThreshold float64
	StrictSourcing     bool
	Concurrency        int
}

func (c *Config) applyDefaults() {
	if c.TopK <= 0 {
		c.TopK = 6
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.MaxRepairAttempts <= 0 {
		c.MaxRepairAttempts = 2
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
}

// Pipeline runs the grounded generation flow: retrieve, assemble, generate
// with retry/repair, classify, persist. Each item's run is independent.
type Pipeline struct {
	retriever *retrieval.Retriever
	prompts   prompt.Builder
	client    genclient.Completer
	budget    *genclient.CallBudget
	store     Store
	cfg       Config

	// injectable for deterministic tests
	sleep func(time.Duration)
	now   func() time.Time
}

func New(retriever *retrieval.Retriever, client genclient.Completer, budget *genclient.CallBudget, store Store, cfg Config) *Pipeline {
	cfg.applyDefaults()
	if budget == nil {
		budget = genclient.NewCallBudget(0)
	}
	return &Pipeline{
		retriever: retriever,
		client:    client,
		budget:    budget,
		store:     store,
		cfg:       cfg,
		sleep:     time.Sleep,
		now:       time.Now,
	}
}

// ItemSpec identifies one generation unit. ItemID is kept when regenerating
// so the item's identity survives.
type ItemSpec struct {
	JobID     string
	ItemID    string
	Topic     string
	Mark      int
	Documents []string
}

// GenerateItem runs the full pipeline for one item. Caller errors surface
// as InvalidArgument; everything else degrades to a NOT_FOUND item rather
// than an error, so one item can never abort a batch.
func (p *Pipeline) GenerateItem(ctx context.Context, spec ItemSpec) (item.GeneratedItem, error) {
	if !item.ValidMark(spec.Mark) {
		return item.GeneratedItem{}, genclient.Errorf(genclient.KindInvalidArgument, "mark value must be one of {2,5,10}, got %d", spec.Mark)
	}
	if strings.TrimSpace(spec.Topic) == "" {
		return item.GeneratedItem{}, genclient.Errorf(genclient.KindInvalidArgument, "topic must not be empty")
	}
	id := spec.ItemID
	if id == "" {
		id = item.NewID()
	}

	// Caller errors were screened above; what remains is an embedder or
	// index failure, which is transient like any other transport error.
	hits, err := p.retriever.RetrieveFiltered(ctx, spec.Topic, p.cfg.TopK, spec.Documents)
	if err != nil {
		return item.GeneratedItem{}, genclient.NewError(genclient.KindUnavailable, fmt.Errorf("retrieval failed: %w", err))
	}

	req, err := p.prompts.Assemble(spec.Topic, spec.Mark, hits, p.cfg.StrictSourcing)
	if err != nil {
		return item.GeneratedItem{}, err
	}

	meta := item.GenerationMetadata{
		PromptTemplate: req.TemplateID,
		ModelID:        p.client.ModelID(),
		GeneratedAt:    p.now().UTC(),
	}

	// Hard short-circuit: an empty corpus can never satisfy strict sourcing,
	// so no model call is made at all.
	if req.Ungroundable {
		return item.NotFound(id, spec.JobID, spec.Topic, spec.Mark, meta), nil
	}

	res := p.runAttempts(ctx, req)
	meta.Attempts = res.calls
	meta.RepairAttempts = res.repairs
	meta.PromptTemplate = res.template

	if res.state != stateValid {
		return item.NotFound(id, spec.JobID, spec.Topic, spec.Mark, meta), nil
	}

	cls := grounding.Classify(grounding.Payload{
		Answer:         res.payload.Answer,
		Status:         res.payload.Status,
		PageReferences: res.payload.PageReferences,
		VerbatimQuotes: res.payload.VerbatimQuotes,
	}, hits, p.cfg.RetrievalThreshold)

	if cls.Status == item.StatusNotFound {
		out := item.NotFound(id, spec.JobID, spec.Topic, spec.Mark, meta)
		if q := res.payload.QuestionText; q != "" {
			out.QuestionText = q
		}
		return out, nil
	}

	format, _ := item.AnswerFormatFor(spec.Mark)
	question := res.payload.QuestionText
	if question == "" {
		question = spec.Topic
	}
	out := item.GeneratedItem{
		ID:              id,
		JobID:           spec.JobID,
		Topic:           spec.Topic,
		QuestionText:    question,
		AnswerText:      res.payload.Answer,
		MarkValue:       spec.Mark,
		AnswerFormat:    format,
		PageReferences:  res.payload.PageReferences,
		VerbatimQuotes:  res.payload.VerbatimQuotes,
		DiagramImages:   res.payload.DiagramImages,
		RetrievalScores: cls.Scores,
		Status:          cls.Status,
		Metadata:        meta,
	}
	return out, nil
}

// GenerateBatch fans out over the job's topics × marks as independent
// pipelines under a concurrency bound, persists every item, and updates the
// job counters. No single item's outcome can fail the batch; the only batch
// error is storage failure or bad arguments.
func (p *Pipeline) GenerateBatch(ctx context.Context, jobID string, marks []int, questionsPerMark int) ([]item.GeneratedItem, error) {
	for _, m := range marks {
		if !item.ValidMark(m) {
			return nil, genclient.Errorf(genclient.KindInvalidArgument, "mark value must be one of {2,5,10}, got %d", m)
		}
	}
	if questionsPerMark < 1 {
		return nil, genclient.Errorf(genclient.KindInvalidArgument, "questions per mark must be >= 1, got %d", questionsPerMark)
	}

	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	var specs []ItemSpec
	for _, mark := range marks {
		topics := job.Topics
		if len(topics) > questionsPerMark {
			topics = topics[:questionsPerMark]
		}
		for _, topic := range topics {
			specs = append(specs, ItemSpec{
				JobID:     jobID,
				Topic:     topic,
				Mark:      mark,
				Documents: job.Documents,
			})
		}
	}

	job.Status = item.JobRunning
	job.TotalExpected = len(specs)
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update job %s: %w", jobID, err)
	}

	items := make([]item.GeneratedItem, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, spec := range specs {
		g.Go(func() error {
			it, err := p.GenerateItem(gctx, spec)
			if err != nil {
				// Arguments were validated above; anything left is a retrieval
				// setup problem. Record a NOT_FOUND item so the batch survives.
				it = item.NotFound(item.NewID(), spec.JobID, spec.Topic, spec.Mark, item.GenerationMetadata{
					PromptTemplate: prompt.TemplateID,
					ModelID:        p.client.ModelID(),
					GeneratedAt:    p.now().UTC(),
				})
			}
			items[i] = it
			return p.store.SaveItem(gctx, it)
		})
	}
	if err := g.Wait(); err != nil {
		job.Status = item.JobError
		_ = p.store.UpdateJob(ctx, job)
		return nil, err
	}

	report := item.Aggregate(items)
	job.Status = item.JobCompleted
	job.GeneratedCount = report.Total
	job.FoundCount = report.Found
	job.NotFoundCount = report.NotFound
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update job %s: %w", jobID, err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Topic == items[j].Topic {
			return items[i].MarkValue < items[j].MarkValue
		}
		return items[i].Topic < items[j].Topic
	})
	return items, nil
}

// RegenerateItem re-runs the pipeline for one existing item, replacing its
// answer, status, and metadata while preserving its id. With a deterministic
// client the result is idempotent.
func (p *Pipeline) RegenerateItem(ctx context.Context, jobID, itemID string) (item.GeneratedItem, error) {
	old, err := p.store.GetItem(ctx, jobID, itemID)
	if err != nil {
		return item.GeneratedItem{}, fmt.Errorf("failed to load item %s: %w", itemID, err)
	}
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return item.GeneratedItem{}, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	fresh, err := p.GenerateItem(ctx, ItemSpec{
		JobID:     jobID,
		ItemID:    old.ID,
		Topic:     old.Topic,
		Mark:      old.MarkValue,
		Documents: job.Documents,
	})
	if err != nil {
		return item.GeneratedItem{}, err
	}
	if err := p.store.SaveItem(ctx, fresh); err != nil {
		return item.GeneratedItem{}, fmt.Errorf("failed to save item %s: %w", itemID, err)
	}
	return fresh, nil
}

// Report aggregates a job's persisted items into a coverage report.
func (p *Pipeline) Report(ctx context.Context, jobID string) (item.CoverageReport, error) {
	items, err := p.store.LoadItems(ctx, jobID)
	if err != nil {
		return item.CoverageReport{}, fmt.Errorf("failed to load items for job %s: %w", jobID, err)
	}
	return item.Aggregate(items), nil
}

// Budget exposes the call budget for observability.
func (p *Pipeline) Budget() *genclient.CallBudget {
	return p.budget
}
