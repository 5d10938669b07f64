package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/GaneshTappiti/notes-to-material/internal/config"
	"github.com/GaneshTappiti/notes-to-material/internal/corpus"
	"github.com/GaneshTappiti/notes-to-material/internal/genclient"
	"github.com/GaneshTappiti/notes-to-material/internal/item"
	"github.com/GaneshTappiti/notes-to-material/internal/pipeline"
	"github.com/GaneshTappiti/notes-to-material/internal/retrieval"
	"github.com/GaneshTappiti/notes-to-material/internal/storage"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "notegen",
		Short: "Grounded exam Q&A generator over paginated lecture notes",
	}
	dbPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "notegen.db", "Path to the local SQLite database")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(regenerateCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(retrieveCmd)
}

// initStore opens the SQLite store, honoring the config's db path when the
// flag is left at its default.
func initStore(cfg *config.Config) (*storage.SQLiteStore, error) {
	path := dbPath
	if path == "notegen.db" && cfg != nil && cfg.Storage.DBPath != "" {
		path = cfg.Storage.DBPath
	}
	return storage.NewSQLiteStore(path)
}

func initEmbedder(ctx context.Context, cfg *config.Config) (retrieval.Embedder, error) {
	return retrieval.NewEmbedder(ctx, retrieval.EmbedderOptions{
		Provider:  cfg.AI.Provider,
		APIKey:    cfg.AI.APIKey,
		Model:     cfg.AI.EmbedModel,
		Dimension: cfg.AI.Dimension,
		BaseURL:   cfg.AI.BaseURL,
	})
}

// initPipeline wires the full generation stack: embedder, vector index,
// generation client, call budget, and the SQLite store.
func initPipeline(ctx context.Context, cfg *config.Config, store *storage.SQLiteStore) (*pipeline.Pipeline, error) {
	embedder, err := initEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	client, err := genclient.NewCompleter(ctx, genclient.Options{
		Provider: cfg.AI.Provider,
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
		BaseURL:  cfg.AI.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}

	retriever := retrieval.NewRetriever(embedder, store)
	budget := genclient.NewCallBudget(cfg.Generation.DailyCallLimit)

	return pipeline.New(retriever, client, budget, store, pipeline.Config{
		TopK:               cfg.Generation.TopK,
		MaxAttempts:        cfg.Generation.MaxAttempts,
		MaxRepairAttempts:  cfg.Generation.MaxRepairAttempts,
		RetrievalThreshold: cfg.Generation.RetrievalThreshold,
		StrictSourcing:     cfg.Generation.StrictSourcing,
		Concurrency:        cfg.Generation.Concurrency,
	}), nil
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [pages.json]",
	Short: "Load extracted note pages into the corpus and index their embeddings",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg, err := config.LoadConfig("config.yaml")
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatalf("Failed to read pages file: %v", err)
		}
		var pages []corpus.SourcePage
		if err := json.Unmarshal(data, &pages); err != nil {
			log.Fatalf("Failed to parse pages file: %v", err)
		}
		if len(pages) == 0 {
			log.Fatalf("No pages found in %s", args[0])
		}

		store, err := initStore(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		fmt.Printf("📄 Ingesting %d pages...\n", len(pages))
		if err := store.SavePages(ctx, pages); err != nil {
			log.Fatalf("Failed to save pages: %v", err)
		}

		embedder, err := initEmbedder(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to create embedder: %v", err)
		}

		fmt.Println("🚀 Indexing embeddings...")
		start := time.Now()
		texts := make([]string, len(pages))
		for i, p := range pages {
			texts[i] = p.Text
		}
		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			log.Fatalf("Embedding failed: %v", err)
		}

		items := make([]retrieval.VectorItem, len(pages))
		for i := range pages {
			items[i] = retrieval.VectorItem{Page: pages[i], Embedding: vectors[i]}
		}
		if err := store.Add(ctx, items); err != nil {
			log.Fatalf("Failed to index embeddings: %v", err)
		}

		fmt.Printf("🎉 Ingest complete in %v. Database: %s\n", time.Since(start), dbPath)
	},
}

var (
	generateName     string
	generateTopics   []string
	generateDocs     []string
	generateMarks    []int
	questionsPerMark int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a batch of grounded question/answer items",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg, err := config.LoadConfig("config.yaml")
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if len(generateTopics) == 0 {
			log.Fatalf("At least one --topic is required")
		}

		store, err := initStore(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		p, err := initPipeline(ctx, cfg, store)
		if err != nil {
			log.Fatalf("Failed to build pipeline: %v", err)
		}

		job := item.Job{
			ID:        item.NewID(),
			Name:      generateName,
			Topics:    generateTopics,
			Documents: generateDocs,
			Status:    item.JobCreated,
		}
		if job.Name == "" {
			job.Name = "job-" + job.ID
		}
		if err := store.CreateJob(ctx, job); err != nil {
			log.Fatalf("Failed to create job: %v", err)
		}

		fmt.Printf("🚀 Generating for job %s (%d topics, marks %v)...\n", job.ID, len(job.Topics), generateMarks)
		start := time.Now()
		items, err := p.GenerateBatch(ctx, job.ID, generateMarks, questionsPerMark)
		if err != nil {
			log.Fatalf("Generation failed: %v", err)
		}

		for _, it := range items {
			fmt.Printf("  [%s] %dm %-40s %s\n", it.Status, it.MarkValue, truncate(it.Topic, 40), it.ID)
		}
		report := item.Aggregate(items)
		fmt.Printf("✅ Done in %v: %d items (%d found, %d not found, %d need review). Model calls: %d\n",
			time.Since(start), report.Total, report.Found, report.NotFound, report.NeedsReview, p.Budget().Used())
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate [job-id] [item-id]",
	Short: "Re-run the pipeline for one item, keeping its id",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg, err := config.LoadConfig("config.yaml")
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		store, err := initStore(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		p, err := initPipeline(ctx, cfg, store)
		if err != nil {
			log.Fatalf("Failed to build pipeline: %v", err)
		}

		it, err := p.RegenerateItem(ctx, args[0], args[1])
		if err != nil {
			log.Fatalf("Regeneration failed: %v", err)
		}
		printItem(it)
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve [job-id] [item-id]",
	Short: "Mark a reviewed item as approved",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg, _ := config.LoadConfig("config.yaml")

		store, err := initStore(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		it, err := store.ApproveItem(ctx, args[0], args[1])
		if err != nil {
			log.Fatalf("Approval failed: %v", err)
		}
		fmt.Printf("✅ Item %s approved.\n", it.ID)
	},
}

var reportCmd = &cobra.Command{
	Use:   "report [job-id]",
	Short: "Show the coverage report for a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg, _ := config.LoadConfig("config.yaml")

		store, err := initStore(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		items, err := store.LoadItems(ctx, args[0])
		if err != nil {
			log.Fatalf("Failed to load items: %v", err)
		}
		report := item.Aggregate(items)

		fmt.Printf("📊 Job %s\n", args[0])
		fmt.Printf("  Total:        %d\n", report.Total)
		fmt.Printf("  Found:        %d\n", report.Found)
		fmt.Printf("  Not found:    %d\n", report.NotFound)
		fmt.Printf("  Needs review: %d\n", report.NeedsReview)
		fmt.Printf("  Approved:     %d\n", report.Approved)
	},
}

var retrieveTopK int

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Debug retrieval: show the top pages for a query",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg, err := config.LoadConfig("config.yaml")
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		store, err := initStore(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		embedder, err := initEmbedder(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to create embedder: %v", err)
		}

		retriever := retrieval.NewRetriever(embedder, store)
		hits, err := retriever.Retrieve(ctx, strings.Join(args, " "), retrieveTopK)
		if err != nil {
			log.Fatalf("Retrieval failed: %v", err)
		}

		for _, h := range hits {
			fmt.Printf("  %.3f  %-30s %s\n", h.Score, h.Page.Ref(), truncate(h.Page.Text, 80))
		}
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateName, "name", "", "Job name")
	generateCmd.Flags().StringSliceVar(&generateTopics, "topic", nil, "Topic to generate questions for (repeatable)")
	generateCmd.Flags().StringSliceVar(&generateDocs, "doc", nil, "Restrict retrieval to these documents (repeatable)")
	generateCmd.Flags().IntSliceVar(&generateMarks, "marks", []int{2, 5, 10}, "Mark values to generate")
	generateCmd.Flags().IntVar(&questionsPerMark, "per-mark", 1, "Questions per mark per topic")

	retrieveCmd.Flags().IntVar(&retrieveTopK, "top", 6, "Number of pages to show")
}

func printItem(it item.GeneratedItem) {
	fmt.Printf("📝 [%s] %s (%d marks, %s)\n", it.Status, it.ID, it.MarkValue, it.AnswerFormat)
	fmt.Printf("Q: %s\n", it.QuestionText)
	if it.AnswerText != "" {
		fmt.Printf("A: %s\n", it.AnswerText)
	}
	if len(it.PageReferences) > 0 {
		fmt.Printf("Sources: %s\n", strings.Join(it.PageReferences, ", "))
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	// Rune-wise so multibyte page text is never split mid-character.
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
