package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ainews/backend/internal/classifier"
	"github.com/ainews/backend/internal/dedup"
	"github.com/ainews/backend/internal/ingestion"
	"github.com/ainews/backend/internal/lexicon"
	"github.com/ainews/backend/internal/ranking"
	"github.com/ainews/backend/internal/search"
	"github.com/ainews/backend/internal/storage/models"
	"github.com/ainews/backend/internal/storage/sqlite"
	"github.com/ainews/backend/pkg/config"
)

// env holds the components a command runs against.
type env struct {
	cfg        *config.Config
	db         *sqlite.Client
	lex        *lexicon.Lexicon
	classifier *classifier.Classifier
	engine     *search.Engine
	service    *ingestion.Service
	stdin      io.Reader
	stdout     io.Writer
}

type command struct {
	usage   string
	// offline commands never open the index.
	offline bool
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"ingest":   {usage: "ingest [-file docs.json]        classify, dedupe, rank and store a JSON array of documents", run: cmdIngest},
	"classify": {usage: "classify -title T [-body B]     score a document without storing it", offline: true, run: cmdClassify},
	"search":   {usage: "search [-text T] [flags]        filtered, ranked search", run: cmdSearch},
	"top":      {usage: "top [-hours 24] [-limit 10]     most relevant recent records", run: cmdTop},
	"trending": {usage: "trending [-days 7] [-limit 20]  topic counts over a window", run: cmdTrending},
	"similar":  {usage: "similar -title T [-limit 5]     records sharing title words", run: cmdSimilar},
	"topic":    {usage: "topic -name N [-limit 20]       latest records for a topic", run: cmdTopic},
	"suggest":  {usage: "suggest -q PARTIAL              topic and keyword completions", offline: true, run: cmdSuggest},
	"sources":  {usage: "sources [-days 0]               per-source statistics", run: cmdSources},
	"stats":    {usage: "stats                           index totals", run: cmdStats},
	"failures": {usage: "failures [-limit 20]            recorded persistence failures", run: cmdFailures},
	"cleanup":  {usage: "cleanup [-days N]               drop records older than N days", run: cmdCleanup},
	"lexicon":  {usage: "lexicon                         print the active lexicon as YAML", offline: true, run: cmdLexicon},
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Usage: newsctl [-db path] [-lexicon path] <command> [flags]")
	fmt.Fprintln(w, "\nCommands:")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, stdin io.Reader, stdout io.Writer) error {
	global := flag.NewFlagSet("newsctl", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	dbPath := global.String("db", cfg.SQLite.Path, "SQLite database path")
	lexPath := global.String("lexicon", cfg.Classifier.LexiconPath, "YAML lexicon file (built-in tables when empty)")
	if err := global.Parse(args); err != nil {
		usage(stdout)
		return err
	}
	if global.NArg() == 0 {
		usage(stdout)
		return errors.New("missing command")
	}

	name := global.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		usage(stdout)
		return fmt.Errorf("unknown command %q", name)
	}

	lex, err := lexicon.LoadFile(*lexPath)
	if err != nil {
		return err
	}
	e := &env{
		cfg:        cfg,
		lex:        lex,
		classifier: classifier.New(lex, classifier.WithWorkers(cfg.Classifier.Workers)),
		stdin:      stdin,
		stdout:     stdout,
	}

	ranker := ranking.New(
		ranking.WithTrustedSources(cfg.Ranking.TrustedSources),
		ranking.WithTrustBonus(cfg.Ranking.TrustBonus),
	)
	searchCfg := search.Config{
		DefaultLimit:  cfg.Search.DefaultLimit,
		MaxLimit:      cfg.Search.MaxLimit,
		SimilarTerms:  cfg.Search.SimilarTerms,
		TrendingLimit: cfg.Search.TrendingLimit,
	}

	if cmd.offline {
		e.engine = search.NewEngine(nil, lex, ranker, searchCfg)
		return cmd.run(ctx, e, global.Args()[1:])
	}

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sqlite.NewClient(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.InitSchema(ctx); err != nil {
		return err
	}

	e.db = db
	e.engine = search.NewEngine(db, lex, ranker, searchCfg)
	e.service = ingestion.NewService(e.classifier, dedup.New(cfg.Dedup.Threshold), ranker, db, ingestion.Config{
		MaxPerCycle:   cfg.Ingestion.MaxPerCycle,
		SkipKnown:     cfg.Ingestion.SkipKnown,
		InDomainOnly:  cfg.Classifier.InDomainOnly,
		RetryAttempts: cfg.Ingestion.RetryAttempts,
	})
	return cmd.run(ctx, e, global.Args()[1:])
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (e *env) print(v any) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func cmdIngest(ctx context.Context, e *env, args []string) error {
	fs := newFlags("ingest")
	file := fs.String("file", "-", "JSON array of documents, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	in := e.stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return fmt.Errorf("failed to open documents: %w", err)
		}
		defer f.Close()
		in = f
	}

	var docs []models.Document
	if err := json.NewDecoder(in).Decode(&docs); err != nil {
		return fmt.Errorf("failed to decode documents: %w", err)
	}

	_, report, err := e.service.ProcessAndStore(ctx, docs)
	if err != nil {
		return err
	}
	return e.print(report)
}

func cmdClassify(_ context.Context, e *env, args []string) error {
	fs := newFlags("classify")
	title := fs.String("title", "", "document title")
	body := fs.String("body", "", "document body")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*title) == "" && strings.TrimSpace(*body) == "" {
		return errors.New("classify: -title or -body is required")
	}
	t, b := ingestion.NormalizeDocument(*title, *body)
	return e.print(e.classifier.Classify(t, b))
}

func cmdSearch(ctx context.Context, e *env, args []string) error {
	fs := newFlags("search")
	var q models.Query
	fs.StringVar(&q.Text, "text", "", "full-text terms")
	fs.BoolVar(&q.MatchAny, "any", false, "match any term instead of all")
	sources := fs.String("sources", "", "comma-separated source names")
	topics := fs.String("topics", "", "comma-separated topic names")
	exclude := fs.String("exclude", "", "comma-separated keywords to exclude")
	minRel := fs.Float64("min", -1, "minimum relevance score")
	days := fs.Int("days", 0, "only records processed within the last days")
	sortBy := fs.String("sort", "", "relevance, date, source or quality")
	fs.IntVar(&q.Limit, "limit", 0, "page size")
	fs.IntVar(&q.Offset, "offset", 0, "page offset")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q.Sources = splitList(*sources)
	q.Topics = splitList(*topics)
	q.ExcludeKeywords = splitList(*exclude)
	q.SortBy = models.SortBy(*sortBy)
	if *minRel >= 0 {
		q.MinRelevance = minRel
	}
	if *days > 0 {
		since := time.Now().AddDate(0, 0, -*days)
		q.Start = &since
	}

	res, err := e.engine.Search(ctx, q)
	if err != nil {
		return err
	}
	return e.print(res)
}

func cmdTop(ctx context.Context, e *env, args []string) error {
	fs := newFlags("top")
	hours := fs.Int("hours", 24, "window in hours")
	limit := fs.Int("limit", 10, "max records")
	if err := fs.Parse(args); err != nil {
		return err
	}
	records, err := e.engine.Top(ctx, *hours, *limit)
	if err != nil {
		return err
	}
	return e.print(records)
}

func cmdTrending(ctx context.Context, e *env, args []string) error {
	fs := newFlags("trending")
	days := fs.Int("days", 7, "window in days")
	limit := fs.Int("limit", 0, "max topics")
	if err := fs.Parse(args); err != nil {
		return err
	}
	topics, err := e.engine.Trending(ctx, *days, *limit)
	if err != nil {
		return err
	}
	return e.print(topics)
}

func cmdSimilar(ctx context.Context, e *env, args []string) error {
	fs := newFlags("similar")
	title := fs.String("title", "", "reference title")
	limit := fs.Int("limit", 5, "max records")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*title) == "" {
		return errors.New("similar: -title is required")
	}
	records, err := e.engine.Similar(ctx, *title, *limit)
	if err != nil {
		return err
	}
	return e.print(records)
}

func cmdTopic(ctx context.Context, e *env, args []string) error {
	fs := newFlags("topic")
	name := fs.String("name", "", "topic name")
	limit := fs.Int("limit", 20, "max records")
	if err := fs.Parse(args); err != nil {
		return err
	}
	records, err := e.engine.ByTopic(ctx, *name, *limit)
	if err != nil {
		return err
	}
	return e.print(records)
}

func cmdSuggest(_ context.Context, e *env, args []string) error {
	fs := newFlags("suggest")
	partial := fs.String("q", "", "partial query")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return e.print(e.engine.Suggestions(*partial))
}

func cmdSources(ctx context.Context, e *env, args []string) error {
	fs := newFlags("sources")
	days := fs.Int("days", 0, "window in days, 0 for all time")
	if err := fs.Parse(args); err != nil {
		return err
	}
	stats, err := e.engine.SourceStatistics(ctx, *days)
	if err != nil {
		return err
	}
	return e.print(stats)
}

func cmdStats(ctx context.Context, e *env, args []string) error {
	if err := newFlags("stats").Parse(args); err != nil {
		return err
	}
	stats, err := e.engine.Stats(ctx)
	if err != nil {
		return err
	}
	return e.print(stats)
}

func cmdFailures(ctx context.Context, e *env, args []string) error {
	fs := newFlags("failures")
	limit := fs.Int("limit", 20, "max failures")
	if err := fs.Parse(args); err != nil {
		return err
	}
	failures, err := e.db.Failures(ctx, *limit)
	if err != nil {
		return err
	}
	return e.print(failures)
}

func cmdCleanup(ctx context.Context, e *env, args []string) error {
	fs := newFlags("cleanup")
	days := fs.Int("days", e.cfg.Search.RetentionDays, "retention in days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *days <= 0 {
		return fmt.Errorf("cleanup: -days must be positive, got %d", *days)
	}
	res, err := e.db.Cleanup(ctx, time.Now().AddDate(0, 0, -*days))
	if err != nil {
		return err
	}
	return e.print(res)
}

func cmdLexicon(_ context.Context, e *env, args []string) error {
	if err := newFlags("lexicon").Parse(args); err != nil {
		return err
	}
	return e.lex.Dump(e.stdout)
}
