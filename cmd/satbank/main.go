package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"satbank/internal/config"
	"satbank/internal/domain"
	"satbank/internal/logger"
	"satbank/internal/service"
	"satbank/internal/worker"

	"go.uber.org/zap"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: satbank <command> [flags]

Commands:
  list      list questions (filterable, paginated)
  get       print one question by uid
  search    substring search across all question fields
  count     count questions matching a filter
  tags      print all distinct tags
  export    print external-shaped payloads for the given uids
  add       add a question from a JSON file (or stdin with -)
  delete    permanently delete a question by uid
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(cfg.Logger); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	l := logger.Get()

	command := os.Args[1]
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	backend := fs.String("backend", cfg.Store.Backend, "store backend: json or sqlite")
	storePath := fs.String("store", cfg.Store.Path, "store location (JSON file or SQLite database)")
	tagsFlag := fs.String("tags", "", "comma-separated tag filter (matches any)")
	difficulty := fs.String("difficulty", "", "exact difficulty filter")
	limit := fs.Int("limit", 0, "maximum number of results")
	offset := fs.Int("offset", 0, "number of results to skip")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	store, err := service.Open(domain.Backend(*backend), *storePath)
	if err != nil {
		l.Fatal("Failed to open store", zap.String("path", *storePath), zap.Error(err))
	}
	defer store.Close()

	cfg.AddRecentStore(*storePath)
	if err := cfg.Save(); err != nil {
		l.Warn("Failed to persist recent stores", zap.Error(err))
	}

	filter := domain.Filter{
		Difficulty: *difficulty,
		Limit:      *limit,
		Offset:     *offset,
	}
	if *tagsFlag != "" {
		filter.Tags = strings.Split(*tagsFlag, ",")
	}

	// Store calls may block on disk; run them as units of work on the pool
	// and collect the outcome from the completion channel, the same shape a
	// UI caller uses.
	pool := worker.NewPool(2)
	defer pool.Wait()
	run := func(task worker.Task) worker.Result {
		return pool.Submit(context.Background(), task).Wait()
	}

	switch command {
	case "list":
		res := run(func(ctx context.Context, report func(int)) (any, error) {
			return store.Load(filter)
		})
		exitOnErr(l, res.Err)
		printQuestions(res.Value.([]*domain.Question))

	case "get":
		if fs.NArg() != 1 {
			l.Fatal("get requires exactly one uid argument")
		}
		q, err := store.GetByUID(fs.Arg(0))
		exitOnErr(l, err)
		if q == nil {
			fmt.Println("not found")
			os.Exit(1)
		}
		printQuestions([]*domain.Question{q})

	case "search":
		if fs.NArg() != 1 {
			l.Fatal("search requires exactly one text argument")
		}
		text := fs.Arg(0)
		res := run(func(ctx context.Context, report func(int)) (any, error) {
			return store.Search(text, filter)
		})
		exitOnErr(l, res.Err)
		printQuestions(res.Value.([]*domain.Question))

	case "count":
		n, err := store.Count(filter)
		exitOnErr(l, err)
		fmt.Println(n)

	case "tags":
		tags, err := store.Tags()
		exitOnErr(l, err)
		for _, tag := range tags {
			fmt.Println(tag)
		}

	case "export":
		uids := fs.Args()
		if len(uids) == 0 {
			l.Fatal("export requires at least one uid argument")
		}
		res := run(func(ctx context.Context, report func(int)) (any, error) {
			return store.Export(uids)
		})
		exitOnErr(l, res.Err)
		payload, err := json.MarshalIndent(res.Value, "", "  ")
		exitOnErr(l, err)
		fmt.Println(string(payload))

	case "add":
		if fs.NArg() != 1 {
			l.Fatal("add requires a JSON file argument, or - for stdin")
		}
		q, err := readQuestion(fs.Arg(0))
		exitOnErr(l, err)
		exitOnErr(l, store.Save(q, true))
		fmt.Println(q.UID)

	case "delete":
		if fs.NArg() != 1 {
			l.Fatal("delete requires exactly one uid argument")
		}
		exitOnErr(l, store.Delete(fs.Arg(0)))

	default:
		usage()
	}
}

func readQuestion(path string) (*domain.Question, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return domain.FromExternal(data)
}

func printQuestions(questions []*domain.Question) {
	for _, q := range questions {
		fmt.Printf("%s  [%s]  %s\n", q.UID, q.Difficulty, q.Content.Text)
		for _, key := range q.OptionKeys() {
			marker := " "
			if key == q.Answer {
				marker = "*"
			}
			fmt.Printf("  %s %s) %s\n", marker, key, q.Options[key].Text)
		}
		if len(q.Tags) > 0 {
			fmt.Printf("    tags: %s\n", strings.Join(q.Tags, ", "))
		}
	}
}

func exitOnErr(l *zap.Logger, err error) {
	if err != nil {
		l.Fatal("Command failed", zap.Error(err))
	}
}
