package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"medical-rag-platform/internal/app"
	"medical-rag-platform/internal/config"
	"medical-rag-platform/internal/logger"
)

func usage() {
	fmt.Println("Usage: go run ./cmd/migrate <command> [args]")
	fmt.Println("Commands:")
	fmt.Println("  ensure-index            - Create the vector index if it does not exist")
	fmt.Println("  reindex [folder]        - Index new or changed chunks (default PDF_DIR)")
	fmt.Println("  list-sources            - Show indexed sources from the manifest")
	fmt.Println("  delete-source <source>  - Remove a source from the index and manifest")
	fmt.Println("  prune-manifest          - Delete sources whose files no longer exist")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	command := os.Args[1]

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(cfg)

	ctx := context.Background()
	indexing, err := app.NewIndexing(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("Failed to init indexing: %v", err)
	}
	defer indexing.Close()
	svc := indexing.Service

	switch command {
	case "ensure-index":
		if err := indexing.Index.EnsureIndex(ctx, cfg.VectorDimensions, cfg.VectorMetric); err != nil {
			log.Fatalf("Ensure index failed: %v", err)
		}
		fmt.Printf("Index %q ready (%d dims, %s)\n", cfg.IndexName, cfg.VectorDimensions, cfg.VectorMetric)

	case "reindex":
		folder := cfg.PDFDir
		if len(os.Args) > 2 {
			folder = os.Args[2]
		}
		n, err := svc.Index(ctx, folder)
		if err != nil {
			log.Fatalf("Reindex failed after %d chunks: %v", n, err)
		}
		fmt.Printf("Indexed %d new chunks from %s\n", n, folder)

	case "list-sources":
		sources, err := svc.ListSources(ctx)
		if err != nil {
			log.Fatalf("List sources failed: %v", err)
		}
		printJSON(sources)

	case "delete-source":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		res, err := svc.DeleteSource(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
		printJSON(res)

	case "prune-manifest":
		results, err := svc.PruneMissing(ctx)
		printJSON(results)
		if err != nil {
			log.Fatalf("Prune failed: %v", err)
		}

	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Encode output failed: %v", err)
	}
	fmt.Println(string(out))
}
