package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"promptfabric/internal/app"
	"promptfabric/internal/config"
	"promptfabric/internal/service"
)

// ingest parte archivos .txt/.md en fragmentos y los agrega al indice de contexto.
// Uso: ingest [-size 500] [-overlap 50] <archivo|directorio>...
func main() {
	size := flag.Int("size", service.DefaultChunkSize, "chunk size in characters")
	overlap := flag.Int("overlap", service.DefaultChunkOverlap, "overlap between chunks")
	noEmbed := flag.Bool("no-embed", false, "let the index embed the chunks itself")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: ingest [-size N] [-overlap N] <file|dir>...")
		os.Exit(2)
	}

	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	chunker := service.NewChunker(*size, *overlap)
	files, err := collectFiles(flag.Args())
	if err != nil {
		log.Fatalf("listar archivos: %v", err)
	}

	total := 0
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("read file failed", zap.String("path", path), zap.Error(err))
			continue
		}
		chunks := chunker.ChunkDocument(string(raw), filepath.Base(path))
		for i := range chunks {
			chunks[i].ID = chunkID(path, i)
		}
		res := a.Retriever.AddChunks(ctx, chunks, !*noEmbed)
		if res.Err != nil {
			logger.Error("add chunks failed", zap.String("path", path), zap.Error(res.Err))
			continue
		}
		logger.Info("file ingested", zap.String("path", path), zap.Int("chunks", res.Added))
		total += res.Added
	}

	stats, err := a.Retriever.Stats(ctx)
	if err != nil {
		logger.Warn("index stats failed", zap.Error(err))
	}
	fmt.Printf("Fragmentos agregados: %d (total en %s: %d)\n", total, stats.Backend, stats.TotalChunks)
}

func collectFiles(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".txt", ".md":
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Ids estables para que reingestar un archivo reemplace sus fragmentos.
func chunkID(path string, index int) string {
	return fmt.Sprintf("%s#%d", filepath.ToSlash(filepath.Clean(path)), index)
}

