package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/kube-rca/rca-worker/internal/config"
	"github.com/kube-rca/rca-worker/internal/model"
	"github.com/kube-rca/rca-worker/internal/service"
	"github.com/spf13/cobra"
)

var ingestOpts struct {
	file         string
	sourceType   string
	sourceID     string
	chunkSize    int
	chunkOverlap int
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Chunk a document and store it in the knowledge index",
	Example: `  rca-worker ingest --file runbooks/nginx.md --source-id runbook-nginx
  cat postmortem.txt | rca-worker ingest --source-type postmortem`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readIngestInput(ingestOpts.file, cmd.InOrStdin())
		if err != nil {
			return err
		}
		resp, err := runIngest(cmd.Context(), config.Load(), model.IngestRequest{
			Text:         text,
			SourceType:   ingestOpts.sourceType,
			SourceID:     ingestOpts.sourceID,
			ChunkSize:    ingestOpts.chunkSize,
			ChunkOverlap: ingestOpts.chunkOverlap,
		})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	flags := ingestCmd.Flags()
	flags.StringVarP(&ingestOpts.file, "file", "f", "", "document to ingest (default: stdin)")
	flags.StringVar(&ingestOpts.sourceType, "source-type", "document", "source_type stored with each chunk")
	flags.StringVar(&ingestOpts.sourceID, "source-id", "", "source_id stored with each chunk")
	flags.IntVar(&ingestOpts.chunkSize, "chunk-size", 0, "chunk size in characters (default: RAG config)")
	flags.IntVar(&ingestOpts.chunkOverlap, "chunk-overlap", 0, "overlap between chunks (default: RAG config)")
}

func readIngestInput(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return string(data), nil
}

func runIngest(ctx context.Context, cfg config.Config, req model.IngestRequest) (*model.IngestResponse, error) {
	pg := openKnowledgeStore(ctx, cfg)
	if pg == nil {
		return nil, fmt.Errorf("knowledge index unavailable")
	}
	defer pg.Pool.Close()

	embedder, err := newEmbeddingProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if req.SourceID == "" && ingestOpts.file != "" {
		req.SourceID = ingestOpts.file
	}

	log.Printf("[Ingest] ingesting document (source_type=%s, source_id=%s, chars=%d)", req.SourceType, req.SourceID, len([]rune(req.Text)))
	return service.NewKnowledgeService(pg, embedder, cfg.RAG).Ingest(ctx, req)
}
