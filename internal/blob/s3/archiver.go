package s3blob

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// multipartThreshold switches ledger uploads to multipart above this size.
const multipartThreshold int64 = 8 * 1024 * 1024

// LedgerArchiver uploads finished session ledgers to object storage, keyed by
// day so sessions group naturally in the bucket:
//
//	ledgers/2026-08-29/session_3f2a.jsonl
type LedgerArchiver struct {
	writer *Writer
	logger *slog.Logger
}

// NewLedgerArchiver creates an archiver uploading through the given writer.
func NewLedgerArchiver(writer *Writer, logger *slog.Logger) *LedgerArchiver {
	return &LedgerArchiver{
		writer: writer,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// Archive uploads the ledger file at path and returns the object key. The
// local file is left in place; cleanup is the operator's call.
func (a *LedgerArchiver) Archive(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("s3blob: open ledger %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("s3blob: stat ledger %s: %w", path, err)
	}

	key := fmt.Sprintf("ledgers/%s/%s", time.Now().UTC().Format("2006-01-02"), filepath.Base(path))

	if info.Size() > multipartThreshold {
		err = a.writer.PutMultipart(ctx, key, f, multipartThreshold)
	} else {
		err = a.writer.Put(ctx, key, f, "application/x-ndjson")
	}
	if err != nil {
		return "", err
	}

	a.logger.Info("session ledger archived",
		slog.String("key", key),
		slog.Int64("bytes", info.Size()),
	)
	return key, nil
}
