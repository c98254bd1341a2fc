// Package remote talks to the document control center host.
package remote

import (
	"context"
	"io"

	"github.com/starford/othala/internal/docnum"
	"github.com/starford/othala/internal/models"
)

// Gateway is the capability the rest of Othala depends on for remote access.
// Implementations map their failures onto the apperr sentinels: ErrNotFound
// when the host confirms a record does not exist, ErrAuthRequired when
// access is refused, ErrRemoteUnavailable for transport-level failures.
type Gateway interface {
	// FetchRecord retrieves the record for the given number. When the
	// number carries no version, the host resolves the latest revision.
	FetchRecord(ctx context.Context, number docnum.Number) (*models.Record, error)

	// OpenFile opens a byte stream for an attached file. The returned
	// length is the host-declared content length, or -1 when the host did
	// not report one. The caller owns closing the stream.
	OpenFile(ctx context.Context, file models.FileRef) (io.ReadCloser, int64, error)

	// UpdateMetadata submits the record's editable metadata fields to the
	// host, replacing those of the latest revision of the document.
	UpdateMetadata(ctx context.Context, record *models.Record) error
}
