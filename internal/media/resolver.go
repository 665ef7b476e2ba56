package media

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"whatsapp-broadcast/internal/gateway"
	"whatsapp-broadcast/internal/metrics"
)

// SessionCreationError means the gateway refused to open an upload session
// (unauthenticated account, rejected type or size). Nothing was uploaded.
type SessionCreationError struct {
	FileName string
	Err      error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("upload session for %q could not be created: %v", e.FileName, e.Err)
}

func (e *SessionCreationError) Unwrap() error { return e.Err }

// BinaryUploadError means the session was created but the binary phase
// failed, leaving a dangling session and no usable handle. The session id is
// kept so the caller can retry from the binary phase; the session is never
// cleaned up automatically and may expire on its own.
type BinaryUploadError struct {
	SessionID string
	Err       error
}

func (e *BinaryUploadError) Error() string {
	return fmt.Sprintf("binary upload for session %s failed: %v", e.SessionID, e.Err)
}

func (e *BinaryUploadError) Unwrap() error { return e.Err }

// Uploader is the slice of the gateway client the resolver needs.
type Uploader interface {
	CreateUploadSession(ctx context.Context, creds gateway.Credentials, fileName, fileType string) (string, error)
	UploadBinary(ctx context.Context, creds gateway.Credentials, sessionID string, data []byte) (string, error)
}

// Resolver runs the two-phase upload protocol: create a session, then push
// the binary. The phases are strictly sequential and not atomic; neither is
// retried automatically.
type Resolver struct {
	gw  Uploader
	log zerolog.Logger
}

func NewResolver(gw Uploader, log zerolog.Logger) *Resolver {
	return &Resolver{gw: gw, log: log.With().Str("component", "media").Logger()}
}

// Resolve uploads the file and returns the opaque media handle a media
// header segment can reference.
func (r *Resolver) Resolve(ctx context.Context, creds gateway.Credentials, fileName, mimeType string, data []byte) (string, error) {
	sessionID, err := r.gw.CreateUploadSession(ctx, creds, fileName, mimeType)
	if err != nil {
		metrics.MediaUploads.WithLabelValues("session", "error").Inc()
		return "", &SessionCreationError{FileName: fileName, Err: err}
	}
	metrics.MediaUploads.WithLabelValues("session", "ok").Inc()

	r.log.Debug().
		Str("session_id", sessionID).
		Str("file_name", fileName).
		Msg("upload session created")

	return r.ResumeBinary(ctx, creds, sessionID, data)
}

// ResumeBinary runs only the binary phase against an existing session, the
// recovery path after a BinaryUploadError.
func (r *Resolver) ResumeBinary(ctx context.Context, creds gateway.Credentials, sessionID string, data []byte) (string, error) {
	handle, err := r.gw.UploadBinary(ctx, creds, sessionID, data)
	if err != nil {
		metrics.MediaUploads.WithLabelValues("binary", "error").Inc()
		return "", &BinaryUploadError{SessionID: sessionID, Err: err}
	}
	metrics.MediaUploads.WithLabelValues("binary", "ok").Inc()

	r.log.Info().Str("handle", handle).Msg("media uploaded")
	return handle, nil
}
