package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dnorman/domcorder/pkg/assetcache"
	"github.com/dnorman/domcorder/pkg/metrics"
	"github.com/dnorman/domcorder/pkg/protocol"
	"github.com/dnorman/domcorder/pkg/recording"
)

var tracer = otel.Tracer("github.com/dnorman/domcorder/pkg/ingest")

// ErrRecordingTooLarge is a terminal quarantine error reported when a
// caller-supplied MaxBytes limit is exceeded mid-stream.
var ErrRecordingTooLarge = errors.New("ingest: recording exceeds size limit")

// Source is the minimal contract a transport must offer the
// pipeline: a stream of already-demultiplexed binary messages (one
// per WebSocket frame or pipe chunk) and a reason the stream ended.
type Source interface {
	// NextMessage blocks until the next message is available, the
	// source is closed cleanly, or ctx is cancelled.
	NextMessage(ctx context.Context) ([]byte, error)
}

// Sink carries frames from the ingest pipeline back to the recorder —
// in practice, just the CacheManifest this pipeline generates in
// response to RecordingMetadata.
type Sink interface {
	SendManifest(ctx context.Context, manifest protocol.Frame) error
}

// Pipeline drives one recording session through
// WAIT_METADATA→START→ACTIVE→{COMMITTED|QUARANTINED}: the session file
// is created (START) only once RecordingMetadata has arrived.
type Pipeline struct {
	Store    *recording.SessionStore
	Active   *recording.ActiveRecordings
	Cache    *assetcache.Cache
	Fetcher  *assetcache.Fetcher
	MaxBytes int64
	Log      *slog.Logger
	Metrics  *metrics.Metrics
}

// NewPipeline builds a Pipeline. log may be nil (slog.Default is
// used). maxBytes <= 0 means unbounded.
func NewPipeline(store *recording.SessionStore, active *recording.ActiveRecordings, cache *assetcache.Cache, fetcher *assetcache.Fetcher, maxBytes int64, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{Store: store, Active: active, Cache: cache, Fetcher: fetcher, MaxBytes: maxBytes, Log: log, Metrics: metrics.Default()}
}

// Run consumes src until it closes, quarantining on any error after
// the header is written and committing on a clean close. userAgent is
// forwarded to any server-side asset fetch this recording triggers.
func (p *Pipeline) Run(ctx context.Context, src Source, sink Sink, userAgent string) error {
	ctx, span := tracer.Start(ctx, "ingest.Pipeline.Run")
	defer span.End()

	reader := recording.NewFrameReader(false)
	var totalBytes int64

	fc := &filterContext{cache: p.Cache, fetcher: p.Fetcher, userAgent: userAgent, metrics: p.Metrics}

	// WAIT_METADATA: buffer bytes until RecordingMetadata decodes.
	var metadataFrame *protocol.RecordingMetadataFrame
	for metadataFrame == nil {
		msg, err := src.NextMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Closed before metadata ever arrived: per spec,
				// discard — nothing was ever committed to disk.
				return nil
			}
			return fmt.Errorf("ingest: read before metadata: %w", err)
		}
		totalBytes += int64(len(msg))
		reader.Feed(msg)

		f, err := reader.TryReadFrame()
		if errors.Is(err, recording.ErrNeedMoreData) {
			continue
		}
		if err != nil {
			return fmt.Errorf("ingest: decode before metadata: %w", err)
		}
		mf, ok := f.(*protocol.RecordingMetadataFrame)
		if !ok {
			return fmt.Errorf("ingest: expected RecordingMetadata first, got tag %T", f)
		}
		metadataFrame = mf
	}

	span.SetAttributes(attribute.String("initial_url", metadataFrame.InitialURL))
	if p.Metrics != nil {
		p.Metrics.RecordingsStarted.Inc()
	}

	siteInfo, err := p.Cache.Metadata.RegisterRecording(ctx, "", metadataFrame.InitialURL)
	if err != nil {
		return fmt.Errorf("ingest: register recording: %w", err)
	}
	fc.siteOrigin = siteInfo.Origin

	manifestEntries, err := assetcache.GenerateManifest(ctx, p.Cache.Metadata, siteInfo.Origin, 0)
	if err != nil {
		return fmt.Errorf("ingest: generate manifest: %w", err)
	}
	manifestFrame := &protocol.CacheManifestFrame{SiteOrigin: siteInfo.Origin}
	for _, e := range manifestEntries {
		manifestFrame.Assets = append(manifestFrame.Assets, protocol.ManifestEntry{URL: e.URL, ContentHash: e.ContentHash})
	}
	if err := sink.SendManifest(ctx, manifestFrame); err != nil {
		return fmt.Errorf("ingest: send manifest: %w", err)
	}

	// START: create the destination file and write its header.
	filename, err := p.Store.GenerateFilename()
	if err != nil {
		return fmt.Errorf("ingest: generate filename: %w", err)
	}
	file, err := p.Store.Create(filename)
	if err != nil {
		return fmt.Errorf("ingest: create session file: %w", err)
	}
	defer file.Close()

	writer := recording.NewFrameWriter(file)
	if err := writer.WriteHeader(&protocol.FileHeader{Version: protocol.FileVersion, CreatedAt: uint64(time.Now().UnixMilli())}); err != nil {
		return p.quarantine(ctx, filename, fmt.Errorf("ingest: write header: %w", err))
	}

	// ACTIVE: maintain the active-recordings set until commit/quarantine.
	p.Active.Insert(filename)
	if p.Metrics != nil {
		p.Metrics.ActiveRecordings.Inc()
	}
	committed := false
	defer func() {
		if !committed {
			p.Active.Remove(filename)
			if p.Metrics != nil {
				p.Metrics.ActiveRecordings.Dec()
			}
		}
	}()

	for {
		f, err := reader.TryReadFrame()
		if errors.Is(err, recording.ErrNeedMoreData) {
			msg, readErr := src.NextMessage(ctx)
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					if reader.AtBoundary() {
						break // clean close at a frame boundary: COMMITTED
					}
					return p.quarantine(ctx, filename, fmt.Errorf("ingest: connection closed mid-frame"))
				}
				if isNormalClose(readErr) {
					if reader.AtBoundary() {
						break
					}
					return p.quarantine(ctx, filename, fmt.Errorf("ingest: connection reset mid-frame: %w", readErr))
				}
				return p.quarantine(ctx, filename, fmt.Errorf("ingest: read frame: %w", readErr))
			}
			totalBytes += int64(len(msg))
			if p.MaxBytes > 0 && totalBytes > p.MaxBytes {
				return p.quarantine(ctx, filename, ErrRecordingTooLarge)
			}
			reader.Feed(msg)
			p.Active.Touch(filename)
			continue
		}
		if err != nil {
			return p.quarantine(ctx, filename, fmt.Errorf("ingest: decode frame: %w", err))
		}

		out, filterErr := fc.filterFrame(ctx, f)
		if filterErr != nil {
			return p.quarantine(ctx, filename, fmt.Errorf("ingest: filter frame: %w", filterErr))
		}
		if out == nil {
			continue // Heartbeat or a dropped Asset
		}
		if err := writer.WriteFrame(out); err != nil {
			return p.quarantine(ctx, filename, fmt.Errorf("ingest: write frame: %w", err))
		}
		if p.Metrics != nil {
			p.Metrics.FramesWritten.Inc()
		}
	}

	if err := writer.Flush(); err != nil {
		return p.quarantine(ctx, filename, fmt.Errorf("ingest: flush: %w", err))
	}

	committed = true
	p.Active.Remove(filename)
	if p.Metrics != nil {
		p.Metrics.ActiveRecordings.Dec()
		p.Metrics.RecordingsCommitted.Inc()
	}
	p.Log.Info("recording committed", "filename", filename, "bytes", totalBytes, "site_origin", fc.siteOrigin)
	return nil
}

func (p *Pipeline) quarantine(ctx context.Context, filename string, cause error) error {
	p.Active.Remove(filename)
	if err := p.Store.Quarantine(filename); err != nil {
		p.Log.Error("failed to quarantine session file", "filename", filename, "error", err)
	}
	p.Log.Error("recording quarantined", "filename", filename, "error", cause)
	if p.Metrics != nil {
		p.Metrics.RecordingsQuarantined.WithLabelValues(quarantineCause(cause)).Inc()
	}
	span := trace.SpanFromContext(ctx)
	span.SetStatus(codes.Error, cause.Error())
	span.RecordError(cause)
	return cause
}

// quarantineCause buckets a quarantine error into a low-cardinality
// label for the recordings_quarantined_total counter.
func quarantineCause(err error) string {
	switch {
	case errors.Is(err, ErrRecordingTooLarge):
		return "too_large"
	case errors.As(err, new(*assetcache.HashMismatchError)):
		return "hash_mismatch"
	default:
		return "io_or_decode_error"
	}
}

// isNormalClose reports whether err represents a peer hanging up
// cleanly rather than a genuine I/O failure — connection reset,
// broken pipe, or an unexpected EOF are all "the client went away",
// not data corruption.
func isNormalClose(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
