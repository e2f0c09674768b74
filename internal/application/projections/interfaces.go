package projections

import (
	"context"
	"encoding/json"
	"net/url"

	"go.uber.org/zap"

	"facultyeval/internal/adapters/api"
	"facultyeval/internal/metrics"
)

// APIReader is the read surface of the evaluation API used by projections.
type APIReader interface {
	Get(ctx context.Context, token, path string, query url.Values) (api.Response, error)
}

// UpstreamDeps holds the dependencies every projection shares.
type UpstreamDeps struct {
	API     APIReader
	Logger  *zap.Logger      // optional
	Metrics *metrics.Metrics // optional
}

func (d UpstreamDeps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// fetch issues one GET and records its outcome under source.
// POST: err is non-nil only for transport failures; outcome classifies the call
func (d UpstreamDeps) fetch(ctx context.Context, token, source, path string, query url.Values) (resp api.Response, outcome string, err error) {
	resp, err = d.API.Get(ctx, token, path, query)
	switch {
	case err != nil:
		outcome = metrics.OutcomeTransport
	case !resp.OK():
		outcome = metrics.OutcomeHTTPError
	case !json.Valid(resp.Body):
		outcome = metrics.OutcomeMalformed
	default:
		outcome = metrics.OutcomeOK
	}
	d.Metrics.ObserveUpstream(source, outcome)
	if outcome != metrics.OutcomeOK {
		d.logger().Warn("upstream_source_failed",
			zap.String("source", source),
			zap.String("path", path),
			zap.String("outcome", outcome),
			zap.Int("status", resp.Status),
			zap.Error(err),
		)
	}
	return resp, outcome, err
}
