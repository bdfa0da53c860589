package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/attacklens/attacklens/internal/config"
	"github.com/attacklens/attacklens/internal/httpclient"
	"github.com/attacklens/attacklens/internal/logger"
	"github.com/attacklens/attacklens/internal/telemetry"
)

// shapeProbe binds one candidate shape to its path pattern and parser.
// Probe order is fixed: the comprehensive document is authoritative when
// present, then the direct attack-paths document, then initial-access
// vectors.
type shapeProbe struct {
	shape   Shape
	pattern string
	parse   func(app string, data []byte) (*Dataset, error)
}

var probes = []shapeProbe{
	{ShapeComprehensive, "comprehensive/%s_comprehensive_analysis.json", parseComprehensive},
	{ShapeAttackPaths, "attack_paths/%s_attack_paths.json", parseAttackPaths},
	{ShapeInitialAccess, "initial_access/%s_initial_access_vectors.json", parseInitialAccess},
}

// Loader fetches artifacts for an application and normalizes whichever shape
// is present. Safe for concurrent use; concurrent loads of the same
// application are collapsed into one fetch.
type Loader struct {
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	log        *logger.Logger
	tel        telemetry.Telemetry
	tracer     trace.Tracer
	group      singleflight.Group
}

func NewLoader(cfg config.ArtifactsConfig, log *logger.Logger, tel telemetry.Telemetry) *Loader {
	return &Loader{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		client:     httpclient.NewArtifactClient(cfg.RequestTimeout),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		maxRetries: cfg.MaxRetries,
		log:        log.WithComponent("artifact-loader"),
		tel:        tel,
		tracer:     otel.Tracer("attacklens/artifact"),
	}
}

// Load probes the candidate shapes in priority order and returns the first
// that parses. When every shape is exhausted it returns a
// *DataUnavailableError carrying the application name and the attempted
// shapes; the caller renders an unavailable state rather than failing.
func (l *Loader) Load(ctx context.Context, app string) (*Dataset, error) {
	if strings.TrimSpace(app) == "" {
		return nil, &DataUnavailableError{Application: app, Err: errors.New("empty application name")}
	}

	v, err, _ := l.group.Do(app, func() (interface{}, error) {
		return l.load(ctx, app)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}

func (l *Loader) load(ctx context.Context, app string) (*Dataset, error) {
	ctx, span := l.tracer.Start(ctx, "artifact.load",
		trace.WithAttributes(attribute.String("artifact.application", app)))
	defer span.End()

	start := time.Now()
	attempted := make([]Shape, 0, len(probes))
	var lastErr error

	for _, probe := range probes {
		attempted = append(attempted, probe.shape)

		data, err := l.fetchJSON(ctx, fmt.Sprintf(probe.pattern, url.PathEscape(app)))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			lastErr = err
			l.log.WithContext(ctx).Debugw("Artifact shape not found",
				"application", app,
				"shape", string(probe.shape),
				"error", err.Error(),
			)
			continue
		}

		ds, err := probe.parse(app, data)
		if err != nil {
			lastErr = err
			l.log.WithContext(ctx).Debugw("Artifact shape rejected",
				"application", app,
				"shape", string(probe.shape),
				"error", err.Error(),
			)
			continue
		}

		span.SetAttributes(
			attribute.String("artifact.shape", string(probe.shape)),
			attribute.Int("artifact.findings", len(ds.AttackPaths)),
		)
		l.tel.RecordLoad(app, string(probe.shape), time.Since(start).Seconds(), true)
		l.log.WithApplication(app).LogDuration(ctx, "artifact.load", start,
			"shape", string(probe.shape),
			"dialect", string(ds.Dialect),
			"findings", len(ds.AttackPaths),
		)
		return ds, nil
	}

	l.tel.RecordLoad(app, "", time.Since(start).Seconds(), false)
	err := &DataUnavailableError{Application: app, Attempted: attempted, Err: lastErr}
	span.SetStatus(codes.Error, err.Error())
	l.log.WithContext(ctx).Warnw("No artifact shape available",
		"application", app,
		"shapes_attempted", len(attempted),
	)
	return nil, err
}

// LoadBreakdown fetches the collaborator capability-breakdown document.
func (l *Loader) LoadBreakdown(ctx context.Context, app string) (*Breakdown, error) {
	data, err := l.fetchJSON(ctx, fmt.Sprintf("breakdowns/%s_app_breakdown.json", url.PathEscape(app)))
	if err != nil {
		return nil, err
	}
	var b Breakdown
	if err := decodeStrictJSON(data, &b); err != nil {
		return nil, fmt.Errorf("%w: breakdown document is malformed: %v", ErrShapeMismatch, err)
	}
	return &b, nil
}

// LoadDiscoveryVectors fetches the collaborator discovery-vectors document.
func (l *Loader) LoadDiscoveryVectors(ctx context.Context, app string) ([]DiscoveryEntry, error) {
	data, err := l.fetchJSON(ctx, fmt.Sprintf("discovery/%s_discovery_vectors.json", url.PathEscape(app)))
	if err != nil {
		return nil, err
	}
	var entries []DiscoveryEntry
	if err := decodeStrictJSON(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: discovery document is malformed: %v", ErrShapeMismatch, err)
	}
	return entries, nil
}

// fetchJSON GETs one artifact file relative to the base URL. Transport
// failures and 5xx responses are retried up to maxRetries; a missing file
// (any other non-2xx) is reported as ErrNotFound immediately since static
// hosting does not heal on retry.
func (l *Loader) fetchJSON(ctx context.Context, relPath string) ([]byte, error) {
	fullURL := l.baseURL + "/" + relPath

	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		if attempt > 0 {
			l.log.Debugw("Retrying artifact fetch", "url", fullURL, "attempt", attempt)
		}

		data, retryable, err := l.fetchOnce(ctx, fullURL)
		if err == nil {
			return data, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetch %s failed after %d attempts: %w", fullURL, l.maxRetries+1, lastErr)
}

func (l *Loader) fetchOnce(ctx context.Context, fullURL string) (data []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, false, err
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, err
		}
		return body, false, nil
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("%w: %s returned %d", ErrNotFound, fullURL, resp.StatusCode)
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, false, fmt.Errorf("%w: %s returned %d", ErrNotFound, fullURL, resp.StatusCode)
	}
}
