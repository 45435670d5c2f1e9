// Package handler provides the Lambda handler that forwards records to the
// OpenAI API and wraps every outcome into a response envelope.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/lpm0073/openai-lambda/internal/apperr"
	"github.com/lpm0073/openai-lambda/internal/config"
	"github.com/lpm0073/openai-lambda/internal/domain"
	"github.com/lpm0073/openai-lambda/internal/metrics"
	"github.com/lpm0073/openai-lambda/internal/router"
	"go.uber.org/zap"
)

// Dispatcher validates a request body and calls the upstream API.
type Dispatcher interface {
	Dispatch(ctx context.Context, body domain.RequestBody) (any, error)
}

// Exporter ships collected metrics once an invocation is done.
type Exporter interface {
	Export(ctx context.Context) error
}

// Handler processes invocation events.
type Handler struct {
	dispatcher Dispatcher
	exporter   Exporter
	logger     *zap.Logger
	cfg        *config.Config
}

// New creates a Handler.
func New(cfg *config.Config, dispatcher Dispatcher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// WithExporter sets the metrics exporter run at the end of every
// invocation.
func (h *Handler) WithExporter(e Exporter) *Handler {
	h.exporter = e
	return h
}

// HandleRaw decodes a raw invocation payload and handles it. A payload that
// is not an event object yields a structural error envelope.
func (h *Handler) HandleRaw(ctx context.Context, raw json.RawMessage) domain.Response {
	var event domain.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		log := h.requestLogger(ctx)
		defer h.export(ctx, log)
		return h.fail(log, apperr.Wrap(apperr.Structural, err, "failed to parse event"))
	}
	return h.Handle(ctx, event)
}

// HandleRawBatch is HandleRaw for HandleBatch.
func (h *Handler) HandleRawBatch(ctx context.Context, raw json.RawMessage) []domain.Response {
	var event domain.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		log := h.requestLogger(ctx)
		defer h.export(ctx, log)
		return []domain.Response{h.fail(log, apperr.Wrap(apperr.Structural, err, "failed to parse event"))}
	}
	return h.HandleBatch(ctx, event)
}

// Handle processes an event and returns exactly one envelope. Only the first
// record is processed; additional records are logged and ignored.
func (h *Handler) Handle(ctx context.Context, event domain.Event) domain.Response {
	log := h.requestLogger(ctx)
	defer h.export(ctx, log)
	h.dumpEvent(log, event)

	if err := checkRecords(event); err != nil {
		return h.fail(log, err)
	}

	if n := len(event.Records); n > 1 {
		log.Warn("event carries multiple records; only the first is processed",
			zap.Int("records", n),
			zap.Int("ignored", n-1),
		)
	}

	resp := h.processRecord(ctx, log, event, 0)
	log.Debug("response", zap.Any("retval", resp))
	return resp
}

// HandleBatch processes every record and returns one envelope per record,
// in record order. A structural problem with the event itself yields a
// single error envelope.
func (h *Handler) HandleBatch(ctx context.Context, event domain.Event) []domain.Response {
	log := h.requestLogger(ctx)
	defer h.export(ctx, log)
	h.dumpEvent(log, event)

	if err := checkRecords(event); err != nil {
		return []domain.Response{h.fail(log, err)}
	}

	responses := make([]domain.Response, 0, len(event.Records))
	for i := range event.Records {
		resp := h.processRecord(ctx, log, event, i)
		log.Debug("response", zap.Int("record", i), zap.Any("retval", resp))
		responses = append(responses, resp)
	}
	return responses
}

func checkRecords(event domain.Event) error {
	if event.Records == nil {
		return apperr.New(apperr.Structural, "Records object not found in event object")
	}
	if len(event.Records) == 0 {
		return apperr.New(apperr.Structural, "Records object in event object is empty")
	}
	return nil
}

// processRecord runs one record through validating, dispatching and
// responding. Every failure jumps straight to responding.
func (h *Handler) processRecord(ctx context.Context, log *zap.Logger, event domain.Event, i int) domain.Response {
	start := time.Now()
	record := event.Records[i]
	log = log.With(zap.Int("record", i))
	log.Debug("event record", zap.Any("event_record", record))

	endPoint := "unknown"
	body, err := decodeBody(record, event.IsBase64Encoded)
	if err == nil {
		endPoint = metricLabel(body.EndPoint)
		log = log.With(zap.String("end_point", string(body.EndPoint)), zap.String("model", body.Model))
	}

	var resp domain.Response
	if err != nil {
		resp = h.fail(log, err)
	} else if result, dErr := h.dispatcher.Dispatch(ctx, body); dErr != nil {
		resp = h.fail(log, dErr)
	} else {
		resp = newResponse(http.StatusOK, result)
		log.Info("request completed",
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)),
		)
	}

	metrics.RequestCount.WithLabelValues(endPoint, strconv.Itoa(resp.StatusCode)).Inc()
	return resp
}

// decodeBody extracts the request body from a record, base64-decoding it
// when either the record or the whole event is flagged as encoded.
func decodeBody(record domain.Record, eventEncoded bool) (domain.RequestBody, error) {
	raw := []byte(record.Body)
	if record.IsBase64Encoded || eventEncoded {
		decoded, err := base64.StdEncoding.DecodeString(record.Body)
		if err != nil {
			return domain.RequestBody{}, apperr.Wrap(apperr.Structural, err, "failed to decode base64 body")
		}
		raw = decoded
	}

	var body domain.RequestBody
	if err := json.Unmarshal(raw, &body); err != nil {
		// Well-formed JSON with a wrong-typed field is the caller's mistake.
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return domain.RequestBody{}, apperr.Wrap(apperr.Validation, err,
				"invalid type for field %q: got %s, want %s", typeErr.Field, typeErr.Value, typeErr.Type)
		}
		return domain.RequestBody{}, apperr.Wrap(apperr.Structural, err, "failed to parse request body")
	}
	return body, nil
}

// fail logs err and builds its envelope.
func (h *Handler) fail(log *zap.Logger, err error) domain.Response {
	resp := errorResponse(err)
	fields := []zap.Field{
		zap.Error(err),
		zap.String("kind", apperr.KindOf(err).String()),
		zap.Int("status", resp.StatusCode),
	}
	if resp.StatusCode >= 500 {
		log.Error("request failed", fields...)
	} else {
		log.Warn("request rejected", fields...)
	}
	return resp
}

// export runs the exporter. A failed export is logged and never changes the
// response.
func (h *Handler) export(ctx context.Context, log *zap.Logger) {
	if h.exporter == nil {
		return
	}
	if err := h.exporter.Export(ctx); err != nil {
		log.Warn("failed to export metrics", zap.Error(err))
	}
}

// metricLabel bounds label cardinality to the known end points.
func metricLabel(ep domain.EndPoint) string {
	if router.IsValidEndPoint(ep) {
		return string(ep)
	}
	return "invalid"
}

func (h *Handler) requestLogger(ctx context.Context) *zap.Logger {
	requestID := ""
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		requestID = lc.AwsRequestID
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return h.logger.With(zap.String("request_id", requestID))
}

// dumpEvent writes the environment snapshot and the incoming event at debug
// level. It never touches returned data.
func (h *Handler) dumpEvent(log *zap.Logger, event domain.Event) {
	if ce := log.Check(zap.DebugLevel, "environment"); ce != nil {
		fields := []zap.Field{
			zap.String("os", runtime.GOOS),
			zap.String("arch", runtime.GOARCH),
			zap.String("go_version", runtime.Version()),
		}
		if h.cfg != nil {
			fields = append(fields,
				zap.String("environment", h.cfg.Environment),
				zap.String("function_name", h.cfg.FunctionName),
				zap.String("region", h.cfg.Region),
				zap.Bool("debug_mode", h.cfg.DebugMode),
			)
		}
		ce.Write(fields...)
	}
	log.Debug("event", zap.Any("event", event))
}
