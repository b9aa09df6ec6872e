package itinerary

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-itinerary-ai/internal/api"
	"github.com/FACorreiaa/go-itinerary-ai/internal/api/auth"
	generativeAI "github.com/FACorreiaa/go-itinerary-ai/internal/api/generative_ai"
	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	GenerateHandler(w http.ResponseWriter, r *http.Request)
	QuickGenerateHandler(w http.ResponseWriter, r *http.Request)
	RegenerateHandler(w http.ResponseWriter, r *http.Request)
	ListMyItinerariesHandler(w http.ResponseWriter, r *http.Request)
	GetItineraryHandler(w http.ResponseWriter, r *http.Request)
	DeleteItineraryHandler(w http.ResponseWriter, r *http.Request)
	HealthHandler(w http.ResponseWriter, r *http.Request)
	ImageAnalysisHandler(w http.ResponseWriter, r *http.Request)
}

// HealthChecker reports whether the completion provider answers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// ImageAnalyzer answers a question about an image.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, imageURL, question, model string) (*generativeAI.Completion, error)
}

type HandlerImpl struct {
	logger  *slog.Logger
	service Service
	health  HealthChecker
	images  ImageAnalyzer
}

type HandlerOption func(*HandlerImpl)

// WithImageAnalyzer enables the image analysis endpoint.
func WithImageAnalyzer(a ImageAnalyzer) HandlerOption {
	return func(h *HandlerImpl) { h.images = a }
}

func NewHandlerImpl(service Service, health HealthChecker, logger *slog.Logger, opts ...HandlerOption) *HandlerImpl {
	h := &HandlerImpl{
		logger:  logger,
		service: service,
		health:  health,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the itinerary endpoints. Every route needs an authenticated caller.
func (h *HandlerImpl) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/generate", h.GenerateHandler)
	r.Post("/quick-generate", h.QuickGenerateHandler)
	r.Get("/my-itineraries", h.ListMyItinerariesHandler)
	r.Post("/regenerate/{itineraryID}", h.RegenerateHandler)
	r.Get("/{itineraryID}", h.GetItineraryHandler)
	r.Delete("/{itineraryID}", h.DeleteItineraryHandler)
	return r
}

func (h *HandlerImpl) start(r *http.Request, name, route string) (context.Context, trace.Span, *slog.Logger) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), name, trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
	))
	return ctx, span, h.logger.With(slog.String("handler", name))
}

// caller returns the authenticated user id or writes a 401.
func (h *HandlerImpl) caller(ctx context.Context, w http.ResponseWriter, r *http.Request, span trace.Span, l *slog.Logger) (string, bool) {
	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		l.WarnContext(ctx, "User ID not found in context")
		span.SetStatus(codes.Error, "Unauthorized - User ID missing")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return "", false
	}
	span.SetAttributes(attribute.String("user.id", userID))
	return userID, true
}

func (h *HandlerImpl) fail(ctx context.Context, w http.ResponseWriter, r *http.Request, span trace.Span, l *slog.Logger, msg string, err error) {
	kind := types.KindOf(err)
	if api.StatusForKind(kind) >= http.StatusInternalServerError {
		l.ErrorContext(ctx, msg, slog.String("kind", string(kind)), slog.Any("error", err))
	} else {
		l.WarnContext(ctx, msg, slog.String("kind", string(kind)), slog.Any("error", err))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	api.KindErrorResponse(w, r, err)
}

func (h *HandlerImpl) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span, l := h.start(r, "GenerateHandler", "/api/v1/ai/itinerary/generate")
	defer span.End()

	userID, ok := h.caller(ctx, w, r, span, l)
	if !ok {
		return
	}

	var req types.GenerationRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	span.SetAttributes(attribute.String("itinerary.destination", req.Destination))

	view, err := h.service.Generate(ctx, userID, req)
	if err != nil {
		h.fail(ctx, w, r, span, l, "Failed to generate itinerary", err)
		return
	}

	span.SetStatus(codes.Ok, "Itinerary generated")
	api.WriteJSONResponse(w, r, http.StatusCreated, view)
}

func (h *HandlerImpl) QuickGenerateHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span, l := h.start(r, "QuickGenerateHandler", "/api/v1/ai/itinerary/quick-generate")
	defer span.End()

	userID, ok := h.caller(ctx, w, r, span, l)
	if !ok {
		return
	}

	var req types.QuickGenerateRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.service.QuickGenerate(ctx, userID, req)
	if err != nil {
		h.fail(ctx, w, r, span, l, "Failed to quick-generate itinerary", err)
		return
	}

	span.SetStatus(codes.Ok, "Itinerary generated")
	api.WriteJSONResponse(w, r, http.StatusCreated, view)
}

func (h *HandlerImpl) RegenerateHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span, l := h.start(r, "RegenerateHandler", "/api/v1/ai/itinerary/regenerate/{itineraryID}")
	defer span.End()

	userID, ok := h.caller(ctx, w, r, span, l)
	if !ok {
		return
	}
	itineraryID := chi.URLParam(r, "itineraryID")
	span.SetAttributes(attribute.String("itinerary.id", itineraryID))

	var opts types.RegenerateOptions
	if r.ContentLength != 0 {
		if err := api.DecodeJSONBody(w, r, &opts); err != nil {
			l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Bad request")
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	view, err := h.service.Regenerate(ctx, itineraryID, userID, opts)
	if err != nil {
		h.fail(ctx, w, r, span, l, "Failed to regenerate itinerary", err)
		return
	}

	span.SetStatus(codes.Ok, "Itinerary regenerated")
	api.WriteJSONResponse(w, r, http.StatusCreated, view)
}

func (h *HandlerImpl) ListMyItinerariesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span, l := h.start(r, "ListMyItinerariesHandler", "/api/v1/ai/itinerary/my-itineraries")
	defer span.End()

	userID, ok := h.caller(ctx, w, r, span, l)
	if !ok {
		return
	}

	views, err := h.service.ListByOwner(ctx, userID)
	if err != nil {
		h.fail(ctx, w, r, span, l, "Failed to list itineraries", err)
		return
	}

	span.SetStatus(codes.Ok, "Itineraries listed")
	api.WriteJSONResponse(w, r, http.StatusOK, views)
}

func (h *HandlerImpl) GetItineraryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span, l := h.start(r, "GetItineraryHandler", "/api/v1/ai/itinerary/{itineraryID}")
	defer span.End()

	userID, ok := h.caller(ctx, w, r, span, l)
	if !ok {
		return
	}
	itineraryID := chi.URLParam(r, "itineraryID")
	span.SetAttributes(attribute.String("itinerary.id", itineraryID))

	view, err := h.service.GetByID(ctx, itineraryID, userID)
	if err != nil {
		h.fail(ctx, w, r, span, l, "Failed to fetch itinerary", err)
		return
	}

	span.SetStatus(codes.Ok, "Itinerary fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

func (h *HandlerImpl) DeleteItineraryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span, l := h.start(r, "DeleteItineraryHandler", "/api/v1/ai/itinerary/{itineraryID}")
	defer span.End()

	userID, ok := h.caller(ctx, w, r, span, l)
	if !ok {
		return
	}
	itineraryID := chi.URLParam(r, "itineraryID")
	span.SetAttributes(attribute.String("itinerary.id", itineraryID))

	if err := h.service.Delete(ctx, itineraryID, userID); err != nil {
		h.fail(ctx, w, r, span, l, "Failed to delete itinerary", err)
		return
	}

	span.SetStatus(codes.Ok, "Itinerary deleted")
	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "Itinerary deleted successfully"})
}

// HealthHandler checks that the completion provider answers. It needs no authentication.
func (h *HandlerImpl) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span, _ := h.start(r, "HealthHandler", "/api/v1/ai/health")
	defer span.End()

	healthy := h.health != nil && h.health.HealthCheck(ctx)
	span.SetAttributes(attribute.Bool("ai.healthy", healthy))
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	api.WriteJSONResponse(w, r, status, map[string]any{
		"success": healthy,
		"healthy": healthy,
	})
}

// ImageAnalysisHandler sends an image URL and an optional question to the model
// and returns its answer.
func (h *HandlerImpl) ImageAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span, l := h.start(r, "ImageAnalysisHandler", "/api/v1/ai/image-analysis")
	defer span.End()

	if _, ok := h.caller(ctx, w, r, span, l); !ok {
		return
	}
	if h.images == nil {
		span.SetStatus(codes.Error, "Image analysis unavailable")
		api.ErrorResponse(w, r, http.StatusNotImplemented, "image analysis is not supported by the configured provider")
		return
	}

	var req types.ImageAnalysisRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateImageURL(req.ImageURL); err != nil {
		h.fail(ctx, w, r, span, l, "Invalid image analysis request", err)
		return
	}

	res, err := h.images.AnalyzeImage(ctx, req.ImageURL, req.Question, req.Model)
	if err != nil {
		h.fail(ctx, w, r, span, l, "Failed to analyze image", err)
		return
	}

	span.SetAttributes(attribute.Int("llm.usage.total_tokens", res.Usage.TotalTokens))
	span.SetStatus(codes.Ok, "Image analyzed")
	api.WriteJSONResponse(w, r, http.StatusOK, res)
}

func validateImageURL(raw string) error {
	if raw == "" {
		return types.NewValidationError("imageUrl is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return types.NewValidationError("imageUrl must be an absolute http or https URL")
	}
	return nil
}
