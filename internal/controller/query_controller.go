// Package controller exposes the orchestrator over REST, grounded on the
// teacher's internal/controller/nlv_controller.go route-group-plus-godoc
// convention.
package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"queryforge/internal/dto"
	"queryforge/internal/eventbus"
	"queryforge/internal/filter"
	"queryforge/internal/filterschema"
	"queryforge/internal/history"
	"queryforge/internal/model"
	"queryforge/internal/orchestrator"
)

// QueryController serves the natural-language query, raw-query, filter
// validation, and schema-introspection endpoints described by spec §6's
// REST collaborator contract. History and EventBus are optional: when nil,
// auditing is skipped entirely rather than failing the request.
type QueryController struct {
	orchestrator *orchestrator.Orchestrator
	history      history.Store
	eventBus     eventbus.Publisher
}

// NewQueryController wires a QueryController to an Orchestrator plus the
// optional audit collaborators.
func NewQueryController(orch *orchestrator.Orchestrator, store history.Store, bus eventbus.Publisher) *QueryController {
	return &QueryController{orchestrator: orch, history: store, eventBus: bus}
}

// RegisterQueryRoutes mounts the query-builder endpoints under /api/v1/query.
func RegisterQueryRoutes(router *gin.Engine, controller *QueryController) {
	v1 := router.Group("/api/v1/query")
	{
		v1.POST("", controller.HandleQuery)
		v1.POST("/raw", controller.HandleRawQuery)
		v1.POST("/validate", controller.HandleValidate)
		v1.GET("/schema", controller.HandleSchema)
	}
}

// HandleQuery godoc
// @Summary      Convert a natural-language query into database queries
// @Description  Extracts a FieldMap, builds a PromptDescriptor, calls the LLM, validates and translates the result, and optionally executes it.
// @Tags         query
// @Accept       json
// @Produce      json
// @Param        request body dto.QueryRequest true "Natural-language query"
// @Success      200 {object} orchestrator.CallRecord
// @Failure      400 {object} model.Response "Invalid request body"
// @Failure      422 {object} model.Response "Filter validation failed"
// @Failure      500 {object} model.Response "Internal error"
// @Router       /api/v1/query [post]
func (c *QueryController) HandleQuery(ctx *gin.Context) {
	var req dto.QueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("invalid query request body")
		ctx.JSON(http.StatusBadRequest, model.NewResponse("invalid request body: "+err.Error(), nil))
		return
	}

	record, err := c.orchestrator.Query(ctx.Request.Context(), req.UserInput, req.Execute)
	c.audit(ctx.Request.Context(), req.UserInput, record, err)
	if err != nil {
		writeOrchestratorError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, record)
}

// audit records a completed (or failed) call to the history store and
// publishes a CallEvent, both best-effort: a failure here is logged and
// never surfaces to the caller, since auditing is not part of the query
// contract itself.
func (c *QueryController) audit(ctx context.Context, userInput string, record *orchestrator.CallRecord, callErr error) {
	success := callErr == nil
	errText := ""
	if callErr != nil {
		errText = callErr.Error()
	}

	var filters json.RawMessage
	if record != nil && record.ExtractedFilters != nil {
		if raw, err := json.Marshal(record.ExtractedFilters); err == nil {
			filters = raw
		}
	}

	if c.history != nil {
		if err := c.history.Record(ctx, history.Record{
			Query:            userInput,
			ExtractedFilters: filters,
			Success:          success,
			ErrorText:        errText,
		}); err != nil {
			log.Warn().Err(err).Msg("failed to persist call history record")
		}
	}

	if c.eventBus != nil {
		event := eventbus.CallEvent{Query: userInput, Success: success, Error: errText, Timestamp: time.Now()}
		if err := c.eventBus.Publish(ctx, event); err != nil {
			log.Warn().Err(err).Msg("failed to publish call event")
		}
	}
}

// HandleRawQuery godoc
// @Summary      Execute a caller-supplied backend-native plan directly
// @Description  Bypasses schema extraction, validation, and translation entirely.
// @Tags         query
// @Accept       json
// @Produce      json
// @Param        request body dto.RawQueryRequest true "Backend-native plan"
// @Success      200 {object} model.QueryResult
// @Failure      400 {object} model.Response "Invalid request body"
// @Failure      500 {object} model.Response "Internal error"
// @Router       /api/v1/query/raw [post]
func (c *QueryController) HandleRawQuery(ctx *gin.Context) {
	var req dto.RawQueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("invalid raw query request body")
		ctx.JSON(http.StatusBadRequest, model.NewResponse("invalid request body: "+err.Error(), nil))
		return
	}

	result, err := c.orchestrator.QueryRaw(ctx.Request.Context(), req.Plan, req.Limit)
	if err != nil {
		writeOrchestratorError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// HandleValidate godoc
// @Summary      Validate and canonicalize a filter document
// @Description  Runs the FilterValidator against the live backend's FieldMap (or a caller-supplied one) without calling the LLM or executing.
// @Tags         query
// @Accept       json
// @Produce      json
// @Param        request body dto.FilterValidationRequest true "Filter document to validate"
// @Success      200 {object} map[string]interface{} "canonicalized filter plus any auto-correction warnings"
// @Failure      422 {object} model.Response "Validation failed"
// @Router       /api/v1/query/validate [post]
func (c *QueryController) HandleValidate(ctx *gin.Context) {
	var req dto.FilterValidationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("invalid filter validation request body")
		ctx.JSON(http.StatusBadRequest, model.NewResponse("invalid request body: "+err.Error(), nil))
		return
	}

	fieldMap := req.Schema
	if fieldMap == nil {
		info, err := c.orchestrator.SchemaInfo(ctx.Request.Context())
		if err != nil {
			writeOrchestratorError(ctx, err)
			return
		}
		fieldMap = descriptorToFieldMap(info)
	}

	v := filter.NewValidator(fieldMap)
	ir, warnings, err := v.ValidateIR(&req.Filter)
	if err != nil {
		writeOrchestratorError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"filter": ir, "warnings": warnings})
}

// HandleSchema godoc
// @Summary      Return the backend's extracted field schema
// @Description  The supplemented schema-introspection endpoint (Python source's get_model_info/print_model_summary equivalent).
// @Tags         query
// @Produce      json
// @Success      200 {object} filterschema.PromptDescriptor
// @Failure      500 {object} model.Response "Schema extraction failed"
// @Router       /api/v1/query/schema [get]
func (c *QueryController) HandleSchema(ctx *gin.Context) {
	descriptor, err := c.orchestrator.SchemaInfo(ctx.Request.Context())
	if err != nil {
		writeOrchestratorError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, descriptor)
}

// descriptorToFieldMap reconstructs a FieldMap from the PromptDescriptor the
// orchestrator already exposes, so the validate-only endpoint can default to
// the live backend's schema without a second extraction path.
func descriptorToFieldMap(descriptor *filterschema.PromptDescriptor) *model.FieldMap {
	fm := model.NewFieldMap()
	for _, f := range descriptor.Fields {
		fm.Set(f.Path, model.FieldSpec{
			Type:              f.Type,
			Values:            f.Values,
			ExactMatchCapable: f.Type == model.TypeString || f.Type == model.TypeEnum,
		})
	}
	return fm
}

func writeOrchestratorError(ctx *gin.Context, err error) {
	switch err.(type) {
	case *model.ValidationError:
		log.Warn().Err(err).Msg("filter validation failed")
		ctx.JSON(http.StatusUnprocessableEntity, model.NewResponse(err.Error(), nil))
	case *model.SchemaError, *model.TranslationError, *model.BackendError, *model.LLMError:
		log.Error().Err(err).Msg("orchestrator call failed")
		ctx.JSON(http.StatusInternalServerError, model.NewResponse(err.Error(), nil))
	case *model.TimeoutError:
		log.Warn().Err(err).Msg("orchestrator call timed out")
		ctx.JSON(http.StatusGatewayTimeout, model.NewResponse(err.Error(), nil))
	default:
		log.Error().Err(err).Msg("unexpected orchestrator error")
		ctx.JSON(http.StatusInternalServerError, model.NewResponse("internal server error", nil))
	}
}
