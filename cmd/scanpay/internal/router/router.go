package router

import (
	"errors"
	"net/http"
	"strings"

	"anarchy.ttfm/scanpay/backend"
	"anarchy.ttfm/scanpay/decimal"
	"anarchy.ttfm/scanpay/journal"
	"anarchy.ttfm/scanpay/scanner"
	"anarchy.ttfm/scanpay/scanner/push"
	"anarchy.ttfm/scanpay/workflow"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Host API of the authorization workflow
type Router struct {
	// Workflow of this device
	Workflow *workflow.Workflow
	// Receives the strings decoded by the host
	Scanner *push.Scanner
	// Submission journal
	Journal *journal.Journal
	// Optional metrics handler
	Metrics http.Handler
	// Base Gin Group to use for routing
	Base gin.IRoutes
}

const (
	MarkerParam           = "marker"
	SessionPath           = "/session"
	DevicesPath           = "/devices"
	ScanPath              = SessionPath + "/scan"
	DecodesPath           = SessionPath + "/decodes"
	FacingPath            = SessionPath + "/facing"
	AmountPath            = SessionPath + "/amount"
	PinPath               = SessionPath + "/pin"
	CancelPath            = SessionPath + "/cancel"
	SubmissionsPath       = "/submissions"
	SubmissionsPathWithId = SubmissionsPath + "/:" + MarkerParam
	MetricsPath           = "/metrics"
)

func bearer(ctx *gin.Context) (token backend.Token) {
	header := ctx.GetHeader("Authorization")
	return backend.Token(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
}

func status(err error) (code int) {
	switch {
	case errors.Is(err, backend.ErrEmptyToken):
		return http.StatusUnauthorized
	case errors.Is(err, workflow.ErrInvalidAmount),
		errors.Is(err, workflow.ErrInvalidPin),
		errors.Is(err, scanner.ErrInvalidFacing),
		errors.Is(err, decimal.ErrInvalid),
		errors.Is(err, decimal.ErrNegative),
		errors.Is(err, decimal.ErrTooPrecise),
		errors.Is(err, decimal.ErrOverflow):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrSubmissionInFlight),
		errors.Is(err, workflow.ErrCancelWhileSubmitting),
		errors.Is(err, workflow.ErrSessionChanged),
		errors.Is(err, workflow.ErrDetached),
		errors.Is(err, scanner.ErrAlreadyScanning),
		errors.Is(err, scanner.ErrNotScanning),
		errors.Is(err, push.ErrNotStarted):
		return http.StatusConflict
	case errors.Is(err, push.ErrBufferFull):
		return http.StatusTooManyRequests
	case errors.Is(err, scanner.ErrUnavailable),
		errors.Is(err, scanner.ErrNoDevices):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Every response carries the session so the host can always render it
func respond(ctx *gin.Context, snapshot workflow.Snapshot, err error) {
	session := SessionFromWorkflow(&snapshot)
	if err != nil {
		ctx.AbortWithStatusJSON(status(err), &Error{Error: err.Error(), Session: &session})
		return
	}
	ctx.JSON(http.StatusOK, &session)
}

func badRequest(ctx *gin.Context, err error) {
	ctx.AbortWithStatusJSON(http.StatusBadRequest, &Error{Error: err.Error()})
}

func (r *Router) session(ctx *gin.Context) {
	respond(ctx, r.Workflow.Snapshot(), nil)
}

func (r *Router) devices(ctx *gin.Context) {
	// Enumeration failures are advisories, not request failures
	snapshot, _ := r.Workflow.RefreshDevices(ctx)
	ctx.JSON(http.StatusOK, &snapshot.Scanner)
}

func (r *Router) scan(ctx *gin.Context) {
	var scan Scan
	err := ctx.ShouldBindJSON(&scan)
	if err != nil && ctx.Request.ContentLength > 0 {
		badRequest(ctx, err)
		return
	}

	snapshot, err := r.Workflow.StartScan(ctx, scan.Facing)
	respond(ctx, snapshot, err)
}

func (r *Router) decode(ctx *gin.Context) {
	var decode Decode
	err := ctx.ShouldBindJSON(&decode)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	err = r.Scanner.Push(decode.Payload)
	if err != nil {
		respond(ctx, r.Workflow.Snapshot(), err)
		return
	}
	// Decodes are applied asynchronously, the host polls the session
	snapshot := r.Workflow.Snapshot()
	session := SessionFromWorkflow(&snapshot)
	ctx.JSON(http.StatusAccepted, &session)
}

func (r *Router) switchFacing(ctx *gin.Context) {
	snapshot, err := r.Workflow.SwitchFacing(ctx)
	respond(ctx, snapshot, err)
}

func (r *Router) confirmAmount(ctx *gin.Context) {
	var amount Amount
	err := ctx.ShouldBindJSON(&amount)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	minor, err := amount.Amount.ToUint64()
	if err != nil {
		badRequest(ctx, err)
		return
	}

	snapshot, err := r.Workflow.ConfirmAmount(ctx, bearer(ctx), minor)
	respond(ctx, snapshot, err)
}

func (r *Router) submitPin(ctx *gin.Context) {
	var pin Pin
	err := ctx.ShouldBindJSON(&pin)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	snapshot, err := r.Workflow.SubmitPin(ctx, bearer(ctx), pin.Pin)
	respond(ctx, snapshot, err)
}

func (r *Router) cancel(ctx *gin.Context) {
	snapshot, err := r.Workflow.Cancel()
	respond(ctx, snapshot, err)
}

func (r *Router) submission(ctx *gin.Context) {
	rawMarker := ctx.Param(MarkerParam)
	marker, err := uuid.Parse(rawMarker)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	submission, err := r.Journal.Query(marker)
	switch {
	case err == nil:
		out := SubmissionFromJournal(&submission)
		ctx.JSON(http.StatusOK, &out)
	case errors.Is(err, journal.ErrSubmissionNotFound):
		ctx.AbortWithStatusJSON(http.StatusNotFound, &Error{Error: err.Error()})
	default:
		ctx.AbortWithError(http.StatusInternalServerError, err)
	}
}

// Register routes in the Gin engine
func (r *Router) Register() {
	r.Base.GET(SessionPath, r.session)
	r.Base.GET(DevicesPath, r.devices)
	r.Base.POST(ScanPath, r.scan)
	r.Base.POST(DecodesPath, r.decode)
	r.Base.POST(FacingPath, r.switchFacing)
	r.Base.POST(AmountPath, r.confirmAmount)
	r.Base.POST(PinPath, r.submitPin)
	r.Base.POST(CancelPath, r.cancel)
	r.Base.GET(SubmissionsPathWithId, r.submission)
	if r.Metrics != nil {
		r.Base.GET(MetricsPath, gin.WrapH(r.Metrics))
	}
}
