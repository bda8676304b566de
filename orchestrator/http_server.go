package orchestrator

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cluster1900/eip7702-fulldemo-sub000/core/services"
	"github.com/cluster1900/eip7702-fulldemo-sub000/model"
	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/relayer"
	"github.com/cluster1900/eip7702-fulldemo-sub000/version"
)

func (orch *Orchestrator) startHttpServer(ctx context.Context) {
	// If http_bind_address is not set, skip HTTP server startup entirely
	if orch.config == nil || orch.config.HttpBindAddress == "" {
		orch.logger.Info("HTTP server disabled: no http_bind_address configured")
		return
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = NewCustomValidator()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/up", func(c echo.Context) error {
		if orch.status == runningStatus {
			return c.String(http.StatusOK, "up")
		}

		return c.String(http.StatusServiceUnavailable, "pending...")
	})

	e.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"version":  version.Get(),
			"revision": version.Commit(),
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(orch.registry, promhttp.HandlerOpts{})))

	api := e.Group("")
	if len(orch.config.JwtSecret) > 0 {
		api.Use(orch.jwtAuth)
	}

	api.GET("/delegation/:address", orch.handleDelegationStatus)
	api.GET("/operations/nonce/:address", orch.handleOperationNonce)
	api.POST("/operations/build", orch.handleBuildTransfer)
	api.POST("/operations/submit", orch.handleSubmit)
	api.POST("/operations/dryrun", orch.handleDryRun)
	api.GET("/operations/:id", orch.handleGetSubmission)
	api.GET("/operations", orch.handleListSubmissions)
	api.GET("/tokens", orch.handleListTokens)

	addr := orch.config.HttpBindAddress
	orch.logger.Info("HTTP server listening", "address", addr)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			orch.logger.Warn("HTTP server failed to start; continuing without HTTP endpoint", "address", addr, "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = e.Shutdown(context.Background())
	}()
}

// handleDelegationStatus reports whether an account currently runs under the
// settlement contract's delegation designator.
func (orch *Orchestrator) handleDelegationStatus(c echo.Context) error {
	address, err := parseAddressParam(c, "address")
	if err != nil {
		return err
	}

	delegated, err := orch.oracle.HasDelegatedCode(c.Request().Context(), address)
	if err != nil {
		return upstreamError(err)
	}

	return c.JSON(http.StatusOK, &HttpJsonResp[map[string]any]{
		Data: map[string]any{
			"address":   address.Hex(),
			"delegated": delegated,
		},
	})
}

func (orch *Orchestrator) handleOperationNonce(c echo.Context) error {
	address, err := parseAddressParam(c, "address")
	if err != nil {
		return err
	}

	nonce, err := orch.oracle.OperationNonce(c.Request().Context(), address)
	if err != nil {
		return upstreamError(err)
	}

	return c.JSON(http.StatusOK, &HttpJsonResp[map[string]string]{
		Data: map[string]string{
			"address": address.Hex(),
			"nonce":   fmt.Sprintf("0x%x", nonce),
		},
	})
}

// handleBuildTransfer assembles a ready-to-sign operation for an ERC-20
// transfer, scaling the human amounts by the token's decimals.
func (orch *Orchestrator) handleBuildTransfer(c echo.Context) error {
	req := &BuildTransferRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest("malformed request body")
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	reqCtx := c.Request().Context()
	params := relayer.TransferParams{
		Sender:    common.HexToAddress(req.Sender),
		Token:     common.HexToAddress(req.Token),
		Recipient: common.HexToAddress(req.Recipient),
	}

	amount, err := orch.tokenMeta.ToMinorUnits(reqCtx, params.Token, req.Amount)
	if err != nil {
		return badRequest(err.Error())
	}
	params.Amount = amount

	if req.FeeAmount != "" {
		if req.FeeToken == "" {
			return badRequest("fee_amount set without fee_token")
		}
		params.FeeToken = common.HexToAddress(req.FeeToken)
		feeAmount, err := orch.tokenMeta.ToMinorUnits(reqCtx, params.FeeToken, req.FeeAmount)
		if err != nil {
			return badRequest(err.Error())
		}
		params.FeeAmount = feeAmount
	}

	op, auth, err := orch.relayer.BuildTransferOperation(reqCtx, params)
	if err != nil {
		return upstreamError(err)
	}

	// Demo mode: sign in place when the orchestrator holds the sender key.
	if orch.config.SenderPrivateKey != nil {
		if err := relayer.SignOperation(orch.config.SenderPrivateKey, op, orch.relayer.Domain()); err != nil {
			return upstreamError(err)
		}
		if auth != nil {
			if err := relayer.SignAuthorization(orch.config.SenderPrivateKey, auth); err != nil {
				return upstreamError(err)
			}
		}
	}

	orch.metrics.IncNumOperationsBuilt()

	// Metadata is cached from the ToMinorUnits call above, so this cannot
	// miss; the display string is best-effort either way.
	display, fmtErr := orch.tokenMeta.FormatMinorUnits(reqCtx, params.Token, params.Amount)
	if fmtErr != nil {
		display = params.Amount.String()
	}
	orch.logger.Info("built transfer operation",
		"sender", params.Sender.Hex(), "recipient", params.Recipient.Hex(), "amount", display)

	hash, err := op.SigningHash(orch.relayer.Domain())
	if err != nil {
		return upstreamError(err)
	}

	return c.JSON(http.StatusOK, &HttpJsonResp[map[string]any]{
		Data: map[string]any{
			"operation":     toJsonOperation(op),
			"authorization": toJsonAuthorization(auth),
			"signingHash":   hash.Hex(),
			"transfer":      display,
		},
	})
}

// handleSubmit relays a signed operation and records the submission for the
// receipt sweeper.
func (orch *Orchestrator) handleSubmit(c echo.Context) error {
	req := &SubmitRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest("malformed request body")
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	op, err := req.Operation.toOperation()
	if err != nil {
		return badRequest(err.Error())
	}
	auth, err := req.Authorization.toAuthorization()
	if err != nil {
		return badRequest(err.Error())
	}

	opHash, err := orch.relayer.Submit(c.Request().Context(), op, auth)
	if err != nil {
		orch.metrics.IncNumOperationsSubmitted("rejected")
		return relayError(err)
	}
	orch.metrics.IncNumOperationsSubmitted("accepted")

	sub := model.NewSubmission(op.Sender, op.Nonce, opHash)
	if err := orch.submissions.Create(sub); err != nil {
		// The relay endpoint took the operation; losing the record only
		// costs receipt tracking.
		orch.logger.Errorf("cannot persist submission %s: %v", sub.ID, err)
	}

	return c.JSON(http.StatusOK, &HttpJsonResp[*model.Submission]{Data: sub})
}

func (orch *Orchestrator) handleGetSubmission(c echo.Context) error {
	sub, err := orch.submissions.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, ErrorResp{
			Code:    "NOT_FOUND",
			Message: "no submission with that id",
		})
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[*model.Submission]{Data: sub})
}

// handleListTokens reports the token metadata resolved so far in this
// process.
func (orch *Orchestrator) handleListTokens(c echo.Context) error {
	return c.JSON(http.StatusOK, &HttpJsonResp[[]services.TokenMetadata]{
		Data: orch.tokenMeta.CachedTokens(),
	})
}

func (orch *Orchestrator) handleListSubmissions(c echo.Context) error {
	subs, err := orch.submissions.List()
	if err != nil {
		return upstreamError(err)
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[[]*model.Submission]{Data: subs})
}

func parseAddressParam(c echo.Context, name string) (common.Address, error) {
	raw := c.Param(name)
	if !common.IsHexAddress(raw) {
		return common.Address{}, badRequest(fmt.Sprintf("%s is not a valid address", name))
	}
	return common.HexToAddress(raw), nil
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, ErrorResp{
		Code:    "INVALID_REQUEST",
		Message: msg,
	})
}

func upstreamError(err error) error {
	return echo.NewHTTPError(http.StatusBadGateway, ErrorResp{
		Code:    "UPSTREAM_ERROR",
		Message: err.Error(),
	})
}

// relayError maps the relay failure taxonomy onto HTTP statuses.
func relayError(err error) error {
	kind := relayer.Classify(err)
	status := http.StatusBadGateway
	switch kind {
	case relayer.KindInvalidNonce, relayer.KindInvalidSignature, relayer.KindInsufficientFunds, relayer.KindExecutionReverted:
		status = http.StatusUnprocessableEntity
	case relayer.KindTerminal:
		status = http.StatusBadRequest
	}
	return echo.NewHTTPError(status, ErrorResp{
		Code:    kind.String(),
		Message: err.Error(),
	})
}
