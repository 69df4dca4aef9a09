package jupiter

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/metrics"
)

// Reference: https://station.jup.ag/docs/apis/swap-api

const (
	DefaultApiBaseUrl = "https://quote-api.jup.ag/v6"

	quoteEndpointName            = "quote"
	swapInstructionsEndpointName = "swap-instructions"

	metricsStructName = "jupiter.client"
)

type SwapMode string

const (
	SwapModeExactIn  SwapMode = "ExactIn"
	SwapModeExactOut SwapMode = "ExactOut"
)

type Client struct {
	baseUrl    string
	httpClient *http.Client
}

// NewClient returns a new Jupiter client for performing on-chain swaps
func NewClient(baseUrl string) *Client {
	return NewClientWithHTTPClient(baseUrl, http.DefaultClient)
}

// NewClientWithHTTPClient returns a new Jupiter client that issues requests
// with the provided http client.
func NewClientWithHTTPClient(baseUrl string, httpClient *http.Client) *Client {
	return &Client{
		baseUrl:    strings.TrimSuffix(baseUrl, "/") + "/",
		httpClient: httpClient,
	}
}

type QuoteRequest struct {
	InputMint        ed25519.PublicKey
	OutputMint       ed25519.PublicKey
	Amount           uint64
	SlippageBps      uint16
	SwapMode         SwapMode
	OnlyDirectRoutes bool
	MaxAccounts      uint8
}

type Quote struct {
	jsonString           string
	inAmount             uint64
	outAmount            uint64
	estimatedSwapAmount  uint64
	priceImpactPct       string
	routePlanDescription string
}

// GetInAmount returns the amount of input mint quarks the route consumes
func (q *Quote) GetInAmount() uint64 {
	return q.inAmount
}

// GetOutAmount returns the expected amount of output mint quarks
func (q *Quote) GetOutAmount() uint64 {
	return q.outAmount
}

// GetEstimatedSwapAmount returns the minimum amount received after slippage
func (q *Quote) GetEstimatedSwapAmount() uint64 {
	return q.estimatedSwapAmount
}

func (q *Quote) GetPriceImpactPct() string {
	return q.priceImpactPct
}

// GetRouteDescription returns the AMM labels of the route, joined in hop order
func (q *Quote) GetRouteDescription() string {
	return q.routePlanDescription
}

// GetQuote gets an optimal route for performing a swap
func (c *Client) GetQuote(ctx context.Context, req *QuoteRequest) (*Quote, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetQuote")
	defer tracer.End()

	if req.Amount == 0 {
		return nil, errors.New("amount must be positive")
	}

	params := url.Values{}
	params.Set("inputMint", base58.Encode(req.InputMint))
	params.Set("outputMint", base58.Encode(req.OutputMint))
	params.Set("amount", strconv.FormatUint(req.Amount, 10))
	if req.SlippageBps > 0 {
		params.Set("slippageBps", strconv.FormatUint(uint64(req.SlippageBps), 10))
	}
	if len(req.SwapMode) > 0 {
		params.Set("swapMode", string(req.SwapMode))
	}
	if req.OnlyDirectRoutes {
		params.Set("onlyDirectRoutes", "true")
	}
	if req.MaxAccounts > 0 {
		params.Set("maxAccounts", strconv.FormatUint(uint64(req.MaxAccounts), 10))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseUrl+quoteEndpointName+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "error creating http request")
	}

	respBody, err := c.do(httpReq)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	var parsed jsonQuote
	err = json.Unmarshal(respBody, &parsed)
	if err != nil {
		return nil, errors.Wrap(err, "error unmarshalling json response")
	}

	inAmount, err := strconv.ParseUint(parsed.InAmount, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing in amount")
	}

	outAmount, err := strconv.ParseUint(parsed.OutAmount, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing out amount")
	}

	estimatedSwapAmount, err := strconv.ParseUint(parsed.OtherAmountThreshold, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing estimated swap amount")
	}

	var labels []string
	for _, step := range parsed.RoutePlan {
		labels = append(labels, step.SwapInfo.Label)
	}

	return &Quote{
		jsonString:           string(respBody),
		inAmount:             inAmount,
		outAmount:            outAmount,
		estimatedSwapAmount:  estimatedSwapAmount,
		priceImpactPct:       parsed.PriceImpactPct,
		routePlanDescription: strings.Join(labels, " -> "),
	}, nil
}

type DynamicSlippage struct {
	MinBps uint16 `json:"minBps"`
	MaxBps uint16 `json:"maxBps"`
}

type SwapInstructionsRequest struct {
	Quote *Quote

	// UserPublicKey is the owner of the source and destination token
	// accounts. For CPI swaps this is the program's vault.
	UserPublicKey ed25519.PublicKey

	// Payer optionally funds account rent and fees on behalf of the user
	Payer ed25519.PublicKey

	WrapAndUnwrapSol          bool
	DynamicComputeUnitLimit   bool
	DynamicSlippage           *DynamicSlippage
	PrioritizationFeeLamports uint64
}

// GetSwapInstructions gets the instructions to construct a transaction to sign
// and execute on chain to perform a swap with a given quote
func (c *Client) GetSwapInstructions(ctx context.Context, req *SwapInstructionsRequest) (*SwapInstructions, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetSwapInstructions")
	defer tracer.End()

	if req.Quote == nil {
		return nil, errors.New("quote is required")
	}

	body := jsonSwapInstructionsRequest{
		QuoteResponse:           json.RawMessage(req.Quote.jsonString),
		UserPublicKey:           base58.Encode(req.UserPublicKey),
		WrapAndUnwrapSol:        req.WrapAndUnwrapSol,
		DynamicComputeUnitLimit: req.DynamicComputeUnitLimit,
		DynamicSlippage:         req.DynamicSlippage,
	}
	if len(req.Payer) > 0 {
		body.Payer = base58.Encode(req.Payer)
	}
	if req.PrioritizationFeeLamports > 0 {
		body.PrioritizationFeeLamports = &req.PrioritizationFeeLamports
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "error marshalling request body")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+swapInstructionsEndpointName, bytes.NewReader(encoded))
	if err != nil {
		return nil, errors.Wrap(err, "error creating http request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(httpReq)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	res, err := ParseSwapInstructions(respBody)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return res, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "error executing http request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "error reading response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("received http status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

type jsonQuote struct {
	InAmount             string `json:"inAmount"`
	OutAmount            string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	PriceImpactPct       string `json:"priceImpactPct"`
	RoutePlan            []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
}

type jsonSwapInstructionsRequest struct {
	QuoteResponse             json.RawMessage  `json:"quoteResponse"`
	UserPublicKey             string           `json:"userPublicKey"`
	Payer                     string           `json:"payer,omitempty"`
	WrapAndUnwrapSol          bool             `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool             `json:"dynamicComputeUnitLimit"`
	DynamicSlippage           *DynamicSlippage `json:"dynamicSlippage,omitempty"`
	PrioritizationFeeLamports *uint64          `json:"prioritizationFeeLamports,omitempty"`
}
