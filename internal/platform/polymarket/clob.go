package polymarket

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/Bo-Bear/Arbi-bot/internal/crypto"
	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

// ClobClient is the REST client for the Polymarket CLOB (Central Limit Order
// Book) API. Orderbook reads are public; order placement, polling, and
// cancellation require EIP-712 signatures plus HMAC L2 headers.
type ClobClient struct {
	baseURL       string
	httpClient    *http.Client
	signer        *crypto.Signer
	hmacAuth      *crypto.HMACAuth
	funder        string // maker address for proxy/safe wallets, "" for EOA
	signatureType int
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com". funder is
// the funding (maker) address when signatureType is 1 or 2; for plain EOA
// wallets pass "".
func NewClobClient(baseURL string, signer *crypto.Signer, signatureType int, funder string) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer:        signer,
		signatureType: signatureType,
		funder:        funder,
	}
}

// FetchAsks fetches the ask side of an instrument's orderbook. Levels with
// non-positive price or size are dropped; the result is ordered ascending by
// price. This endpoint is public and needs no credentials.
func (c *ClobClient) FetchAsks(ctx context.Context, tokenID string) ([]domain.PriceLevel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/book?token_id="+tokenID, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: create book request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: fetch book: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: read book response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("polymarket/clob: fetch book: %w", err)
	}

	// Some deployments wrap the book in {"data": {...}}.
	var wrapped struct {
		Data *APIBook `json:"data"`
	}
	var book APIBook
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
		book = *wrapped.Data
	} else if err := json.Unmarshal(body, &book); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}

	asks := make([]domain.PriceLevel, 0, len(book.Asks))
	for _, lvl := range book.Asks {
		p, errP := strconv.ParseFloat(lvl.Price, 64)
		s, errS := strconv.ParseFloat(lvl.Size, 64)
		if errP != nil || errS != nil || p <= 0 || s <= 0 {
			continue
		}
		asks = append(asks, domain.PriceLevel{Price: p, Size: s})
	}
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	return asks, nil
}

// PlaceOrder signs and submits a limit order. A venue rejection is returned
// as OrderResult{Success: false, Reason: ...} with a nil error.
func (c *ClobClient) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if req.Price <= 0 || req.Size <= 0 {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: %w: price=%v size=%v",
			domain.ErrInvalidOrder, req.Price, req.Size)
	}

	payload, signature, err := c.buildSignedOrder(req)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: sign order: %w", err)
	}

	body := map[string]any{
		"order": map[string]any{
			"salt":          payload.Salt,
			"maker":         payload.Maker,
			"signer":        payload.Signer,
			"taker":         payload.Taker,
			"tokenId":       payload.TokenID,
			"makerAmount":   payload.MakerAmount,
			"takerAmount":   payload.TakerAmount,
			"expiration":    payload.Expiration,
			"nonce":         payload.Nonce,
			"feeRateBps":    payload.FeeRateBps,
			"side":          string(req.Side),
			"signatureType": payload.SignatureType,
			"signature":     signature,
		},
		"owner":     c.ownerAddress(),
		"orderType": string(req.Type),
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var apiResult APIOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}

	return apiResult.ToDomainOrderResult(), nil
}

// OrderStatus reads an order's current state and fill progress.
func (c *ClobClient) OrderStatus(ctx context.Context, orderID string) (domain.OrderFill, error) {
	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, "/order/"+orderID, nil)
	if err != nil {
		return domain.OrderFill{}, fmt.Errorf("polymarket/clob: get order %s: %w", orderID, err)
	}

	var apiOrder APIOrderStatus
	if err := json.Unmarshal(respBody, &apiOrder); err != nil {
		return domain.OrderFill{}, fmt.Errorf("polymarket/clob: decode order: %w", err)
	}

	return apiOrder.ToDomainFill(), nil
}

// CancelOrder cancels a single order by its ID.
func (c *ClobClient) CancelOrder(ctx context.Context, orderID string) error {
	body := map[string]any{
		"orderID": orderID,
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodDelete, "/order", body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: cancel order %s: %w", orderID, err)
	}

	var result struct {
		Success  bool   `json:"success"`
		ErrorMsg string `json:"errorMsg"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("polymarket/clob: decode cancel response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("polymarket/clob: cancel failed: %s", result.ErrorMsg)
	}

	return nil
}

// UseAPICredentials installs pre-derived HMAC API credentials, skipping the
// DeriveAPIKey flow.
func (c *ClobClient) UseAPICredentials(key, secret, passphrase string) {
	c.hmacAuth = &crypto.HMACAuth{
		Key:        key,
		Secret:     secret,
		Passphrase: passphrase,
	}
}

// DeriveAPIKey performs the CLOB auth flow to obtain an HMAC API key. It
// signs a ClobAuth EIP-712 message and sends it with L1 headers to the
// derive-api-key endpoint. On success it populates the client's hmacAuth.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) error {
	address := c.signer.Address().Hex()
	timestamp := time.Now().Unix()
	nonce := int64(0)

	sig, err := c.signer.SignAuthMessage(address, timestamp, nonce)
	if err != nil {
		return fmt.Errorf("polymarket/clob: sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("POLY_NONCE", strconv.FormatInt(nonce, 10))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket/clob: auth request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polymarket/clob: auth failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var authResp struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return fmt.Errorf("polymarket/clob: decode auth response: %w", err)
	}

	c.hmacAuth = &crypto.HMACAuth{
		Key:        authResp.APIKey,
		Secret:     authResp.Secret,
		Passphrase: authResp.Passphrase,
	}

	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// ownerAddress is the address that owns placed orders: the funder for
// proxy/safe wallets, otherwise the signing key's address.
func (c *ClobClient) ownerAddress() string {
	if c.funder != "" {
		return c.funder
	}
	return c.signer.Address().Hex()
}

// buildSignedOrder converts an OrderRequest into the EIP-712 payload the
// exchange contract expects and signs it. Amounts are integers scaled by 1e6
// (USDC decimals): a BUY makes USDC and takes shares, a SELL the reverse.
func (c *ClobClient) buildSignedOrder(req domain.OrderRequest) (crypto.OrderPayload, string, error) {
	salt, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return crypto.OrderPayload{}, "", fmt.Errorf("generate salt: %w", err)
	}

	shares := int64(math.Round(req.Size * 1e6))
	notional := int64(math.Round(req.Price * req.Size * 1e6))

	var makerAmount, takerAmount int64
	if req.Side == domain.OrderSideBuy {
		makerAmount, takerAmount = notional, shares
	} else {
		makerAmount, takerAmount = shares, notional
	}

	side := 0
	if req.Side == domain.OrderSideSell {
		side = 1
	}

	payload := crypto.OrderPayload{
		Salt:          salt.String(),
		Maker:         c.ownerAddress(),
		Signer:        c.signer.Address().Hex(),
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       req.TokenID,
		MakerAmount:   strconv.FormatInt(makerAmount, 10),
		TakerAmount:   strconv.FormatInt(takerAmount, 10),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          side,
		SignatureType: c.signatureType,
	}

	signature, err := c.signer.SignOrder(payload)
	if err != nil {
		return crypto.OrderPayload{}, "", err
	}

	return payload, signature, nil
}

// doAuthenticatedRequest builds, signs (HMAC), sends, and reads an HTTP
// request against the CLOB API. It returns the raw response body.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.hmacAuth != nil {
		address := c.signer.Address().Hex()
		for k, v := range c.hmacAuth.L2Headers(address, method, path, bodyStr) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// Compile-time interface checks.
var (
	_ domain.AskFetcher   = (*ClobClient)(nil)
	_ domain.OrderGateway = (*ClobClient)(nil)
)
