package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/driplabs/merkledrop-go/pkg/auth"
	"github.com/driplabs/merkledrop-go/pkg/types"
)

// ClientConfig holds the configuration for the distributor client
type ClientConfig struct {
	// BaseURL is the distributor server address, e.g. "http://localhost:8080"
	BaseURL string
	Logger  *zap.Logger
	// AdminPrivateKey (hex) enables the admin operations. Claim and
	// inspection calls work without it.
	AdminPrivateKey string
	// Timeout bounds each HTTP request. Defaults to 30s.
	Timeout time.Duration
}

// Client provides a reusable library interface over the distributor's HTTP API
type Client struct {
	baseURL  string
	adminKey string
	http     *http.Client
	logger   *zap.Logger
}

// APIError carries the status and body of a non-2xx distributor response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("distributor returned %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// NewClient creates a new distributor client instance
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:  strings.TrimRight(config.BaseURL, "/"),
		adminKey: config.AdminPrivateKey,
		http:     &http.Client{Timeout: timeout},
		logger:   config.Logger,
	}, nil
}

// Claim submits a claim for the given allocation and proof.
func (c *Client) Claim(ctx context.Context, account common.Address, amount *big.Int, proof [][32]byte) (*types.ClaimResponseV1, error) {
	c.logger.Sugar().Infow("Submitting claim",
		"account", account.Hex(),
		"amount", amount.String(),
	)

	body, err := c.post(ctx, "/claim", types.ClaimRequestV1{
		Account: account.Hex(),
		Amount:  amount.String(),
		Proof:   types.EncodeProof(proof),
	}, false)
	if err != nil {
		return nil, err
	}

	var resp types.ClaimResponseV1
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse claim response: %w", err)
	}
	return &resp, nil
}

// State fetches the distributor's public state.
func (c *Client) State(ctx context.Context) (*types.StateResponseV1, error) {
	body, err := c.get(ctx, "/state")
	if err != nil {
		return nil, err
	}

	var resp types.StateResponseV1
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse state response: %w", err)
	}
	return &resp, nil
}

// IsClaimed reports whether the account has already claimed.
func (c *Client) IsClaimed(ctx context.Context, account common.Address) (bool, error) {
	body, err := c.get(ctx, "/claimed/"+account.Hex())
	if err != nil {
		return false, err
	}

	var resp types.ClaimedResponseV1
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("failed to parse claimed response: %w", err)
	}
	return resp.Claimed, nil
}

// SetRoot rotates the trusted merkle root. Requires the admin key.
func (c *Client) SetRoot(ctx context.Context, root [32]byte) error {
	_, err := c.post(ctx, "/admin/root", types.SetRootRequestV1{
		Root: hexutil.Encode(root[:]),
	}, true)
	return err
}

// SetPaused flips the claim gate. Requires the admin key.
func (c *Client) SetPaused(ctx context.Context, paused bool) error {
	_, err := c.post(ctx, "/admin/pause", types.SetPausedRequestV1{
		Paused: paused,
	}, true)
	return err
}

// Withdraw pulls unclaimed funds to the admin address. Requires the admin key.
func (c *Client) Withdraw(ctx context.Context, amount *big.Int) error {
	_, err := c.post(ctx, "/admin/withdraw", types.WithdrawRequestV1{
		Amount: amount.String(),
	}, true)
	return err
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, signed bool) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if signed {
		if c.adminKey == "" {
			return nil, fmt.Errorf("admin private key is required for %s", path)
		}
		// The signature covers the exact bytes sent.
		sig, err := auth.SignMessage(body, c.adminKey)
		if err != nil {
			return nil, fmt.Errorf("failed to sign request: %w", err)
		}
		req.Header.Set("X-Admin-Signature", hexutil.Encode(sig))
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
