package distributor

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/driplabs/merkledrop-go/pkg/auth"
	"github.com/driplabs/merkledrop-go/pkg/types"
)

const maxRequestBody = 1 << 20 // 1 MiB

// claimStatus maps the distributor's closed error set onto HTTP statuses.
func claimStatus(err error) int {
	switch {
	case errors.Is(err, types.ErrPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, types.ErrAlreadyClaimed):
		return http.StatusConflict
	case errors.Is(err, types.ErrInvalidProof):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrTransferFailed):
		return http.StatusBadGateway
	case errors.Is(err, types.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, types.ErrInvalidAmount), errors.Is(err, types.ErrInsufficientBalance):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleClaim handles the /claim endpoint
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.limiter.Allow() {
		http.Error(w, "Too many claim requests", http.StatusTooManyRequests)
		return
	}

	var req types.ClaimRequestV1
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	if !common.IsHexAddress(req.Account) {
		http.Error(w, "account must be a valid hex address", http.StatusBadRequest)
		return
	}
	account := common.HexToAddress(req.Account)

	amount, err := types.ParseAmount(req.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	proof, err := types.ParseProof(req.Proof)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	event, err := s.distributor.Claim(r.Context(), account, amount, proof)
	if err != nil {
		http.Error(w, err.Error(), claimStatus(err))
		return
	}

	writeJSON(w, types.ClaimResponseV1{
		Claimed:  true,
		EventID:  event.ID,
		Claimant: account.Hex(),
		Amount:   amount.String(),
	})
}

// authenticateAdmin reads the request body, recovers the signer of the
// X-Admin-Signature header over it, and returns both. The distributor makes
// the authorization decision; this only establishes who is calling.
func (s *Server) authenticateAdmin(w http.ResponseWriter, r *http.Request) ([]byte, common.Address, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return nil, common.Address{}, false
	}

	sigHex := r.Header.Get("X-Admin-Signature")
	if sigHex == "" {
		http.Error(w, "X-Admin-Signature header is required", http.StatusUnauthorized)
		return nil, common.Address{}, false
	}

	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		http.Error(w, "Malformed signature", http.StatusUnauthorized)
		return nil, common.Address{}, false
	}

	caller, err := auth.RecoverSigner(body, sig)
	if err != nil {
		http.Error(w, "Signature recovery failed", http.StatusUnauthorized)
		return nil, common.Address{}, false
	}

	return body, caller, true
}

// handleSetRoot handles the /admin/root endpoint
func (s *Server) handleSetRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, caller, ok := s.authenticateAdmin(w, r)
	if !ok {
		return
	}

	var req types.SetRootRequestV1
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	rootBytes, err := hexutil.Decode(req.Root)
	if err != nil || len(rootBytes) != 32 {
		http.Error(w, "root must be a 0x-prefixed 32-byte hash", http.StatusBadRequest)
		return
	}
	var root [32]byte
	copy(root[:], rootBytes)

	if err := s.distributor.SetRoot(r.Context(), caller, root); err != nil {
		http.Error(w, err.Error(), claimStatus(err))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleSetPaused handles the /admin/pause endpoint
func (s *Server) handleSetPaused(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, caller, ok := s.authenticateAdmin(w, r)
	if !ok {
		return
	}

	var req types.SetPausedRequestV1
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.distributor.SetPaused(r.Context(), caller, req.Paused); err != nil {
		http.Error(w, err.Error(), claimStatus(err))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleWithdraw handles the /admin/withdraw endpoint
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, caller, ok := s.authenticateAdmin(w, r)
	if !ok {
		return
	}

	var req types.WithdrawRequestV1
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	amount, err := types.ParseAmount(req.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.distributor.Withdraw(r.Context(), caller, amount); err != nil {
		http.Error(w, err.Error(), claimStatus(err))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleState handles the /state endpoint
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	balance, err := s.distributor.Balance(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read balance: %v", err), http.StatusBadGateway)
		return
	}

	root, _ := s.distributor.Root()
	writeJSON(w, types.StateResponseV1{
		Root:         hexutil.Encode(root[:]),
		Paused:       s.distributor.Paused(),
		ClaimedCount: s.distributor.ClaimedCount(),
		Balance:      balance.String(),
	})
}

// handleClaimed handles the /claimed/{address} endpoint
func (s *Server) handleClaimed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hexAddr := strings.TrimPrefix(r.URL.Path, "/claimed/")
	if !common.IsHexAddress(hexAddr) {
		http.Error(w, "path must be /claimed/{hex address}", http.StatusBadRequest)
		return
	}
	account := common.HexToAddress(hexAddr)

	writeJSON(w, types.ClaimedResponseV1{
		Account: account.Hex(),
		Claimed: s.distributor.IsClaimed(account),
	})
}

// handleHealthz handles the /healthz endpoint
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.HealthCheck(); err != nil {
		http.Error(w, fmt.Sprintf("persistence unhealthy: %v", err), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
