package distributor

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/driplabs/merkledrop-go/pkg/persistence"
)

/*
Server exposes the distributor over HTTP.

Claim flow:
  POST /claim
    - Request: { account, amount, proof[] }
    - Gates in order: pause flag, claimed flag, merkle proof
    - On success the claimed flag is durably set and tokens are transferred
    - Response: { claimed: true, event_id, claimant, amount }

Admin flow (signature-authenticated):
  POST /admin/root     { root }       - rotate the trusted merkle root
  POST /admin/pause    { paused }     - suspend/resume the claim gate
  POST /admin/withdraw { amount }     - pull unclaimed funds to the admin

  Admin requests carry an EIP-191 personal signature over the exact request
  body in the X-Admin-Signature header (0x-prefixed hex). The server recovers
  the signer and the distributor checks it against the admin capability, so
  a bad signature surfaces as 401 and a well-signed request from the wrong
  key as 403.

Inspection:
  GET /state              - root, paused flag, claimed count, holding balance
  GET /claimed/{address}  - per-account claimed flag
  GET /healthz            - persistence backend health

The claim endpoint sits behind a token-bucket rate limiter; everything else
is unlimited.
*/

// Server handles HTTP requests for the distributor
type Server struct {
	distributor *Distributor
	store       persistence.IDistributorPersistence
	limiter     *rate.Limiter
	httpServer  *http.Server
}

// NewServer creates a new server instance
func NewServer(d *Distributor, store persistence.IDistributorPersistence, port int, claimRate float64, claimBurst int) *Server {
	s := &Server{
		distributor: d,
		store:       store,
		limiter:     rate.NewLimiter(rate.Limit(claimRate), claimBurst),
	}

	mux := http.NewServeMux()

	// Claim endpoint
	mux.HandleFunc("/claim", s.handleClaim)

	// Admin endpoints
	mux.HandleFunc("/admin/root", s.handleSetRoot)
	mux.HandleFunc("/admin/pause", s.handleSetPaused)
	mux.HandleFunc("/admin/withdraw", s.handleWithdraw)

	// Inspection endpoints
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/claimed/", s.handleClaimed)
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.distributor.logger.Sugar().Infow("Starting HTTP server",
			"holding", s.distributor.HoldingAddress().Hex(), "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.distributor.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
