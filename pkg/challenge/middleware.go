package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/satgate/satgate-core/pkg/credential"
	"github.com/satgate/satgate-core/pkg/gateway"
)

type contextKey struct{}

// resultKey carries the verification result of an admitted request.
var resultKey = contextKey{}

// ResultFromContext returns the verification result attached to an
// admitted request, if any.
func ResultFromContext(ctx context.Context) (*credential.VerifyResult, bool) {
	result, ok := ctx.Value(resultKey).(*credential.VerifyResult)
	return result, ok
}

// ResourceIDFunc derives the resource identifier a request is asking
// for. The default uses the URL path.
type ResourceIDFunc func(r *http.Request) string

// Middleware wires the challenge protocol in front of next. Admitted
// requests pass through with their verification result in the context;
// everything else receives 402 with the challenge as both a
// WWW-Authenticate header and a JSON body. A gateway outage yields 503:
// no credential can be minted without a real payment request.
func Middleware(h *Handler, resourceID ResourceIDFunc, next http.Handler) http.Handler {
	if resourceID == nil {
		resourceID = func(r *http.Request) string { return r.URL.Path }
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := h.Handle(r.Context(), resourceID(r), ExtractToken(r))
		if err != nil {
			if errors.Is(err, gateway.ErrUnavailable) {
				log.Warn().Err(err).Msg("payment gateway unavailable, cannot issue challenge")
				http.Error(w, "payment gateway unavailable", http.StatusServiceUnavailable)
				return
			}
			log.Error().Err(err).Msg("challenge handling failed")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		if decision.Authenticated {
			ctx := context.WithValue(r.Context(), resultKey, decision.Result)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		w.Header().Set("WWW-Authenticate", decision.Challenge.Header())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		if err := json.NewEncoder(w).Encode(decision.Challenge); err != nil {
			log.Error().Err(err).Msg("failed to write challenge body")
		}
	})
}
