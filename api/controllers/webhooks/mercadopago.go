package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/packrescue/packrescue-backend/api/responses"
	pkgerrors "github.com/packrescue/packrescue-backend/pkg/errors"
	"github.com/packrescue/packrescue-backend/pkg/logger"
)

type MercadoPagoWebhookService interface {
	HandleWebhook(ctx context.Context, body []byte, headers http.Header) error
}

// MercadoPagoWebhook ingests payment notifications from MercadoPago. The
// service acks malformed or unresolvable notifications after logging them;
// an error here means either a bad signature or a storage failure worth a
// provider retry.
func MercadoPagoWebhook(svc MercadoPagoWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := svc.HandleWebhook(ctx, payload, r.Header); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "received"})
	}
}
