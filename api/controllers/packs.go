package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/packrescue/packrescue-backend/api/responses"
	"github.com/packrescue/packrescue-backend/api/validators"
	packsvc "github.com/packrescue/packrescue-backend/internal/packs"
	"github.com/packrescue/packrescue-backend/pkg/enums"
	pkgerrors "github.com/packrescue/packrescue-backend/pkg/errors"
	"github.com/packrescue/packrescue-backend/pkg/logger"
	"github.com/packrescue/packrescue-backend/pkg/pagination"
)

// ListPacks is the public catalogue: active packs filtered and sorted by
// query parameters.
func ListPacks(svc packsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pack service unavailable"))
			return
		}

		input, err := parseListInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListPublic(r.Context(), *input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func parseListInput(r *http.Request) (*packsvc.ListInput, error) {
	query := r.URL.Query()
	input := packsvc.ListInput{
		Sort: packsvc.SortNewest,
		Pagination: pagination.Params{
			Cursor: strings.TrimSpace(query.Get("cursor")),
		},
	}

	if raw := strings.TrimSpace(query.Get("label")); raw != "" {
		label, err := enums.ParsePackLabel(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid label")
		}
		input.Filters.Label = &label
	}

	if raw := strings.TrimSpace(query.Get("merchant_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid merchant_id")
		}
		input.Filters.MerchantID = &id
	}

	if raw := strings.TrimSpace(query.Get("active_now")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid active_now")
		}
		input.Filters.ActiveNow = active
	}

	switch sort := packsvc.Sort(strings.TrimSpace(query.Get("sort"))); sort {
	case "":
	case packsvc.SortNewest, packsvc.SortPriceAsc, packsvc.SortPriceDesc:
		input.Sort = sort
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid sort")
	}

	limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
	if err != nil {
		return nil, err
	}
	input.Pagination.Limit = limit

	return &input, nil
}

// CreatePack registers a new pack under the merchant owned by the actor.
func CreatePack(svc packsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pack service unavailable"))
			return
		}

		ownerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload packsvc.CreatePackInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pack, err := svc.Create(r.Context(), ownerID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, pack)
	}
}

// ListMerchantPacks returns every pack owned by the actor's merchant,
// active or not.
func ListMerchantPacks(svc packsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pack service unavailable"))
			return
		}

		ownerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		packs, err := svc.ListForMerchant(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"packs": packs})
	}
}

// DeletePack removes a pack that has never been ordered.
func DeletePack(svc packsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pack service unavailable"))
			return
		}

		ownerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		packID, err := pathUUID(r, "packID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), ownerID, packID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
