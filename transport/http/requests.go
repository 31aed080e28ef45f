package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"stakehouse/application"
	"stakehouse/domain/entities"
	"stakehouse/domain/interfaces"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type draftPayload struct {
	Staker          entities.StakerIdentity `json:"staker"`
	Percentage      *decimal.Decimal        `json:"percentage" validate:"required"`
	Markup          *decimal.Decimal        `json:"markup" validate:"required"`
	OriginalStakeID *string                 `json:"original_stake_id"`
	Unsynced        bool                    `json:"unsynced"`
	Conflict        *entities.StakeConflict `json:"conflict"`
}

type reconcileRequest struct {
	OwnerID  string                   `json:"owner_id" validate:"required"`
	EventID  string                   `json:"event_id"`
	Metadata entities.SessionMetadata `json:"metadata"`
	// Drafts left out of the body means "use the cached drafts"
	Drafts []draftPayload `json:"drafts" validate:"omitempty,dive"`
}

func (r reconcileRequest) toApplication(runtimeKey string) application.ConfigureStakesRequest {
	req := application.ConfigureStakesRequest{
		RuntimeSessionKey: runtimeKey,
		OwnerID:           r.OwnerID,
		EventID:           r.EventID,
		Metadata:          r.Metadata,
	}
	if r.Drafts == nil {
		return req
	}
	req.Drafts = make([]*entities.StakeConfiguration, 0, len(r.Drafts))
	for _, d := range r.Drafts {
		req.Drafts = append(req.Drafts, &entities.StakeConfiguration{
			Staker:          d.Staker,
			Percentage:      *d.Percentage,
			Markup:          *d.Markup,
			OriginalStakeID: d.OriginalStakeID,
			Unsynced:        d.Unsynced,
			Conflict:        d.Conflict,
		})
	}
	return req
}

type finalizeRequest struct {
	OwnerID             string           `json:"owner_id"`
	EventID             string           `json:"event_id"`
	BuyIn               *decimal.Decimal `json:"buy_in" validate:"required"`
	Cashout             *decimal.Decimal `json:"cashout" validate:"required"`
	RequireConfirmation bool             `json:"require_confirmation"`
}

type upsertStakeRequest struct {
	SessionID      string                   `json:"session_id" validate:"required"`
	StakedPlayerID string                   `json:"staked_player_id" validate:"required"`
	Staker         entities.StakerIdentity  `json:"staker"`
	Percentage     *decimal.Decimal         `json:"percentage" validate:"required"`
	Markup         *decimal.Decimal         `json:"markup" validate:"required"`
	Metadata       entities.SessionMetadata `json:"metadata"`
}

func (r upsertStakeRequest) toInterfaces() interfaces.UpsertStakeRequest {
	return interfaces.UpsertStakeRequest{
		SessionID:      r.SessionID,
		StakedPlayerID: r.StakedPlayerID,
		Staker:         r.Staker,
		Percentage:     *r.Percentage,
		Markup:         *r.Markup,
		Metadata:       r.Metadata,
	}
}

type settlementRequest struct {
	BuyIn               *decimal.Decimal `json:"buy_in" validate:"required"`
	Cashout             *decimal.Decimal `json:"cashout" validate:"required"`
	RequireConfirmation bool             `json:"require_confirmation"`
}

type termPayload struct {
	Staker     entities.StakerIdentity `json:"staker"`
	Percentage *decimal.Decimal        `json:"percentage" validate:"required"`
	Markup     *decimal.Decimal        `json:"markup" validate:"required"`
}

type createInvitesRequest struct {
	StakedPlayerID string                 `json:"staked_player_id" validate:"required"`
	Metadata       entities.EventMetadata `json:"metadata"`
	Terms          []termPayload          `json:"terms" validate:"required,min=1,dive"`
}

func (r createInvitesRequest) terms() []entities.StakerTerm {
	terms := make([]entities.StakerTerm, 0, len(r.Terms))
	for _, t := range r.Terms {
		terms = append(terms, entities.StakerTerm{
			Staker:     t.Staker,
			StakeTerms: entities.StakeTerms{Percentage: *t.Percentage, Markup: *t.Markup},
		})
	}
	return terms
}

type sessionResultsRequest struct {
	StakedPlayerID string           `json:"staked_player_id" validate:"required"`
	BuyIn          *decimal.Decimal `json:"buy_in" validate:"required"`
	Cashout        *decimal.Decimal `json:"cashout" validate:"required"`
}

type displayNameRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=100"`
}

// decodeRequest reads a JSON body into dst and validates it. Every failure
// is reported as an entities.ErrValidation.
func decodeRequest(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return entities.NewValidationError("body", fmt.Sprintf("malformed json: %v", err))
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return entities.NewValidationError(fieldPath(fe.Namespace()), "failed "+fe.Tag())
		}
		return entities.NewValidationError("body", err.Error())
	}
	return nil
}

// fieldPath drops the root struct name from a validator namespace
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
