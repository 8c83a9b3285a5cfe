package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/campusmerch/checkout-backend/pkg/errors"
	"github.com/campusmerch/checkout-backend/pkg/pagination"
)

type addLine struct {
	PurchasableUnitID uuid.UUID `json:"purchasable_unit_id" validate:"required"`
	Quantity          int       `json:"quantity" validate:"required,min=1,max=99"`
}

type optionalNotes struct {
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=5"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"purchasable_unit_id":"`+uuid.NewString()+`","quantity":120}`))
	var dest addLine

	err := DecodeJSONBody(req, &dest)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]string{"quantity": "must be at most 99"}, typed.Details())
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":1,"price":"0.01"}`))
	var dest addLine

	err := DecodeJSONBody(req, &dest)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestDecodeOptionalJSONBodyAcceptsEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	var dest optionalNotes

	require.NoError(t, DecodeOptionalJSONBody(req, &dest))
	assert.Nil(t, dest.Notes)

	req = httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	assert.Error(t, DecodeJSONBody(req, &dest))
}

func requestWithParam(key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	got, err := ParseUUIDParam(requestWithParam("orderId", id.String()), "orderId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUIDParam(requestWithParam("orderId", "not-a-uuid"), "orderId")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = ParseUUIDParam(requestWithParam("orderId", " "), "orderId")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestParsePage(t *testing.T) {
	params, err := ParsePage(httptest.NewRequest(http.MethodGet, "/orders?limit=10&cursor=%20abc%20", nil))
	require.NoError(t, err)
	assert.Equal(t, pagination.Params{Limit: 10, Cursor: "abc"}, params)

	params, err = ParsePage(httptest.NewRequest(http.MethodGet, "/orders", nil))
	require.NoError(t, err)
	assert.Equal(t, pagination.Params{Limit: pagination.DefaultLimit}, params)

	_, err = ParsePage(httptest.NewRequest(http.MethodGet, "/orders?limit=abc", nil))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = ParsePage(httptest.NewRequest(http.MethodGet, "/orders?limit=500", nil))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = ParsePage(httptest.NewRequest(http.MethodGet, "/orders?cursor="+strings.Repeat("a", maxCursorLen+1), nil))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
