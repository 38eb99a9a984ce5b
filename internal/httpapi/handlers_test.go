package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"hedgegrid/internal/core"
	"hedgegrid/internal/engine"
	"hedgegrid/internal/logging"
	"hedgegrid/internal/state"
)

func mustDecimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestAPI(t *testing.T) *API {
	t.Helper()
	store := state.NewFileStore(filepath.Join(t.TempDir(), "snapshot.json"))
	logger, err := logging.New("ERROR")
	require.NoError(t, err)

	buySettings := core.UserSettings{Rows: []core.GridRow{{Index: 0, Lots: mustDecimal("0.01")}}}
	sellSettings := core.UserSettings{Rows: []core.GridRow{{Index: 0, Lots: mustDecimal("0.01")}}}

	eng, err := engine.New(context.Background(), buySettings, sellSettings, false, 5*time.Second, store, logger)
	require.NoError(t, err)

	return New(eng, nil, logger, "*", 0, 0, true)
}

func TestHandleHealthz(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	api.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, true, body["store_healthy"])
	require.Equal(t, "", body["error_status"])
}

func TestHandleUIData(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/ui-data", nil)
	rec := httptest.NewRecorder()

	api.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out uiDataResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
}

func TestHandleTick_WaitWhenBothSidesOff(t *testing.T) {
	api := newTestAPI(t)
	body := tickRequestWire{
		AccountID: "acc1",
		Equity:    mustDecimal("1000"),
		Balance:   mustDecimal("1000"),
		Symbol:    "EURUSD",
		Ask:       mustDecimal("1.1000"),
		Bid:       mustDecimal("1.0998"),
	}
	buf, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/tick", bytes.NewReader(buf))
	rec := httptest.NewRecorder()

	api.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out tickResponseWire
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, core.ActionWait, out.Action)
	require.Nil(t, out.Volume)
}

func TestHandleTick_MalformedBodyRejected(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/tick", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()

	api.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpdateSettings_ReplacesBuySettings(t *testing.T) {
	api := newTestAPI(t)
	req := updateSettingsRequest{
		Side: core.SideBuy,
		Settings: core.UserSettings{
			Rows: []core.GridRow{{Index: 0, Lots: mustDecimal("0.02")}},
		},
	}
	buf, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq := httptest.NewRequest(http.MethodPost, "/api/update-settings", bytes.NewReader(buf))
	rec := httptest.NewRecorder()

	api.Router().ServeHTTP(rec, httpReq)

	require.Equal(t, http.StatusOK, rec.Code)
	var out sideView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.True(t, out.Settings.Rows[0].Lots.Equal(mustDecimal("0.02")))
}

func TestHandleControl_TogglesBuySwitch(t *testing.T) {
	api := newTestAPI(t)
	on := true
	req := controlRequestWire{BuySwitch: &on}
	buf, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq := httptest.NewRequest(http.MethodPost, "/api/control", bytes.NewReader(buf))
	rec := httptest.NewRecorder()

	api.Router().ServeHTTP(rec, httpReq)

	require.Equal(t, http.StatusOK, rec.Code)

	snap := api.engine.ReadSnapshot()
	require.True(t, snap.BuyRuntime.On)
}
