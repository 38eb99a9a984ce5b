package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"hedgegrid/internal/core"
	"hedgegrid/internal/engine"
)

func (a *API) handleTick(w http.ResponseWriter, r *http.Request) {
	var wire tickRequestWire
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := engine.TickRequest{
		AccountID: wire.AccountID,
		Market: core.Market{
			Ask:     wire.Ask,
			Bid:     wire.Bid,
			Equity:  wire.Equity,
			Balance: wire.Balance,
			Symbol:  wire.Symbol,
		},
		Positions: toPositions(wire.Positions),
		Now:       float64(time.Now().UnixNano()) / float64(time.Second),
	}

	resp, err := a.engine.OnTick(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := tickResponseWire{Action: resp.Action}
	if resp.Action != core.ActionWait {
		vol := resp.Volume
		out.Volume = &vol
		out.Comment = resp.Comment
		if resp.Alert {
			alert := resp.Alert
			out.Alert = &alert
		}
	}
	writeJSON(w, http.StatusOK, out)

	if a.ws != nil {
		a.ws.BroadcastMessage("tick", out)
	}
}

func (a *API) handleUIData(w http.ResponseWriter, r *http.Request) {
	snap := a.engine.ReadSnapshot()
	out := uiDataResponse{
		Buy:         sideView{Settings: snap.BuySettings, Runtime: snap.BuyRuntime},
		Sell:        sideView{Settings: snap.SellSettings, Runtime: snap.SellRuntime},
		Market:      snap.Market,
		LastUpdate:  snap.LastUpdate,
		CyclicOn:    snap.CyclicOn,
		ErrorStatus: snap.ErrorStatus,
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.engine.ApplySettings(r.Context(), engine.SettingsUpdate{Side: req.Side, Settings: req.Settings}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := a.engine.ReadSnapshot()
	if req.Side == core.SideBuy {
		writeJSON(w, http.StatusOK, sideView{Settings: snap.BuySettings, Runtime: snap.BuyRuntime})
	} else {
		writeJSON(w, http.StatusOK, sideView{Settings: snap.SellSettings, Runtime: snap.SellRuntime})
	}

	if a.ws != nil {
		a.ws.BroadcastMessage("snapshot", snap)
	}
}

func (a *API) handleControl(w http.ResponseWriter, r *http.Request) {
	var wire controlRequestWire
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := engine.ControlRequest{
		BuySwitch:      wire.BuySwitch,
		SellSwitch:     wire.SellSwitch,
		Cyclic:         wire.Cyclic,
		EmergencyClose: wire.EmergencyClose,
	}
	if err := a.engine.ApplyControl(r.Context(), req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := a.engine.ReadSnapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})

	if a.ws != nil {
		a.ws.BroadcastMessage("snapshot", snap)
	}
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	storeErr := a.engine.StoreHealthy(r.Context())
	errorStatus := a.engine.ErrorStatus()

	status := "ok"
	if storeErr != nil || errorStatus != "" {
		status = "degraded"
	}

	storeHealthy := true
	storeMsg := ""
	if storeErr != nil {
		storeHealthy = false
		storeMsg = storeErr.Error()
	}

	httpStatus := http.StatusOK
	if status == "degraded" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":        status,
		"store_healthy": storeHealthy,
		"store_error":   storeMsg,
		"error_status":  errorStatus,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
