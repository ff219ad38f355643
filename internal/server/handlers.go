package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/manager"
)

// maxUploadBytes caps transaction file uploads at 16 MiB.
const maxUploadBytes = 16 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// amountField accepts a monetary amount as either a JSON number or a
// user-entered string, with dot or comma decimal separator. Both forms must
// be positive.
type amountField float64

func (a *amountField) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := core.ParseAmount(s)
		if err != nil {
			return err
		}
		*a = amountField(v)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	if f <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	*a = amountField(f)
	return nil
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Snapshot())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Summary())
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		if err := s.manager.LoadWallets(r.Context()); err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, s.manager.Snapshot().Wallets)
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	wallet, err := s.manager.CreateWallet(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, wallet)
}

func (s *Server) handleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	walletID := r.PathValue("id")
	if err := s.manager.DeleteWallet(r.Context(), walletID); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelectWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WalletID string `json:"wallet_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.WalletID == "" {
		writeError(w, http.StatusBadRequest, "wallet_id required")
		return
	}

	if err := s.manager.SelectWallet(r.Context(), req.WalletID); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.manager.Snapshot())
}

func (s *Server) handleChangePage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Page int `json:"page"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.manager.ChangePage(r.Context(), req.Page); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.manager.Snapshot())
}

func (s *Server) handleChangeRows(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RowsPerPage int `json:"rows_per_page"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.manager.ChangeRowsPerPage(r.Context(), req.RowsPerPage); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.manager.Snapshot())
}

func (s *Server) handleSelectedStats(w http.ResponseWriter, r *http.Request) {
	stats, ok := s.manager.SelectedStats()
	if !ok {
		writeError(w, http.StatusNotFound, "no wallet selected")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleWalletStats(w http.ResponseWriter, r *http.Request) {
	walletID := r.PathValue("walletID")
	stats, err := s.manager.WalletStats(r.Context(), walletID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	rollups := s.manager.Assets()

	values, err := s.manager.AssetValues(r.Context())
	if err != nil && !errors.Is(err, manager.ErrNoStore) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"assets": joinAssetValues(rollups, values),
	})
}

// assetView is a rollup joined with the user's stored valuation, when one
// exists.
type assetView struct {
	core.AssetRollup
	CurrentValue *float64 `json:"current_value,omitempty"`
}

func joinAssetValues(rollups []core.AssetRollup, values map[string]float64) []assetView {
	out := make([]assetView, len(rollups))
	for i, rollup := range rollups {
		out[i] = assetView{AssetRollup: rollup}
		if value, ok := values[rollup.Name]; ok {
			v := value
			out[i].CurrentValue = &v
		}
	}
	return out
}

func (s *Server) handleSetAssetValue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssetName string      `json:"asset_name"`
		Value     amountField `json:"value"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.manager.SetAssetValue(r.Context(), req.AssetName, float64(req.Value)); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, manager.ErrNoStore) {
			status = http.StatusNotImplemented
		}
		writeError(w, status, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAssetValue(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.DeleteAssetValue(r.Context(), r.PathValue("name")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, manager.ErrNoStore) {
			status = http.StatusNotImplemented
		}
		writeError(w, status, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGrowth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Growth())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part required")
		return
	}
	defer file.Close()

	result, err := s.manager.Upload(r.Context(), api.UploadRequest{
		File:       file,
		FileName:   header.Filename,
		WalletID:   r.FormValue("wallet_id"),
		WalletName: r.FormValue("wallet_name"),
		Currency:   r.FormValue("currency"),
	})
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, api.ErrUnsupportedFile) || errors.Is(err, api.ErrInvalidCurrency) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDetectCurrency(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part required")
		return
	}
	defer file.Close()

	currency, err := s.manager.DetectCurrency(r.Context(), header.Filename, file)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, api.ErrUnsupportedFile) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"currency": currency})
}

func (s *Server) handleTransactionErrors(w http.ResponseWriter, r *http.Request) {
	walletID := r.URL.Query().Get("wallet_id")
	if walletID == "" {
		writeError(w, http.StatusBadRequest, "wallet_id required")
		return
	}

	failed, err := s.manager.RefreshTransactionErrors(r.Context(), walletID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"failed_transactions": failed})
}

func (s *Server) handleFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := s.manager.MutualFunds(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, funds)
}

func (s *Server) handleFundValues(w http.ResponseWriter, r *http.Request) {
	values, err := s.manager.FundValues(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, values)
}

func (s *Server) handleAddFundValue(w http.ResponseWriter, r *http.Request) {
	fundID := r.PathValue("id")

	var req struct {
		Date  core.Date   `json:"date"`
		Value amountField `json:"value"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	value := api.FundValue{Date: req.Date, Value: float64(req.Value)}
	if err := s.manager.AddFundValue(r.Context(), fundID, value); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.logger.InfoContext(r.Context(), "Fund value added", log.FieldFundID, fundID,
		"value", strconv.FormatFloat(value.Value, 'f', -1, 64))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.manager.Snapshot())
}

func (s *Server) handleDismissError(w http.ResponseWriter, r *http.Request) {
	s.manager.DismissError()
	w.WriteHeader(http.StatusNoContent)
}
