package voucher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zombor/lexiflow-mocks/internal/httpapi"
)

// maxBodySize bounds voucher submissions
const maxBodySize = 1 << 20

// handleCreateVoucher accepts a voucher and answers with its ID
func (s *Server) handleCreateVoucher(w http.ResponseWriter, r *http.Request) {
	var body requestBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil {
		httpapi.WriteError(w, http.StatusUnprocessableEntity, "Invalid request body: "+err.Error())
		return
	}

	req, err := body.toRequest()
	if err != nil {
		httpapi.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	v, err := s.service.CreateVoucher(r.Context(), req, httpapi.RemoteHost(r))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Client went away during the simulated delay
			slog.Warn("Voucher request cancelled", "error", err)
			return
		}
		slog.Error("Error creating voucher", "error", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.vouchersCreated.Inc()

	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"voucherId": v.VoucherID})
}

// handleListVouchers returns all stored vouchers
func (s *Server) handleListVouchers(w http.ResponseWriter, r *http.Request) {
	vouchers, err := s.service.ListVouchers()
	if err != nil {
		slog.Error("Error listing vouchers", "error", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, vouchers)
}
