package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"fintrack/internal/log"
)

// Upload validation errors, raised before any bytes leave the client.
var (
	ErrUnsupportedFile = errors.New("unsupported file type: only .csv, .xls and .xlsx are accepted")
	ErrInvalidCurrency = errors.New("currency must be a 3-letter uppercase code")
)

var uploadCurrencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

var allowedExtensions = map[string]bool{
	".csv":  true,
	".xls":  true,
	".xlsx": true,
}

// ValidateUploadFile checks the file extension against the formats the
// backend parses.
func ValidateUploadFile(fileName string) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedExtensions[ext] {
		return ErrUnsupportedFile
	}
	return nil
}

// UploadRequest describes a transaction file to push to the backend.
type UploadRequest struct {
	File       io.Reader
	FileName   string
	WalletID   string
	WalletName string
	// Currency overrides detection when set; must match ^[A-Z]{3}$.
	Currency string
}

// UploadResult is the backend's verdict on an uploaded file. A non-empty
// FailedTransactions with a nil error is a partial failure: the accepted
// rows were imported, the listed ones were not.
type UploadResult struct {
	Imported           int                 `json:"imported"`
	FailedTransactions []FailedTransaction `json:"failed_transactions"`
}

// DetectCurrency sends the file to the backend's detection endpoint and
// returns the 3-letter code it inferred.
func (c *Client) DetectCurrency(ctx context.Context, fileName string, file io.Reader) (string, error) {
	if err := ValidateUploadFile(fileName); err != nil {
		return "", err
	}

	body, contentType, err := multipartBody(fileName, file, nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		Currency string `json:"currency"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/transactions/detect-currency", nil, body, contentType, &resp); err != nil {
		return "", fmt.Errorf("detect currency: %w", err)
	}
	return resp.Currency, nil
}

// Upload pushes a transaction file into a wallet.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if err := ValidateUploadFile(req.FileName); err != nil {
		return UploadResult{}, err
	}
	if req.Currency != "" && !uploadCurrencyRe.MatchString(req.Currency) {
		return UploadResult{}, ErrInvalidCurrency
	}

	fields := map[string]string{
		"wallet_id":   req.WalletID,
		"wallet_name": req.WalletName,
	}
	if req.Currency != "" {
		fields["currency"] = req.Currency
	}

	body, contentType, err := multipartBody(req.FileName, req.File, fields)
	if err != nil {
		return UploadResult{}, err
	}

	var result UploadResult
	if err := c.do(ctx, http.MethodPost, "/api/transactions/upload", nil, body, contentType, &result); err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w", req.FileName, err)
	}

	c.logger.InfoContext(ctx, "Transaction file uploaded",
		log.FieldFileName, req.FileName,
		log.FieldWalletID, req.WalletID,
		"imported", result.Imported,
		"failed", len(result.FailedTransactions))

	return result, nil
}

// multipartBody builds a multipart form with the file under the "file" part
// plus any extra string fields.
func multipartBody(fileName string, file io.Reader, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("copy file into form: %w", err)
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
