package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	appErrors "github.com/peopledeskhq/peopledesk/pkg/errors"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	return c, rec
}

func TestSuccessEnvelope(t *testing.T) {
	c, rec := newTestContext()

	Success(c, http.StatusOK, gin.H{"hello": "world"})

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success || resp.Error != nil {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
}

func TestErrorEnvelopeFromAppError(t *testing.T) {
	c, rec := newTestContext()

	Error(c, appErrors.ErrInvalidCredentials)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Success || resp.Error == nil {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	if resp.Error.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("unexpected code: %q", resp.Error.Code)
	}
}

func TestErrorEnvelopeHidesInternalDetails(t *testing.T) {
	c, rec := newTestContext()

	Error(c, errors.New("database exploded"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Message == "database exploded" {
		t.Fatalf("internal detail leaked: %+v", resp.Error)
	}
}

func TestSuccessWithMeta(t *testing.T) {
	c, rec := newTestContext()

	SuccessWithMeta(c, http.StatusOK, []string{"a"}, &Meta{Limit: 10, Offset: 20})

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Meta == nil || resp.Meta.Limit != 10 || resp.Meta.Offset != 20 {
		t.Fatalf("unexpected meta: %+v", resp.Meta)
	}
}
