package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name                  string
		page, perPage, total  int
		wantPage, wantPer     int
		wantPages, wantOffset int
	}{
		{"defaults", 0, 0, 25, 1, 10, 3, 0},
		{"third page", 3, 10, 25, 3, 10, 3, 20},
		{"capped", 2, 500, 250, 2, 100, 3, 100},
		{"empty", 1, 20, 0, 1, 20, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, tt.perPage, tt.total)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantPer, p.PerPage)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, tt.wantOffset, p.Offset())
		})
	}
}

func TestEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ok", func(c *gin.Context) { Success(c, http.StatusOK, gin.H{"x": 1}) })
	r.GET("/fail", func(c *gin.Context) { FailWithMessage(c, http.StatusBadGateway, ErrSubmissionFailed, "") })
	r.GET("/fields", func(c *gin.Context) {
		FailWithFields(c, http.StatusBadRequest, ErrValidation, map[string]string{"email": "required"})
	})

	serve := func(path string) (int, Response) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Request-ID", "req-1")
		r.ServeHTTP(rec, req)
		var out Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return rec.Code, out
	}

	code, ok := serve("/ok")
	assert.Equal(t, http.StatusOK, code)
	assert.Nil(t, ok.Error)
	assert.Equal(t, "req-1", ok.Metadata.RequestID)

	code, failed := serve("/fail")
	assert.Equal(t, http.StatusBadGateway, code)
	require.NotNil(t, failed.Error)
	assert.Equal(t, GetMessage(ErrSubmissionFailed), failed.Error.Message)

	_, fields := serve("/fields")
	require.NotNil(t, fields.Error)
	assert.Equal(t, "required", fields.Error.Fields["email"])
}
