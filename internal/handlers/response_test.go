package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-onboarding-service/internal/clients"
	"tenant-onboarding-service/internal/services"
)

func TestServiceErrorResponse_Status(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "session gone",
			err:  services.NewNotFoundError("onboarding session", "abc"),
			want: http.StatusNotFound,
		},
		{
			name: "submission hit a backend 404",
			err: &services.SubmissionError{SessionID: "abc", Attempt: 1, Err: &clients.RemoteError{
				Operation: "create tenant", StatusCode: http.StatusNotFound, Message: "unit not found",
			}},
			want: http.StatusBadGateway,
		},
		{
			name: "submission wrapping a not found error",
			err:  &services.SubmissionError{SessionID: "abc", Attempt: 1, Err: services.NewNotFoundError("unit", "u-1")},
			want: http.StatusBadGateway,
		},
		{
			name: "submission rejected by a business rule",
			err:  &services.SubmissionError{SessionID: "abc", Attempt: 1, Err: &services.BusinessRuleError{Code: "TENANT_EMAIL_EXISTS", Message: "exists"}},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unexpected",
			err:  errors.New("boom"),
			want: http.StatusInternalServerError,
		},
	}

	gin.SetMode(gin.TestMode)
	SetLogger(quietLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

			ServiceErrorResponse(c, "failed", tt.err)
			assert.Equal(t, tt.want, w.Code)

			var resp apiResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
		})
	}
}
