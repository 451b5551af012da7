package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"example.com/granary/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, recorder
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{errors.Wrap(services.ErrValidation, "bad density"), http.StatusBadRequest},
		{errors.Wrap(services.ErrNotFound, "silo not found"), http.StatusNotFound},
		{errors.Wrap(services.ErrConflict, "already exists"), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		c, recorder := testContext()
		respondError(c, tc.err)

		assert.Equal(t, tc.status, recorder.Code, tc.err.Error())

		var body Response
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.NotEmpty(t, body.Error)
		assert.NotEmpty(t, body.Timestamp)
	}
}

func TestRespondEnvelope(t *testing.T) {
	c, recorder := testContext()
	respond(c, http.StatusCreated, "created", gin.H{"id": 1})

	assert.Equal(t, http.StatusCreated, recorder.Code)

	var body Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "created", body.Message)
	assert.NotNil(t, body.Data)
}

func TestRespondPageMeta(t *testing.T) {
	c, recorder := testContext()
	respondPage(c, "listed", []int{1, 2}, services.NewPagination(2, 20, 45))

	var body Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))

	meta, ok := body.Meta.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), meta["currentPage"])
	assert.Equal(t, float64(3), meta["totalPages"])
	assert.Equal(t, true, meta["hasPreviousPage"])
}
