package injector

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeApp(t *testing.T) {
	dir := t.TempDir()

	app, err := InitializeApp(InputFolder(dir))
	require.NoError(t, err)
	assert.Equal(t, dir, app.Config.InputFolder)
	assert.NotNil(t, app.Service.Catalog())

	w := httptest.NewRecorder()
	app.Server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/configurations", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}
