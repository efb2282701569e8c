package dispatch

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icrar/vospace/backend"
	"github.com/icrar/vospace/cmn"
	"github.com/icrar/vospace/store"
	"github.com/icrar/vospace/xaction"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "vospace.db")
	st, err := store.Open(dbPath, 2*time.Second, store.AllowAll{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	be := backend.NewMem("http://127.0.0.1:8080/vospace/data")
	cfg := cmn.Default()
	eng, err := xaction.NewEngine(st, be, cfg.Transfer)
	require.NoError(t, err)
	return NewRouter(cfg, st, eng, be, zerolog.Nop())
}

func authedRequest(method, path string, body string) *http.Request {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	r.Header.Set(identityHeader, "alice")
	return r
}

func containerXML(uri string) string {
	return `<vos:node xmlns:vos="http://www.ivoa.net/xml/VOSpace/v2.1" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:type="vos:ContainerNode" uri="` + uri + `"/>`
}

// TestScenario1 mirrors the spec's scenario 1: create, reject duplicate,
// and a detail=min read that carries no properties.
func TestScenario1_CreateDuplicateAndDetailLevels(t *testing.T) {
	h := newTestRouter(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodPut, "/vospace/nodes/test1", containerXML("vos://icrar.org!vospace/test1")))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodPut, "/vospace/nodes/test1", containerXML("vos://icrar.org!vospace/test1")))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodGet, "/vospace/nodes/test1?detail=min", ""))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "vos:properties")
}

// TestScenario2 mirrors scenario 2: creation beneath a LinkNode is rejected.
func TestScenario2_CreateThroughLinkNodeRejected(t *testing.T) {
	h := newTestRouter(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodPut, "/vospace/nodes/a", containerXML("vos://icrar.org!vospace/a")))
	require.Equal(t, http.StatusCreated, w.Code)

	linkXML := `<vos:node xmlns:vos="http://www.ivoa.net/xml/VOSpace/v2.1" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:type="vos:LinkNode" uri="vos://icrar.org!vospace/a/link"><vos:target>http://x</vos:target></vos:node>`
	w = httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodPut, "/vospace/nodes/a/link", linkXML))
	require.Equal(t, http.StatusCreated, w.Code)

	childXML := `<vos:node xmlns:vos="http://www.ivoa.net/xml/VOSpace/v2.1" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:type="vos:DataNode" uri="vos://icrar.org!vospace/a/link/child"/>`
	w = httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodPut, "/vospace/nodes/a/link/child", childXML))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestScenario3 mirrors scenario 3: create with a missing parent container.
func TestScenario3_CreateWithMissingParent(t *testing.T) {
	h := newTestRouter(t)

	dataXML := `<vos:node xmlns:vos="http://www.ivoa.net/xml/VOSpace/v2.1" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:type="vos:DataNode" uri="vos://icrar.org!vospace/c/d/e"/>`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodPut, "/vospace/nodes/c/d/e", dataXML))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestScenario4 mirrors scenario 4: a delete-property removes a value.
func TestScenario4_UpdateWithDeleteProperty(t *testing.T) {
	h := newTestRouter(t)

	createXML := `<vos:node xmlns:vos="http://www.ivoa.net/xml/VOSpace/v2.1" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:type="vos:DataNode" uri="vos://icrar.org!vospace/n">` +
		`<vos:properties><vos:property uri="ivo://ivoa.net/vospace/core#description" readOnly="false">Hello</vos:property></vos:properties></vos:node>`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodPut, "/vospace/nodes/n", createXML))
	require.Equal(t, http.StatusCreated, w.Code)

	updateXML := `<vos:node xmlns:vos="http://www.ivoa.net/xml/VOSpace/v2.1" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:type="vos:DataNode" uri="vos://icrar.org!vospace/n">` +
		`<vos:properties><vos:property uri="ivo://ivoa.net/vospace/core#description" xsi:nil="true"/></vos:properties></vos:node>`
	w = httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodPost, "/vospace/nodes/n", updateXML))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodGet, "/vospace/nodes/n?detail=max", ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "description")
}

// TestScenario5 mirrors scenario 5: synchronous push exposes one matching
// protocol endpoint, and the target's busy bit does not survive the call —
// the job reaches a terminal phase before the HTTP response is written, so
// later operations (move, delete, another transfer) are never wedged behind
// a synchronous push that, in this server, has no further completion signal
// to wait for.
func TestScenario5_SynchronousPushToSpace(t *testing.T) {
	h := newTestRouter(t)

	dataXML := `<vos:node xmlns:vos="http://www.ivoa.net/xml/VOSpace/v2.1" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:type="vos:DataNode" uri="vos://icrar.org!vospace/data1"/>`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodPut, "/vospace/nodes/data1", dataXML))
	require.Equal(t, http.StatusCreated, w.Code)

	path := "/vospace/synctrans?TARGET=" + "vos%3A%2F%2Ficrar.org%21vospace%2Fdata1" +
		"&DIRECTION=pushToVoSpace&PROTOCOL=ivo%3A%2F%2Fivoa.net%2Fvospace%2Fcore%23httpput"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodPost, path, ""))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, 1, strings.Count(body, "<vos:protocol "))
	assert.Contains(t, body, "http")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodGet, "/vospace/nodes/data1?detail=max", ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `busy="true"`, "busy must not survive a completed synchronous push")

	// Deleting the node must not be rejected by a stuck busy bit.
	w = httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodDelete, "/vospace/nodes/data1", ""))
	assert.Equal(t, http.StatusNoContent, w.Code, "a completed sync push must not leave the target permanently busy")
}

// TestScenario6 mirrors scenario 6: async job phase commands, including
// cross-identity rejection.
func TestScenario6_AsyncJobPhaseCommandsAndOwnership(t *testing.T) {
	h := newTestRouter(t)

	dataXML := `<vos:node xmlns:vos="http://www.ivoa.net/xml/VOSpace/v2.1" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:type="vos:DataNode" uri="vos://icrar.org!vospace/data2"/>`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodPut, "/vospace/nodes/data2", dataXML))
	require.Equal(t, http.StatusCreated, w.Code)

	transferXML := `<vos:transfer xmlns:vos="http://www.ivoa.net/xml/VOSpace/v2.1"><vos:target>vos://icrar.org!vospace/data2</vos:target>` +
		`<vos:direction>pullFromVoSpace</vos:direction></vos:transfer>`
	w = httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodPost, "/vospace/transfers", transferXML))
	require.Equal(t, http.StatusCreated, w.Code)
	loc := w.Header().Get("Location")
	require.NotEmpty(t, loc)
	jobID := strings.TrimPrefix(loc, "/vospace/transfers/")
	assert.Contains(t, w.Body.String(), "PENDING")

	runReq := authedRequest(http.MethodPost, "/vospace/transfers/"+jobID+"/phase", "PHASE=RUN")
	runReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, runReq)
	assert.Equal(t, http.StatusOK, w.Code)

	otherReq := authedRequest(http.MethodPost, "/vospace/transfers/"+jobID+"/phase", "PHASE=ABORT")
	otherReq.Header.Set(identityHeader, "bob")
	otherReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, otherReq)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAvailabilityHandler(t *testing.T) {
	h := newTestRouter(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/vospace/availability", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNodeHandlerRejectsUnsupportedMethod(t *testing.T) {
	h := newTestRouter(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodPatch, "/vospace/nodes/test1", ""))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestNodeHandlerRequiresIdentity(t *testing.T) {
	h := newTestRouter(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/vospace/nodes/test1", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
